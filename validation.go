package e2ee

import (
	"fmt"
)

const (
	// DefaultChunkSize is the chunk bound used when Config.ChunkSize is zero
	DefaultChunkSize = 5000

	// MinChunkSize is the smallest accepted chunk bound
	MinChunkSize = 16

	// MaxChunkSize is the largest accepted chunk bound
	MaxChunkSize = 1 << 20
)

// Input validation helpers

// ValidateBuffer checks if a buffer is valid (non-nil and has expected size)
func ValidateBuffer(buf []byte, name string, minSize int) error {
	if buf == nil {
		return &ValidationError{
			Field:   name,
			Message: "buffer cannot be nil",
			Err:     ErrNilBuffer,
		}
	}
	if minSize > 0 && len(buf) < minSize {
		return &ValidationError{
			Field:   name,
			Value:   len(buf),
			Message: fmt.Sprintf("buffer too small: got %d bytes, need at least %d bytes", len(buf), minSize),
		}
	}
	return nil
}

// ValidateSize checks if a size parameter is valid
func ValidateSize(size int, name string, minSize, maxSize int) error {
	if size < 0 {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: "size cannot be negative",
			Err:     ErrInvalidSize,
		}
	}
	if minSize >= 0 && size < minSize {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: fmt.Sprintf("size too small: got %d, minimum is %d", size, minSize),
			Err:     ErrInvalidSize,
		}
	}
	if maxSize > 0 && size > maxSize {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: fmt.Sprintf("size too large: got %d, maximum is %d", size, maxSize),
			Err:     ErrInvalidSize,
		}
	}
	return nil
}

// ValidateChunkSize checks a configured chunk bound
func ValidateChunkSize(size int) error {
	return ValidateSize(size, "chunk_size", MinChunkSize, MaxChunkSize)
}

// ValidateKey checks if a key has the correct size
func ValidateKey(key []byte, expectedSize int) error {
	if key == nil {
		return &ValidationError{
			Field:   "key",
			Message: "key cannot be nil",
			Err:     ErrInvalidKey,
		}
	}

	if len(key) != expectedSize {
		return &ValidationError{
			Field:   "key",
			Value:   len(key),
			Message: fmt.Sprintf("invalid key size: got %d bytes, expected %d bytes", len(key), expectedSize),
			Err:     ErrInvalidKey,
		}
	}

	return nil
}

// ValidateChunkIndex checks if a chunk index is within valid bounds
func ValidateChunkIndex(index, maxIndex uint32, context string) error {
	if index > maxIndex {
		return &ValidationError{
			Field:   "chunk_index",
			Value:   index,
			Message: fmt.Sprintf("%s: chunk index %d exceeds maximum %d", context, index, maxIndex),
		}
	}
	return nil
}

// ValidateFilePath checks if a file path is valid (not empty)
func ValidateFilePath(path string) error {
	if path == "" {
		return &ValidationError{
			Field:   "path",
			Message: "file path cannot be empty",
		}
	}
	return nil
}

// ValidatePassword rejects empty passwords
func ValidatePassword(password string) error {
	if password == "" {
		return NewValidationError("password", nil, "password cannot be empty")
	}
	return nil
}

// ValidateMasterKeyID checks that id can be embedded in a header
func ValidateMasterKeyID(id string) error {
	if len(id) != masterKeyIDLen {
		return &ValidationError{
			Field:   "master_key_id",
			Value:   id,
			Message: fmt.Sprintf("master key id must be %d characters, got %d", masterKeyIDLen, len(id)),
		}
	}
	for i := 0; i < len(id); i++ {
		if !isHexDigit(id[i]) {
			return &ValidationError{
				Field:   "master_key_id",
				Value:   id,
				Message: "master key id must be lowercase hex",
			}
		}
	}
	return nil
}

// ValidateMasterKeyRecord checks the shape of a record before it is decrypted
func ValidateMasterKeyRecord(record MasterKeyRecord) error {
	if err := ValidateMasterKeyID(record.ID); err != nil {
		return err
	}
	if record.Content == "" {
		return &ValidationError{
			Field:   "content",
			Message: "master key content cannot be empty",
		}
	}
	return nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f')
}
