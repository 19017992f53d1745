package e2ee

import (
	"errors"
	"fmt"
)

// Error types represent different categories of errors

// ValidationError represents a configuration or parameter validation error
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// EncryptionError represents an encryption or decryption failure
type EncryptionError struct {
	Operation   string // "encrypt", "decrypt", "load", "upgrade", ...
	MasterKeyID string // Master key involved, if known
	Method      Method // Encryption method, if known
	Message     string // Human-readable error message
	Err         error  // Underlying error
}

func (e *EncryptionError) Error() string {
	if e.MasterKeyID != "" {
		return fmt.Sprintf("%s error: master key %s: %s", e.Operation, e.MasterKeyID, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Operation, e.Message)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// IOError represents a file system I/O error
type IOError struct {
	Operation string // "read", "write", "open", "rename", ...
	Path      string // File path
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("io error: %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// CorruptionError represents a ciphertext that failed integrity checks
type CorruptionError struct {
	ChunkIdx int    // Chunk index, -1 when not chunk specific
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *CorruptionError) Error() string {
	if e.ChunkIdx >= 0 {
		return fmt.Sprintf("corruption error: chunk %d: %s", e.ChunkIdx, e.Message)
	}
	return fmt.Sprintf("corruption error: %s", e.Message)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// AuthenticationError represents a password that could not unlock a master key
type AuthenticationError struct {
	MasterKeyID string // Master key that failed to unlock
	Message     string // Human-readable error message
	Err         error  // Underlying error
}

func (e *AuthenticationError) Error() string {
	if e.MasterKeyID != "" {
		return fmt.Sprintf("authentication error: master key %s: %s", e.MasterKeyID, e.Message)
	}
	return fmt.Sprintf("authentication error: %s", e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Sentinel errors. Structured errors above wrap these, so callers can
// always test with errors.Is.
var (
	// ErrWrongPasswordOrCorruptData means a master key could not be
	// decrypted: the password is wrong or the record is damaged.
	ErrWrongPasswordOrCorruptData = errors.New("wrong password or corrupt data")

	// ErrMasterKeyNotLoaded means the ciphertext needs a master key that is
	// not in the cache, or whose cache entry is stale.
	ErrMasterKeyNotLoaded = errors.New("master key not loaded")

	// ErrNoActiveMasterKey means no master key was requested and none is active.
	ErrNoActiveMasterKey = fmt.Errorf("no active master key: %w", ErrMasterKeyNotLoaded)

	// ErrMasterKeyNotFound means a MasterKeyStore has no record for an id.
	ErrMasterKeyNotFound = errors.New("master key not found")

	// ErrDecryptionFailed means a chunk failed authentication or framing checks.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrMalformedHeader means the ciphertext preamble cannot be parsed.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrUnknownMethod means a method id is not in the registry.
	ErrUnknownMethod = errors.New("unknown encryption method")

	// ErrInvalidInputEncoding means a legacy method was asked to encrypt
	// text it would have silently corrupted.
	ErrInvalidInputEncoding = errors.New("invalid input encoding")

	ErrInvalidKey  = errors.New("invalid encryption key")
	ErrAuthFailed  = errors.New("authentication failed - data may be corrupted or tampered")
	ErrNilConfig   = errors.New("config cannot be nil")
	ErrNilBuffer   = errors.New("buffer cannot be nil")
	ErrInvalidSize = errors.New("invalid size parameter")
)

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewEncryptionError creates a new encryption error
func NewEncryptionError(operation, masterKeyID string, err error) error {
	return &EncryptionError{
		Operation:   operation,
		MasterKeyID: masterKeyID,
		Message:     err.Error(),
		Err:         err,
	}
}

// NewIOError creates a new I/O error
func NewIOError(operation, path string, err error) error {
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewCorruptionError creates a new corruption error wrapping ErrDecryptionFailed
func NewCorruptionError(chunkIdx int, message string) error {
	return &CorruptionError{
		ChunkIdx: chunkIdx,
		Message:  message,
		Err:      ErrDecryptionFailed,
	}
}

// NewAuthenticationError creates a new authentication error wrapping
// ErrWrongPasswordOrCorruptData
func NewAuthenticationError(masterKeyID, message string) error {
	return &AuthenticationError{
		MasterKeyID: masterKeyID,
		Message:     message,
		Err:         ErrWrongPasswordOrCorruptData,
	}
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsEncryptionError checks if an error is an encryption error
func IsEncryptionError(err error) bool {
	var ee *EncryptionError
	return errors.As(err, &ee)
}

// IsIOError checks if an error is an I/O error
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

// IsCorruptionError checks if an error is a corruption error
func IsCorruptionError(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsWrongPassword reports whether err means a master key password was rejected.
func IsWrongPassword(err error) bool {
	return errors.Is(err, ErrWrongPasswordOrCorruptData)
}

// IsMasterKeyNotLoaded reports whether the caller must load a master key first.
func IsMasterKeyNotLoaded(err error) bool {
	return errors.Is(err, ErrMasterKeyNotLoaded)
}

// IsUnknownMethod reports whether the data was written by an unsupported
// protocol version.
func IsUnknownMethod(err error) bool {
	return errors.Is(err, ErrUnknownMethod)
}
