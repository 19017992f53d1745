package e2ee

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Ciphertext layout (text, so it survives any string store):
//
//	"JED" | version (2 hex) | metadata length (6 hex) | metadata | chunks...
//
// Version 1 metadata is method (2 hex) followed by the master key id
// (32 hex). Later fields may be appended to the metadata; readers skip
// what they do not understand.
const (
	// HeaderMagic identifies encrypted content
	HeaderMagic = "JED"

	// CurrentHeaderVersion is the header layout written by EncodeHeader
	CurrentHeaderVersion = uint8(1)

	// headerPrefixLen is magic + version + metadata length
	headerPrefixLen = len(HeaderMagic) + 2 + 6

	// masterKeyIDLen is the length of a master key id
	masterKeyIDLen = 32

	// headerV1MetadataLen is method + master key id
	headerV1MetadataLen = 2 + masterKeyIDLen

	// MinHeaderSize is the smallest valid encoded header
	MinHeaderSize = headerPrefixLen + headerV1MetadataLen

	// maxHeaderMetadataLen bounds what a reader will buffer
	maxHeaderMetadataLen = 4096
)

// Header is the preamble of every ciphertext. It names the method and
// master key the rest of the data was written with.
type Header struct {
	Version     uint8
	Method      Method
	MasterKeyID string
}

// Validate checks the header can be encoded
func (h Header) Validate() error {
	if h.Version > CurrentHeaderVersion {
		return &ValidationError{Field: "version", Value: h.Version, Message: "unsupported header version"}
	}
	if _, err := LookupMethod(h.Method); err != nil {
		return &ValidationError{Field: "method", Value: h.Method, Message: "unknown encryption method", Err: err}
	}
	return ValidateMasterKeyID(h.MasterKeyID)
}

// EncodeHeader returns the text form of h. A zero Version is written as
// CurrentHeaderVersion.
func EncodeHeader(h Header) (string, error) {
	if h.Version == 0 {
		h.Version = CurrentHeaderVersion
	}
	if err := h.Validate(); err != nil {
		return "", err
	}
	metadata := fmt.Sprintf("%02x%s", uint8(h.Method), h.MasterKeyID)
	return fmt.Sprintf("%s%02x%06x%s", HeaderMagic, h.Version, len(metadata), metadata), nil
}

// DecodeHeader parses the header at the start of s and returns it with the
// number of bytes it occupies. The method is not resolved against the
// registry, so headers written by newer versions can still be inspected.
func DecodeHeader(s string) (Header, int, error) {
	if len(s) < MinHeaderSize {
		return Header{}, 0, fmt.Errorf("%w: need at least %d bytes, got %d", ErrMalformedHeader, MinHeaderSize, len(s))
	}
	version, metaLen, err := parseHeaderPrefix(s[:headerPrefixLen])
	if err != nil {
		return Header{}, 0, err
	}
	end := headerPrefixLen + metaLen
	if len(s) < end {
		return Header{}, 0, fmt.Errorf("%w: metadata length %d exceeds input", ErrMalformedHeader, metaLen)
	}
	h, err := parseHeaderMetadata(version, s[headerPrefixLen:end])
	if err != nil {
		return Header{}, 0, err
	}
	return h, end, nil
}

// IsValidHeaderIdentifier reports whether s starts with a well-formed header
func IsValidHeaderIdentifier(s string) bool {
	_, _, err := DecodeHeader(s)
	return err == nil
}

// WriteTo writes the encoded header to w
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	encoded, err := EncodeHeader(*h)
	if err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, encoded)
	return int64(n), err
}

// ReadFrom reads exactly one header from r
func (h *Header) ReadFrom(r io.Reader) (int64, error) {
	var totalRead int64

	prefix := make([]byte, headerPrefixLen)
	n, err := io.ReadFull(r, prefix)
	totalRead += int64(n)
	if err != nil {
		return totalRead, fmt.Errorf("%w: failed to read header: %v", ErrMalformedHeader, err)
	}
	version, metaLen, err := parseHeaderPrefix(string(prefix))
	if err != nil {
		return totalRead, err
	}
	if metaLen > maxHeaderMetadataLen {
		return totalRead, fmt.Errorf("%w: metadata length %d too large", ErrMalformedHeader, metaLen)
	}

	metadata := make([]byte, metaLen)
	n, err = io.ReadFull(r, metadata)
	totalRead += int64(n)
	if err != nil {
		return totalRead, fmt.Errorf("%w: failed to read header metadata: %v", ErrMalformedHeader, err)
	}
	parsed, err := parseHeaderMetadata(version, string(metadata))
	if err != nil {
		return totalRead, err
	}
	*h = parsed
	return totalRead, nil
}

func parseHeaderPrefix(prefix string) (uint8, int, error) {
	if !strings.HasPrefix(prefix, HeaderMagic) {
		return 0, 0, fmt.Errorf("%w: invalid identifier", ErrMalformedHeader)
	}
	version, err := parseHex(prefix[len(HeaderMagic):len(HeaderMagic)+2], 8)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid version", ErrMalformedHeader)
	}
	if version == 0 || version > uint64(CurrentHeaderVersion) {
		return 0, 0, fmt.Errorf("%w: unsupported version %d", ErrMalformedHeader, version)
	}
	metaLen, err := parseHex(prefix[len(HeaderMagic)+2:headerPrefixLen], 24)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid metadata length", ErrMalformedHeader)
	}
	if metaLen < headerV1MetadataLen {
		return 0, 0, fmt.Errorf("%w: metadata length %d too short", ErrMalformedHeader, metaLen)
	}
	return uint8(version), int(metaLen), nil
}

func parseHeaderMetadata(version uint8, metadata string) (Header, error) {
	method, err := parseHex(metadata[:2], 8)
	if err != nil {
		return Header{}, fmt.Errorf("%w: invalid method", ErrMalformedHeader)
	}
	id := metadata[2:headerV1MetadataLen]
	if err := ValidateMasterKeyID(id); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	return Header{
		Version:     version,
		Method:      Method(method),
		MasterKeyID: id,
	}, nil
}

// parseHex parses lowercase hex digits only
func parseHex(s string, bitSize int) (uint64, error) {
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseUint(s, 16, bitSize)
}
