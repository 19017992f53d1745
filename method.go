package e2ee

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Method identifies a versioned set of cipher and KDF parameters. Values
// are written into every ciphertext header and master key record, so an id
// is never reused or changed once shipped.
type Method uint8

const (
	// MethodLegacyV1 is the original scheme: AES-256-CFB with PBKDF2-SHA256
	// and naive chunk splitting.
	MethodLegacyV1 Method = 1
	// MethodLegacyV2 raises the PBKDF2 cost and switches to SHA-512.
	MethodLegacyV2 Method = 2
	// MethodLegacyV3 is the first authenticated scheme (AES-256-GCM).
	MethodLegacyV3 Method = 3
	// MethodLegacyV1Safe is MethodLegacyV1 with chunks split on UTF-8
	// boundaries.
	MethodLegacyV1Safe Method = 4
	// MethodCurrent is AES-256-GCM keyed through Argon2id (passwords) and
	// HKDF (content).
	MethodCurrent Method = 5
	// MethodCurrentChaCha is MethodCurrent with ChaCha20-Poly1305, for
	// devices without AES acceleration.
	MethodCurrentChaCha Method = 6
)

// MethodParams holds everything needed to interpret data written with a
// method.
type MethodParams struct {
	ID     Method
	Name   string
	Cipher CipherSuite

	// PasswordKDF turns a user password into the master key wrapping key.
	PasswordKDF KDFParams
	// ContentKDF turns master key material into a per-chunk key.
	ContentKDF KDFParams

	// Authenticated is true when the cipher detects tampering by itself.
	Authenticated bool
	// RequiresChecksum is true when master key records carry a SHA-256
	// checksum of the plaintext material.
	RequiresChecksum bool
	// ByteSafeChunking is true when strings are split on encoded byte
	// boundaries instead of UTF-16 code unit indexes.
	ByteSafeChunking bool
	// Terminal is true for methods master keys are never upgraded away from.
	Terminal bool
}

// String returns the method name
func (m Method) String() string {
	if p, ok := methods[m]; ok {
		return p.Name
	}
	return "unknown(" + strconv.Itoa(int(m)) + ")"
}

var (
	legacyV1KDF = KDFParams{
		Algorithm: KDFPBKDF2,
		PBKDF2:    PBKDF2Params{Iterations: 1000, HashFunc: SHA256},
	}
	legacyV2KDF = KDFParams{
		Algorithm: KDFPBKDF2,
		PBKDF2:    PBKDF2Params{Iterations: 10000, HashFunc: SHA512},
	}
	legacyV3KDF = KDFParams{
		Algorithm: KDFPBKDF2,
		PBKDF2:    PBKDF2Params{Iterations: 10000, HashFunc: SHA256},
	}
	currentPasswordKDF = KDFParams{
		Algorithm: KDFArgon2id,
		Argon2id:  Argon2idParams{Memory: 19 * 1024, Iterations: 2, Parallelism: 1},
	}
)

// methods is append-only.
var methods = map[Method]MethodParams{
	MethodLegacyV1: {
		ID:               MethodLegacyV1,
		Name:             "legacy-v1",
		Cipher:           CipherAES256CFB,
		PasswordKDF:      legacyV1KDF,
		ContentKDF:       legacyV1KDF,
		RequiresChecksum: true,
	},
	MethodLegacyV2: {
		ID:               MethodLegacyV2,
		Name:             "legacy-v2",
		Cipher:           CipherAES256CFB,
		PasswordKDF:      legacyV2KDF,
		ContentKDF:       legacyV2KDF,
		RequiresChecksum: true,
	},
	MethodLegacyV3: {
		ID:            MethodLegacyV3,
		Name:          "legacy-v3",
		Cipher:        CipherAES256GCM,
		PasswordKDF:   legacyV3KDF,
		ContentKDF:    legacyV3KDF,
		Authenticated: true,
	},
	MethodLegacyV1Safe: {
		ID:               MethodLegacyV1Safe,
		Name:             "legacy-v1-safe",
		Cipher:           CipherAES256CFB,
		PasswordKDF:      legacyV1KDF,
		ContentKDF:       legacyV1KDF,
		RequiresChecksum: true,
		ByteSafeChunking: true,
		Terminal:         true,
	},
	MethodCurrent: {
		ID:          MethodCurrent,
		Name:        "current",
		Cipher:      CipherAES256GCM,
		PasswordKDF: currentPasswordKDF,
		ContentKDF: KDFParams{
			Algorithm: KDFHKDF,
			HKDFHash:  SHA512,
			HKDFInfo:  "e2ee/chunk/aes-256-gcm",
		},
		Authenticated:    true,
		ByteSafeChunking: true,
		Terminal:         true,
	},
	MethodCurrentChaCha: {
		ID:          MethodCurrentChaCha,
		Name:        "current-chacha",
		Cipher:      CipherChaCha20Poly1305,
		PasswordKDF: currentPasswordKDF,
		ContentKDF: KDFParams{
			Algorithm: KDFHKDF,
			HKDFHash:  SHA512,
			HKDFInfo:  "e2ee/chunk/chacha20-poly1305",
		},
		Authenticated:    true,
		ByteSafeChunking: true,
		Terminal:         true,
	},
}

// LookupMethod returns the parameters registered for id.
func LookupMethod(id Method) (MethodParams, error) {
	p, ok := methods[id]
	if !ok {
		return MethodParams{}, fmt.Errorf("%w: %d", ErrUnknownMethod, id)
	}
	return p, nil
}

// DefaultMethod returns the method new master keys and content use unless
// configured otherwise.
func DefaultMethod() Method {
	return MethodCurrent
}

// Methods returns every registered method id in ascending order.
func Methods() []Method {
	ids := make([]Method, 0, len(methods))
	for id := range methods {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ParseMethod accepts either a method name ("current") or its numeric id ("5").
func ParseMethod(s string) (Method, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		if _, err := LookupMethod(Method(n)); err != nil {
			return 0, err
		}
		return Method(n), nil
	}
	for id, p := range methods {
		if strings.EqualFold(p.Name, s) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}
