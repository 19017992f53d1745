package e2ee

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// aesKeySize is the AES-256 key size
	aesKeySize = 32

	// cfbMACSize is the HMAC-SHA256 checksum carried by CFB payloads
	cfbMACSize = sha256.Size
)

// CipherEngine provides encryption with optional associated data. Engines
// that are not authenticated ignore aad.
type CipherEngine interface {
	// Seal encrypts plaintext with the given nonce
	Seal(nonce, plaintext, aad []byte) ([]byte, error)

	// Open decrypts ciphertext with the given nonce
	Open(nonce, ciphertext, aad []byte) ([]byte, error)

	// NonceSize returns the size of nonces in bytes
	NonceSize() int

	// Overhead returns the number of bytes Seal adds to the plaintext
	Overhead() int
}

// AESGCMEngine implements CipherEngine using AES-256-GCM
type AESGCMEngine struct {
	aead cipher.AEAD
}

// NewAESGCMEngine creates a new AES-256-GCM cipher engine
func NewAESGCMEngine(key []byte) (*AESGCMEngine, error) {
	if len(key) != aesKeySize {
		return nil, fmt.Errorf("AES-256 requires a 32-byte key, got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMEngine{aead: aead}, nil
}

// Seal encrypts plaintext using AES-256-GCM
func (e *AESGCMEngine) Seal(nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", e.NonceSize(), len(nonce))
	}
	return e.aead.Seal(nil, nonce, plaintext, aad), nil
}

// Open decrypts ciphertext using AES-256-GCM
func (e *AESGCMEngine) Open(nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", e.NonceSize(), len(nonce))
	}

	plaintext, err := e.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthFailed
	}

	return plaintext, nil
}

// NonceSize returns the nonce size for AES-GCM (12 bytes)
func (e *AESGCMEngine) NonceSize() int {
	return e.aead.NonceSize()
}

// Overhead returns the authentication tag size (16 bytes)
func (e *AESGCMEngine) Overhead() int {
	return e.aead.Overhead()
}

// ChaCha20Poly1305Engine implements CipherEngine using ChaCha20-Poly1305
type ChaCha20Poly1305Engine struct {
	aead cipher.AEAD
}

// NewChaCha20Poly1305Engine creates a new ChaCha20-Poly1305 cipher engine
func NewChaCha20Poly1305Engine(key []byte) (*ChaCha20Poly1305Engine, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("ChaCha20-Poly1305 requires a %d-byte key, got %d bytes",
			chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
	}

	return &ChaCha20Poly1305Engine{aead: aead}, nil
}

// Seal encrypts plaintext using ChaCha20-Poly1305
func (e *ChaCha20Poly1305Engine) Seal(nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", e.NonceSize(), len(nonce))
	}
	return e.aead.Seal(nil, nonce, plaintext, aad), nil
}

// Open decrypts ciphertext using ChaCha20-Poly1305
func (e *ChaCha20Poly1305Engine) Open(nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", e.NonceSize(), len(nonce))
	}

	plaintext, err := e.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthFailed
	}

	return plaintext, nil
}

// NonceSize returns the nonce size for ChaCha20-Poly1305 (12 bytes)
func (e *ChaCha20Poly1305Engine) NonceSize() int {
	return e.aead.NonceSize()
}

// Overhead returns the authentication tag size (16 bytes)
func (e *ChaCha20Poly1305Engine) Overhead() int {
	return e.aead.Overhead()
}

// CFBEngine implements CipherEngine using AES-256-CFB. With a MAC key the
// plaintext is prefixed by HMAC-SHA256(aad, plaintext) before encryption and
// verified on Open. Without one it provides confidentiality only.
//
// Format: CFB(iv, [hmac] || plaintext)
type CFBEngine struct {
	block  cipher.Block
	macKey []byte
}

// NewCFBEngine creates a CFB engine. A 32-byte key gives an unauthenticated
// engine; a 64-byte key is split into an encryption key and an HMAC key.
func NewCFBEngine(key []byte) (*CFBEngine, error) {
	var macKey []byte
	switch len(key) {
	case aesKeySize:
	case 2 * aesKeySize:
		// Callers wipe key once the engine is built.
		macKey = bytes.Clone(key[aesKeySize:])
		key = key[:aesKeySize]
	default:
		return nil, fmt.Errorf("AES-256-CFB requires a 32 or 64-byte key, got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	return &CFBEngine{block: block, macKey: macKey}, nil
}

func (e *CFBEngine) sum(plaintext, aad []byte) []byte {
	mac := hmac.New(sha256.New, e.macKey)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(aad)))
	mac.Write(n[:])
	mac.Write(aad)
	mac.Write(plaintext)
	return mac.Sum(nil)
}

// Seal encrypts plaintext using AES-256-CFB
func (e *CFBEngine) Seal(iv, plaintext, aad []byte) ([]byte, error) {
	if len(iv) != e.NonceSize() {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", e.NonceSize(), len(iv))
	}

	out := make([]byte, e.Overhead()+len(plaintext))
	if e.macKey != nil {
		copy(out, e.sum(plaintext, aad))
	}
	copy(out[e.Overhead():], plaintext)

	//nolint:staticcheck // legacy methods are defined on CFB
	cipher.NewCFBEncrypter(e.block, iv).XORKeyStream(out, out)
	return out, nil
}

// Open decrypts ciphertext using AES-256-CFB and verifies the checksum when
// the engine has a MAC key
func (e *CFBEngine) Open(iv, ciphertext, aad []byte) ([]byte, error) {
	if len(iv) != e.NonceSize() {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", e.NonceSize(), len(iv))
	}
	if len(ciphertext) < e.Overhead() {
		return nil, ErrAuthFailed
	}

	buf := make([]byte, len(ciphertext))
	//nolint:staticcheck // legacy methods are defined on CFB
	cipher.NewCFBDecrypter(e.block, iv).XORKeyStream(buf, ciphertext)

	if e.macKey == nil {
		return buf, nil
	}

	got, plaintext := buf[:cfbMACSize], buf[cfbMACSize:]
	if !hmac.Equal(got, e.sum(plaintext, aad)) {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// NonceSize returns the IV size (the AES block size)
func (e *CFBEngine) NonceSize() int {
	return aes.BlockSize
}

// Overhead returns the checksum size, or zero without a MAC key
func (e *CFBEngine) Overhead() int {
	if e.macKey == nil {
		return 0
	}
	return cfbMACSize
}

// NewCipherEngine creates a new cipher engine based on the cipher suite
func NewCipherEngine(suite CipherSuite, key []byte) (CipherEngine, error) {
	switch suite {
	case CipherAES256GCM:
		return NewAESGCMEngine(key)
	case CipherChaCha20Poly1305:
		return NewChaCha20Poly1305Engine(key)
	case CipherAES256CFB:
		return NewCFBEngine(key)
	default:
		return nil, fmt.Errorf("unsupported cipher suite: %v", suite)
	}
}

// keySize returns the key length NewCipherEngine expects. authenticate only
// matters for CFB, which needs an extra HMAC key.
func keySize(suite CipherSuite, authenticate bool) int {
	if suite == CipherAES256CFB && authenticate {
		return 2 * aesKeySize
	}
	return aesKeySize
}

// nonceSize returns the nonce or IV length of the cipher suite
func nonceSize(suite CipherSuite) int {
	switch suite {
	case CipherAES256CFB:
		return aes.BlockSize
	case CipherChaCha20Poly1305:
		return chacha20poly1305.NonceSize
	default:
		return 12 // GCM standard nonce size
	}
}

// GenerateNonce generates a random nonce for the given cipher
func GenerateNonce(suite CipherSuite) ([]byte, error) {
	nonce := make([]byte, nonceSize(suite))
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}
