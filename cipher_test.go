package e2ee

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestCipherEngines(t *testing.T) {
	tests := []struct {
		name   string
		suite  CipherSuite
		keyLen int
	}{
		{"AES-256-GCM", CipherAES256GCM, 32},
		{"ChaCha20-Poly1305", CipherChaCha20Poly1305, 32},
		{"AES-256-CFB+HMAC", CipherAES256CFB, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewCipherEngine(tt.suite, randomBytes(t, tt.keyLen))
			require.NoError(t, err)

			plaintext := []byte("Hello, World! This is a test message.")
			aad := []byte("header")
			nonce, err := GenerateNonce(tt.suite)
			require.NoError(t, err)
			assert.Equal(t, engine.NonceSize(), len(nonce))

			ciphertext, err := engine.Seal(nonce, plaintext, aad)
			require.NoError(t, err)
			assert.Equal(t, len(plaintext)+engine.Overhead(), len(ciphertext))
			assert.False(t, bytes.Contains(ciphertext, plaintext))

			decrypted, err := engine.Open(nonce, ciphertext, aad)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)

			// wrong associated data
			_, err = engine.Open(nonce, ciphertext, []byte("other"))
			assert.ErrorIs(t, err, ErrAuthFailed)

			// flipped ciphertext bit
			tampered := bytes.Clone(ciphertext)
			tampered[len(tampered)/2] ^= 0x01
			_, err = engine.Open(nonce, tampered, aad)
			assert.ErrorIs(t, err, ErrAuthFailed)

			// wrong nonce size
			_, err = engine.Seal(nonce[1:], plaintext, aad)
			assert.Error(t, err)
		})
	}
}

func TestCFBEngine_KeyWipedAfterCreate(t *testing.T) {
	key := randomBytes(t, 64)
	macKey := bytes.Clone(key[32:])
	engine, err := NewCFBEngine(key)
	require.NoError(t, err)
	clear(key)

	iv, err := GenerateNonce(CipherAES256CFB)
	require.NoError(t, err)
	sealed, err := engine.Seal(iv, []byte("payload"), nil)
	require.NoError(t, err)

	// An engine built from the original MAC key accepts the output; one
	// built from a zeroed key does not.
	want, err := NewCFBEngine(append(make([]byte, 32), macKey...))
	require.NoError(t, err)
	assert.Equal(t, engine.sum([]byte("payload"), nil), want.sum([]byte("payload"), nil))

	zero, err := NewCFBEngine(make([]byte, 64))
	require.NoError(t, err)
	assert.NotEqual(t, engine.sum([]byte("payload"), nil), zero.sum([]byte("payload"), nil))
	assert.Len(t, sealed, cfbMACSize+len("payload"))
}

func TestCFBEngine_Unauthenticated(t *testing.T) {
	engine, err := NewCFBEngine(randomBytes(t, 32))
	require.NoError(t, err)
	assert.Equal(t, 0, engine.Overhead())

	iv, err := GenerateNonce(CipherAES256CFB)
	require.NoError(t, err)

	plaintext := []byte("legacy payload")
	ciphertext, err := engine.Seal(iv, plaintext, nil)
	require.NoError(t, err)
	require.Len(t, ciphertext, len(plaintext))

	decrypted, err := engine.Open(iv, ciphertext, nil)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)

	// No integrity: tampering goes unnoticed at this layer.
	ciphertext[0] ^= 0xff
	decrypted, err = engine.Open(iv, ciphertext, nil)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, decrypted)
}

func TestNewCipherEngine_InvalidKey(t *testing.T) {
	_, err := NewCipherEngine(CipherAES256GCM, make([]byte, 16))
	assert.Error(t, err)

	_, err = NewCipherEngine(CipherChaCha20Poly1305, make([]byte, 31))
	assert.Error(t, err)

	_, err = NewCipherEngine(CipherAES256CFB, make([]byte, 48))
	assert.Error(t, err)

	_, err = NewCipherEngine(CipherSuite(99), make([]byte, 32))
	assert.Error(t, err)
}

func TestKeySize(t *testing.T) {
	assert.Equal(t, 32, keySize(CipherAES256GCM, true))
	assert.Equal(t, 32, keySize(CipherChaCha20Poly1305, true))
	assert.Equal(t, 64, keySize(CipherAES256CFB, true))
	assert.Equal(t, 32, keySize(CipherAES256CFB, false))
}
