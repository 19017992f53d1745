package e2ee

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// SaltSize is the salt length used by every method
const SaltSize = 16

// KeyProvider derives symmetric keys from a secret and a per-use salt
type KeyProvider interface {
	// DeriveKey derives a keyLen-byte key from the given salt
	DeriveKey(salt []byte, keyLen int) ([]byte, error)

	// GenerateSalt generates a new random salt
	GenerateSalt() ([]byte, error)
}

// SecretKeyProvider implements KeyProvider for a password or key material
// using the KDF parameters of a method.
type SecretKeyProvider struct {
	secret []byte
	params KDFParams
}

// NewSecretKeyProvider creates a key provider. The secret is referenced, not
// copied; the caller keeps ownership and may wipe it after use.
func NewSecretKeyProvider(secret []byte, params KDFParams) *SecretKeyProvider {
	return &SecretKeyProvider{
		secret: secret,
		params: params,
	}
}

// DeriveKey derives an encryption key from the secret and salt
func (p *SecretKeyProvider) DeriveKey(salt []byte, keyLen int) ([]byte, error) {
	if err := ValidateBuffer(p.secret, "secret", 1); err != nil {
		return nil, err
	}
	if err := ValidateBuffer(salt, "salt", SaltSize); err != nil {
		return nil, err
	}
	if err := ValidateSize(keyLen, "key_length", 1, 0); err != nil {
		return nil, err
	}

	switch p.params.Algorithm {
	case KDFArgon2id:
		a := p.params.Argon2id
		return argon2.IDKey(p.secret, salt, a.Iterations, a.Memory, a.Parallelism, uint32(keyLen)), nil

	case KDFPBKDF2:
		pb := p.params.PBKDF2
		if pb.Iterations <= 0 {
			return nil, fmt.Errorf("invalid pbkdf2 iteration count: %d", pb.Iterations)
		}
		return pbkdf2.Key(p.secret, salt, pb.Iterations, keyLen, HashFuncToHash(pb.HashFunc)), nil

	case KDFHKDF:
		r := hkdf.New(HashFuncToHash(p.params.HKDFHash), p.secret, salt, []byte(p.params.HKDFInfo))
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, fmt.Errorf("failed to expand key: %w", err)
		}
		return key, nil

	default:
		return nil, fmt.Errorf("unsupported key derivation function: %v", p.params.Algorithm)
	}
}

// GenerateSalt generates a new random salt
func (p *SecretKeyProvider) GenerateSalt() ([]byte, error) {
	return GenerateSalt()
}

// GenerateSalt returns SaltSize random bytes
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
