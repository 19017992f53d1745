package e2ee

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
)

const (
	// MaterialSize is the number of random bytes behind a master key
	MaterialSize = 256

	// MaterialHexLen is the length of the hex-encoded material the rest of
	// the package works with
	MaterialHexLen = 2 * MaterialSize

	// ChecksumLen is the length of a master key checksum (hex SHA-256)
	ChecksumLen = 2 * sha256.Size
)

// MasterKeyRecord is the persisted, password-protected form of a master key.
// Records are produced by Generate and replaced wholesale by Upgrade; they
// are never edited field by field.
type MasterKeyRecord struct {
	ID               string    `json:"id"`
	Content          string    `json:"content"`
	Checksum         string    `json:"checksum,omitempty"`
	EncryptionMethod Method    `json:"encryption_method"`
	CreatedAt        time.Time `json:"created_time"`
	UpdatedAt        time.Time `json:"updated_time"`
}

// KeyOption configures master key generation and upgrade
type KeyOption func(*keyOptions)

type keyOptions struct {
	method Method
}

// WithKeyMethod selects the method used to wrap the master key
func WithKeyMethod(m Method) KeyOption {
	return func(o *keyOptions) {
		o.method = m
	}
}

// MasterKeyCodec generates, unlocks and re-wraps master key records.
// It holds no secrets and is safe for concurrent use.
type MasterKeyCodec struct {
	method Method
	now    func() time.Time
}

// NewMasterKeyCodec creates a codec wrapping new keys with method, or with
// DefaultMethod() when method is zero.
func NewMasterKeyCodec(method Method) *MasterKeyCodec {
	if method == 0 {
		method = DefaultMethod()
	}
	return &MasterKeyCodec{
		method: method,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c *MasterKeyCodec) options(opts []KeyOption) keyOptions {
	o := keyOptions{method: c.method}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Generate creates a master key with fresh random material protected by
// password.
func (c *MasterKeyCodec) Generate(password string, opts ...KeyOption) (MasterKeyRecord, error) {
	if err := ValidatePassword(password); err != nil {
		return MasterKeyRecord{}, err
	}
	o := c.options(opts)
	params, err := LookupMethod(o.method)
	if err != nil {
		return MasterKeyRecord{}, err
	}

	raw := make([]byte, MaterialSize)
	if _, err := rand.Read(raw); err != nil {
		return MasterKeyRecord{}, fmt.Errorf("failed to generate key material: %w", err)
	}
	material := make([]byte, MaterialHexLen)
	hex.Encode(material, raw)
	memguard.WipeBytes(raw)
	defer memguard.WipeBytes(material)

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	now := c.now()
	return c.wrap(id, material, params, password, now, now)
}

// wrap encrypts material under password with params
func (c *MasterKeyCodec) wrap(id string, material []byte, params MethodParams, password string, createdAt, updatedAt time.Time) (MasterKeyRecord, error) {
	secret := []byte(password)
	defer memguard.WipeBytes(secret)

	provider := NewSecretKeyProvider(secret, params.PasswordKDF)
	salt, err := provider.GenerateSalt()
	if err != nil {
		return MasterKeyRecord{}, err
	}
	key, err := provider.DeriveKey(salt, keySize(params.Cipher, false))
	if err != nil {
		return MasterKeyRecord{}, fmt.Errorf("failed to derive key: %w", err)
	}
	defer memguard.WipeBytes(key)

	engine, err := NewCipherEngine(params.Cipher, key)
	if err != nil {
		return MasterKeyRecord{}, fmt.Errorf("failed to create cipher engine: %w", err)
	}
	nonce, err := GenerateNonce(params.Cipher)
	if err != nil {
		return MasterKeyRecord{}, err
	}
	ciphertext, err := engine.Seal(nonce, material, []byte(id))
	if err != nil {
		return MasterKeyRecord{}, fmt.Errorf("failed to encrypt key material: %w", err)
	}

	blob := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)

	record := MasterKeyRecord{
		ID:               id,
		Content:          base64.StdEncoding.EncodeToString(blob),
		EncryptionMethod: params.ID,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}
	if params.RequiresChecksum {
		record.Checksum = materialChecksum(material)
	}
	return record, nil
}

// Decrypt unlocks record with password and returns the hex key material.
// The caller owns the returned slice and should wipe it when done.
func (c *MasterKeyCodec) Decrypt(record MasterKeyRecord, password string) ([]byte, error) {
	if err := ValidateMasterKeyRecord(record); err != nil {
		return nil, err
	}
	params, err := LookupMethod(record.EncryptionMethod)
	if err != nil {
		return nil, err
	}
	if params.RequiresChecksum && len(record.Checksum) != ChecksumLen {
		return nil, NewAuthenticationError(record.ID, "missing or malformed checksum")
	}

	blob, err := base64.StdEncoding.DecodeString(record.Content)
	if err != nil {
		return nil, NewAuthenticationError(record.ID, "content is not valid base64")
	}
	ns := nonceSize(params.Cipher)
	if len(blob) < SaltSize+ns+MaterialHexLen {
		return nil, NewAuthenticationError(record.ID, "content too short")
	}
	salt, nonce, ciphertext := blob[:SaltSize], blob[SaltSize:SaltSize+ns], blob[SaltSize+ns:]

	secret := []byte(password)
	defer memguard.WipeBytes(secret)

	key, err := NewSecretKeyProvider(secret, params.PasswordKDF).DeriveKey(salt, keySize(params.Cipher, false))
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer memguard.WipeBytes(key)

	engine, err := NewCipherEngine(params.Cipher, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher engine: %w", err)
	}
	material, err := engine.Open(nonce, ciphertext, []byte(record.ID))
	if err != nil {
		return nil, NewAuthenticationError(record.ID, "cipher authentication failed")
	}

	if params.RequiresChecksum {
		sum := materialChecksum(material)
		if subtle.ConstantTimeCompare([]byte(sum), []byte(record.Checksum)) != 1 {
			memguard.WipeBytes(material)
			return nil, NewAuthenticationError(record.ID, "checksum mismatch")
		}
	}
	if len(material) != MaterialHexLen {
		memguard.WipeBytes(material)
		return nil, NewAuthenticationError(record.ID, "unexpected key material length")
	}
	return material, nil
}

// CheckPassword reports whether password unlocks record
func (c *MasterKeyCodec) CheckPassword(record MasterKeyRecord, password string) bool {
	material, err := c.Decrypt(record, password)
	if err != nil {
		return false
	}
	memguard.WipeBytes(material)
	return true
}

// Upgrade re-wraps the material of record under the codec's method (or
// WithKeyMethod). The material itself is unchanged; ID and CreatedAt are
// kept and UpdatedAt moves strictly forward. record is not modified.
func (c *MasterKeyCodec) Upgrade(record MasterKeyRecord, password string, opts ...KeyOption) (MasterKeyRecord, error) {
	o := c.options(opts)
	params, err := LookupMethod(o.method)
	if err != nil {
		return MasterKeyRecord{}, err
	}

	material, err := c.Decrypt(record, password)
	if err != nil {
		return MasterKeyRecord{}, err
	}
	defer memguard.WipeBytes(material)

	updatedAt := c.now()
	if !updatedAt.After(record.UpdatedAt) {
		updatedAt = record.UpdatedAt.Add(time.Millisecond)
	}
	return c.wrap(record.ID, material, params, password, record.CreatedAt, updatedAt)
}

// NeedsUpgrade reports whether record uses a non-terminal method. Records
// with unknown methods cannot be unlocked and so are never selected.
func (c *MasterKeyCodec) NeedsUpgrade(record MasterKeyRecord) bool {
	params, err := LookupMethod(record.EncryptionMethod)
	if err != nil {
		return false
	}
	return !params.Terminal
}

// SelectForUpgrade returns the records that need upgrading. Callers must
// not rely on the order of the result.
func (c *MasterKeyCodec) SelectForUpgrade(records []MasterKeyRecord) []MasterKeyRecord {
	var out []MasterKeyRecord
	for _, r := range records {
		if c.NeedsUpgrade(r) {
			out = append(out, r)
		}
	}
	return out
}

func materialChecksum(material []byte) string {
	sum := sha256.Sum256(material)
	return hex.EncodeToString(sum[:])
}
