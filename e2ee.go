package e2ee

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/awnumar/memguard"
)

// Service encrypts and decrypts strings, streams and files with cached
// master keys. Each Service owns its own key cache; nothing is global.
type Service struct {
	config  Config
	codec   *MasterKeyCodec
	cache   *KeyCache
	metrics *serviceMetrics
	logger  *slog.Logger
}

// New creates a new encryption service
func New(config *Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg := config.withDefaults()

	metrics, err := newServiceMetrics(cfg.MeterProvider)
	if err != nil {
		return nil, err
	}

	codec := NewMasterKeyCodec(cfg.DefaultMasterKeyMethod)
	return &Service{
		config:  cfg,
		codec:   codec,
		cache:   NewKeyCache(codec, cfg.Store, cfg.Logger),
		metrics: metrics,
		logger:  cfg.Logger,
	}, nil
}

// Close unloads every cached master key
func (s *Service) Close() error {
	s.cache.UnloadAll()
	return nil
}

// ChunkSize returns the configured chunk bound
func (s *Service) ChunkSize() int {
	return s.config.ChunkSize
}

// DefaultMethod returns the method used for new content
func (s *Service) DefaultMethod() Method {
	return s.config.DefaultMethod
}

// Codec returns the master key codec used by the service
func (s *Service) Codec() *MasterKeyCodec {
	return s.codec
}

// Cache returns the service's key cache
func (s *Service) Cache() *KeyCache {
	return s.cache
}

// GenerateMasterKey creates a new master key record protected by password
func (s *Service) GenerateMasterKey(password string, opts ...KeyOption) (record MasterKeyRecord, err error) {
	start := time.Now()
	o := s.codec.options(opts)
	defer func() { s.metrics.record(context.Background(), opGenerate, o.method, start, err) }()

	record, err = s.codec.Generate(password, opts...)
	if err != nil {
		return MasterKeyRecord{}, NewEncryptionError(opGenerate, "", err)
	}
	s.logger.Debug("generated master key",
		slog.String("master_key_id", record.ID),
		slog.String("method", record.EncryptionMethod.String()))
	return record, nil
}

// LoadMasterKey unlocks record and caches its material. With makeActive
// it becomes the key used when no master key is requested.
func (s *Service) LoadMasterKey(record MasterKeyRecord, password string, makeActive bool) (err error) {
	start := time.Now()
	defer func() { s.metrics.record(context.Background(), opLoad, record.EncryptionMethod, start, err) }()

	if err := s.cache.Load(record, password, makeActive); err != nil {
		return NewEncryptionError(opLoad, record.ID, err)
	}
	return nil
}

// UnloadMasterKey removes record from the cache
func (s *Service) UnloadMasterKey(record MasterKeyRecord) {
	s.cache.Unload(record)
}

// IsMasterKeyLoaded reports whether this version of record is cached
func (s *Service) IsMasterKeyLoaded(record MasterKeyRecord) bool {
	return s.cache.IsLoaded(record)
}

// ActiveMasterKeyID returns the id of the active master key
func (s *Service) ActiveMasterKeyID() (string, error) {
	return s.cache.ActiveMasterKeyID()
}

// SetActiveMasterKey makes a loaded master key the active one
func (s *Service) SetActiveMasterKey(id string) error {
	return s.cache.SetActiveMasterKeyID(id)
}

// CheckMasterKeyPassword reports whether password unlocks record
func (s *Service) CheckMasterKeyPassword(record MasterKeyRecord, password string) bool {
	return s.codec.CheckPassword(record, password)
}

// UpgradeMasterKey re-wraps record under the configured master key method
func (s *Service) UpgradeMasterKey(record MasterKeyRecord, password string, opts ...KeyOption) (upgraded MasterKeyRecord, err error) {
	start := time.Now()
	defer func() { s.metrics.record(context.Background(), opUpgrade, record.EncryptionMethod, start, err) }()

	upgraded, err = s.codec.Upgrade(record, password, opts...)
	if err != nil {
		return MasterKeyRecord{}, NewEncryptionError(opUpgrade, record.ID, err)
	}
	s.logger.Debug("upgraded master key",
		slog.String("master_key_id", record.ID),
		slog.String("from", record.EncryptionMethod.String()),
		slog.String("to", upgraded.EncryptionMethod.String()))
	return upgraded, nil
}

// NeedsUpgrade reports whether record uses a method that should be upgraded
func (s *Service) NeedsUpgrade(record MasterKeyRecord) bool {
	return s.codec.NeedsUpgrade(record)
}

// SelectForUpgrade returns the records that need upgrading, in no
// particular order
func (s *Service) SelectForUpgrade(records []MasterKeyRecord) []MasterKeyRecord {
	return s.codec.SelectForUpgrade(records)
}

// EncryptOption configures a content encryption
type EncryptOption func(*encryptOptions)

type encryptOptions struct {
	method      Method
	masterKeyID string
}

// WithMethod selects the method for one encryption
func WithMethod(m Method) EncryptOption {
	return func(o *encryptOptions) {
		o.method = m
	}
}

// WithMasterKey encrypts with a specific loaded master key instead of the
// active one
func WithMasterKey(id string) EncryptOption {
	return func(o *encryptOptions) {
		o.masterKeyID = id
	}
}

// encryptTarget is everything resolved before the first chunk is written
type encryptTarget struct {
	params   MethodParams
	header   string
	material *memguard.LockedBuffer
	cipher   *ChunkCipher
}

// resolveTarget picks the method and master key for an encryption. The
// caller must destroy t.material.
func (s *Service) resolveTarget(opts []EncryptOption) (t encryptTarget, masterKeyID string, err error) {
	o := encryptOptions{method: s.config.DefaultMethod}
	for _, opt := range opts {
		opt(&o)
	}

	t.params, err = LookupMethod(o.method)
	if err != nil {
		return t, "", err
	}
	masterKeyID = o.masterKeyID
	if masterKeyID == "" {
		if masterKeyID, err = s.cache.ActiveMasterKeyID(); err != nil {
			return t, "", err
		}
	}
	t.header, err = EncodeHeader(Header{Method: o.method, MasterKeyID: masterKeyID})
	if err != nil {
		return t, masterKeyID, err
	}

	t.material, err = s.cache.MaterialFor(masterKeyID)
	if err != nil {
		return t, masterKeyID, err
	}
	t.cipher, err = NewChunkCipher(t.params, t.material.Bytes(), t.header)
	if err != nil {
		t.material.Destroy()
		return t, masterKeyID, err
	}
	return t, masterKeyID, nil
}

// decryptTarget resolves the method and material named by a header. The
// caller must destroy the returned buffer.
func (s *Service) decryptTarget(h Header, rawHeader string) (*ChunkCipher, *memguard.LockedBuffer, error) {
	params, err := LookupMethod(h.Method)
	if err != nil {
		return nil, nil, err
	}
	material, err := s.cache.MaterialFor(h.MasterKeyID)
	if err != nil {
		return nil, nil, err
	}
	cc, err := NewChunkCipher(params, material.Bytes(), rawHeader)
	if err != nil {
		material.Destroy()
		return nil, nil, err
	}
	return cc, material, nil
}

// EncryptString encrypts plainText with the active master key (or
// WithMasterKey) and the default method (or WithMethod). The result is
// plain ASCII.
func (s *Service) EncryptString(plainText string, opts ...EncryptOption) (cipherText string, err error) {
	start := time.Now()
	method := s.config.DefaultMethod
	defer func() { s.metrics.record(context.Background(), opEncryptString, method, start, err) }()

	t, masterKeyID, err := s.resolveTarget(opts)
	if err != nil {
		return "", NewEncryptionError("encrypt", masterKeyID, err)
	}
	defer t.material.Destroy()
	method = t.params.ID

	var chunks [][]byte
	if t.params.ByteSafeChunking {
		chunks = splitBytes([]byte(plainText), s.config.ChunkSize, true)
	} else if chunks, err = splitUTF16(plainText, s.config.ChunkSize); err != nil {
		return "", NewEncryptionError("encrypt", masterKeyID, err)
	}

	var sb strings.Builder
	sb.WriteString(t.header)
	if err := t.cipher.EncryptChunks(chunks, &sb); err != nil {
		return "", NewEncryptionError("encrypt", masterKeyID, err)
	}
	return sb.String(), nil
}

// DecryptString decrypts a value produced by EncryptString. The master
// key named in its header must be loaded.
func (s *Service) DecryptString(cipherText string) (plainText string, err error) {
	start := time.Now()
	var h Header
	defer func() { s.metrics.record(context.Background(), opDecryptString, h.Method, start, err) }()

	h, n, err := DecodeHeader(cipherText)
	if err != nil {
		return "", NewEncryptionError("decrypt", "", err)
	}
	cc, material, err := s.decryptTarget(h, cipherText[:n])
	if err != nil {
		return "", NewEncryptionError("decrypt", h.MasterKeyID, err)
	}
	defer material.Destroy()

	var out bytes.Buffer
	if _, err := cc.DecryptReader(context.Background(), strings.NewReader(cipherText[n:]), &out); err != nil {
		memguard.WipeBytes(out.Bytes())
		return "", NewEncryptionError("decrypt", h.MasterKeyID, err)
	}
	return out.String(), nil
}

// DecodeHeaderString returns the header of cipherText without decrypting
// it, so callers can tell which master key is needed
func (s *Service) DecodeHeaderString(cipherText string) (Header, error) {
	h, _, err := DecodeHeader(cipherText)
	return h, err
}

// EncodeHeader returns the text form of h
func (s *Service) EncodeHeader(h Header) (string, error) {
	return EncodeHeader(h)
}
