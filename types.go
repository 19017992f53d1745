package e2ee

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
)

// CipherSuite represents the encryption algorithm a method uses
type CipherSuite uint8

const (
	// CipherAES256CFB uses AES-256 in CFB mode. It is not authenticated on
	// its own; chunk payloads carry an encrypted HMAC-SHA256 checksum.
	CipherAES256CFB CipherSuite = iota + 1
	// CipherAES256GCM uses AES-256 with Galois/Counter Mode
	CipherAES256GCM
	// CipherChaCha20Poly1305 uses ChaCha20 stream cipher with Poly1305 MAC
	CipherChaCha20Poly1305
)

// String returns the string representation of the cipher suite
func (c CipherSuite) String() string {
	switch c {
	case CipherAES256CFB:
		return "aes-256-cfb"
	case CipherAES256GCM:
		return "aes-256-gcm"
	case CipherChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}

// HashFunc represents hash function types for PBKDF2 and HKDF
type HashFunc uint8

const (
	// SHA256 hash function
	SHA256 HashFunc = iota
	// SHA512 hash function
	SHA512
)

// HashFuncToHash converts HashFunc to a hash constructor
func HashFuncToHash(hf HashFunc) func() hash.Hash {
	switch hf {
	case SHA512:
		return sha512.New
	default:
		return sha256.New
	}
}

// KDFAlgorithm identifies a key derivation function
type KDFAlgorithm uint8

const (
	// KDFPBKDF2 is PBKDF2 (RFC 8018)
	KDFPBKDF2 KDFAlgorithm = iota + 1
	// KDFArgon2id is the memory-hard Argon2id function
	KDFArgon2id
	// KDFHKDF is HKDF (RFC 5869); only suitable for high-entropy input
	KDFHKDF
)

// String returns the string representation of the KDF
func (k KDFAlgorithm) String() string {
	switch k {
	case KDFPBKDF2:
		return "pbkdf2"
	case KDFArgon2id:
		return "argon2id"
	case KDFHKDF:
		return "hkdf"
	default:
		return "unknown"
	}
}

// PBKDF2Params contains parameters for PBKDF2 key derivation
type PBKDF2Params struct {
	Iterations int      // Number of iterations
	HashFunc   HashFunc // Hash function to use
}

// Argon2idParams contains parameters for Argon2id key derivation
type Argon2idParams struct {
	Memory      uint32 // Memory in KiB
	Iterations  uint32 // Number of iterations (time parameter)
	Parallelism uint8  // Degree of parallelism
}

// KDFParams describes one key derivation step of a method. Only the
// parameter block matching Algorithm is used.
type KDFParams struct {
	Algorithm KDFAlgorithm
	PBKDF2    PBKDF2Params
	Argon2id  Argon2idParams
	HKDFHash  HashFunc
	HKDFInfo  string
}

// Config contains configuration for the encryption service
type Config struct {
	// ChunkSize bounds each encrypted chunk. Bytes for byte-safe methods and
	// files, UTF-16 code units for legacy string methods. Zero means
	// DefaultChunkSize.
	ChunkSize int

	// DefaultMethod is used for new string and file encryptions when no
	// method is requested. Zero means DefaultMethod().
	DefaultMethod Method

	// DefaultMasterKeyMethod wraps newly generated and upgraded master keys.
	// Zero means DefaultMethod().
	DefaultMasterKeyMethod Method

	// FS is used by EncryptFile and DecryptFile. Nil means the OS filesystem.
	FS FileSystem

	// Store, when set, is consulted to detect cache entries that no longer
	// match the persisted master key record.
	Store MasterKeyStore

	// Logger receives debug events. Nil discards them.
	Logger *slog.Logger

	// MeterProvider records operation metrics. Nil uses the global provider.
	MeterProvider metric.MeterProvider

	// Parallel controls bulk master key upgrades
	Parallel ParallelConfig
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.ChunkSize != 0 {
		if err := ValidateChunkSize(c.ChunkSize); err != nil {
			return err
		}
	}
	if c.DefaultMethod != 0 {
		if _, err := LookupMethod(c.DefaultMethod); err != nil {
			return &ValidationError{Field: "default_method", Value: c.DefaultMethod, Message: "unknown encryption method", Err: err}
		}
	}
	if c.DefaultMasterKeyMethod != 0 {
		if _, err := LookupMethod(c.DefaultMasterKeyMethod); err != nil {
			return &ValidationError{Field: "default_master_key_method", Value: c.DefaultMasterKeyMethod, Message: "unknown encryption method", Err: err}
		}
	}
	if err := c.Parallel.Validate(); err != nil {
		return &ValidationError{Field: "parallel", Message: err.Error(), Err: err}
	}
	return nil
}

// withDefaults returns a copy of the config with zero values filled in
func (c Config) withDefaults() Config {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.DefaultMethod == 0 {
		c.DefaultMethod = DefaultMethod()
	}
	if c.DefaultMasterKeyMethod == 0 {
		c.DefaultMasterKeyMethod = DefaultMethod()
	}
	if c.FS == nil {
		c.FS = OSFileSystem()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Parallel == (ParallelConfig{}) {
		c.Parallel = DefaultParallelConfig()
	}
	return c
}
