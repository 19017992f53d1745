// Package e2ee is the client-side end-to-end encryption layer of a note
// sync application. It protects note fields and attachments before they
// leave the device, using password-protected master keys whose encryption
// scheme has changed over several protocol versions.
//
// # Overview
//
// A master key is 256 random bytes (kept hex encoded) stored only in
// password-encrypted form as a MasterKeyRecord. A Service loads records into
// its key cache and uses the cached material to encrypt and decrypt content.
// Content is always written as text:
//
//	header | chunk | chunk | ...
//
// The header names the method and the master key. Each chunk is
// independently encrypted with its own salt, key and nonce, and is bound to
// the header, its position and whether it is the last chunk, so truncation,
// reordering and appended data are all detected.
//
// # Methods
//
// Methods are versioned parameter sets identified by a small integer that is
// written into every header and record. The registry is append-only:
//
//   - legacy-v1, legacy-v2: AES-256-CFB, PBKDF2, records carry a checksum
//   - legacy-v3: AES-256-GCM, PBKDF2
//   - legacy-v1-safe: legacy-v1 with chunks split on UTF-8 boundaries
//   - current: AES-256-GCM, Argon2id for passwords, HKDF for content
//   - current-chacha: current with ChaCha20-Poly1305
//
// Records using legacy-v1, legacy-v2 or legacy-v3 should be upgraded with
// UpgradeMasterKey or UpgradeAll. Upgrading re-wraps the same material, so
// content written before the upgrade stays readable.
//
// Legacy methods other than legacy-v1-safe split strings by UTF-16 code
// unit. Text whose surrogate pair would straddle a chunk boundary is
// rejected with ErrInvalidInputEncoding instead of being corrupted.
//
// # Basic Usage
//
//	svc, err := e2ee.New(&e2ee.Config{})
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//
//	record, err := svc.GenerateMasterKey("correct horse")
//	if err != nil {
//	    return err
//	}
//	if err := svc.LoadMasterKey(record, "correct horse", true); err != nil {
//	    return err
//	}
//
//	cipherText, err := svc.EncryptString("note body")
//	plainText, err := svc.DecryptString(cipherText)
//
// # Errors
//
// Every failure wraps one of the package sentinels, so callers branch with
// errors.Is:
//
//   - ErrWrongPasswordOrCorruptData: a record could not be unlocked
//   - ErrMasterKeyNotLoaded: load the key named in the header first
//   - ErrDecryptionFailed: a chunk failed authentication or framing
//   - ErrMalformedHeader: the header cannot be parsed
//   - ErrUnknownMethod: written by a newer version
//
// # Security Considerations
//
// Cached material is held in memguard enclaves and only decrypted for the
// duration of one operation. Passwords are strings and cannot be wiped;
// callers that care should keep their lifetime short.
//
// Not protected against:
//   - Memory dumps while an operation is in progress
//   - Key exchange between users (there is none)
//   - Metadata such as ciphertext length and chunk count
package e2ee
