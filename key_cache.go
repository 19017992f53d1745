package e2ee

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/awnumar/memguard"
)

type loadedKey struct {
	enclave         *memguard.Enclave
	method          Method
	sourceUpdatedAt time.Time
}

// KeyCache holds decrypted master key material for one Service. Material
// lives in memguard enclaves and only leaves them through MaterialFor.
//
// An entry is tied to the UpdatedAt of the record it was loaded from; once
// the record is saved again the entry is stale and must be reloaded.
type KeyCache struct {
	codec  *MasterKeyCodec
	store  MasterKeyStore
	logger *slog.Logger

	mu       sync.RWMutex
	entries  map[string]*loadedKey
	activeID string
}

// NewKeyCache creates an empty cache. store may be nil, in which case
// staleness is only detected through IsLoaded.
func NewKeyCache(codec *MasterKeyCodec, store MasterKeyStore, logger *slog.Logger) *KeyCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &KeyCache{
		codec:   codec,
		store:   store,
		logger:  logger,
		entries: make(map[string]*loadedKey),
	}
}

// Load decrypts record with password and caches the material. With
// makeActive the key becomes the default for new encryptions. Loading a
// record older than the cached one leaves the cached entry in place.
func (c *KeyCache) Load(record MasterKeyRecord, password string, makeActive bool) error {
	// The KDF is slow; keep it outside the lock.
	material, err := c.codec.Decrypt(record, password)
	if err != nil {
		return err
	}
	enclave := memguard.NewEnclave(material)
	memguard.WipeBytes(material)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[record.ID]; ok && existing.sourceUpdatedAt.After(record.UpdatedAt) {
		c.logger.Debug("kept newer cached master key",
			slog.String("master_key_id", record.ID),
			slog.Time("cached_updated_at", existing.sourceUpdatedAt),
			slog.Time("record_updated_at", record.UpdatedAt))
	} else {
		c.entries[record.ID] = &loadedKey{
			enclave:         enclave,
			method:          record.EncryptionMethod,
			sourceUpdatedAt: record.UpdatedAt,
		}
	}
	if makeActive {
		c.activeID = record.ID
	}

	c.logger.Debug("loaded master key",
		slog.String("master_key_id", record.ID),
		slog.String("method", record.EncryptionMethod.String()),
		slog.Bool("active", makeActive))
	return nil
}

// Unload drops the entry for record.ID. It is a no-op when not loaded.
func (c *KeyCache) Unload(record MasterKeyRecord) {
	c.UnloadID(record.ID)
}

// UnloadID drops the entry for id
func (c *KeyCache) UnloadID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; !ok {
		return
	}
	delete(c.entries, id)
	if c.activeID == id {
		c.activeID = ""
	}
	c.logger.Debug("unloaded master key", slog.String("master_key_id", id))
}

// UnloadAll drops every entry
func (c *KeyCache) UnloadAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*loadedKey)
	c.activeID = ""
	c.logger.Debug("unloaded all master keys", slog.Int("count", n))
}

// IsLoaded reports whether record is cached and the entry came from this
// exact version of the record
func (c *KeyCache) IsLoaded(record MasterKeyRecord) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[record.ID]
	return ok && e.sourceUpdatedAt.Equal(record.UpdatedAt)
}

// MaterialFor returns the cached material for id in a locked buffer. The
// caller must Destroy the buffer when done. It fails with
// ErrMasterKeyNotLoaded when id is not cached, or when a configured store
// holds a newer version of the record than the one loaded.
func (c *KeyCache) MaterialFor(id string) (*memguard.LockedBuffer, error) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMasterKeyNotLoaded, id)
	}

	if c.store != nil {
		record, err := c.store.MasterKey(id)
		switch {
		case errors.Is(err, ErrMasterKeyNotFound):
		case err != nil:
			return nil, fmt.Errorf("failed to read master key %s: %w", id, err)
		case !record.UpdatedAt.Equal(e.sourceUpdatedAt):
			return nil, fmt.Errorf("%w: %s has changed since it was loaded", ErrMasterKeyNotLoaded, id)
		}
	}

	buf, err := e.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open key enclave: %w", err)
	}
	return buf, nil
}

// ActiveMasterKeyID returns the id used when no master key is requested
func (c *KeyCache) ActiveMasterKeyID() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.activeID == "" {
		return "", ErrNoActiveMasterKey
	}
	return c.activeID, nil
}

// SetActiveMasterKeyID makes a loaded key the default for new encryptions
func (c *KeyCache) SetActiveMasterKeyID(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrMasterKeyNotLoaded, id)
	}
	c.activeID = id
	return nil
}

// LoadedIDs returns the ids of all cached keys in ascending order
func (c *KeyCache) LoadedIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
