package e2ee

import (
	"fmt"
	"sort"
	"sync"
)

// MasterKeyStore persists master key records. Persistence and sync are
// owned by the application; the service only reads records to detect
// stale cache entries and saves the results of upgrades.
type MasterKeyStore interface {
	// MasterKey returns the stored record for id, or an error wrapping
	// ErrMasterKeyNotFound.
	MasterKey(id string) (MasterKeyRecord, error)

	// SaveMasterKey replaces the stored record with the same id
	SaveMasterKey(record MasterKeyRecord) error
}

// MemoryKeyStore is a MasterKeyStore held in memory
type MemoryKeyStore struct {
	mu      sync.RWMutex
	records map[string]MasterKeyRecord
}

// NewMemoryKeyStore creates a store seeded with records
func NewMemoryKeyStore(records ...MasterKeyRecord) *MemoryKeyStore {
	s := &MemoryKeyStore{records: make(map[string]MasterKeyRecord, len(records))}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

// MasterKey returns the record stored under id
func (s *MemoryKeyStore) MasterKey(id string) (MasterKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return MasterKeyRecord{}, fmt.Errorf("%w: %s", ErrMasterKeyNotFound, id)
	}
	return r, nil
}

// SaveMasterKey stores record, replacing any record with the same id
func (s *MemoryKeyStore) SaveMasterKey(record MasterKeyRecord) error {
	if err := ValidateMasterKeyRecord(record); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

// MasterKeys returns all stored records ordered by id
func (s *MemoryKeyStore) MasterKeys() []MasterKeyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MasterKeyRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
