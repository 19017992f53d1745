package e2ee

import (
	"strings"
	"testing"

	"github.com/absfs/memfs"
	"github.com/stretchr/testify/require"
)

const (
	testPassword  = "correct horse battery staple"
	testChunkSize = 64
)

// multibyteText mixes 1, 2, 3 and 4 byte UTF-8 sequences
const multibyteText = "Hello, wörld! Ελληνικά 日本語のテキスト 🔐🗝️ emoji 😀 done."

// newTestService creates a service over an in-memory filesystem with a
// small chunk size so short payloads span several chunks.
func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()

	if cfg.FS == nil {
		fsys, err := memfs.NewFS()
		require.NoError(t, err)
		cfg.FS = fsys
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = testChunkSize
	}

	svc, err := New(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

// loadTestKey generates a master key wrapped with method and loads it as
// the active key.
func loadTestKey(t *testing.T, svc *Service, method Method) MasterKeyRecord {
	t.Helper()

	record, err := svc.GenerateMasterKey(testPassword, WithKeyMethod(method))
	require.NoError(t, err)
	require.NoError(t, svc.LoadMasterKey(record, testPassword, true))
	return record
}

// longText returns a string of at least n bytes built from multibyteText
func longText(n int) string {
	var sb strings.Builder
	for sb.Len() < n {
		sb.WriteString(multibyteText)
	}
	return sb.String()
}
