package e2ee

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{EnvChunkSize, EnvDefaultMethod, EnvDefaultMasterKeyMethod, EnvParallelWorkers} {
		t.Setenv(key, "")
	}

	config, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, config.ChunkSize)
	assert.Zero(t, config.DefaultMethod)
	assert.Zero(t, config.Parallel.MaxWorkers)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(EnvChunkSize, "1024")
	t.Setenv(EnvDefaultMethod, "current-chacha")
	t.Setenv(EnvDefaultMasterKeyMethod, "5")
	t.Setenv(EnvParallelWorkers, "3")

	config, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1024, config.ChunkSize)
	assert.Equal(t, MethodCurrentChaCha, config.DefaultMethod)
	assert.Equal(t, MethodCurrent, config.DefaultMasterKeyMethod)
	assert.Equal(t, 3, config.Parallel.MaxWorkers)

	svc, err := New(config)
	require.NoError(t, err)
	defer svc.Close()
	assert.Equal(t, MethodCurrentChaCha, svc.DefaultMethod())
}

func TestLoadConfigFromEnv_DotenvFile(t *testing.T) {
	// Variables set in the environment take precedence over the file.
	t.Setenv(EnvChunkSize, "2048")
	t.Setenv(EnvDefaultMasterKeyMethod, "")
	t.Setenv(EnvParallelWorkers, "")
	t.Setenv(EnvDefaultMethod, "")
	os.Unsetenv(EnvDefaultMethod)

	path := filepath.Join(t.TempDir(), ".env")
	content := EnvChunkSize + "=4096\n" + EnvDefaultMethod + "=legacy-v1-safe\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	config, err := LoadConfigFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 2048, config.ChunkSize)
	assert.Equal(t, MethodLegacyV1Safe, config.DefaultMethod)

	_, err = LoadConfigFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown method", EnvDefaultMethod, "rot13"},
		{"unknown key method", EnvDefaultMasterKeyMethod, "99"},
		{"chunk size too small", EnvChunkSize, "8"},
		{"too many workers", EnvParallelWorkers, "100000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfigFromEnv()
			assert.True(t, IsValidationError(err), "got %v", err)
		})
	}
}
