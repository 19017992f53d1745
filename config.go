package e2ee

import (
	"fmt"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Environment variables read by LoadConfigFromEnv
const (
	EnvChunkSize              = "E2EE_CHUNK_SIZE"
	EnvDefaultMethod          = "E2EE_DEFAULT_METHOD"
	EnvDefaultMasterKeyMethod = "E2EE_DEFAULT_MASTER_KEY_METHOD"
	EnvParallelWorkers        = "E2EE_PARALLEL_WORKERS"
)

// LoadConfigFromEnv builds a Config from the environment. Any dotenv files
// given are loaded first; variables already set in the environment win.
// Methods may be given by name ("current") or id ("5"). Fields that are not
// environment driven (FS, Store, Logger, MeterProvider) are left zero.
func LoadConfigFromEnv(files ...string) (*Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return nil, fmt.Errorf("failed to load env files: %w", err)
		}
	}

	config := &Config{
		ChunkSize: env.GetInt(EnvChunkSize, DefaultChunkSize),
		Parallel: ParallelConfig{
			MaxWorkers: env.GetInt(EnvParallelWorkers, 0),
		},
	}

	var err error
	if config.DefaultMethod, err = methodFromEnv(EnvDefaultMethod); err != nil {
		return nil, err
	}
	if config.DefaultMasterKeyMethod, err = methodFromEnv(EnvDefaultMasterKeyMethod); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func methodFromEnv(key string) (Method, error) {
	s := env.GetString(key, "")
	if s == "" {
		return 0, nil
	}
	m, err := ParseMethod(s)
	if err != nil {
		return 0, &ValidationError{Field: key, Value: s, Message: "unknown encryption method", Err: err}
	}
	return m, nil
}
