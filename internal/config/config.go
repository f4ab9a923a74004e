// Package config reads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the full server configuration.
type Config struct {
	// Passphrase keys the encrypted store. Required; held only in memory.
	Passphrase string

	DBPath   string
	Host     string
	Port     string
	ModelDir string

	// ONNXRuntime is the path to the onnxruntime shared library; empty
	// uses the loader's default search path.
	ONNXRuntime string

	// Per-minute rate limits. They are only loaded here; the HTTP transport
	// in main.go does not apply them.
	WriteLimit int
	ReadLimit  int
}

// Load reads .env (best-effort) and the environment. A missing passphrase
// is a configuration error and should be fatal at startup.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Passphrase:  os.Getenv("HIPPOCAMPUS_PASSPHRASE"),
		DBPath:      getenv("HIPPOCAMPUS_DB_PATH", "./data/hippocampus.db"),
		Host:        getenv("HIPPOCAMPUS_HOST", "0.0.0.0"),
		Port:        getenv("HIPPOCAMPUS_PORT", "3000"),
		ModelDir:    os.Getenv("HIPPOCAMPUS_MODEL_DIR"),
		ONNXRuntime: os.Getenv("HIPPOCAMPUS_ONNXRUNTIME"),
		WriteLimit:  getenvInt("HIPPOCAMPUS_WRITE_LIMIT", 20),
		ReadLimit:   getenvInt("HIPPOCAMPUS_READ_LIMIT", 60),
	}
	if cfg.Passphrase == "" {
		return nil, fmt.Errorf("HIPPOCAMPUS_PASSPHRASE is required")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
