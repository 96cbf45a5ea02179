package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvBackend       = "CHAPTERCACHE_BACKEND"
	EnvPath          = "CHAPTERCACHE_PATH"
	EnvDefaultTTL    = "CHAPTERCACHE_DEFAULT_TTL"
	EnvQuotaBytes    = "CHAPTERCACHE_QUOTA_BYTES"
	EnvEviction      = "CHAPTERCACHE_EVICTION"
	EnvCascadeDelete = "CHAPTERCACHE_CASCADE_DELETE"
	EnvPoolSize      = "CHAPTERCACHE_POOL_SIZE"
)

// ApplyEnv loads envFile into the process environment when it exists,
// then overrides cfg with any CHAPTERCACHE_* variables that are set.
// Variables already in the environment win over the file.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if v := env(EnvBackend); v != "" {
		cfg.Backend = Backend(strings.ToLower(v))
	}
	if v := env(EnvPath); v != "" {
		cfg.Path = v
	}
	if v := env(EnvDefaultTTL); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvDefaultTTL, err)
		}
		cfg.DefaultTTL = ttl
	}
	if v := env(EnvQuotaBytes); v != "" {
		quota, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvQuotaBytes, err)
		}
		cfg.QuotaBytes = quota
	}
	if v := env(EnvEviction); v != "" {
		cfg.Eviction = strings.ToLower(v)
	}
	if v := env(EnvCascadeDelete); v != "" {
		cascade, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvCascadeDelete, err)
		}
		cfg.CascadeDelete = cascade
	}
	if v := env(EnvPoolSize); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvPoolSize, err)
		}
		cfg.PoolSize = size
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}
