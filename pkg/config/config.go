// Package config loads service configuration from an optional YAML file with
// environment overrides. Environment wins so deployments can keep a checked-in
// base file and inject secrets at runtime.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	DatabaseURL string `yaml:"database_url"`
	// RedisAddr enables the retrieval result cache when non-empty.
	RedisAddr string `yaml:"redis_addr"`
	// AuditRetention is the per-tenant row cap on the audit log.
	AuditRetention int `yaml:"audit_retention"`
	// RetrievalTimeout bounds one search round-trip; expiry reports
	// unavailable, never no_hits.
	RetrievalTimeout time.Duration `yaml:"retrieval_timeout"`
}

func Default() Config {
	return Config{
		ListenAddr:       ":8084",
		AuditRetention:   10000,
		RetrievalTimeout: 5 * time.Second,
	}
}

// Load reads path when it exists (empty path skips the file entirely) and
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("SERVICE_PORT"); v != "" {
		cfg.ListenAddr = ":" + v
	}
	if v := os.Getenv("RETRIEVAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RetrievalTimeout = d
		}
	}
}
