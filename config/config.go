// Package config loads service settings from the environment.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
)

const (
	BackendAzure  = "azure"
	BackendSQLite = "sqlite"
)

// Config holds the settings shared by the storage-init and index-updater binaries.
type Config struct {
	Debug bool `env:"DEBUG"`

	Backend          string `env:"STORAGE_BACKEND" envDefault:"azure"`
	ConnectionString string `env:"STORAGE_CONNECTION_STRING"`
	ProjectsTable    string `env:"PROJECTS_TABLE" envDefault:"Projects"`
	AccountsTable    string `env:"ACCOUNTS_TABLE" envDefault:"Accounts"`
	MembershipsTable string `env:"MEMBERSHIPS_TABLE" envDefault:"Memberships"`
	RepairQueue      string `env:"INDEX_REPAIR_QUEUE"`
	SQLitePath       string `env:"SQLITE_PATH" envDefault:"projects.db"`

	RedisConnectionString string        `env:"REDIS_CONNECTION_STRING"`
	IndexCacheTTL         time.Duration `env:"INDEX_CACHE_TTL" envDefault:"5m"`
	UpdatesChannel        string        `env:"INDEX_UPDATES_CHANNEL"`

	RebuildIndex      bool          `env:"REBUILD_INDEX"`
	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	MaxRepairAttempts int64         `env:"MAX_REPAIR_ATTEMPTS" envDefault:"5"`
}

// Load parses the process environment into a validated Config.
func Load() (Config, error) {
	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports missing or inconsistent settings.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendAzure:
		if c.ConnectionString == "" || c.ProjectsTable == "" || c.AccountsTable == "" || c.MembershipsTable == "" {
			return errors.New("missing storage config")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
		if c.RepairQueue != "" {
			return errors.New("INDEX_REPAIR_QUEUE requires the azure backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Backend)
	}
	if c.IndexCacheTTL < 0 {
		return fmt.Errorf("invalid INDEX_CACHE_TTL: %s", c.IndexCacheTTL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("invalid POLL_INTERVAL: %s", c.PollInterval)
	}
	if c.MaxRepairAttempts <= 0 {
		return errors.New("invalid MAX_REPAIR_ATTEMPTS: must be greater than zero")
	}
	return nil
}

// RedisOptions parses either a redis:// URL or the Azure Cache style
// "host:port,password=...,ssl=true" form.
func RedisOptions(conn string) (*redis.Options, error) {
	if conn == "" {
		return nil, errors.New("missing redis config")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	if strings.TrimSpace(parts[0]) == "" {
		return nil, fmt.Errorf("invalid redis connection string %q", conn)
	}
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}
