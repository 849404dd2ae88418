// Package config loads molajo settings from the environment and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"

	"github.com/syssam/molajo/dialect"
)

// Environment variables read by Load.
const (
	EnvDialect       = "MOLAJO_DIALECT"
	EnvTablePrefix   = "MOLAJO_TABLE_PREFIX"
	EnvRegistryDir   = "MOLAJO_REGISTRY_DIR"
	EnvDSN           = "MOLAJO_DSN"
	EnvApplicationID = "MOLAJO_APPLICATION_ID"
	EnvSiteID        = "MOLAJO_SITE_ID"
	EnvCacheTTL      = "MOLAJO_CACHE_TTL"
	EnvLogLevel      = "LOG_LEVEL"
)

// Config holds the settings of the molajo-sql command.
type Config struct {
	Dialect     string
	TablePrefix string
	RegistryDir string
	DSN         string // Empty renders statements without running them.

	ApplicationID int64
	SiteID        int64

	CacheTTL time.Duration
	LogLevel slog.Level
}

// Load reads .env files, then the environment. Files default to ".env";
// missing files are ignored and variables already set are never
// overridden.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	c := Config{
		Dialect:       cast.ToString(getOrReturnDefaultValue(EnvDialect, dialect.SQLite)),
		TablePrefix:   cast.ToString(getOrReturnDefaultValue(EnvTablePrefix, "")),
		RegistryDir:   cast.ToString(getOrReturnDefaultValue(EnvRegistryDir, "registry")),
		DSN:           cast.ToString(getOrReturnDefaultValue(EnvDSN, "")),
		ApplicationID: cast.ToInt64(getOrReturnDefaultValue(EnvApplicationID, 1)),
		SiteID:        cast.ToInt64(getOrReturnDefaultValue(EnvSiteID, 1)),
	}

	ttl, err := cast.ToDurationE(getOrReturnDefaultValue(EnvCacheTTL, "10m"))
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", EnvCacheTTL, err)
	}
	c.CacheTTL = ttl

	level := cast.ToString(getOrReturnDefaultValue(EnvLogLevel, "info"))
	if err := c.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", EnvLogLevel, err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	p, ok := dialect.PolicyFor(c.Dialect)
	if !ok {
		return fmt.Errorf("config: %s: unknown dialect %q (want one of %s)", EnvDialect, c.Dialect, strings.Join(dialect.Names(), ", "))
	}
	if c.DSN != "" && DriverName(p.Name) == "" {
		return fmt.Errorf("config: no database driver for dialect %q", p.Name)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("config: %s must not be negative", EnvCacheTTL)
	}
	return nil
}

// DriverName returns the database/sql driver registered for a dialect by
// the molajo-sql command, or "" when it has none.
func DriverName(d string) string {
	switch d {
	case dialect.Postgres:
		return "postgres"
	case dialect.MySQL:
		return "mysql"
	case dialect.SQLite:
		return "sqlite"
	}
	return ""
}

func getOrReturnDefaultValue(key string, defaultValue any) any {
	if val, exists := os.LookupEnv(key); exists && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val)
	}
	return defaultValue
}
