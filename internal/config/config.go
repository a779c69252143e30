// Package config loads the lanatus YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lanatus/internal/store"
)

// DefaultPath is the configuration file read when --config is not given.
const DefaultPath = "lanatus.yaml"

// Config is the complete configuration.
type Config struct {
	Database Database `yaml:"database"`
	Log      Log      `yaml:"log"`
	Metrics  Metrics  `yaml:"metrics"`
}

// Database selects and tunes the connection provider.
type Database struct {
	// Driver is sqlite3 (mattn, cgo), sqlite (modernc, pure Go) or mysql.
	Driver string `yaml:"driver"`

	// DSN is a file path for the sqlite drivers, a go-sql-driver DSN for mysql.
	DSN string `yaml:"dsn"`

	MaxOpenConns int           `yaml:"max_open_conns"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
}

// Log configures the slog handler.
type Log struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// Metrics configures the metrics endpoint of `lanatus serve`.
type Metrics struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Database: Database{
			Driver:       store.DriverSQLite3,
			DSN:          "./lanatus.db",
			MaxOpenConns: 4,
			BusyTimeout:  store.DefaultBusyTimeout,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Metrics: Metrics{
			Listen: "127.0.0.1:9464",
		},
	}
}

// Load reads path over the defaults. A missing file is only tolerated for
// DefaultPath. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if !slices.Contains(store.Drivers(), c.Database.Driver) {
		return fmt.Errorf("database.driver must be one of %v, got %q", store.Drivers(), c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be positive, got %d", c.Database.MaxOpenConns)
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must not be negative, got %s", c.Database.BusyTimeout)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			return fmt.Errorf("metrics.listen: %w", err)
		}
	}
	return nil
}

// SlogLevel parses Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level must be debug, info, warn or error, got %q", l.Level)
	}
	return level, nil
}

// StoreOptions converts the database section for store.Open.
func (d Database) StoreOptions(logger *slog.Logger) store.Options {
	return store.Options{
		Driver:       d.Driver,
		DSN:          d.DSN,
		MaxOpenConns: d.MaxOpenConns,
		BusyTimeout:  d.BusyTimeout,
		Logger:       logger,
	}
}
