// Package config loads the statekit.toml file read by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/roach88/statekit/internal/pathexpr"
	"github.com/roach88/statekit/internal/store"
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Format: FormatText,
		Store: StoreConfig{
			CascadeMargin: store.DefaultCascadeMargin,
			PathCacheSize: pathexpr.DefaultCacheSize,
		},
		Persist: PersistConfig{
			Key: "default",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse config: unknown key %q", undecoded[0].String())
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// LoadFromDir loads statekit.toml from dir.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Validate fills zero values with defaults and rejects invalid settings.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatText, FormatJSON:
	case "":
		c.Format = FormatText
	default:
		return fmt.Errorf("invalid format: %s (must be text or json)", c.Format)
	}

	if c.Store.CascadeMargin < 0 {
		return fmt.Errorf("store.cascade_margin must not be negative: %d", c.Store.CascadeMargin)
	}
	if c.Store.CascadeMargin == 0 {
		c.Store.CascadeMargin = store.DefaultCascadeMargin
	}

	if c.Store.PathCacheSize < 0 {
		return fmt.Errorf("store.path_cache_size must not be negative: %d", c.Store.PathCacheSize)
	}
	if c.Store.PathCacheSize == 0 {
		c.Store.PathCacheSize = pathexpr.DefaultCacheSize
	}

	if c.Persist.Key == "" {
		c.Persist.Key = "default"
	}

	return nil
}

// StoreOptions returns the store options implied by the config.
func (c *Config) StoreOptions() []store.Option {
	opts := []store.Option{store.WithCascadeMargin(c.Store.CascadeMargin)}
	if c.Store.AutoReset {
		opts = append(opts, store.WithAutoReset())
	}
	return opts
}

// Apply sets process-wide settings such as the path cache size.
func (c *Config) Apply() {
	pathexpr.SetDefaultCacheSize(c.Store.PathCacheSize)
}
