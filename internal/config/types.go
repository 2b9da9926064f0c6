package config

// OutputFormat selects how CLI commands render results.
type OutputFormat string

// Supported output formats.
const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// FileName is the config file looked up by LoadFromDir.
const FileName = "statekit.toml"

// Config is the decoded statekit.toml.
type Config struct {
	Format  OutputFormat   `toml:"format"`
	Verbose bool           `toml:"verbose"`
	Store   StoreConfig    `toml:"store"`
	Persist PersistConfig  `toml:"persist"`
	Schema  ValidateConfig `toml:"validate"`
}

// StoreConfig is the [store] table.
type StoreConfig struct {
	CascadeMargin int  `toml:"cascade_margin"`
	PathCacheSize int  `toml:"path_cache_size"`
	AutoReset     bool `toml:"auto_reset"`
}

// PersistConfig is the [persist] table.
type PersistConfig struct {
	Database string `toml:"database"`
	Key      string `toml:"key"`
}

// ValidateConfig is the [validate] table.
type ValidateConfig struct {
	Schema string `toml:"schema"`
}
