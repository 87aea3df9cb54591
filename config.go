package vidmark

import (
	"github.com/hazyhaar/vidmark/internal/config"
)

// Config is the top-level vidmark configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls the Chrome connection.
type BrowserConfig = config.BrowserConfig

// StorageConfig locates the bookmark database.
type StorageConfig = config.StorageConfig

// ExportConfig controls where export files land.
type ExportConfig = config.ExportConfig

// DebounceConfig tunes the signal-coalescing windows.
type DebounceConfig = config.DebounceConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	return config.Default()
}
