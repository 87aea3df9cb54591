// Package config handles vidmark configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level vidmark configuration.
type Config struct {
	// URL is the page the watch tab opens on.
	URL      string         `yaml:"url"`
	Browser  BrowserConfig  `yaml:"browser"`
	Storage  StorageConfig  `yaml:"storage"`
	Export   ExportConfig   `yaml:"export"`
	Debounce DebounceConfig `yaml:"debounce"`
	// Listen is the control API address. Empty disables the API.
	Listen string `yaml:"listen"`
}

// BrowserConfig controls the Chrome connection.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome. Empty = launch.
	Remote  string `yaml:"remote"`
	Headful bool   `yaml:"headful"`
}

// StorageConfig locates the bookmark database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// ExportConfig controls where export files land.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// DebounceConfig tunes the signal-coalescing windows.
type DebounceConfig struct {
	// Navigation is the quiet window for navigation signals.
	Navigation time.Duration `yaml:"navigation"`
	// Markers is the quiet window for marker redraw triggers.
	Markers time.Duration `yaml:"markers"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = "https://www.youtube.com"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "vidmark.db"
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "."
	}
	if c.Debounce.Navigation <= 0 {
		c.Debounce.Navigation = 80 * time.Millisecond
	}
	if c.Debounce.Markers <= 0 {
		c.Debounce.Markers = 120 * time.Millisecond
	}
}
