// Package config provides configuration management for modalkit.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/sadsciencee/modalkit/internal/envelope"
	"github.com/sadsciencee/modalkit/internal/logging"
)

const (
	appName        = "modalkit"
	configFileName = "modalkit.json"
	envPrefix      = "modalkit"
)

// Config is the top-level configuration structure.
type Config struct {
	Relay   RelayConfig   `json:"relay"`
	Log     LogConfig     `json:"log"`
	Journal JournalConfig `json:"journal"`
	Demo    DemoConfig    `json:"demo"`
}

// RelayConfig holds the websocket relay settings.
type RelayConfig struct {
	Listen string `json:"listen"`
	URL    string `json:"url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
	File        string `json:"file"`
}

// JournalConfig controls the lifecycle event journal.
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DemoConfig describes the modal the demo host page mounts.
//
//nolint:govet // Field order is intentional for JSON readability.
type DemoConfig struct {
	Route   string `json:"route"`
	ID      string `json:"id"`
	Variant string `json:"variant"`
	Title   string `json:"title"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			Listen: "127.0.0.1:7345",
			URL:    "ws://127.0.0.1:7345/ws",
		},
		Log: LogConfig{
			Level: "info",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(DataDir(), "journal.db"),
		},
		Demo: DemoConfig{
			Route:   "products",
			ID:      "1",
			Variant: string(envelope.VariantBase),
			Title:   "Products",
		},
	}
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	if _, ok := envelope.ParseVariant(c.Demo.Variant); !ok {
		return fmt.Errorf("demo.variant: unknown variant %q", c.Demo.Variant)
	}
	if c.Demo.Route == "" {
		return fmt.Errorf("demo.route is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Logging converts the log settings for the logging package.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	if c.Log.Development {
		cfg = logging.DevelopmentConfig()
	}
	if c.Log.Level != "" {
		cfg.Level = c.Log.Level
	}
	cfg.File = c.Log.File
	return cfg
}

// Path returns the global config file path.
func Path() string {
	return filepath.Join(xdg.ConfigHome, appName, configFileName)
}

// DataDir returns the directory for the journal and debug logs.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// DebugLogPath returns where --debug writes its log.
func DebugLogPath() string {
	return filepath.Join(DataDir(), "debug.log")
}
