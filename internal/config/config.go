// Package config loads application settings from the user config file with
// TASKDECK_* environment overrides. Everything has a sensible default; a
// missing config file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type StoreConfig struct {
	// Dir overrides data directory discovery.
	Dir string `mapstructure:"dir"`
	// Backend is "json" or "sqlite".
	Backend string `mapstructure:"backend"`
	// Backups is how many rotated db.json backups to keep.
	Backups int `mapstructure:"backups"`
}

type LogConfig struct {
	// Level is a zerolog level name; "disabled" turns logging off.
	Level string `mapstructure:"level"`
	// File receives the log stream; the TUI owns stdout.
	File string `mapstructure:"file"`
}

type Config struct {
	Theme string      `mapstructure:"theme"` // light|dark|auto
	Store StoreConfig `mapstructure:"store"`
	Log   LogConfig   `mapstructure:"log"`

	// Columns overrides the default projection per domain.
	Columns map[string][]string `mapstructure:"columns"`

	// AllowSensitiveEdits permits in-grid editing of fields the schema
	// marks sensitive.
	AllowSensitiveEdits bool `mapstructure:"allow_sensitive_edits"`
}

func Default() Config {
	return Config{
		Theme: "auto",
		Store: StoreConfig{Backend: "json", Backups: 3},
		Log:   LogConfig{Level: "warn"},
	}
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".config", "taskdeck")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads config.yaml if present and applies environment overrides
// (TASKDECK_THEME, TASKDECK_STORE_BACKEND, ...).
func Load() (Config, error) {
	cfg := Default()

	path, err := configPath()
	if err != nil {
		// No home directory: run on defaults plus environment.
		path = ""
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}

	v.SetDefault("theme", cfg.Theme)
	v.SetDefault("store.dir", cfg.Store.Dir)
	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.backups", cfg.Store.Backups)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("allow_sensitive_edits", cfg.AllowSensitiveEdits)

	v.SetEnvPrefix("TASKDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		_ = v.ReadInConfig() // ok if missing
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config unmarshal: %w", err)
	}
	if cfg.Store.Backend != "json" && cfg.Store.Backend != "sqlite" {
		return cfg, fmt.Errorf("config: unknown store backend %q", cfg.Store.Backend)
	}
	return cfg, nil
}
