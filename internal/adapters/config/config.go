// Package config provides the configuration loader for floe.
package config

import (
	"os"
	"path/filepath"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// DefaultCatalogURL is used when neither the config file nor the
// environment names a catalog.
const DefaultCatalogURL = "https://catalog.trai.ch"

// Config is the resolved configuration, threaded through constructors as a
// value rather than read from globals.
type Config struct {
	// CatalogURL is the base URL of the package resolution service.
	CatalogURL string
	// Token authenticates catalog requests. Empty means anonymous.
	Token string
	// RuntimeDir holds per-environment activation state.
	RuntimeDir string
	// DataDir holds durable state such as the environment registry.
	DataDir string
}

// floefile represents the structure of the floe.yaml configuration file.
type floefile struct {
	CatalogURL string `yaml:"catalogUrl"`
	Token      string `yaml:"token"`
	RuntimeDir string `yaml:"runtimeDir"`
	DataDir    string `yaml:"dataDir"`
}

// Load reads the config file at path if it exists, then applies environment
// overrides (FLOE_CATALOG_URL, FLOE_TOKEN, FLOE_RUNTIME_DIR, FLOE_DATA_DIR)
// and fills defaults.
func Load(path string) (*Config, error) {
	var file floefile
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, zerr.Wrap(err, "failed to read config file")
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, zerr.Wrap(err, "failed to parse config file")
		}
	}

	cfg := &Config{
		CatalogURL: file.CatalogURL,
		Token:      file.Token,
		RuntimeDir: file.RuntimeDir,
		DataDir:    file.DataDir,
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// DefaultPath is ~/.config/floe/floe.yaml, or the cwd fallback when the
// home directory can't be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "floe.yaml"
	}
	return filepath.Join(home, ".config", "floe", "floe.yaml")
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FLOE_CATALOG_URL"); v != "" {
		cfg.CatalogURL = v
	}
	if v := os.Getenv("FLOE_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("FLOE_RUNTIME_DIR"); v != "" {
		cfg.RuntimeDir = v
	}
	if v := os.Getenv("FLOE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.CatalogURL == "" {
		cfg.CatalogURL = DefaultCatalogURL
	}
	if cfg.RuntimeDir == "" {
		cfg.RuntimeDir = filepath.Join(os.TempDir(), "floe")
	}
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DataDir = filepath.Join(home, ".local", "share", "floe")
		} else {
			cfg.DataDir = filepath.Join(os.TempDir(), "floe-data")
		}
	}
}
