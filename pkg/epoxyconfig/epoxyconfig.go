// Package epoxyconfig loads epoxyctl's YAML configuration file.
package epoxyconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds epoxyctl's on-disk configuration.
type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	DialAddr    string `yaml:"dial_addr"`
	LogLevel    string `yaml:"log_level"`
	Development bool   `yaml:"development"`
	Tracing     struct {
		Enabled  bool   `yaml:"enabled"`
		Exporter string `yaml:"exporter"`
	} `yaml:"tracing"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultPath returns the default config file path: ~/.epoxy/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".epoxy", "config.yaml")
	}
	return filepath.Join(home, ".epoxy", "config.yaml")
}

// Load reads the configuration from path. A missing file is not an error:
// Load returns the defaults below instead.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr: "127.0.0.1:6477",
		LogLevel:   "info",
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		fmt.Fprintf(os.Stderr,
			"warning: config file %s has permissions %04o — expected 0600.\n",
			path, perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("epoxyconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}
