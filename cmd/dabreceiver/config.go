package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional on-disk configuration. When -config points at a
// file, the loaded Config replaces the flag values as a whole; a field
// the file omits takes its zero value. Grounded on the yaml-tagged
// config structs used throughout madpsy-ka9q_ubersdr (e.g. ipban.go's
// BannedIP list).
type Config struct {
	Device      string `yaml:"device"`
	Mode        int    `yaml:"mode"`
	SampleRate  int    `yaml:"sample_rate"`
	ControlAddr string `yaml:"control_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	ScanMode    bool   `yaml:"scan_mode"`
}

// loadConfig reads and parses a YAML config file.
func loadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
