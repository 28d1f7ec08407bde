// Package config loads the optional YAML configuration file that supplies
// defaults for settings the CLI flags don't cover on their own (NATS,
// ClickHouse, status server, worker count), as well as fallback defaults
// for -K, -r, -w, -q. CLI flags always win over the file for any field the
// two share.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NATSConfig configures the optional progress-event publisher.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ClickHouseConfig configures the optional per-run audit log writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// StatusConfig configures the optional progress HTTP server.
type StatusConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level structure of the optional -config file. Key,
// ReadPath, WritePath, and Quiet are defaults for the -K, -r, -w, -q flags;
// an explicitly-passed flag always overrides the value given here.
type Config struct {
	NumWorkers int              `yaml:"num_workers"`
	Key        string           `yaml:"key"`
	ReadPath   string           `yaml:"read_path"`
	WritePath  string           `yaml:"write_path"`
	Quiet      bool             `yaml:"quiet"`
	NATS       NATSConfig       `yaml:"nats"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Status     StatusConfig     `yaml:"status"`
}

// Load reads and parses a YAML config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}
