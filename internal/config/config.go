// Package config loads the optional apix YAML configuration file.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/AnyUserName/apix-cli/internal/archive"
	"github.com/AnyUserName/apix-cli/internal/fetch"
	"gopkg.in/yaml.v3"
)

// Config holds all apix configuration.
type Config struct {
	Fetch    FetchConfig    `yaml:"fetch"`
	Export   ExportConfig   `yaml:"export"`
	Metadata MetadataConfig `yaml:"metadata"`
	Server   ServerConfig   `yaml:"server"`
}

// FetchConfig controls how assets are downloaded.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
	UserAgent string        `yaml:"user_agent"`
}

// ExportConfig controls the batch export pipeline.
type ExportConfig struct {
	Workers          int  `yaml:"workers"`
	CompressionLevel int  `yaml:"compression_level"` // flate level, 0 = default
	WriteReport      bool `yaml:"write_report"`
}

// MetadataConfig controls session metadata embedding.
type MetadataConfig struct {
	Enabled *bool `yaml:"enabled"` // nil means true
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

func (c *Config) defaults() {
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 64 << 20
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "apix/1.0"
	}
	if c.Export.Workers <= 0 {
		c.Export.Workers = runtime.NumCPU()
	}
	if c.Metadata.Enabled == nil {
		on := true
		c.Metadata.Enabled = &on
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 128 << 20
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.defaults()
	return c
}

// LoadConfigFile reads a YAML config file and fills unset fields with
// defaults. An empty path returns Default().
func LoadConfigFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.defaults()
	if _, err := archive.NewZipWriter(cfg.Export.CompressionLevel); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// MetadataEnabled reports whether PNG exports carry session metadata.
func (c *Config) MetadataEnabled() bool {
	return c.Metadata.Enabled == nil || *c.Metadata.Enabled
}

// FetchOptions converts the fetch section for fetch.New.
func (c *Config) FetchOptions() fetch.Config {
	return fetch.Config{
		Timeout:   c.Fetch.Timeout,
		MaxBytes:  c.Fetch.MaxBytes,
		UserAgent: c.Fetch.UserAgent,
	}
}
