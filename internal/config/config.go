// Package config provides configuration management for the MiniMax auth CLI.
// It handles loading and parsing YAML configuration files, and provides
// structured access to application settings including the auth directory,
// default region, client identifier override, proxy, and logging behavior.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultAuthDirName is the dot-directory under the user's home that holds
// token files when no auth-dir is configured.
const DefaultAuthDirName = ".minimax-auth"

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// AuthDir is the directory where credential files are stored.
	// A leading "~" is expanded to the user's home directory.
	AuthDir string `yaml:"auth-dir"`

	// Region is the default region tag ("cn" or "global") used when the
	// command line does not specify one.
	Region string `yaml:"region"`

	// ClientID overrides the built-in OAuth client identifier when non-empty.
	ClientID string `yaml:"client-id"`

	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug"`

	// LoggingToFile mirrors logs into a rotating file under the auth directory.
	LoggingToFile bool `yaml:"logging-to-file"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		AuthDir: "~/" + DefaultAuthDirName,
		Region:  "cn",
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadConfigOptional behaves like LoadConfig but returns the default
// configuration when the file does not exist and optional is true.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			cfg = DefaultConfig()
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.AuthDir) == "" {
		c.AuthDir = "~/" + DefaultAuthDirName
	}
	if strings.TrimSpace(c.Region) == "" {
		c.Region = "cn"
	}
}

// ResolveAuthDir expands the configured auth directory to an absolute path.
func (c *Config) ResolveAuthDir() (string, error) {
	dir := strings.TrimSpace(c.AuthDir)
	if dir == "" {
		dir = "~/" + DefaultAuthDirName
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return filepath.Clean(dir), nil
}
