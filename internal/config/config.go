// Package config provides configuration loading and validation for the
// document composer.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config represents the service configuration that can be loaded from a
// JSON file. All fields are optional; missing values use defaults or
// environment variables.
type Config struct {
	Port int `json:"port,omitempty"` // HTTP listen port

	// Config store
	ConfigStoreURL      string `json:"config_store_url,omitempty"`     // Base URL of the config store (CONFIG_STORE_URL)
	ConfigStoreTimeoutS int    `json:"config_store_timeout,omitempty"` // Request timeout in seconds
	DefaultLabel        string `json:"default_label,omitempty"`        // Store label used when a request carries none

	// Mapping resolution
	CandidateOrder []string `json:"candidate_order,omitempty"` // Fragment patterns, least specific first
}

// DefaultPort is used when neither the file nor PORT specify one.
const DefaultPort = 8080

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv fills unset fields from the environment. CONFIG_STORE_URL
// always wins over the file so deployments can repoint the store
// without editing config.
func (c *Config) FromEnv() {
	if v := os.Getenv("CONFIG_STORE_URL"); v != "" {
		c.ConfigStoreURL = v
	}
	if c.Port == 0 {
		if v := os.Getenv("PORT"); v != "" {
			if p, err := strconv.Atoi(v); err == nil {
				c.Port = p
			}
		}
	}
	if c.DefaultLabel == "" {
		c.DefaultLabel = os.Getenv("CONFIG_STORE_LABEL")
	}
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.ConfigStoreURL == "" {
		return fmt.Errorf("config error: 'config_store_url' is required (set CONFIG_STORE_URL)")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.ConfigStoreTimeoutS < 0 {
		return fmt.Errorf("config error: 'config_store_timeout' must be non-negative")
	}
	return nil
}

// ApplyDefaults fills remaining zero fields with service defaults.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.DefaultLabel == "" {
		c.DefaultLabel = "main"
	}
}

// ConfigStoreTimeout returns the store timeout as a duration.
func (c *Config) ConfigStoreTimeout() time.Duration {
	if c.ConfigStoreTimeoutS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ConfigStoreTimeoutS) * time.Second
}
