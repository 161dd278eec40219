// Package config manages the fleet manager's application configuration.
// It handles loading, validating, and providing access to configuration
// settings from YAML files. It includes defaults for all settings and
// implements thread-safe access to configuration values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port            int      `yaml:"port"`
		Host            string   `yaml:"host"`
		AllowedOrigins  []string `yaml:"allowedOrigins"`
		ReadTimeout     int      `yaml:"readTimeout"`
		WriteTimeout    int      `yaml:"writeTimeout"`
		ShutdownTimeout int      `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Scanner struct {
		TargetNetwork   string  `yaml:"targetNetwork"`
		Concurrency     int     `yaml:"concurrency"`
		ProbeTimeout    float64 `yaml:"probeTimeoutSeconds"`
		Frequency       string  `yaml:"frequency"`
		EnableScheduler bool    `yaml:"enableScheduler"`
	} `yaml:"scanner"`

	Telemetry struct {
		Enabled   bool    `yaml:"enabled"`
		Community string  `yaml:"community"`
		Timeout   float64 `yaml:"timeoutSeconds"`
		Retries   int     `yaml:"retries"`
	} `yaml:"telemetry"`

	Provisioning struct {
		AdminUser     string  `yaml:"adminUser"`
		AdminPassword string  `yaml:"adminPassword"`
		Timeout       float64 `yaml:"timeoutSeconds"`
		MaxAttempts   int     `yaml:"maxAttempts"`
		RetryDelay    float64 `yaml:"retryDelaySeconds"`
	} `yaml:"provisioning"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Encryption struct {
		Passphrase string `yaml:"passphrase"`
	} `yaml:"encryption"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	path string
	mu   sync.RWMutex
}

var (
	instance *Config
	once     sync.Once
)

// GetConfig returns the singleton configuration instance
func GetConfig() *Config {
	once.Do(func() {
		instance = &Config{}
		setDefaults(instance)
	})
	return instance
}

// LoadConfig loads configuration from a YAML file
func (c *Config) LoadConfig(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Save path for potential reloading
	c.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("configuration file does not exist: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse configuration file: %w", err)
	}

	// The encryption passphrase may be supplied via environment instead of
	// being written into the config file.
	if env := os.Getenv("RICOH_ENCRYPTION_PASSPHRASE"); env != "" {
		c.Encryption.Passphrase = env
	}
	if env := os.Getenv("RICOH_ADMIN_PASSWORD"); env != "" {
		c.Provisioning.AdminPassword = env
	}

	if dir := filepath.Dir(c.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info().Str("path", path).Msg("Configuration loaded successfully")
	return nil
}

// Reload reloads the configuration from the file
func (c *Config) Reload() error {
	if c.path == "" {
		return errors.New("configuration was not loaded from a file")
	}
	return c.LoadConfig(c.path)
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Scanner.Concurrency <= 0 {
		return fmt.Errorf("invalid scanner concurrency: %d", c.Scanner.Concurrency)
	}

	if c.Scanner.ProbeTimeout <= 0 {
		return fmt.Errorf("invalid probe timeout: %v", c.Scanner.ProbeTimeout)
	}

	if c.Scanner.Frequency != "" {
		if _, err := time.ParseDuration(c.Scanner.Frequency); err != nil {
			return fmt.Errorf("invalid scan frequency: %s", c.Scanner.Frequency)
		}
	}

	if c.Provisioning.MaxAttempts <= 0 {
		return fmt.Errorf("invalid provisioning max attempts: %d", c.Provisioning.MaxAttempts)
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	return nil
}

// GetScanFrequency returns the scan frequency as a parsed duration
func (c *Config) GetScanFrequency() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return time.ParseDuration(c.Scanner.Frequency)
}

// ProbeTimeout returns the per-probe timeout as a duration
func (c *Config) ProbeTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return time.Duration(c.Scanner.ProbeTimeout * float64(time.Second))
}

// ProvisioningTimeout returns the per-request device timeout as a duration
func (c *Config) ProvisioningTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return time.Duration(c.Provisioning.Timeout * float64(time.Second))
}

// RetryDelay returns the busy-retry delay as a duration
func (c *Config) RetryDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return time.Duration(c.Provisioning.RetryDelay * float64(time.Second))
}

// setDefaults initializes the configuration with default values
func setDefaults(c *Config) {
	// Server defaults
	c.Server.Port = 8080
	c.Server.Host = "127.0.0.1"
	c.Server.AllowedOrigins = []string{"*"}
	c.Server.ReadTimeout = 30
	c.Server.WriteTimeout = 120
	c.Server.ShutdownTimeout = 10

	// Scanner defaults
	c.Scanner.TargetNetwork = "192.168.1.0/24"
	c.Scanner.Concurrency = 50
	c.Scanner.ProbeTimeout = 1.0
	c.Scanner.Frequency = "1h"
	c.Scanner.EnableScheduler = false

	// Telemetry defaults: disabled, matching fleets where SNMP is filtered
	c.Telemetry.Enabled = false
	c.Telemetry.Community = "public"
	c.Telemetry.Timeout = 2.0
	c.Telemetry.Retries = 1

	// Provisioning defaults
	c.Provisioning.AdminUser = "admin"
	c.Provisioning.AdminPassword = ""
	c.Provisioning.Timeout = 30.0
	c.Provisioning.MaxAttempts = 3
	c.Provisioning.RetryDelay = 5.0

	// Database defaults
	c.Database.Path = "./data/ricoh.db"

	// Logging defaults
	c.Logging.Level = "info"
	c.Logging.Format = "console"
}
