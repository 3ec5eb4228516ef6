package mdp

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds the broker's configurable parameters. It deliberately omits
// persistence, clustering, authentication and encryption knobs: the
// framework's Non-goals exclude persistent queues, cross-process discovery
// beyond the MMI probe, and authentication.
type Config struct {
	Endpoint string `yaml:"endpoint" default:"tcp://*:5555"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" default:"2500ms"`
	HeartbeatLiveness int           `yaml:"heartbeat_liveness" default:"3"`

	SocketHWM int `yaml:"socket_hwm" default:"500000"`

	LogLevel string `yaml:"log_level" default:"info"`
	EnableMMI bool   `yaml:"enable_mmi" default:"true"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:          "tcp://*:5555",
		HeartbeatInterval: 2500 * time.Millisecond,
		HeartbeatLiveness: 3,
		SocketHWM:         500000,
		LogLevel:          "info",
		EnableMMI:         true,
	}
}

// LoadConfig loads configuration from a YAML file, if present, then applies
// environment variable overrides and validates the result.
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()

	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			data, err := os.ReadFile(filename)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
			}
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
			}
		}
	}

	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *Config) applyEnvironmentOverrides() {
	if val := os.Getenv("LUCENA_BROKER_ENDPOINT"); val != "" {
		c.Endpoint = val
	}
	if val := os.Getenv("LUCENA_HEARTBEAT_INTERVAL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.HeartbeatInterval = duration
		}
	}
	if val := os.Getenv("LUCENA_HEARTBEAT_LIVENESS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.HeartbeatLiveness = i
		}
	}
	if val := os.Getenv("LUCENA_SOCKET_HWM"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.SocketHWM = i
		}
	}
	if val := os.Getenv("LUCENA_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("LUCENA_ENABLE_MMI"); val != "" {
		c.EnableMMI = strings.ToLower(val) == "true"
	}
}

// Validate checks the configuration for obviously invalid values.
func (c *Config) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if c.HeartbeatLiveness <= 0 {
		return fmt.Errorf("heartbeat_liveness must be positive")
	}
	if c.SocketHWM <= 0 {
		return fmt.Errorf("socket_hwm must be positive")
	}

	validLogLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}
	valid := false
	for _, level := range validLogLevels {
		if strings.ToLower(c.LogLevel) == level {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid log_level: %s (valid: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filename, data, 0644)
}

// String returns the YAML representation of the configuration.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
