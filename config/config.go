// Package config loads runtime configuration for the Lucena command-line
// entry points using viper, the config library the teacher's core module
// depends on directly. Unlike mdp.Config (a narrow YAML struct scoped to
// the Broker's own wire-level knobs), this package merges a config file,
// environment variables and command-line flags into one view, the way a
// cobra-based entry point is expected to.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the settings shared by the broker, service and worker
// entry points.
type Config struct {
	Endpoint     string        `mapstructure:"endpoint"`
	LogLevel     string        `mapstructure:"log_level"`
	LokiEndpoint string        `mapstructure:"loki_endpoint"`
	WorkerCount  int           `mapstructure:"workers"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`
}

// defaults mirrors the zero-config behavior a freshly started process
// should have.
func defaults() Config {
	return Config{
		Endpoint:    "tcp://*:5555",
		LogLevel:    "info",
		WorkerCount: 4,
		StopTimeout: 5 * time.Second,
	}
}

// Load builds a Config from, in increasing priority: built-in defaults, a
// config file named lucena.yaml on the search path, LUCENA_-prefixed
// environment variables, and any flags already registered on flags.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	d := defaults()
	v.SetDefault("endpoint", d.Endpoint)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("loki_endpoint", d.LokiEndpoint)
	v.SetDefault("workers", d.WorkerCount)
	v.SetDefault("stop_timeout", d.StopTimeout)

	v.SetConfigName("lucena")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/lucena")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	v.SetEnvPrefix("lucena")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		// Flags are bound under their underscore keys (log-level -> log_level)
		// so they reach the struct fields, and a flag's own default replaces
		// the built-in one.
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			v.SetDefault(key, f.DefValue)
			if bindErr == nil {
				bindErr = v.BindPFlag(key, f)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
