package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const namespace = "TASKMATCH"

// ServerConfig holds configuration for the taskmatch server. Every field
// can be set through a TASKMATCH_-prefixed environment variable; flags in
// cmd/server override the environment.
type ServerConfig struct {
	Addr          string        `envconfig:"ADDR" default:":8080"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string        `envconfig:"LOG_FORMAT" default:"text"`
	DBPath        string        `envconfig:"DB_PATH" default:"taskmatch.db"`
	SeedFile      string        `envconfig:"SEED_FILE" default:""`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"30m"`
}

// DefaultServerConfig returns the defaults without consulting the
// environment.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:          ":8080",
		LogLevel:      "info",
		LogFormat:     "text",
		DBPath:        "taskmatch.db",
		SweepInterval: 30 * time.Minute,
	}
}

// LoadEnv reads ServerConfig from TASKMATCH_* environment variables.
func LoadEnv() (ServerConfig, error) {
	var cfg ServerConfig
	if err := envconfig.Process(namespace, &cfg); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}
	return cfg, nil
}
