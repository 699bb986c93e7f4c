package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the resolved service settings.
type Config struct {
	Port          string
	TokenLength   int
	SweepInterval time.Duration
	IdleThreshold time.Duration
}

// fileConfig is the raw YAML shape. Durations are strings so the file can
// say "12h" and "24h".
type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Rooms struct {
		TokenLength   int    `yaml:"token_length"`
		SweepInterval string `yaml:"sweep_interval"`
		IdleThreshold string `yaml:"idle_threshold"`
	} `yaml:"rooms"`
}

// Load builds the configuration from defaults, then the YAML file at path
// when it exists, then environment variables. Environment wins.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Port:          "8080",
		TokenLength:   12,
		SweepInterval: 12 * time.Hour,
		IdleThreshold: 24 * time.Hour,
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if fc.Server.Port != "" {
		c.Port = fc.Server.Port
	}
	if fc.Rooms.TokenLength > 0 {
		c.TokenLength = fc.Rooms.TokenLength
	}
	if fc.Rooms.SweepInterval != "" {
		d, err := time.ParseDuration(fc.Rooms.SweepInterval)
		if err != nil {
			return fmt.Errorf("invalid sweep_interval: %w", err)
		}
		c.SweepInterval = d
	}
	if fc.Rooms.IdleThreshold != "" {
		d, err := time.ParseDuration(fc.Rooms.IdleThreshold)
		if err != nil {
			return fmt.Errorf("invalid idle_threshold: %w", err)
		}
		c.IdleThreshold = d
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.TokenLength = getEnvAsInt("TOKEN_LENGTH", c.TokenLength)

	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
		}
		c.SweepInterval = d
	}
	if v := os.Getenv("IDLE_THRESHOLD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid IDLE_THRESHOLD: %w", err)
		}
		c.IdleThreshold = d
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
