package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 60 * time.Second
	}
	if cfg.Scheduler.WarnFetchAt == 0 {
		cfg.Scheduler.WarnFetchAt = 10 * time.Second
	}
	if cfg.Scheduler.StaleAfter == 0 {
		cfg.Scheduler.StaleAfter = 3 * cfg.Scheduler.Interval
	}
	if cfg.Scheduler.PacingBase == 0 {
		cfg.Scheduler.PacingBase = 100 * time.Millisecond
	}
	if cfg.Scheduler.PacingJitter == 0 {
		cfg.Scheduler.PacingJitter = 200 * time.Millisecond
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "Europe/Moscow"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.SSH.Port == 0 {
		cfg.SSH.Port = 22
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
