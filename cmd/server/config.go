package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, loaded from an optional YAML file
// and overridden by environment variables.
type Config struct {
	Environment string `yaml:"environment"`
	Port        string `yaml:"port"`
	FrontendURL string `yaml:"frontend_url"`

	Session struct {
		DefaultDurationMinutes int           `yaml:"default_duration_minutes"`
		MaxIdleAge             time.Duration `yaml:"max_idle_age"`
		SweepInterval          time.Duration `yaml:"sweep_interval"`
	} `yaml:"session"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	AdminSecretToken string `yaml:"-"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment overrides file values, defaults fill the rest.
	config.Environment = getEnv("ENVIRONMENT", defaultString(config.Environment, "development"))
	config.Port = getEnv("PORT", defaultString(config.Port, "8080"))
	config.FrontendURL = getEnv("FRONTEND_URL", defaultString(config.FrontendURL, "http://localhost:3000"))
	config.Session.DefaultDurationMinutes = getEnvAsInt("SESSION_DEFAULT_DURATION_MINUTES",
		defaultInt(config.Session.DefaultDurationMinutes, 10))
	if config.Session.MaxIdleAge == 0 {
		config.Session.MaxIdleAge = 2 * time.Hour
	}
	if config.Session.SweepInterval == 0 {
		config.Session.SweepInterval = 30 * time.Minute
	}
	config.Redis.Addr = getEnv("REDIS_ADDR", defaultString(config.Redis.Addr, "localhost:6379"))
	config.Redis.Password = getEnv("REDIS_PASSWORD", config.Redis.Password)
	config.Redis.DB = getEnvAsInt("REDIS_DB", config.Redis.DB)
	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)
	config.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX",
		defaultString(config.NATS.SubjectPrefix, "session.events"))
	config.AdminSecretToken = os.Getenv("ADMIN_SECRET_TOKEN")

	return &config, nil
}

func defaultString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func defaultInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}
