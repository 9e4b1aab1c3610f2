// Package config resolves runtime settings from a YAML file and the environment.
// Precedence, lowest first: defaults, YAML file, environment (.env included).
// Command-line flags are applied on top by the CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a memento run.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	LogLevel    string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat   string `yaml:"log_format"` // text, json

	Live     LiveConfig     `yaml:"live"`
	Detector DetectorConfig `yaml:"detector"`
}

// LiveConfig contains recognition loop settings
type LiveConfig struct {
	Threshold       float64 `yaml:"threshold"`
	SkipInterval    int     `yaml:"skip_interval"`
	Camera          int     `yaml:"camera"`
	Style           string  `yaml:"style"` // box, card
	ShowFPS         bool    `yaml:"show_fps"`
	RefreshOnReload bool    `yaml:"refresh_on_reload"`
}

// DetectorConfig contains face worker settings
type DetectorConfig struct {
	Command  string `yaml:"command"`
	MaxWidth int    `yaml:"max_width"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Live: LiveConfig{
			Threshold:       0.3,
			SkipInterval:    3,
			Camera:          0,
			Style:           "box",
			ShowFPS:         true,
			RefreshOnReload: true,
		},
		Detector: DetectorConfig{
			Command:  "python3 -u python/face_worker.py",
			MaxWidth: 0,
		},
	}
}

// Load builds the configuration. path may be empty; a missing .env is ignored.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.DatabaseURL = getEnv("MEMENTO_DATABASE_URL", c.DatabaseURL)
	if c.DatabaseURL == "" {
		c.DatabaseURL = postgresURLFromEnv()
	}
	c.LogLevel = getEnv("MEMENTO_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("MEMENTO_LOG_FORMAT", c.LogFormat)
	c.Live.Style = getEnv("MEMENTO_STYLE", c.Live.Style)
	c.Detector.Command = getEnv("MEMENTO_DETECTOR_CMD", c.Detector.Command)

	var err error
	if c.Live.Threshold, err = getEnvAsFloat("MEMENTO_THRESHOLD", c.Live.Threshold); err != nil {
		return err
	}
	if c.Live.SkipInterval, err = getEnvAsInt("MEMENTO_SKIP_INTERVAL", c.Live.SkipInterval); err != nil {
		return err
	}
	if c.Live.Camera, err = getEnvAsInt("MEMENTO_CAMERA", c.Live.Camera); err != nil {
		return err
	}
	if c.Detector.MaxWidth, err = getEnvAsInt("MEMENTO_DETECTOR_MAX_WIDTH", c.Detector.MaxWidth); err != nil {
		return err
	}
	return nil
}

// postgresURLFromEnv builds a connection string from POSTGRES_* variables,
// falling back to a local default.
func postgresURLFromEnv() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return "postgres://localhost:5432/memento"
	}
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	name := os.Getenv("POSTGRES_DB")
	port := getEnv("POSTGRES_PORT", "5432")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Live.Threshold < -1 || c.Live.Threshold > 1 {
		return fmt.Errorf("threshold must be between -1.0 and 1.0, got %v", c.Live.Threshold)
	}
	if c.Live.SkipInterval < 1 {
		return fmt.Errorf("skip interval must be at least 1, got %d", c.Live.SkipInterval)
	}
	if c.Live.Camera < 0 {
		return fmt.Errorf("camera index must not be negative, got %d", c.Live.Camera)
	}
	switch c.Live.Style {
	case "box", "card":
	default:
		return fmt.Errorf("style must be box or card, got %q", c.Live.Style)
	}
	if c.Detector.MaxWidth < 0 {
		return fmt.Errorf("detector max width must not be negative, got %d", c.Detector.MaxWidth)
	}
	if strings.TrimSpace(c.Detector.Command) == "" {
		return fmt.Errorf("detector command is empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return n, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", key, value)
	}
	return f, nil
}
