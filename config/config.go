// Package config loads the reviewer service configuration from a YAML file
// with ${VAR} expansion, an optional .env file and environment overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the reviewer service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Logging LoggingConfig `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
	Agent   AgentConfig   `yaml:"agent"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// BaseURL is advertised in the agent card. Defaults to http://host:port.
	BaseURL string `yaml:"base_url"`
}

// Address returns the listen address.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ModelConfig selects and tunes the language model provider.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // "anthropic", "openai" or "mock"
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// StorageConfig selects the task store backend.
type StorageConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`
	// DSN is the database path/DSN for the sqlite driver.
	DSN string `yaml:"dsn"`
}

// AgentConfig tunes the story workflow.
type AgentConfig struct {
	StoryWordCount  int `yaml:"story_word_count"`
	ReviewWordCount int `yaml:"review_word_count"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Model: ModelConfig{
			Provider:    "anthropic",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Agent: AgentConfig{
			StoryWordCount:  100,
			ReviewWordCount: 100,
		},
	}
}

// Load reads the configuration: .env (when present), then the YAML file
// (when path is non-empty), then environment overrides. Missing .env is not
// an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for obvious mistakes.
func (c Config) Validate() error {
	switch c.Model.Provider {
	case "anthropic", "openai", "mock":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage driver sqlite requires a dsn")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

// applyEnvOverrides lets a handful of environment variables override the
// file-level settings, matching common deployment practice.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REVIEWER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REVIEWER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REVIEWER_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("REVIEWER_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("REVIEWER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if cfg.Model.APIKey == "" {
		switch cfg.Model.Provider {
		case "anthropic":
			cfg.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			cfg.Model.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)(?::-([^}]*))?\}`)

// expandEnvVars substitutes ${VAR} and ${VAR:-default} references.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
}
