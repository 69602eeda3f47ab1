package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the agent gateway
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Classifier ClassifierConfig `yaml:"classifier"`
	CORS       CORSConfig       `yaml:"cors"`
	Logging    LoggingConfig    `yaml:"logging"`
	Scheduler  SchedulerConfig  `yaml:"scheduler,omitempty"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// OpenAIConfig defines the text-generation backend settings
type OpenAIConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// Configured reports whether the backend has credentials
func (o *OpenAIConfig) Configured() bool {
	return o.APIKey != ""
}

// GetTimeout returns the request timeout as a time.Duration
func (o *OpenAIConfig) GetTimeout() time.Duration {
	if o.Timeout == "" {
		return 120 * time.Second
	}
	d, err := time.ParseDuration(o.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// ClassifierConfig defines intent classification settings
type ClassifierConfig struct {
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// CORSConfig defines allowed browser origins
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulerConfig defines periodic job settings
type SchedulerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	AnnounceCron string `yaml:"announce_cron"`
}

// Load loads configuration from a YAML file with environment variable overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	return &cfg, nil
}

// Default returns a configuration usable without a config file
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8000},
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg
}

// applyDefaults fills unset fields with defaults
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-3.5-turbo"
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 2000
	}
	if c.OpenAI.Temperature == 0 {
		c.OpenAI.Temperature = 0.7
	}
	if c.Classifier.Model == "" {
		c.Classifier.Model = "gpt-3.5-turbo"
	}
	if c.Classifier.MaxTokens == 0 {
		c.Classifier.MaxTokens = 500
	}
	if c.Classifier.Temperature == 0 {
		c.Classifier.Temperature = 0.3
	}
	if len(c.CORS.Origins) == 0 {
		c.CORS.Origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Scheduler.AnnounceCron == "" {
		c.Scheduler.AnnounceCron = "@every 5m"
	}
}

// applyEnvOverrides applies environment variable overrides to the config
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("GATEWAY_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Server.Port)
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		c.OpenAI.APIKey = apiKey
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		c.OpenAI.BaseURL = url
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.OpenAI.MaxTokens < 1 || c.OpenAI.MaxTokens > 4000 {
		return fmt.Errorf("invalid openai max_tokens: %d", c.OpenAI.MaxTokens)
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 1 {
		return fmt.Errorf("invalid openai temperature: %f", c.OpenAI.Temperature)
	}
	return nil
}
