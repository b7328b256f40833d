package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Search SearchConfig `yaml:"search"`
	Email  EmailConfig  `yaml:"email"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type SearchConfig struct {
	// BaseURL is the DuckDuckGo HTML endpoint.
	BaseURL        string `yaml:"base_url"`
	MaxSearches    int    `yaml:"max_searches"`
	MaxResults     int    `yaml:"max_results"`
	Parallelism    int    `yaml:"parallelism"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type EmailConfig struct {
	APIKey string `yaml:"api_key"`
	From   string `yaml:"from"`
	To     string `yaml:"to"`
}

// Enabled reports whether all email credentials are present.
func (e EmailConfig) Enabled() bool {
	return e.APIKey != "" && e.From != "" && e.To != ""
}

func Load(configFile string) *Config {
	c := &Config{
		Server: ServerConfig{Port: 7860},
		Log:    LogConfig{Level: "info", Console: true, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
		OpenAI: OpenAIConfig{Model: "gpt-4o-mini"},
		Search: SearchConfig{
			BaseURL:        "https://html.duckduckgo.com",
			MaxSearches:    5,
			MaxResults:     8,
			Parallelism:    4,
			TimeoutSeconds: 30,
		},
	}

	paths := []string{"etc/config-dev.yaml", "/etc/deep-research/config.yaml"}
	if configFile != "" {
		paths = []string{configFile}
	}
	for _, path := range paths {
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, c)
			break
		}
	}

	envOverride(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	envOverride(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	envOverride(&c.OpenAI.Model, "OPENAI_MODEL")
	envOverride(&c.Email.APIKey, "RESEND_API_KEY")
	envOverride(&c.Email.From, "RESEND_FROM_EMAIL")
	envOverride(&c.Email.To, "RESEND_TO_EMAIL")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.File, "LOG_FILE")
	envOverrideInt(&c.Server.Port, "PORT")
	envOverrideInt(&c.Search.Parallelism, "SEARCH_PARALLELISM")

	return c
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
