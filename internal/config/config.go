// Package config reads the application configuration from
// environment variables, with an optional .env file for local runs.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/MimeLyc/segmented-transcript-translator/internal/backend"
	"github.com/MimeLyc/segmented-transcript-translator/pkg/log"
)

// Config holds all application configuration.
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-4o-mini)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 8000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.7)
// - LLM_TIMEOUT: Request timeout in seconds (default: 120)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// Translation Configuration:
// - TARGET_LANGUAGE: Default target language code (default: zh)
// - SEGMENT_CONCURRENCY: Parallel segment workers per task (default: 3)
// - COMPACT_LINES: Prefer short on-screen lines (default: false)
// - FORMAL_TONE: Force formal register where applicable (default: false)
//
// Server Configuration:
// - HTTP_ADDR: Listen address (default: :8080)
// - DB_PATH: SQLite database path (default: ./data/segtrans.db)
// - LOG_LEVEL: debug|info|warn|error (default: info)
// - NOTIFICATION_RETENTION_DAYS: Days to keep read notifications (default: 7)
type Config struct {
	LLM       backend.Config  `json:"llm"`
	Translate TranslateConfig `json:"translate"`
	Server    ServerConfig    `json:"server"`
}

type TranslateConfig struct {
	TargetLanguage string `json:"target_language"`
	Concurrency    int    `json:"concurrency"`
	CompactLines   bool   `json:"compact_lines"`
	FormalTone     bool   `json:"formal_tone"`
}

type ServerConfig struct {
	HTTPAddr                  string `json:"http_addr"`
	DBPath                    string `json:"db_path"`
	LogLevel                  string `json:"log_level"`
	NotificationRetentionDays int    `json:"notification_retention_days"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from
// environment variables and options. A .env file next to the binary
// is loaded first when present.
func NewFromEnv(opts ...Option) (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		LLM: backend.Config{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 8000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:     getEnvInt("LLM_TIMEOUT", 120),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", ""),
		},
		Translate: TranslateConfig{
			TargetLanguage: getEnvString("TARGET_LANGUAGE", "zh"),
			Concurrency:    getEnvInt("SEGMENT_CONCURRENCY", 3),
			CompactLines:   getEnvBool("COMPACT_LINES", false),
			FormalTone:     getEnvBool("FORMAL_TONE", false),
		},
		Server: ServerConfig{
			HTTPAddr:                  getEnvString("HTTP_ADDR", ":8080"),
			DBPath:                    getEnvString("DB_PATH", "./data/segtrans.db"),
			LogLevel:                  getEnvString("LOG_LEVEL", "info"),
			NotificationRetentionDays: getEnvInt("NOTIFICATION_RETENTION_DAYS", 7),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Info("Config loaded: model=%s target=%s addr=%s",
		config.LLM.Model, config.Translate.TargetLanguage, config.Server.HTTPAddr)
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Translate.Concurrency < 1 {
		return fmt.Errorf("SEGMENT_CONCURRENCY must be at least 1")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
