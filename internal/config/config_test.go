package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.APIURL)
	assert.Equal(t, "zh", cfg.Translate.TargetLanguage)
	assert.Equal(t, 3, cfg.Translate.Concurrency)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 7, cfg.Server.NotificationRetentionDays)
}

func TestNewFromEnv_Overrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("LLM_MODEL", "anthropic/claude-3-5-sonnet")
	t.Setenv("TARGET_LANGUAGE", "ja")
	t.Setenv("SEGMENT_CONCURRENCY", "8")
	t.Setenv("COMPACT_LINES", "true")
	t.Setenv("HTTP_ADDR", ":9090")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3-5-sonnet", cfg.LLM.Model)
	assert.Equal(t, "ja", cfg.Translate.TargetLanguage)
	assert.Equal(t, 8, cfg.Translate.Concurrency)
	assert.True(t, cfg.Translate.CompactLines)
	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
}

func TestNewFromEnv_RequiresAPIKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_API_KEY")
}

func TestNewFromEnv_Options(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := NewFromEnv(func(c *Config) {
		c.Translate.TargetLanguage = "ko"
	})
	require.NoError(t, err)
	assert.Equal(t, "ko", cfg.Translate.TargetLanguage)
}

func TestNewFromEnv_InvalidConcurrency(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("SEGMENT_CONCURRENCY", "0")

	_, err := NewFromEnv()
	require.Error(t, err)
}
