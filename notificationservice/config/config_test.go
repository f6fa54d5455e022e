package config_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-pushbullet-service/notificationservice/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ListenAddr:         ":8080",
			NumPipelineWorkers: 2,
			Pushbullet: config.PushbulletConfig{
				APIKey: "base-key",
			},
			AllowlistDirs: []string{"/base/media"},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PUSHBULLET_API_KEY", "env-key")
		t.Setenv("PUSHBULLET_BASE_URL", "http://localhost:9999/v2")
		t.Setenv("HTTP_TIMEOUT", "3s")
		t.Setenv("DEFAULT_TITLE", "Home")
		t.Setenv("ALLOWLIST_EXTERNAL_DIRS", "/media, /config/www ,")
		t.Setenv("PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("SUBSCRIPTION_ID", "env-sub")
		t.Setenv("TOPIC_ID", "env-topic")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-key", finalCfg.Pushbullet.APIKey)
		assert.Equal(t, "http://localhost:9999/v2", finalCfg.Pushbullet.BaseURL)
		assert.Equal(t, 3*time.Second, finalCfg.Pushbullet.Timeout)
		assert.Equal(t, "Home", finalCfg.Pushbullet.DefaultTitle)
		assert.Equal(t, []string{"/media", "/config/www"}, finalCfg.AllowlistDirs)
		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, "env-sub", finalCfg.SubscriptionID)
		assert.Equal(t, "env-topic", finalCfg.TopicID)
		assert.True(t, finalCfg.PubsubEnabled())
		assert.NotNil(t, finalCfg.PubsubConsumerConfig)
	})

	t.Run("Success - Defaults preserved", func(t *testing.T) {
		cfg := baseConfig()
		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "base-key", finalCfg.Pushbullet.APIKey)
		assert.Equal(t, []string{"/base/media"}, finalCfg.AllowlistDirs)
		assert.Equal(t, 10*time.Second, finalCfg.Pushbullet.Timeout)
		assert.False(t, finalCfg.PubsubEnabled())
	})

	t.Run("Validation Failure - Missing API key", func(t *testing.T) {
		cfg := &config.Config{Pushbullet: config.PushbulletConfig{APIKey: "   "}}
		t.Setenv("PUSHBULLET_API_KEY", "")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "api_key is required")
	})

	t.Run("Validation Failure - Subscription without project", func(t *testing.T) {
		cfg := baseConfig()
		cfg.SubscriptionID = "sub"
		t.Setenv("PROJECT_ID", "")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "project_id is required")
	})

	t.Run("Validation Failure - Subscription without topic", func(t *testing.T) {
		cfg := baseConfig()
		cfg.ProjectID = "project"
		cfg.SubscriptionID = "sub"
		t.Setenv("TOPIC_ID", "")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "topic_id is required")
	})

	t.Run("Validation Failure - Bad timeout", func(t *testing.T) {
		cfg := baseConfig()
		t.Setenv("HTTP_TIMEOUT", "soon")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "invalid HTTP_TIMEOUT")
	})
}
