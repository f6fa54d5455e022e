package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

const defaultHTTPTimeout = 10 * time.Second

type PushbulletConfig struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	DefaultTitle string
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int

	CorsConfig         middleware.CorsConfig
	Pushbullet         PushbulletConfig
	AllowlistDirs      []string
	IdentityServiceURL string

	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// PubsubEnabled reports whether requests are also consumed from Pub/Sub.
func (c *Config) PubsubEnabled() bool {
	return c.SubscriptionID != ""
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PUSHBULLET_API_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "PUSHBULLET_API_KEY", "source", "env")
		cfg.Pushbullet.APIKey = val
	}
	if val := os.Getenv("PUSHBULLET_BASE_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "PUSHBULLET_BASE_URL", "source", "env")
		cfg.Pushbullet.BaseURL = val
	}
	if val := os.Getenv("HTTP_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
		}
		logger.Debug("Overriding config value", "key", "HTTP_TIMEOUT", "source", "env")
		cfg.Pushbullet.Timeout = d
	}
	if val := os.Getenv("DEFAULT_TITLE"); val != "" {
		logger.Debug("Overriding config value", "key", "DEFAULT_TITLE", "source", "env")
		cfg.Pushbullet.DefaultTitle = val
	}
	if val := os.Getenv("ALLOWLIST_EXTERNAL_DIRS"); val != "" {
		logger.Debug("Overriding config value", "key", "ALLOWLIST_EXTERNAL_DIRS", "source", "env")
		cfg.AllowlistDirs = splitList(val)
	}
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "TOPIC_ID", "source", "env")
		cfg.TopicID = val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}
	if val := os.Getenv("IDENTITY_SERVICE_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "IDENTITY_SERVICE_URL", "source", "env")
		cfg.IdentityServiceURL = val
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		cfg.CorsConfig.AllowedOrigins = splitList(corsOrigins)
	}

	// 2. Final Validation
	if strings.TrimSpace(cfg.Pushbullet.APIKey) == "" {
		return nil, fmt.Errorf("api_key is required (set via YAML or PUSHBULLET_API_KEY env var)")
	}
	if cfg.PubsubEnabled() && cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required when subscription_id is set (set via YAML or PROJECT_ID env var)")
	}
	if cfg.PubsubEnabled() && cfg.TopicID == "" {
		return nil, fmt.Errorf("topic_id is required when subscription_id is set (set via YAML or TOPIC_ID env var)")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Pushbullet.Timeout <= 0 {
		cfg.Pushbullet.Timeout = defaultHTTPTimeout
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
