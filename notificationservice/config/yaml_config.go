package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlPushbulletConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Timeout      string `yaml:"timeout"`
	DefaultTitle string `yaml:"default_title"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string               `yaml:"project_id"`
	ListenAddr             string               `yaml:"listen_addr"`
	TopicID                string               `yaml:"topic_id"`
	SubscriptionID         string               `yaml:"subscription_id"`
	SubscriptionDLQTopicID string               `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int                  `yaml:"num_pipeline_workers"`
	IdentityServiceURL     string               `yaml:"identity_service_url"`
	AllowlistExternalDirs  []string             `yaml:"allowlist_external_dirs"`
	CorsConfig             YamlCorsConfig       `yaml:"cors"`
	Pushbullet             YamlPushbulletConfig `yaml:"pushbullet"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	var timeout time.Duration
	if baseCfg.Pushbullet.Timeout != "" {
		d, err := time.ParseDuration(baseCfg.Pushbullet.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid pushbullet.timeout %q: %w", baseCfg.Pushbullet.Timeout, err)
		}
		timeout = d
	}

	cfg := &Config{
		ProjectID:      baseCfg.ProjectID,
		ListenAddr:     baseCfg.ListenAddr,
		TopicID:        baseCfg.TopicID,
		SubscriptionID: baseCfg.SubscriptionID,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Pushbullet: PushbulletConfig{
			APIKey:       baseCfg.Pushbullet.APIKey,
			BaseURL:      baseCfg.Pushbullet.BaseURL,
			Timeout:      timeout,
			DefaultTitle: baseCfg.Pushbullet.DefaultTitle,
		},
		AllowlistDirs:          baseCfg.AllowlistExternalDirs,
		IdentityServiceURL:     baseCfg.IdentityServiceURL,
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
		"allowlist_dirs", len(cfg.AllowlistDirs),
	)

	return cfg, nil
}
