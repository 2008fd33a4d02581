package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"

	"github.com/quenty/webchannel-server-go/internal/model"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                    int    `env:"PORT" envDefault:"8080"`
	WebchannelSecret        string `env:"WEBCHANNEL_SECRET,required"`
	AdminToken              string `env:"ADMIN_TOKEN"`
	PipelineURL             string `env:"PIPELINE_URL"`
	PipelineSignatureSecret string `env:"PIPELINE_SIGNATURE_SECRET"`
	DatabaseURL             string `env:"DATABASE_URL"`
	RedisURL                string `env:"REDIS_URL"`
	TrendsTTLSeconds        int    `env:"CACHE_TRENDS_TTL_SECONDS" envDefault:"600"`
	TopicsTTLSeconds        int    `env:"CACHE_TOPICS_TTL_SECONDS" envDefault:"900"`
	SummaryTTLSeconds       int    `env:"CACHE_SUMMARY_TTL_SECONDS" envDefault:"1800"`
	LogLevel                string `env:"LOG_LEVEL" envDefault:"info"`
}

// CacheTTLs returns the per-kind freshness windows injected into the cache.
func (c *Config) CacheTTLs() map[model.ContentKind]time.Duration {
	return map[model.ContentKind]time.Duration{
		model.ContentKindTrends:  time.Duration(c.TrendsTTLSeconds) * time.Second,
		model.ContentKindTopics:  time.Duration(c.TopicsTTLSeconds) * time.Second,
		model.ContentKindSummary: time.Duration(c.SummaryTTLSeconds) * time.Second,
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if isProduction {
		if err := validateSecret("WEBCHANNEL_SECRET", c.WebchannelSecret); err != nil {
			return err
		}
		if err := validateSecret("ADMIN_TOKEN", c.AdminToken); err != nil {
			return err
		}

		if c.PipelineSignatureSecret == "" {
			log.Warn().Msg("PIPELINE_SIGNATURE_SECRET is empty in production: callback signature verification disabled")
		}
		if c.RedisURL != "" && strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
