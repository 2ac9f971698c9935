package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Global singleton so infrastructure packages can read configuration
// without threading it through every constructor.
var globalConfig *Config

// Config holds all environment backed configuration for chat-api.
type Config struct {
	// HTTP Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9091"`
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	// Auth
	JWKSURL             string        `env:"JWKS_URL,notEmpty"`
	Issuer              string        `env:"ISSUER,notEmpty"`
	Audience            string        `env:"AUDIENCE,notEmpty"`
	RefreshJWKSInterval time.Duration `env:"JWKS_REFRESH_INTERVAL" envDefault:"5m"`

	// Completion provider
	CompletionBaseURL string        `env:"COMPLETION_BASE_URL,notEmpty"`
	CompletionAPIKey  string        `env:"COMPLETION_API_KEY"`
	CompletionModel   string        `env:"COMPLETION_MODEL" envDefault:"gpt-4o-mini"`
	CompletionTimeout time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"120s"`

	// Prompt profiles
	PromptProfilesFile string `env:"PROMPT_PROFILES_FILE"`

	// Sync layer tuning
	CacheTTL            time.Duration `env:"CACHE_TTL" envDefault:"30m"`
	CacheSweepMinutes   int           `env:"CACHE_SWEEP_INTERVAL_MINUTES" envDefault:"10"`
	PreviewDebounce     time.Duration `env:"PREVIEW_DEBOUNCE" envDefault:"200ms"`
	PreviewMessageLimit int           `env:"PREVIEW_MESSAGE_LIMIT" envDefault:"5"`
	RealtimeThrottle    time.Duration `env:"REALTIME_THROTTLE" envDefault:"500ms"`
	RealtimeBufferSize  int           `env:"REALTIME_BUFFER_SIZE" envDefault:"256"`
	SessionIdleTimeout  time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"1h"`

	// Observability / Logging
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	OTLPEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string        `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName      string        `env:"SERVICE_NAME" envDefault:"chat-api"`
	ServiceNamespace string        `env:"SERVICE_NAMESPACE" envDefault:"studyhall"`
	Environment      string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"console"`

	// Features
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`

	// Resolved at load time
	PromptProfiles *PromptProfiles `env:"-"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if _, err := url.ParseRequestURI(cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("invalid JWKS_URL: %w", err)
	}

	cfg.CompletionBaseURL = strings.TrimRight(strings.TrimSpace(cfg.CompletionBaseURL), "/")
	if cfg.CompletionBaseURL == "" {
		return nil, errors.New("COMPLETION_BASE_URL must not be empty")
	}

	profilesFile := strings.TrimSpace(cfg.PromptProfilesFile)
	if profilesFile != "" {
		profiles, err := LoadPromptProfiles(profilesFile)
		if err != nil {
			return nil, fmt.Errorf("load prompt profiles: %w", err)
		}
		cfg.PromptProfiles = profiles
	} else {
		cfg.PromptProfiles = DefaultPromptProfiles()
	}

	globalConfig = cfg
	return cfg, nil
}

// GetGlobal returns the last successfully loaded configuration, or nil.
func GetGlobal() *Config {
	return globalConfig
}
