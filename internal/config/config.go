package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read once from the environment at startup and never mutated afterwards.
type Config struct {
	Port int `env:"PORT" envDefault:"3000"`

	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL"`
	OpenAIModel     string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	OpenAIFastModel string `env:"OPENAI_FAST_MODEL" envDefault:"gpt-3.5-turbo"`
	RequestTimeout  int    `env:"REQUEST_TIMEOUT" envDefault:"120"`
	BreakerEnabled  bool   `env:"BREAKER_ENABLED" envDefault:"true"`

	StaticPath string `env:"STATIC_PATH" envDefault:"./static"`
	SecretKey  string `env:"SECRET_KEY"`

	StoreMode       string `env:"STORE_MODE" envDefault:"fs"`
	RedisAddr       string `env:"REDIS_ADDR"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB"`
	RedisPrefix     string `env:"REDIS_PREFIX" envDefault:"svgcache:"`
	MemoryCacheSize int    `env:"MEMORY_CACHE_SIZE" envDefault:"256"`

	GenerateConcurrencyLimit   int `env:"GENERATE_CONCURRENCY_LIMIT" envDefault:"8"`
	GenerateConcurrencyTimeout int `env:"GENERATE_CONCURRENCY_TIMEOUT" envDefault:"300"`

	TraceExporter    string  `env:"TRACE_EXPORTER" envDefault:"none"`
	TraceSampleRatio float64 `env:"TRACE_SAMPLE_RATIO" envDefault:"1"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	DebugEnabled bool   `env:"DEBUG_ENABLED"`
	DebugLogDir  string `env:"DEBUG_LOG_DIR" envDefault:"debug-logs"`
}

// Load parses the process environment into a Config.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills values that were explicitly set to empty or out of range.
func ApplyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.StaticPath) == "" {
		cfg.StaticPath = "./static"
	}
	if strings.TrimSpace(cfg.OpenAIModel) == "" {
		cfg.OpenAIModel = "gpt-4o"
	}
	if strings.TrimSpace(cfg.OpenAIFastModel) == "" {
		cfg.OpenAIFastModel = "gpt-3.5-turbo"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120
	}
	cfg.StoreMode = strings.ToLower(strings.TrimSpace(cfg.StoreMode))
	if cfg.StoreMode == "" {
		cfg.StoreMode = "fs"
	}
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "svgcache:"
	}
	if cfg.MemoryCacheSize < 0 {
		cfg.MemoryCacheSize = 0
	}
	if cfg.GenerateConcurrencyLimit <= 0 {
		cfg.GenerateConcurrencyLimit = 8
	}
	if cfg.GenerateConcurrencyTimeout <= 0 {
		cfg.GenerateConcurrencyTimeout = 300
	}
	if cfg.DebugLogDir == "" {
		cfg.DebugLogDir = "debug-logs"
	}
	if cfg.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set, generation requests will fail upstream")
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.Port)
	}
	switch strings.ToLower(strings.TrimSpace(c.TraceExporter)) {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unsupported TRACE_EXPORTER: %s", c.TraceExporter)
	}
	switch c.StoreMode {
	case "fs":
	case "redis":
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errors.New("REDIS_ADDR is required when STORE_MODE=redis")
		}
	default:
		return fmt.Errorf("unsupported STORE_MODE: %s", c.StoreMode)
	}
	return nil
}

// Addr is the listen address for net/http.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *Config) GenerateTimeout() time.Duration {
	return time.Duration(c.GenerateConcurrencyTimeout) * time.Second
}

// SlogLevel maps LOG_LEVEL onto a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GenerationRequiresKey reports whether SECRET_KEY gates generation.
func (c *Config) GenerationRequiresKey() bool {
	return c.SecretKey != ""
}

// MaskSensitive shortens a secret for log output.
func MaskSensitive(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
