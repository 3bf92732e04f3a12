// Package config loads and validates application configuration from environment variables.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

// SecretSource resolves secrets referenced by ARN.
// Implemented by the secrets package; abstracted here so Resolve is testable.
type SecretSource interface {
	DatabaseURL(ctx context.Context, arn string) (string, error)
	APIKey(ctx context.Context, arn string) (string, error)
}

// Config holds all application configuration.
type Config struct {
	// Database settings. DatabaseURL wins when both are set.
	DatabaseURL string
	DBSecretARN string

	// Embedding settings.
	OpenAIAPIKey        string
	OpenAISecretARN     string
	EmbeddingModel      string
	EmbeddingDimensions int

	// Triage and review settings.
	GeminiAPIKey    string
	GeminiSecretARN string
	GeminiModel     string

	// Harvest settings.
	ArxivBaseURL string

	// Figure storage. Empty bucket disables uploads.
	FigureBucket string
	CDNDomain    string

	// HTTP server settings (read API).
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// JWT settings.
	JWTPrivateKeyPath string // Path to Ed25519 private key PEM file.
	JWTPublicKeyPath  string // Path to Ed25519 public key PEM file.
	JWTExpiration     time.Duration

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:         envStr("DATABASE_URL", ""),
		DBSecretARN:         envStr("DB_SECRET_ARN", ""),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		OpenAISecretARN:     envStr("OPENAI_SECRET_ARN", ""),
		EmbeddingModel:      envStr("MEKIKI_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: envInt("MEKIKI_EMBEDDING_DIMENSIONS", 1536),
		GeminiAPIKey:        envStr("GEMINI_API_KEY", ""),
		GeminiSecretARN:     envStr("GEMINI_SECRET_ARN", ""),
		GeminiModel:         envStr("MEKIKI_GEMINI_MODEL", "gemini-2.5-flash"),
		ArxivBaseURL:        envStr("MEKIKI_ARXIV_BASE_URL", "http://export.arxiv.org/api/query"),
		FigureBucket:        envStr("FIGURE_BUCKET", ""),
		CDNDomain:           envStr("CDN_DOMAIN", ""),
		Port:                envInt("MEKIKI_PORT", 8080),
		ReadTimeout:         envDuration("MEKIKI_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("MEKIKI_WRITE_TIMEOUT", 30*time.Second),
		JWTPrivateKeyPath:   envStr("MEKIKI_JWT_PRIVATE_KEY", ""),
		JWTPublicKeyPath:    envStr("MEKIKI_JWT_PUBLIC_KEY", ""),
		JWTExpiration:       envDuration("MEKIKI_JWT_EXPIRATION", 24*time.Hour),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "mekiki"),
		LogLevel:            envStr("MEKIKI_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("MEKIKI_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.DatabaseURL == "" && c.DBSecretARN == "" {
		return fmt.Errorf("config: DATABASE_URL or DB_SECRET_ARN is required")
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("config: MEKIKI_EMBEDDING_DIMENSIONS must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: MEKIKI_MAX_REQUEST_BODY_BYTES must be positive")
	}
	return nil
}

// Resolve fills DatabaseURL and the API keys from their secret ARNs when the
// direct env vars are unset. Direct values always win; resolution is only
// attempted for values that are both empty and have an ARN configured.
func (c *Config) Resolve(ctx context.Context, src SecretSource) error {
	if c.DatabaseURL == "" && c.DBSecretARN != "" {
		url, err := src.DatabaseURL(ctx, c.DBSecretARN)
		if err != nil {
			return fmt.Errorf("config: resolve DB_SECRET_ARN: %w", err)
		}
		c.DatabaseURL = url
	}
	if c.OpenAIAPIKey == "" && c.OpenAISecretARN != "" {
		key, err := src.APIKey(ctx, c.OpenAISecretARN)
		if err != nil {
			return fmt.Errorf("config: resolve OPENAI_SECRET_ARN: %w", err)
		}
		c.OpenAIAPIKey = key
	}
	if c.GeminiAPIKey == "" && c.GeminiSecretARN != "" {
		key, err := src.APIKey(ctx, c.GeminiSecretARN)
		if err != nil {
			return fmt.Errorf("config: resolve GEMINI_SECRET_ARN: %w", err)
		}
		c.GeminiAPIKey = key
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
