package mekiki

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	databaseURL       string
	logger            *slog.Logger
	version           string
	embeddingProvider EmbeddingProvider
	objectStore       ObjectStore
}

// WithDatabaseURL overrides the database connection string from config
// (DATABASE_URL env var or DB_SECRET_ARN resolution).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in telemetry and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithEmbeddingProvider replaces the config-selected embedding provider
// (OpenAI when OPENAI_API_KEY is set, noop otherwise).
func WithEmbeddingProvider(p EmbeddingProvider) Option {
	return func(o *resolvedOptions) { o.embeddingProvider = p }
}

// WithObjectStore replaces the config-selected figure store (S3 when
// FIGURE_BUCKET is set; without a bucket figures are recorded but not
// uploaded).
func WithObjectStore(s ObjectStore) Option {
	return func(o *resolvedOptions) { o.objectStore = s }
}
