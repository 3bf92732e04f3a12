// Package mekiki is the public API for embedding the mekiki curation
// pipeline.
//
// The batch binary and tests import this package to construct and run one
// harvest-to-review pass without duplicating the wiring:
//
//	app, err := mekiki.New(
//	    mekiki.WithVersion(version),
//	    mekiki.WithLogger(logger),
//	)
//	if err != nil { ... }
//	defer app.Close(context.Background())
//	result, err := app.Run(ctx)
//
// The import graph enforces a strict no-cycle rule: mekiki (root) imports
// internal/*, but internal/* never imports the root. Public types (Result,
// RunSummary) are standalone structs with no internal imports; the
// toPublicSummary converter lives here because this is the only file that
// sees both sides of the boundary.
package mekiki

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/mekiki/internal/arxiv"
	"github.com/ashita-ai/mekiki/internal/config"
	"github.com/ashita-ai/mekiki/internal/figures"
	"github.com/ashita-ai/mekiki/internal/model"
	"github.com/ashita-ai/mekiki/internal/objstore"
	"github.com/ashita-ai/mekiki/internal/secrets"
	"github.com/ashita-ai/mekiki/internal/service/curation"
	"github.com/ashita-ai/mekiki/internal/service/embedding"
	"github.com/ashita-ai/mekiki/internal/service/gemini"
	"github.com/ashita-ai/mekiki/internal/service/review"
	"github.com/ashita-ai/mekiki/internal/service/selector"
	"github.com/ashita-ai/mekiki/internal/service/triage"
	"github.com/ashita-ai/mekiki/internal/storage"
	"github.com/ashita-ai/mekiki/internal/telemetry"
	"github.com/ashita-ai/mekiki/migrations"
)

// App is one configured pipeline. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	db           *storage.DB
	pipeline     *curation.Pipeline
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
}

// New initialises the pipeline. It loads configuration, resolves ARN-backed
// secrets, connects to the database, runs migrations, and wires the four
// stages. It does not start any work; call Run().
func New(opts ...Option) (*App, error) {
	// Apply options.
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	// Resolve ARN-backed secrets before anything needs them. The AWS client
	// is only constructed when a value is actually pending.
	if (cfg.DatabaseURL == "" && cfg.DBSecretARN != "") ||
		(cfg.OpenAIAPIKey == "" && cfg.OpenAISecretARN != "") ||
		(cfg.GeminiAPIKey == "" && cfg.GeminiSecretARN != "") {
		mgr, err := secrets.NewManager(context.Background())
		if err != nil {
			return nil, fmt.Errorf("secrets: %w", err)
		}
		if err := cfg.Resolve(context.Background(), mgr); err != nil {
			return nil, err
		}
	}

	logger.Info("mekiki starting", "version", version)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Connect to database and run migrations.
	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}

	// Create embedding provider. An external override takes priority over
	// the config-selected one.
	var embedder embedding.Provider
	if o.embeddingProvider != nil {
		embedder = o.embeddingProvider
	} else {
		embedder = newEmbeddingProvider(cfg, logger)
	}

	// Create the Gemini client, shared by triage and review.
	llm, err := gemini.New(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("gemini: %w", err)
	}

	// Pick the figure store. A nil uploader records figures without
	// uploading them.
	var uploader objstore.Uploader
	switch {
	case o.objectStore != nil:
		uploader = o.objectStore
	case cfg.FigureBucket != "":
		s3, err := objstore.NewS3Store(context.Background(), cfg.FigureBucket)
		if err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("objstore: %w", err)
		}
		uploader = s3
		logger.Info("figure uploads: s3", "bucket", cfg.FigureBucket)
	default:
		logger.Info("figure uploads: disabled (no FIGURE_BUCKET)")
	}

	// Wire the four stages.
	collector := arxiv.NewClient(cfg.ArxivBaseURL, logger)
	sel := selector.New(db, embedder, logger)
	tri := triage.New(db, llm, logger)
	rev := review.New(db, llm, figures.NewExtractor(uploader, cfg.CDNDomain, logger), logger)

	return &App{
		db:           db,
		pipeline:     curation.New(db, collector, sel, tri, rev, logger),
		otelShutdown: otelShutdown,
		logger:       logger,
	}, nil
}

// Run executes one harvest-to-review pass and returns the trigger-contract
// result. Stage failures are fenced into the batch log and surface in the
// summary's error count rather than aborting the run, so a Result with
// status 200 is returned whenever the pipeline itself completes.
func (a *App) Run(ctx context.Context) (Result, error) {
	summary := a.pipeline.Run(ctx)
	return Result{StatusCode: 200, Body: toPublicSummary(summary)}, nil
}

// Close releases the database pool and flushes telemetry. Call it once,
// after Run has returned.
func (a *App) Close(ctx context.Context) {
	_ = a.otelShutdown(ctx)
	a.db.Close()
	a.logger.Info("mekiki stopped")
}

// toPublicSummary converts the internal run summary to its public mirror.
func toPublicSummary(s model.RunSummary) RunSummary {
	return RunSummary{
		ExecutionDate:     s.ExecutionDate,
		L1DedupCount:      s.L1DedupCount,
		L2PassedCount:     s.L2PassedCount,
		L3RelevantCount:   s.L3RelevantCount,
		FiguresExtracted:  s.FiguresExtracted,
		ProcessingTimeSec: s.ProcessingTimeSec,
		ErrorCount:        s.ErrorCount,
	}
}

// newEmbeddingProvider selects the embedding provider from config.
func newEmbeddingProvider(cfg config.Config, logger *slog.Logger) embedding.Provider {
	if cfg.OpenAIAPIKey != "" {
		logger.Info("embedding: openai", "model", cfg.EmbeddingModel, "dimensions", cfg.EmbeddingDimensions)
		return embedding.NewOpenAIProvider("", cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	}
	logger.Warn("embedding: no OPENAI_API_KEY, papers will embed to zero vectors")
	return embedding.NewNoopProvider(cfg.EmbeddingDimensions)
}
