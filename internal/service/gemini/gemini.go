// Package gemini wraps the Gemini API for relevance triage and full-text
// paper review.
//
// Both operations request structured JSON output and retry with exponential
// backoff on transport errors; malformed or empty model output burns a retry
// without waiting, since an immediate re-ask usually repairs it.
package gemini

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

const (
	backoffBase = 1 * time.Second
	backoffMax  = 32 * time.Second

	maxRetries = 3
)

// generateFunc issues one model call. Indirection keeps the retry and
// parsing logic testable without network access.
type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Client calls Gemini with the pipeline's generation settings.
type Client struct {
	model    string
	logger   *slog.Logger
	generate generateFunc

	backoffBase time.Duration
	backoffMax  time.Duration
}

// New creates a Gemini client for the given model.
func New(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Client{
		model:  model,
		logger: logger,
		generate: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return gc.Models.GenerateContent(ctx, model, contents, cfg)
		},
		backoffBase: backoffBase,
		backoffMax:  backoffMax,
	}, nil
}

// backoff returns the wait before retrying after the given zero-based attempt.
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.backoffBase
	for range attempt {
		wait *= 2
	}
	if wait > c.backoffMax {
		wait = c.backoffMax
	}
	return wait
}

// pause sleeps for d unless the context ends first.
func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
