// Package arxiv harvests newly submitted papers from the arXiv Atom API.
//
// Six category queries run sequentially against a one-day submission window,
// honoring the API's three-second pacing rule, and the merged result is
// deduplicated by arXiv id.
package arxiv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ashita-ai/mekiki/internal/model"
)

const (
	// DefaultBaseURL is the public arXiv API endpoint.
	DefaultBaseURL = "http://export.arxiv.org/api/query"

	// rateLimit is the pause after every query, per arXiv API terms.
	rateLimit = 3 * time.Second

	requestTimeout = 30 * time.Second
	maxRetries     = 3
)

// Client fetches and parses arXiv search results.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// pacing between queries and 503 backoff base; shortened in tests.
	interval time.Duration
}

// NewClient creates an arXiv client. An empty baseURL targets the public API.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger:   logger,
		interval: rateLimit,
	}
}

// HarvestWindow returns the submission window for a run at the given time:
// yesterday 00:00 UTC up to (exclusive) today 00:00 UTC.
func HarvestWindow(now time.Time) model.DateRange {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return model.DateRange{Start: today.AddDate(0, 0, -1), End: today}
}

// windowBound formats a window edge the way submittedDate expects.
func windowBound(t time.Time) string {
	return t.Format("20060102") + "0000"
}

// Collect runs all category queries for the window ending at now and returns
// the deduplicated papers alongside the pre-dedup count. Individual query
// failures are logged and yield no papers; only context cancellation aborts
// the harvest.
func (c *Client) Collect(ctx context.Context, now time.Time) (model.Harvest, error) {
	window := HarvestWindow(now)
	start := windowBound(window.Start)
	end := windowBound(window.End)

	c.logger.Info("arxiv: collection started", "start", start, "end", end)

	var all []model.Paper
	for _, q := range Queries {
		papers, err := c.fetchQuery(ctx, q, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return model.Harvest{Window: window}, ctx.Err()
			}
			c.logger.Error("arxiv: query failed", "category_id", q.CategoryID, "label", q.Label, "error", err)
		}

		c.logger.Info("arxiv: query done", "category_id", q.CategoryID, "label", q.Label, "raw_count", len(papers))
		all = append(all, papers...)

		if err := c.pause(ctx, c.interval); err != nil {
			return model.Harvest{Window: window}, err
		}
	}

	deduped := dedupe(all)
	c.logger.Info("arxiv: collection completed", "total_raw", len(all), "after_dedup", len(deduped))
	return model.Harvest{Papers: deduped, Window: window, RawCount: len(all)}, nil
}

// fetchQuery requests one category query and parses the feed. 503 responses
// back off at interval*3^attempt; timeouts retry after a flat interval; any
// other failure aborts the query.
func (c *Client) fetchQuery(ctx context.Context, q Query, start, end string) ([]model.Paper, error) {
	url := fmt.Sprintf("%s?search_query=%s+AND+submittedDate:[%s+TO+%s]&start=0&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		c.baseURL, q.Expr, start, end, q.MaxResults)

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("arxiv: create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() && ctx.Err() == nil {
				c.logger.Warn("arxiv: timeout", "category_id", q.CategoryID, "attempt", attempt+1)
				if attempt < maxRetries-1 {
					if perr := c.pause(ctx, c.interval); perr != nil {
						return nil, perr
					}
				}
				continue
			}
			return nil, fmt.Errorf("arxiv: request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("arxiv: read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			papers, perr := parseFeed(body, q.CategoryID)
			if perr != nil {
				return nil, fmt.Errorf("arxiv: parse feed: %w", perr)
			}
			return papers, nil
		case resp.StatusCode == http.StatusServiceUnavailable:
			wait := c.interval * time.Duration(pow3(attempt))
			c.logger.Warn("arxiv: 503, retrying", "attempt", attempt+1, "wait", wait)
			if perr := c.pause(ctx, wait); perr != nil {
				return nil, perr
			}
		default:
			return nil, fmt.Errorf("arxiv: unexpected status %d", resp.StatusCode)
		}
	}
	return nil, fmt.Errorf("arxiv: retries exhausted for category %d", q.CategoryID)
}

func pow3(n int) int {
	p := 1
	for range n {
		p *= 3
	}
	return p
}

// pause sleeps for d unless the context ends first.
func (c *Client) pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
