// Package review implements the full-text stage of the pipeline.
//
// For each relevant paper the PDF is downloaded once, then the detail
// review call and figure extraction run concurrently on the same bytes and
// join before persistence. Failures are per-paper: a paper that cannot be
// downloaded is skipped, a review or figure failure still persists the
// surviving half.
package review

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/mekiki/internal/model"
	"github.com/ashita-ai/mekiki/internal/storage"
)

const (
	concurrency      = 3
	downloadTimeout  = 60 * time.Second
	downloadAttempts = 2
	downloadRetryGap = 2 * time.Second
)

// Reviewer produces a full-text detail review from PDF bytes.
// Implemented by gemini.Client.
type Reviewer interface {
	Review(ctx context.Context, target model.ReviewTarget, pdf []byte) (model.DetailReview, error)
}

// Extractor pulls figures out of PDF bytes and uploads them.
// Implemented by figures.Extractor.
type Extractor interface {
	Extract(ctx context.Context, arxivID string, pdf []byte) ([]model.PaperFigure, error)
}

// Stats summarizes one review stage run.
type Stats struct {
	// Succeeded counts papers whose detail review was generated and stored.
	Succeeded int
	// FiguresExtracted counts stored figures across all papers.
	FiguresExtracted int
}

// Service runs the full-text review stage.
type Service struct {
	db        *storage.DB
	reviewer  Reviewer
	extractor Extractor
	client    *http.Client
	logger    *slog.Logger

	// Gap between the two download attempts. Shortened in tests.
	retryGap time.Duration
}

// New creates the review stage service.
func New(db *storage.DB, reviewer Reviewer, extractor Extractor, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		reviewer:  reviewer,
		extractor: extractor,
		client:    &http.Client{Timeout: downloadTimeout},
		logger:    logger,
		retryGap:  downloadRetryGap,
	}
}

// Run reviews every target under a bounded worker pool and returns run
// statistics plus the per-paper error strings for the batch log.
func (s *Service) Run(ctx context.Context, targets []model.ReviewTarget) (Stats, []string) {
	if len(targets) == 0 {
		s.logger.Info("review: no papers to process")
		return Stats{}, nil
	}
	s.logger.Info("review started", "input_count", len(targets))

	outcomes := make([]paperOutcome, len(targets))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t model.ReviewTarget) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				outcomes[i] = paperOutcome{errs: []string{fmt.Sprintf("Post-L3 %s: %v", t.ArxivID, ctx.Err())}}
				return
			}
			defer func() { <-sem }()
			outcomes[i] = s.process(ctx, t)
		}(i, t)
	}
	wg.Wait()

	var stats Stats
	var errs []string
	for _, o := range outcomes {
		if o.reviewed {
			stats.Succeeded++
		}
		stats.FiguresExtracted += o.figures
		errs = append(errs, o.errs...)
	}

	s.logger.Info("review completed",
		"input_count", len(targets),
		"success_count", stats.Succeeded,
		"figures_extracted", stats.FiguresExtracted,
		"error_count", len(errs),
	)
	return stats, errs
}

type paperOutcome struct {
	reviewed bool
	figures  int
	errs     []string
}

// process handles one paper: download, review and extract concurrently,
// persist whatever survived.
func (s *Service) process(ctx context.Context, t model.ReviewTarget) paperOutcome {
	pdf := s.downloadPDF(ctx, t.PDFURL)
	if pdf == nil {
		s.logger.Warn("pdf download failed, skipping paper", "arxiv_id", t.ArxivID, "url", t.PDFURL)
		return paperOutcome{errs: []string{fmt.Sprintf("Post-L3 %s: pdf download failed", t.ArxivID)}}
	}

	var (
		rev  *model.DetailReview
		figs []model.PaperFigure
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.reviewer.Review(gctx, t, pdf)
		if err != nil {
			s.logger.Error("detail review failed", "arxiv_id", t.ArxivID, "error", err)
			return nil
		}
		rev = &r
		return nil
	})
	g.Go(func() error {
		f, err := s.extractor.Extract(gctx, t.ArxivID, pdf)
		if err != nil {
			s.logger.Warn("figure extraction failed", "arxiv_id", t.ArxivID, "error", err)
			return nil
		}
		figs = f
		return nil
	})
	_ = g.Wait()

	var out paperOutcome
	if rev != nil {
		if err := s.db.UpdateDetailReview(ctx, t.ArxivID, *rev); err != nil {
			s.logger.Error("detail review update failed", "arxiv_id", t.ArxivID, "error", err)
			out.errs = append(out.errs, fmt.Sprintf("Post-L3 %s: %v", t.ArxivID, err))
		} else {
			out.reviewed = true
		}
	}
	if err := s.db.UpsertFigures(ctx, t.ArxivID, figs); err != nil {
		s.logger.Error("figure upsert failed", "arxiv_id", t.ArxivID, "error", err)
		out.errs = append(out.errs, fmt.Sprintf("Post-L3 %s: %v", t.ArxivID, err))
	} else {
		out.figures = len(figs)
	}
	return out
}

// downloadPDF fetches the paper PDF, retrying once after a short gap.
// Returns nil when every attempt fails.
func (s *Service) downloadPDF(ctx context.Context, url string) []byte {
	for attempt := 0; attempt < downloadAttempts; attempt++ {
		data, err := s.fetch(ctx, url)
		if err == nil {
			return data
		}
		s.logger.Warn("pdf download failed", "url", url, "attempt", attempt+1, "error", err)
		if attempt < downloadAttempts-1 {
			if !pause(ctx, s.retryGap) {
				return nil
			}
		}
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// pause sleeps for d unless the context ends first.
func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
