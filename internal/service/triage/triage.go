// Package triage implements the LLM relevance stage of the pipeline.
//
// Each selected paper is judged by Gemini under a bounded worker pool.
// Every verdict is persisted, relevant or not; the stage's output is the
// subset of input papers judged relevant, in input order. A paper whose
// judgement exhausts its retries simply drops out of the output, its row
// left without triage columns.
package triage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashita-ai/mekiki/internal/model"
	"github.com/ashita-ai/mekiki/internal/service/gemini"
	"github.com/ashita-ai/mekiki/internal/storage"
)

const (
	concurrency     = 5
	requestInterval = 200 * time.Millisecond
)

// Judge produces a relevance verdict for one paper.
// Implemented by gemini.Client.
type Judge interface {
	Judge(ctx context.Context, req gemini.JudgeRequest) (model.Verdict, error)
}

// Service runs the triage stage.
type Service struct {
	db     *storage.DB
	judge  Judge
	logger *slog.Logger

	// Pacing between slot acquisition and the API call. Shortened in tests.
	interval time.Duration
}

// New creates the triage stage service.
func New(db *storage.DB, judge Judge, logger *slog.Logger) *Service {
	return &Service{db: db, judge: judge, logger: logger, interval: requestInterval}
}

// Run judges every paper and returns those found relevant. Individual
// judgement failures are logged and swallowed; only a canceled context
// fails the stage.
func (s *Service) Run(ctx context.Context, papers []model.Paper) ([]model.Paper, error) {
	if len(papers) == 0 {
		s.logger.Info("triage: no papers to process")
		return nil, nil
	}
	s.logger.Info("triage started", "input_count", len(papers))

	verdicts := make([]*model.Verdict, len(papers))
	var failed atomic.Int32

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, p := range papers {
		wg.Add(1)
		go func(i int, p model.Paper) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				failed.Add(1)
				return
			}
			defer func() { <-sem }()

			if !pause(ctx, s.interval) {
				failed.Add(1)
				return
			}

			v, err := s.judge.Judge(ctx, judgeRequest(p))
			if err != nil {
				s.logger.Error("triage judgement failed", "arxiv_id", p.ArxivID, "error", err)
				failed.Add(1)
				return
			}
			if err := s.db.UpdateVerdict(ctx, p.ArxivID, v); err != nil {
				s.logger.Error("triage verdict update failed", "arxiv_id", p.ArxivID, "error", err)
				failed.Add(1)
				return
			}
			verdicts[i] = &v
		}(i, p)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("triage: %w", err)
	}

	var relevant []model.Paper
	for i, p := range papers {
		if verdicts[i] != nil && verdicts[i].IsRelevant {
			relevant = append(relevant, p)
		}
	}

	s.logger.Info("triage completed",
		"input_count", len(papers),
		"relevant_count", len(relevant),
		"rejected_count", len(papers)-len(relevant)-int(failed.Load()),
		"error_count", failed.Load(),
	)
	return relevant, nil
}

// judgeRequest flattens a selected paper into the judgement call input.
func judgeRequest(p model.Paper) gemini.JudgeRequest {
	req := gemini.JudgeRequest{
		ArxivID:  p.ArxivID,
		Title:    p.Title,
		Abstract: p.Abstract,
	}
	if p.BestCategoryID != nil {
		req.BestCategoryID = *p.BestCategoryID
	}
	if p.MaxScore != nil {
		req.MaxScore = *p.MaxScore
	}
	if p.HitCount != nil {
		req.HitCount = *p.HitCount
	}
	return req
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
