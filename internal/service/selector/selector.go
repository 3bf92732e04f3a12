// Package selector implements the anchor screening stage of the pipeline.
//
// Papers are embedded in bulk, upserted with their vectors and scored
// against the active anchors inside Postgres. A paper passes when its best
// cosine similarity reaches Threshold; every scored paper has its selection
// result persisted whether it passes or not, so rejected papers remain
// queryable.
package selector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/ashita-ai/mekiki/internal/model"
	"github.com/ashita-ai/mekiki/internal/service/embedding"
	"github.com/ashita-ai/mekiki/internal/storage"
)

// Threshold is the minimum best-anchor cosine similarity for a paper to
// pass selection. Inclusive.
const Threshold = 0.40

// Importance blends how strong the best anchor match is, how many anchors
// cleared the threshold and how many harvest queries surfaced the paper.
const (
	weightMaxScore       = 0.6
	weightHitCount       = 0.3
	weightMatchedQueries = 0.1
)

// Service runs the selection stage.
type Service struct {
	db       *storage.DB
	embedder embedding.Provider
	logger   *slog.Logger
}

// New creates the selection stage service.
func New(db *storage.DB, embedder embedding.Provider, logger *slog.Logger) *Service {
	return &Service{db: db, embedder: embedder, logger: logger}
}

// Run embeds, stores and scores the papers, returning those whose best
// anchor similarity reaches Threshold. Returned papers carry their
// selection scores. Papers with no anchor rows (inactive anchor set, or a
// vector that never made it into the database) are logged and omitted
// without failing the stage; embedding and database errors fail it.
func (s *Service) Run(ctx context.Context, papers []model.Paper) ([]model.Paper, error) {
	if len(papers) == 0 {
		s.logger.Info("selection: no papers to process")
		return nil, nil
	}
	s.logger.Info("selection started", "input_count", len(papers))

	// 1. Embed title + abstract for every paper in one bulk call.
	texts := make([]string, len(papers))
	for i, p := range papers {
		texts[i] = p.EmbeddingInput()
	}
	embeddings, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("selector: embed papers: %w", err)
	}
	if len(embeddings) != len(papers) {
		return nil, fmt.Errorf("selector: embedding count mismatch: got %d for %d papers", len(embeddings), len(papers))
	}

	// 2. Upsert papers with their vectors. Re-harvested papers keep their
	// original embedding and only merge matched_queries.
	for i, p := range papers {
		if err := s.db.UpsertPaper(ctx, p, embeddings[i]); err != nil {
			return nil, fmt.Errorf("selector: upsert %s: %w", p.ArxivID, err)
		}
	}

	// 3. Score against the anchor set and persist each outcome.
	var passed []model.Paper
	scored := 0
	for _, p := range papers {
		scores, err := s.db.ScorePaperAgainstAnchors(ctx, p.ArxivID)
		if err != nil {
			return nil, fmt.Errorf("selector: score %s: %w", p.ArxivID, err)
		}
		if len(scores) == 0 {
			s.logger.Warn("no anchor scores for paper", "arxiv_id", p.ArxivID)
			continue
		}

		res := scoreResult(p, scores)
		if err := s.db.UpdateSelectionResult(ctx, res); err != nil {
			return nil, fmt.Errorf("selector: update result %s: %w", p.ArxivID, err)
		}
		scored++

		if !res.Passed {
			continue
		}
		sel := p
		sel.BestCategoryID = &res.BestCategoryID
		sel.MaxScore = &res.MaxScore
		sel.HitCount = &res.HitCount
		sel.ImportanceScore = &res.ImportanceScore
		sel.AllScores = res.AllScores
		passed = append(passed, sel)
	}

	s.logger.Info("selection completed",
		"input_count", len(papers),
		"passed_count", len(passed),
		"rejected_count", scored-len(passed),
		"pass_rate", round1(float64(len(passed))/float64(len(papers))*100),
	)
	return passed, nil
}

// scoreResult derives the selection outcome from the per-anchor similarity
// rows. Rows arrive ordered by category id, so a tie on the maximum goes to
// the smallest category. Stored floats are rounded to 4 decimals; the pass
// decision uses the raw maximum.
func scoreResult(p model.Paper, scores []model.AnchorScore) model.L2Result {
	all := make(map[string]float64, len(scores))
	best := scores[0].CategoryID
	maxScore := scores[0].Cosine
	hits := 0
	for _, sc := range scores {
		all[strconv.Itoa(sc.CategoryID)] = round4(sc.Cosine)
		if sc.Cosine >= Threshold {
			hits++
		}
		if sc.Cosine > maxScore {
			maxScore = sc.Cosine
			best = sc.CategoryID
		}
	}

	importance := weightMaxScore*maxScore +
		weightHitCount*(float64(hits)/float64(model.NumCategories)) +
		weightMatchedQueries*(float64(len(p.MatchedQueries))/float64(model.NumCategories))

	return model.L2Result{
		ArxivID:         p.ArxivID,
		BestCategoryID:  best,
		MaxScore:        round4(maxScore),
		HitCount:        hits,
		ImportanceScore: round4(importance),
		AllScores:       all,
		Passed:          maxScore >= Threshold,
	}
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
