// Package curation orchestrates the daily pipeline run.
//
// Each stage is fenced: a stage failure lands in the batch log's error list
// and the downstream stages receive an empty input instead of aborting the
// run. A batch log is always built; inserting it is best-effort.
package curation

import (
	"context"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/mekiki/internal/model"
	"github.com/ashita-ai/mekiki/internal/service/review"
	"github.com/ashita-ai/mekiki/internal/storage"
	"github.com/ashita-ai/mekiki/internal/telemetry"
)

// Collector harvests one day's submissions. The harvest window is returned
// even when the fetch fails, so the batch log can record it.
type Collector interface {
	Collect(ctx context.Context, now time.Time) (model.Harvest, error)
}

// Selector embeds papers and keeps those passing the anchor gate.
type Selector interface {
	Run(ctx context.Context, papers []model.Paper) ([]model.Paper, error)
}

// Triager judges papers and keeps the relevant subset.
type Triager interface {
	Run(ctx context.Context, papers []model.Paper) ([]model.Paper, error)
}

// Reviewer writes detail reviews and extracts figures.
type Reviewer interface {
	Run(ctx context.Context, targets []model.ReviewTarget) (review.Stats, []string)
}

// Pipeline chains the four stages over one harvest window.
type Pipeline struct {
	db        *storage.DB
	collector Collector
	selector  Selector
	triager   Triager
	reviewer  Reviewer
	logger    *slog.Logger

	// now supplies the run clock; fixed in tests.
	now func() time.Time

	l1Fetched        metric.Int64Counter
	l2Passed         metric.Int64Counter
	l3Relevant       metric.Int64Counter
	figuresExtracted metric.Int64Counter
	stageDuration    metric.Float64Histogram
}

// New creates a Pipeline.
func New(db *storage.DB, collector Collector, selector Selector, triager Triager, reviewer Reviewer, logger *slog.Logger) *Pipeline {
	meter := telemetry.Meter("mekiki/curation")
	l1, _ := meter.Int64Counter("curation.l1_fetched",
		metric.WithDescription("Papers fetched after dedup"),
	)
	l2, _ := meter.Int64Counter("curation.l2_passed",
		metric.WithDescription("Papers passing the anchor gate"),
	)
	l3, _ := meter.Int64Counter("curation.l3_relevant",
		metric.WithDescription("Papers judged relevant"),
	)
	figs, _ := meter.Int64Counter("curation.figures_extracted",
		metric.WithDescription("Figures stored"),
	)
	stageDur, _ := meter.Float64Histogram("curation.stage.duration",
		metric.WithDescription("Wall time per pipeline stage"),
		metric.WithUnit("s"),
	)
	return &Pipeline{
		db:               db,
		collector:        collector,
		selector:         selector,
		triager:          triager,
		reviewer:         reviewer,
		logger:           logger,
		now:              time.Now,
		l1Fetched:        l1,
		l2Passed:         l2,
		l3Relevant:       l3,
		figuresExtracted: figs,
		stageDuration:    stageDur,
	}
}

// Run executes one harvest-to-review pass. Failures surface in the summary's
// error count, never as a Go error; by the time Run returns, a batch log has
// been built and, barring storage trouble, inserted.
func (p *Pipeline) Run(ctx context.Context) model.RunSummary {
	wallStart := time.Now()
	runTime := p.now().UTC()
	y, m, d := runTime.Date()
	execDate := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	p.logger.Info("pipeline started", "execution_date", execDate.Format("2006-01-02"))

	// errors is NOT NULL in batch_logs; keep the empty list explicit.
	errs := []string{}

	// 1. Harvest.
	t0 := time.Now()
	harvest, err := p.collector.Collect(ctx, runTime)
	p.recordStage(ctx, "l1", t0)
	if err != nil {
		p.logger.Error("harvest failed", "error", err)
		errs = append(errs, "L1: "+err.Error())
		harvest.Papers = nil
	}
	papers := harvest.Papers
	p.l1Fetched.Add(ctx, int64(len(papers)))

	// 2. Anchor screening.
	t0 = time.Now()
	passed, err := p.selector.Run(ctx, papers)
	p.recordStage(ctx, "l2", t0)
	if err != nil {
		p.logger.Error("selection failed", "error", err)
		errs = append(errs, "L2: "+err.Error())
		passed = nil
	}
	p.l2Passed.Add(ctx, int64(len(passed)))

	// 3. Relevance triage.
	t0 = time.Now()
	relevant, err := p.triager.Run(ctx, passed)
	p.recordStage(ctx, "l3", t0)
	if err != nil {
		p.logger.Error("triage failed", "error", err)
		errs = append(errs, "L3: "+err.Error())
		relevant = nil
	}
	p.l3Relevant.Add(ctx, int64(len(relevant)))

	// 4. Deep review, on rows re-read from storage so the review prompt sees
	// the persisted triage summaries.
	targets, err := p.listTargets(ctx, relevant)
	if err != nil {
		p.logger.Error("summary fetch failed", "error", err)
		errs = append(errs, "Summary fetch: "+err.Error())
		targets = nil
	}
	t0 = time.Now()
	stats, reviewErrs := p.reviewer.Run(ctx, targets)
	p.recordStage(ctx, "post_l3", t0)
	errs = append(errs, reviewErrs...)
	p.figuresExtracted.Add(ctx, int64(stats.FiguresExtracted))

	elapsed := float64(int(time.Since(wallStart).Seconds()))
	bl := model.BatchLog{
		ExecutionDate:     execDate,
		DateRange:         harvest.Window,
		L1RawCount:        harvest.RawCount,
		L1DedupCount:      len(papers),
		L2InputCount:      len(papers),
		L2PassedCount:     len(passed),
		L2PassRate:        rate(len(passed), len(papers)),
		L3InputCount:      len(passed),
		L3RelevantCount:   len(relevant),
		L3RelevanceRate:   rate(len(relevant), len(passed)),
		FiguresExtracted:  stats.FiguresExtracted,
		Errors:            errs,
		ProcessingTimeSec: elapsed,
	}
	if err := p.db.InsertBatchLog(ctx, bl); err != nil {
		p.logger.Error("batch log insert failed", "error", err)
	}

	summary := model.RunSummary{
		ExecutionDate:     execDate.Format("2006-01-02"),
		L1DedupCount:      len(papers),
		L2PassedCount:     len(passed),
		L3RelevantCount:   len(relevant),
		FiguresExtracted:  stats.FiguresExtracted,
		ProcessingTimeSec: elapsed,
		ErrorCount:        len(errs),
	}
	p.logger.Info("pipeline completed",
		"execution_date", summary.ExecutionDate,
		"processing_time_sec", summary.ProcessingTimeSec,
		"l1_dedup_count", summary.L1DedupCount,
		"l2_passed_count", summary.L2PassedCount,
		"l3_relevant_count", summary.L3RelevantCount,
		"figures_extracted", summary.FiguresExtracted,
		"error_count", summary.ErrorCount,
	)
	return summary
}

// listTargets re-reads the relevant papers from storage, ordered most
// important first, as input for the review stage.
func (p *Pipeline) listTargets(ctx context.Context, relevant []model.Paper) ([]model.ReviewTarget, error) {
	if len(relevant) == 0 {
		return nil, nil
	}
	ids := make([]string, len(relevant))
	for i, paper := range relevant {
		ids[i] = paper.ArxivID
	}
	return p.db.ListReviewTargets(ctx, ids)
}

func (p *Pipeline) recordStage(ctx context.Context, stage string, start time.Time) {
	p.stageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
}

// rate is x over y as a percentage with one decimal, zero when y is zero.
func rate(x, y int) float64 {
	if y == 0 {
		return 0
	}
	return math.Round(float64(x)/float64(y)*1000) / 10
}
