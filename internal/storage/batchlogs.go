package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/mekiki/internal/model"
)

// InsertBatchLog records one pipeline run. Callers treat failure here as
// non-fatal; the run summary is still reported.
func (db *DB) InsertBatchLog(ctx context.Context, bl model.BatchLog) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO batch_logs (execution_date, date_range, l1_raw_count, l1_dedup_count,
		                        l2_input_count, l2_passed_count, l2_pass_rate,
		                        l3_input_count, l3_relevant_count, l3_relevance_rate,
		                        l3_input_tokens, l3_output_tokens, l3_cost_usd,
		                        figures_extracted, errors, processing_time_sec)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		bl.ExecutionDate, bl.DateRange, bl.L1RawCount, bl.L1DedupCount,
		bl.L2InputCount, bl.L2PassedCount, bl.L2PassRate,
		bl.L3InputCount, bl.L3RelevantCount, bl.L3RelevanceRate,
		bl.L3InputTokens, bl.L3OutputTokens, bl.L3CostUSD,
		bl.FiguresExtracted, bl.Errors, bl.ProcessingTimeSec,
	)
	if err != nil {
		return fmt.Errorf("storage: insert batch log: %w", err)
	}
	return nil
}

// LatestBatchLog returns the most recently inserted run record.
func (db *DB) LatestBatchLog(ctx context.Context) (model.BatchLog, error) {
	var bl model.BatchLog
	err := db.pool.QueryRow(ctx, `
		SELECT id, execution_date, date_range, l1_raw_count, l1_dedup_count,
		       l2_input_count, l2_passed_count, COALESCE(l2_pass_rate, 0),
		       l3_input_count, l3_relevant_count, COALESCE(l3_relevance_rate, 0),
		       l3_input_tokens, l3_output_tokens, l3_cost_usd,
		       figures_extracted, errors, COALESCE(processing_time_sec, 0), created_at
		FROM batch_logs
		ORDER BY id DESC
		LIMIT 1`,
	).Scan(
		&bl.ID, &bl.ExecutionDate, &bl.DateRange, &bl.L1RawCount, &bl.L1DedupCount,
		&bl.L2InputCount, &bl.L2PassedCount, &bl.L2PassRate,
		&bl.L3InputCount, &bl.L3RelevantCount, &bl.L3RelevanceRate,
		&bl.L3InputTokens, &bl.L3OutputTokens, &bl.L3CostUSD,
		&bl.FiguresExtracted, &bl.Errors, &bl.ProcessingTimeSec, &bl.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.BatchLog{}, fmt.Errorf("storage: latest batch log: %w", ErrNotFound)
		}
		return model.BatchLog{}, fmt.Errorf("storage: latest batch log: %w", err)
	}
	return bl, nil
}
