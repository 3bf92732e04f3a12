package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashita-ai/mekiki/internal/model"
)

// UpsertFigures records uploaded figure metadata for a paper. On conflict the
// object location and dimensions are refreshed but an existing caption is
// kept, since captions may have been edited after extraction.
func (db *DB) UpsertFigures(ctx context.Context, arxivID string, figs []model.PaperFigure) error {
	if len(figs) == 0 {
		return nil
	}
	paperID, err := db.GetPaperID(ctx, arxivID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("storage: upsert figures %s: %w", arxivID, ErrNotFound)
		}
		return err
	}

	for _, f := range figs {
		_, err := db.pool.Exec(ctx, `
			INSERT INTO paper_figures (paper_id, figure_index, s3_key, s3_url, width, height, file_size_bytes, caption)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (paper_id, figure_index) DO UPDATE SET
				s3_key = EXCLUDED.s3_key,
				s3_url = EXCLUDED.s3_url,
				width = EXCLUDED.width,
				height = EXCLUDED.height,
				file_size_bytes = EXCLUDED.file_size_bytes`,
			paperID, f.FigureIndex, f.S3Key, f.S3URL, f.Width, f.Height, f.FileSizeBytes, f.Caption,
		)
		if err != nil {
			return fmt.Errorf("storage: upsert figure %s #%d: %w", arxivID, f.FigureIndex, err)
		}
	}
	return nil
}

// ListFiguresByPaper returns a paper's figures in extraction order.
func (db *DB) ListFiguresByPaper(ctx context.Context, paperID int) ([]model.PaperFigure, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, paper_id, figure_index, s3_key, s3_url, width, height, file_size_bytes, caption, created_at
		FROM paper_figures
		WHERE paper_id = $1
		ORDER BY figure_index`,
		paperID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list figures for paper %d: %w", paperID, err)
	}
	defer rows.Close()

	var figs []model.PaperFigure
	for rows.Next() {
		var f model.PaperFigure
		if err := rows.Scan(&f.ID, &f.PaperID, &f.FigureIndex, &f.S3Key, &f.S3URL,
			&f.Width, &f.Height, &f.FileSizeBytes, &f.Caption, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan figure: %w", err)
		}
		figs = append(figs, f)
	}
	return figs, rows.Err()
}
