package storage

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/ashita-ai/mekiki/internal/model"
)

// UpsertAnchor inserts or replaces the anchor definition for a category.
// Re-seeding overwrites the definition text and embedding in place.
func (db *DB) UpsertAnchor(ctx context.Context, a model.Anchor) error {
	if len(a.Embedding) == 0 {
		return fmt.Errorf("storage: upsert anchor %d: empty embedding", a.CategoryID)
	}
	_, err := db.pool.Exec(ctx, `
		INSERT INTO anchors (category_id, category_name, definition_en, definition_ja, embedding, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (category_id) DO UPDATE SET
			category_name = EXCLUDED.category_name,
			definition_en = EXCLUDED.definition_en,
			definition_ja = EXCLUDED.definition_ja,
			embedding = EXCLUDED.embedding,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()`,
		a.CategoryID, a.CategoryName, a.DefinitionEN, a.DefinitionJA,
		pgvector.NewVector(a.Embedding), a.IsActive,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert anchor %d: %w", a.CategoryID, err)
	}
	return nil
}

// ListActiveAnchors returns the active anchors ordered by category id.
func (db *DB) ListActiveAnchors(ctx context.Context) ([]model.Anchor, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, category_id, category_name, definition_en, definition_ja, is_active, created_at, updated_at
		FROM anchors
		WHERE is_active = TRUE
		ORDER BY category_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list active anchors: %w", err)
	}
	defer rows.Close()

	var anchors []model.Anchor
	for rows.Next() {
		var a model.Anchor
		if err := rows.Scan(&a.ID, &a.CategoryID, &a.CategoryName, &a.DefinitionEN,
			&a.DefinitionJA, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan anchor: %w", err)
		}
		anchors = append(anchors, a)
	}
	return anchors, rows.Err()
}
