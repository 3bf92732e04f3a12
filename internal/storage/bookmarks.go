package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/mekiki/internal/model"
)

// CreateBookmark saves a paper for a user. ErrDuplicate when already saved.
func (db *DB) CreateBookmark(ctx context.Context, userID, paperID int) (model.Bookmark, error) {
	var bm model.Bookmark
	err := db.pool.QueryRow(ctx, `
		INSERT INTO bookmarks (user_id, paper_id)
		VALUES ($1, $2)
		RETURNING id, user_id, paper_id, created_at`,
		userID, paperID,
	).Scan(&bm.ID, &bm.UserID, &bm.PaperID, &bm.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Bookmark{}, fmt.Errorf("storage: create bookmark: %w", ErrDuplicate)
		}
		return model.Bookmark{}, fmt.Errorf("storage: create bookmark: %w", err)
	}
	return bm, nil
}

// GetBookmark retrieves a bookmark by id.
func (db *DB) GetBookmark(ctx context.Context, id int) (model.Bookmark, error) {
	var bm model.Bookmark
	err := db.pool.QueryRow(ctx, `
		SELECT id, user_id, paper_id, created_at FROM bookmarks WHERE id = $1`,
		id,
	).Scan(&bm.ID, &bm.UserID, &bm.PaperID, &bm.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Bookmark{}, fmt.Errorf("storage: get bookmark %d: %w", id, ErrNotFound)
		}
		return model.Bookmark{}, fmt.Errorf("storage: get bookmark %d: %w", id, err)
	}
	return bm, nil
}

// DeleteBookmark removes a bookmark. ErrNotFound when no row was deleted.
func (db *DB) DeleteBookmark(ctx context.Context, id int) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM bookmarks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: delete bookmark %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: delete bookmark %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListBookmarks returns a user's saved papers newest-first with keyset
// pagination over (bookmark created_at, bookmark id). Returns up to Limit+1
// rows so the caller can detect a next page.
func (db *DB) ListBookmarks(ctx context.Context, userID int, cursor *Cursor, limit int) ([]model.BookmarkItem, error) {
	query := `
		SELECT b.id, b.created_at, p.arxiv_id, p.title, p.authors, p.category_id,
		       a.category_name, p.importance, p.importance_score, p.summary_ja, p.published_at
		FROM bookmarks b
		JOIN papers p ON p.id = b.paper_id
		LEFT JOIN anchors a ON a.category_id = p.category_id
		WHERE b.user_id = $1`
	args := []any{userID}

	if cursor != nil {
		query += fmt.Sprintf(" AND (b.created_at < $%d OR (b.created_at = $%d AND b.id < $%d))",
			len(args)+1, len(args)+1, len(args)+2)
		args = append(args, cursor.Ts, cursor.ID)
	}
	query += fmt.Sprintf(" ORDER BY b.created_at DESC, b.id DESC LIMIT $%d", len(args)+1)
	args = append(args, limit+1)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list bookmarks: %w", err)
	}
	defer rows.Close()

	var items []model.BookmarkItem
	for rows.Next() {
		var it model.BookmarkItem
		if err := rows.Scan(&it.BookmarkID, &it.BookmarkedAt, &it.ArxivID, &it.Title, &it.Authors,
			&it.CategoryID, &it.CategoryName, &it.Importance, &it.ImportanceScore,
			&it.SummaryJA, &it.PublishedAt); err != nil {
			return nil, fmt.Errorf("storage: scan bookmark item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
