package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/ashita-ai/mekiki/internal/model"
)

// UpsertPaper inserts a paper with its embedding. On arxiv_id conflict only
// matched_queries is merged (set union, ascending) and updated_at refreshed;
// the stored embedding and bibliographic fields are kept so scores stay
// stable across reruns.
func (db *DB) UpsertPaper(ctx context.Context, p model.Paper, embedding []float32) error {
	var emb any
	if len(embedding) > 0 {
		emb = pgvector.NewVector(embedding)
	}

	_, err := db.pool.Exec(ctx, `
		INSERT INTO papers (arxiv_id, title, abstract, authors, pdf_url, primary_category,
		                    all_categories, published_at, embedding, matched_queries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (arxiv_id) DO UPDATE SET
			matched_queries = (
				SELECT ARRAY(
					SELECT DISTINCT unnest(papers.matched_queries || EXCLUDED.matched_queries)
					ORDER BY 1
				)
			),
			updated_at = NOW()`,
		p.ArxivID, p.Title, p.Abstract, p.Authors, p.PDFURL, p.PrimaryCategory,
		p.AllCategories, p.PublishedAt, emb, p.MatchedQueries,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert paper %s: %w", p.ArxivID, err)
	}
	return nil
}

// ScorePaperAgainstAnchors computes the cosine similarity between a paper's
// stored embedding and every active anchor, ordered by category id.
// Returns no rows when the paper is missing or has no embedding.
func (db *DB) ScorePaperAgainstAnchors(ctx context.Context, arxivID string) ([]model.AnchorScore, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT a.category_id, 1 - (p.embedding <=> a.embedding) AS cosine_similarity
		FROM papers p
		CROSS JOIN anchors a
		WHERE p.arxiv_id = $1 AND p.embedding IS NOT NULL AND a.is_active = TRUE
		ORDER BY a.category_id`,
		arxivID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: score paper %s: %w", arxivID, err)
	}
	defer rows.Close()

	var scores []model.AnchorScore
	for rows.Next() {
		var s model.AnchorScore
		if err := rows.Scan(&s.CategoryID, &s.Cosine); err != nil {
			return nil, fmt.Errorf("storage: scan anchor score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// UpdateSelectionResult persists the anchor-similarity outcome for a paper.
func (db *DB) UpdateSelectionResult(ctx context.Context, r model.L2Result) error {
	tag, err := db.pool.Exec(ctx, `
		UPDATE papers
		SET best_category_id = $2, max_score = $3, hit_count = $4,
		    importance_score = $5, all_scores = $6, updated_at = NOW()
		WHERE arxiv_id = $1`,
		r.ArxivID, r.BestCategoryID, r.MaxScore, r.HitCount, r.ImportanceScore, r.AllScores,
	)
	if err != nil {
		return fmt.Errorf("storage: update selection result %s: %w", r.ArxivID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: update selection result %s: %w", r.ArxivID, ErrNotFound)
	}
	return nil
}

// UpdateVerdict persists the triage judgement for a paper. Triage workers
// write concurrently, so transient conflicts are retried.
func (db *DB) UpdateVerdict(ctx context.Context, arxivID string, v model.Verdict) error {
	var tag pgconn.CommandTag
	err := WithRetry(ctx, writeRetries, writeRetryBase, func() error {
		var execErr error
		tag, execErr = db.pool.Exec(ctx, `
			UPDATE papers
			SET is_relevant = $2, category_id = $3, confidence = $4, importance = $5,
			    summary_ja = $6, reasoning = $7, updated_at = NOW()
			WHERE arxiv_id = $1`,
			arxivID, v.IsRelevant, v.CategoryID, v.Confidence, v.Importance, v.SummaryJA, v.Reasoning,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("storage: update verdict %s: %w", arxivID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: update verdict %s: %w", arxivID, ErrNotFound)
	}
	return nil
}

// UpdateDetailReview persists the full-text review for a paper. Review workers
// write concurrently, so transient conflicts are retried.
func (db *DB) UpdateDetailReview(ctx context.Context, arxivID string, review model.DetailReview) error {
	var tag pgconn.CommandTag
	err := WithRetry(ctx, writeRetries, writeRetryBase, func() error {
		var execErr error
		tag, execErr = db.pool.Exec(ctx, `
			UPDATE papers SET detail_review = $2, updated_at = NOW() WHERE arxiv_id = $1`,
			arxivID, review,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("storage: update detail review %s: %w", arxivID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: update detail review %s: %w", arxivID, ErrNotFound)
	}
	return nil
}

// ListReviewTargets returns the relevant papers among the given ids, most
// important first, for full-text review.
func (db *DB) ListReviewTargets(ctx context.Context, arxivIDs []string) ([]model.ReviewTarget, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT arxiv_id, title, COALESCE(pdf_url, ''), COALESCE(best_category_id, 0),
		       COALESCE(importance_score, 0), COALESCE(summary_ja, '')
		FROM papers
		WHERE arxiv_id = ANY($1) AND is_relevant = TRUE
		ORDER BY importance_score DESC NULLS LAST, arxiv_id`,
		arxivIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list review targets: %w", err)
	}
	defer rows.Close()

	var targets []model.ReviewTarget
	for rows.Next() {
		var t model.ReviewTarget
		if err := rows.Scan(&t.ArxivID, &t.Title, &t.PDFURL, &t.CategoryID,
			&t.ImportanceScore, &t.SummaryJA); err != nil {
			return nil, fmt.Errorf("storage: scan review target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// GetPaperByArxivID retrieves a full paper row (without the embedding).
func (db *DB) GetPaperByArxivID(ctx context.Context, arxivID string) (model.Paper, error) {
	var p model.Paper
	err := db.pool.QueryRow(ctx, `
		SELECT id, arxiv_id, title, abstract, authors, COALESCE(pdf_url, ''),
		       primary_category, all_categories, published_at, matched_queries,
		       best_category_id, max_score, hit_count, importance_score, all_scores,
		       is_relevant, category_id, confidence, importance, summary_ja, reasoning,
		       detail_review, created_at, updated_at
		FROM papers WHERE arxiv_id = $1`,
		arxivID,
	).Scan(
		&p.ID, &p.ArxivID, &p.Title, &p.Abstract, &p.Authors, &p.PDFURL,
		&p.PrimaryCategory, &p.AllCategories, &p.PublishedAt, &p.MatchedQueries,
		&p.BestCategoryID, &p.MaxScore, &p.HitCount, &p.ImportanceScore, &p.AllScores,
		&p.IsRelevant, &p.CategoryID, &p.Confidence, &p.Importance, &p.SummaryJA, &p.Reasoning,
		&p.DetailReview, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Paper{}, fmt.Errorf("storage: get paper %s: %w", arxivID, ErrNotFound)
		}
		return model.Paper{}, fmt.Errorf("storage: get paper %s: %w", arxivID, err)
	}
	return p, nil
}

// GetPaperID returns the internal id for an arxiv id.
func (db *DB) GetPaperID(ctx context.Context, arxivID string) (int, error) {
	var id int
	err := db.pool.QueryRow(ctx, `SELECT id FROM papers WHERE arxiv_id = $1`, arxivID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("storage: paper id %s: %w", arxivID, ErrNotFound)
		}
		return 0, fmt.Errorf("storage: paper id %s: %w", arxivID, err)
	}
	return id, nil
}

// GetPaperEmbedding returns a paper's stored embedding, or nil when unset.
func (db *DB) GetPaperEmbedding(ctx context.Context, arxivID string) ([]float32, error) {
	var vec *pgvector.Vector
	err := db.pool.QueryRow(ctx, `SELECT embedding FROM papers WHERE arxiv_id = $1`, arxivID).Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("storage: paper embedding %s: %w", arxivID, ErrNotFound)
		}
		return nil, fmt.Errorf("storage: paper embedding %s: %w", arxivID, err)
	}
	if vec == nil {
		return nil, nil
	}
	return vec.Slice(), nil
}

// Cursor is a keyset pagination position: strictly older than (Ts, ID).
type Cursor struct {
	Ts time.Time
	ID int
}

// ListPapersOpts filters GET /v1/papers queries.
type ListPapersOpts struct {
	CategoryID    *int
	MinImportance *int
	Date          *time.Time // calendar day (UTC) of published_at
	Cursor        *Cursor
	Limit         int
}

// ListPapers returns relevant papers newest-first with keyset pagination.
// Returns up to Limit+1 rows so the caller can detect a next page.
func (db *DB) ListPapers(ctx context.Context, opts ListPapersOpts) ([]model.PaperListItem, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT p.arxiv_id, p.title, p.authors, p.category_id, a.category_name,
		       p.importance, p.importance_score, p.summary_ja, p.published_at
		FROM papers p
		LEFT JOIN anchors a ON a.category_id = p.category_id
		WHERE p.is_relevant = TRUE`)

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.CategoryID != nil {
		fmt.Fprintf(&b, " AND p.category_id = %s", arg(*opts.CategoryID))
	}
	if opts.MinImportance != nil {
		fmt.Fprintf(&b, " AND p.importance >= %s", arg(*opts.MinImportance))
	}
	if opts.Date != nil {
		fmt.Fprintf(&b, " AND DATE(p.published_at AT TIME ZONE 'UTC') = %s", arg(opts.Date.Format("2006-01-02")))
	}
	if opts.Cursor != nil {
		ts := arg(opts.Cursor.Ts)
		id := arg(opts.Cursor.ID)
		fmt.Fprintf(&b, " AND (p.published_at < %s OR (p.published_at = %s AND p.id < %s))", ts, ts, id)
	}

	fmt.Fprintf(&b, " ORDER BY p.published_at DESC, p.id DESC LIMIT %s", arg(opts.Limit+1))

	rows, err := db.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list papers: %w", err)
	}
	defer rows.Close()

	var items []model.PaperListItem
	for rows.Next() {
		var it model.PaperListItem
		if err := rows.Scan(&it.ArxivID, &it.Title, &it.Authors, &it.CategoryID, &it.CategoryName,
			&it.Importance, &it.ImportanceScore, &it.SummaryJA, &it.PublishedAt); err != nil {
			return nil, fmt.Errorf("storage: scan paper list item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// PaperCursorKey returns the keyset position of a paper for pagination.
// Papers are ordered by (published_at, id) and the list payload doesn't carry
// the internal id, so handlers look it up from the last row's arxiv id.
func (db *DB) PaperCursorKey(ctx context.Context, arxivID string) (Cursor, error) {
	var c Cursor
	err := db.pool.QueryRow(ctx,
		`SELECT published_at, id FROM papers WHERE arxiv_id = $1`, arxivID,
	).Scan(&c.Ts, &c.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cursor{}, fmt.Errorf("storage: paper cursor %s: %w", arxivID, ErrNotFound)
		}
		return Cursor{}, fmt.Errorf("storage: paper cursor %s: %w", arxivID, err)
	}
	return c, nil
}

// RecordPaperView upserts a view marker for (user, paper). Repeated views of
// the same paper race on the upsert, so transient conflicts are retried.
func (db *DB) RecordPaperView(ctx context.Context, userID, paperID int) error {
	err := WithRetry(ctx, writeRetries, writeRetryBase, func() error {
		_, execErr := db.pool.Exec(ctx, `
			INSERT INTO paper_views (user_id, paper_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, paper_id) DO UPDATE SET viewed_at = NOW()`,
			userID, paperID,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("storage: record paper view: %w", err)
	}
	return nil
}
