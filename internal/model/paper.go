// Package model defines the domain types shared across the curation pipeline,
// the storage layer, and the HTTP API.
package model

import "time"

// Paper is a single arXiv paper as it moves through the pipeline.
// The collector fills the bibliographic fields; selection and triage
// progressively fill the nullable scoring fields.
type Paper struct {
	ID              int       `json:"id,omitempty"`
	ArxivID         string    `json:"arxiv_id"`
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract"`
	Authors         []string  `json:"authors"`
	PDFURL          string    `json:"pdf_url"`
	PrimaryCategory string    `json:"primary_category"`
	AllCategories   []string  `json:"all_categories"`
	PublishedAt     time.Time `json:"published_at"`

	// Category ids of the harvest queries that surfaced this paper.
	// Ascending, deduplicated.
	MatchedQueries []int `json:"matched_queries"`

	// Anchor-similarity results. Nil until the paper has been scored.
	BestCategoryID  *int               `json:"best_category_id,omitempty"`
	MaxScore        *float64           `json:"max_score,omitempty"`
	HitCount        *int               `json:"hit_count,omitempty"`
	ImportanceScore *float64           `json:"importance_score,omitempty"`
	AllScores       map[string]float64 `json:"all_scores,omitempty"`

	// LLM triage results. Nil until the paper has been judged.
	IsRelevant *bool    `json:"is_relevant,omitempty"`
	CategoryID *int     `json:"category_id,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Importance *int     `json:"importance,omitempty"`
	SummaryJA  *string  `json:"summary_ja,omitempty"`
	Reasoning  *string  `json:"reasoning,omitempty"`

	DetailReview *DetailReview `json:"detail_review,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// EmbeddingInput is the text embedded for anchor scoring.
func (p Paper) EmbeddingInput() string {
	return p.Title + " " + p.Abstract
}

// L2Result holds the anchor-similarity outcome for one paper.
type L2Result struct {
	ArxivID         string             `json:"arxiv_id"`
	BestCategoryID  int                `json:"best_category_id"`
	MaxScore        float64            `json:"max_score"`
	HitCount        int                `json:"hit_count"`
	ImportanceScore float64            `json:"importance_score"`
	AllScores       map[string]float64 `json:"all_scores"`
	Passed          bool               `json:"passed"`
}

// AnchorScore is one row of the anchor similarity query.
type AnchorScore struct {
	CategoryID int
	Cosine     float64
}

// ReviewTarget is a relevant paper queued for full-text review.
type ReviewTarget struct {
	ArxivID         string  `json:"arxiv_id"`
	Title           string  `json:"title"`
	PDFURL          string  `json:"pdf_url"`
	CategoryID      int     `json:"category_id"`
	ImportanceScore float64 `json:"importance_score"`
	SummaryJA       string  `json:"summary_ja"`
}
