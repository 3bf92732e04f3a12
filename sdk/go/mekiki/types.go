package mekiki

import "time"

// Paper is one row of a paper listing. Scoring fields are nil for papers
// the pipeline has not classified.
type Paper struct {
	ArxivID         string    `json:"arxiv_id"`
	Title           string    `json:"title"`
	Authors         []string  `json:"authors"`
	CategoryID      *int      `json:"category_id"`
	CategoryName    *string   `json:"category_name,omitempty"`
	Importance      *int      `json:"importance"`
	ImportanceScore *float64  `json:"importance_score"`
	SummaryJA       *string   `json:"summary_ja"`
	PublishedAt     time.Time `json:"published_at"`
}

// PaperDetail is the full record returned for a single paper. It mirrors the
// server's wire format; internal-only fields (embeddings, raw anchor scores)
// are never sent.
type PaperDetail struct {
	ArxivID         string        `json:"arxiv_id"`
	Title           string        `json:"title"`
	Abstract        string        `json:"abstract"`
	Authors         []string      `json:"authors"`
	PDFURL          string        `json:"pdf_url"`
	PrimaryCategory string        `json:"primary_category"`
	AllCategories   []string      `json:"all_categories"`
	PublishedAt     time.Time     `json:"published_at"`
	CategoryID      *int          `json:"category_id,omitempty"`
	CategoryName    *string       `json:"category_name,omitempty"`
	Importance      *int          `json:"importance,omitempty"`
	ImportanceScore *float64      `json:"importance_score,omitempty"`
	Confidence      *float64      `json:"confidence,omitempty"`
	SummaryJA       *string       `json:"summary_ja,omitempty"`
	Reasoning       *string       `json:"reasoning,omitempty"`
	DetailReview    *DetailReview `json:"detail_review,omitempty"`
	Figures         []Figure      `json:"figures"`
}

// DetailReview is the structured full-text review. All prose is Japanese.
type DetailReview struct {
	Sections        []ReviewSection    `json:"sections"`
	Perspectives    ReviewPerspectives `json:"perspectives"`
	Levels          ReviewLevels       `json:"levels"`
	FigureAnalysis  []FigureAnalysis   `json:"figure_analysis"`
	OneLineTakeaway string             `json:"one_line_takeaway"`
}

// ReviewSection is one titled section of a detail review.
type ReviewSection struct {
	SectionID string `json:"section_id"`
	TitleJA   string `json:"title_ja"`
	ContentJA string `json:"content_ja"`
}

// ReviewPerspectives summarizes the paper for three reader roles.
type ReviewPerspectives struct {
	AIEngineer    string `json:"ai_engineer"`
	Mathematician string `json:"mathematician"`
	Business      string `json:"business"`
}

// ReviewLevels explains the paper at three depths.
type ReviewLevels struct {
	Beginner     string `json:"beginner"`
	Intermediate string `json:"intermediate"`
	Expert       string `json:"expert"`
}

// FigureAnalysis is the review's commentary on one figure.
type FigureAnalysis struct {
	FigureRef     string `json:"figure_ref"`
	DescriptionJA string `json:"description_ja"`
	IsKeyFigure   bool   `json:"is_key_figure"`
}

// Figure is one extracted figure image.
type Figure struct {
	FigureIndex   int     `json:"figure_index"`
	S3Key         string  `json:"s3_key"`
	S3URL         string  `json:"s3_url"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	FileSizeBytes int     `json:"file_size_bytes"`
	Caption       *string `json:"caption,omitempty"`
}

// Category is one of the six anchor categories.
type Category struct {
	ID           int    `json:"id"`
	CategoryID   int    `json:"category_id"`
	CategoryName string `json:"category_name"`
	DefinitionEN string `json:"definition_en"`
	DefinitionJA string `json:"definition_ja,omitempty"`
	IsActive     bool   `json:"is_active"`
}

// Bookmark is one row of a bookmark listing: the paper plus the bookmark's
// own identity.
type Bookmark struct {
	BookmarkID   int       `json:"bookmark_id"`
	BookmarkedAt time.Time `json:"bookmarked_at"`
	Paper
}

// CreatedBookmark identifies a bookmark created by CreateBookmark.
type CreatedBookmark struct {
	BookmarkID   int       `json:"bookmark_id"`
	BookmarkedAt time.Time `json:"bookmarked_at"`
}

// Health is the server's health report.
type Health struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Postgres      string `json:"postgres"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
