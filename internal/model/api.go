package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the envelope for cursor-paginated list endpoints.
type ListResponse struct {
	Data       any          `json:"data"`
	HasNext    bool         `json:"has_next"`
	NextCursor *string      `json:"next_cursor,omitempty"`
	Limit      int          `json:"limit"`
	Meta       ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodePaperNotFound     = "PAPER_NOT_FOUND"
	ErrCodeAlreadyBookmarked = "ALREADY_BOOKMARKED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeRateLimited       = "RATE_LIMITED"
)

// AuthTokenRequest is the request body for POST /v1/auth/token.
type AuthTokenRequest struct {
	Email  string `json:"email"`
	APIKey string `json:"api_key"`
}

// AuthTokenResponse is the response for POST /v1/auth/token.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PaperListItem is one row of GET /v1/papers.
type PaperListItem struct {
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

// PaperDetail is the response for GET /v1/papers/{arxiv_id}.
type PaperDetail struct {
	Paper
	CategoryName *string       `json:"category_name,omitempty"`
	Figures      []PaperFigure `json:"figures"`
}

// BookmarkItem is one row of GET /v1/bookmarks.
type BookmarkItem struct {
	BookmarkID   int       `json:"bookmark_id"`
	BookmarkedAt time.Time `json:"bookmarked_at"`
	PaperListItem
}

// CreateBookmarkRequest is the request body for POST /v1/bookmarks.
type CreateBookmarkRequest struct {
	ArxivID string `json:"arxiv_id"`
}

// CreateBookmarkResponse is the response for POST /v1/bookmarks.
type CreateBookmarkResponse struct {
	BookmarkID   int       `json:"bookmark_id"`
	BookmarkedAt time.Time `json:"bookmarked_at"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}
