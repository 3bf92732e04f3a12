package mekiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the mekiki read API (e.g. "http://localhost:8080").
	BaseURL string

	// Email identifies the reader account.
	Email string

	// APIKey is the secret used to obtain a JWT token.
	APIKey string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the mekiki curated-papers API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL  string
	client   *http.Client
	tokenMgr *tokenManager
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL, Email, or APIKey is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("mekiki: BaseURL is required")
	}
	if cfg.Email == "" {
		return nil, fmt.Errorf("mekiki: Email is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("mekiki: APIKey is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:  baseURL,
		client:   httpClient,
		tokenMgr: newTokenManager(baseURL, cfg.Email, cfg.APIKey, httpClient),
	}, nil
}

// ---------------------------------------------------------------------------
// Papers
// ---------------------------------------------------------------------------

// ListPapersOptions are optional filters for ListPapers.
// Zero values are omitted from the request.
type ListPapersOptions struct {
	// CategoryID filters to one anchor category (1 to 6).
	CategoryID int

	// MinImportance keeps only papers at or above this importance (1 to 5).
	MinImportance int

	// Date restricts results to papers published on a single day (YYYY-MM-DD).
	Date string

	// Cursor continues a previous page. Use PapersPage.NextCursor.
	Cursor string

	// Limit caps the page size. The server clamps it to at most 50.
	Limit int
}

// PapersPage is one page of curated papers.
type PapersPage struct {
	Papers     []Paper
	HasNext    bool
	NextCursor string
}

// ListPapers retrieves a page of relevant papers, newest first.
func (c *Client) ListPapers(ctx context.Context, opts *ListPapersOptions) (*PapersPage, error) {
	params := url.Values{}
	if opts != nil {
		if opts.CategoryID > 0 {
			params.Set("category_id", strconv.Itoa(opts.CategoryID))
		}
		if opts.MinImportance > 0 {
			params.Set("min_importance", strconv.Itoa(opts.MinImportance))
		}
		if opts.Date != "" {
			params.Set("date", opts.Date)
		}
		if opts.Cursor != "" {
			params.Set("cursor", opts.Cursor)
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
	}

	path := "/v1/papers"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var env listEnvelope
	if err := c.get(ctx, path, &env); err != nil {
		return nil, err
	}

	page := &PapersPage{HasNext: env.HasNext}
	if env.NextCursor != nil {
		page.NextCursor = *env.NextCursor
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &page.Papers); err != nil {
			return nil, fmt.Errorf("mekiki: decode papers: %w", err)
		}
	}
	return page, nil
}

// GetPaper retrieves the full detail for one paper, including its deep-review
// sections and extracted figures. The server also records a view for the
// calling reader.
func (c *Client) GetPaper(ctx context.Context, arxivID string) (*PaperDetail, error) {
	var resp PaperDetail
	if err := c.get(ctx, "/v1/papers/"+url.PathEscape(arxivID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListCategories retrieves the active anchor categories papers are scored
// against.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var resp []Category
	if err := c.get(ctx, "/v1/categories", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ---------------------------------------------------------------------------
// Bookmarks
// ---------------------------------------------------------------------------

// PageOptions control cursor pagination for list endpoints without filters.
type PageOptions struct {
	Cursor string
	Limit  int
}

// BookmarksPage is one page of the reader's bookmarks.
type BookmarksPage struct {
	Bookmarks  []Bookmark
	HasNext    bool
	NextCursor string
}

// ListBookmarks retrieves the caller's bookmarks, most recent first.
func (c *Client) ListBookmarks(ctx context.Context, opts *PageOptions) (*BookmarksPage, error) {
	params := url.Values{}
	if opts != nil {
		if opts.Cursor != "" {
			params.Set("cursor", opts.Cursor)
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
	}

	path := "/v1/bookmarks"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var env listEnvelope
	if err := c.get(ctx, path, &env); err != nil {
		return nil, err
	}

	page := &BookmarksPage{HasNext: env.HasNext}
	if env.NextCursor != nil {
		page.NextCursor = *env.NextCursor
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &page.Bookmarks); err != nil {
			return nil, fmt.Errorf("mekiki: decode bookmarks: %w", err)
		}
	}
	return page, nil
}

type createBookmarkRequest struct {
	ArxivID string `json:"arxiv_id"`
}

// CreateBookmark bookmarks a paper for the caller. Bookmarking the same
// paper twice returns an error for which IsConflict reports true.
func (c *Client) CreateBookmark(ctx context.Context, arxivID string) (*CreatedBookmark, error) {
	var resp CreatedBookmark
	if err := c.post(ctx, "/v1/bookmarks", createBookmarkRequest{ArxivID: arxivID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteBookmark removes one of the caller's bookmarks by id.
func (c *Client) DeleteBookmark(ctx context.Context, bookmarkID int) error {
	return c.doDelete(ctx, "/v1/bookmarks/"+strconv.Itoa(bookmarkID), nil)
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

// GetHealth checks the server's health status. This endpoint does not require
// authentication and will work even if the client has invalid credentials.
func (c *Client) GetHealth(ctx context.Context) (*Health, error) {
	var resp Health
	if err := c.getNoAuth(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// listEnvelope is the server's pagination wrapper. List endpoints carry
// has_next and next_cursor alongside data, so the whole envelope is decoded
// instead of unwrapped.
type listEnvelope struct {
	Data       json.RawMessage `json:"data"`
	HasNext    bool            `json:"has_next"`
	NextCursor *string         `json:"next_cursor"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("mekiki: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("mekiki: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(ctx, req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("mekiki: create request: %w", err)
	}

	return c.doRequest(ctx, req, dest)
}

func (c *Client) doDelete(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("mekiki: create request: %w", err)
	}

	return c.doRequest(ctx, req, dest)
}

func (c *Client) getNoAuth(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("mekiki: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("mekiki: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func (c *Client) doRequest(ctx context.Context, req *http.Request, dest any) error {
	token, err := c.tokenMgr.getToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("mekiki: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mekiki: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	// 204 No Content carries nothing to decode.
	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	if env, ok := dest.(*listEnvelope); ok {
		if err := json.Unmarshal(bodyBytes, env); err != nil {
			return fmt.Errorf("mekiki: decode list envelope: %w", err)
		}
		return nil
	}

	// Unwrap the server's { "data": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("mekiki: decode response envelope: %w", err)
	}

	if envelope.Data == nil {
		// Fallback: some endpoints may not wrap in "data".
		return json.Unmarshal(bodyBytes, dest)
	}

	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
