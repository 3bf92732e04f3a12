package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/mekiki/internal/auth"
	"github.com/ashita-ai/mekiki/internal/model"
	"github.com/ashita-ai/mekiki/internal/ratelimit"
	"github.com/ashita-ai/mekiki/internal/server"
	"github.com/ashita-ai/mekiki/internal/storage"
	"github.com/ashita-ai/mekiki/internal/testutil"
)

const (
	readerEmail = "reader@example.com"
	readerKey   = "mk_reader_0123456789abcdef"
	otherEmail  = "other@example.com"
	otherKey    = "mk_other_0123456789abcdef"
)

var (
	testDB      *storage.DB
	testSrv     *httptest.Server
	readerToken string
	otherToken  string
)

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()

	var err error
	testDB, err = tc.NewTestDB(context.Background(), testutil.TestLogger())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		tc.Terminate()
		os.Exit(1)
	}

	jwtMgr, err := auth.NewJWTManager("", "", time.Hour)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		tc.Terminate()
		os.Exit(1)
	}

	limiter := ratelimit.New()
	srv := server.New(server.ServerConfig{
		DB:                  testDB,
		JWTMgr:              jwtMgr,
		Logger:              testutil.TestLogger(),
		Limiter:             limiter,
		Version:             "test",
		MaxRequestBodyBytes: 1 << 20,
		OpenAPISpec:         []byte("openapi: 3.0.3\ninfo:\n  title: mekiki\n"),
	})
	testSrv = httptest.NewServer(srv.Handler())

	seedUser(readerEmail, readerKey, true)
	seedUser(otherEmail, otherKey, true)
	readerToken = getToken(readerEmail, readerKey)
	otherToken = getToken(otherEmail, otherKey)

	code := m.Run()

	testSrv.Close()
	limiter.Close()
	testDB.Close()
	tc.Terminate()
	os.Exit(code)
}

func seedUser(email, apiKey string, active bool) model.User {
	hash, err := auth.HashAPIKey(apiKey)
	if err != nil {
		panic(err)
	}
	u, err := testDB.CreateUser(context.Background(), model.User{
		Email:        email,
		APIKeyHash:   &hash,
		Language:     "ja",
		DefaultLevel: 2,
		IsActive:     active,
	})
	if err != nil {
		panic(err)
	}
	return u
}

func getToken(email, apiKey string) string {
	body, _ := json.Marshal(model.AuthTokenRequest{Email: email, APIKey: apiKey})
	resp, err := http.Post(testSrv.URL+"/v1/auth/token", "application/json", bytes.NewReader(body))
	if err != nil {
		panic(fmt.Sprintf("getToken: request failed: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		panic(fmt.Sprintf("getToken: status %d, body: %s", resp.StatusCode, string(data)))
	}
	var result struct {
		Data model.AuthTokenResponse `json:"data"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		panic(fmt.Sprintf("getToken: unmarshal failed: %v, body: %s", err, string(data)))
	}
	if result.Data.Token == "" {
		panic(fmt.Sprintf("getToken: empty token, body: %s", string(data)))
	}
	return result.Data.Token
}

func authedRequest(method, url, token string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return http.DefaultClient.Do(req)
}

// seedRelevantPaper inserts a paper that already passed triage.
func seedRelevantPaper(t *testing.T, arxivID string, categoryID, importance int, published time.Time) {
	t.Helper()
	ctx := context.Background()
	p := model.Paper{
		ArxivID:         arxivID,
		Title:           "Paper " + arxivID,
		Abstract:        "An abstract.",
		Authors:         []string{"Tester"},
		PDFURL:          "http://arxiv.org/pdf/" + arxivID,
		PrimaryCategory: "cs.LG",
		AllCategories:   []string{"cs.LG"},
		PublishedAt:     published,
		MatchedQueries:  []int{categoryID},
	}
	require.NoError(t, testDB.UpsertPaper(ctx, p, nil))
	require.NoError(t, testDB.UpdateVerdict(ctx, arxivID, model.Verdict{
		IsRelevant: true,
		CategoryID: categoryID,
		Confidence: 0.9,
		Importance: importance,
		SummaryJA:  "推論を高速化する論文。",
		Reasoning:  "matches the category definition",
	}))
}

func seedAnchor(t *testing.T, categoryID int, name string) {
	t.Helper()
	require.NoError(t, testDB.UpsertAnchor(context.Background(), model.Anchor{
		CategoryID:   categoryID,
		CategoryName: name,
		DefinitionEN: "Definition for " + name,
		DefinitionJA: name + "の定義。",
		Embedding:    make([]float32, 1536),
		IsActive:     true,
	}))
}

func decodeList[T any](t *testing.T, resp *http.Response) (items []T, hasNext bool, nextCursor *string) {
	t.Helper()
	var result struct {
		Data       []T     `json:"data"`
		HasNext    bool    `json:"has_next"`
		NextCursor *string `json:"next_cursor"`
	}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &result), "body: %s", string(data))
	return result.Data, result.HasNext, result.NextCursor
}

func decodeError(t *testing.T, resp *http.Response) model.APIError {
	t.Helper()
	var apiErr model.APIError
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &apiErr), "body: %s", string(data))
	return apiErr
}

func TestHealthEndpoint(t *testing.T) {
	resp, err := http.Get(testSrv.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data model.HealthResponse `json:"data"`
	}
	data, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(data, &result)
	assert.Equal(t, "healthy", result.Data.Status)
	assert.Equal(t, "connected", result.Data.Postgres)
	assert.Equal(t, "test", result.Data.Version)
}

func TestOpenAPISpec(t *testing.T) {
	resp, err := http.Get(testSrv.URL + "/openapi.yaml")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

	data, _ := io.ReadAll(resp.Body)
	assert.True(t, bytes.HasPrefix(data, []byte("openapi:")))
}

func TestAuthFlow(t *testing.T) {
	// Valid credentials.
	token := getToken(readerEmail, readerKey)
	assert.NotEmpty(t, token)

	// Wrong key.
	body, _ := json.Marshal(model.AuthTokenRequest{Email: readerEmail, APIKey: "mk_wrong"})
	resp, err := http.Post(testSrv.URL+"/v1/auth/token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Unknown account.
	body, _ = json.Marshal(model.AuthTokenRequest{Email: "nobody@example.com", APIKey: readerKey})
	resp2, err := http.Post(testSrv.URL+"/v1/auth/token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)

	// Missing fields.
	resp3, err := http.Post(testSrv.URL+"/v1/auth/token", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer func() { _ = resp3.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
	assert.Equal(t, model.ErrCodeInvalidInput, decodeError(t, resp3).Error.Code)
}

func TestAuthFlowInactiveUser(t *testing.T) {
	seedUser("inactive@example.com", "mk_inactive_0123456789", false)

	body, _ := json.Marshal(model.AuthTokenRequest{Email: "inactive@example.com", APIKey: "mk_inactive_0123456789"})
	resp, err := http.Post(testSrv.URL+"/v1/auth/token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUnauthenticatedAccess(t *testing.T) {
	resp, err := http.Get(testSrv.URL + "/v1/papers")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest("GET", testSrv.URL+"/v1/papers", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	assert.Equal(t, model.ErrCodeUnauthorized, decodeError(t, resp2).Error.Code)
}

func TestListPapersFiltersAndPagination(t *testing.T) {
	// Three papers on one day, one on the next. The date filter keeps this
	// test isolated from papers seeded elsewhere.
	day1 := time.Date(2061, 7, 1, 0, 0, 0, 0, time.UTC)
	seedRelevantPaper(t, "9401.00001", 1, 3, day1.Add(9*time.Hour))
	seedRelevantPaper(t, "9401.00002", 1, 5, day1.Add(10*time.Hour))
	seedRelevantPaper(t, "9401.00003", 2, 4, day1.Add(11*time.Hour))
	seedRelevantPaper(t, "9401.00004", 2, 4, day1.Add(26*time.Hour))

	listPapers := func(query string) ([]model.PaperListItem, bool, *string) {
		resp, err := authedRequest("GET", testSrv.URL+"/v1/papers?"+query, readerToken, nil)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return decodeList[model.PaperListItem](t, resp)
	}

	// Day filter, newest first.
	items, hasNext, _ := listPapers("date=2061-07-01")
	require.Len(t, items, 3)
	assert.False(t, hasNext)
	assert.Equal(t, "9401.00003", items[0].ArxivID)
	assert.Equal(t, "9401.00001", items[2].ArxivID)

	// Category filter.
	items, _, _ = listPapers("date=2061-07-01&category_id=1")
	require.Len(t, items, 2)

	// Importance filter.
	items, _, _ = listPapers("date=2061-07-01&min_importance=5")
	require.Len(t, items, 1)
	assert.Equal(t, "9401.00002", items[0].ArxivID)

	// Keyset pagination.
	items, hasNext, nextCursor := listPapers("date=2061-07-01&limit=2")
	require.Len(t, items, 2)
	require.True(t, hasNext)
	require.NotNil(t, nextCursor)

	items, hasNext, _ = listPapers("date=2061-07-01&limit=2&cursor=" + *nextCursor)
	require.Len(t, items, 1)
	assert.False(t, hasNext)
	assert.Equal(t, "9401.00001", items[0].ArxivID)
}

func TestListPapersInvalidParams(t *testing.T) {
	for _, query := range []string{
		"min_importance=9",
		"min_importance=abc",
		"date=not-a-date",
		"cursor=!!!",
		"cursor=bm90LWpzb24",
	} {
		resp, err := authedRequest("GET", testSrv.URL+"/v1/papers?"+query, readerToken, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "query %q", query)
		assert.Equal(t, model.ErrCodeInvalidInput, decodeError(t, resp).Error.Code)
		_ = resp.Body.Close()
	}
}

func TestGetPaperDetail(t *testing.T) {
	seedAnchor(t, 4, "効率化・軽量化")
	seedRelevantPaper(t, "9402.00100", 4, 5, time.Date(2061, 8, 1, 9, 0, 0, 0, time.UTC))

	ctx := context.Background()
	review := model.DetailReview{
		Sections: []model.ReviewSection{
			{SectionID: "overview", TitleJA: "概要", ContentJA: "本文の要点。"},
		},
		Perspectives: model.ReviewPerspectives{
			AIEngineer:    "実装観点の解説。",
			Mathematician: "理論観点の解説。",
			Business:      "事業観点の解説。",
		},
		Levels: model.ReviewLevels{
			Beginner:     "やさしい説明。",
			Intermediate: "中級者向けの説明。",
			Expert:       "専門家向けの説明。",
		},
		OneLineTakeaway: "一行まとめ。",
	}
	require.NoError(t, testDB.UpdateDetailReview(ctx, "9402.00100", review))

	caption := "Throughput comparison"
	require.NoError(t, testDB.UpsertFigures(ctx, "9402.00100", []model.PaperFigure{
		{
			FigureIndex:   1,
			S3Key:         "figures/9402.00100/fig_001.png",
			S3URL:         "https://cdn.example.com/figures/9402.00100/fig_001.png",
			Width:         800,
			Height:        600,
			FileSizeBytes: 12345,
			Caption:       &caption,
		},
	}))

	resp, err := authedRequest("GET", testSrv.URL+"/v1/papers/9402.00100", readerToken, nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data model.PaperDetail `json:"data"`
	}
	data, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(data, &result), "body: %s", string(data))

	detail := result.Data
	assert.Equal(t, "9402.00100", detail.ArxivID)
	require.NotNil(t, detail.SummaryJA)
	assert.Equal(t, "推論を高速化する論文。", *detail.SummaryJA)
	require.NotNil(t, detail.DetailReview)
	assert.Equal(t, "一行まとめ。", detail.DetailReview.OneLineTakeaway)
	require.NotNil(t, detail.CategoryName)
	assert.Equal(t, "効率化・軽量化", *detail.CategoryName)
	require.Len(t, detail.Figures, 1)
	assert.Equal(t, "https://cdn.example.com/figures/9402.00100/fig_001.png", detail.Figures[0].S3URL)

	// A second view of the same paper upserts, not duplicates.
	resp2, err := authedRequest("GET", testSrv.URL+"/v1/papers/9402.00100", readerToken, nil)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestGetPaperNotFound(t *testing.T) {
	resp, err := authedRequest("GET", testSrv.URL+"/v1/papers/9499.99999", readerToken, nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, model.ErrCodePaperNotFound, decodeError(t, resp).Error.Code)
}

func TestBookmarkLifecycle(t *testing.T) {
	seedRelevantPaper(t, "9403.00001", 3, 4, time.Date(2061, 9, 1, 9, 0, 0, 0, time.UTC))

	// Create.
	resp, err := authedRequest("POST", testSrv.URL+"/v1/bookmarks", readerToken,
		model.CreateBookmarkRequest{ArxivID: "9403.00001"})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Data model.CreateBookmarkResponse `json:"data"`
	}
	data, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(data, &created))
	require.NotZero(t, created.Data.BookmarkID)

	// Duplicate.
	resp2, err := authedRequest("POST", testSrv.URL+"/v1/bookmarks", readerToken,
		model.CreateBookmarkRequest{ArxivID: "9403.00001"})
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusConflict, resp2.StatusCode)
	assert.Equal(t, model.ErrCodeAlreadyBookmarked, decodeError(t, resp2).Error.Code)

	// List contains it.
	resp3, err := authedRequest("GET", testSrv.URL+"/v1/bookmarks", readerToken, nil)
	require.NoError(t, err)
	defer func() { _ = resp3.Body.Close() }()
	require.Equal(t, http.StatusOK, resp3.StatusCode)
	items, _, _ := decodeList[model.BookmarkItem](t, resp3)
	found := false
	for _, it := range items {
		if it.BookmarkID == created.Data.BookmarkID {
			found = true
			assert.Equal(t, "9403.00001", it.ArxivID)
		}
	}
	assert.True(t, found)

	// Delete.
	resp4, err := authedRequest("DELETE", fmt.Sprintf("%s/v1/bookmarks/%d", testSrv.URL, created.Data.BookmarkID), readerToken, nil)
	require.NoError(t, err)
	defer func() { _ = resp4.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp4.StatusCode)

	// Delete again.
	resp5, err := authedRequest("DELETE", fmt.Sprintf("%s/v1/bookmarks/%d", testSrv.URL, created.Data.BookmarkID), readerToken, nil)
	require.NoError(t, err)
	defer func() { _ = resp5.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp5.StatusCode)
}

func TestCreateBookmarkUnknownPaper(t *testing.T) {
	resp, err := authedRequest("POST", testSrv.URL+"/v1/bookmarks", readerToken,
		model.CreateBookmarkRequest{ArxivID: "9499.88888"})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, model.ErrCodePaperNotFound, decodeError(t, resp).Error.Code)
}

func TestDeleteForeignBookmark(t *testing.T) {
	seedRelevantPaper(t, "9403.00002", 3, 4, time.Date(2061, 9, 2, 9, 0, 0, 0, time.UTC))

	resp, err := authedRequest("POST", testSrv.URL+"/v1/bookmarks", readerToken,
		model.CreateBookmarkRequest{ArxivID: "9403.00002"})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Data model.CreateBookmarkResponse `json:"data"`
	}
	data, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(data, &created))

	resp2, err := authedRequest("DELETE", fmt.Sprintf("%s/v1/bookmarks/%d", testSrv.URL, created.Data.BookmarkID), otherToken, nil)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp2.StatusCode)
	assert.Equal(t, model.ErrCodeForbidden, decodeError(t, resp2).Error.Code)
}

func TestBookmarkPagination(t *testing.T) {
	user := seedUser("pager@example.com", "mk_pager_0123456789abcd", true)
	token := getToken("pager@example.com", "mk_pager_0123456789abcd")

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		arxivID := fmt.Sprintf("9404.0000%d", i)
		seedRelevantPaper(t, arxivID, 5, 3, time.Date(2061, 10, i, 9, 0, 0, 0, time.UTC))
		paperID, err := testDB.GetPaperID(ctx, arxivID)
		require.NoError(t, err)
		_, err = testDB.CreateBookmark(ctx, user.ID, paperID)
		require.NoError(t, err)
	}

	resp, err := authedRequest("GET", testSrv.URL+"/v1/bookmarks?limit=2", token, nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	items, hasNext, nextCursor := decodeList[model.BookmarkItem](t, resp)
	require.Len(t, items, 2)
	require.True(t, hasNext)
	require.NotNil(t, nextCursor)
	// Newest bookmark first.
	assert.Equal(t, "9404.00003", items[0].ArxivID)

	resp2, err := authedRequest("GET", testSrv.URL+"/v1/bookmarks?limit=2&cursor="+*nextCursor, token, nil)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	items, hasNext, _ = decodeList[model.BookmarkItem](t, resp2)
	require.Len(t, items, 1)
	assert.False(t, hasNext)
	assert.Equal(t, "9404.00001", items[0].ArxivID)
}

func TestCategoriesEndpoint(t *testing.T) {
	seedAnchor(t, 2, "マルチモーダル")

	resp, err := authedRequest("GET", testSrv.URL+"/v1/categories", readerToken, nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data []model.Anchor `json:"data"`
	}
	data, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(data, &result))

	found := false
	for _, a := range result.Data {
		if a.CategoryID == 2 {
			found = true
			assert.Equal(t, "マルチモーダル", a.CategoryName)
			assert.NotEmpty(t, a.DefinitionEN)
		}
	}
	assert.True(t, found)
}

func TestRateLimitHeaders(t *testing.T) {
	resp, err := authedRequest("GET", testSrv.URL+"/v1/papers", readerToken, nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "300", resp.Header.Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
}

func TestRequestIDPropagation(t *testing.T) {
	req, _ := http.NewRequest("GET", testSrv.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "req-propagated")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "req-propagated", resp.Header.Get("X-Request-ID"))

	var result struct {
		Meta model.ResponseMeta `json:"meta"`
	}
	data, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(data, &result)
	assert.Equal(t, "req-propagated", result.Meta.RequestID)
}
