package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/spidey/internal/core"
	"github.com/deidaraiorek/spidey/internal/crawler"
	"github.com/deidaraiorek/spidey/internal/engine"
	"github.com/deidaraiorek/spidey/internal/search"
	"github.com/deidaraiorek/spidey/internal/server"
	"github.com/deidaraiorek/spidey/internal/storage"
)

type fakeEngine struct {
	crawlErr  error
	searchErr error
	infoErr   error

	seed   string
	target int
	query  string
	n      int
}

func (f *fakeEngine) Crawl(ctx context.Context, seed string, target int) (*engine.Summary, error) {
	f.seed, f.target = seed, target
	if f.crawlErr != nil {
		return nil, f.crawlErr
	}
	return &engine.Summary{
		RunID:        "run-1",
		Seed:         seed,
		State:        crawler.StateCompleted,
		PagesVisited: target,
		TermCount:    42,
		BigramCount:  17,
		TrigramCount: 9,
	}, nil
}

func (f *fakeEngine) Search(ctx context.Context, query string, n int) ([]search.Result, error) {
	f.query, f.n = query, n
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if query == "nothing" {
		return nil, nil
	}
	return []search.Result{{
		PageID:       1,
		Title:        "Spiders",
		URL:          "https://s.test/",
		LastModified: "Unknown",
		TopKeywords:  []storage.Keyword{{Term: "spider", Frequency: 3}},
		ChildLinks:   []string{"https://s.test/a"},
		Content:      "spiders spiders spiders",
		Score:        0.5,
	}}, nil
}

func (f *fakeEngine) Info(ctx context.Context) (*storage.Info, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &storage.Info{NumPages: 3, NumTerms: 42, AvgTitleLength: 7.5}, nil
}

func newServer(t *testing.T, e *fakeEngine) *httptest.Server {
	t.Helper()
	s := server.New(e, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestCrawl(t *testing.T) {
	e := &fakeEngine{}
	ts := newServer(t, e)

	status, body := do(t, http.MethodPost, ts.URL+"/crawl?seedUrl=https%3A%2F%2Fs.test%2F&targetVisited=30")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://s.test/", e.seed)
	assert.Equal(t, 30, e.target)
	assert.Equal(t, float64(30), body["pagesVisited"])
	assert.Equal(t, float64(42), body["termCount"])
	assert.Equal(t, float64(17), body["bigramCount"])
	assert.Equal(t, float64(9), body["trigramCount"])
	assert.Equal(t, "completed", body["state"])
}

func TestCrawlErrors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{name: "missing seed", query: "targetVisited=5", status: http.StatusBadRequest},
		{name: "bad target", query: "seedUrl=https://s.test/&targetVisited=lots", status: http.StatusBadRequest},
		{name: "validation", query: "seedUrl=https://s.test/&targetVisited=5000",
			err: core.Invalid("targetVisited", "must be between 2 and 1000"), status: http.StatusBadRequest},
		{name: "busy", query: "seedUrl=https://s.test/&targetVisited=5", err: core.ErrBusy, status: http.StatusConflict},
		{name: "internal", query: "seedUrl=https://s.test/&targetVisited=5",
			err: fmt.Errorf("save page: %w", errors.New("disk full")), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newServer(t, &fakeEngine{crawlErr: tt.err})
			status, body := do(t, http.MethodPost, ts.URL+"/crawl?"+tt.query)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, "error", body["status"])
			assert.NotEmpty(t, body["message"])
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal error", body["message"])
			}
		})
	}
}

func TestSearch(t *testing.T) {
	e := &fakeEngine{}
	ts := newServer(t, e)

	status, body := do(t, http.MethodGet, ts.URL+"/search/%22hong%20kong%22%20university")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, `"hong kong" university`, e.query)
	assert.Equal(t, search.DefaultResults, e.n)

	pages := body["pages"].([]any)
	require.Len(t, pages, 1)
	page := pages[0].(map[string]any)
	assert.Equal(t, "Spiders", page["title"])
	assert.Equal(t, "https://s.test/", page["url"])
	assert.Equal(t, "Unknown", page["lastModified"])
	assert.Equal(t, []any{"https://s.test/a"}, page["childLinks"])
	assert.Equal(t, 0.5, page["score"])
	keyword := page["topKeywords"].([]any)[0].(map[string]any)
	assert.Equal(t, "spider", keyword["term"])

	status, _ = do(t, http.MethodGet, ts.URL+"/search/spiders/5")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "spiders", e.query)
	assert.Equal(t, 5, e.n)

	status, body = do(t, http.MethodGet, ts.URL+"/search/nothing")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["pages"])
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{name: "bad count", path: "/search/spiders/many", status: http.StatusBadRequest},
		{name: "zero count", path: "/search/spiders/0", status: http.StatusBadRequest},
		{name: "validation", path: "/search/%20", err: core.Invalid("query", "query must not be empty"), status: http.StatusBadRequest},
		{name: "rebuilding", path: "/search/spiders", err: core.ErrRebuilding, status: http.StatusServiceUnavailable},
		{name: "no index", path: "/search/spiders", err: core.ErrNoIndex, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newServer(t, &fakeEngine{searchErr: tt.err})
			status, body := do(t, http.MethodGet, ts.URL+tt.path)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, "error", body["status"])
		})
	}
}

func TestInfo(t *testing.T) {
	ts := newServer(t, &fakeEngine{})
	status, body := do(t, http.MethodGet, ts.URL+"/info")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["numPages"])
	assert.Equal(t, 7.5, body["avgTitleLength"])

	ts = newServer(t, &fakeEngine{infoErr: core.ErrNoIndex})
	status, body = do(t, http.MethodGet, ts.URL+"/info")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "error", body["status"])
}
