package search_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/spidey/internal/core"
	"github.com/deidaraiorek/spidey/internal/indexer"
	"github.com/deidaraiorek/spidey/internal/search"
	"github.com/deidaraiorek/spidey/internal/storage"
	"github.com/deidaraiorek/spidey/internal/vectors"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixturePage struct {
	title, content string
	links          []string
}

func openDB(t *testing.T) *storage.Database {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func buildIndex(t *testing.T, db *storage.Database, pages []fixturePage) {
	t.Helper()
	ctx := context.Background()

	for i, p := range pages {
		_, err := db.SavePage(ctx, &storage.Page{
			URL:          fmt.Sprintf("https://s.test/%d", i+1),
			Title:        p.title,
			Content:      p.content,
			RawHTML:      "<html></html>",
			LastModified: "Tue, 01 Sep 2026 10:00:00 GMT",
		}, p.links)
		require.NoError(t, err)
	}

	ix, err := indexer.New(db, indexer.WithPoolSize(2), indexer.WithLogger(discard))
	require.NoError(t, err)
	defer ix.Release()

	info, err := ix.Build(ctx)
	require.NoError(t, err)
	require.NoError(t, vectors.NewBuilder(db, vectors.WithLogger(discard)).Build(ctx, info))
	require.NoError(t, db.SaveInfo(ctx, info))
}

var fillers = []fixturePage{
	{title: "Cooking", content: "Noodles and dumplings for dinner"},
	{title: "Gardening", content: "Tomatoes need sun and water"},
	{title: "Astronomy", content: "Stars and planets at night"},
}

func TestExtractPhrases(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    []string
		invalid bool
	}{
		{name: "none", query: "hong kong", want: nil},
		{name: "one", query: `campus "hong kong" life`, want: []string{"hong kong"}},
		{name: "several", query: `"hong kong" "science park"`, want: []string{"hong kong", "science park"}},
		{name: "whitespace normalized", query: `"  hong   kong "`, want: []string{"hong kong"}},
		{name: "blank skipped", query: `"" spiders`, want: nil},
		{name: "duplicate collapsed", query: `"hong kong" "hong kong"`, want: []string{"hong kong"}},
		{name: "unterminated", query: `"hong kong`, want: nil},
		{name: "three words", query: `"hong kong university"`, want: []string{"hong kong university"}},
		{name: "too long", query: `"the hong kong university"`, invalid: true},
		{name: "nested", query: `"hong kong" "hong kong university"`, invalid: true},
		{name: "nested reversed", query: `"kong university" "hong kong university"`, invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := search.ExtractPhrases(tt.query)
			if tt.invalid {
				assert.True(t, core.IsValidation(err), "err = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	qe := search.NewQueryEngine(openDB(t), search.WithLogger(discard))
	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := qe.Search(context.Background(), q, 10)
		assert.True(t, core.IsValidation(err), "query %q", q)
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	qe := search.NewQueryEngine(openDB(t), search.WithLogger(discard))
	_, err := qe.Search(context.Background(), "spiders", 10)
	assert.True(t, errors.Is(err, core.ErrNoIndex))
}

func TestPhraseBoost(t *testing.T) {
	db := openDB(t)
	buildIndex(t, db, append([]fixturePage{
		{title: "Campus", content: "hong kong university"},
		{title: "Campus", content: "university kong hong"},
	}, fillers...))
	qe := search.NewQueryEngine(db, search.WithLogger(discard))
	ctx := context.Background()

	plain, err := qe.Search(ctx, "hong kong university", 10)
	require.NoError(t, err)
	require.Len(t, plain, 5)
	assert.Equal(t, plain[0].Score, plain[1].Score)
	assert.Equal(t, int64(1), plain[0].PageID)
	assert.Equal(t, int64(2), plain[1].PageID)

	boosted, err := qe.Search(ctx, `"hong kong university"`, 10)
	require.NoError(t, err)
	require.Len(t, boosted, 5)
	assert.Equal(t, int64(1), boosted[0].PageID)
	assert.Equal(t, int64(2), boosted[1].PageID)
	assert.Greater(t, boosted[0].Score, boosted[1].Score)
	assert.InDelta(t, plain[1].Score*0.9, boosted[1].Score, 1e-12)
	assert.InDelta(t, min(1, plain[0].Score*1.1), boosted[0].Score, 1e-12)

	// Reversed word order is a different trigram.
	reversed, err := qe.Search(ctx, `"university kong hong"`, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reversed[0].PageID)
}

func TestUnigramAndBigramMultipliers(t *testing.T) {
	db := openDB(t)
	buildIndex(t, db, append([]fixturePage{
		{title: "Campus", content: "hong kong harbour"},
		{title: "Campus", content: "kong hong harbour"},
	}, fillers...))
	qe := search.NewQueryEngine(db, search.WithLogger(discard))
	ctx := context.Background()

	plain, err := qe.Search(ctx, "hong kong", 10)
	require.NoError(t, err)
	require.Equal(t, plain[0].Score, plain[1].Score)
	base := plain[0].Score

	bigram, err := qe.Search(ctx, `"hong kong"`, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bigram[0].PageID)
	assert.InDelta(t, min(1, base*1.05), bigram[0].Score, 1e-12)
	assert.InDelta(t, base*0.95, bigram[1].Score, 1e-12)

	withHarbour, err := qe.Search(ctx, "harbour hong kong", 10)
	require.NoError(t, err)
	unigram, err := qe.Search(ctx, `"harbour" hong kong`, 10)
	require.NoError(t, err)
	assert.InDelta(t, min(1, withHarbour[0].Score*1.025), unigram[0].Score, 1e-12)
	assert.InDelta(t, min(1, withHarbour[1].Score*1.025), unigram[1].Score, 1e-12)
	for _, r := range unigram[2:] {
		assert.Zero(t, r.Score)
	}
}

func TestUnknownPhraseSkipped(t *testing.T) {
	db := openDB(t)
	buildIndex(t, db, append([]fixturePage{
		{title: "Spiders", content: "Spiders crawl the web"},
	}, fillers...))
	qe := search.NewQueryEngine(db, search.WithLogger(discard))
	ctx := context.Background()

	plain, err := qe.Search(ctx, "spiders", 10)
	require.NoError(t, err)

	for _, q := range []string{`spiders "zebra"`, `spiders "purple zebra"`, `spiders "purple zebra giraffe"`, `spiders "the"`} {
		got, err := qe.Search(ctx, q, 10)
		require.NoError(t, err, q)
		require.Len(t, got, len(plain), q)
		for i := range got {
			assert.Equal(t, plain[i].PageID, got[i].PageID, q)
			assert.InDelta(t, plain[i].Score, got[i].Score, 1e-12, q)
		}
	}
}

func TestRankingOrder(t *testing.T) {
	db := openDB(t)
	buildIndex(t, db, append([]fixturePage{
		{title: "Web spiders", content: "Spiders crawl the web and spiders index pages"},
		{title: "Insects", content: "Garden spiders spin webs"},
		{title: "Search", content: "Engines rank pages from the web"},
	}, fillers...))
	qe := search.NewQueryEngine(db, search.WithLogger(discard))

	results, err := qe.Search(context.Background(), "web spiders", 0)
	require.NoError(t, err)
	require.Len(t, results, 6)
	assert.Equal(t, int64(1), results[0].PageID)

	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		assert.GreaterOrEqual(t, prev.Score, cur.Score)
		if prev.Score == cur.Score {
			assert.Less(t, prev.PageID, cur.PageID)
		}
		assert.GreaterOrEqual(t, cur.Score, -1.0)
		assert.LessOrEqual(t, cur.Score, 1.0)
	}

	top, err := qe.Search(context.Background(), "web spiders", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, results[:2], top)
}

func TestStopwordQueryScoresZero(t *testing.T) {
	db := openDB(t)
	buildIndex(t, db, fillers)
	qe := search.NewQueryEngine(db, search.WithLogger(discard))

	results, err := qe.Search(context.Background(), "the and of", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Zero(t, r.Score)
	}
	assert.Equal(t, int64(1), results[0].PageID)
}

func TestResultMetadata(t *testing.T) {
	var links []string
	for i := 0; i < 12; i++ {
		links = append(links, fmt.Sprintf("https://s.test/child/%d", i))
	}
	db := openDB(t)
	buildIndex(t, db, append([]fixturePage{{
		title:   "Spiders",
		content: "spiders spiders spiders web web crawl index rank page link site node edge graph tree",
		links:   links,
	}}, fillers...))
	qe := search.NewQueryEngine(db, search.WithLogger(discard))

	results, err := qe.Search(context.Background(), "spiders", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	r := results[0]

	assert.Equal(t, "Spiders", r.Title)
	assert.Equal(t, "https://s.test/1", r.URL)
	assert.Equal(t, "Tue, 01 Sep 2026 10:00:00 GMT", r.LastModified)
	assert.Equal(t, links[:10], r.ChildLinks)

	require.Len(t, r.TopKeywords, 10)
	assert.Equal(t, storage.Keyword{Term: "spider", Frequency: 3}, r.TopKeywords[0])
	assert.Equal(t, storage.Keyword{Term: "web", Frequency: 2}, r.TopKeywords[1])
	assert.Equal(t, "crawl", r.TopKeywords[2].Term)
}

func TestStaleVectors(t *testing.T) {
	db := openDB(t)
	buildIndex(t, db, fillers)
	ctx := context.Background()

	info, err := db.Info(ctx)
	require.NoError(t, err)
	var stale []storage.PageVector
	for id := int64(1); id <= int64(info.NumPages); id++ {
		stale = append(stale, storage.PageVector{PageID: id, Weighted: vectors.Encode(make(vectors.Vector, info.NumTerms-1))})
	}
	require.NoError(t, db.ReplaceVectors(ctx, stale))

	qe := search.NewQueryEngine(db, search.WithLogger(discard))
	_, err = qe.Search(ctx, "noodles", 10)
	assert.True(t, errors.Is(err, core.ErrStaleVector))
}

func TestInvalidate(t *testing.T) {
	db := openDB(t)
	buildIndex(t, db, fillers)
	ctx := context.Background()
	qe := search.NewQueryEngine(db, search.WithLogger(discard))

	before, err := qe.Search(ctx, "noodles", 10)
	require.NoError(t, err)
	require.Len(t, before, 3)

	require.NoError(t, db.Reset(ctx))
	buildIndex(t, db, append([]fixturePage{{title: "Noodles", content: "Noodles"}, {title: "Pasta", content: "Spaghetti"}}, fillers...))
	qe.Invalidate()

	after, err := qe.Search(ctx, "noodles", 10)
	require.NoError(t, err)
	require.Len(t, after, 5)
	assert.Equal(t, "Noodles", after[0].Title)
}
