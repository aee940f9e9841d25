package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/spidey/internal/core"
	"github.com/deidaraiorek/spidey/internal/storage"
)

func openDB(t *testing.T) *storage.Database {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "spidey.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func savePage(t *testing.T, db *storage.Database, url string, parent int64, links ...string) int64 {
	t.Helper()
	id, err := db.SavePage(context.Background(), &storage.Page{
		URL:         url,
		Title:       "Title of " + url,
		Content:     "content",
		RawHTML:     "<html></html>",
		Size:        13,
		ContentHash: "hash",
		ParentID:    parent,
	}, links)
	require.NoError(t, err)
	return id
}

func TestSavePageLinks(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	root := savePage(t, db, "https://a.com/", 0, "https://a.com/x", "https://a.com/y", "https://a.com/")
	assert.Equal(t, int64(1), root)

	links, err := db.ChildLinks(ctx, root, 0)
	require.NoError(t, err)
	assert.Equal(t, []storage.ChildLink{
		{URL: "https://a.com/x"},
		{URL: "https://a.com/y"},
		{URL: "https://a.com/", PageID: root},
	}, links)

	x := savePage(t, db, "https://a.com/x", root, "https://a.com/y")

	links, err = db.ChildLinks(ctx, root, 2)
	require.NoError(t, err)
	assert.Equal(t, []storage.ChildLink{
		{URL: "https://a.com/x", PageID: x},
		{URL: "https://a.com/y"},
	}, links)

	y := savePage(t, db, "https://a.com/y", root)
	links, err = db.ChildLinks(ctx, x, 0)
	require.NoError(t, err)
	assert.Equal(t, y, links[0].PageID)

	require.NoError(t, db.AddParentLink(ctx, y, x))
	require.NoError(t, db.AddParentLink(ctx, y, x))
	parents, err := db.ParentLinks(ctx, y)
	require.NoError(t, err)
	assert.Equal(t, []int64{root, x}, parents)

	page, err := db.Page(ctx, y)
	require.NoError(t, err)
	assert.Equal(t, root, page.ParentID)
	assert.Equal(t, storage.UnknownLastModified, page.LastModified)

	dangling, err := db.DanglingChildLinks(ctx)
	require.NoError(t, err)
	assert.Zero(t, dangling)
}

func TestSavePageDuplicateURL(t *testing.T) {
	db := openDB(t)
	savePage(t, db, "https://a.com/", 0)

	_, err := db.SavePage(context.Background(), &storage.Page{URL: "https://a.com/"}, nil)
	assert.Error(t, err)

	count, err := db.PageCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPageMissing(t *testing.T) {
	db := openDB(t)
	_, err := db.Page(context.Background(), 42)
	assert.True(t, errors.Is(err, core.ErrDataIntegrity))

	_, found, err := db.PageIDByURL(context.Background(), "https://nowhere/")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIndexWriter(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	p1 := savePage(t, db, "https://a.com/1", 0)
	p2 := savePage(t, db, "https://a.com/2", 0)

	w, err := db.BeginIndex(ctx)
	require.NoError(t, err)

	hong, err := w.TermID("hong")
	require.NoError(t, err)
	kong, err := w.TermID("kong")
	require.NoError(t, err)
	again, err := w.TermID("hong")
	require.NoError(t, err)
	assert.Equal(t, int64(1), hong)
	assert.Equal(t, int64(2), kong)
	assert.Equal(t, hong, again)

	require.NoError(t, w.AddTerm(storage.Title, p1, hong, []int{0}))
	require.NoError(t, w.AddTerm(storage.Content, p1, hong, []int{0, 2}))
	require.NoError(t, w.AddTerm(storage.Content, p1, kong, []int{1, 3}))
	require.NoError(t, w.AddTerm(storage.Content, p2, kong, []int{0}))

	bigram, err := w.NGramID([]int64{hong, kong})
	require.NoError(t, err)
	reversed, err := w.NGramID([]int64{kong, hong})
	require.NoError(t, err)
	same, err := w.NGramID([]int64{hong, kong})
	require.NoError(t, err)
	assert.NotEqual(t, bigram, reversed)
	assert.Equal(t, bigram, same)

	require.NoError(t, w.AddNGram(storage.Content, 2, p1, bigram, []int{0, 2}))
	_, err = w.NGramID([]int64{hong})
	assert.Error(t, err)
	require.NoError(t, w.Commit())
	require.NoError(t, w.Rollback())

	positions, err := db.TermPositions(ctx, p1, storage.Content)
	require.NoError(t, err)
	assert.Equal(t, map[int64][]int{hong: {0, 2}, kong: {1, 3}}, positions)

	freqs, err := db.TermFrequencies(ctx, p1, storage.Content)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{hong: 2, kong: 2}, freqs)

	ngrams, err := db.NGramPositions(ctx, 2, p1, storage.Content)
	require.NoError(t, err)
	assert.Equal(t, map[int64][]int{bigram: {0, 2}}, ngrams)

	pages, err := db.PagesWithTerm(ctx, kong)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{p1: true, p2: true}, pages)

	pages, err = db.PagesWithNGram(ctx, 2, bigram)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{p1: true}, pages)

	id, found, err := db.LookupNGram(ctx, []int64{hong, kong})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, bigram, id)

	_, found, err = db.LookupNGram(ctx, []int64{hong, kong, hong})
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, db.UpdateDocumentFrequencies(ctx))
	dfs, err := db.DocumentFrequencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, dfs)

	terms, err := db.LookupTerms(ctx, []string{"hong", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]storage.Term{"hong": {ID: hong, Term: "hong", DocumentFrequency: 1}}, terms)

	keywords, err := db.TopKeywords(ctx, p1, 10)
	require.NoError(t, err)
	assert.Equal(t, []storage.Keyword{{Term: "hong", Frequency: 2}, {Term: "kong", Frequency: 2}}, keywords)
}

func TestInfoAndReset(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	_, err := db.Info(ctx)
	assert.True(t, errors.Is(err, core.ErrNoIndex))

	savePage(t, db, "https://a.com/", 0, "https://a.com/x")
	w, err := db.BeginIndex(ctx)
	require.NoError(t, err)
	_, err = w.TermID("spider")
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	info, err := db.ComputeInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.NumPages)
	assert.Equal(t, 1, info.NumTerms)
	assert.InDelta(t, float64(len("Title of https://a.com/")), info.AvgTitleLength, 1e-9)
	assert.InDelta(t, 7.0, info.AvgContentLength, 1e-9)

	require.NoError(t, db.SaveInfo(ctx, info))
	stored, err := db.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.NumPages)

	require.NoError(t, db.ReplaceVectors(ctx, []storage.PageVector{{PageID: 1, Title: []byte{1}, Content: []byte{2}, Weighted: []byte{3}}}))
	vecs, err := db.WeightedVectors(ctx)
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, []byte{3}, vecs[0].Weighted)

	require.NoError(t, db.Reset(ctx))

	count, err := db.PageCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	_, err = db.Info(ctx)
	assert.True(t, errors.Is(err, core.ErrNoIndex))

	id := savePage(t, db, "https://b.com/", 0)
	assert.Equal(t, int64(1), id)

	w, err = db.BeginIndex(ctx)
	require.NoError(t, err)
	termID, err := w.TermID("again")
	require.NoError(t, err)
	require.NoError(t, w.Commit())
	assert.Equal(t, int64(1), termID)
}
