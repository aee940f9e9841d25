package frontier_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/spidey/internal/frontier"
)

func TestFrontierFIFO(t *testing.T) {
	f := frontier.New()
	require.Zero(t, f.Len())

	f.Push(frontier.Entry{URL: "https://a.com/"})
	f.Push(
		frontier.Entry{URL: "https://a.com/1", ParentID: 1},
		frontier.Entry{URL: "https://a.com/2", ParentID: 1},
	)
	f.Push(frontier.Entry{URL: "https://a.com/1", ParentID: 2})
	assert.Equal(t, 4, f.Len())

	want := []frontier.Entry{
		{URL: "https://a.com/"},
		{URL: "https://a.com/1", ParentID: 1},
		{URL: "https://a.com/2", ParentID: 1},
		{URL: "https://a.com/1", ParentID: 2},
	}
	for _, w := range want {
		got, ok := f.Pop()
		require.True(t, ok)
		assert.Equal(t, w, got)
	}

	_, ok := f.Pop()
	assert.False(t, ok)
	assert.Zero(t, f.Len())
}

func TestFrontierCompaction(t *testing.T) {
	f := frontier.New()
	for i := 0; i < 5000; i++ {
		f.Push(frontier.Entry{URL: fmt.Sprintf("https://a.com/%d", i)})
	}

	for i := 0; i < 3000; i++ {
		e, ok := f.Pop()
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("https://a.com/%d", i), e.URL)
	}

	f.Push(frontier.Entry{URL: "https://a.com/last"})
	assert.Equal(t, 2001, f.Len())

	e, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "https://a.com/3000", e.URL)
}

func TestFrontierVisited(t *testing.T) {
	f := frontier.New()

	_, ok := f.Visited("https://a.com/")
	assert.False(t, ok)

	f.MarkVisited("https://a.com/", 7)
	id, ok := f.Visited("https://a.com/")
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, 1, f.VisitedCount())
}

func TestFrontierFailed(t *testing.T) {
	f := frontier.New()
	assert.False(t, f.Failed("https://a.com/broken"))

	f.MarkFailed("https://a.com/broken")
	assert.True(t, f.Failed("https://a.com/broken"))
	assert.Zero(t, f.VisitedCount())
}
