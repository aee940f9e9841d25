// Package search ranks indexed pages against free-text and quoted-phrase
// queries.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/deidaraiorek/spidey/internal/core"
	"github.com/deidaraiorek/spidey/internal/storage"
	"github.com/deidaraiorek/spidey/internal/textprocessor"
	"github.com/deidaraiorek/spidey/internal/vectors"
)

// QueryEngine answers queries against a finished index. It is safe for
// concurrent use; callers must keep it away from an index that is being
// rebuilt and call Invalidate afterwards.
type QueryEngine struct {
	db        *storage.Database
	processor *textprocessor.TextProcessor
	logger    *slog.Logger

	mu    sync.Mutex
	cache *snapshot
}

// snapshot is the decoded state a query is scored against.
type snapshot struct {
	info  *storage.Info
	dim   int
	pages []pageVector
}

type pageVector struct {
	id       int64
	weighted vectors.Vector
}

type Option func(*QueryEngine)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(qe *QueryEngine) {
		if logger == nil {
			logger = slog.Default()
		}
		qe.logger = logger
	}
}

func NewQueryEngine(db *storage.Database, opts ...Option) *QueryEngine {
	qe := &QueryEngine{
		db:        db,
		processor: textprocessor.NewTextProcessor(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(qe)
	}
	return qe
}

// Invalidate drops the cached vectors and statistics.
func (qe *QueryEngine) Invalidate() {
	qe.mu.Lock()
	qe.cache = nil
	qe.mu.Unlock()
}

func (qe *QueryEngine) load(ctx context.Context) (*snapshot, error) {
	qe.mu.Lock()
	defer qe.mu.Unlock()
	if qe.cache != nil {
		return qe.cache, nil
	}

	info, err := qe.db.Info(ctx)
	if err != nil {
		return nil, err
	}
	dim, err := qe.db.TermCount(ctx)
	if err != nil {
		return nil, err
	}
	if dim != info.NumTerms {
		return nil, fmt.Errorf("dictionary has %d terms, statistics say %d: %w", dim, info.NumTerms, core.ErrStaleVector)
	}

	stored, err := qe.db.WeightedVectors(ctx)
	if err != nil {
		return nil, err
	}
	if len(stored) != info.NumPages {
		return nil, fmt.Errorf("%d page vectors for %d pages: %w", len(stored), info.NumPages, core.ErrStaleVector)
	}

	snap := &snapshot{info: info, dim: dim, pages: make([]pageVector, len(stored))}
	for i, s := range stored {
		v, err := vectors.Decode(s.Weighted, dim)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", s.PageID, err)
		}
		snap.pages[i] = pageVector{id: s.PageID, weighted: v}
	}

	qe.cache = snap
	return snap, nil
}

// Search returns the n best pages for query, best first. n <= 0 means
// DefaultResults.
func (qe *QueryEngine) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, core.Invalid("query", "query must not be empty")
	}
	if n <= 0 {
		n = DefaultResults
	}
	start := time.Now()

	phrases, err := ExtractPhrases(query)
	if err != nil {
		return nil, err
	}

	snap, err := qe.load(ctx)
	if err != nil {
		return nil, err
	}

	queryVec, err := qe.queryVector(ctx, strings.ReplaceAll(query, `"`, " "), snap)
	if err != nil {
		return nil, err
	}

	var matches []phraseMatch
	for _, phrase := range phrases {
		m, ok, err := qe.resolvePhrase(ctx, phrase)
		if err != nil {
			return nil, err
		}
		if !ok {
			qe.logger.Debug("phrase not in index", "phrase", phrase)
			continue
		}
		matches = append(matches, m)
	}

	type scored struct {
		id    int64
		score float64
	}
	ranked := make([]scored, len(snap.pages))
	for i, p := range snap.pages {
		score := vectors.Cosine(queryVec, p.weighted)
		for _, m := range matches {
			score = m.apply(p.id, score)
		}
		ranked[i] = scored{id: p.id, score: clamp(score)}
	}

	// snap.pages is in page id order, so the stable sort breaks ties by id.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	results := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		res, err := qe.result(ctx, r.id, r.score)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}

	qe.logger.Debug("query answered",
		"query", query,
		"phrases", len(matches),
		"results", len(results),
		"duration", time.Since(start))
	return results, nil
}

// queryVector weights the distinct stems of text that exist in the
// dictionary. Unknown stems are dropped.
func (qe *QueryEngine) queryVector(ctx context.Context, text string, snap *snapshot) (vectors.Vector, error) {
	freqs := qe.processor.ProcessToFrequency(text)
	stems := make([]string, 0, len(freqs))
	for stem := range freqs {
		stems = append(stems, stem)
	}

	found, err := qe.db.LookupTerms(ctx, stems)
	if err != nil {
		return nil, err
	}

	terms := make([]vectors.QueryTerm, 0, len(found))
	for stem, t := range found {
		terms = append(terms, vectors.QueryTerm{ID: t.ID, TF: freqs[stem], DF: t.DocumentFrequency})
	}
	return vectors.QueryVector(snap.dim, snap.info.NumPages, terms), nil
}

func (qe *QueryEngine) result(ctx context.Context, pageID int64, score float64) (*Result, error) {
	page, err := qe.db.Page(ctx, pageID)
	if err != nil {
		return nil, err
	}
	keywords, err := qe.db.TopKeywords(ctx, pageID, keywordLimit)
	if err != nil {
		return nil, err
	}
	links, err := qe.db.ChildLinks(ctx, pageID, childLinkLimit)
	if err != nil {
		return nil, err
	}

	childURLs := make([]string, len(links))
	for i, l := range links {
		childURLs[i] = l.URL
	}

	return &Result{
		PageID:       page.ID,
		Title:        page.Title,
		URL:          page.URL,
		LastModified: page.LastModified,
		TopKeywords:  keywords,
		ChildLinks:   childURLs,
		Content:      page.Content,
		Score:        score,
	}, nil
}

func clamp(score float64) float64 {
	switch {
	case score > 1:
		return 1
	case score < -1:
		return -1
	}
	return score
}
