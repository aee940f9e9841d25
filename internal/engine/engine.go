// Package engine ties the crawler, the index pipeline and the query engine
// together. It owns the single-flight crawl guard and the lock that keeps
// queries off an index that is being rebuilt.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deidaraiorek/spidey/internal/canon"
	"github.com/deidaraiorek/spidey/internal/core"
	"github.com/deidaraiorek/spidey/internal/crawler"
	"github.com/deidaraiorek/spidey/internal/fetcher"
	"github.com/deidaraiorek/spidey/internal/indexer"
	"github.com/deidaraiorek/spidey/internal/search"
	"github.com/deidaraiorek/spidey/internal/storage"
	"github.com/deidaraiorek/spidey/internal/vectors"
)

const (
	MinTarget = 2
	MaxTarget = 1000
)

type Engine struct {
	db           *storage.Database
	fetcher      fetcher.PageFetcher
	checker      fetcher.Checker
	query        *search.QueryEngine
	indexWorkers int
	fetchTimeout time.Duration
	logger       *slog.Logger

	running atomic.Bool
	// builds counts vector builds so queued stale-vector rebuilds can tell
	// when another caller already refreshed the vectors.
	builds atomic.Uint64
	// index is held exclusively while the index is rebuilt and shared by
	// queries.
	index sync.RWMutex
}

type Option func(*Engine)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
	}
}

// WithChecker sets the seed pre-check. Default is the fetcher itself when it
// implements fetcher.Checker.
func WithChecker(c fetcher.Checker) Option {
	return func(e *Engine) {
		e.checker = c
	}
}

// WithIndexWorkers sets the indexer pool size. Default is runtime.NumCPU().
func WithIndexWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.indexWorkers = n
		}
	}
}

// WithFetchTimeout bounds each page fetch of a crawl.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

func New(db *storage.Database, f fetcher.PageFetcher, opts ...Option) *Engine {
	e := &Engine{
		db:           db,
		fetcher:      f,
		indexWorkers: runtime.NumCPU(),
		fetchTimeout: fetcher.DefaultTimeout,
		logger:       slog.Default(),
	}
	if c, ok := f.(fetcher.Checker); ok {
		e.checker = c
	}
	for _, opt := range opts {
		opt(e)
	}
	e.query = search.NewQueryEngine(db, search.WithLogger(e.logger))
	return e
}

// Summary reports a finished crawl and the index built from it.
type Summary struct {
	RunID        string        `json:"runId"`
	Seed         string        `json:"seedUrl"`
	State        crawler.State `json:"state"`
	PagesVisited int           `json:"pagesVisited"`
	Failures     int           `json:"failures"`
	TermCount    int           `json:"termCount"`
	BigramCount  int           `json:"bigramCount"`
	TrigramCount int           `json:"trigramCount"`
	Duration     time.Duration `json:"-"`
}

// Running reports whether a crawl is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Crawl replaces the whole index with a fresh crawl from seed. It returns
// core.ErrBusy if another crawl is running and a validation error if the
// arguments or the seed pre-check are rejected; neither touches stored data.
func (e *Engine) Crawl(ctx context.Context, seed string, target int) (*Summary, error) {
	if target < MinTarget || target > MaxTarget {
		return nil, core.Invalid("targetVisited", "must be between %d and %d, got %d", MinTarget, MaxTarget, target)
	}
	seedURL, err := canon.Canonicalize(seed, "")
	if err != nil || !canon.Crawlable(seedURL) {
		return nil, core.Invalid("seedUrl", "Invalid URL: %s", seed)
	}

	if !e.running.CompareAndSwap(false, true) {
		return nil, core.ErrBusy
	}
	defer e.running.Store(false)

	if err := e.precheck(ctx, seedURL); err != nil {
		return nil, err
	}

	e.index.Lock()
	defer e.index.Unlock()
	defer e.query.Invalidate()

	start := time.Now()
	if err := e.db.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset index: %w", err)
	}

	c := crawler.New(e.fetcher, e.db,
		crawler.WithLogger(e.logger),
		crawler.WithFetchTimeout(e.fetchTimeout))
	result, err := c.Run(ctx, seedURL, target)
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", seedURL, err)
	}
	dangling, err := e.db.DanglingChildLinks(ctx)
	if err != nil {
		return nil, err
	}
	if dangling > 0 {
		return nil, fmt.Errorf("crawl %s: %d child links point at missing pages: %w", seedURL, dangling, core.ErrDataIntegrity)
	}

	info, err := e.rebuild(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:        result.RunID,
		Seed:         result.Seed,
		State:        result.State,
		PagesVisited: result.PagesVisited,
		Failures:     result.Failures,
		TermCount:    info.NumTerms,
		BigramCount:  info.NumBigrams,
		TrigramCount: info.NumTrigrams,
		Duration:     time.Since(start),
	}
	e.logger.Info("index ready",
		"run", summary.RunID,
		"pages", summary.PagesVisited,
		"terms", summary.TermCount,
		"duration", summary.Duration)
	return summary, nil
}

func (e *Engine) precheck(ctx context.Context, seedURL string) error {
	if e.checker == nil {
		return nil
	}
	err := e.checker.Check(ctx, seedURL)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var fe *core.FetchError
	if errors.As(err, &fe) && fe.TLS() {
		return core.Invalid("seedUrl", "SSL certificate error for %s", seedURL)
	}
	return core.Invalid("seedUrl", "Unable to reach %s: %v", seedURL, err)
}

// rebuild runs the index pipeline over the stored pages. The caller holds
// the index lock.
func (e *Engine) rebuild(ctx context.Context) (*storage.Info, error) {
	ix, err := indexer.New(e.db,
		indexer.WithPoolSize(e.indexWorkers),
		indexer.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	defer ix.Release()

	info, err := ix.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.buildVectors(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (e *Engine) buildVectors(ctx context.Context, info *storage.Info) error {
	b := vectors.NewBuilder(e.db,
		vectors.WithLogger(e.logger),
		vectors.WithConcurrency(e.indexWorkers))
	if err := b.Build(ctx, info); err != nil {
		return fmt.Errorf("build vectors: %w", err)
	}
	e.builds.Add(1)
	return e.db.SaveInfo(ctx, info)
}

// RebuildVectors recomputes document frequencies, statistics and every page
// vector from the stored index. It returns core.ErrRebuilding if a crawl
// holds the index.
func (e *Engine) RebuildVectors(ctx context.Context) error {
	if !e.index.TryLock() {
		return core.ErrRebuilding
	}
	defer e.index.Unlock()
	return e.rebuildVectors(ctx)
}

// The caller holds the index lock exclusively.
func (e *Engine) rebuildVectors(ctx context.Context) error {
	defer e.query.Invalidate()

	if err := e.db.UpdateDocumentFrequencies(ctx); err != nil {
		return err
	}
	info, err := e.db.ComputeInfo(ctx)
	if err != nil {
		return err
	}
	return e.buildVectors(ctx, info)
}

// refreshVectors waits for in-flight queries to finish and rebuilds the
// vectors unless a build finished since seen was read.
func (e *Engine) refreshVectors(ctx context.Context, seen uint64) error {
	if e.running.Load() {
		return core.ErrRebuilding
	}
	e.index.Lock()
	defer e.index.Unlock()

	if e.builds.Load() != seen {
		return nil
	}
	return e.rebuildVectors(ctx)
}

// Search ranks the index against query. Stale vectors are rebuilt once
// before the query is retried.
func (e *Engine) Search(ctx context.Context, query string, n int) ([]search.Result, error) {
	seen := e.builds.Load()
	results, err := e.search(ctx, query, n)
	if !errors.Is(err, core.ErrStaleVector) {
		return results, err
	}

	e.logger.Warn("stale vectors, rebuilding", "err", err)
	if err := e.refreshVectors(ctx, seen); err != nil {
		return nil, err
	}
	return e.search(ctx, query, n)
}

func (e *Engine) search(ctx context.Context, query string, n int) ([]search.Result, error) {
	if !e.index.TryRLock() {
		return nil, core.ErrRebuilding
	}
	defer e.index.RUnlock()
	return e.query.Search(ctx, query, n)
}

// Info returns the statistics of the current index.
func (e *Engine) Info(ctx context.Context) (*storage.Info, error) {
	if !e.index.TryRLock() {
		return nil, core.ErrRebuilding
	}
	defer e.index.RUnlock()
	return e.db.Info(ctx)
}
