// Package crawler runs a bounded breadth-first traversal from a seed URL and
// stores every visited page with its link edges.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deidaraiorek/spidey/internal/canon"
	"github.com/deidaraiorek/spidey/internal/core"
	"github.com/deidaraiorek/spidey/internal/fetcher"
	"github.com/deidaraiorek/spidey/internal/frontier"
	"github.com/deidaraiorek/spidey/internal/parser"
	"github.com/deidaraiorek/spidey/internal/storage"
)

// State of a crawl run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	// StateAborted means the queue ran dry right after a failed fetch.
	StateAborted State = "aborted"
)

// Store is the persistence the crawler writes to.
type Store interface {
	SavePage(ctx context.Context, page *storage.Page, links []string) (int64, error)
	AddParentLink(ctx context.Context, pageID, parentID int64) error
}

type Crawler struct {
	fetcher      fetcher.PageFetcher
	store        Store
	parser       *parser.Parser
	fetchTimeout time.Duration
	logger       *slog.Logger
}

type Option func(*Crawler)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// WithFetchTimeout bounds each fetch. Default is fetcher.DefaultTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Crawler) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func New(f fetcher.PageFetcher, store Store, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:      f,
		store:        store,
		parser:       parser.New(),
		fetchTimeout: fetcher.DefaultTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result summarizes a finished run.
type Result struct {
	RunID        string        `json:"runId"`
	Seed         string        `json:"seed"`
	State        State         `json:"state"`
	PagesVisited int           `json:"pagesVisited"`
	Failures     int           `json:"failures"`
	Duration     time.Duration `json:"duration"`
}

// session is the mutable state of one run.
type session struct {
	runID      string
	target     int
	frontier   *frontier.Frontier
	failures   int
	lastFailed bool
	logger     *slog.Logger
}

// Run crawls breadth-first from seed until target pages are stored or the
// queue is exhausted. Fetch failures are logged and skipped. Only storage
// failures and cancellation are returned as errors.
func (c *Crawler) Run(ctx context.Context, seed string, target int) (*Result, error) {
	if target < 1 {
		return nil, core.Invalid("targetVisited", "must be at least 1")
	}
	seedURL, err := canon.Canonicalize(seed, "")
	if err != nil || !canon.Crawlable(seedURL) {
		return nil, core.Invalid("seedUrl", "Invalid URL: %s", seed)
	}

	start := time.Now()
	s := &session{
		runID:    uuid.NewString(),
		target:   target,
		frontier: frontier.New(),
	}
	s.logger = c.logger.With("run", s.runID)
	s.frontier.Push(frontier.Entry{URL: seedURL})

	s.logger.Info("crawl started", "seed", seedURL, "target", target)

	result := &Result{RunID: s.runID, Seed: seedURL, State: StateRunning}
	err = c.loop(ctx, s)

	result.PagesVisited = s.frontier.VisitedCount()
	result.Failures = s.failures
	result.Duration = time.Since(start)

	switch {
	case err != nil:
		result.State = StateAborted
		s.logger.Error("crawl stopped", "err", err, "pages", result.PagesVisited)
		return result, err
	case result.PagesVisited < target && s.lastFailed:
		result.State = StateAborted
		s.logger.Warn("no more links to visit after a failed fetch",
			"pages", result.PagesVisited, "failures", s.failures)
	default:
		result.State = StateCompleted
	}

	s.logger.Info("crawl finished",
		"state", result.State,
		"pages", result.PagesVisited,
		"failures", result.Failures,
		"duration", result.Duration)
	return result, nil
}

func (c *Crawler) loop(ctx context.Context, s *session) error {
	for s.frontier.VisitedCount() < s.target {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, ok := s.frontier.Pop()
		if !ok {
			return nil
		}

		if id, seen := s.frontier.Visited(entry.URL); seen {
			if err := c.rediscover(ctx, id, entry.ParentID); err != nil {
				return err
			}
			s.lastFailed = false
			continue
		}
		if s.frontier.Failed(entry.URL) {
			continue
		}

		if err := c.visit(ctx, s, entry); err != nil {
			return err
		}
	}

	if remaining := s.frontier.Len(); remaining > 0 {
		s.logger.Debug("target reached, dropping queued links", "queued", remaining)
	}
	return nil
}

// rediscover records another parent of an already stored page.
func (c *Crawler) rediscover(ctx context.Context, pageID, parentID int64) error {
	if parentID == 0 || parentID == pageID {
		return nil
	}
	return c.store.AddParentLink(ctx, pageID, parentID)
}

func (c *Crawler) visit(ctx context.Context, s *session, entry frontier.Entry) error {
	page, doc, err := c.fetch(ctx, entry.URL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.failures++
		s.lastFailed = true
		s.frontier.MarkFailed(entry.URL)
		s.logger.Warn("skipping page", "url", entry.URL, "err", err, "queued", s.frontier.Len())
		return nil
	}
	s.lastFailed = false

	lastModified := page.LastModified
	if lastModified == "" {
		lastModified = doc.EmbeddedDate
	}

	pageID, err := c.store.SavePage(ctx, &storage.Page{
		URL:          entry.URL,
		Title:        doc.Title,
		Content:      doc.Content,
		RawHTML:      string(page.HTML),
		LastModified: lastModified,
		Size:         len(page.HTML),
		ContentHash:  doc.Hash,
		ParentID:     entry.ParentID,
	}, doc.Links)
	if err != nil {
		return fmt.Errorf("save %s: %w", entry.URL, err)
	}
	s.frontier.MarkVisited(entry.URL, pageID)

	queued := 0
	for _, link := range doc.Links {
		if id, seen := s.frontier.Visited(link); seen {
			if err := c.rediscover(ctx, id, pageID); err != nil {
				return err
			}
			continue
		}
		if s.frontier.Failed(link) {
			continue
		}
		s.frontier.Push(frontier.Entry{URL: link, ParentID: pageID})
		queued++
	}

	s.logger.Debug("visited page",
		"url", entry.URL,
		"id", pageID,
		"links", len(doc.Links),
		"queued", queued,
		"remaining", s.target-s.frontier.VisitedCount())
	if len(doc.Links) == 0 {
		s.logger.Debug("no outbound links", "url", entry.URL)
	}
	return nil
}

func (c *Crawler) fetch(ctx context.Context, url string) (*fetcher.Page, *parser.Document, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	page, err := c.fetcher.Fetch(fetchCtx, url)
	if err != nil {
		return nil, nil, err
	}

	base := page.FinalURL
	if base == "" {
		base = url
	}
	doc, err := c.parser.Parse(page.HTML, base)
	if err != nil {
		return nil, nil, &core.FetchError{URL: url, Err: fmt.Errorf("parse: %w", err)}
	}
	return page, doc, nil
}
