package vectors

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/deidaraiorek/spidey/internal/core"
	"github.com/deidaraiorek/spidey/internal/storage"
)

// Builder computes and stores the title, content and weighted vectors of
// every page. It runs only once the index and its statistics are final.
type Builder struct {
	db     *storage.Database
	limit  int
	logger *slog.Logger
}

type Option func(*Builder)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
	}
}

// WithConcurrency bounds how many pages are weighted at once.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.limit = n
		}
	}
}

func NewBuilder(db *storage.Database, opts ...Option) *Builder {
	b := &Builder{
		db:     db,
		limit:  runtime.NumCPU(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PageVectors are the decoded vectors of one page.
type PageVectors struct {
	Title    Vector
	Content  Vector
	Weighted Vector
}

// Compute weights one page. titleTF and contentTF map term id to frequency,
// dfs is indexed by term id - 1.
func Compute(title, content string, titleTF, contentTF map[int64]int, dfs []int, info *storage.Info) PageVectors {
	dim := len(dfs)
	tv := fieldVector(titleTF, dfs, info.NumPages, float64(utf8.RuneCountInString(title)), info.AvgTitleLength, dim)
	cv := fieldVector(contentTF, dfs, info.NumPages, float64(utf8.RuneCountInString(content)), info.AvgContentLength, dim)
	return PageVectors{
		Title:    tv,
		Content:  cv,
		Weighted: Combine(tv, cv, TitleWeight, ContentWeight),
	}
}

func fieldVector(tfs map[int64]int, dfs []int, n int, fieldLen, avgLen float64, dim int) Vector {
	v := make(Vector, dim)
	for termID, tf := range tfs {
		i := int(termID) - 1
		if i < 0 || i >= dim {
			continue
		}
		v[i] = Weight(tf, dfs[i], n, fieldLen, avgLen)
	}
	return v
}

// Build replaces the stored vectors of every page.
func (b *Builder) Build(ctx context.Context, info *storage.Info) error {
	start := time.Now()

	dfs, err := b.db.DocumentFrequencies(ctx)
	if err != nil {
		return err
	}
	if len(dfs) != info.NumTerms {
		return fmt.Errorf("dictionary has %d terms, statistics say %d: %w", len(dfs), info.NumTerms, core.ErrDataIntegrity)
	}

	pages, err := b.db.Pages(ctx)
	if err != nil {
		return err
	}

	encoded := make([]storage.PageVector, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)

	for i, page := range pages {
		g.Go(func() error {
			titleTF, err := b.db.TermFrequencies(gctx, page.ID, storage.Title)
			if err != nil {
				return fmt.Errorf("page %d: %w", page.ID, err)
			}
			contentTF, err := b.db.TermFrequencies(gctx, page.ID, storage.Content)
			if err != nil {
				return fmt.Errorf("page %d: %w", page.ID, err)
			}

			pv := Compute(page.Title, page.Content, titleTF, contentTF, dfs, info)
			encoded[i] = storage.PageVector{
				PageID:   page.ID,
				Title:    Encode(pv.Title),
				Content:  Encode(pv.Content),
				Weighted: Encode(pv.Weighted),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := b.db.ReplaceVectors(ctx, encoded); err != nil {
		return err
	}

	b.logger.Info("vectors built",
		"pages", len(pages),
		"dimension", len(dfs),
		"duration", time.Since(start))
	return nil
}

// Load decodes the stored vectors of one page against a dictionary of dim
// terms.
func Load(ctx context.Context, db *storage.Database, pageID int64, dim int) (*PageVectors, error) {
	stored, err := db.PageVector(ctx, pageID)
	if err != nil {
		return nil, err
	}
	var pv PageVectors
	if pv.Title, err = Decode(stored.Title, dim); err != nil {
		return nil, err
	}
	if pv.Content, err = Decode(stored.Content, dim); err != nil {
		return nil, err
	}
	if pv.Weighted, err = Decode(stored.Weighted, dim); err != nil {
		return nil, err
	}
	return &pv, nil
}
