// Package indexer turns stored pages into the term, bigram and trigram
// indexes and the corpus statistics the ranking depends on.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/deidaraiorek/spidey/internal/core"
	"github.com/deidaraiorek/spidey/internal/storage"
	"github.com/deidaraiorek/spidey/internal/textprocessor"
)

type Indexer struct {
	db        *storage.Database
	processor *textprocessor.TextProcessor
	pool      *ants.Pool
	logger    *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithPoolSize sets how many pages are analyzed concurrently.
// Default is runtime.NumCPU().
func WithPoolSize(size int) Option {
	return func(ix *Indexer) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if ix.pool != nil {
			ix.pool.Release()
		}
		ix.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

func New(db *storage.Database, opts ...Option) (*Indexer, error) {
	pool, err := ants.NewPool(runtime.NumCPU())
	if err != nil {
		return nil, err
	}

	ix := &Indexer{
		db:        db,
		processor: textprocessor.NewTextProcessor(),
		pool:      pool,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			ix.Release()
			return nil, err
		}
	}
	return ix, nil
}

// Release stops the worker pool. The Indexer must not be used afterwards.
func (ix *Indexer) Release() {
	if ix.pool != nil {
		ix.pool.Release()
	}
}

// Build runs the term pass, the n-gram pass and Finalize over every stored
// page.
func (ix *Indexer) Build(ctx context.Context) (*storage.Info, error) {
	start := time.Now()

	pages, err := ix.IndexTerms(ctx)
	if err != nil {
		return nil, fmt.Errorf("index terms: %w", err)
	}
	if err := ix.IndexNGrams(ctx); err != nil {
		return nil, fmt.Errorf("index n-grams: %w", err)
	}
	info, err := ix.Finalize(ctx)
	if err != nil {
		return nil, err
	}

	ix.logger.Info("index built",
		"pages", pages,
		"terms", info.NumTerms,
		"bigrams", info.NumBigrams,
		"trigrams", info.NumTrigrams,
		"duration", time.Since(start))
	return info, nil
}

// IndexTerms analyzes every page on the worker pool, then writes the
// dictionary and per-field rows in page id order so term ids do not depend on
// scheduling.
func (ix *Indexer) IndexTerms(ctx context.Context) (int, error) {
	pages, err := ix.db.Pages(ctx)
	if err != nil {
		return 0, err
	}

	docs := make([]textprocessor.Document, len(pages))
	var wg sync.WaitGroup
	for i, page := range pages {
		wg.Add(1)
		err := ix.pool.Submit(func() {
			defer wg.Done()
			docs[i] = ix.processor.AnalyzeDocument(page.Title, page.Content)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return 0, fmt.Errorf("submit page %d: %w", page.ID, err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	w, err := ix.db.BeginIndex(ctx)
	if err != nil {
		return 0, err
	}
	defer w.Rollback()

	for i, page := range pages {
		if err := writeDocument(w, page.ID, docs[i]); err != nil {
			return 0, fmt.Errorf("page %d: %w", page.ID, err)
		}
		ix.logger.Debug("indexed page", "id", page.ID, "terms", len(docs[i].Terms()))
	}

	if err := w.Commit(); err != nil {
		return 0, err
	}
	return len(pages), nil
}

func writeDocument(w *storage.IndexWriter, pageID int64, doc textprocessor.Document) error {
	ids := make(map[string]int64)
	for _, term := range doc.Terms() {
		id, err := w.TermID(term)
		if err != nil {
			return err
		}
		ids[term] = id
	}

	fields := map[storage.Field]textprocessor.Field{
		storage.Title:   doc.Title,
		storage.Content: doc.Content,
	}
	for _, field := range storage.Fields {
		analysis := fields[field]
		for _, tc := range analysis.Frequencies {
			if err := w.AddTerm(field, pageID, ids[tc.Term], analysis.Positions[tc.Term]); err != nil {
				return err
			}
		}
	}
	return nil
}

// ngramOccurrences groups the n-grams of one field by their term id tuple,
// in order of first appearance.
type ngramOccurrences struct {
	keys      [][]int64
	positions map[string][]int
}

func collectNGrams(seq []int64, n int) ngramOccurrences {
	occ := ngramOccurrences{positions: make(map[string][]int)}
	for pos, gram := range textprocessor.NGrams(seq, n) {
		key := fmt.Sprint(gram)
		if _, ok := occ.positions[key]; !ok {
			occ.keys = append(occ.keys, gram)
		}
		occ.positions[key] = append(occ.positions[key], pos)
	}
	return occ
}

// IndexNGrams rebuilds each field's token sequence from the stored term
// positions and records every bigram and trigram. It must run after
// IndexTerms.
func (ix *Indexer) IndexNGrams(ctx context.Context) error {
	pages, err := ix.db.Pages(ctx)
	if err != nil {
		return err
	}

	type fieldSeq struct {
		pageID int64
		field  storage.Field
		seq    []int64
	}
	var seqs []fieldSeq
	for _, page := range pages {
		for _, field := range storage.Fields {
			positions, err := ix.db.TermPositions(ctx, page.ID, field)
			if err != nil {
				return err
			}
			seq, err := TokenSequence(positions)
			if err != nil {
				return fmt.Errorf("page %d %s: %w", page.ID, field, err)
			}
			seqs = append(seqs, fieldSeq{pageID: page.ID, field: field, seq: seq})
		}
	}

	w, err := ix.db.BeginIndex(ctx)
	if err != nil {
		return err
	}
	defer w.Rollback()

	for _, fs := range seqs {
		for _, width := range []int{2, 3} {
			occ := collectNGrams(fs.seq, width)
			for _, key := range occ.keys {
				id, err := w.NGramID(key)
				if err != nil {
					return err
				}
				if err := w.AddNGram(fs.field, width, fs.pageID, id, occ.positions[fmt.Sprint(key)]); err != nil {
					return err
				}
			}
		}
	}
	return w.Commit()
}

// TokenSequence turns term id -> positions back into the token order of the
// field. Every position from 0 to the largest must be covered exactly once.
func TokenSequence(positions map[int64][]int) ([]int64, error) {
	total := 0
	for _, ps := range positions {
		total += len(ps)
	}

	seq := make([]int64, total)
	for termID, ps := range positions {
		for _, p := range ps {
			if p < 0 || p >= total || seq[p] != 0 {
				return nil, fmt.Errorf("position %d of term %d: %w", p, termID, core.ErrDataIntegrity)
			}
			seq[p] = termID
		}
	}
	return seq, nil
}

// Finalize stores per-term document frequencies and returns the corpus
// statistics. The statistics are not saved; the caller saves them once the
// vectors exist.
func (ix *Indexer) Finalize(ctx context.Context) (*storage.Info, error) {
	if err := ix.db.UpdateDocumentFrequencies(ctx); err != nil {
		return nil, err
	}
	return ix.db.ComputeInfo(ctx)
}
