package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/deidaraiorek/spidey/internal/core"
)

// Info is the corpus statistics snapshot.
type Info struct {
	NumPages         int       `json:"numPages"`
	NumTerms         int       `json:"numTerms"`
	NumBigrams       int       `json:"numBigrams"`
	NumTrigrams      int       `json:"numTrigrams"`
	AvgTitleLength   float64   `json:"avgTitleLength"`
	AvgContentLength float64   `json:"avgContentLength"`
	BuiltAt          time.Time `json:"builtAt"`
}

// ComputeInfo derives corpus statistics from the current tables. Lengths are
// in characters.
func (d *Database) ComputeInfo(ctx context.Context) (*Info, error) {
	var info Info
	err := d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM pages),
			(SELECT COUNT(*) FROM terms),
			(SELECT COUNT(*) FROM bigrams),
			(SELECT COUNT(*) FROM trigrams),
			(SELECT COALESCE(AVG(LENGTH(title)), 0) FROM pages),
			(SELECT COALESCE(AVG(LENGTH(content)), 0) FROM pages)`,
	).Scan(&info.NumPages, &info.NumTerms, &info.NumBigrams, &info.NumTrigrams,
		&info.AvgTitleLength, &info.AvgContentLength)
	if err != nil {
		return nil, fmt.Errorf("failed to compute database info: %w", err)
	}
	return &info, nil
}

func (d *Database) SaveInfo(ctx context.Context, info *Info) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO database_info
			(id, num_pages, num_terms, num_bigrams, num_trigrams, avg_title_length, avg_content_length, built_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		info.NumPages, info.NumTerms, info.NumBigrams, info.NumTrigrams,
		info.AvgTitleLength, info.AvgContentLength,
	)
	if err != nil {
		return fmt.Errorf("failed to save database info: %w", err)
	}
	return nil
}

// Info returns the stored snapshot, or core.ErrNoIndex if no crawl has
// completed.
func (d *Database) Info(ctx context.Context) (*Info, error) {
	var info Info
	err := d.db.QueryRowContext(ctx, `
		SELECT num_pages, num_terms, num_bigrams, num_trigrams, avg_title_length, avg_content_length, built_at
		FROM database_info WHERE id = 1`,
	).Scan(&info.NumPages, &info.NumTerms, &info.NumBigrams, &info.NumTrigrams,
		&info.AvgTitleLength, &info.AvgContentLength, &info.BuiltAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNoIndex
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read database info: %w", err)
	}
	return &info, nil
}
