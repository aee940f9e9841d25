package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type Term struct {
	ID                int64
	Term              string
	DocumentFrequency int
}

type Keyword struct {
	Term      string `json:"term"`
	Frequency int    `json:"frequency"`
}

func (d *Database) TermCount(ctx context.Context) (int, error) {
	return d.count(ctx, "terms")
}

func (d *Database) BigramCount(ctx context.Context) (int, error) {
	return d.count(ctx, "bigrams")
}

func (d *Database) TrigramCount(ctx context.Context) (int, error) {
	return d.count(ctx, "trigrams")
}

// LookupTerms returns the dictionary rows of the given stems. Stems that are
// not in the dictionary are absent from the map.
func (d *Database) LookupTerms(ctx context.Context, terms []string) (map[string]Term, error) {
	found := make(map[string]Term, len(terms))
	if len(terms) == 0 {
		return found, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(terms)), ",")
	args := make([]any, len(terms))
	for i, t := range terms {
		args[i] = t
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT term_id, term, document_frequency FROM terms WHERE term IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up terms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t Term
		if err := rows.Scan(&t.ID, &t.Term, &t.DocumentFrequency); err != nil {
			return nil, err
		}
		found[t.Term] = t
	}
	return found, rows.Err()
}

// LookupNGram returns the id of the ordered bigram or trigram of term ids.
func (d *Database) LookupNGram(ctx context.Context, termIDs []int64) (int64, bool, error) {
	var query string
	switch len(termIDs) {
	case 2:
		query = "SELECT bigram_id FROM bigrams WHERE term1_id = ? AND term2_id = ?"
	case 3:
		query = "SELECT trigram_id FROM trigrams WHERE term1_id = ? AND term2_id = ? AND term3_id = ?"
	default:
		return 0, false, fmt.Errorf("unsupported n-gram width %d", len(termIDs))
	}

	args := make([]any, len(termIDs))
	for i, id := range termIDs {
		args[i] = id
	}

	var id int64
	err := d.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// PagesWithTerm returns the ids of pages whose title or content contains
// the term.
func (d *Database) PagesWithTerm(ctx context.Context, termID int64) (map[int64]bool, error) {
	return d.pageSet(ctx, `
		SELECT page_id FROM title_index WHERE term_id = ?
		UNION
		SELECT page_id FROM content_index WHERE term_id = ?`,
		termID, termID,
	)
}

// PagesWithNGram returns the ids of pages whose title or content contains
// the bigram (width 2) or trigram (width 3).
func (d *Database) PagesWithNGram(ctx context.Context, width int, ngramID int64) (map[int64]bool, error) {
	name, err := ngramName(width)
	if err != nil {
		return nil, err
	}
	return d.pageSet(ctx,
		"SELECT page_id FROM title_"+name+"_index WHERE "+name+"_id = ?"+
			" UNION "+
			"SELECT page_id FROM content_"+name+"_index WHERE "+name+"_id = ?",
		ngramID, ngramID,
	)
}

func (d *Database) pageSet(ctx context.Context, query string, args ...any) (map[int64]bool, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pages := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pages[id] = true
	}
	return pages, rows.Err()
}

// TermPositions returns the positions of every term in one field of a page.
func (d *Database) TermPositions(ctx context.Context, pageID int64, field Field) (map[int64][]int, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT term_id, position_list FROM "+field.String()+"_term_position WHERE page_id = ?",
		pageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := make(map[int64][]int)
	for rows.Next() {
		var (
			termID int64
			list   string
		)
		if err := rows.Scan(&termID, &list); err != nil {
			return nil, err
		}
		p, err := decodePositions(list)
		if err != nil {
			return nil, fmt.Errorf("page %d term %d: %w", pageID, termID, err)
		}
		positions[termID] = p
	}
	return positions, rows.Err()
}

// NGramPositions returns the positions of every bigram or trigram in one
// field of a page.
func (d *Database) NGramPositions(ctx context.Context, width int, pageID int64, field Field) (map[int64][]int, error) {
	name, err := ngramName(width)
	if err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx,
		"SELECT "+name+"_id, position_list FROM "+field.String()+"_"+name+"_position WHERE page_id = ?",
		pageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := make(map[int64][]int)
	for rows.Next() {
		var (
			id   int64
			list string
		)
		if err := rows.Scan(&id, &list); err != nil {
			return nil, err
		}
		p, err := decodePositions(list)
		if err != nil {
			return nil, err
		}
		positions[id] = p
	}
	return positions, rows.Err()
}

// TermFrequencies returns term id -> frequency for one field of a page.
func (d *Database) TermFrequencies(ctx context.Context, pageID int64, field Field) (map[int64]int, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT term_id, frequency FROM "+field.String()+"_term_frequency WHERE page_id = ?",
		pageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	freqs := make(map[int64]int)
	for rows.Next() {
		var (
			termID int64
			freq   int
		)
		if err := rows.Scan(&termID, &freq); err != nil {
			return nil, err
		}
		freqs[termID] = freq
	}
	return freqs, rows.Err()
}

// UpdateDocumentFrequencies sets each term's document frequency to the
// number of distinct pages containing it in title or content.
func (d *Database) UpdateDocumentFrequencies(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE terms SET document_frequency = (
			SELECT COUNT(*) FROM (
				SELECT page_id FROM title_index WHERE term_id = terms.term_id
				UNION
				SELECT page_id FROM content_index WHERE term_id = terms.term_id
			)
		)`)
	if err != nil {
		return fmt.Errorf("failed to update document frequencies: %w", err)
	}
	return nil
}

// DocumentFrequencies returns the stored document frequency of every term,
// indexed by term id - 1.
func (d *Database) DocumentFrequencies(ctx context.Context) ([]int, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT term_id, document_frequency FROM terms ORDER BY term_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dfs []int
	for rows.Next() {
		var (
			id int64
			df int
		)
		if err := rows.Scan(&id, &df); err != nil {
			return nil, err
		}
		for int64(len(dfs)) < id-1 {
			dfs = append(dfs, 0)
		}
		dfs = append(dfs, df)
	}
	return dfs, rows.Err()
}

// TopKeywords returns the n most frequent content terms of a page, ties
// broken by term id.
func (d *Database) TopKeywords(ctx context.Context, pageID int64, n int) ([]Keyword, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT t.term, f.frequency
		FROM content_term_frequency f
		JOIN terms t ON t.term_id = f.term_id
		WHERE f.page_id = ?
		ORDER BY f.frequency DESC, f.term_id ASC
		LIMIT ?`,
		pageID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keywords := make([]Keyword, 0, n)
	for rows.Next() {
		var k Keyword
		if err := rows.Scan(&k.Term, &k.Frequency); err != nil {
			return nil, err
		}
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}
