package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// IndexWriter writes dictionary and posting rows inside one transaction.
// It is not safe for concurrent use; callers serialize writes through it.
type IndexWriter struct {
	ctx   context.Context
	tx    *sql.Tx
	stmts map[string]*sql.Stmt
	terms map[string]int64
}

func (d *Database) BeginIndex(ctx context.Context) (*IndexWriter, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &IndexWriter{
		ctx:   ctx,
		tx:    tx,
		stmts: make(map[string]*sql.Stmt),
		terms: make(map[string]int64),
	}, nil
}

func (w *IndexWriter) stmt(query string) (*sql.Stmt, error) {
	if s, ok := w.stmts[query]; ok {
		return s, nil
	}
	s, err := w.tx.PrepareContext(w.ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %q: %w", query, err)
	}
	w.stmts[query] = s
	return s, nil
}

func (w *IndexWriter) exec(query string, args ...any) error {
	s, err := w.stmt(query)
	if err != nil {
		return err
	}
	_, err = s.ExecContext(w.ctx, args...)
	return err
}

// TermID returns the id of term, adding it to the dictionary if absent.
func (w *IndexWriter) TermID(term string) (int64, error) {
	if id, ok := w.terms[term]; ok {
		return id, nil
	}
	if err := w.exec("INSERT OR IGNORE INTO terms (term) VALUES (?)", term); err != nil {
		return 0, fmt.Errorf("failed to insert term %q: %w", term, err)
	}

	s, err := w.stmt("SELECT term_id FROM terms WHERE term = ?")
	if err != nil {
		return 0, err
	}
	var id int64
	if err := s.QueryRowContext(w.ctx, term).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to query term %q: %w", term, err)
	}
	w.terms[term] = id
	return id, nil
}

// AddTerm writes the frequency, position and index rows of one term in one
// field of a page. The frequency is len(positions).
func (w *IndexWriter) AddTerm(field Field, pageID, termID int64, positions []int) error {
	if len(positions) == 0 {
		return nil
	}
	f := field.String()

	if err := w.exec(
		"INSERT INTO "+f+"_term_frequency (page_id, term_id, frequency) VALUES (?, ?, ?)",
		pageID, termID, len(positions),
	); err != nil {
		return fmt.Errorf("failed to insert %s frequency: %w", f, err)
	}
	if err := w.exec(
		"INSERT INTO "+f+"_term_position (page_id, term_id, position_list) VALUES (?, ?, ?)",
		pageID, termID, encodePositions(positions),
	); err != nil {
		return fmt.Errorf("failed to insert %s positions: %w", f, err)
	}
	if err := w.exec(
		"INSERT OR IGNORE INTO "+f+"_index (term_id, page_id) VALUES (?, ?)",
		termID, pageID,
	); err != nil {
		return fmt.Errorf("failed to insert %s index: %w", f, err)
	}
	return nil
}

// NGramID returns the id of the ordered bigram or trigram of term ids,
// adding it to its dictionary if absent.
func (w *IndexWriter) NGramID(termIDs []int64) (int64, error) {
	var insert, lookup string
	args := make([]any, len(termIDs))
	for i, id := range termIDs {
		args[i] = id
	}

	switch len(termIDs) {
	case 2:
		insert = "INSERT OR IGNORE INTO bigrams (term1_id, term2_id) VALUES (?, ?)"
		lookup = "SELECT bigram_id FROM bigrams WHERE term1_id = ? AND term2_id = ?"
	case 3:
		insert = "INSERT OR IGNORE INTO trigrams (term1_id, term2_id, term3_id) VALUES (?, ?, ?)"
		lookup = "SELECT trigram_id FROM trigrams WHERE term1_id = ? AND term2_id = ? AND term3_id = ?"
	default:
		return 0, fmt.Errorf("unsupported n-gram width %d", len(termIDs))
	}

	if err := w.exec(insert, args...); err != nil {
		return 0, fmt.Errorf("failed to insert n-gram %v: %w", termIDs, err)
	}
	s, err := w.stmt(lookup)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := s.QueryRowContext(w.ctx, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to query n-gram %v: %w", termIDs, err)
	}
	return id, nil
}

// AddNGram writes the position and index rows of one bigram (width 2) or
// trigram (width 3) in one field of a page.
func (w *IndexWriter) AddNGram(field Field, width int, pageID, ngramID int64, positions []int) error {
	if len(positions) == 0 {
		return nil
	}
	name, err := ngramName(width)
	if err != nil {
		return err
	}
	prefix := field.String() + "_" + name

	if err := w.exec(
		"INSERT INTO "+prefix+"_position (page_id, "+name+"_id, frequency, position_list) VALUES (?, ?, ?, ?)",
		pageID, ngramID, len(positions), encodePositions(positions),
	); err != nil {
		return fmt.Errorf("failed to insert %s positions: %w", prefix, err)
	}
	if err := w.exec(
		"INSERT OR IGNORE INTO "+prefix+"_index ("+name+"_id, page_id) VALUES (?, ?)",
		ngramID, pageID,
	); err != nil {
		return fmt.Errorf("failed to insert %s index: %w", prefix, err)
	}
	return nil
}

func (w *IndexWriter) close() {
	for _, s := range w.stmts {
		s.Close()
	}
	w.stmts = map[string]*sql.Stmt{}
}

func (w *IndexWriter) Commit() error {
	w.close()
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
	return nil
}

// Rollback discards everything written. It is a no-op after Commit.
func (w *IndexWriter) Rollback() error {
	w.close()
	err := w.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

func ngramName(width int) (string, error) {
	switch width {
	case 2:
		return "bigram", nil
	case 3:
		return "trigram", nil
	}
	return "", fmt.Errorf("unsupported n-gram width %d", width)
}
