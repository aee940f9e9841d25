package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/deidaraiorek/spidey/internal/core"
)

// PageVector holds the encoded vectors of one page.
type PageVector struct {
	PageID   int64
	Title    []byte
	Content  []byte
	Weighted []byte
}

// ReplaceVectors swaps the whole page_vectors table for vecs.
func (d *Database) ReplaceVectors(ctx context.Context, vecs []PageVector) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM page_vectors"); err != nil {
		return fmt.Errorf("failed to clear page vectors: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO page_vectors (page_id, title_vector, content_vector, weighted_vector)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, v := range vecs {
		if _, err := stmt.ExecContext(ctx, v.PageID, v.Title, v.Content, v.Weighted); err != nil {
			return fmt.Errorf("failed to insert vectors of page %d: %w", v.PageID, err)
		}
	}
	return tx.Commit()
}

// WeightedVectors returns the encoded weighted vector of every page, in page
// id order.
func (d *Database) WeightedVectors(ctx context.Context) ([]PageVector, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT page_id, weighted_vector FROM page_vectors ORDER BY page_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vecs []PageVector
	for rows.Next() {
		var v PageVector
		if err := rows.Scan(&v.PageID, &v.Weighted); err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}
	return vecs, rows.Err()
}

func (d *Database) PageVector(ctx context.Context, pageID int64) (*PageVector, error) {
	v := PageVector{PageID: pageID}
	err := d.db.QueryRowContext(ctx,
		"SELECT title_vector, content_vector, weighted_vector FROM page_vectors WHERE page_id = ?",
		pageID,
	).Scan(&v.Title, &v.Content, &v.Weighted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vectors of page %d: %w", pageID, core.ErrDataIntegrity)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
