package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/deidaraiorek/spidey/internal/core"
)

const UnknownLastModified = "Unknown"

type Page struct {
	ID           int64
	URL          string
	Title        string
	Content      string
	RawHTML      string
	LastModified string
	Size         int
	ContentHash  string
	// ParentID is the page that first discovered this one; 0 for the seed.
	ParentID int64
}

// SavePage inserts a newly visited page together with its outbound links and
// returns the new page id. In the same transaction it points every earlier
// child link for this URL at the new page and records the parent link.
func (d *Database) SavePage(ctx context.Context, page *Page, links []string) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lastModified := page.LastModified
	if lastModified == "" {
		lastModified = UnknownLastModified
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO pages (url, title, content, raw_html, last_modified, size, content_hash, parent_page_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		page.URL, page.Title, page.Content, page.RawHTML, lastModified,
		page.Size, page.ContentHash, nullID(page.ParentID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert page %s: %w", page.URL, err)
	}
	pageID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO child_links (page_id, child_url, child_page_id)
		VALUES (?, ?, (SELECT page_id FROM pages WHERE url = ?))`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, link := range links {
		if _, err := stmt.ExecContext(ctx, pageID, link, link); err != nil {
			return 0, fmt.Errorf("failed to insert child link %s: %w", link, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE child_links SET child_page_id = ? WHERE child_url = ? AND child_page_id IS NULL",
		pageID, page.URL,
	); err != nil {
		return 0, fmt.Errorf("failed to back-fill child links: %w", err)
	}

	if page.ParentID != 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO parent_links (page_id, parent_page_id) VALUES (?, ?)",
			pageID, page.ParentID,
		); err != nil {
			return 0, fmt.Errorf("failed to insert parent link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit page %s: %w", page.URL, err)
	}
	page.ID = pageID
	return pageID, nil
}

// AddParentLink records that parentID links to pageID. Repeated pairs are
// ignored.
func (d *Database) AddParentLink(ctx context.Context, pageID, parentID int64) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO parent_links (page_id, parent_page_id) VALUES (?, ?)",
		pageID, parentID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert parent link: %w", err)
	}
	return nil
}

func (d *Database) ParentLinks(ctx context.Context, pageID int64) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT parent_page_id FROM parent_links WHERE page_id = ? ORDER BY parent_page_id",
		pageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parents []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		parents = append(parents, id)
	}
	return parents, rows.Err()
}

type ChildLink struct {
	URL string
	// PageID is 0 while the child has not been visited.
	PageID int64
}

// ChildLinks returns the outbound links of a page in document order. A limit
// of zero or less returns all of them.
func (d *Database) ChildLinks(ctx context.Context, pageID int64, limit int) ([]ChildLink, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx,
		"SELECT child_url, child_page_id FROM child_links WHERE page_id = ? ORDER BY link_id LIMIT ?",
		pageID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := make([]ChildLink, 0)
	for rows.Next() {
		var (
			link  ChildLink
			child sql.NullInt64
		)
		if err := rows.Scan(&link.URL, &child); err != nil {
			return nil, err
		}
		link.PageID = child.Int64
		links = append(links, link)
	}
	return links, rows.Err()
}

// DanglingChildLinks counts child links whose child_page_id names a page
// that does not exist.
func (d *Database) DanglingChildLinks(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM child_links c
		WHERE c.child_page_id IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM pages p WHERE p.page_id = c.child_page_id)`,
	).Scan(&n)
	return n, err
}

const pageColumns = "page_id, url, title, content, raw_html, last_modified, size, content_hash, parent_page_id"

func scanPage(row interface{ Scan(...any) error }) (*Page, error) {
	var (
		page   Page
		parent sql.NullInt64
	)
	err := row.Scan(&page.ID, &page.URL, &page.Title, &page.Content, &page.RawHTML,
		&page.LastModified, &page.Size, &page.ContentHash, &parent)
	if err != nil {
		return nil, err
	}
	page.ParentID = parent.Int64
	return &page, nil
}

// Page returns the page with id, wrapping core.ErrDataIntegrity if it does
// not exist.
func (d *Database) Page(ctx context.Context, id int64) (*Page, error) {
	row := d.db.QueryRowContext(ctx, "SELECT "+pageColumns+" FROM pages WHERE page_id = ?", id)
	page, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %d: %w", id, core.ErrDataIntegrity)
	}
	return page, err
}

// PageIDByURL returns the id of the page stored under a canonical URL.
func (d *Database) PageIDByURL(ctx context.Context, url string) (int64, bool, error) {
	var id int64
	err := d.db.QueryRowContext(ctx, "SELECT page_id FROM pages WHERE url = ?", url).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Pages returns every page in id order.
func (d *Database) Pages(ctx context.Context) ([]*Page, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT "+pageColumns+" FROM pages ORDER BY page_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func (d *Database) PageCount(ctx context.Context) (int, error) {
	return d.count(ctx, "pages")
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
