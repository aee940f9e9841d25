// Package report exports the stored pages as a plain text file.
package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/deidaraiorek/spidey/internal/storage"
)

const (
	DefaultFile  = "spider_result.txt"
	keywordLimit = 10
	linkLimit    = 10
)

var separator = strings.Repeat("—", 30)

// Write prints every page in id order:
//
//	title
//	url
//	lastModified, size bytes
//	term freq; term freq; ...
//	child link (up to 10 lines)
//	separator
//
// Invalid UTF-8 is replaced with '?'.
func Write(ctx context.Context, db *storage.Database, w io.Writer) error {
	pages, err := db.Pages(ctx)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	for _, page := range pages {
		keywords, err := db.TopKeywords(ctx, page.ID, keywordLimit)
		if err != nil {
			return fmt.Errorf("keywords of page %d: %w", page.ID, err)
		}
		links, err := db.ChildLinks(ctx, page.ID, linkLimit)
		if err != nil {
			return fmt.Errorf("links of page %d: %w", page.ID, err)
		}

		line(bw, page.Title)
		line(bw, page.URL)
		line(bw, fmt.Sprintf("%s, %d bytes", page.LastModified, page.Size))

		terms := make([]string, len(keywords))
		for i, k := range keywords {
			terms[i] = fmt.Sprintf("%s %d", k.Term, k.Frequency)
		}
		line(bw, strings.Join(terms, "; "))

		for _, l := range links {
			line(bw, l.URL)
		}
		line(bw, separator)
	}
	return bw.Flush()
}

func line(w *bufio.Writer, s string) {
	w.WriteString(strings.ToValidUTF8(s, "?"))
	w.WriteByte('\n')
}

// WriteFile writes the report to path, replacing any existing file.
func WriteFile(ctx context.Context, db *storage.Database, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(ctx, db, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
