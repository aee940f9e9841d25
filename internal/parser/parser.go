package parser

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/deidaraiorek/spidey/internal/canon"
)

const (
	NoTitle  = "No Title Given"
	MaxLinks = 100
)

// Document is what the crawler keeps from a fetched page.
type Document struct {
	Title   string
	Content string
	// Links are canonical http(s) URLs in order of first appearance,
	// without duplicates, at most MaxLinks of them.
	Links []string
	// EmbeddedDate is a modification date declared inside the markup, if any.
	EmbeddedDate string
	// Hash is the hex SHA-256 of Content.
	Hash string
}

type Parser struct {
	maxLinks int
}

func New() *Parser {
	return &Parser{maxLinks: MaxLinks}
}

// Parse extracts the title, visible text and outbound links of rawHTML.
// Relative links are resolved against baseURL.
func (p *Parser) Parse(rawHTML []byte, baseURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	if title == "" {
		title = NoTitle
	}

	content := p.extractContent(doc)
	sum := sha256.Sum256([]byte(content))

	return &Document{
		Title:        title,
		Content:      content,
		Links:        p.extractLinks(doc, baseURL),
		EmbeddedDate: p.extractDate(doc),
		Hash:         hex.EncodeToString(sum[:]),
	}, nil
}

func (p *Parser) extractLinks(doc *goquery.Document, baseURL string) []string {
	links := make([]string, 0)
	seen := make(map[string]bool)

	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return true
		}

		link, err := canon.Resolve(baseURL, href)
		if err != nil || !canon.Crawlable(link) || seen[link] {
			return true
		}

		seen[link] = true
		links = append(links, link)
		return len(links) < p.maxLinks
	})

	return links
}

// extractContent returns the visible text of the page with whitespace
// collapsed to single spaces.
func (p *Parser) extractContent(doc *goquery.Document) string {
	contentDoc := doc.Clone()
	contentDoc.Find("script, style, noscript, template, svg, head").Remove()

	root := contentDoc.Find("body")
	if root.Length() == 0 {
		root = contentDoc
	}

	var words []string
	for _, n := range root.Nodes {
		words = appendText(words, n)
	}
	return strings.Join(words, " ")
}

// appendText walks n and appends the words of every text node, so that
// adjacent block elements never run together.
func appendText(words []string, n *html.Node) []string {
	if n.Type == html.TextNode {
		return append(words, strings.Fields(n.Data)...)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		words = appendText(words, c)
	}
	return words
}

func (p *Parser) extractDate(doc *goquery.Document) string {
	metaSelectors := []string{
		"meta[http-equiv='last-modified']",
		"meta[http-equiv='Last-Modified']",
		"meta[name='last-modified']",
		"meta[property='article:modified_time']",
		"meta[name='date']",
	}

	for _, selector := range metaSelectors {
		if content, exists := doc.Find(selector).Attr("content"); exists && strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content)
		}
	}

	if datetime, exists := doc.Find("time[datetime]").First().Attr("datetime"); exists {
		return strings.TrimSpace(datetime)
	}
	return ""
}
