package search

import "github.com/deidaraiorek/spidey/internal/storage"

const (
	DefaultResults = 50
	MaxPhraseWords = 3
	keywordLimit   = 10
	childLinkLimit = 10
)

// Result is one ranked page.
type Result struct {
	PageID       int64             `json:"pageId"`
	Title        string            `json:"title"`
	URL          string            `json:"url"`
	LastModified string            `json:"lastModified"`
	TopKeywords  []storage.Keyword `json:"topKeywords"`
	ChildLinks   []string          `json:"childLinks"`
	Content      string            `json:"content"`
	Score        float64           `json:"score"`
}

// multiplier is the score adjustment of a phrase found or missing on a page.
type multiplier struct {
	match, miss float64
}

// multipliers by phrase width in stems.
var multipliers = map[int]multiplier{
	1: {match: 1.025, miss: 0.975},
	2: {match: 1.05, miss: 0.95},
	3: {match: 1.1, miss: 0.9},
}
