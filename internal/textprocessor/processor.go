// Package textprocessor turns text into positioned stems. Stems come from
// snowball English (Porter2), not the classic 1980 Porter rules.
package textprocessor

import (
	"sort"
	"strings"

	"github.com/deidaraiorek/spidey/internal/tokenizer"
)

// TextProcessor is the shared pipeline used for page titles, page content and
// queries: tokenize, drop stopwords, stem.
type TextProcessor struct {
	tokenizer *tokenizer.Tokenizer
	stemmer   *Stemmer
}

func NewTextProcessor() *TextProcessor {
	return &TextProcessor{
		tokenizer: tokenizer.NewTokenizer(),
		stemmer:   NewStemmer(),
	}
}

// Process returns the stems of text in token order.
func (tp *TextProcessor) Process(text string) []string {
	return tp.stemmer.StemBatch(tp.tokenizer.Tokenize(text))
}

func (tp *TextProcessor) ProcessToFrequency(text string) map[string]int {
	freq := make(map[string]int)
	for _, stem := range tp.Process(text) {
		freq[stem]++
	}
	return freq
}

// TermCount is one distinct stem of a field and how often it occurs.
type TermCount struct {
	Term      string
	Frequency int
}

// Field is the analysis of a single title or content string.
type Field struct {
	// Stems in token order; the index of a stem is its position.
	Stems []string
	// Frequencies holds each distinct stem once, most frequent first. Equal
	// frequencies keep first-appearance order.
	Frequencies []TermCount
	// Positions maps each stem to its zero-based token positions, ascending.
	Positions map[string][]int
}

func (tp *TextProcessor) Analyze(text string) Field {
	stems := tp.Process(text)
	positions := make(map[string][]int)
	order := make([]string, 0)

	for i, stem := range stems {
		if _, seen := positions[stem]; !seen {
			order = append(order, stem)
		}
		positions[stem] = append(positions[stem], i)
	}

	freqs := make([]TermCount, len(order))
	for i, term := range order {
		freqs[i] = TermCount{Term: term, Frequency: len(positions[term])}
	}
	sort.SliceStable(freqs, func(i, j int) bool {
		return freqs[i].Frequency > freqs[j].Frequency
	})

	return Field{
		Stems:       stems,
		Frequencies: freqs,
		Positions:   positions,
	}
}

// Document is the analysis of one page.
type Document struct {
	Title   Field
	Content Field
}

// Terms returns every distinct stem of the title and content, title first,
// in first-appearance order.
func (d Document) Terms() []string {
	seen := make(map[string]bool)
	terms := make([]string, 0, len(d.Title.Positions)+len(d.Content.Positions))
	for _, field := range []Field{d.Title, d.Content} {
		for _, stem := range field.Stems {
			if !seen[stem] {
				seen[stem] = true
				terms = append(terms, stem)
			}
		}
	}
	return terms
}

func (tp *TextProcessor) AnalyzeDocument(title, content string) Document {
	return Document{
		Title:   tp.Analyze(title),
		Content: tp.Analyze(content),
	}
}

// NGrams returns every run of n consecutive items of seq, in order. The
// position of an n-gram is the index of its first item.
func NGrams[T any](seq []T, n int) [][]T {
	if n <= 0 || len(seq) < n {
		return nil
	}
	grams := make([][]T, 0, len(seq)-n+1)
	for i := 0; i+n <= len(seq); i++ {
		grams = append(grams, seq[i:i+n:i+n])
	}
	return grams
}

// Phrase runs a quoted query phrase through the pipeline and returns its stems
// joined by single spaces.
func (tp *TextProcessor) Phrase(text string) string {
	return strings.Join(tp.Process(text), " ")
}
