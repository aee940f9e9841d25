package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/deidaraiorek/spidey/internal/core"
)

var quoted = regexp.MustCompile(`"([^"]*)"`)

// ExtractPhrases returns the distinct non-blank quoted phrases of a query in
// order of appearance. A phrase longer than MaxPhraseWords words, or one
// contained in another, is a validation error.
func ExtractPhrases(query string) ([]string, error) {
	var phrases []string
	seen := make(map[string]bool)
	for _, m := range quoted.FindAllStringSubmatch(query, -1) {
		phrase := strings.Join(strings.Fields(m[1]), " ")
		if phrase == "" || seen[phrase] {
			continue
		}
		if words := len(strings.Fields(phrase)); words > MaxPhraseWords {
			return nil, core.Invalid("query", "phrase %q has %d words, at most %d allowed", phrase, words, MaxPhraseWords)
		}
		seen[phrase] = true
		phrases = append(phrases, phrase)
	}

	for i, a := range phrases {
		for j, b := range phrases {
			if i != j && strings.Contains(b, a) {
				return nil, core.Invalid("query", "phrase %q is nested in %q", a, b)
			}
		}
	}
	return phrases, nil
}

// phraseMatch is a phrase resolved to a dictionary entry and the pages that
// contain it.
type phraseMatch struct {
	phrase string
	width  int
	pages  map[int64]bool
}

// resolvePhrase maps a phrase to its term, bigram or trigram. ok is false
// when the phrase has no indexed stems or its tuple is not in the
// dictionary.
func (qe *QueryEngine) resolvePhrase(ctx context.Context, phrase string) (match phraseMatch, ok bool, err error) {
	stems := qe.processor.Process(phrase)
	if len(stems) == 0 || len(stems) > MaxPhraseWords {
		return match, false, nil
	}

	terms, err := qe.db.LookupTerms(ctx, stems)
	if err != nil {
		return match, false, err
	}
	ids := make([]int64, len(stems))
	for i, stem := range stems {
		t, found := terms[stem]
		if !found {
			return match, false, nil
		}
		ids[i] = t.ID
	}

	var pages map[int64]bool
	if len(ids) == 1 {
		pages, err = qe.db.PagesWithTerm(ctx, ids[0])
	} else {
		id, found, lookupErr := qe.db.LookupNGram(ctx, ids)
		if lookupErr != nil {
			return match, false, lookupErr
		}
		if !found {
			return match, false, nil
		}
		pages, err = qe.db.PagesWithNGram(ctx, len(ids), id)
	}
	if err != nil {
		return match, false, err
	}

	return phraseMatch{phrase: phrase, width: len(ids), pages: pages}, true, nil
}

func (m phraseMatch) apply(pageID int64, score float64) float64 {
	mul := multipliers[m.width]
	if m.pages[pageID] {
		return score * mul.match
	}
	return score * mul.miss
}
