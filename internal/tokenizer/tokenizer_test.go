package tokenizer_test

import (
	"reflect"
	"testing"

	"github.com/deidaraiorek/spidey/internal/tokenizer"
)

func TestTokenize(t *testing.T) {
	tok := tokenizer.NewTokenizer()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "basic text",
			input:    "The quick brown fox jumps over the lazy dog",
			expected: []string{"quick", "brown", "fox", "jumps", "lazy", "dog"},
		},
		{
			name:     "with punctuation",
			input:    "Hello, world! How are you?",
			expected: []string{"hello", "world"},
		},
		{
			name:     "numbers are words",
			input:    "Python 3.11 is great for AI/ML tasks",
			expected: []string{"python", "3", "11", "great", "ai", "ml", "tasks"},
		},
		{
			name:     "hyphen splits, underscore joins",
			input:    "machine-learning and snake_case",
			expected: []string{"machine", "learning", "snake_case"},
		},
		{
			name:     "unicode letters",
			input:    "Café Zürich 東京",
			expected: []string{"café", "zürich", "東京"},
		},
		{
			name:     "contractions",
			input:    "Don't stop, it's fine",
			expected: []string{"stop", "fine"},
		},
		{
			name:     "single characters kept",
			input:    "I have a big x dog",
			expected: []string{"big", "x", "dog"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: []string{},
		},
		{
			name:     "only stop words",
			input:    "the and or but",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tok.Tokenize(tt.input)

			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}
