// Package triage holds the relevance heuristics: focus keyword extraction,
// page scoring, heading selection and the output record types. It knows
// nothing about files, formats or NLP backends; those arrive as arguments.
package triage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/doctriage/internal/nlp"
)

// minChunkChars is the length a noun chunk must exceed to become a keyword.
const minChunkChars = 2

// Query is what the reader is looking for.
type Query struct {
	Persona string
	Job     string
}

// Text is the combined form scored against every page.
func (q Query) Text() string {
	return q.Persona + " " + q.Job
}

// FocusKeywords extracts the lowercase keyword set for a query text: noun
// chunks longer than two characters plus every entity span. The result is
// deduplicated and sorted.
func FocusKeywords(ctx context.Context, ex nlp.PhraseExtractor, text string) ([]string, error) {
	phrases, err := ex.ExtractPhrases(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("extract phrases: %w", err)
	}

	seen := make(map[string]bool)
	for _, chunk := range phrases.NounChunks {
		if utf8.RuneCountInString(chunk) > minChunkChars {
			seen[strings.ToLower(chunk)] = true
		}
	}
	for _, ent := range phrases.Entities {
		seen[strings.ToLower(ent)] = true
	}

	keywords := make([]string, 0, len(seen))
	for kw := range seen {
		keywords = append(keywords, kw)
	}
	slices.Sort(keywords)
	return keywords, nil
}
