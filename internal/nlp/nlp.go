// Package nlp provides the language capabilities the triage core depends on:
// scoring how related two texts are and finding candidate key phrases.
// Backends are explicit values constructed at startup and passed down; none
// of them keep process-wide state.
package nlp

import (
	"context"
	"fmt"
)

// Similarity scores how topically related two texts are. The score is
// symmetric, higher means closer, and identical inputs give identical scores.
type Similarity interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Phrases are the raw key phrase candidates found in a text.
type Phrases struct {
	NounChunks []string // Base noun phrases, in text order
	Entities   []string // Named or numeric entity spans, in text order
}

// PhraseExtractor finds candidate key phrases in a text.
type PhraseExtractor interface {
	ExtractPhrases(ctx context.Context, text string) (Phrases, error)
}

// SimilarityFunc adapts a plain function to Similarity.
type SimilarityFunc func(a, b string) float64

func (f SimilarityFunc) Similarity(_ context.Context, a, b string) (float64, error) {
	return f(a, b), nil
}

// StaticExtractor returns the same phrases for every text.
type StaticExtractor Phrases

func (s StaticExtractor) ExtractPhrases(context.Context, string) (Phrases, error) {
	return Phrases(s), nil
}

// RetryableError indicates a transient backend failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RetryableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
	}
	return fmt.Sprintf("retryable error: %s", truncate(e.Message, 200))
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
