package nlp

import (
	"context"
	"math"
	"slices"
	"strings"
	"unicode"
)

// Lexical scores texts by the cosine of their term-frequency vectors over
// lowercase word tokens. It needs no model, and an empty or symbol-only text
// scores 0 against anything.
type Lexical struct {
	// Stopwords are ignored when building vectors. Nil keeps every token.
	Stopwords map[string]bool
}

// NewLexical returns a Lexical scorer that ignores common English function
// words.
func NewLexical() *Lexical {
	return &Lexical{Stopwords: functionWords}
}

func (l *Lexical) Similarity(ctx context.Context, a, b string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return cosineTF(l.termFreq(a), l.termFreq(b)), nil
}

func (l *Lexical) termFreq(text string) map[string]float64 {
	tf := make(map[string]float64)
	for _, w := range words(strings.ToLower(text)) {
		if l.Stopwords[w] {
			continue
		}
		tf[w]++
	}
	return tf
}

// cosineTF walks terms in sorted order so float summation, and therefore
// the score, is reproducible across runs and symmetric in its arguments.
func cosineTF(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for _, t := range sortedTerms(a) {
		na += a[t] * a[t]
		if v, ok := b[t]; ok {
			dot += a[t] * v
		}
	}
	for _, t := range sortedTerms(b) {
		nb += b[t] * b[t]
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func sortedTerms(tf map[string]float64) []string {
	terms := make([]string, 0, len(tf))
	for t := range tf {
		terms = append(terms, t)
	}
	slices.Sort(terms)
	return terms
}

// words splits text into runs of letters and digits.
func words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// cosine of two dense vectors; 0 when either has no magnitude.
func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
