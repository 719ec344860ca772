package triage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/doctriage/internal/document"
	"github.com/dgallion1/doctriage/internal/nlp"
)

// KeywordBonus is added once for every focus keyword present in a page.
const KeywordBonus = 0.1

// ScoredPage is a page with its relevance score.
type ScoredPage struct {
	Number int
	Text   string
	Score  float64
}

// Scorer rates pages against a query.
type Scorer struct {
	Similarity nlp.Similarity
}

func NewScorer(sim nlp.Similarity) *Scorer {
	return &Scorer{Similarity: sim}
}

// Score returns similarity(query, page) plus the keyword bonus. A page
// with no visible text has similarity 0 and never reaches the backend.
func (s *Scorer) Score(ctx context.Context, query, page string, keywords []string) (float64, error) {
	var sim float64
	if strings.TrimSpace(page) != "" {
		var err error
		sim, err = s.Similarity.Similarity(ctx, query, page)
		if err != nil {
			return 0, err
		}
	}
	return sim + Bonus(page, keywords), nil
}

// RankPages scores every page and orders them by descending score. Equal
// scores keep page order, so the first entry is the winner.
func (s *Scorer) RankPages(ctx context.Context, query string, pages []document.Page, keywords []string) ([]ScoredPage, error) {
	ranked := make([]ScoredPage, 0, len(pages))
	for _, p := range pages {
		score, err := s.Score(ctx, query, p.Text, keywords)
		if err != nil {
			return nil, fmt.Errorf("score page %d: %w", p.Number, err)
		}
		ranked = append(ranked, ScoredPage{Number: p.Number, Text: p.Text, Score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

// Bonus is KeywordBonus times the number of distinct keywords that occur in
// text as whole words, ignoring case. It is accumulated one keyword at a
// time.
func Bonus(text string, keywords []string) float64 {
	lower := strings.ToLower(text)
	seen := make(map[string]bool, len(keywords))
	var bonus float64
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		if containsWord(lower, kw) {
			bonus += KeywordBonus
		}
	}
	return bonus
}

// containsWord reports whether kw occurs in text with a word boundary on
// both sides. Boundaries follow Unicode word characters (letters, numbers
// and underscore) so "café" does not match inside "cafés".
func containsWord(text, kw string) bool {
	first, _ := utf8.DecodeRuneInString(kw)
	last, _ := utf8.DecodeLastRuneInString(kw)

	for from := 0; from <= len(text)-len(kw); {
		i := strings.Index(text[from:], kw)
		if i < 0 {
			return false
		}
		pos := from + i
		end := pos + len(kw)

		before := ' '
		if pos > 0 {
			before, _ = utf8.DecodeLastRuneInString(text[:pos])
		}
		after := ' '
		if end < len(text) {
			after, _ = utf8.DecodeRuneInString(text[end:])
		}
		if isWordChar(before) != isWordChar(first) && isWordChar(last) != isWordChar(after) {
			return true
		}

		_, size := utf8.DecodeRuneInString(text[pos:])
		from = pos + size
	}
	return false
}

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
