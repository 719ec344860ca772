package nlp

import (
	"context"
	"strings"
	"testing"

	"github.com/jdkato/prose/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagged(pairs ...string) []prose.Token {
	toks := make([]prose.Token, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		toks = append(toks, prose.Token{Text: pairs[i], Tag: pairs[i+1]})
	}
	return toks
}

func TestChunkTokens(t *testing.T) {
	tests := []struct {
		name string
		toks []prose.Token
		want []string
	}{
		{"determiner adjectives nouns", tagged("the", "DT", "weekly", "JJ", "meal", "NN", "plan", "NN", ".", "."), []string{"the weekly meal plan"}},
		{"preposition splits", tagged("trip", "NN", "of", "IN", "4", "CD", "days", "NNS"), []string{"trip", "4 days"}},
		{"trailing modifier dropped", tagged("the", "DT", "red", "JJ"), nil},
		{"modifier after head opens chunk", tagged("cars", "NNS", "red", "JJ", "apples", "NNS"), []string{"cars", "red apples"}},
		{"pronoun chunk", tagged("we", "PRP", "need", "VBP", "maps", "NNS"), []string{"we", "maps"}},
		{"determiner restarts", tagged("a", "DT", "group", "NN", "the", "DT", "friends", "NNS"), []string{"a group", "the friends"}},
		{"possessive pronoun", tagged("our", "PRP$", "college", "NN", "friends", "NNS"), []string{"our college friends"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chunkTokens(tt.toks))
		})
	}
}

func TestProse_TravelPlannerQuery(t *testing.T) {
	text := "Travel Planner Plan a trip of 4 days for a group of 10 college friends."
	got, err := NewProse().ExtractPhrases(context.Background(), text)
	require.NoError(t, err)

	hasChunkEnding := func(suffix string) bool {
		for _, c := range got.NounChunks {
			if strings.HasSuffix(c, suffix) {
				return true
			}
		}
		return false
	}
	assert.True(t, hasChunkEnding("trip"), "chunks: %v", got.NounChunks)
	assert.True(t, hasChunkEnding("friends"), "chunks: %v", got.NounChunks)
	for _, c := range got.NounChunks {
		assert.NotContains(t, c, ".", "chunks never include punctuation")
	}
}

func TestProse_EmptyText(t *testing.T) {
	got, err := NewProse().ExtractPhrases(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, got.NounChunks)
	assert.Empty(t, got.Entities)
}

func TestProse_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProse().ExtractPhrases(ctx, "Plan a trip.")
	assert.ErrorIs(t, err, context.Canceled)
}
