package nlp

import (
	"context"
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

// Prose finds noun chunks from part-of-speech tags and entities with the
// prose named-entity recognizer.
type Prose struct{}

func NewProse() *Prose {
	return &Prose{}
}

func (p *Prose) ExtractPhrases(ctx context.Context, text string) (Phrases, error) {
	if err := ctx.Err(); err != nil {
		return Phrases{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Phrases{}, nil
	}
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return Phrases{}, fmt.Errorf("prose: %w", err)
	}

	var ents []string
	for _, e := range doc.Entities() {
		ents = append(ents, e.Text)
	}
	return Phrases{NounChunks: chunkTokens(doc.Tokens()), Entities: ents}, nil
}

// chunkTokens groups tagged tokens into base noun phrases: an optional
// determiner or possessive pronoun, then adjectives, numbers and nouns,
// ending on a noun. Personal pronouns form chunks of their own.
func chunkTokens(toks []prose.Token) []string {
	var chunks []string
	var cur []prose.Token

	flush := func() {
		end := len(cur)
		for end > 0 && !isNounTag(cur[end-1].Tag) {
			end--
		}
		if end > 0 {
			words := make([]string, end)
			for i, t := range cur[:end] {
				words[i] = t.Text
			}
			chunks = append(chunks, strings.Join(words, " "))
		}
		cur = nil
	}

	for _, tok := range toks {
		switch {
		case tok.Tag == "DT" || tok.Tag == "PRP$":
			flush()
			cur = append(cur, tok)
		case isNounTag(tok.Tag):
			cur = append(cur, tok)
		case isModifierTag(tok.Tag):
			// A modifier after the head noun opens the next phrase.
			if len(cur) > 0 && isNounTag(cur[len(cur)-1].Tag) {
				flush()
			}
			cur = append(cur, tok)
		case tok.Tag == "PRP":
			flush()
			chunks = append(chunks, tok.Text)
		default:
			flush()
		}
	}
	flush()
	return chunks
}

func isNounTag(tag string) bool {
	switch tag {
	case "NN", "NNS", "NNP", "NNPS":
		return true
	}
	return false
}

func isModifierTag(tag string) bool {
	switch tag {
	case "JJ", "JJR", "JJS", "CD":
		return true
	}
	return false
}
