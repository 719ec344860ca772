package nlp

import (
	"strings"
	"unicode"
)

const tokensPerWord = 1.33

// estimateTokens gives a rough token count from the word count.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(len(strings.Fields(text))) * tokensPerWord)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// clipTokens cuts text after the last whole word that keeps its estimate
// within maxTokens. Layout before the cut is preserved.
func clipTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || estimateTokens(text) <= maxTokens {
		return text
	}
	maxWords := max(1, int(float64(maxTokens)/tokensPerWord))
	words := 0
	inWord := false
	for i, r := range text {
		if !unicode.IsSpace(r) {
			inWord = true
			continue
		}
		if inWord {
			words++
			inWord = false
			if words == maxWords {
				return text[:i]
			}
		}
	}
	return text
}
