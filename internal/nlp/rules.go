package nlp

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rules is a model-free PhraseExtractor whose output is fixed by its word
// lists rather than a tagger model. It approximates base noun phrases as
// runs of content words (optionally led by a determiner) and entities as
// runs of capitalized words, acronyms and numbers with an optional time unit.
type Rules struct{}

func NewRules() *Rules {
	return &Rules{}
}

func (r *Rules) ExtractPhrases(ctx context.Context, text string) (Phrases, error) {
	if err := ctx.Err(); err != nil {
		return Phrases{}, err
	}
	toks := tokenize(text)
	return Phrases{
		NounChunks: nounChunks(text, toks),
		Entities:   entities(text, toks),
	}, nil
}

type token struct {
	lower      string
	start, end int // byte offsets into the source text
	punct      bool
	capital    bool // first rune is upper case
	acronym    bool // two or more letters, all upper case
	number     bool
}

// tokenize splits text into word and punctuation tokens. Apostrophes,
// hyphens, periods and ampersands stay inside a word when both neighbours
// are letters or digits ("don't", "e-mail", "U.S", "AT&T").
func tokenize(text string) []token {
	var toks []token
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case isWordRune(r):
			start := i
			i += size
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if isWordRune(r) {
					i += size
					continue
				}
				if isJoiner(r) && i+size < len(text) {
					next, _ := utf8.DecodeRuneInString(text[i+size:])
					if isWordRune(next) {
						i += size
						continue
					}
				}
				break
			}
			toks = append(toks, wordToken(text, start, i))
		default:
			toks = append(toks, token{lower: string(r), start: i, end: i + size, punct: true})
			i += size
		}
	}
	return toks
}

func wordToken(text string, start, end int) token {
	w := text[start:end]
	t := token{start: start, end: end}
	var letters, upper int
	for idx, r := range w {
		if idx == 0 {
			t.capital = unicode.IsUpper(r)
		}
		if unicode.IsDigit(r) {
			t.number = true
		}
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	t.acronym = letters >= 2 && letters == upper
	t.lower = strings.ToLower(w)
	return t
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '-', '.', '&':
		return true
	}
	return false
}

// isVerb guesses whether a task verb at position i acts as a verb:
// sentence-initial, after a conjunction or "to", or before a determiner,
// pronoun or conjunction.
func isVerb(toks []token, i int) bool {
	if !taskVerbs[toks[i].lower] {
		return false
	}
	if i == 0 || (toks[i-1].punct && sentenceEnd[toks[i-1].lower]) {
		return true
	}
	prev := toks[i-1].lower
	if conjunctions[prev] || prev == "to" {
		return true
	}
	if i+1 < len(toks) {
		next := toks[i+1].lower
		return determiners[next] || pronouns[next] || conjunctions[next]
	}
	return false
}

func isContent(toks []token, i int) bool {
	t := toks[i]
	return !t.punct && !functionWords[t.lower] && !isVerb(toks, i)
}

func nounChunks(text string, toks []token) []string {
	var chunks []string
	for i := 0; i < len(toks); {
		if !isContent(toks, i) {
			i++
			continue
		}
		j := i
		for j < len(toks) && isContent(toks, j) {
			j++
		}
		from := i
		if i > 0 && determiners[toks[i-1].lower] {
			from = i - 1
		}
		chunks = append(chunks, text[toks[from].start:toks[j-1].end])
		i = j
	}
	return chunks
}

func entities(text string, toks []token) []string {
	var ents []string
	for i := 0; i < len(toks); {
		t := toks[i]
		switch {
		case t.number:
			end := t.end
			if i+1 < len(toks) && timeUnits[toks[i+1].lower] {
				end = toks[i+1].end
				i++
			}
			ents = append(ents, text[t.start:end])
			i++
		case isNameToken(toks, i):
			j := i + 1
			for j < len(toks) {
				if isNameToken(toks, j) {
					j++
					continue
				}
				// "Bank of America", "Marks & Spencer"
				if j+1 < len(toks) && nameConnectors[toks[j].lower] && isNameToken(toks, j+1) {
					j += 2
					continue
				}
				break
			}
			sentenceStart := i == 0 || (toks[i-1].punct && sentenceEnd[toks[i-1].lower])
			// A lone capitalized word opening a sentence is just sentence case.
			if j-i > 1 || t.acronym || !sentenceStart {
				ents = append(ents, text[t.start:toks[j-1].end])
			}
			i = j
		default:
			i++
		}
	}
	return ents
}

func isNameToken(toks []token, i int) bool {
	t := toks[i]
	if t.punct || t.number || !t.capital {
		return false
	}
	if t.acronym {
		return true
	}
	return !functionWords[t.lower] && !isVerb(toks, i)
}

var sentenceEnd = set(".", "!", "?", ";", ":")

var nameConnectors = set("of", "&", "de", "del", "von", "van")

var determiners = set(
	"a", "an", "the", "this", "that", "these", "those",
	"my", "our", "your", "their", "his", "her", "its",
	"some", "any", "each", "every", "all", "both", "several", "many",
)

var pronouns = set(
	"i", "you", "he", "she", "it", "we", "they", "me", "him", "us", "them",
	"myself", "yourself", "ourselves", "themselves", "who", "whom", "whose",
	"which", "what", "someone", "something", "everyone", "everything",
)

var conjunctions = set("and", "or", "but", "nor", "yet", "so", "while", "if", "because", "although")

var functionWords = union(determiners, pronouns, conjunctions, set(
	"of", "for", "to", "in", "on", "at", "by", "with", "from", "about", "into",
	"onto", "over", "under", "between", "through", "during", "before", "after",
	"across", "within", "without", "per", "via", "as", "than", "up", "down",
	"out", "off", "around", "among", "against", "toward", "towards", "upon",
	"is", "are", "was", "were", "be", "been", "being", "am",
	"do", "does", "did", "have", "has", "had", "having",
	"will", "would", "shall", "should", "can", "could", "may", "might", "must",
	"not", "no", "also", "very", "just", "only", "too", "more", "most",
	"there", "here", "then", "how", "when", "where", "why", "such",
))

// taskVerbs are verbs common in job descriptions. They only break a phrase
// when isVerb decides they are used as verbs ("Plan a trip" vs "meal plan").
var taskVerbs = set(
	"plan", "prepare", "create", "find", "identify", "summarize", "analyze",
	"analyse", "review", "provide", "help", "build", "make", "write", "compile",
	"develop", "evaluate", "compare", "design", "organize", "organise", "list",
	"extract", "get", "give", "need", "want", "learn", "understand", "explain",
	"study", "research", "select", "choose", "recommend", "assess", "manage",
	"track", "use", "improve", "focus", "convert", "fill", "sign", "share",
	"send", "edit", "teach", "investigate", "draft", "outline", "suggest",
)

var timeUnits = set(
	"second", "seconds", "minute", "minutes", "hour", "hours", "day", "days",
	"night", "nights", "week", "weeks", "weekend", "weekends", "month", "months",
	"year", "years", "decade", "decades",
)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func union(sets ...map[string]bool) map[string]bool {
	m := make(map[string]bool)
	for _, s := range sets {
		for w := range s {
			m[w] = true
		}
	}
	return m
}
