package triage

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultTitle is reported when no line of a page looks like a heading.
const DefaultTitle = "Untitled Section"

const (
	minHeadingChars  = 5
	maxHeadingTokens = 15
	topLines         = 5
)

// SelectHeading picks the most heading-like line of a page. Lines are
// scored +1 for title or upper casing, +2 per keyword contained anywhere in
// the line and +1 for being among the first five lines. Only a strictly
// higher score replaces the current best, and the best starts at 0, so a
// page whose lines all score 0 keeps DefaultTitle.
func SelectHeading(pageText string, keywords []string) string {
	best := DefaultTitle
	bestScore := 0

	lowerKeywords := make([]string, len(keywords))
	for i, kw := range keywords {
		lowerKeywords[i] = strings.ToLower(kw)
	}

	for idx, line := range strings.Split(pageText, "\n") {
		line = strings.TrimFunc(line, isSpace)
		if !headingCandidate(line) {
			continue
		}

		score := 0
		if line == titleCase(line) || isUpper(line) {
			score++
		}
		lowerLine := strings.ToLower(line)
		for _, kw := range lowerKeywords {
			if strings.Contains(lowerLine, kw) {
				score += 2
			}
		}
		if idx < topLines {
			score++
		}

		if score > bestScore {
			best = line
			bestScore = score
		}
	}
	return best
}

func headingCandidate(line string) bool {
	if utf8.RuneCountInString(line) < minHeadingChars {
		return false
	}
	if strings.IndexFunc(line, unicode.IsLetter) < 0 {
		return false
	}
	if len(strings.FieldsFunc(line, isSpace)) > maxHeadingTokens {
		return false
	}
	return !strings.HasSuffix(line, ".")
}

// isSpace matches the characters str.split treats as separators: Unicode
// white space plus the ASCII file, group, record and unit separators.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// titleCase upper-cases every cased character that follows an uncased one
// and lower-cases the rest ("4th of july" -> "4Th Of July"). Characters
// with a multi-rune case mapping expand ("ßa" -> "Ssa").
func titleCase(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	sb.Grow(len(s))
	prevCased := false
	for i, r := range runes {
		switch {
		case !prevCased:
			if full, ok := fullTitle[r]; ok {
				sb.WriteString(full)
			} else {
				sb.WriteRune(unicode.ToTitle(r))
			}
		case r == 'Σ' && !finalSigmaBlocked(runes[i+1:]):
			sb.WriteRune('ς')
		default:
			if full, ok := fullLower[r]; ok {
				sb.WriteString(full)
			} else {
				sb.WriteRune(unicode.ToLower(r))
			}
		}
		prevCased = isCased(r)
	}
	return sb.String()
}

// finalSigmaBlocked reports whether a cased letter follows, skipping case
// ignorable characters, in which case Σ lowers to σ rather than ς.
func finalSigmaBlocked(rest []rune) bool {
	for _, r := range rest {
		if unicode.In(r, unicode.Mn, unicode.Me, unicode.Cf, unicode.Lm, unicode.Sk) || r == '\'' || r == '.' || r == ':' {
			continue
		}
		return isCased(r)
	}
	return false
}

// Unconditional multi-rune mappings from Unicode SpecialCasing.
var fullTitle = map[rune]string{
	'ß':      "Ss",
	'\u0149': "\u02bcN",
	'\u01f0': "J\u030c",
	'\u0587': "\u0535\u0582",
	'\ufb00': "Ff",
	'\ufb01': "Fi",
	'\ufb02': "Fl",
	'\ufb03': "Ffi",
	'\ufb04': "Ffl",
	'\ufb05': "St",
	'\ufb06': "St",
}

var fullLower = map[rune]string{
	'\u0130': "i\u0307",
}

// isUpper reports whether s has at least one cased character and none of
// them is lower or title case.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if isLower(r) || unicode.IsTitle(r) {
			return false
		}
		if isUpperCase(r) {
			cased = true
		}
	}
	return cased
}

// The Lowercase and Uppercase properties include the Other_ ranges
// (modifier letters such as ʰ, ordinal indicators such as ª).
func isLower(r rune) bool {
	return unicode.IsLower(r) || unicode.Is(unicode.Other_Lowercase, r)
}

func isUpperCase(r rune) bool {
	return unicode.IsUpper(r) || unicode.Is(unicode.Other_Uppercase, r)
}

func isCased(r rune) bool {
	return isUpperCase(r) || isLower(r) || unicode.IsTitle(r)
}
