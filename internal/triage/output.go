package triage

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSnippetChars bounds SubsectionAnalysis.RefinedText.
const DefaultSnippetChars = 500

// ExtractedSection is the chosen page of one document.
type ExtractedSection struct {
	Document       string `json:"document"`
	SectionTitle   string `json:"section_title"`
	ImportanceRank int    `json:"importance_rank"`
	PageNumber     int    `json:"page_number"`
}

// SubsectionAnalysis carries a snippet of the chosen page.
type SubsectionAnalysis struct {
	Document    string `json:"document"`
	RefinedText string `json:"refined_text"`
	PageNumber  int    `json:"page_number"`
}

type Metadata struct {
	InputDocuments      []string `json:"input_documents"`
	Persona             string   `json:"persona"`
	JobToBeDone         string   `json:"job_to_be_done"`
	ProcessingTimestamp string   `json:"processing_timestamp"`
}

// Output is the result of a triage run. ExtractedSections[i] and
// SubsectionAnalysis[i] describe the same document and page.
type Output struct {
	Metadata           Metadata             `json:"metadata"`
	ExtractedSections  []ExtractedSection   `json:"extracted_sections"`
	SubsectionAnalysis []SubsectionAnalysis `json:"subsection_analysis"`
}

// Snippet returns the first n characters of text with every newline
// replaced by a space. Other whitespace is left alone.
func Snippet(text string, n int) string {
	if n >= 0 {
		count := 0
		for i := range text {
			if count == n {
				text = text[:i]
				break
			}
			count++
		}
	}
	return strings.ReplaceAll(text, "\n", " ")
}

// FormatTimestamp renders t in UTC as YYYY-MM-DDTHH:MM:SS[.ffffff] with no
// zone suffix. The fraction is omitted when the microsecond part is zero.
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	s := t.Format("2006-01-02T15:04:05")
	if us := t.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}
