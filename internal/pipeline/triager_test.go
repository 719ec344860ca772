package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/doctriage/internal/document"
	"github.com/dgallion1/doctriage/internal/nlp"
	"github.com/dgallion1/doctriage/internal/parser"
	"github.com/dgallion1/doctriage/internal/source"
	"github.com/dgallion1/doctriage/internal/triage"
)

var fixedNow = time.Date(2025, 7, 14, 9, 5, 3, 123456000, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func travelQuery() triage.Query {
	return triage.Query{
		Persona: "Travel Planner",
		Job:     "Plan a trip of 4 days for a group of 10 college friends.",
	}
}

func travelSource() *source.Memory {
	src := source.NewMemory(parser.Options{})
	src.Add("cities.txt", []byte(
		"Comprehensive Guide to Major Cities\nIntroduction to the region.\f"+
			"Nightlife in Nice\nClubs and bars for college friends on a trip.\f"+
			"History\nOld buildings."))
	src.Add("cuisine.txt", []byte(
		"Culinary Experiences\nCooking classes for a group of friends.\f"+
			"Wine Tours\nVineyards."))
	return src
}

func newTestTriager(src source.Source, opts Options) *Triager {
	opts.Now = func() time.Time { return fixedNow }
	return NewTriager(src, nlp.NewLexical(), nlp.NewRules(), discardLogger(), opts)
}

func TestRun_MissingDocumentSkipped(t *testing.T) {
	var skipped []string
	tr := newTestTriager(travelSource(), Options{
		OnSkip: func(name string, reason error) {
			assert.ErrorIs(t, reason, document.ErrNotFound)
			skipped = append(skipped, name)
		},
	})

	req := Request{Query: travelQuery(), Documents: []string{"cities.txt", "missing.pdf", "cuisine.txt"}}
	out, err := tr.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"cities.txt", "missing.pdf", "cuisine.txt"}, out.Metadata.InputDocuments)
	assert.Equal(t, []string{"missing.pdf"}, skipped)
	require.Len(t, out.ExtractedSections, 2)
	require.Len(t, out.SubsectionAnalysis, 2)

	assert.Equal(t, triage.ExtractedSection{
		Document: "cities.txt", SectionTitle: "Nightlife in Nice", ImportanceRank: 1, PageNumber: 2,
	}, out.ExtractedSections[0])
	assert.Equal(t, "cuisine.txt", out.ExtractedSections[1].Document)
	assert.Equal(t, 2, out.ExtractedSections[1].ImportanceRank)
	assert.Equal(t, 1, out.ExtractedSections[1].PageNumber)

	for i := range out.ExtractedSections {
		assert.Equal(t, out.ExtractedSections[i].Document, out.SubsectionAnalysis[i].Document)
		assert.Equal(t, out.ExtractedSections[i].PageNumber, out.SubsectionAnalysis[i].PageNumber)
	}
	assert.Equal(t, "Nightlife in Nice Clubs and bars for college friends on a trip.", out.SubsectionAnalysis[0].RefinedText)

	assert.Equal(t, "Travel Planner", out.Metadata.Persona)
	assert.Equal(t, travelQuery().Job, out.Metadata.JobToBeDone)
	assert.Equal(t, "2025-07-14T09:05:03.123456", out.Metadata.ProcessingTimestamp)
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	src := travelSource()
	var docs []string
	for i := range 12 {
		name := "doc" + string(rune('a'+i)) + ".txt"
		body := strings.Repeat("filler text\n", i) + "\fBeach Day\nA trip for college friends\f" + strings.Repeat("x", i*100)
		src.Add(name, []byte(body))
		docs = append(docs, name)
	}
	docs = append(docs, "cities.txt", "nowhere.txt", "cuisine.txt")
	req := Request{Query: travelQuery(), Documents: docs}

	seq, err := newTestTriager(src, Options{Workers: 1}).Run(context.Background(), req)
	require.NoError(t, err)
	par, err := newTestTriager(src, Options{Workers: 8}).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, seq, par)
	for i, s := range seq.ExtractedSections {
		assert.Equal(t, i+1, s.ImportanceRank)
	}
}

func TestRun_RefinedTextBounds(t *testing.T) {
	src := source.NewMemory(parser.Options{})
	src.Add("long.txt", []byte(strings.Repeat("Line of text about a trip\n", 100)))
	out, err := newTestTriager(src, Options{}).Run(context.Background(),
		Request{Query: travelQuery(), Documents: []string{"long.txt"}})
	require.NoError(t, err)

	require.Len(t, out.SubsectionAnalysis, 1)
	text := out.SubsectionAnalysis[0].RefinedText
	assert.Equal(t, triage.DefaultSnippetChars, utf8.RuneCountInString(text))
	assert.NotContains(t, text, "\n")
}

func TestRun_TieSelectsLowerPage(t *testing.T) {
	src := source.NewMemory(parser.Options{})
	src.Add("same.txt", []byte("identical page.\fidentical page."))
	out, err := newTestTriager(src, Options{}).Run(context.Background(),
		Request{Query: travelQuery(), Documents: []string{"same.txt"}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.ExtractedSections[0].PageNumber)
	assert.Equal(t, triage.DefaultTitle, out.ExtractedSections[0].SectionTitle)
}

type fakeSource map[string]*document.Document

func (f fakeSource) Document(_ context.Context, name string) (*document.Document, error) {
	doc, ok := f[name]
	if !ok {
		return nil, document.ErrNotFound
	}
	return doc, nil
}

func TestRun_EmptyDocumentSkipped(t *testing.T) {
	src := fakeSource{
		"empty.pdf": {Filename: "empty.pdf"},
		"one.pdf":   {Filename: "one.pdf", Pages: []document.Page{{Number: 1, Text: "Trip Ideas\nbody"}}},
	}
	var reasons []error
	tr := newTestTriager(src, Options{OnSkip: func(_ string, r error) { reasons = append(reasons, r) }})

	out, err := tr.Run(context.Background(), Request{Query: travelQuery(), Documents: []string{"empty.pdf", "one.pdf"}})
	require.NoError(t, err)
	require.Len(t, out.ExtractedSections, 1)
	assert.Equal(t, 1, out.ExtractedSections[0].ImportanceRank)
	assert.Equal(t, "Trip Ideas", out.ExtractedSections[0].SectionTitle)
	require.Len(t, reasons, 1)
	assert.ErrorIs(t, reasons[0], ErrNoPages)
}

func TestRun_ParseErrorIsFatal(t *testing.T) {
	src := source.NewMemory(parser.Options{})
	src.Add("notes.xyz", []byte("data"))
	_, err := newTestTriager(src, Options{}).Run(context.Background(),
		Request{Query: travelQuery(), Documents: []string{"notes.xyz"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notes.xyz")
}

func TestRun_OnDocumentCalledForEveryDocument(t *testing.T) {
	var n atomic.Int32
	tr := newTestTriager(travelSource(), Options{
		Workers:    3,
		OnDocument: func(string) { n.Add(1) },
	})
	_, err := tr.Run(context.Background(), Request{
		Query:     travelQuery(),
		Documents: []string{"cities.txt", "gone.txt", "cuisine.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), n.Load())
}

type flakySim struct {
	calls atomic.Int32
	fails int32
}

func (f *flakySim) Similarity(context.Context, string, string) (float64, error) {
	if f.calls.Add(1) <= f.fails {
		return 0, &nlp.RetryableError{StatusCode: 503, Message: "overloaded"}
	}
	return 0.5, nil
}

func noBackoff(int) time.Duration { return 0 }

func TestRun_RetriesTransientErrors(t *testing.T) {
	src := fakeSource{"a.pdf": {Filename: "a.pdf", Pages: []document.Page{{Number: 1, Text: "text"}}}}
	sim := &flakySim{fails: 2}
	tr := NewTriager(src, sim, nlp.NewRules(), discardLogger(), Options{Backoff: noBackoff})

	out, err := tr.Run(context.Background(), Request{Query: travelQuery(), Documents: []string{"a.pdf"}})
	require.NoError(t, err)
	assert.Len(t, out.ExtractedSections, 1)
	assert.Equal(t, int32(3), sim.calls.Load())
}

func TestRun_GivesUpAfterMaxRetries(t *testing.T) {
	src := fakeSource{"a.pdf": {Filename: "a.pdf", Pages: []document.Page{{Number: 1, Text: "text"}}}}
	sim := &flakySim{fails: 100}
	tr := NewTriager(src, sim, nlp.NewRules(), discardLogger(), Options{Backoff: noBackoff})

	_, err := tr.Run(context.Background(), Request{Query: travelQuery(), Documents: []string{"a.pdf"}})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(MaxRetries), sim.calls.Load())
}

type permanentErrSim struct{ calls int }

func (p *permanentErrSim) Similarity(context.Context, string, string) (float64, error) {
	p.calls++
	return 0, errors.New("model missing")
}

func TestRun_PermanentErrorNotRetried(t *testing.T) {
	src := fakeSource{"a.pdf": {Filename: "a.pdf", Pages: []document.Page{{Number: 1, Text: "text"}}}}
	sim := &permanentErrSim{}
	tr := NewTriager(src, sim, nlp.NewRules(), discardLogger(), Options{Backoff: noBackoff})

	_, err := tr.Run(context.Background(), Request{Query: travelQuery(), Documents: []string{"a.pdf"}})
	require.Error(t, err)
	assert.Equal(t, 1, sim.calls)
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "output.json")
	out := &triage.Output{
		Metadata: triage.Metadata{
			InputDocuments:      []string{"Café <Guide>.pdf"},
			Persona:             "Chef & Host",
			ProcessingTimestamp: "2025-07-14T09:05:03",
		},
		ExtractedSections:  []triage.ExtractedSection{},
		SubsectionAnalysis: []triage.SubsectionAnalysis{},
	}
	require.NoError(t, WriteOutput(path, out))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"Café <Guide>.pdf"`)
	assert.Contains(t, s, `"persona": "Chef & Host"`)
	assert.True(t, strings.HasPrefix(s, "{\n  \"metadata\": {\n    \"input_documents\""))
	assert.NotContains(t, s, "score")
}

func TestEncodeOutput_EmptyListsAreArrays(t *testing.T) {
	var buf bytes.Buffer
	out := &triage.Output{ExtractedSections: []triage.ExtractedSection{}, SubsectionAnalysis: []triage.SubsectionAnalysis{}}
	require.NoError(t, EncodeOutput(&buf, out))
	assert.Contains(t, buf.String(), `"extracted_sections": []`)
}

func TestEncodeOutput_LineSeparatorsUnescaped(t *testing.T) {
	text := "A\u2028B\u2029C <b>&</b> \\u2028 literal"
	out := &triage.Output{
		ExtractedSections:  []triage.ExtractedSection{},
		SubsectionAnalysis: []triage.SubsectionAnalysis{{Document: "a.pdf", RefinedText: text, PageNumber: 1}},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeOutput(&buf, out))

	encoded := buf.String()
	assert.Contains(t, encoded, "A\u2028B\u2029C <b>&</b>")
	assert.NotContains(t, encoded, `A\u2028B`)
	assert.Contains(t, encoded, `\\u2028 literal`)

	var decoded triage.Output
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, text, decoded.SubsectionAnalysis[0].RefinedText)
}

func TestBackoff(t *testing.T) {
	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		d := Backoff(attempt)
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d: expected backoff in [%v, %v), got %v", attempt, base, base+base/2, d)
		}
	}
	if d := Backoff(10); d > 45*time.Second {
		t.Errorf("expected capped backoff, got %v", d)
	}
}
