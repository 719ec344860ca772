package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/doctriage/internal/document"
	"github.com/dgallion1/doctriage/internal/nlp"
	"github.com/dgallion1/doctriage/internal/source"
	"github.com/dgallion1/doctriage/internal/triage"
)

// ErrNoPages is reported for a document that parsed to zero pages.
var ErrNoPages = errors.New("document has no pages")

// Request is one triage run: a query and the documents to rank, in the
// order their sections should be reported.
type Request struct {
	Query     triage.Query
	Documents []string
}

// Options tune a Triager. The zero value runs sequentially with the
// default snippet length. Callbacks may be called concurrently when
// Workers > 1.
type Options struct {
	Workers      int
	SnippetChars int

	// Backoff between retries of transient backend errors; nil uses Backoff.
	Backoff func(attempt int) time.Duration
	// OnSkip is called for every document left out of the result.
	OnSkip func(filename string, reason error)
	// OnDocument is called after every document, skipped or not.
	OnDocument func(filename string)
	// Now supplies the processing timestamp; nil uses time.Now.
	Now func() time.Time
}

// Triager ranks the pages of each requested document and assembles the
// output.
type Triager struct {
	src       source.Source
	scorer    *triage.Scorer
	extractor nlp.PhraseExtractor
	log       *slog.Logger
	opts      Options
}

func NewTriager(src source.Source, sim nlp.Similarity, ex nlp.PhraseExtractor, log *slog.Logger, opts Options) *Triager {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.SnippetChars <= 0 {
		opts.SnippetChars = triage.DefaultSnippetChars
	}
	if opts.Backoff == nil {
		opts.Backoff = Backoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := retrier{log: log, backoff: opts.Backoff}
	return &Triager{
		src:       src,
		scorer:    triage.NewScorer(retryingSimilarity{inner: sim, r: r}),
		extractor: retryingExtractor{inner: ex, r: r},
		log:       log,
		opts:      opts,
	}
}

// Keywords returns the focus keywords of a query.
func (t *Triager) Keywords(ctx context.Context, q triage.Query) ([]string, error) {
	return triage.FocusKeywords(ctx, t.extractor, q.Text())
}

type docResult struct {
	section  triage.ExtractedSection
	analysis triage.SubsectionAnalysis
}

// Run processes every document of req. Missing and empty documents are
// skipped; any other failure aborts the run. Documents may be processed
// concurrently but ranks always follow request order.
func (t *Triager) Run(ctx context.Context, req Request) (*triage.Output, error) {
	start := time.Now()
	keywords, err := t.Keywords(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("focus keywords: %w", err)
	}
	t.log.Info("focus keywords", "count", len(keywords), "keywords", keywords)

	query := req.Query.Text()
	results := make([]*docResult, len(req.Documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Workers)
	for i, name := range req.Documents {
		g.Go(func() error {
			r, err := t.document(gctx, query, name, keywords)
			if t.opts.OnDocument != nil {
				t.opts.OnDocument(name)
			}
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &triage.Output{
		Metadata: triage.Metadata{
			InputDocuments: append([]string{}, req.Documents...),
			Persona:        req.Query.Persona,
			JobToBeDone:    req.Query.Job,
		},
		ExtractedSections:  []triage.ExtractedSection{},
		SubsectionAnalysis: []triage.SubsectionAnalysis{},
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		r.section.ImportanceRank = len(out.ExtractedSections) + 1
		out.ExtractedSections = append(out.ExtractedSections, r.section)
		out.SubsectionAnalysis = append(out.SubsectionAnalysis, r.analysis)
	}
	out.Metadata.ProcessingTimestamp = triage.FormatTimestamp(t.opts.Now())

	t.log.Info("triage complete",
		"documents", len(req.Documents),
		"sections", len(out.ExtractedSections),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// document picks the best page of one document. A nil result with a nil
// error means the document was skipped.
func (t *Triager) document(ctx context.Context, query, name string, keywords []string) (*docResult, error) {
	log := t.log.With("document", name)

	doc, err := t.src.Document(ctx, name)
	if errors.Is(err, document.ErrNotFound) {
		log.Warn("document not found, skipping")
		t.skip(name, err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(doc.Pages) == 0 {
		log.Warn("document has no pages, skipping")
		t.skip(name, ErrNoPages)
		return nil, nil
	}

	ranked, err := t.scorer.RankPages(ctx, query, doc.Pages, keywords)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	best := ranked[0]
	title := triage.SelectHeading(best.Text, keywords)
	log.Info("selected page", "pages", len(doc.Pages), "page", best.Number, "score", best.Score, "title", title)

	return &docResult{
		section: triage.ExtractedSection{
			Document:     name,
			SectionTitle: title,
			PageNumber:   best.Number,
		},
		analysis: triage.SubsectionAnalysis{
			Document:    name,
			RefinedText: triage.Snippet(best.Text, t.opts.SnippetChars),
			PageNumber:  best.Number,
		},
	}, nil
}

func (t *Triager) skip(name string, reason error) {
	if t.opts.OnSkip != nil {
		t.opts.OnSkip(name, reason)
	}
}
