package pipeline

import (
	"context"
	"log/slog"

	"github.com/dgallion1/doctriage/internal/descriptor"
	"github.com/dgallion1/doctriage/internal/nlp"
)

// Worker runs triage jobs.
type Worker struct {
	sim       nlp.Similarity
	extractor nlp.PhraseExtractor
	log       *slog.Logger
	opts      Options
}

func NewWorker(sim nlp.Similarity, ex nlp.PhraseExtractor, log *slog.Logger, opts Options) *Worker {
	return &Worker{
		sim:       sim,
		extractor: ex,
		log:       log,
		opts:      opts,
	}
}

// Process runs a job to completion, recording progress and the result on it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)
	job.SetStatus(StatusRunning, "ranking")

	opts := w.opts
	opts.OnSkip = func(filename string, reason error) {
		job.AddSkipped(filename, reason)
	}
	opts.OnDocument = func(string) {
		job.IncrDocumentsDone()
	}

	t := NewTriager(job.src, w.sim, w.extractor, log, opts)
	out, err := t.Run(ctx, job.req)
	if err != nil {
		log.Error("triage failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "ranking")
		return
	}

	if err := descriptor.ValidateOutput(out); err != nil {
		log.Warn("output does not match schema", "error", err)
		job.AddError(err.Error())
	}
	job.SetOutput(out)
	job.SetStatus(StatusCompleted, "done")
}
