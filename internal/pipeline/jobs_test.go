package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/doctriage/internal/parser"
	"github.com/dgallion1/doctriage/internal/source"
	"github.com/dgallion1/doctriage/internal/triage"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func newTestJob(id string, docs ...string) *Job {
	req := Request{Query: triage.Query{Persona: "p", Job: "j"}, Documents: docs}
	return NewJob(id, req, source.NewMemory(parser.Options{}))
}

func TestNewJob(t *testing.T) {
	job := newTestJob("new-1", "a.txt", "b.txt")
	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	snap := job.Snapshot()
	if snap.Progress.DocumentsTotal != 2 {
		t.Errorf("expected 2 documents, got %d", snap.Progress.DocumentsTotal)
	}
	if snap.Persona != "p" || snap.Job != "j" {
		t.Errorf("expected persona/job p/j, got %q/%q", snap.Persona, snap.Job)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := newTestJob("test-1")

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusRunning, "ranking"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := newTestJob("err-test")
	job.AddError("backend unavailable")
	job.AddError("output does not match schema")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "backend unavailable" {
		t.Errorf("expected first error %q, got %q", "backend unavailable", snap.Progress.Errors[0])
	}
}

func TestJob_AddSkipped(t *testing.T) {
	job := newTestJob("skip-test", "a.pdf", "b.pdf")
	job.AddSkipped("b.pdf", errors.New("document not found"))

	snap := job.Snapshot()
	if len(snap.Progress.DocumentsSkipped) != 1 || snap.Progress.DocumentsSkipped[0] != "b.pdf" {
		t.Errorf("expected [b.pdf] skipped, got %v", snap.Progress.DocumentsSkipped)
	}
	if len(snap.Progress.Errors) != 1 || snap.Progress.Errors[0] != "b.pdf: document not found" {
		t.Errorf("unexpected errors %v", snap.Progress.Errors)
	}
}

func TestJob_IncrDocumentsDone(t *testing.T) {
	job := newTestJob("incr-test")
	job.IncrDocumentsDone()
	job.IncrDocumentsDone()
	job.IncrDocumentsDone()

	snap := job.Snapshot()
	if snap.Progress.DocumentsDone != 3 {
		t.Errorf("expected 3 documents done, got %d", snap.Progress.DocumentsDone)
	}
}

func TestJob_AddFile(t *testing.T) {
	job := newTestJob("file-test", "notes.txt")
	job.AddFile("notes.txt", []byte("hello world"))

	if job.src.Len() != 1 {
		t.Fatalf("expected 1 document in source, got %d", job.src.Len())
	}
	snap := job.Snapshot()
	if len(snap.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(snap.Files))
	}
	f := snap.Files[0]
	if f.Bytes != 11 || f.ContentHash != ContentHashHex([]byte("hello world")) {
		t.Errorf("unexpected file info %+v", f)
	}
}

func TestJob_Output(t *testing.T) {
	job := newTestJob("out-test")
	if job.Output() != nil {
		t.Fatal("expected nil output before completion")
	}
	out := &triage.Output{}
	job.SetOutput(out)
	if job.Output() != out {
		t.Error("expected output to be recorded")
	}
	if job.Snapshot().Output != out {
		t.Error("expected snapshot to carry output")
	}
}

func TestJob_SnapshotSlicesNotNil(t *testing.T) {
	// Snapshot should always return non-nil slices.
	job := newTestJob("snap-test")
	snap := job.Snapshot()
	if snap.Progress.Errors == nil || snap.Progress.DocumentsSkipped == nil || snap.Files == nil {
		t.Error("expected non-nil slices in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := newTestJob("store-1")
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := newTestJob("old")
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := newTestJob("new")
	store.Put(fresh)

	if n := store.Cleanup(); n != 1 {
		t.Errorf("expected 1 job removed, got %d", n)
	}

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	if n := store.Cleanup(); n != 0 {
		t.Errorf("expected 0 jobs removed, got %d", n)
	}
}
