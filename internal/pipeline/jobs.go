package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/doctriage/internal/source"
	"github.com/dgallion1/doctriage/internal/triage"
)

// JobStatus represents the state of a triage job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks one triage request submitted over HTTP.
type Job struct {
	mu sync.Mutex

	ID     string    `json:"job_id"`
	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	req    Request
	src    *source.Memory
	files  []FileInfo
	output *triage.Output
	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	DocumentsTotal   int      `json:"documents_total"`
	DocumentsDone    int      `json:"documents_done"`
	DocumentsSkipped []string `json:"documents_skipped"`
	Errors           []string `json:"errors"`
}

// FileInfo describes an uploaded document.
type FileInfo struct {
	Filename    string `json:"filename"`
	Bytes       int    `json:"bytes"`
	ContentHash string `json:"content_hash"`
}

// NewJob creates a queued job whose documents are served from src.
func NewJob(id string, req Request, src *source.Memory) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Status:    StatusQueued,
		Phase:     "queued",
		Progress:  Progress{DocumentsTotal: len(req.Documents)},
		CreatedAt: now,
		UpdatedAt: now,
		req:       req,
		src:       src,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes jobs idle for longer than the TTL and reports how many
// were removed.
func (s *JobStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// AddSkipped records a document left out of the output.
func (j *Job) AddSkipped(filename string, reason error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.DocumentsSkipped = append(j.Progress.DocumentsSkipped, filename)
	j.errors = append(j.errors, fmt.Sprintf("%s: %s", filename, reason))
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrDocumentsDone atomically increments processed documents.
func (j *Job) IncrDocumentsDone() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.DocumentsDone++
	j.UpdatedAt = time.Now()
}

// AddFile stores an uploaded document for processing.
func (j *Job) AddFile(filename string, data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.src.Add(filename, data)
	j.files = append(j.files, FileInfo{
		Filename:    filename,
		Bytes:       len(data),
		ContentHash: ContentHashHex(data),
	})
}

// SetOutput records the finished result.
func (j *Job) SetOutput(out *triage.Output) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output = out
	j.UpdatedAt = time.Now()
}

// Output returns the result, or nil while the job is unfinished.
func (j *Job) Output() *triage.Output {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.output
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string         `json:"job_id"`
	Status    JobStatus      `json:"status"`
	Phase     string         `json:"phase"`
	Persona   string         `json:"persona"`
	Job       string         `json:"job_to_be_done"`
	Files     []FileInfo     `json:"files"`
	Progress  Progress       `json:"progress"`
	Output    *triage.Output `json:"output,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	skipped := append([]string{}, j.Progress.DocumentsSkipped...)
	return JobSnapshot{
		ID:      j.ID,
		Status:  j.Status,
		Phase:   j.Phase,
		Persona: j.req.Query.Persona,
		Job:     j.req.Query.Job,
		Files:   append([]FileInfo{}, j.files...),
		Progress: Progress{
			DocumentsTotal:   j.Progress.DocumentsTotal,
			DocumentsDone:    j.Progress.DocumentsDone,
			DocumentsSkipped: skipped,
			Errors:           errs,
		},
		Output:    j.output,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
