package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dgallion1/doctriage/internal/descriptor"
	"github.com/dgallion1/doctriage/internal/parser"
	"github.com/dgallion1/doctriage/internal/pipeline"
	"github.com/dgallion1/doctriage/internal/source"
)

const maxDescriptorBytes = 1 << 20

var errTooLarge = errors.New("upload too large")

// handleTriage accepts a descriptor plus the documents it names and queues
// a triage job. Listed documents that were not uploaded are reported as
// missing in the result, the same as in a batch run.
func (s *Server) handleTriage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	raw, err := descriptorField(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	desc, err := descriptor.Parse(raw)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, name := range desc.Filenames() {
		if sanitizeFilename(name) != name {
			jsonError(w, fmt.Sprintf("document %q: filename must not contain a path", name), http.StatusBadRequest)
			return
		}
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	req := pipeline.Request{Query: desc.Query(), Documents: desc.Filenames()}
	job := pipeline.NewJob(uuid.NewString(), req, source.NewMemory(parser.Options{
		PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext,
	}))

	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
			return
		}
		data, err := readPart(fh, s.cfg.MaxUploadBytes)
		if err != nil {
			code := http.StatusBadRequest
			if errors.Is(err, errTooLarge) {
				code = http.StatusRequestEntityTooLarge
			}
			jsonError(w, fmt.Sprintf("%s: %s", filename, err), code)
			return
		}
		job.AddFile(filename, data)
	}

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Info("triage job queued", "job_id", job.ID, "documents", len(req.Documents), "files", len(files))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/triage/%s", job.ID),
	})
}

func (s *Server) handleTriageStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

// handleTriageOutput serves the finished result exactly as a batch run
// writes output.json.
func (s *Server) handleTriageOutput(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	out := job.Output()
	if out == nil {
		jsonError(w, "job has no output yet", http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := pipeline.EncodeOutput(w, out); err != nil {
		s.log.Error("write output", "job_id", job.ID, "error", err)
	}
}

// descriptorField reads the descriptor from a form value or a file part.
func descriptorField(r *http.Request) ([]byte, error) {
	if v := r.FormValue("descriptor"); v != "" {
		return []byte(v), nil
	}
	fhs := r.MultipartForm.File["descriptor"]
	if len(fhs) == 0 {
		return nil, errors.New("descriptor is required")
	}
	return readPart(fhs[0], maxDescriptorBytes)
}

func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: max %d bytes", errTooLarge, limit)
	}
	return data, nil
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// sanitizeFilename reduces an upload name to a plain file name. Uploads
// are stored flat, so descriptor entries must already be in this form.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "unnamed"
	}
	return name
}
