package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/doctriage/internal/nlp"
)

type backendStatsResponse struct {
	Name  string            `json:"name"`
	Model string            `json:"model"`
	Stats nlp.StatsSnapshot `json:"stats"`
}

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	var out []backendStatsResponse
	for _, b := range s.backends {
		if b.Stats == nil {
			continue
		}
		out = append(out, backendStatsResponse{Name: b.Name, Model: b.Model, Stats: b.Stats.Snapshot()})
	}
	if len(out) == 0 {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"backends": out})
}
