package api

import (
	"net/http"

	"github.com/dgallion1/pagewise/internal/prompt"
	"github.com/dgallion1/pagewise/internal/render"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider":     s.cfg.LLMProvider,
		"stats":        s.stats.Snapshot(),
		"by_model":     s.stats.ByModel(),
		"queue_depth":  s.orchestrator.QueueDepth(),
		"compact":      s.cfg.CompactModel,
		"long_context": s.cfg.LongContextModel,
	})
}

// handleGuide serves the user guide as markdown, or as HTML with ?format=html.
func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "html" {
		out, err := render.HTML(prompt.UserGuide)
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(out))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(prompt.UserGuide))
}
