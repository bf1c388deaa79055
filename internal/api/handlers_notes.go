package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pagewise/internal/session"
)

type noteView struct {
	Position int    `json:"position"` // 1-based
	Text     string `json:"text"`
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	all := s.sessions.Snapshot().Notes.All()
	out := make([]noteView, len(all))
	for i, n := range all {
		out[i] = noteView{Position: i + 1, Text: n}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": out, "count": len(out)})
}

type highlightRequest struct {
	Text *string `json:"text"` // replaces the current selection when set
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var req highlightRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	var cmds []session.Command
	if req.Text != nil {
		cmds = append(cmds, session.SelectText{Text: *req.Text})
	}
	s.run(w, r, append(cmds, session.SaveHighlight{})...)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		jsonError(w, "position must be a number", http.StatusBadRequest)
		return
	}
	s.run(w, r, session.DeleteNote{Position: pos - 1})
}

func (s *Server) handleExportNotes(w http.ResponseWriter, r *http.Request) {
	_, effects, err := s.sessions.Do(r.Context(), session.ExportNotes{})
	if err != nil {
		commandError(w, err)
		return
	}
	for _, e := range effects {
		if e.Kind != session.EffectDownload || e.Download == nil {
			continue
		}
		w.Header().Set("Content-Type", e.Download.MIMEType+"; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", e.Download.Filename))
		w.Write([]byte(e.Download.Body))
		return
	}
	jsonError(w, "export produced no download", http.StatusInternalServerError)
}
