package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pagewise/internal/document"
	"github.com/dgallion1/pagewise/internal/notes"
	"github.com/dgallion1/pagewise/internal/qa"
	"github.com/dgallion1/pagewise/internal/render"
	"github.com/dgallion1/pagewise/internal/session"
)

// stateView is the JSON shape of a session. Pages are 1-based.
type stateView struct {
	FileName   string     `json:"file_name"`
	PageCount  int        `json:"page_count"`
	Page       int        `json:"page"`
	Selection  string     `json:"selection"`
	Question   string     `json:"question,omitempty"`
	Answer     *qa.Result `json:"answer,omitempty"`
	AnswerText string     `json:"answer_text,omitempty"`
	DialogOpen bool       `json:"dialog_open"`
	NoteCount  int        `json:"note_count"`
}

func viewOf(st session.State) stateView {
	v := stateView{
		FileName:   st.FileName,
		PageCount:  st.PageCount(),
		Selection:  st.Selection,
		Question:   st.Question,
		Answer:     st.Answer,
		DialogOpen: st.DialogOpen,
		NoteCount:  st.Notes.Len(),
	}
	if st.HasDocument() {
		v.Page = st.Page + 1
	}
	if st.Answer != nil {
		v.AnswerText = st.Answer.String()
	}
	return v
}

type commandResponse struct {
	State   stateView        `json:"state"`
	Effects []session.Effect `json:"effects"`
}

// run applies commands in order and writes the final state with every
// effect produced. The first failing command stops the run.
func (s *Server) run(w http.ResponseWriter, r *http.Request, cmds ...session.Command) {
	var (
		st      session.State
		effects = []session.Effect{}
	)
	for _, cmd := range cmds {
		next, eff, err := s.sessions.Do(r.Context(), cmd)
		if err != nil {
			commandError(w, err)
			return
		}
		st = next
		effects = append(effects, eff...)
	}
	writeJSON(w, http.StatusOK, commandResponse{State: viewOf(st), Effects: effects})
}

func commandError(w http.ResponseWriter, err error) {
	code := http.StatusBadRequest
	switch {
	case errors.Is(err, session.ErrNoDocument),
		errors.Is(err, session.ErrNoAnswer),
		errors.Is(err, session.ErrAnswerNotSaved):
		code = http.StatusConflict
	case errors.Is(err, session.ErrPageRange),
		errors.Is(err, notes.ErrPosition):
		code = http.StatusNotFound
	}
	jsonError(w, err.Error(), code)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(s.sessions.Snapshot()))
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	st := s.sessions.Snapshot()
	if !st.HasDocument() {
		jsonError(w, session.ErrNoDocument.Error(), http.StatusNotFound)
		return
	}
	pages := make([]map[string]any, 0, st.PageCount())
	for _, p := range st.Doc.Pages {
		pages = append(pages, map[string]any{
			"page":       p.Number(),
			"words":      qa.CountWords(p.Text),
			"normalized": p.Normalized,
			"has_image":  p.Image != nil,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_name":    st.FileName,
		"page_count":   st.PageCount(),
		"current_page": st.Page + 1,
		"pages":        pages,
	})
}

// handlePageText returns one page's text. format is "markdown" (default, the
// text as stored), "raw" (as extracted), "html" or "text".
func (s *Server) handlePageText(w http.ResponseWriter, r *http.Request) {
	st := s.sessions.Snapshot()
	page, ok := pageParam(w, r, st)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	var (
		content string
		err     error
	)
	switch format {
	case "", "markdown":
		format, content = "markdown", page.Text
	case "raw":
		content = page.RawText
	case "html":
		content, err = render.HTML(page.Text)
	case "text":
		content, err = render.PlainText(page.Text)
	default:
		jsonError(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"page":       page.Number(),
		"page_count": st.PageCount(),
		"normalized": page.Normalized,
		"format":     format,
		"content":    content,
	}
	if page.Normalized {
		resp["outline"] = render.Outline(page.Text)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePageImage(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(w, r, s.sessions.Snapshot())
	if !ok {
		return
	}
	if page.Image == nil {
		jsonError(w, "page was not rendered", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(page.Image)))
	w.Write(page.Image)
}

func pageParam(w http.ResponseWriter, r *http.Request, st session.State) (*document.Page, bool) {
	if !st.HasDocument() {
		jsonError(w, session.ErrNoDocument.Error(), http.StatusNotFound)
		return nil, false
	}
	n, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		jsonError(w, "page must be a number", http.StatusBadRequest)
		return nil, false
	}
	p, err := st.Doc.Page(n)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return p, true
}

type goToPageRequest struct {
	Page int    `json:"page"`
	To   string `json:"to"` // "first" or "last"
}

func (s *Server) handleGoToPage(w http.ResponseWriter, r *http.Request) {
	var req goToPageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var cmd session.Command
	switch req.To {
	case "":
		cmd = session.GoToPage{Page: req.Page}
	case "first":
		cmd = session.FirstPage{}
	case "last":
		cmd = session.LastPage{}
	default:
		jsonError(w, `to must be "first" or "last"`, http.StatusBadRequest)
		return
	}
	s.run(w, r, cmd)
}

type selectRequest struct {
	Selection string `json:"selection"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.run(w, r, session.SelectText{Text: req.Selection})
}

type askRequest struct {
	Question  string  `json:"question"`
	Selection *string `json:"selection"` // replaces the current selection when set
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var cmds []session.Command
	if req.Selection != nil {
		cmds = append(cmds, session.SelectText{Text: *req.Selection})
	}
	s.run(w, r, append(cmds, session.Ask{Question: req.Question})...)
}

type saveAnswerRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	var req saveAnswerRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	s.run(w, r, session.SaveAnswer{Text: req.Text})
}

func (s *Server) handleDismissAnswer(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, session.CloseDialog{})
}
