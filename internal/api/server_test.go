package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagewise/internal/config"
	"github.com/dgallion1/pagewise/internal/document"
	"github.com/dgallion1/pagewise/internal/ingest"
	"github.com/dgallion1/pagewise/internal/llm"
	"github.com/dgallion1/pagewise/internal/metrics"
	"github.com/dgallion1/pagewise/internal/pipeline"
	"github.com/dgallion1/pagewise/internal/qa"
	"github.com/dgallion1/pagewise/internal/session"
)

type stubIngester struct{}

func (stubIngester) Ingest(ctx context.Context, name string, data []byte, opts ingest.Options) (*document.Document, error) {
	if bytes.Contains(data, []byte("broken")) {
		return nil, ingest.ErrNoPages
	}
	return &document.Document{Name: name, Pages: []*document.Page{
		{Index: 0, Text: "uploaded page", RawText: "uploaded page"},
	}}, nil
}

type stubAnswerer struct {
	result   qa.Result
	contexts []string
}

func (a *stubAnswerer) Answer(ctx context.Context, contextText, question string) qa.Result {
	a.contexts = append(a.contexts, contextText)
	return a.result
}

type testEnv struct {
	srv      *Server
	sessions *session.Manager
	answers  *stubAnswerer
	reg      *prometheus.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		LLMProvider:    config.ProviderOllama,
		MaxUploadBytes: 1 << 20,
		MaxQueueSize:   4,
		WorkerCount:    1,
		JobTTL:         time.Hour,
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	answers := &stubAnswerer{result: qa.Success("**42**", "compact")}
	mgr := session.NewManager(session.NewDispatcher(answers, m, log))
	sink := pipeline.SinkFunc(func(ctx context.Context, doc *document.Document) error {
		_, _, err := mgr.Do(ctx, session.LoadDocument{Doc: doc})
		return err
	})
	orch := pipeline.NewOrchestrator(cfg, stubIngester{}, sink, m, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	stats := llm.NewStats(time.Hour)
	stats.Record("compact", 120, false)

	return &testEnv{
		srv:      NewServer(orch, mgr, stats, reg, log, cfg),
		sessions: mgr,
		answers:  answers,
		reg:      reg,
	}
}

func (e *testEnv) load(t *testing.T, texts ...string) {
	t.Helper()
	doc := &document.Document{Name: "paper.pdf"}
	for i, text := range texts {
		doc.Pages = append(doc.Pages, &document.Page{Index: i, Text: text, RawText: "raw " + text})
	}
	doc.Pages[0].Image = []byte("\x89PNG fake")
	doc.Pages[0].Normalized = true
	_, _, err := e.sessions.Do(context.Background(), session.LoadDocument{Doc: doc})
	require.NoError(t, err)
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func upload(t *testing.T, e *testEnv, filename string, content []byte, normalize string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	if normalize != "" {
		require.NoError(t, mw.WriteField("normalize", normalize))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/document", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUpload_Validation(t *testing.T) {
	e := newTestEnv(t)

	rec := upload(t, e, "notes.txt", []byte("%PDF-1.4"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file type")

	rec = upload(t, e, "fake.pdf", []byte("hello"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not a PDF")

	rec = upload(t, e, "a.pdf", []byte("%PDF-1.4"), "maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/document", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func pollJob(t *testing.T, e *testEnv, jobID string) pipeline.JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := e.do(t, http.MethodGet, "/api/ingest/"+jobID+"/status", "")
		require.Equal(t, http.StatusOK, rec.Code)
		snap := decode[pipeline.JobSnapshot](t, rec)
		if snap.Status.Terminal() || time.Now().After(deadline) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUpload_JobLoadsDocument(t *testing.T) {
	e := newTestEnv(t)

	rec := upload(t, e, "../../etc/Paper.PDF", []byte("%PDF-1.4 body"), "true")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	jobID := resp["job_id"].(string)
	assert.Equal(t, "/api/ingest/"+jobID+"/status", resp["poll_url"])
	assert.Equal(t, true, resp["normalize"])

	snap := pollJob(t, e, jobID)
	assert.Equal(t, pipeline.StatusCompleted, snap.Status)
	assert.Equal(t, "Paper.PDF", snap.Filename)

	rec = e.do(t, http.MethodGet, "/api/document", "")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[map[string]any](t, rec)
	assert.Equal(t, "Paper.PDF", doc["file_name"])
	assert.Equal(t, float64(1), doc["page_count"])
}

func TestUpload_FailedJob(t *testing.T) {
	e := newTestEnv(t)
	rec := upload(t, e, "b.pdf", []byte("%PDF-1.4 broken"), "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := decode[map[string]any](t, rec)["job_id"].(string)

	snap := pollJob(t, e, jobID)
	assert.Equal(t, pipeline.StatusFailed, snap.Status)
	assert.Equal(t, []string{"the PDF has no pages"}, snap.Progress.Errors)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/document", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/ingest/nope/status", "").Code)
}

func TestPageText(t *testing.T) {
	e := newTestEnv(t)
	e.load(t, "# Intro\n\nHello *world*", "second")

	rec := e.do(t, http.MethodGet, "/api/document/pages/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "markdown", body["format"])
	assert.Equal(t, "# Intro\n\nHello *world*", body["content"])
	assert.NotNil(t, body["outline"])

	body = decode[map[string]any](t, e.do(t, http.MethodGet, "/api/document/pages/1?format=html", ""))
	assert.Contains(t, body["content"], "<h1>Intro</h1>")

	body = decode[map[string]any](t, e.do(t, http.MethodGet, "/api/document/pages/1?format=text", ""))
	assert.Equal(t, "Intro\n\nHello world", body["content"])

	body = decode[map[string]any](t, e.do(t, http.MethodGet, "/api/document/pages/2?format=raw", ""))
	assert.Equal(t, "raw second", body["content"])
	_, hasOutline := body["outline"]
	assert.False(t, hasOutline)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/document/pages/1?format=pdf", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/document/pages/3", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/document/pages/two", "").Code)
}

func TestPageImage(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/document/pages/1/image", "").Code)

	e.load(t, "a", "b")
	rec := e.do(t, http.MethodGet, "/api/document/pages/1/image", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG fake", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/document/pages/2/image", "").Code)
}

func TestNavigation(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/api/session/page", `{"page":1}`).Code)

	e.load(t, "a", "b", "c")

	resp := decode[commandResponse](t, e.do(t, http.MethodPost, "/api/session/page", `{"page":2}`))
	assert.Equal(t, 2, resp.State.Page)

	resp = decode[commandResponse](t, e.do(t, http.MethodPost, "/api/session/page", `{"to":"last"}`))
	assert.Equal(t, 3, resp.State.Page)

	resp = decode[commandResponse](t, e.do(t, http.MethodPost, "/api/session/page", `{"to":"first"}`))
	assert.Equal(t, 1, resp.State.Page)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/api/session/page", `{"page":4}`).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/session/page", `{"to":"middle"}`).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/session/page", `{`).Code)
}

func TestAskSaveAndExport(t *testing.T) {
	e := newTestEnv(t)
	e.load(t, "alpha", "beta", "gamma")

	rec := e.do(t, http.MethodPost, "/api/ask", `{"question":"what?","selection":"@3,1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[commandResponse](t, rec)
	assert.True(t, resp.State.DialogOpen)
	assert.Equal(t, "**42**", resp.State.AnswerText)
	require.Len(t, resp.Effects, 1)
	assert.Equal(t, session.EffectOpenDialog, resp.Effects[0].Kind)
	assert.Equal(t, []string{"gamma\n\nalpha"}, e.answers.contexts)

	rec = e.do(t, http.MethodPost, "/api/answer/save", `{"text":"edited answer"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decode[commandResponse](t, rec)
	assert.False(t, resp.State.DialogOpen)
	assert.Equal(t, 1, resp.State.NoteCount)

	rec = e.do(t, http.MethodPost, "/api/notes/highlight", `{"text":"a quote"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	list := decode[struct {
		Notes []noteView `json:"notes"`
		Count int        `json:"count"`
	}](t, e.do(t, http.MethodGet, "/api/notes", ""))
	require.Equal(t, 2, list.Count)
	assert.Equal(t, "AI Query (Pages 3,1)\nQuery: what?\n\n---\n\nedited answer\n\n===", list.Notes[0].Text)
	assert.Equal(t, "Highlight from Page 1\n\n---\n\na quote\n\n===", list.Notes[1].Text)
	assert.Equal(t, 2, list.Notes[1].Position)

	rec = e.do(t, http.MethodGet, "/api/notes/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="paper_pdf_notes.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, list.Notes[0].Text+"\n\n---\n\n"+list.Notes[1].Text, rec.Body.String())

	rec = e.do(t, http.MethodDelete, "/api/notes/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[commandResponse](t, rec).State.NoteCount)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/api/notes/5", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodDelete, "/api/notes/x", "").Code)
}

func TestAsk_BadSelectionIsNotSent(t *testing.T) {
	e := newTestEnv(t)
	e.load(t, "only")

	rec := e.do(t, http.MethodPost, "/api/ask", `{"question":"q","selection":"@2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[commandResponse](t, rec)
	assert.Empty(t, e.answers.contexts)
	require.Len(t, resp.Effects, 1)
	assert.Equal(t, session.EffectError, resp.Effects[0].Kind)
	assert.True(t, strings.HasPrefix(resp.State.AnswerText, "Error: Invalid request."))
	assert.False(t, resp.State.DialogOpen)

	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/api/answer/save", "").Code)
}

func TestAsk_BackendErrorCannotBeSaved(t *testing.T) {
	e := newTestEnv(t)
	e.answers.result = qa.BackendError("quota exceeded", "compact")
	e.load(t, "only")

	resp := decode[commandResponse](t, e.do(t, http.MethodPost, "/api/ask", `{"question":"q"}`))
	assert.Equal(t, qa.KindBackendError, resp.State.Answer.Kind)
	assert.True(t, resp.State.DialogOpen)

	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/api/answer/save", `{"text":"x"}`).Code)

	resp = decode[commandResponse](t, e.do(t, http.MethodPost, "/api/answer/dismiss", ""))
	assert.False(t, resp.State.DialogOpen)
}

func TestSelectionAndSession(t *testing.T) {
	e := newTestEnv(t)
	e.load(t, "a")

	rec := e.do(t, http.MethodPut, "/api/session/selection", `{"selection":"@1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decode[stateView](t, e.do(t, http.MethodGet, "/api/session", ""))
	assert.Equal(t, "@1", view.Selection)
	assert.Equal(t, "paper.pdf", view.FileName)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/notes/highlight", `{"text":""}`).Code)
}

func TestStatsMetricsAndGuide(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/stats/llm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ollama", body["provider"])
	assert.Contains(t, body["by_model"], "compact")

	e.load(t, "a")
	e.do(t, http.MethodPost, "/api/ask", `{"question":"q"}`)
	rec = e.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pagewise_answers_total{kind="success"} 1`)

	rec = e.do(t, http.MethodGet, "/api/guide", "")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "@1,3-5")

	rec = e.do(t, http.MethodGet, "/api/guide?format=html", "")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<ol>")
}

func TestStatsUnavailable(t *testing.T) {
	e := newTestEnv(t)
	e.srv.stats = nil
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodGet, "/api/stats/llm", "").Code)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"paper.pdf":           "paper.pdf",
		"../../etc/x.pdf":     "x.pdf",
		`C:\Users\me\doc.pdf`: "doc.pdf",
		"":                    "unnamed.pdf",
		"a..b.pdf":            "a_b.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), "input %q", in)
	}
}
