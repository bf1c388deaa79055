// Package qa answers questions about a context blob with an LLM backend.
package qa

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dgallion1/pagewise/internal/llm"
	"github.com/dgallion1/pagewise/internal/prompt"
)

// DefaultWordThreshold is the context size, in whitespace-separated words, at
// which questions move to the long-context model.
const DefaultWordThreshold = 20000

// ErrorPrefix marks failed results when rendered as text.
const ErrorPrefix = "Error: "

// Kind classifies a Result.
type Kind string

const (
	KindSuccess         Kind = "success"
	KindBackendError    Kind = "backend_error"
	KindValidationError Kind = "validation_error"
)

// Result is the outcome of a question.
type Result struct {
	Kind   Kind   `json:"kind"`
	Text   string `json:"text,omitempty"`   // Answer, for KindSuccess
	Detail string `json:"detail,omitempty"` // Failure detail otherwise
	Model  string `json:"model,omitempty"`
}

func Success(text, model string) Result {
	return Result{Kind: KindSuccess, Text: text, Model: model}
}

func BackendError(detail, model string) Result {
	return Result{Kind: KindBackendError, Detail: detail, Model: model}
}

func ValidationError(detail string) Result {
	return Result{Kind: KindValidationError, Detail: detail}
}

// OK reports whether the result holds an answer.
func (r Result) OK() bool {
	return r.Kind == KindSuccess
}

// String renders the answer, or the failure with ErrorPrefix.
func (r Result) String() string {
	switch r.Kind {
	case KindSuccess:
		return r.Text
	case KindValidationError:
		return ErrorPrefix + "Invalid request. Details: " + r.Detail
	case KindBackendError:
		return ErrorPrefix + "An unexpected error occurred. Details: " + r.Detail
	}
	return ""
}

// Models maps context size onto model names.
type Models struct {
	Compact       string // Contexts below WordThreshold
	LongContext   string // Everything else
	WordThreshold int
}

// Service answers questions. It never retries.
type Service struct {
	backend llm.Backend
	models  Models
	log     *slog.Logger
}

func NewService(backend llm.Backend, models Models, log *slog.Logger) *Service {
	if models.WordThreshold <= 0 {
		models.WordThreshold = DefaultWordThreshold
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{backend: backend, models: models, log: log}
}

// SelectModel picks the model for a context by its word count.
func (s *Service) SelectModel(contextText string) string {
	if CountWords(contextText) < s.models.WordThreshold {
		return s.models.Compact
	}
	return s.models.LongContext
}

// Answer sends the context and question to the backend in a single call.
func (s *Service) Answer(ctx context.Context, contextText, question string) Result {
	if strings.TrimSpace(question) == "" {
		return ValidationError("question is empty")
	}

	model := s.SelectModel(contextText)
	log := s.log.With("model", model, "context_words", CountWords(contextText))

	out, err := s.backend.Invoke(ctx, model, llm.UserMessage(prompt.BuildAnswerPrompt(contextText, question)))
	if err != nil {
		log.Error("answer failed", "error", err)
		return BackendError(err.Error(), model)
	}
	log.Info("answer received", "chars", len(out))
	return Success(out, model)
}

// CountWords counts whitespace-delimited words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
