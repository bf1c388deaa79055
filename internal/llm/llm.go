// Package llm is the text-generation collaborator used for answering and
// normalization. Every provider is reached through Backend.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Role tags a message in a request.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry of a request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a single-message request.
func UserMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

// Backend sends messages to the named model and returns the completion text.
// Implementations sample deterministically (temperature 0).
type Backend interface {
	Invoke(ctx context.Context, model string, messages []Message) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, model string, messages []Message) (string, error)

func (f BackendFunc) Invoke(ctx context.Context, model string, messages []Message) (string, error) {
	return f(ctx, model, messages)
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRateLimited reports whether err is a rate-limit-class failure: either a
// RetryableError carrying HTTP 429 or any error whose text mentions 429.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var retryErr *RetryableError
	if errors.As(err, &retryErr) && retryErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return strings.Contains(err.Error(), "429")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// WithTimeout bounds every call made through next. A non-positive d returns
// next unchanged.
func WithTimeout(next Backend, d time.Duration) Backend {
	if d <= 0 {
		return next
	}
	return BackendFunc(func(ctx context.Context, model string, messages []Message) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next.Invoke(ctx, model, messages)
	})
}
