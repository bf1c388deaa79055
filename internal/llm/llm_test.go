package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagewise/internal/metrics"
)

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed 429", &RetryableError{StatusCode: 429, Message: "slow down"}, true},
		{"typed 503", &RetryableError{StatusCode: 503, Message: "overloaded"}, false},
		{"wrapped typed 429", fmt.Errorf("generate: %w", &RetryableError{StatusCode: 429}), true},
		{"text 429", errors.New("googleapi: Error 429: Resource has been exhausted"), true},
		{"other", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimited(tt.err))
		})
	}
}

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *AnthropicClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewAnthropicClient("test-key", 1024, 5*time.Second)
	c.endpoint = srv.URL
	return c
}

func TestAnthropicClient_Invoke(t *testing.T) {
	var got anthropicRequest
	c := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{"content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}]}`))
	})

	out, err := c.Invoke(context.Background(), "claude-test", []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, 1024, got.MaxTokens)
	assert.Equal(t, 0.0, got.Temperature)
	assert.Equal(t, "be brief", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestAnthropicClient_RateLimitIsRetryable(t *testing.T) {
	c := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	_, err := c.Invoke(context.Background(), "m", UserMessage("hi"))
	require.Error(t, err)
	var retryErr *RetryableError
	require.True(t, errors.As(err, &retryErr))
	assert.Equal(t, http.StatusTooManyRequests, retryErr.StatusCode)
	assert.True(t, IsRateLimited(err))
}

func TestAnthropicClient_ClientErrorNotRetryable(t *testing.T) {
	c := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad"}}`))
	})

	_, err := c.Invoke(context.Background(), "m", UserMessage("hi"))
	require.Error(t, err)
	var retryErr *RetryableError
	assert.False(t, errors.As(err, &retryErr))
	assert.Contains(t, err.Error(), "status 400")
}

func TestAnthropicClient_EmptyContent(t *testing.T) {
	c := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	})
	_, err := c.Invoke(context.Background(), "m", UserMessage("hi"))
	assert.ErrorContains(t, err, "empty response")
}

func TestInstrumented_RecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	stats := NewStats(time.Hour)

	calls := 0
	backend := NewInstrumented(BackendFunc(func(ctx context.Context, model string, msgs []Message) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("boom")
		}
		return "ok", nil
	}), stats, m, nil)

	out, err := backend.Invoke(context.Background(), "compact", UserMessage("q"))
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	_, err = backend.Invoke(context.Background(), "compact", UserMessage("q"))
	require.Error(t, err)

	snap := stats.Snapshot()
	assert.Equal(t, 2, snap.Count)
	assert.Equal(t, 1, snap.Failures)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("compact", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("compact", "error")))
}

func TestWithTimeout(t *testing.T) {
	slow := BackendFunc(func(ctx context.Context, model string, msgs []Message) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, err := WithTimeout(slow, 10*time.Millisecond).Invoke(context.Background(), "m", UserMessage("q"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	fast := BackendFunc(func(ctx context.Context, model string, msgs []Message) (string, error) {
		return "done", nil
	})
	out, err := WithTimeout(fast, 0).Invoke(context.Background(), "m", UserMessage("q"))
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}
