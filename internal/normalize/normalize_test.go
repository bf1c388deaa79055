package normalize

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagewise/internal/llm"
	"github.com/dgallion1/pagewise/internal/metrics"
)

// scriptedBackend replays replies in order, repeating the last one.
type scriptedBackend struct {
	mu      sync.Mutex
	replies []reply
	calls   int
	models  []string
}

type reply struct {
	text string
	err  error
}

func (b *scriptedBackend) Invoke(ctx context.Context, model string, messages []llm.Message) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.calls
	if i >= len(b.replies) {
		i = len(b.replies) - 1
	}
	b.calls++
	b.models = append(b.models, model)
	return b.replies[i].text, b.replies[i].err
}

type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

var errRateLimited = errors.New("googleapi: Error 429: Resource has been exhausted")

func newTestNormalizer(b llm.Backend, s *recordingSleep, opts ...Option) *Normalizer {
	opts = append(opts, WithSleep(s.sleep))
	return New(b, Config{Model: "reformat", MaxAttempts: 3, RetryDelay: 10 * time.Second}, nil, opts...)
}

func TestExtractMarkdown(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"simple", "```markdown\n# Title\n```", "# Title", false},
		{"surrounding chatter", "Sure!\n```markdown\n- a\n- b\n```\nDone.", "- a\n- b", false},
		{"first block wins", "```markdown\none\n```\n```markdown\ntwo\n```", "one", false},
		{"multiline body", "```markdown\nline 1\n\nline 2\n```", "line 1\n\nline 2", false},
		{"no fence", "# Title", "", true},
		{"wrong label", "```md\n# Title\n```", "", true},
		{"unterminated", "```markdown\n# Title", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractMarkdown(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoMarkdownBlock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_SuccessFirstAttempt(t *testing.T) {
	b := &scriptedBackend{replies: []reply{{text: "```markdown\n# Page\n```"}}}
	s := &recordingSleep{}
	out := newTestNormalizer(b, s).Normalize(context.Background(), "Page")

	assert.Equal(t, Outcome{Text: "# Page", Normalized: true, Attempts: 1}, out)
	assert.Empty(t, s.delays)
	assert.Equal(t, []string{"reformat"}, b.models)
}

func TestNormalize_RateLimitedTwiceThenSucceeds(t *testing.T) {
	b := &scriptedBackend{replies: []reply{
		{err: errRateLimited},
		{err: errRateLimited},
		{text: "```markdown\nclean text\n```"},
	}}
	s := &recordingSleep{}
	out := newTestNormalizer(b, s).Normalize(context.Background(), "raw text")

	assert.Equal(t, "clean text", out.Text)
	assert.True(t, out.Normalized)
	assert.Equal(t, 3, b.calls)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, s.delays)
}

func TestNormalize_TypedRateLimitError(t *testing.T) {
	b := &scriptedBackend{replies: []reply{
		{err: &llm.RetryableError{StatusCode: 429, Message: "slow down"}},
		{text: "```markdown\nok\n```"},
	}}
	s := &recordingSleep{}
	out := newTestNormalizer(b, s).Normalize(context.Background(), "raw")

	assert.Equal(t, "ok", out.Text)
	assert.Len(t, s.delays, 1)
}

func TestNormalize_AlwaysFailingFallsBackToInput(t *testing.T) {
	b := &scriptedBackend{replies: []reply{{err: errors.New("connection refused")}}}
	s := &recordingSleep{}
	out := newTestNormalizer(b, s).Normalize(context.Background(), "original text")

	assert.Equal(t, "original text", out.Text)
	assert.False(t, out.Normalized)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, b.calls)
	assert.Empty(t, s.delays, "non-rate-limit failures retry without delay")
}

func TestNormalize_AlwaysRateLimited(t *testing.T) {
	b := &scriptedBackend{replies: []reply{{err: errRateLimited}}}
	s := &recordingSleep{}
	out := newTestNormalizer(b, s).Normalize(context.Background(), "original text")

	assert.Equal(t, "original text", out.Text)
	assert.Equal(t, 3, b.calls)
	assert.Len(t, s.delays, 2, "no wait after the final attempt")
}

func TestNormalize_MissingFenceFallsBack(t *testing.T) {
	b := &scriptedBackend{replies: []reply{{text: "# not fenced"}}}
	s := &recordingSleep{}
	out := newTestNormalizer(b, s).Normalize(context.Background(), "raw")

	assert.Equal(t, "raw", out.Text)
	assert.False(t, out.Normalized)
	assert.Equal(t, 3, b.calls)
}

func TestNormalize_MissingFenceThenFenced(t *testing.T) {
	b := &scriptedBackend{replies: []reply{
		{text: "# not fenced"},
		{text: "```markdown\n# fenced\n```"},
	}}
	out := newTestNormalizer(b, &recordingSleep{}).Normalize(context.Background(), "raw")
	assert.Equal(t, "# fenced", out.Text)
	assert.Equal(t, 2, out.Attempts)
}

func TestNormalize_CancelledSleepStopsRetrying(t *testing.T) {
	b := &scriptedBackend{replies: []reply{{err: errRateLimited}}}
	n := New(b, Config{Model: "m", MaxAttempts: 3, RetryDelay: time.Hour}, nil,
		WithSleep(func(ctx context.Context, d time.Duration) error { return context.Canceled }))

	out := n.Normalize(context.Background(), "raw")
	assert.Equal(t, "raw", out.Text)
	assert.Equal(t, 1, b.calls)
}

func TestNormalize_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	b := &scriptedBackend{replies: []reply{{err: errRateLimited}, {err: errors.New("boom")}, {text: "nope"}}}
	out := newTestNormalizer(b, &recordingSleep{}, WithMetrics(m)).Normalize(context.Background(), "raw")

	assert.False(t, out.Normalized)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NormalizeAttemptsTotal.WithLabelValues("rate_limited")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NormalizeAttemptsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NormalizeFallbackTotal))
}

func TestSleep_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
