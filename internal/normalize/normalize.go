// Package normalize rewrites raw extracted page text as markdown. It is best
// effort: every failure ends with the original text.
package normalize

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgallion1/pagewise/internal/llm"
	"github.com/dgallion1/pagewise/internal/metrics"
	"github.com/dgallion1/pagewise/internal/prompt"
)

// ErrNoMarkdownBlock means the response lacked a ```markdown fenced block.
var ErrNoMarkdownBlock = errors.New("response has no markdown code block")

var markdownBlockRe = regexp.MustCompile("(?s)```markdown\n(.*?)\n```")

// ExtractMarkdown returns the body of the first ```markdown fenced block.
func ExtractMarkdown(response string) (string, error) {
	m := markdownBlockRe.FindStringSubmatch(response)
	if len(m) < 2 {
		return "", ErrNoMarkdownBlock
	}
	return m[1], nil
}

// Config controls the normalizer.
type Config struct {
	Model       string
	MaxAttempts int           // Total backend calls per page
	RetryDelay  time.Duration // Wait after a rate-limited attempt
	RateLimit   float64       // Backend calls per second across pages, 0 = unpaced
}

// Outcome describes one page's normalization.
type Outcome struct {
	Text       string
	Normalized bool // false when Text is the original input
	Attempts   int
}

// Normalizer calls the backend with bounded retry.
type Normalizer struct {
	backend llm.Backend
	cfg     Config
	sleep   SleepFunc
	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     *slog.Logger
}

// Option customises a Normalizer.
type Option func(*Normalizer)

// WithSleep replaces the wall-clock sleep between retries.
func WithSleep(fn SleepFunc) Option {
	return func(n *Normalizer) { n.sleep = fn }
}

// WithMetrics records attempts and fallbacks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Normalizer) { n.metrics = m }
}

func New(backend llm.Backend, cfg Config, log *slog.Logger, opts ...Option) *Normalizer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if log == nil {
		log = slog.Default()
	}
	n := &Normalizer{
		backend: backend,
		cfg:     cfg,
		sleep:   Sleep,
		log:     log,
	}
	if cfg.RateLimit > 0 {
		n.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeText returns the markdown rewrite of raw, or raw itself.
func (n *Normalizer) NormalizeText(ctx context.Context, raw string) string {
	return n.Normalize(ctx, raw).Text
}

// Normalize makes up to MaxAttempts backend calls. Rate-limited attempts wait
// RetryDelay before the next one; other failures retry at once.
func (n *Normalizer) Normalize(ctx context.Context, raw string) Outcome {
	messages := llm.UserMessage(prompt.BuildReformatPrompt(raw))

	attempts := 0
	for attempts < n.cfg.MaxAttempts {
		if n.limiter != nil {
			if err := n.limiter.Wait(ctx); err != nil {
				n.log.Warn("normalize pacing interrupted", "error", err)
				break
			}
		}
		attempts++

		resp, err := n.backend.Invoke(ctx, n.cfg.Model, messages)
		if err == nil {
			var md string
			md, err = ExtractMarkdown(resp)
			if err == nil {
				n.countAttempt("ok")
				return Outcome{Text: md, Normalized: true, Attempts: attempts}
			}
		}

		if llm.IsRateLimited(err) {
			n.countAttempt("rate_limited")
			n.log.Warn("rate limited during normalization", "attempt", attempts, "retry_in", n.cfg.RetryDelay)
			if attempts < n.cfg.MaxAttempts {
				if serr := n.sleep(ctx, n.cfg.RetryDelay); serr != nil {
					break
				}
			}
			continue
		}

		n.countAttempt("failed")
		n.log.Warn("normalization attempt failed", "attempt", attempts, "error", err)
		if ctx.Err() != nil {
			break
		}
	}

	n.log.Warn("normalization gave up, keeping raw text", "attempts", attempts)
	if n.metrics != nil {
		n.metrics.NormalizeFallbackTotal.Inc()
	}
	return Outcome{Text: raw, Normalized: false, Attempts: attempts}
}

func (n *Normalizer) countAttempt(result string) {
	if n.metrics != nil {
		n.metrics.NormalizeAttemptsTotal.WithLabelValues(result).Inc()
	}
}
