package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgallion1/pagewise/internal/metrics"
)

// Instrumented records latency and outcome of every call made through next.
type Instrumented struct {
	next    Backend
	stats   *Stats
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewInstrumented wraps next. stats and m may be nil.
func NewInstrumented(next Backend, stats *Stats, m *metrics.Metrics, log *slog.Logger) *Instrumented {
	if log == nil {
		log = slog.Default()
	}
	return &Instrumented{next: next, stats: stats, metrics: m, log: log}
}

func (b *Instrumented) Invoke(ctx context.Context, model string, messages []Message) (string, error) {
	start := time.Now()
	out, err := b.next.Invoke(ctx, model, messages)
	elapsed := time.Since(start)

	if b.stats != nil {
		b.stats.Record(model, elapsed.Milliseconds(), err != nil)
	}
	b.metrics.ObserveLLM(model, elapsed, err)
	b.log.Debug("llm call", "model", model, "duration_ms", elapsed.Milliseconds(), "ok", err == nil)
	return out, err
}

// Stats returns the rolling latency window, if any.
func (b *Instrumented) Stats() *Stats {
	return b.stats
}
