// Package app assembles the LLM backend, question answering, normalization
// and ingestion from a Config. Both the HTTP server and the CLI start here.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/pagewise/internal/config"
	"github.com/dgallion1/pagewise/internal/ingest"
	"github.com/dgallion1/pagewise/internal/llm"
	"github.com/dgallion1/pagewise/internal/metrics"
	"github.com/dgallion1/pagewise/internal/normalize"
	"github.com/dgallion1/pagewise/internal/qa"
)

// googleAIMaxOutputTokens caps Gemini responses.
const googleAIMaxOutputTokens = 8192

// statsWindow is how far back /api/stats/llm looks.
const statsWindow = 15 * time.Minute

// App holds the wired components.
type App struct {
	Backend    llm.Backend
	Stats      *llm.Stats
	QA         *qa.Service
	Normalizer *normalize.Normalizer
	Ingestor   *ingest.Ingestor

	closers []func()
}

// New builds every component for cfg. m may be nil.
func New(ctx context.Context, cfg config.Config, m *metrics.Metrics, log *slog.Logger) (*App, error) {
	raw, closeFn, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Assemble(raw, cfg, m, log, closeFn), nil
}

// Assemble wires components around an existing backend. closers run on Close.
func Assemble(raw llm.Backend, cfg config.Config, m *metrics.Metrics, log *slog.Logger, closers ...func()) *App {
	if log == nil {
		log = slog.Default()
	}
	stats := llm.NewStats(statsWindow)
	backend := llm.NewInstrumented(llm.WithTimeout(raw, cfg.LLMTimeout), stats, m, log)

	answers := qa.NewService(backend, qa.Models{
		Compact:       cfg.CompactModel,
		LongContext:   cfg.LongContextModel,
		WordThreshold: cfg.ModelWordThreshold,
	}, log)

	normalizer := normalize.New(backend, normalize.Config{
		Model:       cfg.NormalizeModel,
		MaxAttempts: cfg.NormalizeMaxAttempts,
		RetryDelay:  cfg.NormalizeRetryDelay,
		RateLimit:   cfg.NormalizeRateLimit,
	}, log, normalize.WithMetrics(m))

	var raster ingest.Rasterizer
	if cfg.RenderPages {
		raster = &ingest.PdftoppmRasterizer{DPI: cfg.RenderDPI}
	}
	ingestor := ingest.New(ingest.Config{
		FallbackPdftotext:      cfg.PDFFallbackPdftotext,
		RenderPages:            cfg.RenderPages,
		MaxConcurrentNormalize: cfg.MaxConcurrentNormalize,
	}, raster, normalizer, log)

	var cs []func()
	for _, c := range closers {
		if c != nil {
			cs = append(cs, c)
		}
	}
	return &App{
		Backend:    backend,
		Stats:      stats,
		QA:         answers,
		Normalizer: normalizer,
		Ingestor:   ingestor,
		closers:    cs,
	}
}

// Close releases backend resources.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
}

// NewBackend connects to the configured provider. The returned func, when
// not nil, releases the client.
func NewBackend(ctx context.Context, cfg config.Config) (llm.Backend, func(), error) {
	switch cfg.LLMProvider {
	case config.ProviderGoogleAI:
		b, err := llm.NewGoogleAIBackend(ctx, cfg.GeminiAPIKey, cfg.CompactModel, googleAIMaxOutputTokens)
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	case config.ProviderOllama:
		b, err := llm.NewOllamaBackend(cfg.OllamaBaseURL, cfg.CompactModel)
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	case config.ProviderAnthropic:
		c := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicMaxTokens, cfg.LLMTimeout)
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// ParseLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a JSON logger at the given LOG_LEVEL.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}
