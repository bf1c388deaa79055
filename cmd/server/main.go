package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dgallion1/pagewise/internal/api"
	"github.com/dgallion1/pagewise/internal/app"
	"github.com/dgallion1/pagewise/internal/config"
	"github.com/dgallion1/pagewise/internal/document"
	"github.com/dgallion1/pagewise/internal/metrics"
	"github.com/dgallion1/pagewise/internal/pipeline"
	"github.com/dgallion1/pagewise/internal/session"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log = app.NewLogger(os.Stdout, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize the backend and document pipeline.
	a, err := app.New(ctx, cfg, m, log)
	if err != nil {
		log.Error("failed to initialize LLM backend", "provider", cfg.LLMProvider, "error", err)
		os.Exit(1)
	}
	defer a.Close()

	sessions := session.NewManager(session.NewDispatcher(a.QA, m, log))
	sink := pipeline.SinkFunc(func(ctx context.Context, doc *document.Document) error {
		_, _, err := sessions.Do(ctx, session.LoadDocument{Doc: doc})
		return err
	})

	orch := pipeline.NewOrchestrator(cfg, a.Ingestor, sink, m, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, sessions, a.Stats, reg, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting pagewise",
		"port", cfg.Port,
		"provider", cfg.LLMProvider,
		"compact_model", cfg.CompactModel,
		"long_context_model", cfg.LongContextModel,
		"render_pages", cfg.RenderPages,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
