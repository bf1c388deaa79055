package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pagewise/internal/app"
	"github.com/dgallion1/pagewise/internal/config"
	"github.com/dgallion1/pagewise/internal/document"
	"github.com/dgallion1/pagewise/internal/ingest"
)

// GlobalFlags holds flags shared by every command.
type GlobalFlags struct {
	Verbose bool
	Quiet   bool
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:           "pagewise",
	Short:         "Read a PDF page by page and ask questions about it",
	Long:          "pagewise extracts the pages of a PDF, optionally rewrites them as markdown with an LLM, and answers questions about all pages, chosen pages or a quoted passage.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "log at LOG_LEVEL instead of warnings only")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Quiet, "quiet", false, "hide progress bars")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(pagesCmd)
	rootCmd.AddCommand(guideCmd)
}

// cliEnv is what every command needs after configuration.
type cliEnv struct {
	cfg config.Config
	log *slog.Logger
	app *app.App
}

// newCLIEnv loads configuration and wires the backend. Pages are never
// rasterized from the terminal.
func newCLIEnv(ctx context.Context) (*cliEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.RenderPages = false

	level := "warn"
	if globalFlags.Verbose {
		level = cfg.LogLevel
	}
	log := app.NewLogger(os.Stderr, level)

	a, err := app.New(ctx, cfg, nil, log)
	if err != nil {
		return nil, err
	}
	return &cliEnv{cfg: cfg, log: log, app: a}, nil
}

func (rt *cliEnv) Close() {
	rt.app.Close()
}

// load reads and ingests path, drawing progress on stderr.
func (rt *cliEnv) load(ctx context.Context, path string, normalize bool) (*document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	progress := newProgressReporter(os.Stderr, globalFlags.Quiet)
	defer progress.Finish()

	doc, err := rt.app.Ingestor.Ingest(ctx, baseName(path), data, ingest.Options{
		Normalize:  normalize,
		OnProgress: progress.Report,
	})
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}
	return doc, nil
}
