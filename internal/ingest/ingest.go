// Package ingest turns uploaded PDF bytes into a document of rendered,
// text-bearing pages.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/pagewise/internal/document"
	"github.com/dgallion1/pagewise/internal/normalize"
)

// ErrNoPages is returned for a PDF without pages.
var ErrNoPages = errors.New("pdf has no pages")

// Stage names reported through Progress.
const (
	StageParsing     = "parsing"
	StageRendering   = "rendering"
	StageNormalizing = "normalizing"
)

// PageNormalizer rewrites one page's text.
type PageNormalizer interface {
	Normalize(ctx context.Context, raw string) normalize.Outcome
}

// Config controls ingestion.
type Config struct {
	FallbackPdftotext      bool
	RenderPages            bool
	MaxConcurrentNormalize int // 1 keeps pages strictly sequential
}

// Progress is reported after each unit of work.
type Progress struct {
	Stage      string
	Done       int
	Total      int
	Normalized int // pages rewritten so far
	Fallback   int // pages that kept raw text
}

// Options apply to a single upload.
type Options struct {
	Normalize  bool
	OnProgress func(Progress)
}

// Ingestor builds documents from PDF bytes.
type Ingestor struct {
	cfg        Config
	raster     Rasterizer
	normalizer PageNormalizer
	log        *slog.Logger
}

// New returns an Ingestor. raster may be nil when cfg.RenderPages is false;
// normalizer may be nil when no upload asks for normalization.
func New(cfg Config, raster Rasterizer, normalizer PageNormalizer, log *slog.Logger) *Ingestor {
	if cfg.MaxConcurrentNormalize <= 0 {
		cfg.MaxConcurrentNormalize = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{cfg: cfg, raster: raster, normalizer: normalizer, log: log}
}

// Ingest parses, renders and optionally normalizes every page. Any parse or
// render failure fails the whole upload; normalization failures never do.
func (in *Ingestor) Ingest(ctx context.Context, name string, data []byte, opts Options) (*document.Document, error) {
	report := func(p Progress) {
		if opts.OnProgress != nil {
			opts.OnProgress(p)
		}
	}

	// The PDF library and the poppler tools both want a file on disk.
	tmp, err := os.CreateTemp("", "pagewise-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	report(Progress{Stage: StageParsing})
	texts, err := extractPageTexts(ctx, tmpPath, in.cfg.FallbackPdftotext)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, ErrNoPages
	}

	doc := &document.Document{Name: name, Pages: make([]*document.Page, len(texts))}
	for i, t := range texts {
		doc.Pages[i] = &document.Page{Index: i, Text: t, RawText: t}
	}
	in.log.Info("extracted text", "document", name, "pages", len(texts))

	if in.cfg.RenderPages {
		if in.raster == nil {
			return nil, fmt.Errorf("page rendering enabled without a rasterizer")
		}
		for i, p := range doc.Pages {
			report(Progress{Stage: StageRendering, Done: i, Total: len(doc.Pages)})
			img, err := in.raster.Render(ctx, tmpPath, p.Number())
			if err != nil {
				return nil, fmt.Errorf("render page %d: %w", p.Number(), err)
			}
			p.Image = img
		}
		report(Progress{Stage: StageRendering, Done: len(doc.Pages), Total: len(doc.Pages)})
	}

	if opts.Normalize {
		if in.normalizer == nil {
			return nil, fmt.Errorf("normalization requested without a normalizer")
		}
		in.normalizePages(ctx, doc, report)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// normalizePages rewrites pages with bounded concurrency. Each goroutine only
// touches its own page.
func (in *Ingestor) normalizePages(ctx context.Context, doc *document.Document, report func(Progress)) {
	type pageResult struct {
		idx     int
		outcome normalize.Outcome
	}
	total := len(doc.Pages)
	results := make(chan pageResult, total)
	sem := make(chan struct{}, in.cfg.MaxConcurrentNormalize)

	go func() {
		for i, p := range doc.Pages {
			sem <- struct{}{}
			go func(i int, raw string) {
				defer func() { <-sem }()
				results <- pageResult{idx: i, outcome: in.normalizer.Normalize(ctx, raw)}
			}(i, p.RawText)
		}
	}()

	progress := Progress{Stage: StageNormalizing, Total: total}
	report(progress)
	for range total {
		r := <-results
		page := doc.Pages[r.idx]
		page.Text = r.outcome.Text
		page.Normalized = r.outcome.Normalized

		progress.Done++
		if r.outcome.Normalized {
			progress.Normalized++
		} else {
			progress.Fallback++
			in.log.Warn("page kept raw text", "page", page.Number(), "attempts", r.outcome.Attempts)
		}
		report(progress)
	}
}
