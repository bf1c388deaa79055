package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/pagewise/internal/document"
	"github.com/dgallion1/pagewise/internal/ingest"
	"github.com/dgallion1/pagewise/internal/metrics"
)

// Ingester turns uploaded bytes into a document.
type Ingester interface {
	Ingest(ctx context.Context, name string, data []byte, opts ingest.Options) (*document.Document, error)
}

// DocumentSink receives each successfully ingested document.
type DocumentSink interface {
	Install(ctx context.Context, doc *document.Document) error
}

// SinkFunc adapts a function to DocumentSink.
type SinkFunc func(ctx context.Context, doc *document.Document) error

func (f SinkFunc) Install(ctx context.Context, doc *document.Document) error {
	return f(ctx, doc)
}

// Worker processes a single upload job.
type Worker struct {
	ingester Ingester
	sink     DocumentSink
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewWorker(ingester Ingester, sink DocumentSink, m *metrics.Metrics, log *slog.Logger) *Worker {
	return &Worker{
		ingester: ingester,
		sink:     sink,
		metrics:  m,
		log:      log,
	}
}

// Process runs ingestion for a job and hands the document to the sink. A
// failed job leaves the previously loaded document in place.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	defer job.releaseFileData()

	job.SetStatus(StatusParsing, "parsing")
	doc, err := w.ingester.Ingest(ctx, job.Filename, job.FileData(), ingest.Options{
		Normalize:  job.Normalize,
		OnProgress: job.Observe,
	})
	if err != nil {
		phase := job.Snapshot().Phase
		log.Error("ingest failed", "phase", phase, "error", err)
		job.AddError(describeIngestError(err))
		job.SetStatus(StatusFailed, phase)
		w.count(StatusFailed, 0)
		return
	}
	job.SetTotalPages(doc.PageCount())

	if err := w.sink.Install(ctx, doc); err != nil {
		log.Error("install failed", "error", err)
		job.AddError(fmt.Sprintf("install: %s", err))
		job.SetStatus(StatusFailed, "installing")
		w.count(StatusFailed, 0)
		return
	}

	log.Info("document ready", "pages", doc.PageCount())
	job.SetStatus(StatusCompleted, "done")
	w.count(StatusCompleted, doc.PageCount())
}

func (w *Worker) count(status JobStatus, pages int) {
	if w.metrics == nil {
		return
	}
	w.metrics.IngestJobsTotal.WithLabelValues(string(status)).Inc()
	w.metrics.IngestPagesTotal.Add(float64(pages))
}

func describeIngestError(err error) string {
	switch {
	case errors.Is(err, ingest.ErrNoPages):
		return "the PDF has no pages"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("cancelled: %s", err)
	}
	return fmt.Sprintf("processing PDF: %s", err)
}
