package main

import (
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/dgallion1/pagewise/internal/ingest"
)

// progressReporter draws one bar per ingestion stage.
type progressReporter struct {
	out   io.Writer
	quiet bool
	stage string
	bar   *progressbar.ProgressBar
}

func newProgressReporter(out io.Writer, quiet bool) *progressReporter {
	return &progressReporter{out: out, quiet: quiet}
}

// Report is an ingest.Options OnProgress callback.
func (p *progressReporter) Report(pr ingest.Progress) {
	if p.quiet {
		return
	}
	if pr.Stage != p.stage {
		p.Finish()
		p.stage = pr.Stage
		if pr.Total > 0 {
			p.bar = newBar(p.out, pr.Total, stageDescription(pr.Stage))
		} else {
			p.bar = newSpinner(p.out, stageDescription(pr.Stage))
		}
	}
	if pr.Total <= 0 {
		p.bar.Add(1)
		return
	}
	if pr.Fallback > 0 {
		p.bar.Describe(color.BlueString("%s (%d kept raw)", stageDescription(pr.Stage), pr.Fallback))
	}
	p.bar.Set(pr.Done)
}

// Finish closes the current bar.
func (p *progressReporter) Finish() {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}

func stageDescription(stage string) string {
	switch stage {
	case ingest.StageParsing:
		return "Reading PDF"
	case ingest.StageRendering:
		return "Rendering pages"
	case ingest.StageNormalizing:
		return "Normalizing pages"
	}
	return stage
}

func newBar(out io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func newSpinner(out io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func baseName(path string) string {
	return filepath.Base(path)
}
