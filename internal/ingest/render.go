package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Rasterizer renders one page of a PDF file to PNG bytes.
type Rasterizer interface {
	Render(ctx context.Context, pdfPath string, pageNumber int) ([]byte, error)
}

// PdftoppmRasterizer renders pages with poppler's pdftoppm.
type PdftoppmRasterizer struct {
	DPI    int
	Binary string // defaults to "pdftoppm"
}

func (r *PdftoppmRasterizer) Render(ctx context.Context, pdfPath string, pageNumber int) ([]byte, error) {
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 150
	}
	bin := r.Binary
	if bin == "" {
		bin = "pdftoppm"
	}

	dir, err := os.MkdirTemp("", "pagewise-render-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	n := strconv.Itoa(pageNumber)
	cmd := exec.CommandContext(ctx, bin,
		"-png", "-r", strconv.Itoa(dpi),
		"-f", n, "-l", n, "-singlefile",
		pdfPath, prefix,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", pageNumber, err, bytes.TrimSpace(out))
	}

	raw, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page %d: %w", pageNumber, err)
	}
	return reencodePNG(raw)
}

// reencodePNG decodes any supported raster and writes it back as compressed PNG.
func reencodePNG(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
