package document

import "fmt"

// Document is an uploaded PDF after ingestion.
type Document struct {
	Name  string  // Uploaded file name
	Pages []*Page // In document order
}

// Page is a single ingested page. Pages are immutable once produced.
type Page struct {
	Index      int    // 0-based position in the document
	Image      []byte // PNG bytes (nil when rendering is disabled)
	Text       string // Extracted text, or its markdown rewrite
	RawText    string // Text exactly as extracted from the PDF
	Normalized bool   // Text was rewritten by the normalizer
}

// Number returns the 1-based page number shown to users.
func (p *Page) Number() int {
	return p.Index + 1
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	if d == nil {
		return 0
	}
	return len(d.Pages)
}

// Page returns the page with the given 1-based number.
func (d *Document) Page(number int) (*Page, error) {
	if d == nil || number < 1 || number > len(d.Pages) {
		return nil, fmt.Errorf("page %d out of range [1, %d]", number, d.PageCount())
	}
	return d.Pages[number-1], nil
}

// Texts returns every page's text in page order.
func (d *Document) Texts() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		out[i] = p.Text
	}
	return out
}
