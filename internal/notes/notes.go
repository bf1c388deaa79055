// Package notes holds the session's highlight and answer notes.
package notes

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins notes in an export.
const Separator = "\n\n---\n\n"

// ExportMIMEType is the content type of an export.
const ExportMIMEType = "text/plain"

// ErrPosition is returned for a position outside the list.
var ErrPosition = errors.New("note position out of range")

// List is an ordered list of notes. It is a value type: Append and Delete
// return a new List and leave the receiver untouched.
type List struct {
	items []string
}

// NewList builds a list from notes in order.
func NewList(notes ...string) List {
	return List{items: append([]string(nil), notes...)}
}

func (l List) Len() int {
	return len(l.items)
}

// All returns a copy of the notes in order.
func (l List) All() []string {
	return append([]string(nil), l.items...)
}

// At returns the note at 0-based position pos.
func (l List) At(pos int) (string, error) {
	if pos < 0 || pos >= len(l.items) {
		return "", fmt.Errorf("%w: %d (have %d)", ErrPosition, pos, len(l.items))
	}
	return l.items[pos], nil
}

// Append adds note at the end.
func (l List) Append(note string) List {
	items := make([]string, len(l.items), len(l.items)+1)
	copy(items, l.items)
	return List{items: append(items, note)}
}

// Delete removes the note at 0-based position pos; later notes move down one.
func (l List) Delete(pos int) (List, error) {
	if pos < 0 || pos >= len(l.items) {
		return l, fmt.Errorf("%w: %d (have %d)", ErrPosition, pos, len(l.items))
	}
	items := make([]string, 0, len(l.items)-1)
	items = append(items, l.items[:pos]...)
	items = append(items, l.items[pos+1:]...)
	return List{items: items}, nil
}

// Export joins every note with Separator in current order.
func (l List) Export() string {
	return strings.Join(l.items, Separator)
}

// ExportFilename names the export file after the document.
func ExportFilename(docName string) string {
	if docName == "" {
		return "notes.txt"
	}
	return strings.ReplaceAll(docName, ".", "_") + "_notes.txt"
}

// Highlight formats a saved text selection from a page.
func Highlight(pageNumber int, text string) string {
	return fmt.Sprintf("Highlight from Page %d%s%s\n\n===", pageNumber, Separator, text)
}

// Answer formats a saved question and answer. contextDesc says what the
// question was asked about, see ContextLabel.
func Answer(contextDesc, question, answer string) string {
	return fmt.Sprintf("AI Query (%s)\nQuery: %s%s%s\n\n===", contextDesc, question, Separator, answer)
}

// ContextLabel describes a context spec for an answer note.
func ContextLabel(spec string) string {
	trimmed := strings.TrimSpace(spec)
	switch {
	case trimmed == "":
		return "All Pages"
	case strings.HasPrefix(trimmed, "@"):
		return "Pages " + strings.TrimPrefix(trimmed, "@")
	default:
		return "Selected Text"
	}
}
