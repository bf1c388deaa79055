// Package session holds the reader's state and applies user commands to it.
// Every command is handled by a function from the current State to the next
// State plus a list of Effects for the surface to act on.
package session

import (
	"errors"

	"github.com/dgallion1/pagewise/internal/document"
	"github.com/dgallion1/pagewise/internal/notes"
	"github.com/dgallion1/pagewise/internal/qa"
)

var (
	ErrNoDocument      = errors.New("no document loaded")
	ErrPageRange       = errors.New("page out of range")
	ErrEmptySelection  = errors.New("nothing selected")
	ErrNoAnswer        = errors.New("no answer to save")
	ErrAnswerNotSaved  = errors.New("failed answers cannot be saved")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidDocument = errors.New("document has no pages")
)

// State is everything one reading session knows. The zero value is a session
// with no document.
type State struct {
	FileName   string             `json:"file_name"`
	Doc        *document.Document `json:"-"`
	Page       int                `json:"page"` // 0-based
	Notes      notes.List         `json:"-"`
	Selection  string             `json:"selection"`
	Question   string             `json:"question,omitempty"`
	Answer     *qa.Result         `json:"answer,omitempty"`
	AnswerSpec string             `json:"answer_spec,omitempty"` // selection the answer was asked about
	DialogOpen bool               `json:"dialog_open"`
}

// HasDocument reports whether a document is loaded.
func (s State) HasDocument() bool {
	return s.Doc != nil && s.Doc.PageCount() > 0
}

// PageCount returns the loaded document's page count, or 0.
func (s State) PageCount() int {
	if s.Doc == nil {
		return 0
	}
	return s.Doc.PageCount()
}

// CurrentPage returns the page being viewed.
func (s State) CurrentPage() (*document.Page, error) {
	if !s.HasDocument() {
		return nil, ErrNoDocument
	}
	return s.Doc.Page(s.Page + 1)
}

// EffectKind names a side effect requested by a command.
type EffectKind string

const (
	EffectNotice      EffectKind = "notice"
	EffectError       EffectKind = "error"
	EffectOpenDialog  EffectKind = "open_dialog"
	EffectCloseDialog EffectKind = "close_dialog"
	EffectDownload    EffectKind = "download"
)

// Effect is something the surface should do after a command.
type Effect struct {
	Kind     EffectKind `json:"kind"`
	Message  string     `json:"message,omitempty"`
	Download *Download  `json:"download,omitempty"`
}

// Download is a file offered to the user.
type Download struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Body     string `json:"body"`
}

func notice(msg string) Effect { return Effect{Kind: EffectNotice, Message: msg} }
func errorEffect(msg string) Effect { return Effect{Kind: EffectError, Message: msg} }
