package session

import "github.com/dgallion1/pagewise/internal/document"

// Command is a user action. The concrete types below are the only commands.
type Command interface {
	Name() string
}

// LoadDocument replaces the document and resets everything tied to the old one.
type LoadDocument struct {
	Doc *document.Document
}

// GoToPage moves to a 1-based page number.
type GoToPage struct {
	Page int
}

type FirstPage struct{}

type LastPage struct{}

// SelectText sets the context spec: empty, an "@" page selector, or text.
type SelectText struct {
	Text string
}

// SaveHighlight stores the selection as a note for the current page.
type SaveHighlight struct{}

// Ask answers Question about the current selection.
type Ask struct {
	Question string
}

// SaveAnswer stores the last answer as a note. Text replaces the answer when
// the user edited it.
type SaveAnswer struct {
	Text string
}

type CloseDialog struct{}

// DeleteNote removes the note at a 0-based position.
type DeleteNote struct {
	Position int
}

type ExportNotes struct{}

func (LoadDocument) Name() string { return "load_document" }
func (GoToPage) Name() string { return "go_to_page" }
func (FirstPage) Name() string { return "first_page" }
func (LastPage) Name() string { return "last_page" }
func (SelectText) Name() string { return "select_text" }
func (SaveHighlight) Name() string { return "save_highlight" }
func (Ask) Name() string { return "ask" }
func (SaveAnswer) Name() string { return "save_answer" }
func (CloseDialog) Name() string { return "close_dialog" }
func (DeleteNote) Name() string { return "delete_note" }
func (ExportNotes) Name() string { return "export_notes" }
