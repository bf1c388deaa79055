package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/pagewise/internal/metrics"
	"github.com/dgallion1/pagewise/internal/notes"
	"github.com/dgallion1/pagewise/internal/pagesel"
	"github.com/dgallion1/pagewise/internal/qa"
)

// Answerer answers a question about a context blob.
type Answerer interface {
	Answer(ctx context.Context, contextText, question string) qa.Result
}

// Dispatcher applies commands to states. It holds no session state itself.
type Dispatcher struct {
	answers Answerer
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewDispatcher returns a Dispatcher. m may be nil.
func NewDispatcher(answers Answerer, m *metrics.Metrics, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{answers: answers, metrics: m, log: log}
}

// Handle applies cmd to st. On error the returned state is st unchanged and
// no effects are produced.
func (d *Dispatcher) Handle(ctx context.Context, st State, cmd Command) (State, []Effect, error) {
	var (
		next    State
		effects []Effect
		err     error
	)
	switch c := cmd.(type) {
	case LoadDocument:
		next, effects, err = d.loadDocument(st, c)
	case GoToPage:
		next, effects, err = d.goToPage(st, c.Page)
	case FirstPage:
		next, effects, err = d.goToPage(st, 1)
	case LastPage:
		next, effects, err = d.goToPage(st, st.PageCount())
	case SelectText:
		next = st
		next.Selection = c.Text
	case SaveHighlight:
		next, effects, err = d.saveHighlight(st)
	case Ask:
		next, effects, err = d.ask(ctx, st, c)
	case SaveAnswer:
		next, effects, err = d.saveAnswer(st, c)
	case CloseDialog:
		next = st
		next.DialogOpen = false
		effects = []Effect{{Kind: EffectCloseDialog}}
	case DeleteNote:
		next, effects, err = d.deleteNote(st, c)
	case ExportNotes:
		next = st
		effects = []Effect{{Kind: EffectDownload, Download: &Download{
			Filename: notes.ExportFilename(st.FileName),
			MIMEType: notes.ExportMIMEType,
			Body:     st.Notes.Export(),
		}}}
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	if err != nil {
		d.log.Debug("command rejected", "command", commandName(cmd), "error", err)
		return st, nil, err
	}
	if d.metrics != nil {
		d.metrics.NotesStored.Set(float64(next.Notes.Len()))
	}
	return next, effects, nil
}

func commandName(cmd Command) string {
	if cmd == nil {
		return "<nil>"
	}
	return cmd.Name()
}

func (d *Dispatcher) loadDocument(st State, c LoadDocument) (State, []Effect, error) {
	if c.Doc == nil || c.Doc.PageCount() == 0 {
		return st, nil, ErrInvalidDocument
	}
	next := State{
		FileName: c.Doc.Name,
		Doc:      c.Doc,
	}
	d.log.Info("document loaded", "document", c.Doc.Name, "pages", c.Doc.PageCount(), "dropped_notes", st.Notes.Len())
	return next, []Effect{notice(fmt.Sprintf("Loaded %s (%d pages)", c.Doc.Name, c.Doc.PageCount()))}, nil
}

func (d *Dispatcher) goToPage(st State, page int) (State, []Effect, error) {
	if !st.HasDocument() {
		return st, nil, ErrNoDocument
	}
	if page < 1 || page > st.PageCount() {
		return st, nil, fmt.Errorf("%w: %d (have %d)", ErrPageRange, page, st.PageCount())
	}
	next := st
	next.Page = page - 1
	return next, nil, nil
}

func (d *Dispatcher) saveHighlight(st State) (State, []Effect, error) {
	if !st.HasDocument() {
		return st, nil, ErrNoDocument
	}
	if st.Selection == "" {
		return st, nil, ErrEmptySelection
	}
	next := st
	next.Notes = st.Notes.Append(notes.Highlight(st.Page+1, st.Selection))
	next.Selection = ""
	return next, []Effect{notice("Highlight saved")}, nil
}

func (d *Dispatcher) ask(ctx context.Context, st State, c Ask) (State, []Effect, error) {
	if !st.HasDocument() {
		return st, nil, ErrNoDocument
	}

	next := st
	next.Question = c.Question
	next.AnswerSpec = st.Selection

	if strings.TrimSpace(c.Question) == "" {
		res := qa.ValidationError("question is empty")
		next.Answer = &res
		next.DialogOpen = false
		d.countAnswer(res)
		return next, []Effect{errorEffect(res.String())}, nil
	}

	sel, err := pagesel.Resolve(st.Selection, st.Doc.Texts())
	if err != nil {
		var rerr *pagesel.ResolutionError
		if !errors.As(err, &rerr) {
			return st, nil, err
		}
		res := qa.ValidationError(err.Error())
		next.Answer = &res
		next.DialogOpen = false
		d.countAnswer(res)
		return next, []Effect{errorEffect(res.String())}, nil
	}

	d.log.Info("asking", "context", sel.Description, "question_chars", len(c.Question))
	res := d.answers.Answer(ctx, sel.Text, c.Question)
	next.Answer = &res
	next.DialogOpen = true
	d.countAnswer(res)

	effects := []Effect{{Kind: EffectOpenDialog, Message: res.String()}}
	if !res.OK() {
		effects = append([]Effect{errorEffect(res.String())}, effects...)
	}
	return next, effects, nil
}

func (d *Dispatcher) countAnswer(res qa.Result) {
	if d.metrics != nil {
		d.metrics.AnswersTotal.WithLabelValues(string(res.Kind)).Inc()
	}
}

func (d *Dispatcher) saveAnswer(st State, c SaveAnswer) (State, []Effect, error) {
	if st.Answer == nil {
		return st, nil, ErrNoAnswer
	}
	if !st.Answer.OK() {
		return st, nil, ErrAnswerNotSaved
	}
	text := c.Text
	if strings.TrimSpace(text) == "" {
		text = st.Answer.Text
	}
	next := st
	next.Notes = st.Notes.Append(notes.Answer(notes.ContextLabel(st.AnswerSpec), st.Question, text))
	next.DialogOpen = false
	return next, []Effect{notice("Answer saved"), {Kind: EffectCloseDialog}}, nil
}

func (d *Dispatcher) deleteNote(st State, c DeleteNote) (State, []Effect, error) {
	list, err := st.Notes.Delete(c.Position)
	if err != nil {
		return st, nil, err
	}
	next := st
	next.Notes = list
	return next, []Effect{notice("Note deleted")}, nil
}
