package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/pagewise/internal/qa"
	"github.com/dgallion1/pagewise/internal/session"
)

type askOptions struct {
	Question  string
	Context   string
	Normalize bool
	ExportDir string
}

var askOpts askOptions

var askCmd = &cobra.Command{
	Use:   "ask <pdf>",
	Short: "Answer one question about a PDF",
	Long: `Answer one question about a PDF.

--context picks what the model sees: empty for every page, "@1,3-5" for
those pages, anything else is sent verbatim as the passage.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askOpts.Question, "question", "q", "", "question to ask (required)")
	askCmd.Flags().StringVarP(&askOpts.Context, "context", "c", "", `context: empty for all pages, "@1,3-5" for pages, or a passage`)
	askCmd.Flags().BoolVar(&askOpts.Normalize, "normalize", false, "rewrite pages as markdown before asking")
	askCmd.Flags().StringVar(&askOpts.ExportDir, "export", "", "save the answer as a note and write the notes file into this directory")
	askCmd.MarkFlagRequired("question")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newCLIEnv(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	doc, err := rt.load(ctx, args[0], askOpts.Normalize)
	if err != nil {
		return err
	}

	sessions := session.NewManager(session.NewDispatcher(rt.app.QA, nil, rt.log))
	if _, _, err := sessions.Do(ctx, session.LoadDocument{Doc: doc}); err != nil {
		return err
	}
	if _, _, err := sessions.Do(ctx, session.SelectText{Text: askOpts.Context}); err != nil {
		return err
	}
	st, _, err := sessions.Do(ctx, session.Ask{Question: askOpts.Question})
	if err != nil {
		return err
	}

	res := st.Answer
	if res == nil {
		return errors.New("no answer was produced")
	}
	if !res.OK() {
		return errors.New(strings.TrimPrefix(res.String(), qa.ErrorPrefix))
	}

	out := cmd.OutOrStdout()
	color.New(color.FgCyan).Fprintf(out, "Answer (%s)\n", res.Model)
	fmt.Fprintln(out, res.Text)

	if askOpts.ExportDir == "" {
		return nil
	}
	if _, _, err := sessions.Do(ctx, session.SaveAnswer{}); err != nil {
		return err
	}
	_, effects, err := sessions.Do(ctx, session.ExportNotes{})
	if err != nil {
		return err
	}
	path, err := writeDownload(askOpts.ExportDir, effects)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "✓ Notes written to %s\n", path)
	return nil
}

// writeDownload writes the first download effect into dir.
func writeDownload(dir string, effects []session.Effect) (string, error) {
	for _, e := range effects {
		if e.Kind != session.EffectDownload || e.Download == nil {
			continue
		}
		path := filepath.Join(dir, e.Download.Filename)
		if err := os.WriteFile(path, []byte(e.Download.Body), 0o644); err != nil {
			return "", fmt.Errorf("write notes: %w", err)
		}
		return path, nil
	}
	return "", errors.New("export produced no download")
}
