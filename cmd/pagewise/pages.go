package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/pagewise/internal/document"
	"github.com/dgallion1/pagewise/internal/pagesel"
	"github.com/dgallion1/pagewise/internal/render"
)

type pagesOptions struct {
	Pages     string
	Plain     bool
	Normalize bool
}

var pagesOpts pagesOptions

var pagesCmd = &cobra.Command{
	Use:   "pages <pdf>",
	Short: "Print the text of a PDF page by page",
	Args:  cobra.ExactArgs(1),
	RunE:  runPages,
}

func init() {
	pagesCmd.Flags().StringVarP(&pagesOpts.Pages, "pages", "p", "", `pages to print, e.g. "1,3-5" (default all)`)
	pagesCmd.Flags().BoolVar(&pagesOpts.Plain, "plain", false, "strip markdown from the output")
	pagesCmd.Flags().BoolVar(&pagesOpts.Normalize, "normalize", false, "rewrite pages as markdown first")
}

func runPages(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newCLIEnv(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	doc, err := rt.load(ctx, args[0], pagesOpts.Normalize)
	if err != nil {
		return err
	}
	return printPages(cmd.OutOrStdout(), doc, pagesOpts.Pages, pagesOpts.Plain)
}

// printPages writes the chosen pages, each under a header line.
func printPages(w io.Writer, doc *document.Document, selector string, plain bool) error {
	numbers, err := pageNumbers(selector, doc.PageCount())
	if err != nil {
		return err
	}
	header := color.New(color.FgBlue, color.Bold)
	for i, n := range numbers {
		page, err := doc.Page(n)
		if err != nil {
			return err
		}
		text := page.Text
		if plain {
			if text, err = render.PlainText(page.Text); err != nil {
				return fmt.Errorf("page %d: %w", n, err)
			}
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		label := fmt.Sprintf("── Page %d of %d ──", n, doc.PageCount())
		if page.Normalized {
			label += " (normalized)"
		}
		header.Fprintln(w, label)
		fmt.Fprintln(w, strings.TrimRight(text, "\n"))
	}
	return nil
}

func pageNumbers(selector string, count int) ([]int, error) {
	selector = strings.TrimPrefix(strings.TrimSpace(selector), pagesel.Sentinel)
	if selector == "" {
		all := make([]int, count)
		for i := range all {
			all[i] = i + 1
		}
		return all, nil
	}
	return pagesel.ParsePages(selector, count)
}
