// Package pagesel resolves a user's context spec into the text sent with a
// question.
//
// A spec is one of:
//
//	""            every page, in order
//	"@1,3-5,2"    the listed pages and inclusive ranges, in the order given
//	anything else used verbatim
package pagesel

import (
	"fmt"
	"strconv"
	"strings"
)

// Sentinel marks a page selector.
const Sentinel = "@"

// PageSeparator joins page texts in a resolved context.
const PageSeparator = "\n\n"

// Kind says which form of spec was resolved.
type Kind string

const (
	KindAll   Kind = "all"
	KindPages Kind = "pages"
	KindText  Kind = "text"
)

// Selection is the outcome of resolving a spec.
type Selection struct {
	Kind        Kind
	Text        string
	Description string
	Pages       []int // 1-based page numbers, only for KindPages
}

// ResolutionError reports a selector token that could not be resolved.
type ResolutionError struct {
	Token  string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("invalid page specification %q: %s", e.Token, e.Reason)
}

// Resolve maps spec onto pages. pages holds each page's text in page order.
func Resolve(spec string, pages []string) (Selection, error) {
	trimmed := strings.TrimSpace(spec)

	switch {
	case trimmed == "":
		return Selection{
			Kind:        KindAll,
			Text:        strings.Join(pages, PageSeparator),
			Description: "all pages",
		}, nil

	case strings.HasPrefix(trimmed, Sentinel):
		numbers, err := ParsePages(strings.TrimPrefix(trimmed, Sentinel), len(pages))
		if err != nil {
			return Selection{}, err
		}
		texts := make([]string, len(numbers))
		for i, n := range numbers {
			texts[i] = pages[n-1]
		}
		return Selection{
			Kind:        KindPages,
			Text:        strings.Join(texts, PageSeparator),
			Description: "selected pages: " + joinInts(numbers),
			Pages:       numbers,
		}, nil

	default:
		return Selection{
			Kind:        KindText,
			Text:        spec,
			Description: "selected text",
		}, nil
	}
}

// ParsePages expands a comma-separated selector body (without the sentinel)
// into 1-based page numbers, checked against pageCount. Order and duplicates
// are kept as given.
func ParsePages(body string, pageCount int) ([]int, error) {
	var out []int
	for _, raw := range strings.Split(body, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			return nil, &ResolutionError{Token: raw, Reason: "empty entry"}
		}

		if !strings.Contains(token, "-") {
			n, err := parsePage(token, token, pageCount)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
			continue
		}

		bounds := strings.Split(token, "-")
		if len(bounds) != 2 {
			return nil, &ResolutionError{Token: token, Reason: "range must be start-end"}
		}
		start, err := parsePage(strings.TrimSpace(bounds[0]), token, pageCount)
		if err != nil {
			return nil, err
		}
		end, err := parsePage(strings.TrimSpace(bounds[1]), token, pageCount)
		if err != nil {
			return nil, err
		}
		if start > end {
			return nil, &ResolutionError{Token: token, Reason: "range start is after range end"}
		}
		for n := start; n <= end; n++ {
			out = append(out, n)
		}
	}
	return out, nil
}

func parsePage(s, token string, pageCount int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ResolutionError{Token: token, Reason: "not a page number"}
	}
	if n < 1 || n > pageCount {
		return 0, &ResolutionError{Token: token, Reason: fmt.Sprintf("page out of range [1, %d]", pageCount)}
	}
	return n, nil
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
