// Package pdftext exposes statement pages as plain text and as positioned
// words so extractors can work either line by line or by column geometry.
package pdftext

import (
	"sort"
	"strings"
)

// Word is a run of non-blank text with its horizontal extent and its top
// edge measured from the top of the page.
type Word struct {
	Text string  `json:"text"`
	X0   float64 `json:"x0"`
	X1   float64 `json:"x1"`
	Top  float64 `json:"top"`
}

// Page is one statement page.
type Page interface {
	Number() int
	Text() string
	Words() []Word
}

// Document is a paged statement.
type Document interface {
	NumPages() int
	Page(i int) (Page, error)
}

// Line is a cluster of words sharing a baseline, ordered left to right.
type Line struct {
	Top   float64
	Words []Word
}

// Text joins the line's words with single spaces.
func (l Line) Text() string {
	parts := make([]string, len(l.Words))
	for i, w := range l.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// Between returns the words whose left edge lies in [from, to).
func (l Line) Between(from, to float64) []Word {
	var out []Word
	for _, w := range l.Words {
		if w.X0 >= from && w.X0 < to {
			out = append(out, w)
		}
	}
	return out
}

// JoinWords joins word texts with spaces.
func JoinWords(words []Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// GroupLines clusters words whose tops lie within tolerance of the first word
// of the cluster. Lines are returned top to bottom, words left to right.
func GroupLines(words []Word, tolerance float64) []Line {
	if len(words) == 0 {
		return nil
	}
	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Top != sorted[j].Top {
			return sorted[i].Top < sorted[j].Top
		}
		return sorted[i].X0 < sorted[j].X0
	})

	var lines []Line
	for _, w := range sorted {
		n := len(lines)
		if n > 0 && w.Top-lines[n-1].Top <= tolerance {
			lines[n-1].Words = append(lines[n-1].Words, w)
			continue
		}
		lines = append(lines, Line{Top: w.Top, Words: []Word{w}})
	}
	for i := range lines {
		ws := lines[i].Words
		sort.SliceStable(ws, func(a, b int) bool { return ws[a].X0 < ws[b].X0 })
	}
	return lines
}

// TextLines splits page text into trimmed, non-empty lines.
func TextLines(p Page) []string {
	var out []string
	for _, l := range strings.Split(p.Text(), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
