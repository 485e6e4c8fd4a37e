package pdftext

import (
	"fmt"
	"strings"
)

// StaticPage is an in-memory page, used for OCR output and fixtures.
type StaticPage struct {
	N     int
	Body  string
	Items []Word
}

func (p *StaticPage) Number() int { return p.N }

// Text returns the page body, or the words laid out line by line when no
// body was given.
func (p *StaticPage) Text() string {
	if p.Body != "" || len(p.Items) == 0 {
		return p.Body
	}
	lines := GroupLines(p.Items, 2)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text()
	}
	return strings.Join(out, "\n")
}

func (p *StaticPage) Words() []Word { return p.Items }

// NewPage builds a page from text and optional positioned words.
func NewPage(n int, text string, words []Word) *StaticPage {
	return &StaticPage{N: n, Body: text, Items: words}
}

// StaticDocument is a Document over in-memory pages.
type StaticDocument struct {
	Pages []Page
}

// FromText builds a document with one text-only page per argument.
func FromText(pages ...string) *StaticDocument {
	doc := &StaticDocument{}
	for i, t := range pages {
		doc.Pages = append(doc.Pages, NewPage(i+1, t, nil))
	}
	return doc
}

// FromPages builds a document from already constructed pages.
func FromPages(pages ...Page) *StaticDocument {
	return &StaticDocument{Pages: pages}
}

func (d *StaticDocument) NumPages() int { return len(d.Pages) }

func (d *StaticDocument) Page(i int) (Page, error) {
	if i < 1 || i > len(d.Pages) {
		return nil, fmt.Errorf("Page: page %d out of range 1..%d", i, len(d.Pages))
	}
	return d.Pages[i-1], nil
}

// Cell places text starting at x on a fixture row.
type Cell struct {
	X    float64
	Text string
}

// charWidth approximates glyph advance for fixture rows.
const charWidth = 5.0

// Row lays out cells on one line at the given top, splitting each cell on
// spaces into words with a fixed glyph width.
func Row(top float64, cells ...Cell) []Word {
	var out []Word
	for _, c := range cells {
		x := c.X
		for _, tok := range strings.Fields(c.Text) {
			w := Word{Text: tok, X0: x, X1: x + charWidth*float64(len([]rune(tok))), Top: top}
			out = append(out, w)
			x = w.X1 + charWidth
		}
	}
	return out
}
