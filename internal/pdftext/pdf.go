package pdftext

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/dslipak/pdf"

	"github.com/dvloznov/statement-reconciler/internal/domain"
)

// defaultPageHeight is A4 in points, used when MediaBox is missing.
const defaultPageHeight = 842.0

// lineTolerance is the vertical distance under which glyph runs share a line.
const lineTolerance = 2.0

// PDFDocument is a Document backed by a parsed PDF file.
type PDFDocument struct {
	r *pdf.Reader
}

// Open reads and parses the PDF at path.
func Open(path string) (*PDFDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Open: reading %s: %w", path, err)
	}
	return OpenBytes(data)
}

// OpenBytes parses an in-memory PDF.
func OpenBytes(data []byte) (doc *PDFDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("OpenBytes: %w: malformed pdf: %v", domain.ErrParse, r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("OpenBytes: %w: %v", domain.ErrParse, err)
	}
	return &PDFDocument{r: r}, nil
}

func (d *PDFDocument) NumPages() int { return d.r.NumPage() }

// Page loads page i (1-based) and lays its glyphs out as words.
func (d *PDFDocument) Page(i int) (page Page, err error) {
	if i < 1 || i > d.r.NumPage() {
		return nil, fmt.Errorf("Page: page %d out of range 1..%d", i, d.r.NumPage())
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("Page: %w: page %d: %v", domain.ErrParse, i, r)
		}
	}()

	p := d.r.Page(i)
	if p.V.IsNull() {
		return NewPage(i, "", nil), nil
	}
	height := pageHeight(p)
	words := wordsFromGlyphs(p.Content().Text, height)
	return NewPage(i, "", words), nil
}

func pageHeight(p pdf.Page) float64 {
	box := p.V.Key("MediaBox")
	if box.Kind() != pdf.Array || box.Len() < 4 {
		return defaultPageHeight
	}
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if h <= 0 {
		return defaultPageHeight
	}
	return h
}

// wordsFromGlyphs merges positioned glyph runs into words. Runs on the same
// baseline join when the horizontal gap is smaller than a fraction of the
// font size; spaces always break words.
func wordsFromGlyphs(glyphs []pdf.Text, height float64) []Word {
	if len(glyphs) == 0 {
		return nil
	}
	gs := make([]pdf.Text, len(glyphs))
	copy(gs, glyphs)
	sort.SliceStable(gs, func(i, j int) bool {
		if math.Abs(gs[i].Y-gs[j].Y) > lineTolerance {
			return gs[i].Y > gs[j].Y
		}
		return gs[i].X < gs[j].X
	})

	var (
		words []Word
		cur   strings.Builder
		curW  Word
		lastY float64
		lastX float64
	)
	flush := func() {
		if cur.Len() > 0 {
			curW.Text = cur.String()
			words = append(words, curW)
		}
		cur.Reset()
	}

	for _, g := range gs {
		if strings.TrimSpace(g.S) == "" {
			flush()
			continue
		}
		gap := g.X - lastX
		sameLine := cur.Len() > 0 && math.Abs(g.Y-lastY) <= lineTolerance
		maxGap := g.FontSize * 0.3
		if maxGap <= 0 {
			maxGap = 1.5
		}
		if !sameLine || gap > maxGap || gap < -maxGap {
			flush()
			curW = Word{X0: g.X, Top: height - g.Y - g.FontSize}
		}
		cur.WriteString(g.S)
		curW.X1 = g.X + g.W
		lastX = g.X + g.W
		lastY = g.Y
	}
	flush()
	return splitOnSpaces(words)
}

// splitOnSpaces breaks words that carry embedded spaces from multi-glyph runs.
func splitOnSpaces(words []Word) []Word {
	var out []Word
	for _, w := range words {
		fields := strings.Fields(w.Text)
		if len(fields) <= 1 {
			w.Text = strings.TrimSpace(w.Text)
			out = append(out, w)
			continue
		}
		n := float64(len([]rune(w.Text)))
		per := (w.X1 - w.X0) / n
		offset := 0
		for _, f := range fields {
			idx := strings.Index(w.Text[offset:], f) + offset
			start := float64(len([]rune(w.Text[:idx])))
			x0 := w.X0 + start*per
			out = append(out, Word{Text: f, X0: x0, X1: x0 + float64(len([]rune(f)))*per, Top: w.Top})
			offset = idx + len(f)
		}
	}
	return out
}
