// Command pdf-words dumps the positioned words of a statement PDF, line by
// line, to help write column-based extractors and layout descriptors. With
// -suggest it also asks Gemini for a descriptor of the first page.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dvloznov/statement-reconciler/internal/pdftext"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
)

// Matches the tolerance most column extractors group with.
const lineTolerance = 2.0

func main() {
	var (
		pages   = flag.Int("pages", 0, "Only dump the first N pages (0 = all)")
		suggest = flag.Bool("suggest", false, "Ask the model for a layout descriptor")
		model   = flag.String("model", "gemini-2.5-flash", "Model used with -suggest")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pdf-words [-pages N] [-suggest] STATEMENT.pdf")
		os.Exit(1)
	}

	if err := run(context.Background(), os.Stdout, flag.Arg(0), *pages, *suggest, *model); err != nil {
		log.Fatalf("error: %v", err)
	}
}

func run(ctx context.Context, w io.Writer, path string, maxPages int, suggest bool, model string) error {
	doc, err := pdftext.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", path, err)
	}

	n := doc.NumPages()
	if maxPages > 0 && maxPages < n {
		n = maxPages
	}
	for i := 1; i <= n; i++ {
		page, err := doc.Page(i)
		if err != nil {
			return fmt.Errorf("failed to read page %d: %w", i, err)
		}
		dumpPage(w, page)
	}

	if !suggest || doc.NumPages() == 0 {
		return nil
	}
	first, err := doc.Page(1)
	if err != nil {
		return err
	}
	gen, err := pipeline.NewGeminiLayoutGenerator(ctx, model)
	if err != nil {
		return fmt.Errorf("failed to create layout generator: %w", err)
	}
	l, err := gen.GenerateLayout(ctx, first.Text())
	if err != nil {
		return fmt.Errorf("failed to generate layout: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(l)
}

func dumpPage(w io.Writer, page pdftext.Page) {
	fmt.Fprintf(w, "=== page %d ===\n", page.Number())
	for _, line := range pdftext.GroupLines(page.Words(), lineTolerance) {
		fmt.Fprintf(w, "%7.1f |", line.Top)
		for _, word := range line.Words {
			fmt.Fprintf(w, " %s@%.0f-%.0f", word.Text, word.X0, word.X1)
		}
		fmt.Fprintln(w)
	}
}
