package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

// TesseractOCR rasterises pages with pdftoppm and reads them with the
// tesseract CLI. Both binaries must be on PATH.
type TesseractOCR struct {
	Language  string
	DPI       int
	Pdftoppm  string
	Tesseract string
}

var _ OCREngine = (*TesseractOCR)(nil)

// NewTesseractOCR creates an engine for the given tesseract language.
func NewTesseractOCR(language string, dpi int) *TesseractOCR {
	if language == "" {
		language = "por"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &TesseractOCR{Language: language, DPI: dpi, Pdftoppm: "pdftoppm", Tesseract: "tesseract"}
}

// Recognize returns one text page per rasterised PDF page.
func (t *TesseractOCR) Recognize(ctx context.Context, pdfBytes []byte) (pdftext.Document, error) {
	log := logger.FromContext(ctx)

	dir, err := os.MkdirTemp("", "statement-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("Recognize: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "statement.pdf")
	if err := os.WriteFile(input, pdfBytes, 0o600); err != nil {
		return nil, fmt.Errorf("Recognize: writing pdf: %w", err)
	}

	prefix := filepath.Join(dir, "page")
	if out, err := exec.CommandContext(ctx, t.Pdftoppm, "-r", strconv.Itoa(t.DPI), "-png", input, prefix).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("Recognize: pdftoppm: %w: %s", err, bytes.TrimSpace(out))
	}

	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("Recognize: listing pages: %w", err)
	}
	// pdftoppm zero-pads page numbers to a common width.
	sort.Strings(images)

	pages := make([]string, 0, len(images))
	for i, img := range images {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, t.Tesseract, img, "stdout", "-l", t.Language)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("Recognize: tesseract page %d: %w: %s", i+1, err, bytes.TrimSpace(stderr.Bytes()))
		}
		pages = append(pages, stdout.String())
		log.Debug().Int("page", i+1).Int("chars", stdout.Len()).Msg("Page recognised")
	}
	return pdftext.FromText(pages...), nil
}
