package pipeline

import (
	"context"

	"github.com/dvloznov/statement-reconciler/internal/layout"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

// LayoutGenerator proposes a layout descriptor for a statement no registered
// layout recognises. Implementations are best effort: the pipeline validates
// whatever they return before using it.
type LayoutGenerator interface {
	// GenerateLayout analyses the first page text and returns a descriptor.
	GenerateLayout(ctx context.Context, text string) (*layout.BankLayout, error)
}

// OCREngine turns an image-only statement into text pages.
type OCREngine interface {
	Recognize(ctx context.Context, pdfBytes []byte) (pdftext.Document, error)
}

// DocumentOpener parses raw statement bytes into pages.
type DocumentOpener func(data []byte) (pdftext.Document, error)

// OpenPDF is the default DocumentOpener.
func OpenPDF(data []byte) (pdftext.Document, error) {
	doc, err := pdftext.OpenBytes(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
