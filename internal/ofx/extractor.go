package ofx

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
)

// StatementProcessor turns the bytes of a statement file into a FileResult.
type StatementProcessor interface {
	ProcessBytes(ctx context.Context, name string, data []byte) domain.FileResult
}

// Extractor reads .ofx and .qfx files itself and hands every other file to
// the PDF processor.
type Extractor struct {
	PDF StatementProcessor
}

var _ StatementProcessor = (*Extractor)(nil)

// IsOFX reports whether name carries an OFX extension.
func IsOFX(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ofx", ".qfx":
		return true
	}
	return false
}

func (e *Extractor) ProcessBytes(ctx context.Context, name string, data []byte) domain.FileResult {
	if !IsOFX(name) {
		return e.PDF.ProcessBytes(ctx, name, data)
	}
	res, err := Parse(ctx, name, data)
	if err != nil {
		return pipeline.FailedResult(name, err)
	}
	return res
}
