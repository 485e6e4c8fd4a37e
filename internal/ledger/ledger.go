package ledger

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

// Parse dispatches on the file extension: .csv exports or .pdf ledgers.
func Parse(ctx context.Context, name string, data []byte, opts Options) (*domain.LedgerResult, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ParseCSV(ctx, bytes.NewReader(data), name, opts)
	case ".pdf":
		doc, err := pdftext.OpenBytes(data)
		if err != nil {
			return nil, fmt.Errorf("Parse: %s: %w", name, err)
		}
		return ParsePDF(ctx, doc, name)
	}
	return nil, fmt.Errorf("Parse: %w: unsupported ledger file %s", domain.ErrParse, name)
}
