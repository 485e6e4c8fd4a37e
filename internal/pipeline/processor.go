package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/config"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/extract"
	"github.com/dvloznov/statement-reconciler/internal/layout"
	"github.com/dvloznov/statement-reconciler/internal/logger"
)

// Processor turns statement files into FileResults. It is safe for
// concurrent use: every call builds a fresh pipeline state.
type Processor struct {
	registry  *layout.Registry
	generator LayoutGenerator
	ocr       OCREngine
	open      DocumentOpener
	options   extract.Options
	tolerance decimal.Decimal
}

// Option configures a Processor.
type Option func(*Processor)

// WithLayoutGenerator enables descriptor generation for unknown statements.
func WithLayoutGenerator(g LayoutGenerator) Option {
	return func(p *Processor) { p.generator = g }
}

// WithOCR enables the OCR fallback for statements without a text layer.
func WithOCR(e OCREngine) Option {
	return func(p *Processor) { p.ocr = e }
}

// WithOpener replaces the PDF parser, mainly for tests.
func WithOpener(open DocumentOpener) Option {
	return func(p *Processor) { p.open = open }
}

// WithExtractOptions sets the bank specific extractor policies.
func WithExtractOptions(o extract.Options) Option {
	return func(p *Processor) { p.options = o }
}

// WithTolerance sets the balance validation tolerance.
func WithTolerance(tol decimal.Decimal) Option {
	return func(p *Processor) { p.tolerance = tol }
}

// NewProcessor creates a Processor detecting layouts from registry.
func NewProcessor(registry *layout.Registry, opts ...Option) *Processor {
	p := &Processor{
		registry:  registry,
		open:      OpenPDF,
		tolerance: DefaultBalanceTolerance,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewProcessorFromConfig wires the generator and OCR engine the
// configuration enables.
func NewProcessorFromConfig(ctx context.Context, cfg *config.Config, registry *layout.Registry) (*Processor, error) {
	opts := []Option{
		WithTolerance(decimal.NewFromFloat(cfg.BalanceTolerance)),
		WithExtractOptions(extract.Options{
			StoneBalancePolicy:  cfg.StoneBalancePolicy,
			BradescoTotalPolicy: cfg.BradescoTotalPolicy,
			RendeFacil:          cfg.BBRendeFacil,
		}),
	}
	if cfg.LLM.Enabled {
		gen, err := NewGeminiLayoutGenerator(ctx, cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("NewProcessorFromConfig: %w", err)
		}
		opts = append(opts, WithLayoutGenerator(gen))
	}
	if cfg.OCR.Enabled {
		opts = append(opts, WithOCR(NewTesseractOCR(cfg.OCR.Language, cfg.OCR.DPI)))
	}
	return NewProcessor(registry, opts...), nil
}

// newExtractionPipeline creates the standard 9-step pipeline.
func (p *Processor) newExtractionPipeline() *Pipeline {
	return NewPipeline(
		&ReadDocumentStep{Open: p.open},
		&DetectLayoutStep{Registry: p.registry},
		&GenerateLayoutStep{Registry: p.registry, Generator: p.generator},
		&SelectExtractorStep{Options: p.options},
		&ExtractStep{},
		&ValidateStep{Tolerance: p.tolerance},
		&AutoCorrectStep{Tolerance: p.tolerance},
		&OCRFallbackStep{Engine: p.ocr, Tolerance: p.tolerance},
		&CanonicalizeStep{},
	)
}

// ProcessFile reads and processes the statement at path.
func (p *Processor) ProcessFile(ctx context.Context, path string) domain.FileResult {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return FailedResult(name, fmt.Errorf("ProcessFile: %w: %v", domain.ErrParse, err))
	}
	return p.ProcessBytes(ctx, name, data)
}

// ProcessBytes processes an in-memory statement. Failures are reported on
// the returned result; a failed file carries no transactions.
func (p *Processor) ProcessBytes(ctx context.Context, name string, data []byte) domain.FileResult {
	ctx = logger.WithFile(ctx, name)
	log := logger.FromContext(ctx)

	state := &PipelineState{File: name, PDFBytes: data}
	if err := p.newExtractionPipeline().Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Statement extraction failed")
		res := FailedResult(name, err)
		if state.Layout != nil {
			res.Layout = state.Layout.Name
		}
		if state.Extraction != nil {
			res.AccountInfo = state.Extraction.Account
			res.Balance = state.Extraction.Balance
		}
		return res
	}

	ex := state.Extraction
	log.Info().
		Str("layout", state.Layout.Name).
		Str("method", string(state.Method)).
		Int("transactions", len(state.Transactions)).
		Str("verdict", string(state.Validation.Verdict)).
		Msg("Statement extracted")

	return domain.FileResult{
		File:         name,
		Layout:       state.Layout.Name,
		Method:       state.Method,
		Transactions: state.Transactions,
		AccountInfo:  ex.Account,
		Balance:      ex.Balance,
		Validation:   state.Validation,
	}
}

// FailedResult is the result reported for a file that could not be extracted.
func FailedResult(name string, err error) domain.FileResult {
	return domain.FileResult{
		File:         name,
		Method:       domain.MethodFailed,
		Transactions: []domain.UnifiedTransaction{},
		Validation:   domain.ValidationResult{Verdict: domain.VerdictIndeterminate, Message: "extraction failed"},
		Error:        err.Error(),
	}
}
