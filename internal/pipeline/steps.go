package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/extract"
	"github.com/dvloznov/statement-reconciler/internal/layout"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

// PipelineStep represents a single step in the extraction pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps for one file.
type PipelineState struct {
	File          string
	PDFBytes      []byte
	Document      pdftext.Document
	FirstPageText string
	Layout        *layout.BankLayout
	Extractor     extract.Extractor
	Extraction    *extract.Extraction
	Validation    domain.ValidationResult
	Method        domain.Method
	Transactions  []domain.UnifiedTransaction
}

// Step 1: ReadDocumentStep parses the statement and reads the first page text.
type ReadDocumentStep struct {
	Open DocumentOpener
}

func (s *ReadDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	open := s.Open
	if open == nil {
		open = OpenPDF
	}
	doc, err := open(state.PDFBytes)
	if err != nil {
		return fmt.Errorf("ReadDocumentStep: %w", err)
	}
	if doc.NumPages() == 0 {
		return fmt.Errorf("ReadDocumentStep: %w: %s has no pages", domain.ErrParse, state.File)
	}
	page, err := doc.Page(1)
	if err != nil {
		return fmt.Errorf("ReadDocumentStep: %w", err)
	}
	state.Document = doc
	state.FirstPageText = page.Text()
	return nil
}

// Step 2: DetectLayoutStep asks the registry which layout the first page matches.
type DetectLayoutStep struct {
	Registry *layout.Registry
}

func (s *DetectLayoutStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Layout = s.Registry.Detect(ctx, state.FirstPageText)
	if state.Layout != nil {
		log := logger.FromContext(ctx)
		log.Debug().Str("layout", state.Layout.Name).Msg("Layout detected")
	}
	return nil
}

// Step 3: GenerateLayoutStep requests a descriptor for unrecognised statements.
// A generated layout is persisted only once it passes validation. Fails with a
// LayoutNotIdentifiedError when the file still has no layout.
type GenerateLayoutStep struct {
	Registry  *layout.Registry
	Generator LayoutGenerator
}

func (s *GenerateLayoutStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Layout != nil {
		return nil
	}
	log := logger.FromContext(ctx)

	text := strings.TrimSpace(state.FirstPageText)
	if s.Generator != nil && len(text) > MinTextForGeneration {
		l, err := s.Generator.GenerateLayout(ctx, text)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("Layout generation failed")
		case l == nil:
			log.Warn().Msg("Layout generator returned nothing")
		default:
			if err := l.Validate(); err != nil {
				log.Warn().Err(err).Str("layout", l.Name).Msg("Rejected generated layout")
				break
			}
			if _, err := s.Registry.Save(ctx, l); err != nil {
				log.Warn().Err(err).Str("layout", l.Name).Msg("Could not persist generated layout")
			}
			state.Layout = l
		}
	}

	if state.Layout == nil {
		bank := extract.ScanAccount(state.FirstPageText).BankID
		return fmt.Errorf("GenerateLayoutStep: %w", domain.NewLayoutNotIdentified(state.File, bank, state.FirstPageText))
	}
	return nil
}

// Step 4: SelectExtractorStep picks the extractor for the detected layout.
type SelectExtractorStep struct {
	Options extract.Options
}

func (s *SelectExtractorStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Extractor = extract.ForLayout(state.Layout, s.Options)
	return nil
}

// Step 5: ExtractStep runs the extractor over every page.
type ExtractStep struct{}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := extract.Parse(ctx, state.Extractor, state.Document, state.File)
	if err != nil {
		return fmt.Errorf("ExtractStep: %w", err)
	}
	state.Extraction = res
	state.Method = domain.MethodText
	return nil
}

// Step 6: ValidateStep checks the extracted movements against the balances.
type ValidateStep struct {
	Tolerance decimal.Decimal
}

func (s *ValidateStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Validation = ValidateBalances(state.Extraction.Records, state.Extraction.Balance, s.Tolerance)
	return nil
}

// Step 7: AutoCorrectStep applies the sign flip and ghost recovery heuristics,
// in that order, to an invalid extraction.
type AutoCorrectStep struct {
	Tolerance decimal.Decimal
}

func (s *AutoCorrectStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Validation.Verdict != domain.VerdictInvalid || len(state.Extraction.Records) == 0 {
		return nil
	}
	ex := state.Extraction
	records, res, ok := AutoCorrect(ex.Records, ex.Discarded, ex.Balance, s.Tolerance)
	if !ok {
		return nil
	}
	ex.Records = records
	state.Validation = res
	state.Method = domain.MethodAutoCorrected

	log := logger.FromContext(ctx)
	log.Info().Str("correction", res.AutoCorrected).Str("verdict", string(res.Verdict)).Msg("Extraction auto-corrected")
	return nil
}

// Step 8: OCRFallbackStep rasterises and recognises the statement when the
// text layer produced no records, then re-runs the generic extractor.
type OCRFallbackStep struct {
	Engine    OCREngine
	Tolerance decimal.Decimal
}

func (s *OCRFallbackStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Extraction.Records) > 0 {
		return nil
	}
	if s.Engine == nil {
		return fmt.Errorf("OCRFallbackStep: %s: %w", state.File, domain.ErrExtractionEmpty)
	}

	log := logger.FromContext(ctx)
	log.Info().Msg("No transactions in text layer, running OCR")

	doc, err := s.Engine.Recognize(ctx, state.PDFBytes)
	if err != nil {
		return fmt.Errorf("OCRFallbackStep: recognise %s: %w", state.File, err)
	}
	res, err := extract.Parse(ctx, &extract.Generic{Layout: state.Layout}, doc, state.File)
	if err != nil {
		return fmt.Errorf("OCRFallbackStep: %w", err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("OCRFallbackStep: %s: %w after OCR", state.File, domain.ErrExtractionEmpty)
	}
	if res.Balance.Start == nil {
		res.Balance.Start = state.Extraction.Balance.Start
	}
	if res.Balance.End == nil {
		res.Balance.End = state.Extraction.Balance.End
	}
	res.Account = state.Extraction.Account

	state.Extraction = res
	state.Method = domain.MethodOCR
	state.Validation = ValidateBalances(res.Records, res.Balance, s.Tolerance)
	return nil
}

// Step 9: CanonicalizeStep converts the records into UnifiedTransactions.
type CanonicalizeStep struct{}

func (s *CanonicalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Transactions = Canonicalize(state.Extraction.Records)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
