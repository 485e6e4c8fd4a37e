package pipeline

import "github.com/shopspring/decimal"

// Defaults for statement processing. Processor options and config override them.
const (
	// DefaultModelName is the Gemini model asked to propose layout descriptors.
	DefaultModelName = "gemini-2.5-flash"

	// MinTextForGeneration is the first page length below which a statement
	// is not worth sending to the layout generator.
	MinTextForGeneration = 50

	// maxPromptSample caps the statement text embedded in the generator prompt.
	maxPromptSample = 4000
)

// DefaultBalanceTolerance is the largest gap accepted as a balanced statement.
var DefaultBalanceTolerance = decimal.RequireFromString("0.02")
