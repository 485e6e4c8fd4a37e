package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/config"
)

// Options tune both reconciliation phases.
type Options struct {
	DateToleranceDays  int
	AmountTolerance    decimal.Decimal
	MaxCombinationSize int
	CandidateCap       int
	SubsetTolerance    decimal.Decimal
	DedupPolicy        DedupPolicy
	// FilterToLedgerPeriod drops bank rows outside the ledger's date range
	// before matching.
	FilterToLedgerPeriod bool
	// SameSignOnly restricts combination candidates to ledger rows with the
	// bank row's sign.
	SameSignOnly bool
}

// DefaultOptions returns τ=3 days, K=4, 20 candidates and cent tolerances.
func DefaultOptions() Options {
	return Options{
		DateToleranceDays:  3,
		AmountTolerance:    decimal.RequireFromString("0.01"),
		MaxCombinationSize: 4,
		CandidateCap:       20,
		SubsetTolerance:    decimal.RequireFromString("0.02"),
		DedupPolicy:        DedupIdentity,
	}
}

// OptionsFromConfig maps the application config onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.DateToleranceDays = cfg.DateToleranceDays
	opts.AmountTolerance = decimal.NewFromFloat(cfg.AmountTolerance)
	opts.MaxCombinationSize = cfg.MaxCombinationSize
	opts.CandidateCap = cfg.CombinationCandidateCap
	opts.SubsetTolerance = decimal.NewFromFloat(cfg.SubsetTolerance)
	opts.DedupPolicy = DedupPolicy(cfg.DedupPolicy)
	opts.SameSignOnly = cfg.CombinationSameSign
	return opts
}
