package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/logger"
)

// MatchCombinations runs the many-to-one phase on the rows left unmatched
// in res. For each unmatched bank row it searches subsets of 2..K unmatched
// ledger rows within the date tolerance whose absolute amounts add up to
// the bank amount. With opts.SameSignOnly only rows with the bank row's
// sign are candidates. New groups are appended to res and returned.
func MatchCombinations(ctx context.Context, res *Result, opts Options) []domain.MatchGroup {
	log := logger.FromContext(ctx)
	var groups []domain.MatchGroup
	seq := 0

	for bi, b := range res.Bank {
		if isMatched(b) {
			continue
		}
		target := b.Amount.Abs()
		ceiling := target.Add(opts.AmountTolerance)

		// Ledger rows are already in (date, amount) order.
		var candidates []int
		for li, l := range res.Ledger {
			if len(candidates) == opts.CandidateCap {
				break
			}
			if isMatched(l) {
				continue
			}
			if opts.SameSignOnly && l.Amount.Sign() != b.Amount.Sign() {
				continue
			}
			if dayGap(l.Date, b.Date) > opts.DateToleranceDays || l.Amount.Abs().GreaterThan(ceiling) {
				continue
			}
			candidates = append(candidates, li)
		}
		if len(candidates) < 2 {
			continue
		}

		subset := findSubset(res.Ledger, candidates, target, opts)
		if subset == nil {
			continue
		}

		id := fmt.Sprintf("C-%d", seq)
		seq++
		res.Bank[bi].GroupID, res.Bank[bi].Kind = id, domain.MatchCombinatorial
		for _, li := range subset {
			res.Ledger[li].GroupID, res.Ledger[li].Kind = id, domain.MatchCombinatorial
		}
		g := domain.MatchGroup{ID: id, Kind: domain.MatchCombinatorial, Bank: []int{bi}, Ledger: subset}
		groups = append(groups, g)
		res.Groups = append(res.Groups, g)

		log.Debug().Str("group", id).Int("size", len(subset)).Str("amount", b.Amount.StringFixed(2)).Msg("Combinatorial match")
	}
	return groups
}

// findSubset enumerates index combinations of size 2..K in lexicographic
// order and returns the first whose absolute sum is within tolerance.
func findSubset(ledger []domain.Row, candidates []int, target decimal.Decimal, opts Options) []int {
	maxSize := opts.MaxCombinationSize
	if maxSize > len(candidates) {
		maxSize = len(candidates)
	}
	for r := 2; r <= maxSize; r++ {
		idx := make([]int, r)
		for i := range idx {
			idx[i] = i
		}
		for {
			total := decimal.Zero
			for _, i := range idx {
				total = total.Add(ledger[candidates[i]].Amount.Abs())
			}
			if total.Sub(target).Abs().LessThan(opts.SubsetTolerance) {
				out := make([]int, r)
				for k, i := range idx {
					out[k] = candidates[i]
				}
				return out
			}
			if !nextCombination(idx, len(candidates)) {
				break
			}
		}
	}
	return nil
}

// nextCombination advances idx to the next r-combination of n elements.
func nextCombination(idx []int, n int) bool {
	r := len(idx)
	i := r - 1
	for i >= 0 && idx[i] == n-r+i {
		i--
	}
	if i < 0 {
		return false
	}
	idx[i]++
	for j := i + 1; j < r; j++ {
		idx[j] = idx[j-1] + 1
	}
	return true
}

func dayGap(a, b time.Time) int {
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}
