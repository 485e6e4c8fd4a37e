package pipeline

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
)

// Auto-correction labels recorded on ValidationResult.AutoCorrected.
const (
	CorrectionSignFlip = "sign-flip"
	CorrectionGhost    = "ghost-recovery"
)

// ValidateBalances checks opening + sum(amounts) = closing within tol. The
// reported gap is closing - (opening + sum), i.e. what the records are missing.
func ValidateBalances(records []domain.RawRecord, bal domain.BalanceInfo, tol decimal.Decimal) domain.ValidationResult {
	if bal.Start == nil || bal.End == nil {
		return domain.ValidationResult{
			Verdict: domain.VerdictIndeterminate,
			Message: "opening or closing balance not found",
		}
	}

	gap := balanceGap(records, bal)
	res := domain.ValidationResult{Gap: &gap}
	if gap.Abs().LessThan(tol) {
		res.Verdict = domain.VerdictValid
		res.Message = "balances match"
		return res
	}
	res.Verdict = domain.VerdictInvalid
	res.Message = fmt.Sprintf("opening %s + movements %s != closing %s (gap %s)",
		brnum.Format(*bal.Start), brnum.Format(sum(records)), brnum.Format(*bal.End), brnum.Format(gap))
	return res
}

func balanceGap(records []domain.RawRecord, bal domain.BalanceInfo) decimal.Decimal {
	return bal.End.Sub(bal.Start.Add(sum(records)))
}

func sum(records []domain.RawRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}

// FlipSign looks for the first record whose sign inversion closes the gap and
// flips it in place. It returns the index of the flipped record or -1.
func FlipSign(records []domain.RawRecord, gap, tol decimal.Decimal) int {
	for i, r := range records {
		// Flipping r moves the sum by -2*amount.
		if gap.Sub(r.Amount.Mul(decimal.NewFromInt(-2))).Abs().LessThan(tol) {
			records[i].Amount = r.Amount.Neg()
			return i
		}
	}
	return -1
}

// RecoverGhost returns the index of the first discarded row whose amount
// equals the gap, or -1.
func RecoverGhost(discarded []domain.RawRecord, gap, tol decimal.Decimal) int {
	for i, r := range discarded {
		if gap.Sub(r.Amount).Abs().LessThan(tol) {
			return i
		}
	}
	return -1
}

// AutoCorrect tries the sign flip and then the ghost recovery on an invalid
// result. Records may be modified or extended; the returned validation
// reflects the corrected set. ok is false when neither heuristic applied.
func AutoCorrect(records []domain.RawRecord, discarded []domain.RawRecord, bal domain.BalanceInfo, tol decimal.Decimal) ([]domain.RawRecord, domain.ValidationResult, bool) {
	if bal.Start == nil || bal.End == nil {
		return records, ValidateBalances(records, bal, tol), false
	}
	gap := balanceGap(records, bal)

	if i := FlipSign(records, gap, tol); i >= 0 {
		res := ValidateBalances(records, bal, tol)
		res.AutoCorrected = CorrectionSignFlip
		res.Message = fmt.Sprintf("balances match after flipping the sign of %s %s",
			records[i].Date.Format("02/01/2006"), brnum.Format(records[i].Amount))
		return records, res, true
	}

	if i := RecoverGhost(discarded, gap, tol); i >= 0 {
		ghost := discarded[i]
		records = insertByDate(records, ghost)
		res := ValidateBalances(records, bal, tol)
		res.AutoCorrected = CorrectionGhost
		res.Message = fmt.Sprintf("balances match after restoring %q %s",
			ghost.Memo, brnum.Format(ghost.Amount))
		return records, res, true
	}

	return records, ValidateBalances(records, bal, tol), false
}

// insertByDate places r after the last record dated on or before it and
// renumbers the file sequence.
func insertByDate(records []domain.RawRecord, r domain.RawRecord) []domain.RawRecord {
	base := 0
	if n := len(records); n > 0 {
		base = records[0].InternalID
		r.SourceFile = records[n-1].SourceFile
	}
	pos := 0
	for k, rec := range records {
		if !rec.Date.After(r.Date) {
			pos = k + 1
		}
	}
	records = slices.Insert(records, pos, r)
	for k := range records {
		records[k].InternalID = base + k
	}
	return records
}
