package reconcile

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/domain"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func row(side domain.Side, date time.Time, amount, memo string) domain.Row {
	return domain.Row{Date: date, Amount: decimal.RequireFromString(amount), Memo: memo, Side: side}
}

func ledgerRow(date time.Time, amount, memo string) domain.Row {
	return row(domain.SideLedger, date, amount, memo)
}

func bankRow(date time.Time, amount, memo string) domain.Row {
	return row(domain.SideBank, date, amount, memo)
}

func intPtr(i int) *int { return &i }

func scenarioFour() ([]domain.Row, []domain.Row) {
	ledger := []domain.Row{
		ledgerRow(day(1, 1), "100.00", "a"),
		ledgerRow(day(1, 10), "200.50", "b"),
		ledgerRow(day(1, 20), "300.00", "c"),
	}
	bank := []domain.Row{
		bankRow(day(1, 1), "100.00", "A"),
		bankRow(day(1, 12), "200.50", "B"),
		bankRow(day(1, 25), "500.00", "C"),
	}
	return ledger, bank
}

func TestReconcile_ExactAndTolerant(t *testing.T) {
	ledger, bank := scenarioFour()

	res := Reconcile(context.Background(), ledger, bank, DefaultOptions())

	if len(res.Groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d: %+v", len(res.Groups), res.Groups)
	}
	if res.Groups[0].Kind != domain.MatchExact || res.Groups[0].ID != "S-0" {
		t.Errorf("Expected exact S-0 first, got %+v", res.Groups[0])
	}
	if res.Groups[1].Kind != domain.MatchTolerant || res.Groups[1].ID != "S-1" {
		t.Errorf("Expected tolerant S-1 second, got %+v", res.Groups[1])
	}

	ul, ub := res.UnmatchedLedger(), res.UnmatchedBank()
	if len(ul) != 1 || !ul[0].Amount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected unmatched ledger 300, got %+v", ul)
	}
	if len(ub) != 1 || !ub[0].Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected unmatched bank 500, got %+v", ub)
	}
	if len(res.MatchedLedger()) != 2 || len(res.MatchedBank()) != 2 {
		t.Errorf("Expected 2 matched rows per side, got %d and %d", len(res.MatchedLedger()), len(res.MatchedBank()))
	}
}

func TestReconcile_StrictSign(t *testing.T) {
	ledger := []domain.Row{ledgerRow(day(1, 1), "-100", "pagamento")}
	bank := []domain.Row{bankRow(day(1, 1), "100", "credito")}

	res := Reconcile(context.Background(), ledger, bank, DefaultOptions())
	if len(res.Groups) != 0 {
		t.Errorf("Expected a credit not to reconcile a debit, got %+v", res.Groups)
	}
}

func TestReconcile_TolerantPrefersClosestThenFirst(t *testing.T) {
	tests := []struct {
		name     string
		bank     []domain.Row
		wantDate time.Time
	}{
		{
			name:     "closest day wins",
			bank:     []domain.Row{bankRow(day(1, 7), "50", "x"), bankRow(day(1, 11), "50", "y")},
			wantDate: day(1, 11),
		},
		{
			name:     "first encountered on ties",
			bank:     []domain.Row{bankRow(day(1, 12), "50", "y"), bankRow(day(1, 8), "50", "x")},
			wantDate: day(1, 8),
		},
		{
			name:     "outside tolerance",
			bank:     []domain.Row{bankRow(day(1, 14), "50", "z")},
			wantDate: time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := []domain.Row{ledgerRow(day(1, 10), "50", "l")}
			res := Reconcile(context.Background(), ledger, tt.bank, DefaultOptions())
			matched := res.MatchedBank()
			if tt.wantDate.IsZero() {
				if len(matched) != 0 {
					t.Errorf("Expected no match, got %+v", matched)
				}
				return
			}
			if len(matched) != 1 || !matched[0].Date.Equal(tt.wantDate) {
				t.Errorf("Expected match on %s, got %+v", tt.wantDate.Format("2006-01-02"), matched)
			}
		})
	}
}

func TestMatchCombinations(t *testing.T) {
	ledger := []domain.Row{
		ledgerRow(day(5, 1), "140.00", "fee A"),
		ledgerRow(day(5, 2), "10.00", "fee B"),
	}
	bank := []domain.Row{bankRow(day(5, 2), "150.00", "consolidated")}

	res := Reconcile(context.Background(), ledger, bank, DefaultOptions())
	groups := MatchCombinations(context.Background(), res, DefaultOptions())

	if len(groups) != 1 {
		t.Fatalf("Expected 1 combinatorial group, got %d", len(groups))
	}
	g := groups[0]
	if g.ID != "C-0" || g.Kind != domain.MatchCombinatorial {
		t.Errorf("Unexpected group %+v", g)
	}
	if len(g.Bank) != 1 || len(g.Ledger) != 2 {
		t.Errorf("Expected 1 bank and 2 ledger rows, got %+v", g)
	}
	if len(res.UnmatchedLedger()) != 0 || len(res.UnmatchedBank()) != 0 {
		t.Errorf("Expected no residual rows")
	}
	assertSound(t, res, DefaultOptions())
}

func TestMatchCombinations_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		ledger []domain.Row
		bank   domain.Row
		want   int
	}{
		{
			name:   "row outside date tolerance",
			ledger: []domain.Row{ledgerRow(day(5, 1), "140", "a"), ledgerRow(day(5, 10), "10", "b")},
			bank:   bankRow(day(5, 2), "150", "x"),
			want:   0,
		},
		{
			name:   "row larger than the bank amount",
			ledger: []domain.Row{ledgerRow(day(5, 1), "200", "a"), ledgerRow(day(5, 1), "-50", "b")},
			bank:   bankRow(day(5, 2), "150", "x"),
			want:   0,
		},
		{
			name:   "debits combine into a debit",
			ledger: []domain.Row{ledgerRow(day(5, 1), "-100", "a"), ledgerRow(day(5, 2), "-25", "b"), ledgerRow(day(5, 2), "-25", "c")},
			bank:   bankRow(day(5, 2), "-150", "x"),
			want:   1,
		},
		{
			name: "subset larger than K",
			ledger: []domain.Row{
				ledgerRow(day(5, 1), "10", "a"), ledgerRow(day(5, 1), "10", "b"), ledgerRow(day(5, 1), "10", "c"),
				ledgerRow(day(5, 1), "10", "d"), ledgerRow(day(5, 1), "10", "e"),
			},
			bank: bankRow(day(5, 2), "50", "x"),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			res := Reconcile(context.Background(), tt.ledger, []domain.Row{tt.bank}, opts)
			groups := MatchCombinations(context.Background(), res, opts)
			if len(groups) != tt.want {
				t.Errorf("Expected %d groups, got %d", tt.want, len(groups))
			}
			assertSound(t, res, opts)
		})
	}
}

func TestMatchCombinations_SignFilter(t *testing.T) {
	ledger := []domain.Row{
		ledgerRow(day(5, 1), "140.00", "a"),
		ledgerRow(day(5, 2), "10.00", "b"),
	}
	bank := []domain.Row{bankRow(day(5, 2), "-150.00", "x")}

	tests := []struct {
		name         string
		sameSignOnly bool
		want         int
	}{
		{"absolute amounts by default", false, 1},
		{"same sign only", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.SameSignOnly = tt.sameSignOnly
			res := Reconcile(context.Background(), ledger, bank, opts)
			groups := MatchCombinations(context.Background(), res, opts)
			if len(groups) != tt.want {
				t.Errorf("Expected %d groups, got %d", tt.want, len(groups))
			}
			assertSound(t, res, opts)
		})
	}
}

func TestNextCombination(t *testing.T) {
	idx := []int{0, 1}
	var seen [][]int
	for {
		seen = append(seen, append([]int(nil), idx...))
		if !nextCombination(idx, 4) {
			break
		}
	}
	want := [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("Expected %v, got %v", want, seen)
	}
}

// assertSound checks disjointness and the combinatorial sum and date bounds.
func assertSound(t *testing.T, res *Result, opts Options) {
	t.Helper()
	usedL := make(map[int]string)
	usedB := make(map[int]string)
	for _, g := range res.Groups {
		for _, i := range g.Ledger {
			if prev, ok := usedL[i]; ok {
				t.Errorf("Ledger row %d in groups %s and %s", i, prev, g.ID)
			}
			usedL[i] = g.ID
		}
		for _, i := range g.Bank {
			if prev, ok := usedB[i]; ok {
				t.Errorf("Bank row %d in groups %s and %s", i, prev, g.ID)
			}
			usedB[i] = g.ID
		}
		if g.Kind != domain.MatchCombinatorial {
			continue
		}
		b := res.Bank[g.Bank[0]]
		total := decimal.Zero
		for _, i := range g.Ledger {
			l := res.Ledger[i]
			total = total.Add(l.Amount.Abs())
			if dayGap(l.Date, b.Date) > opts.DateToleranceDays {
				t.Errorf("Group %s member outside date tolerance", g.ID)
			}
		}
		if !total.Sub(b.Amount.Abs()).Abs().LessThan(opts.SubsetTolerance) {
			t.Errorf("Group %s sums to %s, bank %s", g.ID, total, b.Amount)
		}
	}
}

func TestConsolidate_IdentityDedupIsIdempotent(t *testing.T) {
	file := []domain.Row{
		{Date: day(3, 1), Amount: decimal.NewFromInt(10), Memo: "PIX", SourceFile: "a.pdf", InternalID: intPtr(0)},
		{Date: day(3, 1), Amount: decimal.NewFromInt(10), Memo: "PIX", SourceFile: "a.pdf", InternalID: intPtr(1)},
		{Date: day(3, 2), Amount: decimal.NewFromInt(-5), Memo: "TARIFA", SourceFile: "a.pdf", InternalID: intPtr(2)},
	}

	once := Consolidate(DedupIdentity, file)
	thrice := Consolidate(DedupIdentity, file, file, file)

	if len(once) != 3 {
		t.Errorf("Expected same-day repeats to survive, got %d rows", len(once))
	}
	if len(thrice) != len(once) {
		t.Errorf("Expected %d rows after re-ingesting, got %d", len(once), len(thrice))
	}
}

func TestConsolidate_Policies(t *testing.T) {
	file := []domain.Row{
		{Date: day(3, 2), Amount: decimal.NewFromInt(10), Memo: " PIX ", SourceFile: "a.pdf", InternalID: intPtr(0)},
		{Date: day(3, 2), Amount: decimal.NewFromInt(10), Memo: "PIX", SourceFile: "a.pdf", InternalID: intPtr(1)},
		{Date: day(3, 1), Amount: decimal.NewFromInt(7), Memo: "manual"},
		{Date: day(3, 1), Amount: decimal.NewFromInt(7), Memo: "manual"},
	}

	tests := []struct {
		policy DedupPolicy
		want   int
	}{
		{DedupIdentity, 3},
		{DedupLegacy, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			got := Consolidate(tt.policy, file)
			if len(got) != tt.want {
				t.Fatalf("Expected %d rows, got %d", tt.want, len(got))
			}
			if !got[0].Date.Equal(day(3, 1)) {
				t.Errorf("Expected rows sorted by date, first is %s", got[0].Date)
			}
			for _, r := range got {
				if r.Memo != "PIX" && r.Memo != "manual" {
					t.Errorf("Expected trimmed memo, got %q", r.Memo)
				}
			}
		})
	}
}

func TestBuildView_Ordering(t *testing.T) {
	ledger, bank := scenarioFour()
	res := Reconcile(context.Background(), ledger, bank, DefaultOptions())

	view := BuildView(res)

	want := []struct {
		source domain.Side
		status Status
		group  string
	}{
		{domain.SideLedger, StatusMatched, "S-0"},
		{domain.SideBank, StatusMatched, "S-0"},
		{domain.SideLedger, StatusMatched, "S-1"},
		{domain.SideBank, StatusMatched, "S-1"},
		{domain.SideLedger, StatusUnmatchedLedger, "-1"},
		{domain.SideBank, StatusUnmatchedBank, "-1"},
	}
	if len(view) != len(want) {
		t.Fatalf("Expected %d rows, got %d", len(want), len(view))
	}
	for i, w := range want {
		v := view[i]
		if v.Source != w.source || v.Status != w.status || v.GroupID != w.group {
			t.Errorf("Row %d: expected %s/%s/%s, got %s/%s/%s", i, w.source, w.status, w.group, v.Source, v.Status, v.GroupID)
		}
	}
	if !view[3].ClusterDate.Equal(day(1, 10)) {
		t.Errorf("Expected tolerant bank row clustered on 2025-01-10, got %s", view[3].ClusterDate)
	}
}

func TestGroupLess(t *testing.T) {
	if !groupLess("S-2", "S-10") {
		t.Error("Expected S-2 before S-10")
	}
	if !groupLess("-1", "C-0") || !groupLess("C-5", "S-0") {
		t.Error("Expected unmatched, then combinatorial, then simple groups")
	}
}

func TestBuildReport(t *testing.T) {
	ledger, bank := scenarioFour()
	res := Reconcile(context.Background(), ledger, bank, DefaultOptions())
	initial := unmatchedGap(res)
	MatchCombinations(context.Background(), res, DefaultOptions())

	rep := BuildReport(res, initial)
	m := rep.Metrics

	if m.LedgerCount != 3 || m.BankCount != 3 {
		t.Errorf("Expected 3/3 rows, got %d/%d", m.LedgerCount, m.BankCount)
	}
	if m.Matched != 4 || m.Combinatorial != 0 || m.CombinatorialCount != 0 {
		t.Errorf("Unexpected match counts: %+v", m)
	}
	if m.UnmatchedLedger != 1 || m.UnmatchedBank != 1 {
		t.Errorf("Expected one unmatched row per side, got %+v", m)
	}
	if !m.InitialGap.Equal(decimal.NewFromInt(200)) || !m.FinalGap.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected gaps of 200, got %s and %s", m.InitialGap, m.FinalGap)
	}

	if len(rep.ChartSeries) != 5 {
		t.Fatalf("Expected 5 chart days, got %d", len(rep.ChartSeries))
	}
	first := rep.ChartSeries[0]
	if !first.Date.Equal(day(1, 1)) || !first.LedgerTotal.Equal(decimal.NewFromInt(100)) || !first.BankTotal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Unexpected first chart point %+v", first)
	}
}

func TestEngine_Run(t *testing.T) {
	ledger := []domain.LedgerRow{
		{Date: day(5, 1), Amount: decimal.RequireFromString("140.00"), Description: "fee A", Source: "razao.csv", InternalID: intPtr(0)},
		{Date: day(5, 2), Amount: decimal.RequireFromString("10.00"), Description: "fee B", Source: "razao.csv", InternalID: intPtr(1)},
	}
	statement := domain.FileResult{
		File: "extrato.pdf",
		Transactions: []domain.UnifiedTransaction{
			{Date: day(5, 2), Amount: decimal.RequireFromString("150.00"), Memo: "consolidated", SourceFile: "extrato.pdf", InternalID: intPtr(0)},
		},
	}
	failed := domain.FileResult{File: "quebrado.pdf", Method: domain.MethodFailed, Error: "layout not identified"}

	engine := NewEngine(DefaultOptions())
	rep, res := engine.Run(context.Background(), ledger, []domain.FileResult{statement, statement, failed})

	if rep.Metrics.BankCount != 1 {
		t.Errorf("Expected the duplicated statement to be consolidated, got %d bank rows", rep.Metrics.BankCount)
	}
	if rep.Metrics.CombinatorialCount != 1 || rep.Metrics.Combinatorial != 3 {
		t.Errorf("Expected one combinatorial group of 3 rows, got %+v", rep.Metrics)
	}
	if !rep.Metrics.FinalGap.IsZero() {
		t.Errorf("Expected no final gap, got %s", rep.Metrics.FinalGap)
	}
	if !rep.Metrics.InitialGap.IsZero() {
		t.Errorf("Expected initial gap 0 (140+10-150), got %s", rep.Metrics.InitialGap)
	}

	// Same inputs give the same group assignment.
	_, again := engine.Run(context.Background(), ledger, []domain.FileResult{statement, statement, failed})
	if !reflect.DeepEqual(res.Groups, again.Groups) {
		t.Errorf("Expected deterministic groups, got %+v and %+v", res.Groups, again.Groups)
	}
}

func TestEngine_FilterToLedgerPeriod(t *testing.T) {
	ledger := []domain.LedgerRow{
		{Date: day(1, 1), Amount: decimal.NewFromInt(100), Description: "a"},
		{Date: day(1, 20), Amount: decimal.NewFromInt(300), Description: "c"},
	}
	statement := domain.FileResult{Transactions: []domain.UnifiedTransaction{
		{Date: day(1, 1), Amount: decimal.NewFromInt(100), Memo: "A"},
		{Date: day(1, 25), Amount: decimal.NewFromInt(500), Memo: "C"},
	}}

	opts := DefaultOptions()
	opts.FilterToLedgerPeriod = true
	rep, _ := NewEngine(opts).Run(context.Background(), ledger, []domain.FileResult{statement})

	if rep.Metrics.BankCount != 1 {
		t.Errorf("Expected bank rows after the ledger period to be dropped, got %d", rep.Metrics.BankCount)
	}
}
