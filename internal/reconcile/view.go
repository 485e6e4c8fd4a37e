package reconcile

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/domain"
)

// Status is how a row ended up after reconciliation.
type Status string

const (
	StatusMatched              Status = "matched"
	StatusMatchedCombinatorial Status = "matched-combinatorial"
	StatusUnmatchedLedger      Status = "unmatched-ledger"
	StatusUnmatchedBank        Status = "unmatched-bank"
)

// ViewRow is one transaction of the unified timeline.
type ViewRow struct {
	Date        time.Time       `json:"date"`
	ClusterDate time.Time       `json:"cluster_date"`
	Amount      decimal.Decimal `json:"amount"`
	Memo        string          `json:"memo"`
	Source      domain.Side     `json:"source"`
	Status      Status          `json:"status"`
	GroupID     string          `json:"group_id"`
	SourceFile  string          `json:"source_file,omitempty"`
}

// BuildView flattens a reconciliation into one timeline. Group members sit
// together at their group's earliest date, ledger rows before bank rows.
func BuildView(res *Result) []ViewRow {
	var rows []ViewRow
	add := func(r domain.Row) {
		v := ViewRow{
			Date:       r.Date,
			Amount:     r.Amount,
			Memo:       r.Memo,
			Source:     r.Side,
			GroupID:    domain.UnmatchedGroup,
			SourceFile: r.SourceFile,
		}
		switch {
		case !isMatched(r) && r.Side == domain.SideLedger:
			v.Status = StatusUnmatchedLedger
		case !isMatched(r):
			v.Status = StatusUnmatchedBank
		case r.Kind == domain.MatchCombinatorial:
			v.Status, v.GroupID = StatusMatchedCombinatorial, r.GroupID
		default:
			v.Status, v.GroupID = StatusMatched, r.GroupID
		}
		rows = append(rows, v)
	}
	for _, r := range res.Ledger {
		r.Side = domain.SideLedger
		add(r)
	}
	for _, r := range res.Bank {
		r.Side = domain.SideBank
		add(r)
	}

	clusters := make(map[string]time.Time)
	for _, v := range rows {
		if v.GroupID == domain.UnmatchedGroup {
			continue
		}
		if d, ok := clusters[v.GroupID]; !ok || v.Date.Before(d) {
			clusters[v.GroupID] = v.Date
		}
	}
	for i := range rows {
		rows[i].ClusterDate = rows[i].Date
		if d, ok := clusters[rows[i].GroupID]; ok {
			rows[i].ClusterDate = d
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.ClusterDate.Equal(b.ClusterDate) {
			return a.ClusterDate.Before(b.ClusterDate)
		}
		if a.GroupID != b.GroupID {
			return groupLess(a.GroupID, b.GroupID)
		}
		return a.Source == domain.SideLedger && b.Source == domain.SideBank
	})
	return rows
}

// groupLess orders "-1" first, then by prefix, then numerically so S-2
// precedes S-10.
func groupLess(a, b string) bool {
	pa, na := splitGroupID(a)
	pb, nb := splitGroupID(b)
	if pa != pb {
		return pa < pb
	}
	return na < nb
}

func splitGroupID(id string) (string, int) {
	i := strings.LastIndex(id, "-")
	if i < 0 {
		return id, 0
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return id, 0
	}
	return id[:i], n
}
