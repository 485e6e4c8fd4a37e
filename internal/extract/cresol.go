package extract

import (
	"context"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/layout"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

const missingMemo = "Descrição não capturada"

var cresolHeaderGarbage = []string{
	"lançamentos", "saldo em conta", "limite de crédito",
	"saldo disponível", "data", "histórico", "valor",
	"extrato", "página", "saldo do dia",
}

// Cresol prints the description on the line above the dated amount, so the
// last undated line becomes the memo of the next record.
type Cresol struct {
	Generic
}

// NewCresol returns a Cresol extractor for l.
func NewCresol(l *layout.BankLayout) *Cresol {
	return &Cresol{Generic{Layout: l}}
}

func (c *Cresol) Name() string { return "cresol" }

func (c *Cresol) ExtractPage(_ context.Context, page pdftext.Page, st State) (PageResult, State, error) {
	var res PageResult
	lineRe := c.Layout.LineRegexp()

	for _, line := range textLines(page) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.scanBalances(line, &res)

		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			st.PrevLine = line
			continue
		}
		rec, ok := c.parseMatch(m)
		if ok && !rec.Amount.IsZero() {
			if st.PrevLine != "" && !containsLower(st.PrevLine, cresolHeaderGarbage) {
				rec.Memo = st.PrevLine
			} else {
				rec.Memo = missingMemo
			}
			res.Records = append(res.Records, rec)
		}
		st.PrevLine = ""
	}
	return res, st, nil
}
