package extract

import (
	"regexp"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/layout"
)

// Options tune the extractors whose source behaviour is configurable.
type Options struct {
	StoneBalancePolicy  string
	BradescoTotalPolicy string
	RendeFacil          bool
}

var bbWordRe = regexp.MustCompile(`\bBB\b`)

// ForLayout returns the specialised extractor for a layout, chosen by bank
// code first and then by a bank key in the layout name, or the generic
// descriptor-driven extractor. A new instance is returned on every call.
func ForLayout(l *layout.BankLayout, opts Options) Extractor {
	switch bankKey(l) {
	case "BB":
		return &BB{RendeFacil: opts.RendeFacil}
	case "CAIXA":
		return Caixa{}
	case "STONE":
		return &Stone{BalancePolicy: opts.StoneBalancePolicy}
	case "CRESOL":
		return NewCresol(l)
	case "SANTANDER":
		return Santander{}
	case "SICREDI":
		return &Sicredi{HeaderKeywords: l.HeaderKeywords}
	case "BRADESCO":
		return &Bradesco{TotalPolicy: opts.BradescoTotalPolicy}
	case "SICOOB":
		return Sicoob{}
	case "ITAU":
		return Itau{}
	}
	return &Generic{Layout: l}
}

var bankIDKeys = map[string]string{
	"001": "BB",
	"104": "CAIXA",
	"197": "STONE",
	"133": "CRESOL",
	"033": "SANTANDER",
	"748": "SICREDI",
	"237": "BRADESCO",
	"756": "SICOOB",
	"341": "ITAU",
}

func bankKey(l *layout.BankLayout) string {
	if k, ok := bankIDKeys[strings.TrimSpace(l.BankID)]; ok {
		return k
	}
	name := brnum.Fold(l.Name)
	switch {
	case bbWordRe.MatchString(name) || strings.Contains(name, "BANCO DO BRASIL"):
		return "BB"
	case strings.Contains(name, "CAIXA") || strings.Contains(name, "CEF"):
		return "CAIXA"
	}
	for _, k := range []string{"STONE", "CRESOL", "SANTANDER", "SICREDI", "BRADESCO", "SICOOB", "ITAU"} {
		if strings.Contains(name, k) {
			return k
		}
	}
	return ""
}
