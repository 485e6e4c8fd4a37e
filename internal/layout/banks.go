package layout

import (
	"regexp"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
)

// BankNames maps Brazilian central bank codes to institution names.
var BankNames = map[string]string{
	"001": "Banco do Brasil",
	"033": "Santander",
	"041": "Banrisul",
	"077": "Banco Inter",
	"104": "Caixa Economica Federal",
	"133": "Cresol",
	"197": "Stone",
	"208": "BTG Pactual",
	"237": "Bradesco",
	"260": "Nubank",
	"290": "PagSeguro",
	"323": "Mercado Pago",
	"336": "C6 Bank",
	"341": "Itau Unibanco",
	"422": "Safra",
	"748": "Sicredi",
	"756": "Sicoob",
}

var bankCodeRe = regexp.MustCompile(`(?i)\bbanco\s*:?\s*(\d{3})\b`)

// GuessBankCode finds the most likely bank code mentioned in a text sample,
// first by an explicit "Banco NNN" marker, then by institution name.
func GuessBankCode(text string) string {
	if m := bankCodeRe.FindStringSubmatch(text); m != nil {
		if _, ok := BankNames[m[1]]; ok {
			return m[1]
		}
	}
	folded := brnum.Fold(text)
	best, bestLen := "", 0
	for code, name := range BankNames {
		n := brnum.Fold(name)
		if strings.Contains(folded, n) && len(n) > bestLen {
			best, bestLen = code, len(n)
		}
	}
	return best
}
