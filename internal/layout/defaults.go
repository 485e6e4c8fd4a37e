package layout

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dcLinePattern    = `^(\d{2}/\d{2}/\d{4})\s+(.+?)\s+([\d\.]+,\d{2})\s*([CD])\b`
	docDCLinePattern = `^(\d{2}/\d{2}/\d{4})\s+(\d+)\s+(.+?)\s+([\d\.]+,\d{2})\s*([CD])\b`
	signedPattern    = `^(\d{2}/\d{2}/\d{4})\s+(.+?)\s+(-?\s?(?:R\$\s*)?-?[\d\.]+,\d{2})(?:\s+-?[\d\.]+,\d{2})?\s*$`
)

var dcColumns = []Column{
	{Name: FieldDate, MatchGroup: 1},
	{Name: FieldMemo, MatchGroup: 2},
	{Name: FieldAmount, MatchGroup: 3},
	{Name: FieldType, MatchGroup: 4},
}

var signedColumns = []Column{
	{Name: FieldDate, MatchGroup: 1},
	{Name: FieldMemo, MatchGroup: 2},
	{Name: FieldAmount, MatchGroup: 3},
}

// Defaults returns the built-in descriptors for the supported banks. Each
// call returns fresh, unvalidated copies.
func Defaults() []*BankLayout {
	return []*BankLayout{
		{
			Name:                "Banco do Brasil",
			BankID:              "001",
			Keywords:            []string{"Banco do Brasil"},
			LinePattern:         dcLinePattern,
			Columns:             dcColumns,
			HasBalanceCleanup:   true,
			BalanceStartPattern: `(Saldo Anterior)\s+([\d\.]+,\d{2})`,
			BalanceEndPattern:   `(S A L D O|Saldo Atual)\s+([\d\.]+,\d{2})`,
		},
		{
			Name:        "Caixa Economica Federal",
			BankID:      "104",
			Keywords:    []string{"CAIXA"},
			LinePattern: docDCLinePattern,
			Columns: []Column{
				{Name: FieldDate, MatchGroup: 1},
				{Name: FieldDocID, MatchGroup: 2},
				{Name: FieldMemo, MatchGroup: 3},
				{Name: FieldAmount, MatchGroup: 4},
				{Name: FieldType, MatchGroup: 5},
			},
			HasBalanceCleanup:   true,
			BalanceStartPattern: `(SALDO ANTERIOR)\s+([\d\.]+,\d{2})`,
		},
		{
			Name:              "Stone",
			BankID:            "197",
			Keywords:          []string{"Stone"},
			LinePattern:       `^(\d{2}/\d{2}/\d{2,4})\s+(.+?)\s+((?:R\$\s*)?[\-\s]*[\d\.]+,\d{2})\s+(?:R\$\s*)?[\-\s]*[\d\.]+,\d{2}`,
			Columns:           signedColumns,
			DateFormat:        "%d/%m/%Y",
			HasBalanceCleanup: true,
		},
		{
			Name:              "Cresol",
			BankID:            "133",
			Keywords:          []string{"Cresol"},
			LinePattern:       signedPattern,
			Columns:           signedColumns,
			HasBalanceCleanup: true,
		},
		{
			Name:                "Santander",
			BankID:              "033",
			Keywords:            []string{"Santander"},
			LinePattern:         `^(\d{2}/\d{2}/\d{4})\s+(.+?)\s+([+-])\s+R\$\s+([\d\.]+,\d{2})`,
			Columns:             []Column{{Name: FieldDate, MatchGroup: 1}, {Name: FieldMemo, MatchGroup: 2}, {Name: FieldType, MatchGroup: 3}, {Name: FieldAmount, MatchGroup: 4}},
			HasBalanceCleanup:   true,
			BalanceStartPattern: `(\d{2}/\d{2}/\d{4})\s+Saldo do dia\s+.*?R\$\s+(-?[\d\.]+,\d{2})`,
		},
		{
			Name:              "Sicredi",
			BankID:            "748",
			Keywords:          []string{"Sicredi"},
			LinePattern:       signedPattern,
			Columns:           signedColumns,
			HasBalanceCleanup: true,
			HeaderKeywords:    []string{"Débito", "Crédito"},
		},
		{
			Name:                "Bradesco",
			BankID:              "237",
			Keywords:            []string{"Bradesco"},
			LinePattern:         signedPattern,
			Columns:             signedColumns,
			HasBalanceCleanup:   true,
			BalanceStartPattern: `(\d{2}/\d{2}/\d{4})\s+SALDO ANTERIOR\s+(-?[\d\.]+,\d{2})`,
		},
		{
			Name:                "Sicoob",
			BankID:              "756",
			Keywords:            []string{"SICOOB"},
			LinePattern:         `^(\d{2}/\d{2}/\d{4})\s+(.+?)\s+([\d\.]+,\d{2})([CD*])`,
			Columns:             dcColumns,
			HasBalanceCleanup:   true,
			BalanceStartPattern: `(SALDO ANTERIOR)\s+([\d\.]+,\d{2})`,
			BalanceEndPattern:   `(SALDO DO DIA|SALDO EM CONTA)\s+([\d\.]+,\d{2})`,
		},
		{
			Name:                "Itau",
			BankID:              "341",
			Keywords:            []string{"Itaú"},
			LinePattern:         signedPattern,
			Columns:             signedColumns,
			HasBalanceCleanup:   true,
			BalanceStartPattern: `(SALDO ANTERIOR)\s+(-?[\d\.]+,\d{2})`,
			BalanceEndPattern:   `(Saldo total).*?(-?[\d\.]+,\d{2})`,
		},
	}
}

// WriteDefaults writes the built-in descriptors into dir as JSON files.
func WriteDefaults(ctx context.Context, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("WriteDefaults: %w", err)
	}
	var paths []string
	for i, l := range Defaults() {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("WriteDefaults: %w", err)
		}
		data, err := json.MarshalIndent(l, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("WriteDefaults: encoding %s: %w", l.Name, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%02d_%s.json", i+1, l.Slug()))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("WriteDefaults: writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
