package layout

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dvloznov/statement-reconciler/internal/domain"
)

func validLayout(name string, keywords ...string) *BankLayout {
	return &BankLayout{
		Name:        name,
		BankID:      "999",
		Keywords:    keywords,
		LinePattern: `^(\d{2}/\d{2}/\d{4})\s+(.+?)\s+([\d\.]+,\d{2})$`,
		Columns: []Column{
			{Name: FieldDate, MatchGroup: 1},
			{Name: FieldMemo, MatchGroup: 2},
			{Name: FieldAmount, MatchGroup: 3},
		},
	}
}

func TestBankLayout_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BankLayout)
		wantErr bool
	}{
		{"valid", func(l *BankLayout) {}, false},
		{"bad regex", func(l *BankLayout) { l.LinePattern = `(\d{2}` }, true},
		{"missing date", func(l *BankLayout) { l.Columns = l.Columns[1:] }, true},
		{"missing amount", func(l *BankLayout) { l.Columns = l.Columns[:2] }, true},
		{"debit and credit instead of amount", func(l *BankLayout) {
			l.LinePattern = `^(\d{2}/\d{2}/\d{4})\s+(.+?)\s+([\d\.,]*)\s+([\d\.,]*)$`
			l.Columns = []Column{{FieldDate, 1}, {FieldMemo, 2}, {FieldAmountDebit, 3}, {FieldAmountCredit, 4}}
		}, false},
		{"group out of range", func(l *BankLayout) { l.Columns = append(l.Columns, Column{FieldDocID, 9}) }, true},
		{"bad balance pattern", func(l *BankLayout) { l.BalanceEndPattern = `([` }, true},
		{"no keywords", func(l *BankLayout) { l.Keywords = nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validLayout("Test Bank", "TEST")
			tt.mutate(l)
			err := l.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrConfig) {
				t.Errorf("expected ConfigError, got %T", err)
			}
		})
	}
}

func TestBankLayout_ValidateDefaultsSeparators(t *testing.T) {
	l := validLayout("Test Bank", "TEST")
	if err := l.Validate(); err != nil {
		t.Fatal(err)
	}
	if l.AmountDecimalSeparator != "," || l.AmountThousandSeparator != "." || l.DateFormat != "%d/%m/%Y" {
		t.Errorf("unexpected defaults: %q %q %q", l.AmountDecimalSeparator, l.AmountThousandSeparator, l.DateFormat)
	}
}

func TestBankLayout_LinePatternAnchored(t *testing.T) {
	l := validLayout("Test Bank", "TEST")
	l.LinePattern = `(\d{2}/\d{2}/\d{4})\s+(.+?)\s+([\d\.]+,\d{2})$`
	if err := l.Validate(); err != nil {
		t.Fatal(err)
	}
	re := l.LineRegexp()
	if re.MatchString("REF 05/01/2025 PIX 10,00") {
		t.Error("Expected no match in the middle of a line")
	}
	m := re.FindStringSubmatch("05/01/2025 PIX 10,00")
	if m == nil || m[1] != "05/01/2025" || m[3] != "10,00" {
		t.Errorf("Expected groups to keep their numbers, got %q", m)
	}
}

func TestDefaults_AllValid(t *testing.T) {
	seen := map[string]bool{}
	for _, l := range Defaults() {
		if err := l.Validate(); err != nil {
			t.Errorf("built-in layout %s invalid: %v", l.Name, err)
		}
		if seen[l.BankID] {
			t.Errorf("duplicate bank id %s", l.BankID)
		}
		seen[l.BankID] = true
	}
	if len(seen) != 9 {
		t.Errorf("expected 9 built-in layouts, got %d", len(seen))
	}
}

func TestRegistry_LoadFromDir(t *testing.T) {
	dir := t.TempDir()
	jsonDesc := `{
  "name": "Banco Alfa",
  "bank_id": "900",
  "keywords": ["ALFA", "Extrato"],
  "line_pattern": "^(\\d{2}/\\d{2}/\\d{4})\\s+(.+?)\\s+([\\d\\.]+,\\d{2})$",
  "columns": [{"name": "date", "match_group": 1}, {"name": "memo", "match_group": 2}, {"name": "amount", "match_group": 3}]
}`
	yamlDesc := `name: Banco Beta
bank_id: "901"
keywords: [BETA]
line_pattern: '^(\d{2}/\d{2}/\d{4})\s+(.+?)\s+([\d\.]+,\d{2})$'
columns:
  - name: date
    match_group: 1
  - name: amount
    match_group: 3
`
	mustWrite(t, filepath.Join(dir, "a_alfa.json"), jsonDesc)
	mustWrite(t, filepath.Join(dir, "b_beta.yaml"), yamlDesc)
	mustWrite(t, filepath.Join(dir, "notes.txt"), "ignored")

	r := NewRegistry(dir)
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := len(r.List()); got != 2 {
		t.Fatalf("expected 2 layouts, got %d", got)
	}

	l := r.Detect(context.Background(), "Extrato de conta corrente ALFA")
	if l == nil || l.Name != "Banco Alfa" {
		t.Fatalf("Detect = %v, want Banco Alfa", l)
	}
	if l := r.Detect(context.Background(), "ALFA only"); l != nil {
		t.Errorf("expected no match when a keyword is missing, got %s", l.Name)
	}
	if b := r.Detect(context.Background(), "BETA"); b == nil || b.BankID != "901" {
		t.Errorf("Detect(BETA) = %v", b)
	}
}

func TestRegistry_LoadInvalidDescriptor(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "bad.json"), `{"name": "Bad", "keywords": ["X"], "line_pattern": "([", "columns": []}`)

	err := NewRegistry(dir).Load(context.Background())
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("Load() = %v, want ConfigError", err)
	}
}

func TestRegistry_LoadFallsBackToDefaults(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "missing"))
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	l := r.Detect(context.Background(), "Extrato Stone Instituição de Pagamento")
	if l == nil || l.Name != "Stone" {
		t.Errorf("Detect = %v, want Stone", l)
	}
}

func TestRegistry_DetectFirstOfOverlapping(t *testing.T) {
	r, err := NewRegistryWith(validLayout("First", "BANK"), validLayout("Second", "BANK"))
	if err != nil {
		t.Fatal(err)
	}
	if l := r.Detect(context.Background(), "BANK statement"); l == nil || l.Name != "First" {
		t.Errorf("Detect = %v, want First", l)
	}
}

func TestRegistry_Save(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	builtins := len(r.List())

	path, err := r.Save(context.Background(), validLayout("Banco Gama Ltda", "GAMA"))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if filepath.Base(path) != "banco_gama_ltda.json" {
		t.Errorf("unexpected path %s", path)
	}
	if got := len(r.List()); got != builtins+1 {
		t.Errorf("expected %d layouts after save, got %d", builtins+1, got)
	}
	if l := r.Detect(context.Background(), "GAMA"); l == nil {
		t.Error("expected saved layout to be detectable")
	}

	reloaded := NewRegistry(dir)
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if l := reloaded.Find("Banco Gama Ltda"); l == nil {
		t.Error("expected saved layout on disk")
	}
}

func TestRegistry_SaveRejectsInvalid(t *testing.T) {
	r := NewRegistry(t.TempDir())
	bad := validLayout("Bad", "BAD")
	bad.LinePattern = "(("
	if _, err := r.Save(context.Background(), bad); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("Save() = %v, want ConfigError", err)
	}
	entries, _ := os.ReadDir(r.Dir())
	if len(entries) != 0 {
		t.Errorf("expected nothing written, found %d files", len(entries))
	}
}

func TestRegistry_ConcurrentSaveAndDetect(t *testing.T) {
	r := NewRegistry(t.TempDir())
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			name := "Banco " + strings.Repeat("Z", i+1)
			if _, err := r.Save(context.Background(), validLayout(name, name)); err != nil {
				t.Errorf("Save: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			r.Detect(context.Background(), "Sicredi")
		}()
	}
	wg.Wait()

	if l := r.Find("Banco ZZZZ"); l == nil {
		t.Error("expected all saved layouts present")
	}
}

func TestRegistry_FindFuzzy(t *testing.T) {
	r, err := NewRegistryWith(Defaults()...)
	if err != nil {
		t.Fatal(err)
	}
	if l := r.Find("bradesco"); l == nil || l.Name != "Bradesco" {
		t.Errorf("Find(bradesco) = %v", l)
	}
	if l := r.Find("Santandr"); l == nil || l.Name != "Santander" {
		t.Errorf("Find(Santandr) = %v", l)
	}
}

func TestSlug(t *testing.T) {
	l := &BankLayout{Name: "Itaú Sagrado / PJ"}
	if got := l.Slug(); got != "itau_sagrado__pj" {
		t.Errorf("Slug() = %q", got)
	}
}

func TestGuessBankCode(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Banco 748 - Cooperativa", "748"},
		{"EXTRATO BRADESCO NET EMPRESA", "237"},
		{"Itaú Unibanco S.A.", "341"},
		{"nothing here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := GuessBankCode(tt.text); got != tt.want {
				t.Errorf("GuessBankCode(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
