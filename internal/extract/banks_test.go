package extract

import (
	"strings"
	"testing"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/layout"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

func validLayout(t *testing.T, name string) *layout.BankLayout {
	t.Helper()
	for _, l := range layout.Defaults() {
		if l.Name == name {
			if err := l.Validate(); err != nil {
				t.Fatalf("Validate(%s): %v", name, err)
			}
			return l
		}
	}
	t.Fatalf("no default layout %q", name)
	return nil
}

func parseWords(t *testing.T, ex Extractor, rows ...[]pdftext.Word) *Extraction {
	t.Helper()
	var words []pdftext.Word
	for _, r := range rows {
		words = append(words, r...)
	}
	doc := pdftext.FromPages(pdftext.NewPage(1, "", words))
	return parseDoc(t, ex, doc)
}

func parseDoc(t *testing.T, ex Extractor, doc pdftext.Document) *Extraction {
	t.Helper()
	res, err := Parse(t.Context(), ex, doc, "extrato.pdf")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	return res
}

func TestBB_TabularWithDocument(t *testing.T) {
	text := "Banco do Brasil\n" +
		"Extrato de Conta Corrente\n" +
		"Dia Lote Documento Histórico Valor\n" +
		"26/01/2025 0000 00000 Saldo Anterior 1.000,00 C\n" +
		"27/01/2025 0000 14397821 Pix - Recebido 379.982.592.361.551 9.000,00 C\n" +
		"28/01/2025 0000 99021 Pagamento Boleto 603.935.000.011.9131.256,68 D\n" +
		"S A L D O 8.743,32 C\n"

	res := parseText(t, &BB{}, text)

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d: %+v", len(res.Records), res.Records)
	}
	pix := res.Records[0]
	if !pix.Date.Equal(day(2025, 1, 27)) {
		t.Errorf("Unexpected date %s", pix.Date)
	}
	assertAmount(t, "pix", pix.Amount, "9000")
	if pix.Memo != "Pix - Recebido 379.982.592.361.551" {
		t.Errorf("Unexpected memo %q", pix.Memo)
	}
	if pix.DocID != "379.982.592.361.551" {
		t.Errorf("Unexpected doc id %q", pix.DocID)
	}

	boleto := res.Records[1]
	assertAmount(t, "fused amount", boleto.Amount, "-1256.68")
	if boleto.DocID != "603.935.000.011.913" {
		t.Errorf("Unexpected repaired doc id %q", boleto.DocID)
	}
	if boleto.Memo != "Pagamento Boleto 603.935.000.011.913" {
		t.Errorf("Unexpected memo %q", boleto.Memo)
	}

	assertBalance(t, "start", res.Balance.Start, "1000")
	assertBalance(t, "end", res.Balance.End, "8743.32")
}

func TestSplitFusedDocAmount(t *testing.T) {
	tests := []struct {
		token  string
		doc    string
		amount string
		ok     bool
	}{
		{"603.935.000.011.9131.256,68", "603.935.000.011.913", "1.256,68", true},
		{"111.2223,50", "111.222", "3,50", true},
		{"1.256,68", "", "", false},
		{"abc", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			doc, amount, ok := splitFusedDocAmount(tt.token)
			if ok != tt.ok || doc != tt.doc || amount != tt.amount {
				t.Errorf("splitFusedDocAmount(%q) = %q, %q, %v; want %q, %q, %v", tt.token, doc, amount, ok, tt.doc, tt.amount, tt.ok)
			}
		})
	}
}

func TestBBLegacyLine(t *testing.T) {
	t.Run("short document tail", func(t *testing.T) {
		rec, ok := bbLegacyLine("27/01/2025 Pix - Recebido 379.982.592.361.55 19.000,00 C")
		if !ok {
			t.Fatal("Expected line to parse")
		}
		assertAmount(t, "amount", rec.Amount, "9000")
		if rec.Memo != "Pix - Recebido 379.982.592.361.551" {
			t.Errorf("Unexpected memo %q", rec.Memo)
		}
	})

	t.Run("leading codes and running balance", func(t *testing.T) {
		rec, ok := bbLegacyLine("27/01/2025 0000 14397821 Tarifa 10,00 D 990,00 C")
		if !ok {
			t.Fatal("Expected line to parse")
		}
		assertAmount(t, "amount", rec.Amount, "-10")
		if rec.Memo != "Tarifa" {
			t.Errorf("Unexpected memo %q", rec.Memo)
		}
		assertBalance(t, "row balance", rec.RowBalance, "990")
	})

	t.Run("summary rejected", func(t *testing.T) {
		if _, ok := bbLegacyLine("31/01/2025 SALDO 100,00 C"); ok {
			t.Error("Expected summary line to be rejected")
		}
	})
}

func TestBBCompactLine_CompletesYear(t *testing.T) {
	rec, ok := bbCompactLine("15/03/202 1234 PIX ENVIADO 45,90 (-)", 2025)
	if !ok {
		t.Fatal("Expected compact line to parse")
	}
	if !rec.Date.Equal(day(2025, 3, 15)) {
		t.Errorf("Unexpected date %s", rec.Date)
	}
	assertAmount(t, "amount", rec.Amount, "-45.90")
	if rec.Memo != "PIX ENVIADO" {
		t.Errorf("Unexpected memo %q", rec.Memo)
	}
}

func TestBB_G331(t *testing.T) {
	text := "G331 Extrato\n" +
		"Saldo Anterior 1.000,00 C\n" +
		"02/01/2025 0000 99015 Tarifa Pacote 50,00 D\n" +
		"Servicos\n" +
		"03/01/2025 0000 88012 Pix Recebido 200,00 C 1.150,00 C\n" +
		"S A L D O 1.150,00 C\n"

	res := parseText(t, &BB{}, text)

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d: %+v", len(res.Records), res.Records)
	}
	if res.Records[0].Memo != "Tarifa Pacote Servicos" {
		t.Errorf("Expected continuation in memo, got %q", res.Records[0].Memo)
	}
	assertAmount(t, "tarifa", res.Records[0].Amount, "-50")
	assertAmount(t, "pix", res.Records[1].Amount, "200")
	assertBalance(t, "start", res.Balance.Start, "1000")
	assertBalance(t, "end", res.Balance.End, "1150")
}

func TestBB_DotDate(t *testing.T) {
	text := "Mod. 0.51\n" +
		"02.01.2025 Saldo Anterior 500,00 C\n" +
		"03.01.2025 Transferencia enviada 100,00 D 400,00 C\n" +
		"Joao da Silva\n"

	res := parseText(t, &BB{}, text)

	if len(res.Records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(res.Records))
	}
	r := res.Records[0]
	assertAmount(t, "amount", r.Amount, "-100")
	if r.Memo != "Transferencia enviada Joao da Silva" {
		t.Errorf("Unexpected memo %q", r.Memo)
	}
	assertBalance(t, "start", res.Balance.Start, "500")
	assertBalance(t, "end", res.Balance.End, "400")
}

func TestBB_Receipt(t *testing.T) {
	text := "Comprovante\n" +
		"1.500,00 (+) 10/02/2025 Pix recebido Fulano\n" +
		"10/02/2025\n" +
		"Pagamento boleto\n" +
		"250,00 (-)\n"

	res := parseText(t, &BB{}, text)

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d: %+v", len(res.Records), res.Records)
	}
	assertAmount(t, "receipt", res.Records[0].Amount, "1500")
	if res.Records[0].Memo != "Pix recebido Fulano" {
		t.Errorf("Unexpected memo %q", res.Records[0].Memo)
	}
	assertAmount(t, "look-ahead", res.Records[1].Amount, "-250")
	if res.Records[1].Memo != "Pagamento boleto" {
		t.Errorf("Unexpected memo %q", res.Records[1].Memo)
	}
}

func TestBB_RendeFacil(t *testing.T) {
	res := &Extraction{
		Records: []domain.RawRecord{
			{Date: day(2025, 4, 1), Amount: dec("500"), Memo: "Pix"},
			{Date: day(2025, 4, 2), Amount: dec("-100"), Memo: "Boleto"},
		},
		Balance: domain.BalanceInfo{Start: decPtr("1000"), End: decPtr("1200")},
	}

	(&BB{RendeFacil: true}).Finish(res)

	if len(res.Records) != 4 {
		t.Fatalf("Expected 2 synthetic records, got %d total", len(res.Records))
	}
	assertAmount(t, "sum", res.Sum(), "200")
	var synthetic int
	for _, r := range res.Records {
		if r.Memo == rendeFacil {
			synthetic++
		}
	}
	if synthetic != 2 {
		t.Errorf("Expected 2 Rende Fácil rows, got %d", synthetic)
	}
}

func TestBB_RendeFacilDisabled(t *testing.T) {
	res := &Extraction{
		Records: []domain.RawRecord{{Date: day(2025, 4, 1), Amount: dec("500")}},
		Balance: domain.BalanceInfo{Start: decPtr("1000"), End: decPtr("1200")},
	}
	(&BB{}).Finish(res)
	if len(res.Records) != 1 {
		t.Errorf("Expected no synthetic rows, got %d records", len(res.Records))
	}
}

func TestStone_DescendingReversal(t *testing.T) {
	text := "Stone\n" +
		"31/05/2025 Crédito Pix recebido 59,00 2.313,21\n" +
		"01/05/2025 Crédito Deposito 100,00 200,00\n"

	res := parseText(t, &Stone{}, text)

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(res.Records))
	}
	if !res.Records[0].Date.Equal(day(2025, 5, 1)) || !res.Records[1].Date.Equal(day(2025, 5, 31)) {
		t.Errorf("Expected chronological order, got %s then %s", res.Records[0].Date, res.Records[1].Date)
	}
	assertAmount(t, "first", res.Records[0].Amount, "100")
	assertAmount(t, "second", res.Records[1].Amount, "59")
	assertBalance(t, "start", res.Balance.Start, "100")
	assertBalance(t, "end", res.Balance.End, "2313.21")
	if res.Records[0].InternalID != 0 {
		t.Errorf("Expected internal ids after reversal, got %d", res.Records[0].InternalID)
	}
}

func TestStone_SwapPolicy(t *testing.T) {
	text := "31/05/2025 Crédito Pix recebido 59,00 2.313,21\n" +
		"01/05/2025 Crédito Deposito 100,00 200,00\n"

	res := parseText(t, &Stone{BalancePolicy: StoneSwap}, text)

	assertBalance(t, "start", res.Balance.Start, "200")
	assertBalance(t, "end", res.Balance.End, "2313.21")
}

func TestStone_SaidaIsDebit(t *testing.T) {
	res := parseText(t, &Stone{}, "31/07/25 Saída Tarifa - R$ 0,27 R$ 5.579,23\nTarifa de transferência\n")

	if len(res.Records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(res.Records))
	}
	r := res.Records[0]
	assertAmount(t, "amount", r.Amount, "-0.27")
	if !r.Date.Equal(day(2025, 7, 31)) {
		t.Errorf("Unexpected date %s", r.Date)
	}
	if r.Memo != "Saída Tarifa - Tarifa de transferência" {
		t.Errorf("Expected continuation in memo, got %q", r.Memo)
	}
}

func TestStone_MissingOpeningRowBalance(t *testing.T) {
	res := &Extraction{Records: []domain.RawRecord{
		{Date: day(2025, 5, 31), Amount: dec("59"), RowBalance: decPtr("2313.21")},
		{Date: day(2025, 5, 1), Amount: dec("100")},
	}}

	(&Stone{}).Finish(res)

	if res.Balance.Start != nil {
		t.Errorf("Expected opening balance to stay empty, got %s", res.Balance.Start)
	}
	assertBalance(t, "end", res.Balance.End, "2313.21")
}

func TestCaixa(t *testing.T) {
	text := "CAIXA ECONOMICA FEDERAL\n" +
		"01/03/2025 000000 SALDO ANTERIOR 1.000,00 C\n" +
		"05/03/2025 123456 PAG BOLETO 300,00 D 700,00 C\n" +
		"06/03/2025 123457 CRED PIX 50,00 C 750,00 C\n" +
		"SALDO 750,00 C\n"

	res := parseText(t, Caixa{}, text)

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(res.Records))
	}
	if res.Records[0].DocID != "123456" || res.Records[0].Memo != "PAG BOLETO" {
		t.Errorf("Unexpected first record %+v", res.Records[0])
	}
	assertAmount(t, "debit", res.Records[0].Amount, "-300")
	assertAmount(t, "credit", res.Records[1].Amount, "50")
	assertBalance(t, "start", res.Balance.Start, "1000")
	assertBalance(t, "end", res.Balance.End, "750")
}

func TestCresol_MemoFromPreviousLine(t *testing.T) {
	text := "Cresol\n" +
		"PAGAMENTO DE TITULOS FORNECEDOR X\n" +
		"30/09/2025 DOC 123 -150,00 1.000,00\n" +
		"Data Histórico Valor\n" +
		"01/10/2025 CRED 456 200,00 1.200,00\n"

	res := parseText(t, NewCresol(validLayout(t, "Cresol")), text)

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(res.Records))
	}
	if res.Records[0].Memo != "PAGAMENTO DE TITULOS FORNECEDOR X" {
		t.Errorf("Unexpected memo %q", res.Records[0].Memo)
	}
	assertAmount(t, "first", res.Records[0].Amount, "-150")
	if res.Records[1].Memo != missingMemo {
		t.Errorf("Expected placeholder memo after header line, got %q", res.Records[1].Memo)
	}
}

func TestGeneric(t *testing.T) {
	l := &layout.BankLayout{
		Name:                "Banco Teste",
		Keywords:            []string{"Banco Teste"},
		LinePattern:         `^(\d{2}/\d{2}/\d{4})\s+(.+?)\s+(-?[\d\.]+,\d{2})$`,
		Columns:             []layout.Column{{Name: layout.FieldDate, MatchGroup: 1}, {Name: layout.FieldMemo, MatchGroup: 2}, {Name: layout.FieldAmount, MatchGroup: 3}},
		HasBalanceCleanup:   true,
		BalanceStartPattern: `(Saldo inicial)\s+(-?[\d\.]+,\d{2})`,
		BalanceEndPattern:   `(Saldo final)\s+(-?[\d\.]+,\d{2})`,
	}
	if err := l.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	text := "Banco Teste\n" +
		"SALDO INICIAL 1.000,00\n" +
		"10/01/2025 PIX ENVIADO -100,00\n" +
		"Fulano de Tal\n" +
		"11/01/2025 SALDO DO DIA 900,00\n" +
		"12/01/2025 TED RECEBIDA 50,00\n" +
		"Saldo final 950,00\n"

	res := parseText(t, &Generic{Layout: l}, text)

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d: %+v", len(res.Records), res.Records)
	}
	if res.Records[0].Memo != "PIX ENVIADO Fulano de Tal" {
		t.Errorf("Expected continuation line in memo, got %q", res.Records[0].Memo)
	}
	assertAmount(t, "debit", res.Records[0].Amount, "-100")
	assertAmount(t, "credit", res.Records[1].Amount, "50")
	if len(res.Discarded) != 1 {
		t.Fatalf("Expected the balance line to be discarded, got %d", len(res.Discarded))
	}
	assertAmount(t, "ghost", res.Discarded[0].Amount, "900")
	assertBalance(t, "start", res.Balance.Start, "1000")
	assertBalance(t, "end", res.Balance.End, "950")
}

func TestIsContinuation(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Fulano de Tal", true},
		{"ab", false},
		{"----------", false},
		{"Página 2 de 3", false},
		{"SALDO DO DIA", false},
		{"...", false},
		{"15/01/2025 RESUMO DO DIA 3 LANCTOS", false},
		{"15.01.2024 TED RECEBIDA", false},
		{"03 / fev PAGAMENTO", false},
		{"CNPJ 12.345.678/0001-90", true},
		{strings.Repeat("x", maxContinuationLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := IsContinuation(tt.line); got != tt.want {
				t.Errorf("IsContinuation(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestSantander_Text(t *testing.T) {
	text := "Santander\n" +
		"01/12/2025 Saldo do dia Cc + ContaMax principal R$ 4.376,19\n" +
		"01/12/2025 Debito Aut. Fat.cartao Master Card FINAL 8668 - R$ 18,50\n" +
		"02/12/2025 Pix recebido Fulano + R$ 100,00\n" +
		"02/12/2025 Saldo do dia Cc + ContaMax principal R$ 4.457,69\n"

	res := parseText(t, Santander{}, text)

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(res.Records))
	}
	assertAmount(t, "debit", res.Records[0].Amount, "-18.50")
	if res.Records[0].Memo != "Debito Aut. Fat.cartao Master Card FINAL 8668" {
		t.Errorf("Unexpected memo %q", res.Records[0].Memo)
	}
	assertAmount(t, "credit", res.Records[1].Amount, "100")
	assertBalance(t, "start", res.Balance.Start, "4376.19")
	assertBalance(t, "end", res.Balance.End, "4457.69")
}

func TestSantander_AmountColumn(t *testing.T) {
	res := parseWords(t, Santander{},
		pdftext.Row(100, pdftext.Cell{X: 40, Text: "05/12/2025"}, pdftext.Cell{X: 100, Text: "COMPRA CARTAO"}, pdftext.Cell{X: 470, Text: "-"}, pdftext.Cell{X: 480, Text: "25,00"}),
	)

	if len(res.Records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(res.Records))
	}
	assertAmount(t, "amount", res.Records[0].Amount, "-25")
	if res.Records[0].Memo != "COMPRA CARTAO" {
		t.Errorf("Unexpected memo %q", res.Records[0].Memo)
	}
}

func bradescoRows(total string) [][]pdftext.Word {
	return [][]pdftext.Word{
		pdftext.Row(100, pdftext.Cell{X: 40, Text: "01/01/2025"}, pdftext.Cell{X: 100, Text: "SALDO ANTERIOR"}, pdftext.Cell{X: 520, Text: "1.000,00"}),
		pdftext.Row(120, pdftext.Cell{X: 40, Text: "02/01/2025"}, pdftext.Cell{X: 100, Text: "PIX RECEBIDO"}, pdftext.Cell{X: 340, Text: "500,00"}, pdftext.Cell{X: 520, Text: "1.500,00"}),
		pdftext.Row(130, pdftext.Cell{X: 100, Text: "FULANO DE TAL"}),
		pdftext.Row(140, pdftext.Cell{X: 100, Text: "TARIFA"}, pdftext.Cell{X: 420, Text: "30,00"}, pdftext.Cell{X: 520, Text: "1.470,00"}),
		pdftext.Row(150, pdftext.Cell{X: 40, Text: "03/01/2025"}, pdftext.Cell{X: 100, Text: "PIX TOTAL EXPRESSO"}, pdftext.Cell{X: 340, Text: "80,00"}, pdftext.Cell{X: 520, Text: "1.550,00"}),
		pdftext.Row(170, pdftext.Cell{X: 100, Text: "TOTAL"}, pdftext.Cell{X: 520, Text: total}),
		pdftext.Row(190, pdftext.Cell{X: 40, Text: "04/01/2025"}, pdftext.Cell{X: 100, Text: "POUPANCA"}, pdftext.Cell{X: 340, Text: "999,00"}),
	}
}

func TestBradesco_RightEdgeTotal(t *testing.T) {
	res := parseWords(t, &Bradesco{TotalPolicy: TotalRightEdge}, bradescoRows("1.550,00")...)

	if len(res.Records) != 3 {
		t.Fatalf("Expected 3 records, got %d: %+v", len(res.Records), res.Records)
	}
	assertAmount(t, "credit", res.Records[0].Amount, "500")
	if res.Records[0].Memo != "PIX RECEBIDO FULANO DE TAL" {
		t.Errorf("Expected wrapped description, got %q", res.Records[0].Memo)
	}
	assertAmount(t, "debit", res.Records[1].Amount, "-30")
	if !res.Records[1].Date.Equal(day(2025, 1, 2)) {
		t.Errorf("Expected date carried from previous row, got %s", res.Records[1].Date)
	}
	if res.Records[2].Memo != "PIX TOTAL EXPRESSO" {
		t.Errorf("Expected TOTAL inside a description to be kept, got %q", res.Records[2].Memo)
	}
	assertBalance(t, "start", res.Balance.Start, "1000")
	assertBalance(t, "end", res.Balance.End, "1550")
}

func TestBradesco_StrictTotal(t *testing.T) {
	res := parseWords(t, &Bradesco{TotalPolicy: TotalStrict}, bradescoRows("1.550,00")...)

	if len(res.Records) != 2 {
		t.Fatalf("Expected strict policy to stop at the first TOTAL, got %d records", len(res.Records))
	}
}

func TestBradesco_PeriodFilter(t *testing.T) {
	res := parseWords(t, &Bradesco{},
		pdftext.Row(80, pdftext.Cell{X: 40, Text: "Extrato de: Ag: 189 | CC: 0027894-7 | Entre 02/01/2025 e 31/01/2025"}),
		pdftext.Row(120, pdftext.Cell{X: 40, Text: "01/01/2025"}, pdftext.Cell{X: 100, Text: "PIX"}, pdftext.Cell{X: 340, Text: "10,00"}),
		pdftext.Row(140, pdftext.Cell{X: 40, Text: "02/01/2025"}, pdftext.Cell{X: 100, Text: "TED"}, pdftext.Cell{X: 340, Text: "20,00"}),
	)

	if len(res.Records) != 1 {
		t.Fatalf("Expected rows outside the header period to be dropped, got %d", len(res.Records))
	}
	assertAmount(t, "in range", res.Records[0].Amount, "20")
}

func TestSicoob(t *testing.T) {
	res := parseWords(t, Sicoob{},
		pdftext.Row(100, pdftext.Cell{X: 40, Text: "SALDO ANTERIOR"}, pdftext.Cell{X: 530, Text: "1.000,00C"}),
		pdftext.Row(120, pdftext.Cell{X: 40, Text: "02/01/2025"}, pdftext.Cell{X: 100, Text: "PIX RECEBIDO"}, pdftext.Cell{X: 350, Text: "200,00C"}),
		pdftext.Row(130, pdftext.Cell{X: 100, Text: "FULANO"}),
		pdftext.Row(150, pdftext.Cell{X: 100, Text: "TARIFA"}, pdftext.Cell{X: 350, Text: "10,00D"}),
		pdftext.Row(170, pdftext.Cell{X: 40, Text: "SALDO DO DIA"}, pdftext.Cell{X: 530, Text: "1.190,00C"}),
		pdftext.Row(180, pdftext.Cell{X: 40, Text: "TOTAL"}, pdftext.Cell{X: 530, Text: "5,00C"}),
	)

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d: %+v", len(res.Records), res.Records)
	}
	assertAmount(t, "credit", res.Records[0].Amount, "200")
	if res.Records[0].Memo != "PIX RECEBIDO FULANO" {
		t.Errorf("Unexpected memo %q", res.Records[0].Memo)
	}
	assertAmount(t, "debit", res.Records[1].Amount, "-10")
	assertBalance(t, "start", res.Balance.Start, "1000")
	assertBalance(t, "end", res.Balance.End, "1190")
}

func TestParseSicoobAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1.234,56C", "1234.56", true},
		{"10,00D", "-10", true},
		{"3,50*", "-3.5", true},
		{"10,00", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSicoobAmount(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseSicoobAmount(%q) ok = %v", tt.in, ok)
			}
			assertAmount(t, tt.in, got, tt.want)
		})
	}
}

func TestSicredi_Columns(t *testing.T) {
	res := parseWords(t, &Sicredi{},
		pdftext.Row(80, pdftext.Cell{X: 40, Text: "Data"}, pdftext.Cell{X: 100, Text: "Descrição"}, pdftext.Cell{X: 370, Text: "Débito"}, pdftext.Cell{X: 440, Text: "Crédito"}, pdftext.Cell{X: 520, Text: "Saldo"}),
		pdftext.Row(100, pdftext.Cell{X: 40, Text: "SALDO ANTERIOR"}, pdftext.Cell{X: 520, Text: "1.000,00"}),
		pdftext.Row(120, pdftext.Cell{X: 40, Text: "02/01/2025"}, pdftext.Cell{X: 100, Text: "PIX RECEBIDO"}, pdftext.Cell{X: 450, Text: "300,00"}, pdftext.Cell{X: 520, Text: "1.300,00"}),
		pdftext.Row(140, pdftext.Cell{X: 40, Text: "03/01/2025"}, pdftext.Cell{X: 100, Text: "BOLETO"}, pdftext.Cell{X: 375, Text: "100,00"}, pdftext.Cell{X: 520, Text: "1.200,00"}),
		pdftext.Row(160, pdftext.Cell{X: 100, Text: "SALDO FINAL"}, pdftext.Cell{X: 520, Text: "1.200,00"}),
	)

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d: %+v", len(res.Records), res.Records)
	}
	assertAmount(t, "credit", res.Records[0].Amount, "300")
	if res.Records[0].Memo != "PIX RECEBIDO" {
		t.Errorf("Unexpected memo %q", res.Records[0].Memo)
	}
	assertAmount(t, "debit", res.Records[1].Amount, "-100")
	assertBalance(t, "start", res.Balance.Start, "1000")
	assertBalance(t, "end", res.Balance.End, "1200")
}

func TestSicredi_Signed(t *testing.T) {
	res := parseWords(t, &Sicredi{},
		pdftext.Row(80, pdftext.Cell{X: 40, Text: "Data"}, pdftext.Cell{X: 100, Text: "Histórico"}, pdftext.Cell{X: 320, Text: "Valor"}, pdftext.Cell{X: 520, Text: "Saldo"}),
		pdftext.Row(100, pdftext.Cell{X: 40, Text: "SALDO ANTERIOR"}, pdftext.Cell{X: 520, Text: "1.000,00"}),
		pdftext.Row(120, pdftext.Cell{X: 40, Text: "02/01/2025"}, pdftext.Cell{X: 100, Text: "PIX RECEBIDO"}, pdftext.Cell{X: 320, Text: "300,00"}, pdftext.Cell{X: 520, Text: "1.300,00"}),
		pdftext.Row(140, pdftext.Cell{X: 40, Text: "03/01/2025"}, pdftext.Cell{X: 100, Text: "BOLETO FORNECEDOR"}, pdftext.Cell{X: 320, Text: "-100,00"}, pdftext.Cell{X: 520, Text: "1.200,00"}),
		pdftext.Row(160, pdftext.Cell{X: 100, Text: "REF NF 123"}),
		pdftext.Row(180, pdftext.Cell{X: 100, Text: "SALDO FINAL"}, pdftext.Cell{X: 520, Text: "1.200,00"}),
	)

	tests := []struct {
		memo   string
		amount string
	}{
		{"PIX RECEBIDO", "300"},
		{"BOLETO FORNECEDOR REF NF 123", "-100"},
	}
	if len(res.Records) != len(tests) {
		t.Fatalf("Expected %d records, got %d: %+v", len(tests), len(res.Records), res.Records)
	}
	for i, tt := range tests {
		t.Run(tt.memo, func(t *testing.T) {
			r := res.Records[i]
			if r.Memo != tt.memo {
				t.Errorf("Expected memo %q, got %q", tt.memo, r.Memo)
			}
			assertAmount(t, tt.memo, r.Amount, tt.amount)
		})
	}
	assertBalance(t, "start", res.Balance.Start, "1000")
	assertBalance(t, "end", res.Balance.End, "1200")
}

func TestSicredi_SubLayoutCommittedOnFirstPage(t *testing.T) {
	s := &Sicredi{}
	page := pdftext.NewPage(1, "Sicredi extrato", nil)
	_, st, err := s.ExtractPage(t.Context(), page, State{})
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}
	if st.SubLayout != sicrediSigned {
		t.Errorf("Expected signed sub-layout, got %q", st.SubLayout)
	}

	next := pdftext.NewPage(2, "Débito Crédito", nil)
	_, st, _ = s.ExtractPage(t.Context(), next, st)
	if st.SubLayout != sicrediSigned {
		t.Errorf("Expected sub-layout to stay committed, got %q", st.SubLayout)
	}
}

func TestItau_TextShortDates(t *testing.T) {
	text := "Itaú Empresas\n" +
		"extrato período: 01/12/2024 até 31/01/2025\n" +
		"SALDO ANTERIOR 1.000,00\n" +
		"15 / dez PIX RECEBIDO CLIENTE 500,00\n" +
		"03 / jan TARIFA BANCARIA 20,00\n" +
		"SALDO FINAL 1.480,00\n"

	res := parseText(t, Itau{}, text)

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d: %+v", len(res.Records), res.Records)
	}
	if !res.Records[0].Date.Equal(day(2024, 12, 15)) {
		t.Errorf("Expected December of the period start year, got %s", res.Records[0].Date)
	}
	if !res.Records[1].Date.Equal(day(2025, 1, 3)) {
		t.Errorf("Expected January of the period end year, got %s", res.Records[1].Date)
	}
	assertAmount(t, "tarifa", res.Records[1].Amount, "-20")
	assertBalance(t, "start", res.Balance.Start, "1000")
	assertBalance(t, "end", res.Balance.End, "1480")
}

func TestItauKeywordSign(t *testing.T) {
	tests := []struct {
		memo string
		want int
	}{
		{"FULANO PIX ENVIADO", -1},
		{"TARIFA PACOTE SERVICOS", -1},
		{"SISPAG FORNECEDOR", -1},
		{"PIX QR CODE FULANO", 1},
		{"TED RECEBIDO", 1},
		{"ESTORNO TARIFA", 1},
		{"ESTORNO PIX ENVIADO", 1},
		{"FULANO SILVA", 0},
	}
	for _, tt := range tests {
		t.Run(tt.memo, func(t *testing.T) {
			if got := itauKeywordSign(tt.memo); got != tt.want {
				t.Errorf("itauKeywordSign(%q) = %d, want %d", tt.memo, got, tt.want)
			}
		})
	}
}

func TestItau_SagradoKeywordSigns(t *testing.T) {
	res := parseWords(t, Itau{},
		pdftext.Row(50, pdftext.Cell{X: 10, Text: "Saldo total"}, pdftext.Cell{X: 470, Text: "R$"}, pdftext.Cell{X: 490, Text: "938,00"}),
		pdftext.Row(70, pdftext.Cell{X: 10, Text: "Lançamentos do período"}),
		pdftext.Row(90, pdftext.Cell{X: 90, Text: "SALDO ANTERIOR"}, pdftext.Cell{X: 470, Text: "1.000,00"}),
		pdftext.Row(120, pdftext.Cell{X: 10, Text: "27/10/2025"}, pdftext.Cell{X: 90, Text: "PIX ENVIADO"}, pdftext.Cell{X: 220, Text: "FULANO"}, pdftext.Cell{X: 470, Text: "50,00"}),
		pdftext.Row(140, pdftext.Cell{X: 10, Text: "28/10/2025"}, pdftext.Cell{X: 90, Text: "ESTORNO TARIFA"}, pdftext.Cell{X: 470, Text: "12,00"}),
		pdftext.Row(160, pdftext.Cell{X: 10, Text: "29/10/2025"}, pdftext.Cell{X: 90, Text: "TARIFA PACOTE"}, pdftext.Cell{X: 470, Text: "24,00"}),
	)

	want := []string{"-50", "12", "-24"}
	if len(res.Records) != len(want) {
		t.Fatalf("Expected %d records, got %d: %+v", len(want), len(res.Records), res.Records)
	}
	for i, w := range want {
		assertAmount(t, res.Records[i].Memo, res.Records[i].Amount, w)
	}
	assertBalance(t, "start", res.Balance.Start, "1000")
	assertBalance(t, "end", res.Balance.End, "938")
}

func TestItau_TextEstornoIsCredit(t *testing.T) {
	text := "Itaú Empresas\n" +
		"extrato período: 01/01/2025 até 31/01/2025\n" +
		"SALDO ANTERIOR 1.000,00\n" +
		"03 / jan ESTORNO TARIFA BANCARIA 20,00\n" +
		"SALDO FINAL 1.020,00\n"

	res := parseText(t, Itau{}, text)

	if len(res.Records) != 1 {
		t.Fatalf("Expected 1 record, got %d: %+v", len(res.Records), res.Records)
	}
	assertAmount(t, "estorno", res.Records[0].Amount, "20")
}

func TestItau_SagradoColumns(t *testing.T) {
	res := parseWords(t, Itau{},
		pdftext.Row(50, pdftext.Cell{X: 10, Text: "Saldo total"}, pdftext.Cell{X: 470, Text: "R$"}, pdftext.Cell{X: 490, Text: "1.421,00"}),
		pdftext.Row(70, pdftext.Cell{X: 10, Text: "Lançamentos do período"}),
		pdftext.Row(90, pdftext.Cell{X: 90, Text: "SALDO ANTERIOR"}, pdftext.Cell{X: 470, Text: "1.000,00"}),
		pdftext.Row(110, pdftext.Cell{X: 90, Text: "PIX QR CODE RECEBIDO"}),
		pdftext.Row(120, pdftext.Cell{X: 10, Text: "27/10/2025"}, pdftext.Cell{X: 220, Text: "FULANO SILVA"}, pdftext.Cell{X: 360, Text: "123.456.789-00"}, pdftext.Cell{X: 470, Text: "521,00"}),
		pdftext.Row(140, pdftext.Cell{X: 10, Text: "28/10/2025"}, pdftext.Cell{X: 90, Text: "SISPAG FORNECEDOR"}, pdftext.Cell{X: 220, Text: "ACME LTDA"}, pdftext.Cell{X: 470, Text: "100,00"}),
	)

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d: %+v", len(res.Records), res.Records)
	}
	if res.Records[0].Memo != "PIX QR CODE RECEBIDO - FULANO SILVA Doc:123.456.789-00" {
		t.Errorf("Unexpected memo %q", res.Records[0].Memo)
	}
	assertAmount(t, "credit", res.Records[0].Amount, "521")
	assertAmount(t, "debit", res.Records[1].Amount, "-100")
	assertBalance(t, "start", res.Balance.Start, "1000")
	assertBalance(t, "end", res.Balance.End, "1421")
}
