// Package ofx reads bank statements delivered as OFX files and exports
// canonical transactions back to OFX 1.02.
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
)

const (
	LayoutName = "OFX"
	currency   = "BRL"
	maxNameLen = 32
)

// Parse decodes a cp1252 OFX statement into a FileResult. Only the first
// bank statement of the file is read.
func Parse(ctx context.Context, name string, data []byte) (domain.FileResult, error) {
	log := logger.FromContext(ctx)

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return domain.FileResult{}, fmt.Errorf("Parse: decode %s: %w", name, err)
	}
	resp, err := ofxgo.ParseResponse(bytes.NewReader(decoded))
	if err != nil {
		return domain.FileResult{}, fmt.Errorf("Parse: %w: %s: %v", domain.ErrParse, name, err)
	}
	if len(resp.Bank) == 0 {
		return domain.FileResult{}, fmt.Errorf("Parse: %w: %s has no bank statement", domain.ErrParse, name)
	}
	stmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
	if !ok {
		return domain.FileResult{}, fmt.Errorf("Parse: %w: %s: unexpected message %T", domain.ErrParse, name, resp.Bank[0])
	}

	var records []domain.RawRecord
	if stmt.BankTranList != nil {
		for i, tx := range stmt.BankTranList.Transactions {
			amount, err := decimal.NewFromString(tx.TrnAmt.FloatString(2))
			if err != nil {
				log.Warn().Err(err).Str("fitid", string(tx.FiTID)).Msg("Skipping OFX transaction with bad amount")
				continue
			}
			memo := string(tx.Memo)
			if strings.TrimSpace(memo) == "" {
				memo = string(tx.Name)
			}
			records = append(records, domain.RawRecord{
				Date:       brnum.Day(tx.DtPosted.Time),
				Amount:     amount,
				Memo:       memo,
				FITID:      string(tx.FiTID),
				DocID:      string(tx.CheckNum),
				InternalID: i,
				SourceFile: name,
			})
		}
	}

	var bal domain.BalanceInfo
	if end, err := decimal.NewFromString(stmt.BalAmt.FloatString(2)); err == nil && !stmt.DtAsOf.IsZero() {
		bal.End = domain.Ptr(end)
	}

	result := domain.FileResult{
		File:         name,
		Layout:       LayoutName,
		Method:       domain.MethodText,
		Transactions: pipeline.Canonicalize(records),
		AccountInfo: domain.AccountInfo{
			BankID:  string(stmt.BankAcctFrom.BankID),
			Branch:  string(stmt.BankAcctFrom.BranchID),
			Account: string(stmt.BankAcctFrom.AcctID),
		},
		Balance:    bal,
		Validation: pipeline.ValidateBalances(records, bal, pipeline.DefaultBalanceTolerance),
	}
	log.Info().Str("file", name).Int("transactions", len(result.Transactions)).Msg("Parsed OFX statement")
	return result, nil
}

// Write emits res as an OFX 1.02 bank statement encoded in cp1252.
func Write(w io.Writer, res domain.FileResult) error {
	stmt := ofxgo.StatementResponse{
		TrnUID: ofxgo.UID(uuid.NewString()),
		Status: ofxgo.Status{Code: 0, Severity: "INFO"},
		BankAcctFrom: ofxgo.BankAcct{
			BankID:   ofxgo.String(orDefault(res.AccountInfo.BankID, "0")),
			BranchID: ofxgo.String(res.AccountInfo.Branch),
			AcctID:   ofxgo.String(orDefault(res.AccountInfo.Account, "0")),
			AcctType: ofxgo.AcctTypeChecking,
		},
	}
	cur, err := ofxgo.NewCurrSymbol(currency)
	if err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	stmt.CurDef = *cur

	list := &ofxgo.TransactionList{}
	for _, tx := range res.Transactions {
		list.Transactions = append(list.Transactions, transaction(tx))
	}
	if n := len(res.Transactions); n > 0 {
		list.DtStart = ofxgo.Date{Time: res.Transactions[0].Date}
		list.DtEnd = ofxgo.Date{Time: res.Transactions[n-1].Date}
		stmt.DtAsOf = list.DtEnd
	} else {
		list.DtStart = ofxgo.Date{Time: time.Now().UTC()}
		list.DtEnd = list.DtStart
		stmt.DtAsOf = list.DtEnd
	}
	stmt.BankTranList = list

	closing := closingBalance(res)
	if _, ok := stmt.BalAmt.SetString(closing.StringFixed(2)); !ok {
		return fmt.Errorf("Write: invalid closing balance %s", closing)
	}

	resp := ofxgo.Response{
		Version: ofxgo.OfxVersion102,
		Signon: ofxgo.SignonResponse{
			Status:   ofxgo.Status{Code: 0, Severity: "INFO"},
			DtServer: ofxgo.Date{Time: time.Now().UTC()},
			Language: "POR",
		},
		Bank: []ofxgo.Message{&stmt},
	}
	buf, err := resp.Marshal()
	if err != nil {
		return fmt.Errorf("Write: marshal: %w", err)
	}

	enc := charmap.Windows1252.NewEncoder().Writer(w)
	if _, err := io.Copy(enc, buf); err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	return nil
}

func transaction(tx domain.UnifiedTransaction) ofxgo.Transaction {
	out := ofxgo.Transaction{
		TrnType:  ofxgo.TrnTypeCredit,
		DtPosted: ofxgo.Date{Time: tx.Date},
		FiTID:    ofxgo.String(tx.FITID),
		Name:     ofxgo.String(truncate(tx.Memo, maxNameLen)),
		Memo:     ofxgo.String(tx.Memo),
	}
	if tx.Amount.Sign() < 0 {
		out.TrnType = ofxgo.TrnTypeDebit
	}
	if out.FiTID == "" {
		out.FiTID = ofxgo.String(domain.NewFITID(tx.Date, tx.Amount, tx.Memo))
	}
	out.TrnAmt.SetString(tx.Amount.StringFixed(2))
	return out
}

// closingBalance is the declared closing balance, or opening plus the
// movements when only the opening is known.
func closingBalance(res domain.FileResult) decimal.Decimal {
	if res.Balance.End != nil {
		return *res.Balance.End
	}
	total := decimal.Zero
	if res.Balance.Start != nil {
		total = *res.Balance.Start
	}
	for _, tx := range res.Transactions {
		total = total.Add(tx.Amount)
	}
	return total
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
