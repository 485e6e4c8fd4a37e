package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
)

const insertBatchSize = 500

// InsertStatementWithClient stores an extracted file and its transactions.
func InsertStatementWithClient(ctx context.Context, client *bigquery.Client, dataset string, stmt *StatementRow, txs []*BankTransactionRow) error {
	ds := client.Dataset(dataset)
	if err := ds.Table(statementsTable).Inserter().Put(ctx, stmt); err != nil {
		return fmt.Errorf("InsertStatement: inserting statement: %w", err)
	}
	if len(txs) == 0 {
		return nil
	}

	inserter := ds.Table(bankTransactionsTable).Inserter()
	for start := 0; start < len(txs); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(txs) {
			end = len(txs)
		}
		if err := inserter.Put(ctx, txs[start:end]); err != nil {
			return fmt.Errorf("InsertStatement: inserting transactions %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// FindStatementByChecksumWithClient returns nil when no file with that
// checksum was stored.
func FindStatementByChecksumWithClient(ctx context.Context, client *bigquery.Client, dataset, checksum string) (*StatementRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT *
		FROM `+"`%s.%s.%s`"+`
		WHERE checksum_sha256 = @checksum
		ORDER BY created_ts DESC
		LIMIT 1
	`, client.Project(), dataset, statementsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "checksum", Value: checksum},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindStatementByChecksum: reading query: %w", err)
	}

	var row StatementRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindStatementByChecksum: iterating: %w", err)
	}
	return &row, nil
}

// QueryBankTransactionsByDateRangeWithClient returns stored bank movements
// between two dates inclusive, for statements that did not fail.
func QueryBankTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, dataset string, from, to time.Time) ([]*BankTransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT t.*
		FROM `+"`%[1]s.%[2]s.%[3]s`"+` t
		INNER JOIN `+"`%[1]s.%[2]s.%[4]s`"+` s
		  ON t.statement_id = s.statement_id
		WHERE t.tx_date >= @start_date
		  AND t.tx_date <= @end_date
		  AND s.method != 'failed'
		ORDER BY t.tx_date, t.source_file, t.internal_id
	`, client.Project(), dataset, bankTransactionsTable, statementsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: civil.DateOf(from)},
		{Name: "end_date", Value: civil.DateOf(to)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryBankTransactionsByDateRange: reading query: %w", err)
	}

	var rows []*BankTransactionRow
	for {
		var row BankTransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryBankTransactionsByDateRange: iterating: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}
