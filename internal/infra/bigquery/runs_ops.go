package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// InsertRunWithClient stores the summary of a reconciliation run.
func InsertRunWithClient(ctx context.Context, client *bigquery.Client, dataset string, row *RunRow) error {
	inserter := client.Dataset(dataset).Table(runsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertRun: inserting row: %w", err)
	}
	return nil
}

// InsertReconciledRowsWithClient stores the unified view of a run in batches.
func InsertReconciledRowsWithClient(ctx context.Context, client *bigquery.Client, dataset string, rows []*ReconciledRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(dataset).Table(reconciledRowsTable).Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("InsertReconciledRows: inserting rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// ListRunsWithClient returns the most recent runs first.
func ListRunsWithClient(ctx context.Context, client *bigquery.Client, dataset string, limit int) ([]*RunRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			started_ts,
			finished_ts,
			ledger_file,
			company,
			ledger_count,
			bank_count,
			matched,
			combinatorial,
			combinatorial_count,
			unmatched_ledger,
			unmatched_bank,
			initial_gap,
			final_gap,
			options
		FROM `+"`%s.%s.%s`"+`
		ORDER BY started_ts DESC
		LIMIT @limit
	`, client.Project(), dataset, runsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: reading query: %w", err)
	}

	var runs []*RunRow
	for {
		var row RunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRuns: iterating: %w", err)
		}
		runs = append(runs, &row)
	}
	return runs, nil
}

// QueryReconciledRowsWithClient returns the view rows of one run in order.
func QueryReconciledRowsWithClient(ctx context.Context, client *bigquery.Client, dataset, runID string) ([]*ReconciledRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			row_no,
			tx_date,
			cluster_date,
			amount,
			memo,
			source,
			status,
			group_id,
			source_file
		FROM `+"`%s.%s.%s`"+`
		WHERE run_id = @run_id
		ORDER BY row_no
	`, client.Project(), dataset, reconciledRowsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryReconciledRows: reading query: %w", err)
	}

	var rows []*ReconciledRow
	for {
		var row ReconciledRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryReconciledRows: iterating: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}
