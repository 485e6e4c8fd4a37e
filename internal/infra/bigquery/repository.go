// Package bigquery persists extracted statements and reconciliation runs.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
)

// RunRepository stores reconciliation runs.
type RunRepository interface {
	// InsertRun stores the run summary.
	InsertRun(ctx context.Context, row *RunRow) error

	// InsertRows stores the unified view rows of a run.
	InsertRows(ctx context.Context, rows []*ReconciledRow) error

	// ListRuns returns up to limit runs, most recent first.
	ListRuns(ctx context.Context, limit int) ([]*RunRow, error)

	// ListRows returns the view rows of one run.
	ListRows(ctx context.Context, runID string) ([]*ReconciledRow, error)
}

// StatementRepository stores extracted bank statements.
type StatementRepository interface {
	// InsertStatement stores a file result and its transactions.
	InsertStatement(ctx context.Context, stmt *StatementRow, txs []*BankTransactionRow) error

	// FindStatementByChecksum returns nil when the file was never stored.
	FindStatementByChecksum(ctx context.Context, checksum string) (*StatementRow, error)

	// QueryBankTransactions returns stored movements dated between from and to.
	QueryBankTransactions(ctx context.Context, from, to time.Time) ([]*BankTransactionRow, error)
}

// Repository implements RunRepository and StatementRepository on a shared
// BigQuery client.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

var (
	_ RunRepository       = (*Repository)(nil)
	_ StatementRepository = (*Repository)(nil)
)

// NewRepository opens a client for project and targets dataset.
func NewRepository(ctx context.Context, project, dataset string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, dataset: dataset}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) InsertRun(ctx context.Context, row *RunRow) error {
	return InsertRunWithClient(ctx, r.client, r.dataset, row)
}

func (r *Repository) InsertRows(ctx context.Context, rows []*ReconciledRow) error {
	return InsertReconciledRowsWithClient(ctx, r.client, r.dataset, rows)
}

func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*RunRow, error) {
	return ListRunsWithClient(ctx, r.client, r.dataset, limit)
}

func (r *Repository) ListRows(ctx context.Context, runID string) ([]*ReconciledRow, error) {
	return QueryReconciledRowsWithClient(ctx, r.client, r.dataset, runID)
}

func (r *Repository) InsertStatement(ctx context.Context, stmt *StatementRow, txs []*BankTransactionRow) error {
	return InsertStatementWithClient(ctx, r.client, r.dataset, stmt, txs)
}

func (r *Repository) FindStatementByChecksum(ctx context.Context, checksum string) (*StatementRow, error) {
	return FindStatementByChecksumWithClient(ctx, r.client, r.dataset, checksum)
}

func (r *Repository) QueryBankTransactions(ctx context.Context, from, to time.Time) ([]*BankTransactionRow, error) {
	return QueryBankTransactionsByDateRangeWithClient(ctx, r.client, r.dataset, from, to)
}
