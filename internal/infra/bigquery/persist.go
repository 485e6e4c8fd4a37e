package bigquery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/jobs"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/reconcile"
)

// SaveRun stores a reconciliation run and returns its id. Rows are written
// before the summary so a listed run always has its rows.
func SaveRun(ctx context.Context, repo RunRepository, started time.Time, ledger *domain.LedgerResult, rep reconcile.Report, opts reconcile.Options) (string, error) {
	log := logger.FromContext(ctx)
	runID := uuid.NewString()

	if err := repo.InsertRows(ctx, ReconciledRowsFromReport(runID, rep)); err != nil {
		return "", fmt.Errorf("SaveRun: %w", err)
	}
	if err := repo.InsertRun(ctx, NewRunRow(runID, started, ledger, rep, opts)); err != nil {
		return "", fmt.Errorf("SaveRun: %w", err)
	}

	log.Info().Str("run_id", runID).Int("rows", len(rep.Rows)).Msg("Stored reconciliation run")
	return runID, nil
}

// SaveStatement stores an extracted file unless a file with the same
// checksum is already stored. It returns the statement id and whether a
// new row was written.
func SaveStatement(ctx context.Context, repo StatementRepository, checksum string, res domain.FileResult) (string, bool, error) {
	log := logger.FromContext(ctx)

	existing, err := repo.FindStatementByChecksum(ctx, checksum)
	if err != nil {
		return "", false, fmt.Errorf("SaveStatement: %w", err)
	}
	if existing != nil {
		log.Info().Str("statement_id", existing.StatementID).Str("file", res.File).Msg("Statement already stored")
		return existing.StatementID, false, nil
	}

	id := uuid.NewString()
	if err := repo.InsertStatement(ctx, StatementRowFromResult(id, checksum, res), BankTransactionRowsFromResult(id, res)); err != nil {
		return "", false, fmt.Errorf("SaveStatement: %w", err)
	}
	log.Info().Str("statement_id", id).Str("file", res.File).Int("transactions", len(res.Transactions)).Msg("Stored statement")
	return id, true, nil
}

// StatementSink stores every finished extraction job and links the job to
// its statement row. Failed extractions are stored too so the failure stays
// on record.
func StatementSink(repo StatementRepository) jobs.ResultSink {
	return func(ctx context.Context, job *jobs.ExtractFileJob) error {
		if job.Result == nil {
			return nil
		}
		id, _, err := SaveStatement(ctx, repo, job.Checksum, *job.Result)
		if err != nil {
			return err
		}
		job.StatementID = id
		return nil
	}
}
