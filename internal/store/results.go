package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cargoaudit/api/internal/audit"
)

// InsertBatchRun creates a new batch record in the running state.
func (s *Store) InsertBatchRun(ctx context.Context, name string) (BatchRun, error) {
	run := BatchRun{
		ID:        uuid.New(),
		Name:      name,
		Status:    BatchRunning,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO batch_runs (id, name, status, created_at)
		VALUES ($1, $2, $3, $4)`,
		run.ID, run.Name, run.Status, run.CreatedAt)
	if err != nil {
		return BatchRun{}, fmt.Errorf("inserting batch run: %w", err)
	}
	return run, nil
}

// UpdateBatchRunTotals finalizes a batch record with its counters and
// terminal status.
func (s *Store) UpdateBatchRunTotals(ctx context.Context, run BatchRun) error {
	completedAt := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE batch_runs
		SET status = $2, total_invoices = $3, approved_count = $4, review_count = $5,
		    rejected_count = $6, error_count = $7, no_rate_card_count = $8,
		    processing_ms = $9, completed_at = $10
		WHERE id = $1`,
		run.ID, run.Status, run.TotalInvoices, run.ApprovedCount, run.ReviewCount,
		run.RejectedCount, run.ErrorCount, run.NoRateCardCount, run.ProcessingMs, completedAt)
	if err != nil {
		return fmt.Errorf("updating batch run %s: %w", run.ID, err)
	}
	return nil
}

// GetBatchRun loads one batch record.
func (s *Store) GetBatchRun(ctx context.Context, id uuid.UUID) (BatchRun, error) {
	var run BatchRun
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, status, total_invoices, approved_count, review_count,
		       rejected_count, error_count, no_rate_card_count, processing_ms,
		       created_at, completed_at
		FROM batch_runs WHERE id = $1`, id).Scan(
		&run.ID, &run.Name, &run.Status, &run.TotalInvoices, &run.ApprovedCount,
		&run.ReviewCount, &run.RejectedCount, &run.ErrorCount, &run.NoRateCardCount,
		&run.ProcessingMs, &run.CreatedAt, &run.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BatchRun{}, ErrBatchNotFound
	}
	if err != nil {
		return BatchRun{}, fmt.Errorf("querying batch run %s: %w", id, err)
	}
	return run, nil
}

// InsertAuditResult persists one per-invoice result with its details blob.
func (s *Store) InsertAuditResult(ctx context.Context, batchRunID uuid.UUID, res audit.Result) error {
	details, err := json.Marshal(res.Details)
	if err != nil {
		return fmt.Errorf("serializing details for invoice %s: %w", res.InvoiceNo, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_results (
			id, batch_run_id, invoice_no, status,
			total_invoice_amount_usd, total_expected_amount_usd, total_variance_usd,
			variance_percent, rate_cards_checked, best_match_identifier, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.New(), batchRunID, res.InvoiceNo, string(res.Status),
		decimalToNumeric(res.TotalInvoiceUSD), decimalToNumeric(res.TotalExpectedUSD),
		decimalToNumeric(res.TotalVarianceUSD), decimalToNumeric(res.VariancePercent),
		res.RateCardsChecked, res.BestMatchIdentifier, details, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting audit result for invoice %s: %w", res.InvoiceNo, err)
	}
	return nil
}

// DeleteAuditResultsFor removes all prior results for the given invoices.
// Used by force_reaudit before a new batch writes.
func (s *Store) DeleteAuditResultsFor(ctx context.Context, invoiceNos []string) (int64, error) {
	if len(invoiceNos) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM audit_results WHERE invoice_no = ANY($1)`, invoiceNos)
	if err != nil {
		return 0, fmt.Errorf("deleting audit results: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteBatchCascade removes a batch's results and then the batch row, in
// one transaction. Returns false when the batch does not exist.
func (s *Store) DeleteBatchCascade(ctx context.Context, batchRunID uuid.UUID) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM audit_results WHERE batch_run_id = $1`, batchRunID); err != nil {
		return false, fmt.Errorf("deleting results for batch %s: %w", batchRunID, err)
	}
	tag, err := tx.Exec(ctx, `
		DELETE FROM batch_runs WHERE id = $1`, batchRunID)
	if err != nil {
		return false, fmt.Errorf("deleting batch run %s: %w", batchRunID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing batch delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetBatchResults returns one page of a batch's results, newest first,
// optionally filtered by status.
func (s *Store) GetBatchResults(ctx context.Context, batchRunID uuid.UUID, status string, page, pageSize int) (PagedResults, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 100
	}

	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM audit_results
		WHERE batch_run_id = $1 AND ($2 = '' OR status = $2)`,
		batchRunID, status).Scan(&total)
	if err != nil {
		return PagedResults{}, fmt.Errorf("counting batch results: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, batch_run_id, invoice_no, status,
		       total_invoice_amount_usd, total_expected_amount_usd, total_variance_usd,
		       variance_percent, rate_cards_checked, best_match_identifier, details, created_at
		FROM audit_results
		WHERE batch_run_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, invoice_no
		LIMIT $3 OFFSET $4`,
		batchRunID, status, pageSize, (page-1)*pageSize)
	if err != nil {
		return PagedResults{}, fmt.Errorf("querying batch results: %w", err)
	}
	defer rows.Close()

	out := PagedResults{Total: total, Page: page, PageSize: pageSize}
	for rows.Next() {
		var r ResultRow
		var nums [4]pgtype.Numeric
		if err := rows.Scan(
			&r.ID, &r.BatchRunID, &r.InvoiceNo, &r.Status,
			&nums[0], &nums[1], &nums[2], &nums[3],
			&r.RateCardsChecked, &r.BestMatchIdentifier, &r.Details, &r.CreatedAt,
		); err != nil {
			return PagedResults{}, fmt.Errorf("scanning audit result: %w", err)
		}
		r.TotalInvoiceUSD = numericToDecimal(nums[0])
		r.TotalExpectedUSD = numericToDecimal(nums[1])
		r.TotalVarianceUSD = numericToDecimal(nums[2])
		r.VariancePercent = numericToDecimal(nums[3])
		out.Results = append(out.Results, r)
	}
	return out, rows.Err()
}

// LatestResultForInvoice returns the most recent audit result for an
// invoice across batches, ordered by created_at descending.
func (s *Store) LatestResultForInvoice(ctx context.Context, invoiceNo string) (ResultRow, error) {
	var r ResultRow
	var nums [4]pgtype.Numeric
	err := s.pool.QueryRow(ctx, `
		SELECT id, batch_run_id, invoice_no, status,
		       total_invoice_amount_usd, total_expected_amount_usd, total_variance_usd,
		       variance_percent, rate_cards_checked, best_match_identifier, details, created_at
		FROM audit_results
		WHERE invoice_no = $1
		ORDER BY created_at DESC
		LIMIT 1`, invoiceNo).Scan(
		&r.ID, &r.BatchRunID, &r.InvoiceNo, &r.Status,
		&nums[0], &nums[1], &nums[2], &nums[3],
		&r.RateCardsChecked, &r.BestMatchIdentifier, &r.Details, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ResultRow{}, ErrNotFound
	}
	if err != nil {
		return ResultRow{}, fmt.Errorf("querying latest result for %s: %w", invoiceNo, err)
	}
	r.TotalInvoiceUSD = numericToDecimal(nums[0])
	r.TotalExpectedUSD = numericToDecimal(nums[1])
	r.TotalVarianceUSD = numericToDecimal(nums[2])
	r.VariancePercent = numericToDecimal(nums[3])
	return r, nil
}
