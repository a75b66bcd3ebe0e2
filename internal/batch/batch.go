// Package batch runs audits over sets of invoices: a worker pool prices each
// invoice through the dispatcher, persists the per-invoice result, and rolls
// the verdicts up into one batch_runs record.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/config"
	"github.com/cargoaudit/api/internal/store"
)

// ErrNoInvoices is returned when the selector matches nothing; the CLI maps
// it to its own exit code.
var ErrNoInvoices = errors.New("no invoices matched the selection")

// Store is the persistence surface the coordinator needs. *store.Store
// satisfies it; tests use an in-memory fake.
type Store interface {
	GetInvoice(ctx context.Context, invoiceNo string) (audit.Invoice, error)
	ListYTDInvoiceNos(ctx context.Context) ([]string, error)
	InsertBatchRun(ctx context.Context, name string) (store.BatchRun, error)
	UpdateBatchRunTotals(ctx context.Context, run store.BatchRun) error
	InsertAuditResult(ctx context.Context, batchRunID uuid.UUID, res audit.Result) error
	DeleteAuditResultsFor(ctx context.Context, invoiceNos []string) (int64, error)
}

// Auditor prices and classifies one invoice. *pricing.Dispatcher satisfies it.
type Auditor interface {
	Audit(ctx context.Context, inv audit.Invoice) (audit.Result, error)
}

// Selector names the invoices a batch covers. An empty selector means every
// year-to-date invoice.
type Selector struct {
	InvoiceNos []string
}

// Options are the per-run tunables.
type Options struct {
	Name         string
	ForceReaudit bool
	Workers      int
	Timeout      time.Duration
}

// Coordinator drives batch runs.
type Coordinator struct {
	store   Store
	auditor Auditor
	cfg     config.AuditConfig
	logger  *slog.Logger
}

// New creates a coordinator. Zero-value config fields fall back to the
// loader defaults.
func New(st Store, auditor Auditor, cfg config.AuditConfig, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.InvoiceTimeout <= 0 {
		cfg.InvoiceTimeout = 30 * time.Second
	}
	if cfg.CommitInterval < 1 {
		cfg.CommitInterval = 50
	}
	return &Coordinator{store: st, auditor: auditor, cfg: cfg, logger: logger}
}

// AuditInvoice audits a single invoice without a batch record. Used by the
// single-invoice API and the CLI -invoice flag.
func (c *Coordinator) AuditInvoice(ctx context.Context, invoiceNo string) (audit.Result, error) {
	inv, err := c.store.GetInvoice(ctx, invoiceNo)
	if err != nil {
		return audit.Result{}, err
	}
	return c.auditor.Audit(ctx, inv)
}

// counters aggregates verdicts across workers.
type counters struct {
	mu        sync.Mutex
	processed int
	byVerdict map[audit.Verdict]int
}

func (cn *counters) add(v audit.Verdict) int {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	cn.byVerdict[v]++
	cn.processed++
	return cn.processed
}

// Run executes one batch: insert the running batch_run row, optionally wipe
// prior results for the selected invoices, audit them on a worker pool, and
// finalize the run with its counters. Per-invoice failures (audit fault,
// timeout, missing invoice) become error result rows; only persistence
// failures and cancellation abort the run, which is then finalized as error
// or cancelled with the partial counts.
func (c *Coordinator) Run(ctx context.Context, sel Selector, opts Options) (store.BatchRun, error) {
	invoiceNos := sel.InvoiceNos
	if len(invoiceNos) == 0 {
		var err error
		invoiceNos, err = c.store.ListYTDInvoiceNos(ctx)
		if err != nil {
			return store.BatchRun{}, fmt.Errorf("listing invoices: %w", err)
		}
	}
	if len(invoiceNos) == 0 {
		return store.BatchRun{}, ErrNoInvoices
	}

	workers := opts.Workers
	if workers < 1 {
		workers = c.cfg.Workers
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.InvoiceTimeout
	}

	run, err := c.store.InsertBatchRun(ctx, opts.Name)
	if err != nil {
		return store.BatchRun{}, err
	}
	start := time.Now()

	if opts.ForceReaudit {
		deleted, err := c.store.DeleteAuditResultsFor(ctx, invoiceNos)
		if err != nil {
			return c.finalize(ctx, run, nil, start, store.BatchError), err
		}
		c.logger.Info("prior results deleted for re-audit",
			"batch_run_id", run.ID, "deleted", deleted)
	}

	c.logger.Info("batch started",
		"batch_run_id", run.ID, "name", opts.Name,
		"invoices", len(invoiceNos), "workers", workers)

	cn := &counters{byVerdict: make(map[audit.Verdict]int)}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, invoiceNo := range invoiceNos {
		g.Go(func() error {
			// Cancellation stops new invoices from starting; an invoice
			// already in flight finishes and its result still lands.
			if err := gctx.Err(); err != nil {
				return err
			}
			res := c.auditOne(gctx, invoiceNo, timeout)
			wctx, release := writeCtx(gctx)
			defer release()
			if err := c.store.InsertAuditResult(wctx, run.ID, res); err != nil {
				return err
			}
			if n := cn.add(res.Status); n%c.cfg.CommitInterval == 0 {
				c.logger.Info("batch progress",
					"batch_run_id", run.ID, "processed", n, "total", len(invoiceNos))
			}
			return gctx.Err()
		})
	}
	err = g.Wait()

	status := store.BatchCompleted
	switch {
	case errors.Is(err, context.Canceled):
		status = store.BatchCancelled
	case err != nil:
		status = store.BatchError
	}

	run = c.finalize(ctx, run, cn, start, status)
	c.logger.Info("batch finished",
		"batch_run_id", run.ID, "status", run.Status,
		"processed", run.TotalInvoices, "elapsed_ms", run.ProcessingMs)
	return run, err
}

// auditOne audits one invoice under its wall-clock budget. The budget is
// detached from the batch context, so a cancelled batch lets the in-flight
// invoice run to completion. Never returns an error: every failure mode is
// folded into an error-verdict result row.
func (c *Coordinator) auditOne(ctx context.Context, invoiceNo string, timeout time.Duration) audit.Result {
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	inv, err := c.store.GetInvoice(ictx, invoiceNo)
	if errors.Is(err, store.ErrInvoiceNotFound) {
		return errorResult(invoiceNo, "invoice not found")
	}
	if err != nil {
		return c.faultResult(ictx, invoiceNo, err)
	}

	res, err := c.auditor.Audit(ictx, inv)
	if err != nil {
		return c.faultResult(ictx, invoiceNo, err)
	}
	if errors.Is(ictx.Err(), context.DeadlineExceeded) {
		return c.faultResult(ictx, invoiceNo, ictx.Err())
	}
	return res
}

// faultResult maps an audit failure to an error row, collapsing deadline
// overruns to the fixed timeout marker.
func (c *Coordinator) faultResult(ictx context.Context, invoiceNo string, err error) audit.Result {
	if errors.Is(ictx.Err(), context.DeadlineExceeded) {
		c.logger.Warn("invoice audit timed out", "invoice_no", invoiceNo)
		return errorResult(invoiceNo, "timeout")
	}
	c.logger.Error("invoice audit failed", "invoice_no", invoiceNo, "error", err)
	return errorResult(invoiceNo, err.Error())
}

func errorResult(invoiceNo, msg string) audit.Result {
	return audit.Result{
		InvoiceNo: invoiceNo,
		Status:    audit.VerdictError,
		Details: audit.Details{
			InvoiceDetails: audit.InvoiceDetails{InvoiceNo: invoiceNo},
			Error:          msg,
		},
	}
}

// finalize writes the terminal batch_run row. The finalizing update uses a
// fresh context so a cancelled batch still records its partial counts.
func (c *Coordinator) finalize(ctx context.Context, run store.BatchRun, cn *counters, start time.Time, status string) store.BatchRun {
	run.Status = status
	run.ProcessingMs = time.Since(start).Milliseconds()
	if cn != nil {
		cn.mu.Lock()
		run.TotalInvoices = cn.processed
		run.ApprovedCount = cn.byVerdict[audit.VerdictApproved]
		run.ReviewCount = cn.byVerdict[audit.VerdictReview]
		run.RejectedCount = cn.byVerdict[audit.VerdictRejected]
		run.ErrorCount = cn.byVerdict[audit.VerdictError]
		run.NoRateCardCount = cn.byVerdict[audit.VerdictNoRateCard]
		cn.mu.Unlock()
	}

	uctx, release := writeCtx(ctx)
	defer release()
	if err := c.store.UpdateBatchRunTotals(uctx, run); err != nil {
		c.logger.Error("finalizing batch run failed", "batch_run_id", run.ID, "error", err)
	}
	return run
}

// writeCtx returns ctx while it is alive, or a short fresh context once it
// is dead, so results of already-finished work still reach the store.
func writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.Background(), 5*time.Second)
}
