// Command audit runs invoice audits from the command line: one invoice on
// the spot, or a persisted batch over a named set (or all year-to-date
// invoices).
//
// Exit codes: 0 success, 2 no invoices matched, 3 database unreachable,
// 10+ unexpected failure.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cargoaudit/api/internal/batch"
	"github.com/cargoaudit/api/internal/config"
	"github.com/cargoaudit/api/internal/pricing"
	"github.com/cargoaudit/api/internal/store"
)

const (
	exitOK           = 0
	exitNoInvoices   = 2
	exitDBUnreachable = 3
	exitUnexpected   = 10
)

func main() {
	os.Exit(run())
}

func run() int {
	invoiceNo := flag.String("invoice", "", "audit a single invoice and print the result")
	batchName := flag.String("batch-name", "", "name for the batch run record")
	invoices := flag.String("invoices", "", "comma-separated invoice numbers (default: all year-to-date)")
	forceReaudit := flag.Bool("force-reaudit", false, "delete prior results for the selected invoices first")
	workers := flag.Int("workers", 0, "parallel workers (default from AUDIT_WORKERS)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database unreachable", "error", err)
		return exitDBUnreachable
	}
	defer pool.Close()

	st := store.New(pool, logger)
	dispatcher := pricing.NewDispatcher(st, logger)
	coordinator := batch.New(st, dispatcher, cfg.Audit, logger)

	if *invoiceNo != "" {
		return auditSingle(ctx, coordinator, *invoiceNo)
	}

	sel := batch.Selector{}
	if *invoices != "" {
		for _, no := range strings.Split(*invoices, ",") {
			if no = strings.TrimSpace(no); no != "" {
				sel.InvoiceNos = append(sel.InvoiceNos, no)
			}
		}
	}

	run, err := coordinator.Run(ctx, sel, batch.Options{
		Name:         *batchName,
		ForceReaudit: *forceReaudit,
		Workers:      *workers,
	})
	switch {
	case errors.Is(err, batch.ErrNoInvoices):
		logger.Error("no invoices matched the selection")
		return exitNoInvoices
	case err != nil:
		logger.Error("batch run failed", "batch_run_id", run.ID, "status", run.Status, "error", err)
		return exitUnexpected
	}

	fmt.Printf("batch %s %s: %d invoices (%d approved, %d review, %d rejected, %d error, %d no rate card) in %dms\n",
		run.ID, run.Status, run.TotalInvoices,
		run.ApprovedCount, run.ReviewCount, run.RejectedCount,
		run.ErrorCount, run.NoRateCardCount, run.ProcessingMs)
	return exitOK
}

func auditSingle(ctx context.Context, coordinator *batch.Coordinator, invoiceNo string) int {
	res, err := coordinator.AuditInvoice(ctx, invoiceNo)
	if errors.Is(err, store.ErrInvoiceNotFound) {
		slog.Error("invoice not found", "invoice_no", invoiceNo)
		return exitNoInvoices
	}
	if err != nil {
		slog.Error("audit failed", "invoice_no", invoiceNo, "error", err)
		return exitUnexpected
	}

	out, err := json.MarshalIndent(struct {
		InvoiceNo        string `json:"invoice_no"`
		Status           string `json:"status"`
		TotalInvoiceUSD  string `json:"total_invoice_amount_usd"`
		TotalExpectedUSD string `json:"total_expected_amount_usd"`
		TotalVarianceUSD string `json:"total_variance_usd"`
		VariancePercent  string `json:"variance_percent"`
		RateCardsChecked int    `json:"rate_cards_checked"`
	}{
		InvoiceNo:        res.InvoiceNo,
		Status:           string(res.Status),
		TotalInvoiceUSD:  res.TotalInvoiceUSD.StringFixed(2),
		TotalExpectedUSD: res.TotalExpectedUSD.StringFixed(2),
		TotalVarianceUSD: res.TotalVarianceUSD.StringFixed(2),
		VariancePercent:  res.VariancePercent.StringFixed(2),
		RateCardsChecked: res.RateCardsChecked,
	}, "", "  ")
	if err != nil {
		slog.Error("encoding result", "error", err)
		return exitUnexpected
	}
	fmt.Println(string(out))
	return exitOK
}
