// Package api holds the JSON HTTP handlers of the audit service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/batch"
	"github.com/cargoaudit/api/internal/store"
)

// AuditRunner drives audits. *batch.Coordinator satisfies it.
type AuditRunner interface {
	AuditInvoice(ctx context.Context, invoiceNo string) (audit.Result, error)
	Run(ctx context.Context, sel batch.Selector, opts batch.Options) (store.BatchRun, error)
}

// ResultStore reads and deletes persisted batches. *store.Store satisfies it.
type ResultStore interface {
	GetBatchRun(ctx context.Context, id uuid.UUID) (store.BatchRun, error)
	GetBatchResults(ctx context.Context, id uuid.UUID, status string, page, pageSize int) (store.PagedResults, error)
	DeleteBatchCascade(ctx context.Context, id uuid.UUID) (bool, error)
	LatestResultForInvoice(ctx context.Context, invoiceNo string) (store.ResultRow, error)
}

// AuditHandler holds dependencies for the audit API endpoints.
type AuditHandler struct {
	runner  AuditRunner
	results ResultStore
	logger  *slog.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(runner AuditRunner, results ResultStore, logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{runner: runner, results: results, logger: logger}
}

// RegisterRoutes registers all audit API routes on the given mux.
func (h *AuditHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/audits/invoice/{no}", h.AuditInvoice)
	mux.HandleFunc("GET /api/audits/invoice/{no}", h.LatestResult)
	mux.HandleFunc("POST /api/audits/batches", h.RunBatch)
	mux.HandleFunc("GET /api/audits/batches/{id}", h.GetBatch)
	mux.HandleFunc("GET /api/audits/batches/{id}/results", h.GetBatchResults)
	mux.HandleFunc("DELETE /api/audits/batches/{id}", h.DeleteBatch)
}

// --- JSON request/response types ---

type auditResultJSON struct {
	InvoiceNo           string          `json:"invoice_no"`
	Status              audit.Verdict   `json:"status"`
	TotalInvoiceUSD     decimal.Decimal `json:"total_invoice_amount_usd"`
	TotalExpectedUSD    decimal.Decimal `json:"total_expected_amount_usd"`
	TotalVarianceUSD    decimal.Decimal `json:"total_variance_usd"`
	VariancePercent     decimal.Decimal `json:"variance_percent"`
	RateCardsChecked    int             `json:"rate_cards_checked"`
	BestMatchIdentifier string          `json:"best_match_identifier,omitempty"`
	Details             audit.Details   `json:"details"`
}

type runBatchRequest struct {
	Name         string   `json:"name"`
	InvoiceNos   []string `json:"invoice_nos,omitempty"`
	ForceReaudit bool     `json:"force_reaudit,omitempty"`
	Workers      int      `json:"workers,omitempty"`
}

type batchRunJSON struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	TotalInvoices   int        `json:"total_invoices"`
	ApprovedCount   int        `json:"approved_count"`
	ReviewCount     int        `json:"review_count"`
	RejectedCount   int        `json:"rejected_count"`
	ErrorCount      int        `json:"error_count"`
	NoRateCardCount int        `json:"no_rate_card_count"`
	ProcessingMs    int64      `json:"processing_ms"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

type resultRowJSON struct {
	ID                  uuid.UUID       `json:"id"`
	InvoiceNo           string          `json:"invoice_no"`
	Status              string          `json:"status"`
	TotalInvoiceUSD     decimal.Decimal `json:"total_invoice_amount_usd"`
	TotalExpectedUSD    decimal.Decimal `json:"total_expected_amount_usd"`
	TotalVarianceUSD    decimal.Decimal `json:"total_variance_usd"`
	VariancePercent     decimal.Decimal `json:"variance_percent"`
	RateCardsChecked    int             `json:"rate_cards_checked"`
	BestMatchIdentifier string          `json:"best_match_identifier,omitempty"`
	Details             json.RawMessage `json:"details"`
	CreatedAt           time.Time       `json:"created_at"`
}

type batchResultsResponse struct {
	Results  []resultRowJSON `json:"results"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// --- Handlers ---

// AuditInvoice handles POST /api/audits/invoice/{no}: audits one invoice on
// the spot without writing a batch record.
func (h *AuditHandler) AuditInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceNo := r.PathValue("no")

	res, err := h.runner.AuditInvoice(r.Context(), invoiceNo)
	if errors.Is(err, store.ErrInvoiceNotFound) {
		writeJSON(w, http.StatusNotFound, errorJSON{Error: "invoice not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to audit invoice", "invoice_no", invoiceNo, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, resultToJSON(res))
}

// LatestResult handles GET /api/audits/invoice/{no}: the most recent
// persisted result for an invoice across all batches.
func (h *AuditHandler) LatestResult(w http.ResponseWriter, r *http.Request) {
	invoiceNo := r.PathValue("no")

	row, err := h.results.LatestResultForInvoice(r.Context(), invoiceNo)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorJSON{Error: "no audit result for invoice"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load latest result", "invoice_no", invoiceNo, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, rowToJSON(row))
}

// RunBatch handles POST /api/audits/batches: runs a batch synchronously and
// returns the finished run record.
func (h *AuditHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req runBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	run, err := h.runner.Run(r.Context(),
		batch.Selector{InvoiceNos: req.InvoiceNos},
		batch.Options{Name: req.Name, ForceReaudit: req.ForceReaudit, Workers: req.Workers})
	if errors.Is(err, batch.ErrNoInvoices) {
		writeJSON(w, http.StatusUnprocessableEntity, errorJSON{Error: "no invoices matched the selection"})
		return
	}
	if err != nil {
		h.logger.Error("batch run failed", "name", req.Name, "error", err)
		// The run record still carries the partial counts.
		if run.ID != uuid.Nil {
			writeJSON(w, http.StatusInternalServerError, runToJSON(run))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, runToJSON(run))
}

// GetBatch handles GET /api/audits/batches/{id}.
func (h *AuditHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBatchID(w, r)
	if !ok {
		return
	}

	run, err := h.results.GetBatchRun(r.Context(), id)
	if errors.Is(err, store.ErrBatchNotFound) {
		writeJSON(w, http.StatusNotFound, errorJSON{Error: "batch not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load batch", "batch_run_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, runToJSON(run))
}

// GetBatchResults handles GET /api/audits/batches/{id}/results with optional
// status filter and pagination.
func (h *AuditHandler) GetBatchResults(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBatchID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	paged, err := h.results.GetBatchResults(r.Context(), id, q.Get("status"), page, pageSize)
	if err != nil {
		h.logger.Error("failed to load batch results", "batch_run_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	resp := batchResultsResponse{
		Results:  make([]resultRowJSON, len(paged.Results)),
		Total:    paged.Total,
		Page:     paged.Page,
		PageSize: paged.PageSize,
	}
	for i, row := range paged.Results {
		resp.Results[i] = rowToJSON(row)
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteBatch handles DELETE /api/audits/batches/{id}: removes the batch and
// all its results.
func (h *AuditHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBatchID(w, r)
	if !ok {
		return
	}

	found, err := h.results.DeleteBatchCascade(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete batch", "batch_run_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorJSON{Error: "batch not found"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func parseBatchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid batch id"})
		return uuid.Nil, false
	}
	return id, true
}

func resultToJSON(res audit.Result) auditResultJSON {
	return auditResultJSON{
		InvoiceNo:           res.InvoiceNo,
		Status:              res.Status,
		TotalInvoiceUSD:     res.TotalInvoiceUSD,
		TotalExpectedUSD:    res.TotalExpectedUSD,
		TotalVarianceUSD:    res.TotalVarianceUSD,
		VariancePercent:     res.VariancePercent,
		RateCardsChecked:    res.RateCardsChecked,
		BestMatchIdentifier: res.BestMatchIdentifier,
		Details:             res.Details,
	}
}

func runToJSON(run store.BatchRun) batchRunJSON {
	return batchRunJSON{
		ID:              run.ID,
		Name:            run.Name,
		Status:          run.Status,
		TotalInvoices:   run.TotalInvoices,
		ApprovedCount:   run.ApprovedCount,
		ReviewCount:     run.ReviewCount,
		RejectedCount:   run.RejectedCount,
		ErrorCount:      run.ErrorCount,
		NoRateCardCount: run.NoRateCardCount,
		ProcessingMs:    run.ProcessingMs,
		CreatedAt:       run.CreatedAt,
		CompletedAt:     run.CompletedAt,
	}
}

func rowToJSON(row store.ResultRow) resultRowJSON {
	return resultRowJSON{
		ID:                  row.ID,
		InvoiceNo:           row.InvoiceNo,
		Status:              row.Status,
		TotalInvoiceUSD:     row.TotalInvoiceUSD,
		TotalExpectedUSD:    row.TotalExpectedUSD,
		TotalVarianceUSD:    row.TotalVarianceUSD,
		VariancePercent:     row.VariancePercent,
		RateCardsChecked:    row.RateCardsChecked,
		BestMatchIdentifier: row.BestMatchIdentifier,
		Details:             json.RawMessage(row.Details),
		CreatedAt:           row.CreatedAt,
	}
}
