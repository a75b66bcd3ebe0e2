package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/cargoaudit/api/internal/audit"
)

// GetInvoice loads one invoice by number.
func (s *Store) GetInvoice(ctx context.Context, invoiceNo string) (audit.Invoice, error) {
	var inv audit.Invoice
	var fx pgtype.Numeric
	var charges []byte
	err := s.pool.QueryRow(ctx, `
		SELECT invoice_no, mode, origin, destination, origin_port, destination_port,
		       service_type, description, awb, quote_id, weight_kg, chargeable_weight_kg,
		       volume_m3, currency, exchange_rate_to_usd, charges
		FROM invoices WHERE invoice_no = $1`,
		invoiceNo).Scan(
		&inv.InvoiceNo, &inv.Mode, &inv.Origin, &inv.Destination, &inv.OriginPort, &inv.DestinationPort,
		&inv.ServiceType, &inv.Description, &inv.AWB, &inv.QuoteID, &inv.WeightKg, &inv.ChargeableWeightKg,
		&inv.VolumeM3, &inv.Currency, &fx, &charges)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.Invoice{}, ErrInvoiceNotFound
	}
	if err != nil {
		return audit.Invoice{}, fmt.Errorf("querying invoice %s: %w", invoiceNo, err)
	}
	inv.ExchangeRateToUSD = numericToDecimal(fx)

	var raw map[string]decimal.Decimal
	if err := json.Unmarshal(charges, &raw); err != nil {
		return audit.Invoice{}, fmt.Errorf("parsing charges for invoice %s: %w", invoiceNo, err)
	}
	inv.Charges = make(map[audit.ChargeKind]decimal.Decimal, len(raw))
	for k, v := range raw {
		inv.Charges[audit.ChargeKind(k)] = v
	}
	return inv, nil
}

// ListYTDInvoiceNos returns the invoice numbers of every year-to-date
// invoice, oldest first.
func (s *Store) ListYTDInvoiceNos(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT invoice_no FROM invoices
		WHERE date_trunc('year', created_at) = date_trunc('year', now())
		ORDER BY created_at, invoice_no`)
	if err != nil {
		return nil, fmt.Errorf("listing YTD invoices: %w", err)
	}
	defer rows.Close()

	var nos []string
	for rows.Next() {
		var no string
		if err := rows.Scan(&no); err != nil {
			return nil, fmt.Errorf("scanning invoice number: %w", err)
		}
		nos = append(nos, no)
	}
	return nos, rows.Err()
}

// MaxFreightLineWeight returns the largest freight-line weight recorded for
// an AWB. Surcharge lines often arrive with zero weight; the calculator
// borrows the shipment weight from the freight line of the same AWB.
func (s *Store) MaxFreightLineWeight(ctx context.Context, awb string) (float64, error) {
	var weight float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(weight_kg), 0) FROM invoices WHERE awb = $1`,
		awb).Scan(&weight)
	if err != nil {
		return 0, fmt.Errorf("querying max weight for AWB %s: %w", awb, err)
	}
	return weight, nil
}
