package audit

import "github.com/shopspring/decimal"

// Details is the serialized per-invoice blob persisted alongside each audit
// result row. Decimals marshal as quoted strings so numeric fields survive
// a round trip exactly.
type Details struct {
	InvoiceDetails InvoiceDetails `json:"invoice_details"`
	AuditResults   []CardAudit    `json:"audit_results"`
	Warnings       []string       `json:"warnings,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// InvoiceDetails echoes the invoice fields that matter when reading a
// result without re-fetching the invoice.
type InvoiceDetails struct {
	InvoiceNo   string  `json:"invoice_no"`
	Mode        Mode    `json:"mode"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	ServiceType string  `json:"service_type,omitempty"`
	WeightKg    float64 `json:"weight_kg"`
	VolumeM3    float64 `json:"volume_m3,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}

// CardAudit is the outcome of comparing the invoice against one rate card
// candidate. Normally there is exactly one; the air Standard/Expedite case
// records both.
type CardAudit struct {
	RateCardID         string            `json:"rate_card_id"`
	LaneDescription    string            `json:"lane_description"`
	Service            string            `json:"service"`
	AuditStatus        Verdict           `json:"audit_status"`
	TotalExpected      decimal.Decimal   `json:"total_expected"`
	TotalActual        decimal.Decimal   `json:"total_actual"`
	TotalVariance      decimal.Decimal   `json:"total_variance"`
	Variances          []VarianceEntry   `json:"variances"`
	CalculationDetails map[string]string `json:"calculation_details,omitempty"`
	StatusReason       string            `json:"status_reason,omitempty"`
}

// VarianceEntry is one line of a CardAudit breakdown.
type VarianceEntry struct {
	ChargeType  string          `json:"charge_type"`
	Expected    decimal.Decimal `json:"expected"`
	Actual      decimal.Decimal `json:"actual"`
	Variance    decimal.Decimal `json:"variance"`
	VariancePct decimal.Decimal `json:"variance_pct"`
	AuditType   AuditType       `json:"audit_type,omitempty"`
}

// NewInvoiceDetails captures the invoice echo for a details blob.
func NewInvoiceDetails(inv Invoice) InvoiceDetails {
	return InvoiceDetails{
		InvoiceNo:   inv.InvoiceNo,
		Mode:        inv.Mode,
		Origin:      inv.Origin,
		Destination: inv.Destination,
		ServiceType: inv.ServiceType,
		WeightKg:    inv.WeightKg,
		VolumeM3:    inv.VolumeM3,
		Currency:    inv.Currency,
	}
}

// NewCardAudit converts a classified summary into the persisted card-level
// record. Line-item order is preserved as emitted by the calculator.
func NewCardAudit(rateCardID, laneDescription, service string, s Summary) CardAudit {
	ca := CardAudit{
		RateCardID:      rateCardID,
		LaneDescription: laneDescription,
		Service:         service,
		AuditStatus:     s.Status,
		TotalExpected:   s.TotalExpectedUSD.Round(2),
		TotalActual:     s.TotalActualUSD.Round(2),
		TotalVariance:   s.TotalVarianceUSD.Round(2),
		Variances:       make([]VarianceEntry, 0, len(s.Lines)),
	}
	for _, li := range s.Lines {
		ca.Variances = append(ca.Variances, VarianceEntry{
			ChargeType:  li.ChargeKind.Name(),
			Expected:    li.ExpectedUSD.Round(2),
			Actual:      li.ActualUSD.Round(2),
			Variance:    li.VarianceUSD.Round(2),
			VariancePct: li.VariancePct,
			AuditType:   li.AuditType,
		})
	}
	return ca
}
