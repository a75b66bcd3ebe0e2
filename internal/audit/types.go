// Package audit holds the shared invoice/result model of the audit engine
// and the variance classifier that turns per-charge comparisons into an
// overall verdict.
package audit

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMissing is returned when a non-USD invoice carries no exchange
// rate. The engine never guesses a rate of 1.0.
var ErrCurrencyMissing = errors.New("no exchange rate for non-USD invoice")

// Mode tags the transportation mode of an invoice and selects the pricing
// calculator in the dispatcher.
type Mode string

const (
	ModeAir        Mode = "air"
	ModeOcean      Mode = "ocean"
	ModeExpress    Mode = "express"
	ModeExpress3P  Mode = "express_3p"
	ModeAUDomestic Mode = "au_domestic"
	ModeDGFAir     Mode = "dgf_air"
	ModeDGFSea     Mode = "dgf_sea"
)

// ChargeKind identifies one line of an invoice's charge breakdown.
type ChargeKind string

const (
	ChargeFreight             ChargeKind = "freight"
	ChargeFuel                ChargeKind = "fuel"
	ChargeSecurity            ChargeKind = "security"
	ChargeOriginHandling      ChargeKind = "origin_handling"
	ChargeDestinationHandling ChargeKind = "destination_handling"
	ChargePickup              ChargeKind = "pickup"
	ChargeDelivery            ChargeKind = "delivery"
	ChargeCustoms             ChargeKind = "customs"
	ChargeDutyTax             ChargeKind = "duty_tax"
	ChargePSS                 ChargeKind = "pss"
	ChargeServiceSurcharge    ChargeKind = "service_surcharge"
	ChargeHandling            ChargeKind = "handling"
	ChargeOther               ChargeKind = "other"
)

// chargeNames are the human-readable labels used in the persisted details
// blob and reports.
var chargeNames = map[ChargeKind]string{
	ChargeFreight:             "Freight",
	ChargeFuel:                "Fuel Surcharge",
	ChargeSecurity:            "Security Surcharge",
	ChargeOriginHandling:      "Origin Handling",
	ChargeDestinationHandling: "Destination Handling",
	ChargePickup:              "Pickup",
	ChargeDelivery:            "Delivery",
	ChargeCustoms:             "Customs Clearance",
	ChargeDutyTax:             "Duties & Taxes",
	ChargePSS:                 "Peak Season Surcharge",
	ChargeServiceSurcharge:    "Service Surcharge",
	ChargeHandling:            "Handling Fee",
	ChargeOther:               "Other",
}

// Name returns the human label for a charge kind.
func (k ChargeKind) Name() string {
	if n, ok := chargeNames[k]; ok {
		return n
	}
	return string(k)
}

// AuditType classifies how a line item was audited.
type AuditType string

const (
	// AuditRateCard means the expected amount came from a rate card and
	// the variance counts toward the verdict.
	AuditRateCard AuditType = "rate_card_comparison"
	// AuditPassThrough marks charges the carrier passes through (fuel,
	// duty, customs); they are recorded at zero variance.
	AuditPassThrough AuditType = "pass_through"
	// AuditAdditionalCharge marks actual charges with no rate card line;
	// the actual is recorded as variance but excluded from the auditable
	// total.
	AuditAdditionalCharge AuditType = "additional_charge"
)

// Verdict is the overall audit status of an invoice.
type Verdict string

const (
	VerdictApproved   Verdict = "approved"
	VerdictReview     Verdict = "review_required"
	VerdictRejected   Verdict = "rejected"
	VerdictError      Verdict = "error"
	VerdictNoRateCard Verdict = "no_rate_card"
)

// Invoice is one audit target, normalized by the ingest layer. Charges are
// in the invoice currency; USDCharges applies the exchange rate.
type Invoice struct {
	InvoiceNo          string
	Mode               Mode
	Origin             string
	Destination        string
	OriginPort         string
	DestinationPort    string
	ServiceType        string // FCL/LCL/DOCUMENTS/NON-DOCUMENTS/DOMESTIC/EXPORT/IMPORT
	Description        string
	AWB                string
	QuoteID            string
	WeightKg           float64
	ChargeableWeightKg float64 // optional; >= WeightKg when present
	VolumeM3           float64
	Currency           string
	ExchangeRateToUSD  decimal.Decimal
	Charges            map[ChargeKind]decimal.Decimal
}

// USDCharges returns the charge map converted to USD. For non-USD invoices
// a missing or zero exchange rate is ErrCurrencyMissing.
func (inv Invoice) USDCharges() (map[ChargeKind]decimal.Decimal, error) {
	if inv.Currency == "" || inv.Currency == "USD" {
		out := make(map[ChargeKind]decimal.Decimal, len(inv.Charges))
		for k, v := range inv.Charges {
			out[k] = v
		}
		return out, nil
	}
	if inv.ExchangeRateToUSD.IsZero() {
		return nil, ErrCurrencyMissing
	}
	out := make(map[ChargeKind]decimal.Decimal, len(inv.Charges))
	for k, v := range inv.Charges {
		out[k] = v.Mul(inv.ExchangeRateToUSD).Round(2)
	}
	return out, nil
}

// BillableWeight returns the chargeable weight when present, else the gross.
func (inv Invoice) BillableWeight() float64 {
	if inv.ChargeableWeightKg > 0 {
		return inv.ChargeableWeightKg
	}
	return inv.WeightKg
}

// LineItem is one audited charge.
type LineItem struct {
	ChargeKind  ChargeKind
	ActualUSD   decimal.Decimal
	ExpectedUSD decimal.Decimal
	VarianceUSD decimal.Decimal
	VariancePct decimal.Decimal
	AuditType   AuditType
}

// Result is the audit outcome for one invoice.
type Result struct {
	InvoiceNo           string
	Status              Verdict
	TotalInvoiceUSD     decimal.Decimal
	TotalExpectedUSD    decimal.Decimal
	TotalVarianceUSD    decimal.Decimal
	VariancePercent     decimal.Decimal
	RateCardsChecked    int
	BestMatchIdentifier string
	Lines               []LineItem
	Details             Details
}
