// Package pricing reconstructs the expected charge breakdown for an invoice
// from the applicable rate data and compares it against what the carrier
// billed. One calculator per transportation mode; the dispatcher routes an
// invoice to the right one.
package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/store"
)

// RateStore is the read-only rate data surface the calculators consume.
// *store.Store satisfies it; tests use in-memory fakes.
type RateStore interface {
	ListAirLanes(ctx context.Context, originPort, destPort string) ([]store.AirLane, error)
	ListOceanLanes(ctx context.Context) ([]store.OceanLane, error)
	ExpressZone(ctx context.Context, serviceType, countryCode string) (string, error)
	ExpressRate(ctx context.Context, serviceType, section string, weightKg float64) (store.ExpressRateRow, error)
	ExpressMultiplier(ctx context.Context, serviceType, section string, weightKg float64) (store.ExpressRateRow, error)
	ThirdPartyZone(ctx context.Context, countryCode string) (string, error)
	ThirdPartyRateZone(ctx context.Context, originZone, destZone string) (string, error)
	ThirdPartyWeightRate(ctx context.Context, weightKg float64, rateZone string) (decimal.Decimal, error)
	AUDomesticRateZone(ctx context.Context, originZone, destZone int) (string, error)
	AUDomesticRate(ctx context.Context, weightKg float64, rateZone string) (decimal.Decimal, error)
	ListServiceSurcharges(ctx context.Context) ([]store.SurchargeRow, error)
	DGFQuote(ctx context.Context, quoteID string) (store.SpotQuote, error)
	MaxFreightLineWeight(ctx context.Context, awb string) (float64, error)
}

// usdCharges is an invoice's charge map after currency normalization.
type usdCharges = map[audit.ChargeKind]decimal.Decimal

// charges wraps the USD charge map with zero-defaulting access and
// consumption tracking, so every actual ends up on exactly one line.
type charges struct {
	usd  map[audit.ChargeKind]decimal.Decimal
	used map[audit.ChargeKind]bool
}

func newCharges(usd map[audit.ChargeKind]decimal.Decimal) *charges {
	return &charges{usd: usd, used: make(map[audit.ChargeKind]bool)}
}

// take returns the actual for a kind and marks it consumed.
func (c *charges) take(kind audit.ChargeKind) decimal.Decimal {
	c.used[kind] = true
	if v, ok := c.usd[kind]; ok {
		return v
	}
	return decimal.Zero
}

// remaining returns the kinds with a non-zero actual that no line consumed,
// in a fixed order so emission is stable.
func (c *charges) remaining() []audit.ChargeKind {
	order := []audit.ChargeKind{
		audit.ChargeFreight, audit.ChargeFuel, audit.ChargeSecurity,
		audit.ChargeOriginHandling, audit.ChargeDestinationHandling,
		audit.ChargePickup, audit.ChargeDelivery, audit.ChargeCustoms,
		audit.ChargeDutyTax, audit.ChargePSS, audit.ChargeServiceSurcharge,
		audit.ChargeHandling, audit.ChargeOther,
	}
	var out []audit.ChargeKind
	for _, k := range order {
		if !c.used[k] && !c.usd[k].IsZero() {
			out = append(out, k)
		}
	}
	return out
}

// rateLine emits a rate-card comparison line when either side is non-zero.
func rateLine(lines []audit.LineItem, c *charges, kind audit.ChargeKind, expected decimal.Decimal) []audit.LineItem {
	actual := c.take(kind)
	if actual.IsZero() && expected.IsZero() {
		return lines
	}
	return append(lines, audit.NewLineItem(kind, actual, expected, audit.AuditRateCard))
}

// passLines emits pass-through lines for each kind with a non-zero actual.
func passLines(lines []audit.LineItem, c *charges, kinds ...audit.ChargeKind) []audit.LineItem {
	for _, kind := range kinds {
		actual := c.take(kind)
		if actual.IsZero() {
			continue
		}
		lines = append(lines, audit.NewLineItem(kind, actual, decimal.Zero, audit.AuditPassThrough))
	}
	return lines
}

// extraLines emits additional-charge lines for every unconsumed actual.
func extraLines(lines []audit.LineItem, c *charges) []audit.LineItem {
	for _, kind := range c.remaining() {
		lines = append(lines, audit.NewLineItem(kind, c.take(kind), decimal.Zero, audit.AuditAdditionalCharge))
	}
	return lines
}

// assemble converts a classified summary into the invoice-level result.
func assemble(inv audit.Invoice, s audit.Summary, card audit.CardAudit, cardsChecked int, warnings []string) audit.Result {
	return audit.Result{
		InvoiceNo:           inv.InvoiceNo,
		Status:              s.Status,
		TotalInvoiceUSD:     s.TotalActualUSD.Round(2),
		TotalExpectedUSD:    s.TotalExpectedUSD.Round(2),
		TotalVarianceUSD:    s.TotalVarianceUSD.Round(2),
		VariancePercent:     s.VariancePercent,
		RateCardsChecked:    cardsChecked,
		BestMatchIdentifier: card.RateCardID,
		Lines:               s.Lines,
		Details: audit.Details{
			InvoiceDetails: audit.NewInvoiceDetails(inv),
			AuditResults:   []audit.CardAudit{card},
			Warnings:       warnings,
		},
	}
}

// verdictResult builds a result that carries a verdict but no rate-card
// comparison (no_rate_card, review_required on unroutable shipments, ...).
func verdictResult(inv audit.Invoice, status audit.Verdict, reason string) audit.Result {
	total := decimal.Zero
	for _, v := range inv.Charges {
		total = total.Add(v)
	}
	return audit.Result{
		InvoiceNo:       inv.InvoiceNo,
		Status:          status,
		TotalInvoiceUSD: total.Round(2),
		Details: audit.Details{
			InvoiceDetails: audit.NewInvoiceDetails(inv),
			AuditResults: []audit.CardAudit{{
				AuditStatus:  status,
				StatusReason: reason,
			}},
		},
	}
}

// maxDec is max(a, b) for decimals.
func maxDec(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThanOrEqual(b) {
		return a
	}
	return b
}

// perUnit computes max(min, rate * qty) rounded to cents.
func perUnit(min, rate decimal.Decimal, qty float64) decimal.Decimal {
	return maxDec(min, rate.Mul(decimal.NewFromFloat(qty))).Round(2)
}
