package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/store"
)

// DGF tolerances: freight within 5%, handling within 10%.
var (
	dgfFreightTolerance  = decimal.NewFromInt(5)
	dgfHandlingTolerance = decimal.NewFromInt(10)
)

// auditSpotQuote audits a DGF invoice against its spot quote. Air quotes
// price per chargeable kg, sea quotes per CBM; handling fees are flat.
func (d *Dispatcher) auditSpotQuote(ctx context.Context, inv audit.Invoice, usd usdCharges) (audit.Result, error) {
	if inv.QuoteID == "" {
		return verdictResult(inv, audit.VerdictNoRateCard, "invoice carries no quote id"), nil
	}
	quote, err := d.rates.DGFQuote(ctx, inv.QuoteID)
	if errors.Is(err, store.ErrNotFound) {
		return verdictResult(inv, audit.VerdictNoRateCard,
			fmt.Sprintf("no spot quote %s", inv.QuoteID)), nil
	}
	if err != nil {
		return audit.Result{}, err
	}
	if quote.Currency != "" && quote.Currency != "USD" && quote.FXToUSD.IsZero() {
		res := verdictResult(inv, audit.VerdictError,
			fmt.Sprintf("spot quote %s has no exchange rate for %s", quote.QuoteID, quote.Currency))
		res.Details.Error = audit.ErrCurrencyMissing.Error()
		return res, nil
	}

	var expectedFreight decimal.Decimal
	var calcNote string
	if inv.Mode == audit.ModeDGFAir {
		w := inv.BillableWeight()
		expectedFreight = quote.RatePerKg.Mul(decimal.NewFromFloat(w))
		calcNote = fmt.Sprintf("%.2f kg * %s/kg", w, quote.RatePerKg)
	} else {
		expectedFreight = quote.RatePerCBM.Mul(decimal.NewFromFloat(inv.VolumeM3))
		calcNote = fmt.Sprintf("%.3f cbm * %s/cbm", inv.VolumeM3, quote.RatePerCBM)
	}
	expectedFreight = quoteToUSD(quote, expectedFreight)
	expectedHandling := quoteToUSD(quote, quote.HandlingFee)

	c := newCharges(usd)
	var lines []audit.LineItem
	lines = rateLine(lines, c, audit.ChargeFreight, expectedFreight)
	lines = rateLine(lines, c, audit.ChargeHandling, expectedHandling)
	lines = passLines(lines, c, audit.ChargeFuel, audit.ChargeDutyTax, audit.ChargeCustoms)
	lines = extraLines(lines, c)
	s := audit.Classify(lines)
	s.Status = dgfVerdict(lines)

	card := audit.NewCardAudit(
		quote.QuoteID,
		fmt.Sprintf("%s -> %s", quote.Origin, quote.Destination),
		quote.Mode,
		s,
	)
	card.AuditStatus = s.Status
	card.CalculationDetails = map[string]string{"calculation": calcNote}
	return assemble(inv, s, card, 1, nil), nil
}

// quoteToUSD converts a quoted amount to USD with the quote-time FX rate.
// Quotes in a foreign currency without a rate never reach here; the audit
// refuses them instead of guessing 1.0.
func quoteToUSD(q store.SpotQuote, amount decimal.Decimal) decimal.Decimal {
	if q.Currency == "" || q.Currency == "USD" {
		return amount.Round(2)
	}
	return amount.Mul(q.FXToUSD).Round(2)
}

// dgfVerdict applies the spot-quote tolerances per line: freight over 5%
// or handling over 10% (overcharge only) needs review; gross freight
// overcharge past the rejection threshold is rejected.
func dgfVerdict(lines []audit.LineItem) audit.Verdict {
	verdict := audit.VerdictApproved
	for _, li := range lines {
		if li.AuditType != audit.AuditRateCard || li.VarianceUSD.LessThanOrEqual(decimal.Zero) {
			continue
		}
		switch li.ChargeKind {
		case audit.ChargeFreight:
			if li.VariancePct.GreaterThan(reviewThreshold()) {
				return audit.VerdictRejected
			}
			if li.VariancePct.GreaterThan(dgfFreightTolerance) {
				verdict = audit.VerdictReview
			}
		case audit.ChargeHandling:
			if li.VariancePct.GreaterThan(dgfHandlingTolerance) {
				verdict = audit.VerdictReview
			}
		}
	}
	return verdict
}

// reviewThreshold is the shared 15% rejection boundary.
func reviewThreshold() decimal.Decimal {
	return decimal.NewFromInt(15)
}
