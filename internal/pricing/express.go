package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/store"
)

// stepTableMaxKg is the top of the express step table; heavier shipments
// price as the 30 kg base plus a per-0.5 kg adder.
const stepTableMaxKg = 30.0

var halfKg = decimal.NewFromFloat(0.5)

// auditExpressIntl prices a DHL Express import or export shipment. The zone
// comes from the non-AU endpoint's country; the section (Documents vs
// Non-documents) from the goods description.
func (d *Dispatcher) auditExpressIntl(ctx context.Context, inv audit.Invoice, usd usdCharges, serviceType, foreignCountry string) (audit.Result, error) {
	zone, err := d.rates.ExpressZone(ctx, serviceType, foreignCountry)
	if errors.Is(err, store.ErrNotFound) {
		return verdictResult(inv, audit.VerdictReview,
			fmt.Sprintf("no %s zone for country %s", serviceType, foreignCountry)), nil
	}
	if err != nil {
		return audit.Result{}, err
	}

	section := expressSection(inv.Description)
	expected, calcNote, err := d.expressExpected(ctx, serviceType, section, zone, inv.WeightKg)
	if errors.Is(err, store.ErrNotFound) {
		return verdictResult(inv, audit.VerdictNoRateCard,
			fmt.Sprintf("no %s/%s rate at %.1f kg zone %s", serviceType, section, inv.WeightKg, zone)), nil
	}
	if err != nil {
		return audit.Result{}, err
	}

	s := audit.Classify(expressLines(inv, usd, expected))
	card := audit.NewCardAudit(
		fmt.Sprintf("%s/%s", serviceType, section),
		fmt.Sprintf("%s -> %s zone %s", inv.Origin, inv.Destination, zone),
		serviceType,
		s,
	)
	card.CalculationDetails = map[string]string{
		"zone":        zone,
		"weight_kg":   fmt.Sprintf("%.2f", inv.WeightKg),
		"calculation": calcNote,
	}
	return assemble(inv, s, card, 1, nil), nil
}

// expressExpected computes the expected freight for an express weight.
// Three sub-paths:
//
//  1. weight within the step table with a direct row: the zone price, flat.
//  2. weight within the table but only a multiplier row: rate * weight.
//  3. weight above 30 kg: 30 kg base + adder * (w - 30) / 0.5, with the
//     adder taken from the multiplier row covering the actual weight.
func (d *Dispatcher) expressExpected(ctx context.Context, serviceType, section, zone string, weightKg float64) (decimal.Decimal, string, error) {
	if weightKg <= stepTableMaxKg {
		row, err := d.rates.ExpressRate(ctx, serviceType, section, weightKg)
		if err == nil {
			if price, ok := row.Price(zone); ok {
				return price, fmt.Sprintf("step row [%.1f-%.1f] flat", row.WeightFrom, row.WeightTo), nil
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return decimal.Zero, "", err
		}

		mult, err := d.rates.ExpressMultiplier(ctx, serviceType, section, weightKg)
		if err != nil {
			return decimal.Zero, "", err
		}
		rate, ok := mult.Price(zone)
		if !ok {
			return decimal.Zero, "", store.ErrNotFound
		}
		expected := rate.Mul(decimal.NewFromFloat(weightKg)).Round(2)
		return expected, fmt.Sprintf("multiplier %s * %.1f kg", rate, weightKg), nil
	}

	baseRow, err := d.rates.ExpressRate(ctx, serviceType, section, stepTableMaxKg)
	if err != nil {
		return decimal.Zero, "", err
	}
	base, ok := baseRow.Price(zone)
	if !ok {
		return decimal.Zero, "", store.ErrNotFound
	}

	mult, err := d.rates.ExpressMultiplier(ctx, serviceType, section, weightKg)
	if err != nil {
		return decimal.Zero, "", err
	}
	rate, ok := mult.Price(zone)
	if !ok {
		return decimal.Zero, "", store.ErrNotFound
	}

	steps := decimal.NewFromFloat(weightKg - stepTableMaxKg).Div(halfKg)
	expected := base.Add(rate.Mul(steps)).Round(2)
	note := fmt.Sprintf("base %s + %s * (%.1f - 30) / 0.5", base, rate, weightKg)
	return expected, note, nil
}

// expressLines audits the freight against the table price; fuel, duty and
// customs pass through and anything else is an additional charge.
func expressLines(inv audit.Invoice, usd usdCharges, expectedFreight decimal.Decimal) []audit.LineItem {
	c := newCharges(usd)
	var lines []audit.LineItem
	lines = rateLine(lines, c, audit.ChargeFreight, expectedFreight)
	lines = passLines(lines, c, audit.ChargeFuel, audit.ChargeDutyTax, audit.ChargeCustoms)
	return extraLines(lines, c)
}
