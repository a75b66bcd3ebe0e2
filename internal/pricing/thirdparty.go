package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/geo"
	"github.com/cargoaudit/api/internal/store"
)

// auditThirdParty prices a third-country express shipment: both endpoint
// countries map to zones, the zone matrix yields a rate zone A-D, and the
// weight table gives the flat expected amount.
func (d *Dispatcher) auditThirdParty(ctx context.Context, inv audit.Invoice, usd usdCharges) (audit.Result, error) {
	originCountry, ok := geo.CountryFromAddress(inv.Origin)
	if !ok {
		return verdictResult(inv, audit.VerdictReview, "origin country could not be resolved"), nil
	}
	destCountry, ok := geo.CountryFromAddress(inv.Destination)
	if !ok {
		return verdictResult(inv, audit.VerdictReview, "destination country could not be resolved"), nil
	}

	originZone, err := d.rates.ThirdPartyZone(ctx, originCountry)
	if errors.Is(err, store.ErrNotFound) {
		return verdictResult(inv, audit.VerdictReview,
			fmt.Sprintf("no third-party zone for origin country %s", originCountry)), nil
	}
	if err != nil {
		return audit.Result{}, err
	}
	destZone, err := d.rates.ThirdPartyZone(ctx, destCountry)
	if errors.Is(err, store.ErrNotFound) {
		return verdictResult(inv, audit.VerdictReview,
			fmt.Sprintf("no third-party zone for destination country %s", destCountry)), nil
	}
	if err != nil {
		return audit.Result{}, err
	}

	rateZone, err := d.rates.ThirdPartyRateZone(ctx, originZone, destZone)
	if errors.Is(err, store.ErrNotFound) {
		return verdictResult(inv, audit.VerdictNoRateCard,
			fmt.Sprintf("no third-party matrix entry for zones %s/%s", originZone, destZone)), nil
	}
	if err != nil {
		return audit.Result{}, err
	}

	expected, err := d.rates.ThirdPartyWeightRate(ctx, inv.WeightKg, rateZone)
	if errors.Is(err, store.ErrNotFound) {
		return verdictResult(inv, audit.VerdictNoRateCard,
			fmt.Sprintf("no third-party rate at %.1f kg in zone %s", inv.WeightKg, rateZone)), nil
	}
	if err != nil {
		return audit.Result{}, err
	}

	s := audit.Classify(expressLines(inv, usd, expected))
	card := audit.NewCardAudit(
		fmt.Sprintf("3P/%s", rateZone),
		fmt.Sprintf("%s (%s) -> %s (%s)", originCountry, originZone, destCountry, destZone),
		"ThirdParty",
		s,
	)
	card.CalculationDetails = map[string]string{
		"origin_zone": originZone,
		"dest_zone":   destZone,
		"rate_zone":   rateZone,
	}
	return assemble(inv, s, card, 1, nil), nil
}
