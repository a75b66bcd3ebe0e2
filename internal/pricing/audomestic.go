package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/geo"
	"github.com/cargoaudit/api/internal/store"
)

// auditAUDomestic prices a domestic Australian express shipment. Both
// addresses resolve to zones 1-5, the zone matrix picks the rate zone, and
// the weight table (with nearest-weight fallback) gives the flat price.
func (d *Dispatcher) auditAUDomestic(ctx context.Context, inv audit.Invoice, usd usdCharges) (audit.Result, error) {
	originZone, err := geo.RequireAUZone(inv.Origin)
	if err != nil {
		return verdictResult(inv, audit.VerdictReview, "origin address could not be resolved to an AU zone"), nil
	}
	destZone, err := geo.RequireAUZone(inv.Destination)
	if err != nil {
		return verdictResult(inv, audit.VerdictReview, "destination address could not be resolved to an AU zone"), nil
	}

	rateZone, err := d.rates.AUDomesticRateZone(ctx, originZone, destZone)
	if errors.Is(err, store.ErrNotFound) {
		return verdictResult(inv, audit.VerdictNoRateCard,
			fmt.Sprintf("no AU domestic matrix entry for zones %d/%d", originZone, destZone)), nil
	}
	if err != nil {
		return audit.Result{}, err
	}

	expected, err := d.rates.AUDomesticRate(ctx, inv.WeightKg, rateZone)
	if errors.Is(err, store.ErrNotFound) {
		return verdictResult(inv, audit.VerdictNoRateCard,
			fmt.Sprintf("no AU domestic rate at %.1f kg in zone %s", inv.WeightKg, rateZone)), nil
	}
	if err != nil {
		return audit.Result{}, err
	}

	s := audit.Classify(expressLines(inv, usd, expected))
	card := audit.NewCardAudit(
		fmt.Sprintf("AU/%s", rateZone),
		fmt.Sprintf("zone %d -> zone %d", originZone, destZone),
		"AuDomestic",
		s,
	)
	card.CalculationDetails = map[string]string{
		"origin_zone": fmt.Sprintf("%d", originZone),
		"dest_zone":   fmt.Sprintf("%d", destZone),
		"rate_zone":   rateZone,
	}
	return assemble(inv, s, card, 1, nil), nil
}
