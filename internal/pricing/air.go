package pricing

import (
	"context"
	"fmt"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/store"
)

// auditAir prices an air freight invoice against the lane for its port
// pair. When the lane exists in both Standard and Expedite and the invoice
// does not pin a service, both are evaluated and the one with the smaller
// absolute auditable variance wins.
func (d *Dispatcher) auditAir(ctx context.Context, inv audit.Invoice, usd usdCharges) (audit.Result, error) {
	lanes, err := d.rates.ListAirLanes(ctx, inv.OriginPort, inv.DestinationPort)
	if err != nil {
		return audit.Result{}, err
	}
	if len(lanes) == 0 {
		return verdictResult(inv, audit.VerdictNoRateCard,
			fmt.Sprintf("no air lane for %s-%s", inv.OriginPort, inv.DestinationPort)), nil
	}

	candidates := lanes
	if inv.ServiceType != "" {
		var pinned []store.AirLane
		for _, l := range lanes {
			if l.Service == inv.ServiceType {
				pinned = append(pinned, l)
			}
		}
		if len(pinned) > 0 {
			candidates = pinned
		}
	}

	var (
		best        audit.Summary
		bestLane    store.AirLane
		bestChosen  bool
	)
	for _, lane := range candidates {
		s := audit.Classify(airLines(lane, inv, usd))
		if !bestChosen || s.AuditableVarianceUSD.Abs().LessThan(best.AuditableVarianceUSD.Abs()) {
			best = s
			bestLane = lane
			bestChosen = true
		}
	}

	card := audit.NewCardAudit(
		fmt.Sprintf("%d", bestLane.RateCardID),
		fmt.Sprintf("%s %s-%s", bestLane.Carrier, bestLane.OriginPort, bestLane.DestinationPort),
		bestLane.Service,
		best,
	)
	card.CalculationDetails = map[string]string{
		"weight_kg":      fmt.Sprintf("%.2f", inv.WeightKg),
		"ata_rate":       bestLane.ATACost(inv.WeightKg).String(),
		"ata_min_charge": bestLane.ATAMinCharge.String(),
	}
	return assemble(inv, best, card, len(candidates), nil), nil
}

// airLines builds the expected breakdown for one air lane.
//
// Freight uses the weight-bracket ATA rate with the lane minimum; origin
// and delivery use the per-kg PTD rate with its minimum; destination
// handling and security are flat. Fuel, duties, customs, pickup and other
// are carrier pass-throughs.
func airLines(lane store.AirLane, inv audit.Invoice, usd usdCharges) []audit.LineItem {
	c := newCharges(usd)
	w := inv.WeightKg

	var lines []audit.LineItem
	lines = rateLine(lines, c, audit.ChargeFreight, perUnit(lane.ATAMinCharge, lane.ATACost(w), w))
	lines = rateLine(lines, c, audit.ChargeOriginHandling, perUnit(lane.PTDMinCharge, lane.PTDFreightCharge, w))
	lines = rateLine(lines, c, audit.ChargeDestinationHandling, lane.DestinationMin)
	lines = rateLine(lines, c, audit.ChargeSecurity, lane.SecuritySurcharge)
	lines = rateLine(lines, c, audit.ChargeDelivery, perUnit(lane.PTDMinCharge, lane.PTDFreightCharge, w))
	lines = passLines(lines, c,
		audit.ChargeFuel, audit.ChargeDutyTax, audit.ChargeCustoms,
		audit.ChargePickup, audit.ChargeOther)
	return extraLines(lines, c)
}
