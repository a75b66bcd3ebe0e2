package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/lanematch"
	"github.com/cargoaudit/api/internal/store"
)

// lclWeightToCBMDivisor approximates CBM from weight when the invoice
// carries no volume: 1 CBM per 300 kg.
const lclWeightToCBMDivisor = 300.0

// FCL container size thresholds (tonnes).
const (
	fcl20Threshold   = 25000.0 // prefer 20ft above this weight in kg
	fcl40HCThreshold = 30000.0 // prefer 40HC above this weight in kg
)

// auditOcean prices an ocean invoice against the best fuzzy-matched lane.
func (d *Dispatcher) auditOcean(ctx context.Context, inv audit.Invoice, usd usdCharges) (audit.Result, error) {
	lanes, err := d.rates.ListOceanLanes(ctx)
	if err != nil {
		return audit.Result{}, err
	}

	matches := lanematch.Rank(lanematch.Locators{
		Origin:      inv.Origin,
		Destination: inv.Destination,
		Service:     inv.ServiceType,
	}, oceanLanes(lanes))
	if len(matches) == 0 {
		return verdictResult(inv, audit.VerdictNoRateCard,
			fmt.Sprintf("no ocean lane matched %s -> %s", inv.Origin, inv.Destination)), nil
	}

	lane := laneByID(lanes, matches[0].Lane.ID)

	var lines []audit.LineItem
	if strings.EqualFold(inv.ServiceType, "FCL") {
		lines = oceanFCLLines(lane, inv, usd)
	} else {
		lines = oceanLCLLines(lane, inv, usd)
	}
	s := audit.Classify(lines)

	card := audit.NewCardAudit(
		fmt.Sprintf("%d", lane.RateCardID),
		fmt.Sprintf("%s %s -> %s", lane.Carrier, lane.Origin, lane.Destination),
		lane.Service,
		s,
	)
	card.CalculationDetails = map[string]string{
		"match_score": fmt.Sprintf("%.3f", matches[0].FinalScore),
		"volume_cbm":  fmt.Sprintf("%.3f", oceanVolume(inv)),
	}
	return assemble(inv, s, card, len(matches), nil), nil
}

// oceanLanes projects store lanes onto the matcher's view.
func oceanLanes(lanes []store.OceanLane) []lanematch.Lane {
	out := make([]lanematch.Lane, 0, len(lanes))
	for _, l := range lanes {
		out = append(out, lanematch.Lane{
			ID:                l.ID,
			Origin:            l.Origin,
			Destination:       l.Destination,
			CitiesOrigin:      l.CitiesOrigin,
			CitiesDestination: l.CitiesDestination,
			PortOfLoading:     l.PortOfLoading,
			PortOfDischarge:   l.PortOfDischarge,
			Service:           l.Service,
		})
	}
	return out
}

func laneByID(lanes []store.OceanLane, id int64) store.OceanLane {
	for _, l := range lanes {
		if l.ID == id {
			return l
		}
	}
	return store.OceanLane{}
}

// oceanVolume returns the invoice CBM, approximating from weight when the
// volume field is empty.
func oceanVolume(inv audit.Invoice) float64 {
	if inv.VolumeM3 > 0 {
		return inv.VolumeM3
	}
	return inv.WeightKg / lclWeightToCBMDivisor
}

// oceanLCLLines prices each LCL charge kind as max(min, per_cbm * volume).
// PSS is emitted only when the lane defines it. Fuel, security, duty and
// customs pass through.
func oceanLCLLines(lane store.OceanLane, inv audit.Invoice, usd usdCharges) []audit.LineItem {
	c := newCharges(usd)
	vol := oceanVolume(inv)

	expect := func(oc store.OceanCharge) decimal.Decimal {
		return perUnit(oc.Min, oc.PerCBM, vol)
	}

	var lines []audit.LineItem
	lines = rateLine(lines, c, audit.ChargePickup, expect(lane.LCLPickup))
	lines = rateLine(lines, c, audit.ChargeOriginHandling, expect(lane.LCLOriginHand))
	lines = rateLine(lines, c, audit.ChargeFreight, expect(lane.LCLFreight))
	lines = rateLine(lines, c, audit.ChargeDestinationHandling, expect(lane.LCLDestHand))
	lines = rateLine(lines, c, audit.ChargeDelivery, expect(lane.LCLDelivery))
	if lane.LCLPSS != nil {
		lines = rateLine(lines, c, audit.ChargePSS, expect(*lane.LCLPSS))
	}
	lines = passLines(lines, c,
		audit.ChargeFuel, audit.ChargeSecurity, audit.ChargeDutyTax, audit.ChargeCustoms)
	return extraLines(lines, c)
}

// oceanFCLLines prices an FCL shipment for the selected container size.
// Cards that break the container price down by charge kind get a rate line
// per kind; cards with only a flat total carry it under freight, with
// pickup and delivery passing through.
func oceanFCLLines(lane store.OceanLane, inv audit.Invoice, usd usdCharges) []audit.LineItem {
	c := newCharges(usd)
	total, kinds := fclRates(lane.FCL, inv.WeightKg)

	var lines []audit.LineItem
	if kinds != nil {
		lines = rateLine(lines, c, audit.ChargePickup, kinds.Pickup)
		lines = rateLine(lines, c, audit.ChargeOriginHandling, kinds.OriginHand)
		lines = rateLine(lines, c, audit.ChargeFreight, kinds.Freight)
		lines = rateLine(lines, c, audit.ChargeDestinationHandling, kinds.DestHand)
		lines = rateLine(lines, c, audit.ChargeDelivery, kinds.Delivery)
		lines = passLines(lines, c,
			audit.ChargeFuel, audit.ChargeSecurity, audit.ChargeDutyTax, audit.ChargeCustoms)
		return extraLines(lines, c)
	}

	lines = rateLine(lines, c, audit.ChargeFreight, total)
	lines = passLines(lines, c,
		audit.ChargeFuel, audit.ChargeSecurity, audit.ChargeDutyTax,
		audit.ChargeCustoms, audit.ChargePickup, audit.ChargeDelivery)
	return extraLines(lines, c)
}

// fclRates picks the container size for the shipment weight: 40ft default,
// 20ft above 25 t, 40HC above 30 t, skipping sizes the card does not price.
func fclRates(f store.OceanFCL, weightKg float64) (decimal.Decimal, *store.OceanFCLKinds) {
	total, kinds := f.Total40, f.Kinds40
	switch {
	case weightKg > fcl40HCThreshold && (!f.Total40HC.IsZero() || f.Kinds40HC != nil):
		total, kinds = f.Total40HC, f.Kinds40HC
	case weightKg > fcl20Threshold && (!f.Total20.IsZero() || f.Kinds20 != nil):
		total, kinds = f.Total20, f.Kinds20
	}
	return total, kinds
}
