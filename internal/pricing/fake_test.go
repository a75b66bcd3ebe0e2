package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cargoaudit/api/internal/store"
)

// fakeRates is an in-memory RateStore for calculator tests.
type fakeRates struct {
	airLanes      map[string][]store.AirLane // "ORIG-DEST"
	oceanLanes    []store.OceanLane
	expressZones  map[string]string // "Import/DE"
	expressRows   []store.ExpressRateRow
	tpZones       map[string]string
	tpMatrix      map[string]string // "oz/dz"
	tpWeightRates map[string]decimal.Decimal
	auMatrix      map[[2]int]string
	auRates       map[string]decimal.Decimal // by rate zone, weight ignored
	surcharges    []store.SurchargeRow
	quotes        map[string]store.SpotQuote
	awbWeights    map[string]float64
}

func (f *fakeRates) ListAirLanes(_ context.Context, o, d string) ([]store.AirLane, error) {
	return f.airLanes[o+"-"+d], nil
}

func (f *fakeRates) ListOceanLanes(_ context.Context) ([]store.OceanLane, error) {
	return f.oceanLanes, nil
}

func (f *fakeRates) ExpressZone(_ context.Context, serviceType, country string) (string, error) {
	if z, ok := f.expressZones[serviceType+"/"+country]; ok {
		return z, nil
	}
	return "", store.ErrNotFound
}

func (f *fakeRates) ExpressRate(_ context.Context, serviceType, section string, w float64) (store.ExpressRateRow, error) {
	return f.findExpressRow(serviceType, section, w, false)
}

func (f *fakeRates) ExpressMultiplier(_ context.Context, serviceType, section string, w float64) (store.ExpressRateRow, error) {
	return f.findExpressRow(serviceType, section, w, true)
}

func (f *fakeRates) findExpressRow(serviceType, section string, w float64, multiplier bool) (store.ExpressRateRow, error) {
	best := store.ExpressRateRow{}
	found := false
	for _, r := range f.expressRows {
		if r.ServiceType != serviceType || r.Section != section || r.IsMultiplier != multiplier {
			continue
		}
		if w < r.WeightFrom || w > r.WeightTo {
			continue
		}
		if !found || r.WeightTo-r.WeightFrom < best.WeightTo-best.WeightFrom {
			best = r
			found = true
		}
	}
	if !found {
		return store.ExpressRateRow{}, store.ErrNotFound
	}
	return best, nil
}

func (f *fakeRates) ThirdPartyZone(_ context.Context, country string) (string, error) {
	if z, ok := f.tpZones[country]; ok {
		return z, nil
	}
	return "", store.ErrNotFound
}

func (f *fakeRates) ThirdPartyRateZone(_ context.Context, oz, dz string) (string, error) {
	if z, ok := f.tpMatrix[oz+"/"+dz]; ok {
		return z, nil
	}
	return "", store.ErrNotFound
}

func (f *fakeRates) ThirdPartyWeightRate(_ context.Context, _ float64, rateZone string) (decimal.Decimal, error) {
	if r, ok := f.tpWeightRates[rateZone]; ok {
		return r, nil
	}
	return decimal.Zero, store.ErrNotFound
}

func (f *fakeRates) AUDomesticRateZone(_ context.Context, oz, dz int) (string, error) {
	if z, ok := f.auMatrix[[2]int{oz, dz}]; ok {
		return z, nil
	}
	return "", store.ErrNotFound
}

func (f *fakeRates) AUDomesticRate(_ context.Context, _ float64, rateZone string) (decimal.Decimal, error) {
	if r, ok := f.auRates[rateZone]; ok {
		return r, nil
	}
	return decimal.Zero, store.ErrNotFound
}

func (f *fakeRates) ListServiceSurcharges(_ context.Context) ([]store.SurchargeRow, error) {
	return f.surcharges, nil
}

func (f *fakeRates) DGFQuote(_ context.Context, quoteID string) (store.SpotQuote, error) {
	if q, ok := f.quotes[quoteID]; ok {
		return q, nil
	}
	return store.SpotQuote{}, store.ErrNotFound
}

func (f *fakeRates) MaxFreightLineWeight(_ context.Context, awb string) (float64, error) {
	return f.awbWeights[awb], nil
}
