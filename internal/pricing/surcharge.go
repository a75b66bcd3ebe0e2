package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/geo"
	"github.com/cargoaudit/api/internal/store"
)

// Charge types in the surcharge catalog.
const (
	chargeTypeFlat        = "flat"
	chargeTypePerKg       = "per_kg"
	chargeTypePerShipment = "per_shipment"
	chargeTypeCustom      = "custom_formula"
)

// Bonded storage is a built-in formula rather than a catalog rate.
var (
	bondedStorageMin   = decimal.NewFromFloat(18.00)
	bondedStoragePerKg = decimal.NewFromFloat(0.35)
)

// overweightGateKg gates the per-shipment overweight-piece code YY.
const overweightGateKg = 70.0

// surchargePhrases is the fixed fuzzy dictionary of canonical invoice
// phrases to service codes, used when none of the name-based matches hit.
// Ordered so that a description containing several phrases always resolves
// the same way.
var surchargePhrases = []struct {
	Phrase string
	Code   string
}{
	{"DIRECT SIGNATURE", "SF"},
	{"ADULT SIGNATURE", "SD"},
	{"EXPORT DECLARATION", "WO"},
	{"SATURDAY DELIVERY", "AA"},
	{"SATURDAY PICKUP", "AB"},
	{"DANGEROUS GOODS", "HE"},
	{"DRY ICE", "HC"},
	{"LITHIUM BATTERIES", "HK"},
	{"ADDRESS CORRECTION", "MA"},
	{"NEUTRAL DELIVERY", "NN"},
	{"DUTY TAX PAID", "DD"},
	{"DUTIES AND TAXES PAID", "DD"},
	{"DUTY TAX IMPORTER", "DT"},
	{"SHIPMENT INSURANCE", "II"},
	{"EXTENDED LIABILITY", "IB"},
	{"CHANGE OF BILLING", "CB"},
	{"REMOTE AREA PICKUP", "OB"},
	{"REMOTE AREA DELIVERY", "OO"},
	{"OVERWEIGHT PIECE", "YY"},
	{"OVERSIZE PIECE", "YE"},
	{"OVER LENGTH", "KA"},
	{"NON STACKABLE PALLET", "NST"},
	{"ELEVATED RISK", "CR"},
	{"RESTRICTED DESTINATION", "CD"},
	{"GOGREEN PLUS", "FF"},
	{"BONDED STORAGE", "BONDED"},
}

// SurchargeResolver matches invoice service descriptions to catalog rows
// and computes the expected charge.
type SurchargeResolver struct {
	rates RateStore
}

// NewSurchargeResolver creates a resolver over a rate store.
func NewSurchargeResolver(rates RateStore) *SurchargeResolver {
	return &SurchargeResolver{rates: rates}
}

// Resolve matches a service description through the four-step cascade:
// exact catalog name, catalog name contained in the description, the
// description contained in a catalog name, then the fixed phrase
// dictionary. Codes flagged for variant lookup skip the exact match and
// select among their variants by product applicability.
func (r *SurchargeResolver) Resolve(ctx context.Context, description, productCategory string) (store.SurchargeRow, []string, bool, error) {
	catalog, err := r.rates.ListServiceSurcharges(ctx)
	if err != nil {
		return store.SurchargeRow{}, nil, false, err
	}

	desc := strings.ToUpper(strings.TrimSpace(description))
	if desc == "" {
		return store.SurchargeRow{}, nil, false, nil
	}

	match, found := matchCatalog(catalog, desc)
	if !found {
		return store.SurchargeRow{}, nil, false, nil
	}
	if !match.NeedsVariantLookup {
		return match, nil, true, nil
	}
	row, warnings := selectVariant(catalog, match, productCategory)
	return row, warnings, true, nil
}

func matchCatalog(catalog []store.SurchargeRow, desc string) (store.SurchargeRow, bool) {
	// 1. Exact name match.
	for _, row := range catalog {
		if !row.NeedsVariantLookup && strings.EqualFold(row.ServiceName, desc) {
			return row, true
		}
	}
	// 2. Catalog name contained in the description.
	for _, row := range catalog {
		name := strings.ToUpper(row.ServiceName)
		if name != "" && strings.Contains(desc, name) {
			return row, true
		}
	}
	// 3. Description contained in a catalog name.
	for _, row := range catalog {
		name := strings.ToUpper(row.ServiceName)
		if name != "" && strings.Contains(name, desc) {
			return row, true
		}
	}
	// 4. Fixed phrase dictionary.
	for _, entry := range surchargePhrases {
		if strings.Contains(desc, entry.Phrase) {
			for _, row := range catalog {
				if row.ServiceCode == entry.Code {
					return row, true
				}
			}
		}
	}
	return store.SurchargeRow{}, false
}

// selectVariant walks the variants of an original service code, preferring
// one whose products filter matches the shipment's product category, then
// the "All Products" variant. When several apply equally the first wins and
// the result carries a warning.
func selectVariant(catalog []store.SurchargeRow, base store.SurchargeRow, productCategory string) (store.SurchargeRow, []string) {
	key := base.OriginalServiceCode
	if key == "" {
		key = base.ServiceCode
	}

	var exact, all []store.SurchargeRow
	for _, row := range catalog {
		if row.OriginalServiceCode != key {
			continue
		}
		switch {
		case strings.EqualFold(row.ProductsApplicable, productCategory):
			exact = append(exact, row)
		case strings.EqualFold(row.ProductsApplicable, "All Products"):
			all = append(all, row)
		}
	}

	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(exact) > 1:
		return exact[0], []string{fmt.Sprintf("service %s: %d equally applicable variants, first used", key, len(exact))}
	case len(all) == 1:
		return all[0], nil
	case len(all) > 1:
		return all[0], []string{fmt.Sprintf("service %s: %d equally applicable variants, first used", key, len(all))}
	default:
		return base, nil
	}
}

// Expected computes the expected amount for a resolved catalog row.
// Surcharge lines often carry zero weight; the shipment weight is borrowed
// from the heaviest freight line of the same AWB.
func (r *SurchargeResolver) Expected(ctx context.Context, row store.SurchargeRow, inv audit.Invoice) (decimal.Decimal, error) {
	weight := inv.WeightKg
	if weight <= 0 && inv.AWB != "" {
		borrowed, err := r.rates.MaxFreightLineWeight(ctx, inv.AWB)
		if err != nil {
			return decimal.Zero, err
		}
		weight = borrowed
	}

	switch row.ChargeType {
	case chargeTypePerKg:
		return perUnit(row.MinimumCharge, row.Rate, weight), nil
	case chargeTypePerShipment:
		if row.ServiceCode == "YY" && weight <= overweightGateKg {
			return decimal.Zero, nil
		}
		return row.Rate, nil
	case chargeTypeCustom:
		return perUnit(bondedStorageMin, bondedStoragePerKg, weight), nil
	default: // flat
		return row.Rate, nil
	}
}

// auditSurchargeLine audits an express invoice line that bills a service
// surcharge instead of freight. An unmatched description is review, never
// rejected; an undercharge is always approved.
func (d *Dispatcher) auditSurchargeLine(ctx context.Context, inv audit.Invoice, usd usdCharges) (audit.Result, error) {
	row, warnings, found, err := d.surcharge.Resolve(ctx, inv.Description, productCategory(inv))
	if err != nil {
		return audit.Result{}, err
	}
	if !found {
		return verdictResult(inv, audit.VerdictReview,
			fmt.Sprintf("no service surcharge matched %q", inv.Description)), nil
	}

	expected, err := d.surcharge.Expected(ctx, row, inv)
	if err != nil {
		return audit.Result{}, err
	}

	c := newCharges(usd)
	var lines []audit.LineItem
	lines = rateLine(lines, c, audit.ChargeServiceSurcharge, expected)
	lines = passLines(lines, c, audit.ChargeFuel, audit.ChargeDutyTax, audit.ChargeCustoms)
	lines = extraLines(lines, c)
	s := audit.Classify(lines)

	card := audit.NewCardAudit(
		row.ServiceCode,
		row.ServiceName,
		row.ChargeType,
		s,
	)
	if row.VariantCode != "" {
		card.CalculationDetails = map[string]string{"variant": row.VariantCode}
	}
	return assemble(inv, s, card, 1, warnings), nil
}

// productCategory is Domestic when both endpoints are Australian, else
// International.
func productCategory(inv audit.Invoice) string {
	o, _ := geo.CountryFromAddress(inv.Origin)
	d, _ := geo.CountryFromAddress(inv.Destination)
	if o == "AU" && d == "AU" {
		return "Domestic"
	}
	return "International"
}
