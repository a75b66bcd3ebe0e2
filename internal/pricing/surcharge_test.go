package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/store"
)

func surchargeCatalog() []store.SurchargeRow {
	return []store.SurchargeRow{
		{ID: 1, ServiceCode: "SF", ServiceName: "DIRECT SIGNATURE", ChargeType: chargeTypeFlat, Rate: d("7.50")},
		{ID: 2, ServiceCode: "HE", ServiceName: "DANGEROUS GOODS", ChargeType: chargeTypeFlat, Rate: d("95")},
		{ID: 3, ServiceCode: "YY", ServiceName: "HEAVY PIECE SURCHARGE", ChargeType: chargeTypePerShipment, Rate: d("110")},
		{ID: 4, ServiceCode: "KB", ServiceName: "NON STACKABLE", ChargeType: chargeTypePerKg, Rate: d("0.50"), MinimumCharge: d("25")},
		{ID: 5, ServiceCode: "BONDED", ServiceName: "BONDED STORAGE", ChargeType: chargeTypeCustom},
		{ID: 6, ServiceCode: "OO", ServiceName: "REMOTE AREA DELIVERY", NeedsVariantLookup: true},
		{ID: 7, ServiceCode: "OO-D", OriginalServiceCode: "OO", VariantCode: "OO-D", ServiceName: "REMOTE AREA DELIVERY DOMESTIC", ChargeType: chargeTypeFlat, Rate: d("12"), ProductsApplicable: "Domestic"},
		{ID: 8, ServiceCode: "OO-A", OriginalServiceCode: "OO", VariantCode: "OO-A", ServiceName: "REMOTE AREA DELIVERY ALL", ChargeType: chargeTypeFlat, Rate: d("30"), ProductsApplicable: "All Products"},
	}
}

func TestResolve_Cascade(t *testing.T) {
	r := NewSurchargeResolver(&fakeRates{surcharges: surchargeCatalog()})
	ctx := context.Background()

	tests := []struct {
		name        string
		description string
		wantCode    string
		wantFound   bool
	}{
		{"exact name", "DIRECT SIGNATURE", "SF", true},
		{"name contained in description", "DANGEROUS GOODS HANDLING FEE", "HE", true},
		{"description contained in name", "STACKABLE", "KB", true},
		{"phrase dictionary", "SHIPMENT WITH OVERWEIGHT PIECE XL", "YY", true},
		{"no match", "MYSTERY FEE", "", false},
		{"blank", "   ", "", false},
	}
	for _, tt := range tests {
		row, _, found, err := r.Resolve(ctx, tt.description, "International")
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if found != tt.wantFound {
			t.Errorf("%s: found = %v, want %v", tt.name, found, tt.wantFound)
			continue
		}
		if found && row.ServiceCode != tt.wantCode {
			t.Errorf("%s: code = %s, want %s", tt.name, row.ServiceCode, tt.wantCode)
		}
	}
}

func TestResolve_VariantSelection(t *testing.T) {
	r := NewSurchargeResolver(&fakeRates{surcharges: surchargeCatalog()})
	ctx := context.Background()

	row, _, found, err := r.Resolve(ctx, "REMOTE AREA DELIVERY", "Domestic")
	if err != nil || !found {
		t.Fatalf("found = %v, err = %v", found, err)
	}
	if row.VariantCode != "OO-D" {
		t.Errorf("Domestic variant = %s, want OO-D", row.VariantCode)
	}

	row, _, found, err = r.Resolve(ctx, "REMOTE AREA DELIVERY", "International")
	if err != nil || !found {
		t.Fatalf("found = %v, err = %v", found, err)
	}
	if row.VariantCode != "OO-A" {
		t.Errorf("International falls back to All Products, got %s", row.VariantCode)
	}
}

func TestExpected_PerKgAndGates(t *testing.T) {
	r := NewSurchargeResolver(&fakeRates{})
	ctx := context.Background()

	perKg := store.SurchargeRow{ChargeType: chargeTypePerKg, Rate: d("0.50"), MinimumCharge: d("25")}
	got, err := r.Expected(ctx, perKg, audit.Invoice{WeightKg: 80})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(d("40")) {
		t.Errorf("per_kg at 80 kg = %s, want 40", got)
	}
	got, _ = r.Expected(ctx, perKg, audit.Invoice{WeightKg: 10})
	if !got.Equal(d("25")) {
		t.Errorf("per_kg at 10 kg = %s, want the 25 minimum", got)
	}

	yy := store.SurchargeRow{ServiceCode: "YY", ChargeType: chargeTypePerShipment, Rate: d("110")}
	got, _ = r.Expected(ctx, yy, audit.Invoice{WeightKg: 65})
	if !got.IsZero() {
		t.Errorf("overweight charge at 65 kg = %s, want 0 (gate is 70)", got)
	}
	got, _ = r.Expected(ctx, yy, audit.Invoice{WeightKg: 82})
	if !got.Equal(d("110")) {
		t.Errorf("overweight charge at 82 kg = %s, want 110", got)
	}
}

func TestExpected_BondedStorageBorrowsWeight(t *testing.T) {
	r := NewSurchargeResolver(&fakeRates{awbWeights: map[string]float64{"AWB42": 40}})
	ctx := context.Background()

	bonded := store.SurchargeRow{ServiceCode: "BONDED", ChargeType: chargeTypeCustom}

	// Surcharge line carries no weight; 40 kg comes from the freight line
	// of the same AWB. 0.35 * 40 = 14 is under the 18 floor.
	got, err := r.Expected(ctx, bonded, audit.Invoice{AWB: "AWB42"})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(d("18")) {
		t.Errorf("bonded storage = %s, want the 18.00 minimum", got)
	}

	// Heavy enough to clear the floor: 0.35 * 120 = 42.
	got, _ = r.Expected(ctx, bonded, audit.Invoice{WeightKg: 120})
	if !got.Equal(d("42")) {
		t.Errorf("bonded storage at 120 kg = %s, want 42", got)
	}
}

func TestAuditSurchargeLine_BondedStorageOvercharge(t *testing.T) {
	rates := &fakeRates{
		surcharges: surchargeCatalog(),
		awbWeights: map[string]float64{"AWB42": 40},
	}
	disp := NewDispatcher(rates, nil)

	inv := audit.Invoice{
		InvoiceNo:   "SVC-1",
		Mode:        audit.ModeExpress,
		Origin:      "MELBOURNE VIC; AU",
		Destination: "SYDNEY NSW; AU",
		Description: "BONDED STORAGE FEE",
		AWB:         "AWB42",
		Currency:    "USD",
		Charges: map[audit.ChargeKind]decimal.Decimal{
			audit.ChargeServiceSurcharge: d("19.29"),
		},
	}
	res, err := disp.Audit(context.Background(), inv)
	if err != nil {
		t.Fatal(err)
	}
	// 19.29 against 18.00 is +7.17%: inside the review band.
	if res.Status != audit.VerdictReview {
		t.Errorf("status = %s, want review_required", res.Status)
	}
	if !res.TotalExpectedUSD.Equal(d("18")) {
		t.Errorf("expected = %s, want 18.00", res.TotalExpectedUSD)
	}
	if !res.TotalVarianceUSD.Equal(d("1.29")) {
		t.Errorf("variance = %s, want 1.29", res.TotalVarianceUSD)
	}
}

func TestAuditSurchargeLine_UnmatchedIsReview(t *testing.T) {
	disp := NewDispatcher(&fakeRates{surcharges: surchargeCatalog()}, nil)
	inv := audit.Invoice{
		InvoiceNo:   "SVC-2",
		Mode:        audit.ModeExpress,
		Description: "MYSTERY FEE",
		Currency:    "USD",
		Charges: map[audit.ChargeKind]decimal.Decimal{
			audit.ChargeServiceSurcharge: d("31"),
		},
	}
	res, err := disp.Audit(context.Background(), inv)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != audit.VerdictReview {
		t.Errorf("status = %s, want review_required, never rejected", res.Status)
	}
}

func TestProductCategory(t *testing.T) {
	domestic := audit.Invoice{Origin: "MELBOURNE VIC; AU", Destination: "SYDNEY NSW; AU"}
	if got := productCategory(domestic); got != "Domestic" {
		t.Errorf("AU/AU = %s, want Domestic", got)
	}
	intl := audit.Invoice{Origin: "BERLIN; DE", Destination: "SYDNEY NSW; AU"}
	if got := productCategory(intl); got != "International" {
		t.Errorf("DE/AU = %s, want International", got)
	}
}
