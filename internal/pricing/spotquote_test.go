package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/store"
)

func airQuote() store.SpotQuote {
	return store.SpotQuote{
		QuoteID:     "Q-1001",
		Mode:        "air",
		Origin:      "HKHKG",
		Destination: "AUMEL",
		RatePerKg:   d("2.00"),
		HandlingFee: d("50"),
		Currency:    "USD",
	}
}

func dgfInvoice(mode audit.Mode, quoteID, freight, handling string) audit.Invoice {
	return audit.Invoice{
		InvoiceNo:          "DGF-1",
		Mode:               mode,
		QuoteID:            quoteID,
		ChargeableWeightKg: 100,
		VolumeM3:           2.5,
		Currency:           "USD",
		Charges: map[audit.ChargeKind]decimal.Decimal{
			audit.ChargeFreight:  d(freight),
			audit.ChargeHandling: d(handling),
		},
	}
}

func TestAuditSpotQuote_Tolerances(t *testing.T) {
	rates := &fakeRates{quotes: map[string]store.SpotQuote{"Q-1001": airQuote()}}
	disp := NewDispatcher(rates, nil)

	// Expected: freight 2.00 * 100 kg = 200, handling 50 flat.
	tests := []struct {
		name     string
		freight  string
		handling string
		want     audit.Verdict
	}{
		{"exact", "200", "50", audit.VerdictApproved},
		{"freight inside 5%", "208", "50", audit.VerdictApproved},
		{"freight over 5%", "212", "50", audit.VerdictReview},
		{"freight over 15%", "235", "50", audit.VerdictRejected},
		{"handling inside 10%", "200", "54", audit.VerdictApproved},
		{"handling over 10%", "200", "56", audit.VerdictReview},
		{"undercharge", "150", "40", audit.VerdictApproved},
	}
	for _, tt := range tests {
		res, err := disp.Audit(context.Background(), dgfInvoice(audit.ModeDGFAir, "Q-1001", tt.freight, tt.handling))
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if res.Status != tt.want {
			t.Errorf("%s: status = %s, want %s", tt.name, res.Status, tt.want)
		}
	}
}

func TestAuditSpotQuote_SeaPerCBM(t *testing.T) {
	quote := store.SpotQuote{
		QuoteID:    "Q-2002",
		Mode:       "sea",
		RatePerCBM: d("80"),
		Currency:   "USD",
	}
	disp := NewDispatcher(&fakeRates{quotes: map[string]store.SpotQuote{"Q-2002": quote}}, nil)

	inv := dgfInvoice(audit.ModeDGFSea, "Q-2002", "200", "0")
	res, err := disp.Audit(context.Background(), inv)
	if err != nil {
		t.Fatal(err)
	}
	// 80/cbm * 2.5 cbm = 200.
	if res.Status != audit.VerdictApproved {
		t.Errorf("status = %s, want approved", res.Status)
	}
	if !res.TotalExpectedUSD.Equal(d("200")) {
		t.Errorf("expected = %s, want 200", res.TotalExpectedUSD)
	}
}

func TestAuditSpotQuote_CurrencyConversion(t *testing.T) {
	quote := store.SpotQuote{
		QuoteID:     "Q-3003",
		Mode:        "air",
		RatePerKg:   d("3.00"),
		HandlingFee: d("100"),
		Currency:    "AUD",
		FXToUSD:     d("0.65"),
	}
	disp := NewDispatcher(&fakeRates{quotes: map[string]store.SpotQuote{"Q-3003": quote}}, nil)

	// 3.00 AUD/kg * 100 kg = 300 AUD = 195 USD; handling 100 AUD = 65 USD.
	inv := dgfInvoice(audit.ModeDGFAir, "Q-3003", "195", "65")
	res, err := disp.Audit(context.Background(), inv)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != audit.VerdictApproved {
		t.Errorf("status = %s, want approved", res.Status)
	}
	if !res.TotalExpectedUSD.Equal(d("260")) {
		t.Errorf("expected = %s, want 260", res.TotalExpectedUSD)
	}
}

func TestAuditSpotQuote_ForeignQuoteWithoutRate(t *testing.T) {
	quote := store.SpotQuote{
		QuoteID:     "Q-4004",
		Mode:        "air",
		RatePerKg:   d("3.00"),
		HandlingFee: d("100"),
		Currency:    "AUD",
		// FXToUSD left zero: the quote must not be taken at face value.
	}
	disp := NewDispatcher(&fakeRates{quotes: map[string]store.SpotQuote{"Q-4004": quote}}, nil)

	res, err := disp.Audit(context.Background(), dgfInvoice(audit.ModeDGFAir, "Q-4004", "300", "100"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != audit.VerdictError {
		t.Errorf("status = %s, want error instead of an implicit 1.0 rate", res.Status)
	}
	if res.Details.Error == "" {
		t.Error("error verdict carries no detail message")
	}
}

func TestAuditSpotQuote_MissingQuote(t *testing.T) {
	disp := NewDispatcher(&fakeRates{}, nil)

	res, err := disp.Audit(context.Background(), dgfInvoice(audit.ModeDGFAir, "Q-GONE", "200", "50"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != audit.VerdictNoRateCard {
		t.Errorf("unknown quote: status = %s, want no_rate_card", res.Status)
	}

	res, err = disp.Audit(context.Background(), dgfInvoice(audit.ModeDGFAir, "", "200", "50"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != audit.VerdictNoRateCard {
		t.Errorf("no quote id: status = %s, want no_rate_card", res.Status)
	}
}
