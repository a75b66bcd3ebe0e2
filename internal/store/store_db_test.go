package store_test

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/store"
	"github.com/cargoaudit/api/internal/testutil"
)

var testDB *testutil.TestDB

func TestMain(m *testing.M) {
	var code int
	defer func() { os.Exit(code) }()

	db, err := testutil.SetupTestDB()
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	testDB = db

	code = m.Run()
}

func newStore() *store.Store {
	return store.New(testDB.Pool, nil)
}

func TestListAirLanes_AliasRetry(t *testing.T) {
	testDB.Truncate(t)
	s := newStore()
	ctx := context.Background()

	cardID := testDB.FixtureRateCard(t, "CA", "air")
	testDB.FixtureAirLane(t, cardID, "CNSHA", "AUSYD", "Standard")

	// Direct hit.
	lanes, err := s.ListAirLanes(ctx, "CNSHA", "AUSYD")
	if err != nil {
		t.Fatal(err)
	}
	if len(lanes) != 1 {
		t.Fatalf("direct lookup: %d lanes, want 1", len(lanes))
	}
	if !lanes[0].ATACost1000To1999.Equal(decimal.RequireFromString("2.10")) {
		t.Errorf("bracket rate = %s, want 2.10", lanes[0].ATACost1000To1999)
	}

	// CNPVG resolves through the seeded alias to the CNSHA lane.
	lanes, err = s.ListAirLanes(ctx, "CNPVG", "AUSYD")
	if err != nil {
		t.Fatal(err)
	}
	if len(lanes) != 1 {
		t.Fatalf("alias lookup: %d lanes, want 1", len(lanes))
	}

	// Unknown pair stays empty.
	lanes, err = s.ListAirLanes(ctx, "DEHAM", "AUSYD")
	if err != nil {
		t.Fatal(err)
	}
	if len(lanes) != 0 {
		t.Errorf("unknown pair: %d lanes, want 0", len(lanes))
	}
}

func TestExpressRate_NarrowestRangeWins(t *testing.T) {
	testDB.Truncate(t)
	s := newStore()
	ctx := context.Background()

	insert := func(from, to float64, multiplier bool, prices string) {
		_, err := testDB.Pool.Exec(ctx, `
			INSERT INTO express_rate_rows (service_type, section, weight_from, weight_to, is_multiplier, zone_prices)
			VALUES ('Import', 'NonDocuments', $1, $2, $3, $4)`,
			from, to, multiplier, prices)
		if err != nil {
			t.Fatal(err)
		}
	}
	insert(0, 30, false, `{"3": 200}`)
	insert(4.5, 5, false, `{"3": 88.50}`)
	insert(0, 70, true, `{"3": 3.90}`)

	row, err := s.ExpressRate(ctx, "Import", "NonDocuments", 5)
	if err != nil {
		t.Fatal(err)
	}
	price, ok := row.Price("3")
	if !ok || !price.Equal(decimal.RequireFromString("88.50")) {
		t.Errorf("price = %s, want the narrow row's 88.50", price)
	}

	mult, err := s.ExpressMultiplier(ctx, "Import", "NonDocuments", 45)
	if err != nil {
		t.Fatal(err)
	}
	adder, _ := mult.Price("3")
	if !adder.Equal(decimal.RequireFromString("3.90")) {
		t.Errorf("adder = %s, want 3.90", adder)
	}

	if _, err := s.ExpressRate(ctx, "Export", "NonDocuments", 5); err != store.ErrNotFound {
		t.Errorf("missing table: err = %v, want ErrNotFound", err)
	}
}

func TestAUDomesticRate_NearestWeightFallback(t *testing.T) {
	testDB.Truncate(t)
	s := newStore()
	ctx := context.Background()

	insert := func(weight float64, prices string) {
		_, err := testDB.Pool.Exec(ctx, `
			INSERT INTO au_domestic_weight_rows (weight_kg, zone_prices)
			VALUES ($1, $2)`, weight, prices)
		if err != nil {
			t.Fatal(err)
		}
	}
	insert(3, `{"B": 16.47}`)
	insert(5, `{"B": 19.80, "C": 22.10}`)

	// Exact weight.
	price, err := s.AUDomesticRate(ctx, 3, "B")
	if err != nil {
		t.Fatal(err)
	}
	if !price.Equal(decimal.RequireFromString("16.47")) {
		t.Errorf("price at 3 kg = %s, want 16.47", price)
	}

	// 4.2 kg has no row; the nearest (5 kg) wins.
	price, err = s.AUDomesticRate(ctx, 4.2, "B")
	if err != nil {
		t.Fatal(err)
	}
	if !price.Equal(decimal.RequireFromString("19.80")) {
		t.Errorf("price at 4.2 kg = %s, want nearest row's 19.80", price)
	}

	// Zone C exists only on the 5 kg row; the jsonb key filter must skip
	// the closer 3 kg row.
	price, err = s.AUDomesticRate(ctx, 3.1, "C")
	if err != nil {
		t.Fatal(err)
	}
	if !price.Equal(decimal.RequireFromString("22.10")) {
		t.Errorf("zone C price = %s, want 22.10", price)
	}

	if _, err := s.AUDomesticRate(ctx, 3, "Z"); err != store.ErrNotFound {
		t.Errorf("unknown zone: err = %v, want ErrNotFound", err)
	}
}

func TestGetInvoice_ChargesRoundTrip(t *testing.T) {
	testDB.Truncate(t)
	s := newStore()
	ctx := context.Background()

	testDB.FixtureInvoice(t, "INV-77", "air", map[string]string{
		"freight": "3150.00",
		"fuel":    "410.55",
	})

	inv, err := s.GetInvoice(ctx, "INV-77")
	if err != nil {
		t.Fatal(err)
	}
	if inv.Mode != audit.ModeAir {
		t.Errorf("mode = %s, want air", inv.Mode)
	}
	if !inv.Charges[audit.ChargeFreight].Equal(decimal.RequireFromString("3150.00")) {
		t.Errorf("freight = %s, want 3150.00", inv.Charges[audit.ChargeFreight])
	}

	if _, err := s.GetInvoice(ctx, "MISSING"); err != store.ErrInvoiceNotFound {
		t.Errorf("missing invoice: err = %v, want ErrInvoiceNotFound", err)
	}
}

func TestBatchAndResultLifecycle(t *testing.T) {
	testDB.Truncate(t)
	s := newStore()
	ctx := context.Background()

	run, err := s.InsertBatchRun(ctx, "lifecycle")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != store.BatchRunning {
		t.Fatalf("status = %s, want running", run.Status)
	}

	res := audit.Result{
		InvoiceNo:        "INV-1",
		Status:           audit.VerdictRejected,
		TotalInvoiceUSD:  decimal.RequireFromString("3800"),
		TotalExpectedUSD: decimal.RequireFromString("3150"),
		TotalVarianceUSD: decimal.RequireFromString("650"),
		VariancePercent:  decimal.RequireFromString("20.63"),
		RateCardsChecked: 1,
		Details: audit.Details{
			InvoiceDetails: audit.InvoiceDetails{InvoiceNo: "INV-1", Mode: audit.ModeAir},
		},
	}
	if err := s.InsertAuditResult(ctx, run.ID, res); err != nil {
		t.Fatal(err)
	}

	run.Status = store.BatchCompleted
	run.TotalInvoices = 1
	run.RejectedCount = 1
	if err := s.UpdateBatchRunTotals(ctx, run); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetBatchRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.BatchCompleted || got.RejectedCount != 1 {
		t.Errorf("run = %s/%d, want completed/1", got.Status, got.RejectedCount)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set")
	}

	paged, err := s.GetBatchResults(ctx, run.ID, "rejected", 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if paged.Total != 1 || len(paged.Results) != 1 {
		t.Fatalf("results = %d/%d, want 1/1", paged.Total, len(paged.Results))
	}
	row := paged.Results[0]
	if !row.TotalVarianceUSD.Equal(decimal.RequireFromString("650")) {
		t.Errorf("variance = %s, want 650", row.TotalVarianceUSD)
	}
	var details audit.Details
	if err := json.Unmarshal(row.Details, &details); err != nil {
		t.Fatalf("details blob: %v", err)
	}
	if details.InvoiceDetails.InvoiceNo != "INV-1" {
		t.Errorf("details invoice = %s, want INV-1", details.InvoiceDetails.InvoiceNo)
	}

	latest, err := s.LatestResultForInvoice(ctx, "INV-1")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Status != "rejected" {
		t.Errorf("latest status = %s, want rejected", latest.Status)
	}

	// force_reaudit path.
	deleted, err := s.DeleteAuditResultsFor(ctx, []string{"INV-1"})
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	// Cascade removal of the batch itself.
	if err := s.InsertAuditResult(ctx, run.ID, res); err != nil {
		t.Fatal(err)
	}
	found, err := s.DeleteBatchCascade(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Error("cascade reported the batch missing")
	}
	if _, err := s.GetBatchRun(ctx, run.ID); err != store.ErrBatchNotFound {
		t.Errorf("after cascade: err = %v, want ErrBatchNotFound", err)
	}
}
