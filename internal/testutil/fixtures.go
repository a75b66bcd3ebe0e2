package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// FixtureRateCard inserts a rate card valid for one year around today and
// returns its id.
func (tdb *TestDB) FixtureRateCard(t *testing.T, carrier, mode string) int64 {
	t.Helper()

	var id int64
	err := tdb.Pool.QueryRow(context.Background(), `
		INSERT INTO rate_cards (carrier, mode, valid_from, valid_to)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		carrier, mode,
		time.Now().AddDate(0, -6, 0), time.Now().AddDate(0, 6, 0)).Scan(&id)
	if err != nil {
		t.Fatalf("creating fixture rate card %s/%s: %v", carrier, mode, err)
	}
	return id
}

// FixtureAirLane inserts an air lane with the standard test bracket rates
// (2.45 / 2.10 / 1.95 / 1.80, minimum 500) and returns its id.
func (tdb *TestDB) FixtureAirLane(t *testing.T, rateCardID int64, originPort, destPort, service string) int64 {
	t.Helper()

	var id int64
	err := tdb.Pool.QueryRow(context.Background(), `
		INSERT INTO air_rate_entries (
			rate_card_id, origin_port, destination_port, service,
			ata_cost_lt_1000, ata_cost_1000_1999, ata_cost_2000_2999, ata_cost_gte_3000,
			ata_min_charge, ptd_freight_charge, ptd_min_charge,
			destination_min_charge, security_surcharge
		) VALUES ($1, $2, $3, $4, 2.45, 2.10, 1.95, 1.80, 500, 0.12, 40, 55, 25)
		RETURNING id`,
		rateCardID, originPort, destPort, service).Scan(&id)
	if err != nil {
		t.Fatalf("creating fixture air lane %s-%s: %v", originPort, destPort, err)
	}
	return id
}

// FixtureInvoice inserts an invoice with a charge map and returns its number.
func (tdb *TestDB) FixtureInvoice(t *testing.T, invoiceNo, mode string, charges map[string]string) string {
	t.Helper()

	blob, err := json.Marshal(charges)
	if err != nil {
		t.Fatalf("marshaling charges for %s: %v", invoiceNo, err)
	}
	_, err = tdb.Pool.Exec(context.Background(), `
		INSERT INTO invoices (invoice_no, mode, currency, charges)
		VALUES ($1, $2, 'USD', $3)`,
		invoiceNo, mode, blob)
	if err != nil {
		t.Fatalf("creating fixture invoice %s: %v", invoiceNo, err)
	}
	return invoiceNo
}

// FixtureDGFQuote inserts a USD spot quote and returns its id.
func (tdb *TestDB) FixtureDGFQuote(t *testing.T, quoteID, mode, ratePerKg, ratePerCBM, handling string) string {
	t.Helper()

	_, err := tdb.Pool.Exec(context.Background(), `
		INSERT INTO dgf_quotes (quote_id, mode, rate_per_kg, rate_per_cbm, handling_fee, currency)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, 'USD')`,
		quoteID, mode, ratePerKg, ratePerCBM, handling)
	if err != nil {
		t.Fatalf("creating fixture quote %s: %v", quoteID, err)
	}
	return quoteID
}

// FixtureSurcharge inserts one surcharge catalog row and returns its id.
func (tdb *TestDB) FixtureSurcharge(t *testing.T, code, name, chargeType, rate string) int64 {
	t.Helper()

	var id int64
	err := tdb.Pool.QueryRow(context.Background(), `
		INSERT INTO service_surcharges (service_code, service_name, charge_type, rate)
		VALUES ($1, $2, $3, $4::numeric)
		RETURNING id`,
		code, name, chargeType, rate).Scan(&id)
	if err != nil {
		t.Fatalf("creating fixture surcharge %s: %v", code, err)
	}
	return id
}
