package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const airLaneColumns = `
	a.id, a.rate_card_id, r.carrier, a.origin_port, a.destination_port, a.service,
	a.ata_cost_lt_1000, a.ata_cost_1000_1999, a.ata_cost_2000_2999, a.ata_cost_gte_3000,
	a.ata_min_charge, a.fuel_per_kg, a.ptd_freight_charge, a.ptd_min_charge,
	a.destination_min_charge, a.security_surcharge, a.pss_per_kg, a.adder_per_half_kg`

// ListAirLanes returns all air lanes for a port pair within card validity.
// When the direct lookup finds nothing, known port aliases (e.g. CNPVG for
// CNSHA) are tried for both ends.
func (s *Store) ListAirLanes(ctx context.Context, originPort, destPort string) ([]AirLane, error) {
	lanes, err := s.queryAirLanes(ctx, originPort, destPort)
	if err != nil || len(lanes) > 0 {
		return lanes, err
	}

	origins, err := s.portAliases(ctx, originPort)
	if err != nil {
		return nil, err
	}
	dests, err := s.portAliases(ctx, destPort)
	if err != nil {
		return nil, err
	}
	for _, o := range origins {
		for _, d := range dests {
			if o == originPort && d == destPort {
				continue
			}
			lanes, err = s.queryAirLanes(ctx, o, d)
			if err != nil || len(lanes) > 0 {
				return lanes, err
			}
		}
	}
	return nil, nil
}

func (s *Store) queryAirLanes(ctx context.Context, originPort, destPort string) ([]AirLane, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+airLaneColumns+`
		FROM air_rate_entries a
		JOIN rate_cards r ON r.id = a.rate_card_id
		WHERE upper(a.origin_port) = upper($1)
		  AND upper(a.destination_port) = upper($2)
		  AND now()::date BETWEEN r.valid_from AND r.valid_to
		ORDER BY a.id`, originPort, destPort)
	if err != nil {
		return nil, fmt.Errorf("querying air lanes %s-%s: %w", originPort, destPort, err)
	}
	defer rows.Close()

	var lanes []AirLane
	for rows.Next() {
		var l AirLane
		var nums [12]pgtype.Numeric
		if err := rows.Scan(
			&l.ID, &l.RateCardID, &l.Carrier, &l.OriginPort, &l.DestinationPort, &l.Service,
			&nums[0], &nums[1], &nums[2], &nums[3], &nums[4], &nums[5],
			&nums[6], &nums[7], &nums[8], &nums[9], &nums[10], &nums[11],
		); err != nil {
			return nil, fmt.Errorf("scanning air lane: %w", err)
		}
		l.ATACostLt1000 = numericToDecimal(nums[0])
		l.ATACost1000To1999 = numericToDecimal(nums[1])
		l.ATACost2000To2999 = numericToDecimal(nums[2])
		l.ATACostGte3000 = numericToDecimal(nums[3])
		l.ATAMinCharge = numericToDecimal(nums[4])
		l.FuelPerKg = numericToDecimal(nums[5])
		l.PTDFreightCharge = numericToDecimal(nums[6])
		l.PTDMinCharge = numericToDecimal(nums[7])
		l.DestinationMin = numericToDecimal(nums[8])
		l.SecuritySurcharge = numericToDecimal(nums[9])
		l.PSSPerKg = numericToDecimal(nums[10])
		l.AdderPerHalfKg = numericToDecimal(nums[11])
		lanes = append(lanes, l)
	}
	return lanes, rows.Err()
}

// portAliases returns the port itself plus every alias recorded for it.
func (s *Store) portAliases(ctx context.Context, port string) ([]string, error) {
	out := []string{port}
	rows, err := s.pool.Query(ctx, `
		SELECT alias FROM port_aliases WHERE upper(port_code) = upper($1)`, port)
	if err != nil {
		return nil, fmt.Errorf("querying port aliases for %s: %w", port, err)
	}
	defer rows.Close()
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("scanning port alias: %w", err)
		}
		out = append(out, alias)
	}
	return out, rows.Err()
}

// ListOceanLanes returns every valid ocean lane; fuzzy filtering against the
// invoice locators happens in memory in the matcher.
func (s *Store) ListOceanLanes(ctx context.Context) ([]OceanLane, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.rate_card_id, r.carrier, o.lane_origin, o.lane_destination,
		       o.cities_included_origin, o.cities_included_destination,
		       o.port_of_loading, o.port_of_discharge, o.service,
		       o.lcl_pickup_min, o.lcl_pickup_per_cbm,
		       o.lcl_origin_handling_min, o.lcl_origin_handling_per_cbm,
		       o.lcl_freight_min, o.lcl_freight_per_cbm,
		       o.lcl_dest_handling_min, o.lcl_dest_handling_per_cbm,
		       o.lcl_delivery_min, o.lcl_delivery_per_cbm,
		       o.lcl_pss_min, o.lcl_pss_per_cbm,
		       o.fcl_20_total, o.fcl_40_total, o.fcl_40hc_total,
		       o.fcl_20_pickup, o.fcl_20_origin_handling, o.fcl_20_freight,
		       o.fcl_20_dest_handling, o.fcl_20_delivery,
		       o.fcl_40_pickup, o.fcl_40_origin_handling, o.fcl_40_freight,
		       o.fcl_40_dest_handling, o.fcl_40_delivery,
		       o.fcl_40hc_pickup, o.fcl_40hc_origin_handling, o.fcl_40hc_freight,
		       o.fcl_40hc_dest_handling, o.fcl_40hc_delivery
		FROM ocean_rate_entries o
		JOIN rate_cards r ON r.id = o.rate_card_id
		WHERE now()::date BETWEEN r.valid_from AND r.valid_to
		ORDER BY o.id`)
	if err != nil {
		return nil, fmt.Errorf("querying ocean lanes: %w", err)
	}
	defer rows.Close()

	var lanes []OceanLane
	for rows.Next() {
		var l OceanLane
		var nums [10]pgtype.Numeric
		var pssMin, pssPerCBM pgtype.Numeric
		var fcl [3]pgtype.Numeric
		var kinds [15]pgtype.Numeric
		if err := rows.Scan(
			&l.ID, &l.RateCardID, &l.Carrier, &l.Origin, &l.Destination,
			&l.CitiesOrigin, &l.CitiesDestination,
			&l.PortOfLoading, &l.PortOfDischarge, &l.Service,
			&nums[0], &nums[1], &nums[2], &nums[3], &nums[4],
			&nums[5], &nums[6], &nums[7], &nums[8], &nums[9],
			&pssMin, &pssPerCBM,
			&fcl[0], &fcl[1], &fcl[2],
			&kinds[0], &kinds[1], &kinds[2], &kinds[3], &kinds[4],
			&kinds[5], &kinds[6], &kinds[7], &kinds[8], &kinds[9],
			&kinds[10], &kinds[11], &kinds[12], &kinds[13], &kinds[14],
		); err != nil {
			return nil, fmt.Errorf("scanning ocean lane: %w", err)
		}
		l.LCLPickup = OceanCharge{Min: numericToDecimal(nums[0]), PerCBM: numericToDecimal(nums[1])}
		l.LCLOriginHand = OceanCharge{Min: numericToDecimal(nums[2]), PerCBM: numericToDecimal(nums[3])}
		l.LCLFreight = OceanCharge{Min: numericToDecimal(nums[4]), PerCBM: numericToDecimal(nums[5])}
		l.LCLDestHand = OceanCharge{Min: numericToDecimal(nums[6]), PerCBM: numericToDecimal(nums[7])}
		l.LCLDelivery = OceanCharge{Min: numericToDecimal(nums[8]), PerCBM: numericToDecimal(nums[9])}
		if pssMin.Valid || pssPerCBM.Valid {
			l.LCLPSS = &OceanCharge{Min: numericToDecimal(pssMin), PerCBM: numericToDecimal(pssPerCBM)}
		}
		l.FCL = OceanFCL{
			Total20:   numericToDecimal(fcl[0]),
			Total40:   numericToDecimal(fcl[1]),
			Total40HC: numericToDecimal(fcl[2]),
			Kinds20:   fclKinds(kinds[0:5]),
			Kinds40:   fclKinds(kinds[5:10]),
			Kinds40HC: fclKinds(kinds[10:15]),
		}
		lanes = append(lanes, l)
	}
	return lanes, rows.Err()
}

// fclKinds builds the per-kind breakdown from five nullable columns, nil
// when the card left the whole size un-broken-down.
func fclKinds(cols []pgtype.Numeric) *OceanFCLKinds {
	populated := false
	for _, c := range cols {
		if c.Valid {
			populated = true
			break
		}
	}
	if !populated {
		return nil
	}
	return &OceanFCLKinds{
		Pickup:     numericToDecimal(cols[0]),
		OriginHand: numericToDecimal(cols[1]),
		Freight:    numericToDecimal(cols[2]),
		DestHand:   numericToDecimal(cols[3]),
		Delivery:   numericToDecimal(cols[4]),
	}
}

// ExpressZone maps a country to its zone for the Import or Export table.
func (s *Store) ExpressZone(ctx context.Context, serviceType, countryCode string) (string, error) {
	var zone string
	err := s.pool.QueryRow(ctx, `
		SELECT zone FROM express_zone_map
		WHERE service_type = $1 AND upper(country_code) = upper($2)`,
		serviceType, countryCode).Scan(&zone)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up express zone %s/%s: %w", serviceType, countryCode, err)
	}
	return zone, nil
}

// ExpressRate returns the non-multiplier step row whose weight range
// contains the weight; among containing rows the narrowest (closest) wins.
func (s *Store) ExpressRate(ctx context.Context, serviceType, section string, weightKg float64) (ExpressRateRow, error) {
	return s.expressRow(ctx, serviceType, section, weightKg, false)
}

// ExpressMultiplier returns the multiplier row covering the weight; its
// zone prices are per-0.5 kg adders.
func (s *Store) ExpressMultiplier(ctx context.Context, serviceType, section string, weightKg float64) (ExpressRateRow, error) {
	return s.expressRow(ctx, serviceType, section, weightKg, true)
}

func (s *Store) expressRow(ctx context.Context, serviceType, section string, weightKg float64, multiplier bool) (ExpressRateRow, error) {
	var r ExpressRateRow
	var prices []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, service_type, section, weight_from, weight_to, is_multiplier, zone_prices
		FROM express_rate_rows
		WHERE service_type = $1 AND section = $2 AND is_multiplier = $3
		  AND $4 >= weight_from AND $4 <= weight_to
		ORDER BY weight_to - weight_from, weight_to
		LIMIT 1`,
		serviceType, section, multiplier, weightKg).Scan(
		&r.ID, &r.ServiceType, &r.Section, &r.WeightFrom, &r.WeightTo, &r.IsMultiplier, &prices)
	if errors.Is(err, pgx.ErrNoRows) {
		return ExpressRateRow{}, ErrNotFound
	}
	if err != nil {
		return ExpressRateRow{}, fmt.Errorf("looking up express rate %s/%s at %.1fkg: %w", serviceType, section, weightKg, err)
	}
	if err := json.Unmarshal(prices, &r.ZonePrices); err != nil {
		return ExpressRateRow{}, fmt.Errorf("parsing zone prices for express row %d: %w", r.ID, err)
	}
	return r, nil
}

// ThirdPartyZone maps a country to its zone in the 3rd-party matrix.
func (s *Store) ThirdPartyZone(ctx context.Context, countryCode string) (string, error) {
	var zone string
	err := s.pool.QueryRow(ctx, `
		SELECT zone FROM third_party_zone_map WHERE upper(country_code) = upper($1)`,
		countryCode).Scan(&zone)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up third-party zone for %s: %w", countryCode, err)
	}
	return zone, nil
}

// ThirdPartyRateZone resolves the origin-zone x destination-zone matrix to
// a rate zone A-D.
func (s *Store) ThirdPartyRateZone(ctx context.Context, originZone, destZone string) (string, error) {
	var rateZone string
	err := s.pool.QueryRow(ctx, `
		SELECT rate_zone FROM third_party_matrix
		WHERE origin_zone = $1 AND dest_zone = $2`,
		originZone, destZone).Scan(&rateZone)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up third-party matrix %s/%s: %w", originZone, destZone, err)
	}
	return rateZone, nil
}

// ThirdPartyWeightRate returns the flat price for a weight and rate zone.
func (s *Store) ThirdPartyWeightRate(ctx context.Context, weightKg float64, rateZone string) (decimal.Decimal, error) {
	var n pgtype.Numeric
	err := s.pool.QueryRow(ctx, `
		SELECT price FROM third_party_weight_rows
		WHERE rate_zone = $1 AND $2 >= weight_from AND $2 <= weight_to
		ORDER BY weight_to - weight_from
		LIMIT 1`,
		rateZone, weightKg).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("looking up third-party rate zone %s at %.1fkg: %w", rateZone, weightKg, err)
	}
	return numericToDecimal(n), nil
}

// AUDomesticRateZone resolves the AU domestic zone matrix to a rate zone.
func (s *Store) AUDomesticRateZone(ctx context.Context, originZone, destZone int) (string, error) {
	var rateZone string
	err := s.pool.QueryRow(ctx, `
		SELECT rate_zone FROM au_domestic_matrix
		WHERE origin_zone = $1 AND dest_zone = $2`,
		originZone, destZone).Scan(&rateZone)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up AU domestic matrix %d/%d: %w", originZone, destZone, err)
	}
	return rateZone, nil
}

// AUDomesticRate returns the price for a weight and rate zone. When no row
// matches the weight exactly, the row with the minimum absolute weight
// distance whose zone column is populated wins.
func (s *Store) AUDomesticRate(ctx context.Context, weightKg float64, rateZone string) (decimal.Decimal, error) {
	var prices []byte
	err := s.pool.QueryRow(ctx, `
		SELECT zone_prices FROM au_domestic_weight_rows
		WHERE zone_prices ? $1
		ORDER BY abs(weight_kg - $2), weight_kg
		LIMIT 1`,
		rateZone, weightKg).Scan(&prices)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("looking up AU domestic rate zone %s at %.1fkg: %w", rateZone, weightKg, err)
	}
	var zonePrices map[string]decimal.Decimal
	if err := json.Unmarshal(prices, &zonePrices); err != nil {
		return decimal.Zero, fmt.Errorf("parsing AU domestic zone prices: %w", err)
	}
	price, ok := zonePrices[rateZone]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	return price, nil
}

// ListServiceSurcharges returns the whole surcharge catalog; the
// description-matching cascade runs in memory in the calculator.
func (s *Store) ListServiceSurcharges(ctx context.Context) ([]SurchargeRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, service_code, original_service_code, variant_code, service_name,
		       charge_type, rate, minimum_charge, products_applicable, needs_variant_lookup
		FROM service_surcharges
		ORDER BY service_code, variant_code`)
	if err != nil {
		return nil, fmt.Errorf("querying service surcharges: %w", err)
	}
	defer rows.Close()

	var out []SurchargeRow
	for rows.Next() {
		var r SurchargeRow
		var rate, minCharge pgtype.Numeric
		if err := rows.Scan(
			&r.ID, &r.ServiceCode, &r.OriginalServiceCode, &r.VariantCode, &r.ServiceName,
			&r.ChargeType, &rate, &minCharge, &r.ProductsApplicable, &r.NeedsVariantLookup,
		); err != nil {
			return nil, fmt.Errorf("scanning service surcharge: %w", err)
		}
		r.Rate = numericToDecimal(rate)
		r.MinimumCharge = numericToDecimal(minCharge)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DGFQuote returns the spot quote for a quote id.
func (s *Store) DGFQuote(ctx context.Context, quoteID string) (SpotQuote, error) {
	var q SpotQuote
	var perKg, perCBM, handling, fx pgtype.Numeric
	err := s.pool.QueryRow(ctx, `
		SELECT quote_id, mode, origin, destination, rate_per_kg, rate_per_cbm,
		       handling_fee, currency, fx_to_usd
		FROM dgf_quotes WHERE quote_id = $1`,
		quoteID).Scan(
		&q.QuoteID, &q.Mode, &q.Origin, &q.Destination, &perKg, &perCBM, &handling, &q.Currency, &fx)
	if errors.Is(err, pgx.ErrNoRows) {
		return SpotQuote{}, ErrNotFound
	}
	if err != nil {
		return SpotQuote{}, fmt.Errorf("looking up DGF quote %s: %w", quoteID, err)
	}
	q.RatePerKg = numericToDecimal(perKg)
	q.RatePerCBM = numericToDecimal(perCBM)
	q.HandlingFee = numericToDecimal(handling)
	q.FXToUSD = numericToDecimal(fx)
	return q, nil
}
