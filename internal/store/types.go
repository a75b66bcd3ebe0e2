package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AirLane is one air rate-card lane with its weight-bracket rates.
type AirLane struct {
	ID                 int64
	RateCardID         int64
	Carrier            string
	OriginPort         string
	DestinationPort    string
	Service            string // Standard or Expedite
	ATACostLt1000      decimal.Decimal
	ATACost1000To1999  decimal.Decimal
	ATACost2000To2999  decimal.Decimal
	ATACostGte3000     decimal.Decimal
	ATAMinCharge       decimal.Decimal
	FuelPerKg          decimal.Decimal
	PTDFreightCharge   decimal.Decimal
	PTDMinCharge       decimal.Decimal
	DestinationMin     decimal.Decimal
	SecuritySurcharge  decimal.Decimal
	PSSPerKg           decimal.Decimal
	AdderPerHalfKg     decimal.Decimal
}

// ATACost picks the per-kg bracket rate for a gross weight. Brackets are
// [0,1000), [1000,2000), [2000,3000), [3000,inf).
func (l AirLane) ATACost(weightKg float64) decimal.Decimal {
	switch {
	case weightKg < 1000:
		return l.ATACostLt1000
	case weightKg < 2000:
		return l.ATACost1000To1999
	case weightKg < 3000:
		return l.ATACost2000To2999
	default:
		return l.ATACostGte3000
	}
}

// OceanCharge is the LCL min/per-CBM pair for one charge kind.
type OceanCharge struct {
	Min    decimal.Decimal
	PerCBM decimal.Decimal
}

// OceanFCLKinds is a per-container price broken down by charge kind.
type OceanFCLKinds struct {
	Pickup     decimal.Decimal
	OriginHand decimal.Decimal
	Freight    decimal.Decimal
	DestHand   decimal.Decimal
	Delivery   decimal.Decimal
}

// OceanFCL carries the per-container prices by size: always a flat total,
// plus the per-kind breakdown when the card defines one. A nil kinds entry
// means the size prices only as a total.
type OceanFCL struct {
	Total20   decimal.Decimal
	Total40   decimal.Decimal
	Total40HC decimal.Decimal
	Kinds20   *OceanFCLKinds
	Kinds40   *OceanFCLKinds
	Kinds40HC *OceanFCLKinds
}

// OceanLane is one ocean rate-card lane with both LCL and FCL tables.
type OceanLane struct {
	ID                int64
	RateCardID        int64
	Carrier           string
	Origin            string
	Destination       string
	CitiesOrigin      []string
	CitiesDestination []string
	PortOfLoading     string
	PortOfDischarge   string
	Service           string // FCL or LCL

	LCLPickup       OceanCharge
	LCLOriginHand   OceanCharge
	LCLFreight      OceanCharge
	LCLDestHand     OceanCharge
	LCLDelivery     OceanCharge
	LCLPSS          *OceanCharge // nil when the lane defines no PSS
	FCL             OceanFCL
}

// ExpressRateRow is one row of a zone-indexed express weight table.
// ZonePrices maps zone label ("1".."8" or "A".."D") to the price; for
// multiplier rows the price is the per-0.5 kg adder.
type ExpressRateRow struct {
	ID           int64
	ServiceType  string // Import, Export or AuDomestic
	Section      string // Documents or NonDocuments
	WeightFrom   float64
	WeightTo     float64
	IsMultiplier bool
	ZonePrices   map[string]decimal.Decimal
}

// Price returns the price for a zone column, false when the column is
// absent or null for this row.
func (r ExpressRateRow) Price(zone string) (decimal.Decimal, bool) {
	p, ok := r.ZonePrices[zone]
	return p, ok
}

// SurchargeRow is one entry of the service-surcharge catalog.
type SurchargeRow struct {
	ID                  int64
	ServiceCode         string
	OriginalServiceCode string
	VariantCode         string
	ServiceName         string
	ChargeType          string // flat, per_kg, per_shipment, custom_formula
	Rate                decimal.Decimal
	MinimumCharge       decimal.Decimal
	ProductsApplicable  string // "All Products", "Domestic", "International" or a product name
	NeedsVariantLookup  bool
}

// SpotQuote is a DGF per-shipment negotiated price.
type SpotQuote struct {
	QuoteID     string
	Mode        string // air or sea
	Origin      string
	Destination string
	RatePerKg   decimal.Decimal
	RatePerCBM  decimal.Decimal
	HandlingFee decimal.Decimal
	Currency    string
	FXToUSD     decimal.Decimal
}

// BatchRun is the aggregate record of one coordinator invocation.
type BatchRun struct {
	ID              uuid.UUID
	Name            string
	Status          string // running, completed, cancelled, error
	TotalInvoices   int
	ApprovedCount   int
	ReviewCount     int
	RejectedCount   int
	ErrorCount      int
	NoRateCardCount int
	ProcessingMs    int64
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// Batch statuses.
const (
	BatchRunning   = "running"
	BatchCompleted = "completed"
	BatchCancelled = "cancelled"
	BatchError     = "error"
)

// ResultRow is one persisted audit result as read back for listings.
type ResultRow struct {
	ID                  uuid.UUID
	BatchRunID          uuid.UUID
	InvoiceNo           string
	Status              string
	TotalInvoiceUSD     decimal.Decimal
	TotalExpectedUSD    decimal.Decimal
	TotalVarianceUSD    decimal.Decimal
	VariancePercent     decimal.Decimal
	RateCardsChecked    int
	BestMatchIdentifier string
	Details             []byte
	CreatedAt           time.Time
}

// PagedResults is one page of batch results.
type PagedResults struct {
	Results  []ResultRow
	Total    int64
	Page     int
	PageSize int
}
