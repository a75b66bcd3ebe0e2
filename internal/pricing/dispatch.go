package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cargoaudit/api/internal/audit"
	"github.com/cargoaudit/api/internal/geo"
)

// thirdPartyTags are the description phrases that mark an express shipment
// as third-country billed. A non-AU express shipment without one of these
// is routed to review, not to the 3rd-party calculator.
var thirdPartyTags = []string{
	"3RD PARTY",
	"THIRD PARTY",
	"EXPRESS WORLDWIDE",
	"EXPRESS 3RDCTY",
	"THIRD COUNTRY",
}

// Express table names as stored in the rate tables.
const (
	serviceImport = "Import"
	serviceExport = "Export"
)

// Express sections.
const (
	sectionDocuments    = "Documents"
	sectionNonDocuments = "NonDocuments"
)

// Dispatcher routes an invoice to the calculator for its mode. It is
// state-free; all data access goes through the rate store.
type Dispatcher struct {
	rates     RateStore
	surcharge *SurchargeResolver
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher over a rate store.
func NewDispatcher(rates RateStore, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		rates:     rates,
		surcharge: NewSurchargeResolver(rates),
		logger:    logger,
	}
}

// Audit runs the full audit for one invoice: currency normalization, mode
// routing, pricing, classification. Verdict-level failures (no rate card,
// unresolvable zone, missing exchange rate) come back as results; only
// store and pricing faults are returned as errors.
func (d *Dispatcher) Audit(ctx context.Context, inv audit.Invoice) (audit.Result, error) {
	usd, err := inv.USDCharges()
	if errors.Is(err, audit.ErrCurrencyMissing) {
		res := verdictResult(inv, audit.VerdictError, fmt.Sprintf("no exchange rate for currency %s", inv.Currency))
		res.Details.Error = err.Error()
		return res, nil
	}
	if err != nil {
		return audit.Result{}, err
	}

	switch inv.Mode {
	case audit.ModeAir:
		return d.auditAir(ctx, inv, usd)
	case audit.ModeOcean:
		return d.auditOcean(ctx, inv, usd)
	case audit.ModeExpress:
		return d.routeExpress(ctx, inv, usd)
	case audit.ModeExpress3P:
		return d.auditThirdParty(ctx, inv, usd)
	case audit.ModeAUDomestic:
		return d.auditAUDomestic(ctx, inv, usd)
	case audit.ModeDGFAir, audit.ModeDGFSea:
		return d.auditSpotQuote(ctx, inv, usd)
	default:
		return audit.Result{}, fmt.Errorf("unknown transportation mode %q on invoice %s", inv.Mode, inv.InvoiceNo)
	}
}

// routeExpress decides between the AU domestic, export, import and
// 3rd-party express calculators from the shipment endpoints.
func (d *Dispatcher) routeExpress(ctx context.Context, inv audit.Invoice, usd usdCharges) (audit.Result, error) {
	// Surcharge-only lines carry no freight; they audit against the
	// service catalog, not the weight tables.
	if usd[audit.ChargeFreight].IsZero() && !usd[audit.ChargeServiceSurcharge].IsZero() {
		return d.auditSurchargeLine(ctx, inv, usd)
	}

	originCountry, originOK := geo.CountryFromAddress(inv.Origin)
	destCountry, destOK := geo.CountryFromAddress(inv.Destination)

	originAU := originOK && originCountry == "AU"
	destAU := destOK && destCountry == "AU"

	switch {
	case originAU && destAU:
		return d.auditAUDomestic(ctx, inv, usd)
	case originAU:
		return d.auditExpressIntl(ctx, inv, usd, serviceExport, destCountry)
	case destAU:
		if !originOK {
			return verdictResult(inv, audit.VerdictReview, "origin country could not be resolved"), nil
		}
		return d.auditExpressIntl(ctx, inv, usd, serviceImport, originCountry)
	case hasThirdPartyTag(inv.Description):
		return d.auditThirdParty(ctx, inv, usd)
	default:
		// Non-AU shipment without a third-party phrase: the original
		// billing rules give no table to audit against.
		return verdictResult(inv, audit.VerdictReview, "non-AU express shipment without third-party tag"), nil
	}
}

func hasThirdPartyTag(description string) bool {
	upper := strings.ToUpper(description)
	for _, tag := range thirdPartyTags {
		if strings.Contains(upper, tag) {
			return true
		}
	}
	return false
}

// expressSection picks the rate table section from the goods description:
// Documents when it mentions DOC but not NONDOC.
func expressSection(description string) string {
	upper := strings.ToUpper(description)
	if strings.Contains(upper, "DOC") && !strings.Contains(upper, "NONDOC") {
		return sectionDocuments
	}
	return sectionNonDocuments
}
