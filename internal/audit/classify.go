package audit

import "github.com/shopspring/decimal"

var (
	hundred      = decimal.NewFromInt(100)
	approvedPct  = decimal.NewFromInt(5)
	reviewPct    = decimal.NewFromInt(15)
)

// NewLineItem builds a line item with its variance computed per the audit
// type:
//
//   - rate_card_comparison: variance = actual - expected, pct against
//     expected (100 when expected is zero and actual is not).
//   - pass_through: expected is forced to actual, variance zero.
//   - additional_charge: expected zero, the actual recorded as variance.
func NewLineItem(kind ChargeKind, actual, expected decimal.Decimal, auditType AuditType) LineItem {
	switch auditType {
	case AuditPassThrough:
		return LineItem{
			ChargeKind:  kind,
			ActualUSD:   actual,
			ExpectedUSD: actual,
			VarianceUSD: decimal.Zero,
			VariancePct: decimal.Zero,
			AuditType:   auditType,
		}
	case AuditAdditionalCharge:
		return LineItem{
			ChargeKind:  kind,
			ActualUSD:   actual,
			ExpectedUSD: decimal.Zero,
			VarianceUSD: actual,
			VariancePct: pct(actual, decimal.Zero),
			AuditType:   auditType,
		}
	default:
		variance := actual.Sub(expected)
		return LineItem{
			ChargeKind:  kind,
			ActualUSD:   actual,
			ExpectedUSD: expected,
			VarianceUSD: variance,
			VariancePct: pct(variance, expected),
			AuditType:   auditType,
		}
	}
}

// pct is |variance| / expected * 100; 100 when there is no expected amount
// but an actual one, 0 when both are zero.
func pct(variance, expected decimal.Decimal) decimal.Decimal {
	if expected.IsPositive() {
		return variance.Abs().Div(expected).Mul(hundred).Round(2)
	}
	if !variance.IsZero() {
		return hundred
	}
	return decimal.Zero
}

// Summary aggregates the classified line items of one rate-card comparison.
type Summary struct {
	Status               Verdict
	TotalActualUSD       decimal.Decimal
	TotalExpectedUSD     decimal.Decimal
	TotalVarianceUSD     decimal.Decimal
	VariancePercent      decimal.Decimal
	AuditableExpectedUSD decimal.Decimal
	AuditableVarianceUSD decimal.Decimal
	Lines                []LineItem
}

// Classify totals the line items and assigns the verdict.
//
// The verdict comes from the auditable variance only: pass-through lines
// carry zero variance by construction and additional charges are excluded.
// An auditable variance at or below zero (customer undercharged or exact
// match) is approved regardless of percentage; otherwise the 5%/15%
// thresholds partition approved / review_required / rejected.
func Classify(lines []LineItem) Summary {
	s := Summary{Lines: lines}
	for _, li := range lines {
		s.TotalActualUSD = s.TotalActualUSD.Add(li.ActualUSD)
		s.TotalExpectedUSD = s.TotalExpectedUSD.Add(li.ExpectedUSD)
		s.TotalVarianceUSD = s.TotalVarianceUSD.Add(li.VarianceUSD)
		if li.AuditType == AuditRateCard {
			s.AuditableExpectedUSD = s.AuditableExpectedUSD.Add(li.ExpectedUSD)
			s.AuditableVarianceUSD = s.AuditableVarianceUSD.Add(li.VarianceUSD)
		}
	}
	s.VariancePercent = pct(s.AuditableVarianceUSD, s.AuditableExpectedUSD)

	switch {
	case s.AuditableVarianceUSD.LessThanOrEqual(decimal.Zero):
		s.Status = VerdictApproved
	case s.VariancePercent.LessThanOrEqual(approvedPct):
		s.Status = VerdictApproved
	case s.VariancePercent.LessThanOrEqual(reviewPct):
		s.Status = VerdictReview
	default:
		s.Status = VerdictRejected
	}
	return s
}
