package risk

import "math"

// marginHeadroom shaves a relative epsilon off the margin cap so that a fill
// at exactly the capped quantity never fails the broker's cash >= margin check
// on rounding.
const marginHeadroom = 1 - 1e-12

// PlannedRisk is the money lost if a qty-sized position hits its stop.
func PlannedRisk(qty, entry, stop float64) float64 {
	return math.Abs(qty) * math.Abs(entry-stop)
}

// RR is the reward-to-risk ratio of a plan. Zero when risk is zero.
func RR(entry, stop, take float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(take-entry) / risk
}

// RiskPct is planned risk as a fraction of equity. +Inf for non-positive equity.
func RiskPct(plannedRisk, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return plannedRisk / equity
}

// MaxQtyForMargin returns the largest quantity whose margin
// (price*qty/leverage) fits in cash. Zero for non-positive inputs.
func MaxQtyForMargin(cash, leverage, price float64) float64 {
	if !(cash > 0) || !(leverage > 0) || !(price > 0) {
		return 0
	}
	return cash * leverage / price * marginHeadroom
}

// CapToMargin limits qty to what cash can margin at price.
func CapToMargin(qty, cash, leverage, price float64) float64 {
	return math.Min(qty, MaxQtyForMargin(cash, leverage, price))
}
