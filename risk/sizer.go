// Package risk derives position size, stop and take levels from volatility.
package risk

import (
	"math"

	"github.com/quantlab/barsim/market"
)

// Request holds every input of a sizing call. All fields are required.
type Request struct {
	Side       market.Side
	EntryPrice float64
	ATR        float64
	Equity     float64

	RiskFraction float64 // share of equity risked, e.g. 0.01
	StopATRMult  float64
	TakeATRMult  float64
	MinStop      float64 // absolute price distance floor for the stop
}

// Plan is the sizing result. A zero Qty means "skip the trade".
type Plan struct {
	Qty  float64
	Stop float64
	Take float64
}

// Skip reports whether the plan carries no tradable quantity.
func (p Plan) Skip() bool { return !(p.Qty > 0) }

// StopDistance returns |entry - stop| for a plan opened at entry.
func (p Plan) StopDistance(entry float64) float64 { return math.Abs(entry - p.Stop) }

// Sizer turns a sizing request into a plan.
type Sizer interface {
	Calculate(Request) Plan
}

// SizerFunc adapts a plain function to Sizer.
type SizerFunc func(Request) Plan

func (f SizerFunc) Calculate(r Request) Plan { return f(r) }

// ATRSizer sizes trades so that a stop hit loses Equity*RiskFraction.
//
//	stop distance = max(ATR*StopATRMult, MinStop)
//	take distance = max(ATR*TakeATRMult, MinStop)
//	qty           = Equity*RiskFraction / stop distance
//
// Degenerate inputs (non-positive ATR, entry price or stop distance) yield a
// zero plan rather than an error.
type ATRSizer struct{}

func (ATRSizer) Calculate(r Request) Plan {
	if !(r.ATR > 0) || !(r.EntryPrice > 0) {
		return Plan{}
	}
	if r.Side != market.Long && r.Side != market.Short {
		return Plan{}
	}

	stopDist := math.Max(r.ATR*r.StopATRMult, r.MinStop)
	if !(stopDist > 0) || math.IsInf(stopDist, 0) {
		return Plan{}
	}
	takeDist := math.Max(r.ATR*r.TakeATRMult, r.MinStop)

	riskMoney := r.Equity * r.RiskFraction
	qty := riskMoney / stopDist
	if !(qty > 0) || math.IsInf(qty, 0) {
		return Plan{}
	}

	sign := r.Side.Sign()
	return Plan{
		Qty:  qty,
		Stop: r.EntryPrice - sign*stopDist,
		Take: r.EntryPrice + sign*takeDist,
	}
}

// Calculate runs the default ATRSizer.
func Calculate(r Request) Plan {
	return ATRSizer{}.Calculate(r)
}
