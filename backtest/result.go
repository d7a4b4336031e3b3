package backtest

import "github.com/quantlab/barsim/sim"

// EquityPoint is equity after a bar's settlement. The initial point has
// Index -1 and the final point, recorded after end-of-data settlement, has
// Index == number of bars.
type EquityPoint struct {
	Index  int
	Time   int64
	Equity float64
}

// Result is the read-only output of a run.
type Result struct {
	Config Config

	Trades []sim.Trade
	Equity []EquityPoint

	StartEquity float64
	FinalEquity float64
	Cash        float64

	Bars    int // bars processed
	Signals int // actionable decisions
	Entries int // pending entries filled
	Skipped int // actionable decisions that did not become a fill
}

// EquityValues returns the equity curve as plain values.
func (r *Result) EquityValues() []float64 {
	out := make([]float64, len(r.Equity))
	for i, p := range r.Equity {
		out[i] = p.Equity
	}
	return out
}

// NetPnLs returns each trade's realized PnL after fees.
func (r *Result) NetPnLs() []float64 {
	out := make([]float64, len(r.Trades))
	for i, t := range r.Trades {
		out[i] = t.NetPnL()
	}
	return out
}
