package backtest

import "github.com/quantlab/barsim/market"

// Snapshot is everything a strategy may see when deciding on a closed bar.
// It never contains data from later bars.
type Snapshot struct {
	Symbol string
	Index  int
	Time   int64
	Price  float64 // close of the current bar
	Bar    market.Bar

	ATR   float64
	ATROK bool // false while the estimator is warming up

	OrderFlow *market.OrderFlow // nil when the run has no order-flow

	InPosition bool
	Pending    bool
}

// Strategy decides BUY, SELL or HOLD for a snapshot. Implementations are
// opaque to the engine.
type Strategy interface {
	Decide(Snapshot) market.Signal
}

// Resetter is implemented by stateful strategies. Run calls Reset before
// the first bar.
type Resetter interface {
	Reset()
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(Snapshot) market.Signal

func (f StrategyFunc) Decide(s Snapshot) market.Signal { return f(s) }
