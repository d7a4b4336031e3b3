package strategies

import (
	"github.com/quantlab/barsim/backtest"
	"github.com/quantlab/barsim/market"
)

// PriceFunc is the price-only strategy shape: it sees the close and nothing
// else.
type PriceFunc func(price float64) market.Signal

// FromPrice adapts a PriceFunc to backtest.Strategy.
func FromPrice(f PriceFunc) backtest.Strategy {
	return backtest.StrategyFunc(func(s backtest.Snapshot) market.Signal {
		return f(s.Price)
	})
}

// TextFunc returns decisions as text ("BUY", "sell", "hold", ...).
type TextFunc func(backtest.Snapshot) string

// FromText adapts a TextFunc. Unrecognised text is HOLD.
func FromText(f TextFunc) backtest.Strategy {
	return backtest.StrategyFunc(func(s backtest.Snapshot) market.Signal {
		return market.ParseSignal(f(s))
	})
}
