package strategies

import (
	"fmt"

	"github.com/quantlab/barsim/backtest"
	"github.com/quantlab/barsim/market"
)

// Noop always holds.
type Noop struct{}

func (Noop) Decide(backtest.Snapshot) market.Signal { return market.Hold }

// Once emits its signal on the first bar it sees and holds afterwards.
type Once struct {
	Signal market.Signal
	fired  bool
}

// NewOnce accepts "BUY" or "SELL". Empty means BUY.
func NewOnce(signal string) (*Once, error) {
	if signal == "" {
		signal = "BUY"
	}
	sig := market.ParseSignal(signal)
	if !sig.Actionable() {
		return nil, fmt.Errorf("buy-once: signal must be BUY or SELL, got %q", signal)
	}
	return &Once{Signal: sig}, nil
}

func (o *Once) Decide(backtest.Snapshot) market.Signal {
	if o.fired {
		return market.Hold
	}
	o.fired = true
	return o.Signal
}

func (o *Once) Reset() { o.fired = false }
