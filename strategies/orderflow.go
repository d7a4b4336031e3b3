package strategies

import (
	"fmt"

	"github.com/quantlab/barsim/backtest"
	"github.com/quantlab/barsim/market"
)

// Imbalance trades the bid/ask volume imbalance of a bar's order-flow:
// BUY when bid share >= Threshold, SELL when it is <= 1-Threshold. Bars
// without order-flow, or with less tape volume than MinVolume, hold.
type Imbalance struct {
	Threshold float64
	MinVolume float64
}

func NewImbalance(threshold, minVolume float64) (*Imbalance, error) {
	if threshold == 0 {
		threshold = 0.6
	}
	if threshold <= 0.5 || threshold > 1 {
		return nil, fmt.Errorf("orderflow: threshold must be in (0.5, 1], got %v", threshold)
	}
	if minVolume < 0 {
		return nil, fmt.Errorf("orderflow: min volume must be >= 0, got %v", minVolume)
	}
	return &Imbalance{Threshold: threshold, MinVolume: minVolume}, nil
}

func (s *Imbalance) Decide(snap backtest.Snapshot) market.Signal {
	of := snap.OrderFlow
	if of == nil {
		return market.Hold
	}
	if s.MinVolume > 0 && of.TapeVolume() < s.MinVolume {
		return market.Hold
	}
	imb, ok := of.Imbalance()
	if !ok {
		return market.Hold
	}
	switch {
	case imb >= s.Threshold:
		return market.Buy
	case imb <= 1-s.Threshold:
		return market.Sell
	}
	return market.Hold
}
