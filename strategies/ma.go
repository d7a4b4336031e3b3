package strategies

import (
	"fmt"

	"github.com/quantlab/barsim/backtest"
	"github.com/quantlab/barsim/indicators"
	"github.com/quantlab/barsim/market"
)

// SMA buys when the close is above its simple moving average and sells when
// it is below.
type SMA struct {
	ma *indicators.SimpleMA
}

func NewSMA(window int) (*SMA, error) {
	if window <= 0 {
		return nil, fmt.Errorf("sma: window must be positive, got %d", window)
	}
	return &SMA{ma: indicators.NewSMA(window)}, nil
}

func (s *SMA) Decide(snap backtest.Snapshot) market.Signal {
	s.ma.Update(snap.Bar)
	if !s.ma.Ready() {
		return market.Hold
	}
	switch avg := s.ma.Value(); {
	case snap.Price > avg:
		return market.Buy
	case snap.Price < avg:
		return market.Sell
	}
	return market.Hold
}

func (s *SMA) Reset() { s.ma.Reset() }

// EMACross signals only on a fast/slow EMA crossover:
//   - bull cross: fast-slow goes from <= 0 to > 0
//   - bear cross: fast-slow goes from >= 0 to < 0
type EMACross struct {
	fast *indicators.ExponentialMA
	slow *indicators.ExponentialMA

	lastDiff     float64
	haveLastDiff bool
}

func NewEMACross(fast, slow int) (*EMACross, error) {
	if fast <= 0 || slow <= 0 {
		return nil, fmt.Errorf("ema-cross: periods must be positive, got %d/%d", fast, slow)
	}
	if fast >= slow {
		return nil, fmt.Errorf("ema-cross: fast period %d must be below slow %d", fast, slow)
	}
	return &EMACross{
		fast: indicators.NewEMA(fast),
		slow: indicators.NewEMA(slow),
	}, nil
}

func (s *EMACross) Decide(snap backtest.Snapshot) market.Signal {
	s.fast.Update(snap.Bar)
	s.slow.Update(snap.Bar)

	if !s.fast.Ready() || !s.slow.Ready() {
		return market.Hold
	}

	diff := s.fast.Value() - s.slow.Value()
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return market.Hold
	}

	bull := diff > 0 && s.lastDiff <= 0
	bear := diff < 0 && s.lastDiff >= 0
	s.lastDiff = diff

	switch {
	case bull:
		return market.Buy
	case bear:
		return market.Sell
	}
	return market.Hold
}

func (s *EMACross) Reset() {
	s.fast.Reset()
	s.slow.Reset()
	s.lastDiff = 0
	s.haveLastDiff = false
}
