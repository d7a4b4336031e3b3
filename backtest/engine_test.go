package backtest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/barsim/market"
	"github.com/quantlab/barsim/market/synthetic"
	"github.com/quantlab/barsim/risk"
	"github.com/quantlab/barsim/sim"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Symbol = "TEST"
	cfg.StartEquity = 10000
	cfg.CommissionRate = 0.0004
	return cfg
}

// signalAt emits sig on the listed bar indexes and HOLD elsewhere.
func signalAt(sig market.Signal, idx ...int) Strategy {
	at := map[int]bool{}
	for _, i := range idx {
		at[i] = true
	}
	return StrategyFunc(func(s Snapshot) market.Signal {
		if at[s.Index] {
			return sig
		}
		return market.Hold
	})
}

func fixedSizer(qty, stop, take float64) risk.Sizer {
	return risk.SizerFunc(func(risk.Request) risk.Plan {
		return risk.Plan{Qty: qty, Stop: stop, Take: take}
	})
}

func newEngine(t *testing.T, cfg Config, s Strategy, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, s, opts...)
	require.NoError(t, err)
	return e
}

func TestRunDeterministicTakeScenario(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		{Time: 1, Open: 100, High: 100.5, Low: 99.5, Close: 100},
		{Time: 2, Open: 100, High: 101, Low: 99.8, Close: 100.8},
	}
	e := newEngine(t, testConfig(), signalAt(market.Buy, 0), WithSizer(fixedSizer(10, 99, 101)))

	res, err := e.Run(bars, nil)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, sim.ExitTake, tr.Reason)
	assert.Equal(t, market.Long, tr.Side)
	assert.Equal(t, 100.0, tr.EntryPrice)
	assert.Equal(t, 101.0, tr.ExitPrice)
	assert.Equal(t, int64(2), tr.EntryTime)
	assert.InDelta(t, 0.4+0.404, tr.Fees, 1e-12)
	assert.InDelta(t, 10009.196, res.FinalEquity, 1e-9)
	assert.InDelta(t, 10009.196, res.Cash, 1e-9)

	assert.Equal(t, 1, res.Signals)
	assert.Equal(t, 1, res.Entries)
	assert.Zero(t, res.Skipped)

	require.Len(t, res.Equity, len(bars)+2)
	assert.Equal(t, EquityPoint{Index: -1, Time: 1, Equity: 10000}, res.Equity[0])
	assert.Equal(t, 10000.0, res.Equity[1].Equity)
	assert.InDelta(t, 10009.196, res.Equity[2].Equity, 1e-9)
	assert.Equal(t, len(bars), res.Equity[3].Index)
	assert.InDelta(t, 10009.196, res.Equity[3].Equity, 1e-9)
}

func TestRunFillPolicy(t *testing.T) {
	t.Parallel()

	// the second bar touches both levels for either side
	bars := []market.Bar{
		{Time: 1, Open: 100, High: 100.5, Low: 99.5, Close: 100},
		{Time: 2, Open: 100, High: 102, Low: 98, Close: 100},
		{Time: 3, Open: 100, High: 100.2, Low: 99.9, Close: 100},
	}

	tests := []struct {
		name       string
		policy     FillPolicy
		sig        market.Signal
		stop, take float64
		want       sim.ExitReason
		wantPx     float64
	}{
		{"long worst", FillWorst, market.Buy, 99, 101, sim.ExitStop, 99},
		{"long best", FillBest, market.Buy, 99, 101, sim.ExitTake, 101},
		{"short worst", FillWorst, market.Sell, 101, 99, sim.ExitStop, 101},
		{"short best", FillBest, market.Sell, 101, 99, sim.ExitTake, 99},
		{"long worst wide bar", FillWorst, market.Buy, 98, 102, sim.ExitStop, 98},
		{"long best wide bar", FillBest, market.Buy, 98, 102, sim.ExitTake, 102},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			cfg.FillPolicy = tt.policy
			e := newEngine(t, cfg, signalAt(tt.sig, 0), WithSizer(fixedSizer(10, tt.stop, tt.take)))

			res, err := e.Run(bars, nil)
			require.NoError(t, err)
			require.Len(t, res.Trades, 1)
			assert.Equal(t, tt.want, res.Trades[0].Reason)
			assert.Equal(t, tt.wantPx, res.Trades[0].ExitPrice)
			assert.Equal(t, int64(2), res.Trades[0].ExitTime)
		})
	}
}

func TestRunWorstStopScenarioEquity(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		{Time: 1, Open: 100, High: 100.5, Low: 99.5, Close: 100},
		{Time: 2, Open: 100, High: 102, Low: 98, Close: 100},
	}
	e := newEngine(t, testConfig(), signalAt(market.Buy, 0), WithSizer(fixedSizer(10, 99, 101)))
	res, err := e.Run(bars, nil)
	require.NoError(t, err)

	// 10000 - 0.4 - 0.396 - 10
	assert.InDelta(t, 9989.204, res.FinalEquity, 1e-9)
}

func TestRunForceClosesAtEOD(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		{Time: 1, Open: 100, High: 101, Low: 99, Close: 100},
		{Time: 2, Open: 100, High: 101, Low: 99, Close: 100.5},
		{Time: 3, Open: 100.5, High: 101, Low: 100, Close: 100.7},
	}
	e := newEngine(t, testConfig(), signalAt(market.Buy, 0), WithSizer(fixedSizer(5, 50, 150)))
	res, err := e.Run(bars, nil)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, sim.ExitEOD, tr.Reason)
	assert.Equal(t, 100.7, tr.ExitPrice)
	assert.Equal(t, int64(3), tr.ExitTime)

	last := res.Equity[len(res.Equity)-1]
	assert.Equal(t, 3, last.Index)
	assert.InDelta(t, res.FinalEquity, last.Equity, 1e-12)
	// the bar-2 point is before EOD settlement
	assert.Less(t, res.Equity[len(res.Equity)-2].Equity, 10000.0)
}

func TestRunSignalOnLastBarIsSkipped(t *testing.T) {
	t.Parallel()

	bars := synthetic.Generate(synthetic.Options{N: 5, Seed: 1})
	e := newEngine(t, testConfig(), signalAt(market.Buy, 4), WithSizer(fixedSizer(1, 1, 1000)))
	res, err := e.Run(bars, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 10000.0, res.FinalEquity)
}

func TestRunAtMostOnePosition(t *testing.T) {
	t.Parallel()

	bars := synthetic.Generate(synthetic.Options{N: 300, Seed: 9})
	always := StrategyFunc(func(s Snapshot) market.Signal {
		if s.Index%2 == 0 {
			return market.Buy
		}
		return market.Sell
	})
	cfg := testConfig()
	cfg.ATRPeriod = 5
	e := newEngine(t, cfg, always)
	res, err := e.Run(bars, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)

	// trades never overlap
	for i := 1; i < len(res.Trades); i++ {
		assert.GreaterOrEqual(t, res.Trades[i].EntryTime, res.Trades[i-1].ExitTime)
	}
	assert.Equal(t, res.Entries, len(res.Trades))
}

func TestRunCapsQtyToMargin(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		{Time: 1, Open: 100, High: 100.5, Low: 99.5, Close: 100},
		{Time: 2, Open: 200, High: 201, Low: 199, Close: 200},
		{Time: 3, Open: 200, High: 201, Low: 199, Close: 200},
	}
	e := newEngine(t, testConfig(), signalAt(market.Buy, 0), WithSizer(fixedSizer(1000, 1, 1000)))
	res, err := e.Run(bars, nil)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	// capped at the next bar's open, not the signal close
	assert.InDelta(t, 50.0, res.Trades[0].Qty, 1e-6)
	assert.LessOrEqual(t, res.Trades[0].Qty*200, 10000.0)
}

func TestRunDefaultSizerRisk(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		{Time: 1, Open: 100, High: 101, Low: 99, Close: 100},
		{Time: 2, Open: 100, High: 101, Low: 99, Close: 100},
		{Time: 3, Open: 100, High: 100.5, Low: 99.5, Close: 100},
		{Time: 4, Open: 100, High: 100.5, Low: 99.5, Close: 100},
	}
	cfg := testConfig()
	cfg.ATRPeriod = 2
	cfg.StopATRMult = 1
	cfg.TakeATRMult = 2
	cfg.RiskFraction = 0.01
	cfg.MaxLeverage = 100

	e := newEngine(t, cfg, signalAt(market.Buy, 1))
	res, err := e.Run(bars, nil)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	// ATR = 2 on bar 1: stop 98, take 104, qty = 100/2
	tr := res.Trades[0]
	assert.InDelta(t, 50.0, tr.Qty, 1e-9)
	assert.Equal(t, sim.ExitEOD, tr.Reason)
}

func TestRunATRFloor(t *testing.T) {
	t.Parallel()

	bars := synthetic.Generate(synthetic.Options{N: 10, Seed: 2})
	cfg := testConfig()
	cfg.ATRPeriod = 50 // never ready

	e := newEngine(t, cfg, signalAt(market.Buy, 0))
	res, err := e.Run(bars, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, res.Skipped)

	cfg.ATRFloor = 1
	e = newEngine(t, cfg, signalAt(market.Buy, 0))
	res, err = e.Run(bars, nil)
	require.NoError(t, err)
	assert.Len(t, res.Trades, 1)
}

func TestRunNoLookAhead(t *testing.T) {
	t.Parallel()

	bars := synthetic.Generate(synthetic.Options{N: 80, Seed: 4})
	flow := synthetic.GenerateOrderFlow(len(bars), synthetic.FlowOptions{Seed: 4})

	collect := func(n int) []Snapshot {
		var seen []Snapshot
		s := StrategyFunc(func(s Snapshot) market.Signal {
			seen = append(seen, s)
			if s.Index%7 == 0 {
				return market.Buy
			}
			return market.Hold
		})
		cfg := testConfig()
		cfg.ATRPeriod = 5
		e := newEngine(t, cfg, s)
		res, err := e.Run(bars[:n], flow[:n])
		require.NoError(t, err)
		require.NotEmpty(t, res.Trades)
		return seen
	}

	full := collect(len(bars))
	prefix := collect(40)
	require.Len(t, full, len(bars))

	for i, s := range prefix {
		assert.Equal(t, bars[i].Close, s.Price)
		assert.Equal(t, bars[i], s.Bar)
		require.NotNil(t, s.OrderFlow)
		assert.Equal(t, flow[i], *s.OrderFlow)
		assert.Equal(t, full[i], s, "snapshot %d depends on later bars", i)
	}
	assert.False(t, full[3].ATROK)
	assert.True(t, full[4].ATROK)
}

func TestRunEmptyBars(t *testing.T) {
	t.Parallel()

	e := newEngine(t, testConfig(), signalAt(market.Buy, 0))
	res, err := e.Run(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	require.Len(t, res.Equity, 2)
	assert.Equal(t, 10000.0, res.FinalEquity)
	assert.Equal(t, []float64{10000, 10000}, res.EquityValues())
}

func TestRunBadInput(t *testing.T) {
	t.Parallel()

	e := newEngine(t, testConfig(), signalAt(market.Buy, 0))

	_, err := e.Run([]market.Bar{{Open: 100, High: 99, Low: 98, Close: 100}}, nil)
	assert.ErrorIs(t, err, ErrData)
	assert.Equal(t, KindData, KindOf(err))

	bars := synthetic.Generate(synthetic.Options{N: 3, Seed: 1})
	_, err = e.Run(bars, make([]market.OrderFlow, 2))
	assert.ErrorIs(t, err, ErrData)
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()

	bars := synthetic.Generate(synthetic.Options{N: 400, Seed: 11})
	s := StrategyFunc(func(s Snapshot) market.Signal {
		if s.ATROK && s.Bar.Close > s.Bar.Open {
			return market.Buy
		}
		if s.ATROK {
			return market.Sell
		}
		return market.Hold
	})
	e := newEngine(t, testConfig(), s)

	a, err := e.Run(bars, nil)
	require.NoError(t, err)
	require.NotEmpty(t, a.Trades)
	b, err := e.Run(bars, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRunConcurrentEngines(t *testing.T) {
	t.Parallel()

	const n = 8
	strat := StrategyFunc(func(s Snapshot) market.Signal {
		if s.ATROK && s.Index%5 == 0 {
			return market.Buy
		}
		return market.Hold
	})

	series := make([][]market.Bar, n)
	want := make([]*Result, n)
	for i := range series {
		series[i] = synthetic.Generate(synthetic.Options{N: 250, Seed: int64(i + 1)})
		res, err := newEngine(t, testConfig(), strat).Run(series[i], nil)
		require.NoError(t, err)
		require.NotEmpty(t, res.Trades, "series %d", i)
		want[i] = res
	}

	got := make([]*Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range series {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := New(testConfig(), strat)
			if err != nil {
				errs[i] = err
				return
			}
			got[i], errs[i] = e.Run(series[i], nil)
		}(i)
	}
	wg.Wait()

	for i := range series {
		require.NoError(t, errs[i])
		assert.Equal(t, want[i], got[i])
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(testConfig(), nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	cfg := testConfig()
	cfg.MaxLeverage = 0
	_, err = New(cfg, signalAt(market.Hold))
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, KindConfiguration, KindOf(err))
}
