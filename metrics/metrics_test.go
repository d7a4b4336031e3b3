package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/barsim/market"
	"github.com/quantlab/barsim/sim"
)

func TestDrawdownMonotoneIsZero(t *testing.T) {
	t.Parallel()

	for _, eq := range [][]float64{
		{100, 100, 101, 105, 105, 200},
		{100},
		{5, 5, 5},
	} {
		dd := Drawdown(eq)
		assert.Zero(t, dd.Max)
		assert.Zero(t, dd.MaxPct)
	}
}

func TestDrawdown(t *testing.T) {
	t.Parallel()

	dd := Drawdown([]float64{100, 120, 90, 110, 130, 117})
	assert.InDelta(t, 30.0, dd.Max, 1e-12)
	assert.InDelta(t, 0.25, dd.MaxPct, 1e-12)
	assert.Equal(t, 120.0, dd.Peak)
	assert.Equal(t, 90.0, dd.Trough)

	assert.Equal(t, DrawdownStats{}, Drawdown(nil))
}

func TestProfitFactor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pnls []float64
		want Ratio
	}{
		{"empty", nil, Ratio{}},
		{"only profit", []float64{5}, Ratio{Infinite: true}},
		{"only flat", []float64{0, 0}, Ratio{}},
		{"mixed", []float64{10, -5, 5, -5}, Ratio{Value: 1.5}},
		{"only loss", []float64{-3}, Ratio{Value: 0}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ProfitFactor(tt.pnls)
			assert.Equal(t, tt.want.Infinite, got.Infinite)
			assert.InDelta(t, tt.want.Value, got.Value, 1e-12)
		})
	}

	assert.True(t, math.IsInf(ProfitFactor([]float64{1}).Float(), 1))
	assert.Equal(t, "inf", ProfitFactor([]float64{1}).String())
	assert.Equal(t, "1.5000", ProfitFactor([]float64{3, -2}).String())
}

func TestExpectancyFormulationsAgree(t *testing.T) {
	t.Parallel()

	cases := [][]float64{
		{10, -5, 3, -2, 0, 7},
		{1, 1, 1},
		{-1, -2},
		{0},
		{125.5, -40.25, -40.25, 300, -0.01},
	}
	for _, pnls := range cases {
		assert.InDelta(t, Expectancy(pnls), WeightedExpectancy(pnls), 1e-9, "%v", pnls)
	}
	assert.Zero(t, Expectancy(nil))
	assert.Zero(t, WeightedExpectancy(nil))
}

func TestReturns(t *testing.T) {
	t.Parallel()

	r := Returns([]float64{100, 110, 99, 0, 5})
	require.Len(t, r, 4)
	assert.InDelta(t, 0.1, r[0], 1e-12)
	assert.InDelta(t, -0.1, r[1], 1e-12)
	assert.InDelta(t, -1.0, r[2], 1e-12)
	assert.Zero(t, r[3])

	assert.Nil(t, Returns([]float64{1}))
}

func TestSharpeSortino(t *testing.T) {
	t.Parallel()

	sh, so := SharpeSortino(nil, 252)
	assert.Zero(t, sh)
	assert.Zero(t, so)

	sh, so = SharpeSortino([]float64{100}, 252)
	assert.Zero(t, sh)
	assert.Zero(t, so)

	// returns: +0.1, -0.1
	sh, so = SharpeSortino([]float64{100, 110, 99}, 1)
	assert.InDelta(t, 0.0, sh, 1e-12)
	assert.InDelta(t, 0.0, so, 1e-12)

	// returns: +0.1, +0.1, -0.05
	eq := []float64{100, 110, 121, 114.95}
	sh, so = SharpeSortino(eq, 1)
	m := (0.1 + 0.1 - 0.05) / 3
	sd := math.Sqrt((2*math.Pow(0.1-m, 2) + math.Pow(-0.05-m, 2)) / 2)
	assert.InDelta(t, m/sd, sh, 1e-9)
	assert.InDelta(t, m/0.05, so, 1e-9)

	sh4, so4 := SharpeSortino(eq, 4)
	assert.InDelta(t, 2*sh, sh4, 1e-9)
	assert.InDelta(t, 2*so, so4, 1e-9)

	// no downside
	_, so = SharpeSortino([]float64{100, 101, 102}, 1)
	assert.Zero(t, so)
}

func TestStreaks(t *testing.T) {
	t.Parallel()

	w, l := Streaks([]float64{1, 2, -1, 3, 4, 5, 0, -1, -2, -3, -4, 1})
	assert.Equal(t, 3, w)
	assert.Equal(t, 4, l)

	w, l = Streaks(nil)
	assert.Zero(t, w)
	assert.Zero(t, l)
}

func TestWinRate(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.5, WinRate([]float64{1, -1, 2, 0}), 1e-12)
	assert.Zero(t, WinRate(nil))
}

func trade(pnl, fees float64) sim.Trade {
	return sim.Trade{Side: market.Long, Qty: 1, EntryPrice: 100, ExitPrice: 100 + pnl, PnL: pnl, Fees: fees}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	trades := []sim.Trade{trade(10, 1), trade(-5, 1), trade(4, 1)}
	equity := []float64{1000, 1000, 1009, 1003, 1006}

	s := Summarize(trades, equity)
	assert.Equal(t, 3, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 6.0, s.TotalPnL, 1e-12)
	assert.InDelta(t, 3.0, s.Fees, 1e-12)
	assert.InDelta(t, 6.0, s.AvgWin, 1e-12)
	assert.InDelta(t, -6.0, s.AvgLoss, 1e-12)
	assert.InDelta(t, 1.0, s.Payoff, 1e-12)
	assert.InDelta(t, 2.0, s.ProfitFactor.Value, 1e-12)
	assert.InDelta(t, 2.0, s.Expectancy, 1e-12)
	assert.InDelta(t, 6.0, s.Drawdown.Max, 1e-12)
	assert.InDelta(t, 0.006, s.Return, 1e-12)
	assert.Equal(t, 1, s.MaxWinStreak)
	assert.Equal(t, 1, s.MaxLossStreak)
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	s := Summarize(nil, nil)
	assert.Equal(t, Summary{}, s)
}

func TestTopTrades(t *testing.T) {
	t.Parallel()

	trades := []sim.Trade{trade(1, 0), trade(-3, 0), trade(5, 0), trade(-1, 0)}
	best, worst := TopTrades(trades, 2)
	require.Len(t, best, 2)
	require.Len(t, worst, 2)
	assert.Equal(t, 5.0, best[0].PnL)
	assert.Equal(t, 1.0, best[1].PnL)
	assert.Equal(t, -3.0, worst[0].PnL)
	assert.Equal(t, -1.0, worst[1].PnL)

	// input order untouched
	assert.Equal(t, 1.0, trades[0].PnL)

	b, w := TopTrades(trades, 0)
	assert.Nil(t, b)
	assert.Nil(t, w)
}
