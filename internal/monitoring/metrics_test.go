package monitoring

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/barsim/backtest"
	"github.com/quantlab/barsim/market"
	"github.com/quantlab/barsim/sim"
)

func result() *backtest.Result {
	cfg := backtest.DefaultConfig()
	return &backtest.Result{
		Config: cfg,
		Trades: []sim.Trade{
			{Symbol: cfg.Symbol, Side: market.Long, Qty: 1, EntryPrice: 100, ExitPrice: 110, PnL: 10, Fees: 1, Reason: sim.ExitTake},
			{Symbol: cfg.Symbol, Side: market.Short, Qty: 1, EntryPrice: 100, ExitPrice: 102, PnL: -2, Fees: 1, Reason: sim.ExitStop},
		},
		Equity: []backtest.EquityPoint{
			{Index: -1, Equity: 1000}, {Index: 0, Equity: 1009}, {Index: 1, Equity: 1006}, {Index: 2, Equity: 1006},
		},
		StartEquity: 1000,
		FinalEquity: 1006,
		Bars:        2,
		Skipped:     3,
	}
}

func TestObserveRun(t *testing.T) {
	t.Parallel()

	c := New()
	res := result()
	c.ObserveRun("sma", res, 0.25)
	c.ObserveRun("sma", res, 0.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("TEST", "sma")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.barsTotal.WithLabelValues("TEST", "sma")))
	assert.Equal(t, 6.0, testutil.ToFloat64(c.skipped.WithLabelValues("TEST", "sma")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.tradesTotal.WithLabelValues("TEST", "sma", "LONG", "TAKE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.tradesTotal.WithLabelValues("TEST", "sma", "SHORT", "STOP")))
	assert.Equal(t, 1006.0, testutil.ToFloat64(c.finalEquity.WithLabelValues("TEST", "sma")))
	assert.InDelta(t, 0.6, testutil.ToFloat64(c.returnPct.WithLabelValues("TEST", "sma")), 1e-9)
	assert.InDelta(t, 0.5, testutil.ToFloat64(c.winRate.WithLabelValues("TEST", "sma")), 1e-12)
	assert.Equal(t, 0.5, testutil.ToFloat64(c.duration.WithLabelValues("TEST", "sma")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.tradePnL))
}

func TestRecordError(t *testing.T) {
	t.Parallel()

	c := New()
	c.RecordError(fmt.Errorf("load: %w", backtest.ErrData))
	c.RecordError(backtest.ErrConfiguration)
	c.RecordError(backtest.ErrConfiguration)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues("data")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues("configuration")))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	c := New()
	c.ObserveRun("noop", result(), 0.1)

	path := filepath.Join(t.TempDir(), "barsim.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `barsim_runs_total{strategy="noop",symbol="TEST"} 1`)
	assert.Contains(t, string(data), "# TYPE barsim_trade_net_pnl histogram")
}

func TestCollectorsAreIndependent(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	a.ObserveRun("sma", result(), 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.runsTotal.WithLabelValues("TEST", "sma")))
	assert.NotSame(t, a.Registry(), b.Registry())
}
