package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/barsim/market"
)

func newBroker(t *testing.T, cfg BrokerConfig) *Broker {
	t.Helper()
	b, err := NewBroker(cfg)
	require.NoError(t, err)
	return b
}

func defaultCfg() BrokerConfig {
	return BrokerConfig{
		StartEquity: 10000,
		Commission:  Commission{Rate: 0.0004},
		MaxLeverage: 1,
	}
}

func TestNewBrokerValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mut  func(*BrokerConfig)
	}{
		{"zero leverage", func(c *BrokerConfig) { c.MaxLeverage = 0 }},
		{"negative leverage", func(c *BrokerConfig) { c.MaxLeverage = -2 }},
		{"negative rate", func(c *BrokerConfig) { c.Commission.Rate = -0.001 }},
		{"negative min fee", func(c *BrokerConfig) { c.Commission.MinFee = -1 }},
		{"zero equity", func(c *BrokerConfig) { c.StartEquity = 0 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultCfg()
			tt.mut(&cfg)
			_, err := NewBroker(cfg)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestRoundTripLong(t *testing.T) {
	t.Parallel()

	b := newBroker(t, defaultCfg())
	require.NoError(t, b.Open(OpenRequest{Symbol: "X", Side: market.Long, Price: 100, Qty: 10, Stop: 99, Take: 101, Time: 2}))

	pos, ok := b.Position()
	require.True(t, ok)
	assert.InDelta(t, 0.4, pos.EntryFee, 1e-12)
	assert.InDelta(t, 1000.0, b.UsedMargin(), 1e-12)
	assert.InDelta(t, 9999.6, b.Cash(), 1e-9)
	assert.InDelta(t, 9999.6, b.Equity(), 1e-9)

	tr, err := b.Close(101, 3, ExitTake)
	require.NoError(t, err)

	assert.Equal(t, ExitTake, tr.Reason)
	assert.InDelta(t, 10.0, tr.PnL, 1e-9)
	assert.InDelta(t, 0.804, tr.Fees, 1e-12)
	assert.InDelta(t, 10009.196, b.Equity(), 1e-9)
	assert.InDelta(t, 10009.196, b.Cash(), 1e-9)
	assert.Zero(t, b.UsedMargin())
	assert.False(t, b.HasPosition())
	assert.Equal(t, int64(2), tr.EntryTime)
	assert.Equal(t, int64(3), tr.ExitTime)
}

func TestRoundTripCashDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		side        market.Side
		entry, exit float64
		qty         float64
		comm        Commission
	}{
		{"long win", market.Long, 100, 110, 3, Commission{Rate: 0.001}},
		{"long loss", market.Long, 100, 95, 7.5, Commission{Rate: 0.0004}},
		{"short win", market.Short, 50, 45, 20, Commission{Rate: 0.0002, MinFee: 1}},
		{"short loss", market.Short, 50, 52.5, 20, Commission{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultCfg()
			cfg.Commission = tt.comm
			b := newBroker(t, cfg)

			cash0, eq0 := b.Cash(), b.Equity()
			require.NoError(t, b.Open(OpenRequest{Side: tt.side, Price: tt.entry, Qty: tt.qty}))
			entryFee := tt.comm.Fee(tt.entry * tt.qty)

			tr, err := b.Close(tt.exit, 0, ExitStop)
			require.NoError(t, err)
			exitFee := tt.comm.Fee(tt.exit * tt.qty)

			want := tr.PnL - entryFee - exitFee
			assert.InDelta(t, want, b.Cash()-cash0, 1e-9)
			assert.InDelta(t, want, b.Equity()-eq0, 1e-9)
			assert.InDelta(t, entryFee+exitFee, tr.Fees, 1e-12)
			assert.InDelta(t, want, tr.NetPnL(), 1e-9)

			gross := (tt.exit - tt.entry) * tt.qty
			if tt.side == market.Short {
				gross = -gross
			}
			assert.InDelta(t, gross, tr.PnL, 1e-9)
		})
	}
}

func TestOpenInvalidState(t *testing.T) {
	t.Parallel()

	b := newBroker(t, defaultCfg())

	err := b.Open(OpenRequest{Side: market.Long, Price: 100, Qty: 0})
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, b.Open(OpenRequest{Side: market.Long, Price: 100, Qty: 1}))
	err = b.Open(OpenRequest{Side: market.Short, Price: 100, Qty: 1})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Len(t, b.Trades(), 0)
}

func TestCloseWhenFlat(t *testing.T) {
	t.Parallel()

	b := newBroker(t, defaultCfg())
	_, err := b.Close(100, 0, ExitEOD)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestOpenInsufficientMargin(t *testing.T) {
	t.Parallel()

	b := newBroker(t, defaultCfg())
	err := b.Open(OpenRequest{Side: market.Long, Price: 100, Qty: 101})
	assert.ErrorIs(t, err, ErrInsufficientMargin)

	// state untouched
	assert.False(t, b.HasPosition())
	assert.Equal(t, 10000.0, b.Cash())
	assert.Equal(t, 10000.0, b.Equity())

	cfg := defaultCfg()
	cfg.MaxLeverage = 5
	lev := newBroker(t, cfg)
	assert.NoError(t, lev.Open(OpenRequest{Side: market.Long, Price: 100, Qty: 400}))
	assert.InDelta(t, 8000.0, lev.UsedMargin(), 1e-9)
}

func TestCommissionMinFee(t *testing.T) {
	t.Parallel()

	c := Commission{Rate: 0.0004, MinFee: 1}
	assert.Equal(t, 1.0, c.Fee(100))
	assert.InDelta(t, 4.0, c.Fee(10000), 1e-12)
	assert.InDelta(t, 4.0, c.Fee(-10000), 1e-12)
	assert.Zero(t, Commission{}.Fee(1000))

	cfg := defaultCfg()
	cfg.Commission = c
	b := newBroker(t, cfg)
	require.NoError(t, b.Open(OpenRequest{Side: market.Long, Price: 10, Qty: 1}))
	tr, err := b.Close(10, 0, ExitEOD)
	require.NoError(t, err)
	assert.Equal(t, 2.0, tr.Fees)
	assert.Equal(t, 9998.0, b.Equity())
}

func TestTradesIsACopy(t *testing.T) {
	t.Parallel()

	b := newBroker(t, defaultCfg())
	require.NoError(t, b.Open(OpenRequest{Side: market.Long, Price: 100, Qty: 1}))
	_, err := b.Close(100, 0, ExitEOD)
	require.NoError(t, err)

	got := b.Trades()
	got[0].PnL = 999
	assert.Zero(t, b.Trades()[0].PnL)
}

func TestPositionTriggers(t *testing.T) {
	t.Parallel()

	long := Position{Side: market.Long, Stop: 99, Take: 101}
	short := Position{Side: market.Short, Stop: 101, Take: 99}

	tests := []struct {
		name       string
		pos        Position
		bar        market.Bar
		stop, take bool
	}{
		{"long none", long, market.Bar{High: 100.5, Low: 99.5}, false, false},
		{"long stop", long, market.Bar{High: 100.5, Low: 99}, true, false},
		{"long take", long, market.Bar{High: 101, Low: 99.5}, false, true},
		{"long both", long, market.Bar{High: 102, Low: 98}, true, true},
		{"short stop", short, market.Bar{High: 101, Low: 99.5}, true, false},
		{"short take", short, market.Bar{High: 100.5, Low: 99}, false, true},
		{"short both", short, market.Bar{High: 102, Low: 98}, true, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, k := tt.pos.Triggers(tt.bar)
			assert.Equal(t, tt.stop, s)
			assert.Equal(t, tt.take, k)
		})
	}
}

func TestParseExitReason(t *testing.T) {
	t.Parallel()

	r, err := ParseExitReason("take")
	require.NoError(t, err)
	assert.Equal(t, ExitTake, r)

	_, err = ParseExitReason("margin call")
	assert.Error(t, err)
}
