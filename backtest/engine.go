// Package backtest replays bars through a strategy against a single-position
// broker simulator.
//
// Per bar, in this order:
//  1. fill a pending entry at the bar's open
//  2. resolve stop/take against the bar's high/low (fill policy on ties)
//  3. update ATR with the bar
//  4. ask the strategy for a decision on the bar's close
//  5. when flat, size the decision and queue it for the next bar's open
//  6. record equity
//
// A position still open after the last bar is closed at the last close
// with reason EOD.
package backtest

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/quantlab/barsim/indicators"
	"github.com/quantlab/barsim/market"
	"github.com/quantlab/barsim/risk"
	"github.com/quantlab/barsim/sim"
)

// Option customises an Engine.
type Option func(*Engine)

// WithSizer replaces the default ATR sizer.
func WithSizer(s risk.Sizer) Option {
	return func(e *Engine) {
		if s != nil {
			e.sizer = s
		}
	}
}

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine runs backtests for one configuration and strategy. Every Run owns
// fresh broker and estimator state.
type Engine struct {
	cfg   Config
	strat Strategy
	sizer risk.Sizer
	log   *zap.Logger
}

func New(cfg Config, strat Strategy, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strat == nil {
		return nil, fmt.Errorf("%w: strategy is required", ErrConfiguration)
	}
	cfg.FillPolicy, _ = ParseFillPolicy(string(cfg.FillPolicy))

	e := &Engine{
		cfg:   cfg,
		strat: strat,
		sizer: risk.ATRSizer{},
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// pendingEntry is a sized decision waiting for the next bar's open.
type pendingEntry struct {
	side market.Side
	qty  float64
	stop float64
	take float64
}

// run holds the mutable state of one Run call.
type run struct {
	*Engine
	broker  *sim.Broker
	atr     *indicators.ATR
	pending *pendingEntry
	res     *Result
}

// Run replays bars. flow is optional; when set it must have one entry per
// bar. Margin shortfalls skip the trade; ErrInvalidState aborts the run.
func (e *Engine) Run(bars []market.Bar, flow []market.OrderFlow) (*Result, error) {
	if err := market.ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrData, err)
	}
	if flow != nil && len(flow) != len(bars) {
		return nil, fmt.Errorf("%w: order-flow has %d rows for %d bars", ErrData, len(flow), len(bars))
	}

	broker, err := sim.NewBroker(e.cfg.brokerConfig())
	if err != nil {
		return nil, err
	}
	r := &run{
		Engine: e,
		broker: broker,
		atr:    indicators.NewATR(e.cfg.ATRPeriod),
		res: &Result{
			Config:      e.cfg,
			StartEquity: e.cfg.StartEquity,
			Equity:      make([]EquityPoint, 0, len(bars)+2),
		},
	}

	if rs, ok := e.strat.(Resetter); ok {
		rs.Reset()
	}

	var t0 int64
	if len(bars) > 0 {
		t0 = bars[0].Time
	}
	r.record(-1, t0)

	for i := range bars {
		var of *market.OrderFlow
		if flow != nil {
			of = &flow[i]
		}
		if err := r.step(bars, i, of); err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
	}

	if len(bars) > 0 && broker.HasPosition() {
		last := bars[len(bars)-1]
		if err := r.exit(last.Close, last.Time, sim.ExitEOD, len(bars)-1); err != nil {
			return nil, fmt.Errorf("eod: %w", err)
		}
	}
	var tEnd int64
	if len(bars) > 0 {
		tEnd = bars[len(bars)-1].Time
	}
	r.record(len(bars), tEnd)

	res := r.res
	res.Trades = broker.Trades()
	res.FinalEquity = broker.Equity()
	res.Cash = broker.Cash()
	res.Bars = len(bars)

	e.log.Info("backtest finished",
		zap.String("symbol", e.cfg.Symbol),
		zap.Int("bars", res.Bars),
		zap.Int("trades", len(res.Trades)),
		zap.Int("skipped", res.Skipped),
		zap.Float64("final_equity", res.FinalEquity),
	)
	return res, nil
}

func (r *run) step(bars []market.Bar, i int, of *market.OrderFlow) error {
	b := bars[i]

	// 1) pending entry fills at this bar's open
	if r.pending != nil && !r.broker.HasPosition() {
		if err := r.fill(b, i); err != nil {
			return err
		}
	}

	// 2) intrabar exits
	if pos, ok := r.broker.Position(); ok {
		if reason, px, hit := r.checkExit(pos, b); hit {
			if err := r.exit(px, b.Time, reason, i); err != nil {
				return err
			}
		}
	}

	// 3) ATR on the current bar
	atr, atrOK := r.atr.Update(b)

	// 4) decision on close
	sig := r.strat.Decide(Snapshot{
		Symbol:     r.cfg.Symbol,
		Index:      i,
		Time:       b.Time,
		Price:      b.Close,
		Bar:        b,
		ATR:        atr,
		ATROK:      atrOK,
		OrderFlow:  of,
		InPosition: r.broker.HasPosition(),
		Pending:    r.pending != nil,
	})

	// 5) queue an entry for the next bar
	if sig.Actionable() {
		r.res.Signals++
		r.queue(sig, bars, i, atr, atrOK)
	}

	// 6) equity after settlement
	r.record(i, b.Time)
	return nil
}

func (r *run) fill(b market.Bar, i int) error {
	p := r.pending
	r.pending = nil

	err := r.broker.Open(sim.OpenRequest{
		Symbol: r.cfg.Symbol,
		Side:   p.side,
		Price:  b.Open,
		Qty:    p.qty,
		Stop:   p.stop,
		Take:   p.take,
		Time:   b.Time,
	})
	switch {
	case err == nil:
		r.res.Entries++
		r.log.Debug("entry filled",
			zap.Int("bar", i),
			zap.Stringer("side", p.side),
			zap.Float64("price", b.Open),
			zap.Float64("qty", p.qty),
			zap.Float64("stop", p.stop),
			zap.Float64("take", p.take),
		)
		return nil
	case errors.Is(err, sim.ErrInsufficientMargin):
		r.res.Skipped++
		r.log.Debug("entry dropped", zap.Int("bar", i), zap.Error(err))
		return nil
	default:
		return err
	}
}

// checkExit evaluates stop/take on the bar's range. When both are touched
// the fill policy decides.
func (r *run) checkExit(p sim.Position, b market.Bar) (sim.ExitReason, float64, bool) {
	stopHit, takeHit := p.Triggers(b)
	switch {
	case stopHit && takeHit:
		if r.cfg.FillPolicy == FillBest {
			return sim.ExitTake, p.Take, true
		}
		return sim.ExitStop, p.Stop, true
	case stopHit:
		return sim.ExitStop, p.Stop, true
	case takeHit:
		return sim.ExitTake, p.Take, true
	}
	return "", 0, false
}

func (r *run) exit(px float64, ts int64, reason sim.ExitReason, i int) error {
	t, err := r.broker.Close(px, ts, reason)
	if err != nil {
		return err
	}
	r.log.Debug("position closed",
		zap.Int("bar", i),
		zap.String("reason", string(reason)),
		zap.Float64("price", px),
		zap.Float64("pnl", t.PnL),
		zap.Float64("fees", t.Fees),
	)
	return nil
}

func (r *run) queue(sig market.Signal, bars []market.Bar, i int, atr float64, atrOK bool) {
	if r.broker.HasPosition() || r.pending != nil {
		return
	}
	if i+1 >= len(bars) {
		r.res.Skipped++
		return
	}

	sizingATR := atr
	if !atrOK {
		sizingATR = 0
	}
	if r.cfg.ATRFloor > 0 && sizingATR < r.cfg.ATRFloor {
		sizingATR = r.cfg.ATRFloor
	}

	b := bars[i]
	plan := r.sizer.Calculate(risk.Request{
		Side:         sig.Side(),
		EntryPrice:   b.Close,
		ATR:          sizingATR,
		Equity:       r.broker.Equity(),
		RiskFraction: r.cfg.RiskFraction,
		StopATRMult:  r.cfg.StopATRMult,
		TakeATRMult:  r.cfg.TakeATRMult,
		MinStop:      r.cfg.MinStop,
	})

	nextOpen := bars[i+1].Open
	qty := risk.CapToMargin(plan.Qty, r.broker.Cash(), r.cfg.MaxLeverage, nextOpen)
	if !(qty > 0) {
		r.res.Skipped++
		r.log.Debug("signal skipped",
			zap.Int("bar", i),
			zap.Stringer("signal", sig),
			zap.Float64("planned_qty", plan.Qty),
		)
		return
	}

	r.pending = &pendingEntry{
		side: sig.Side(),
		qty:  qty,
		stop: plan.Stop,
		take: plan.Take,
	}
}

func (r *run) record(i int, ts int64) {
	r.res.Equity = append(r.res.Equity, EquityPoint{
		Index:  i,
		Time:   ts,
		Equity: r.broker.Equity(),
	})
}
