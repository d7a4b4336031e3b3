// Package journal persists backtest runs: run summaries, the trade ledger and
// the equity curve.
package journal

import (
	"fmt"
	"math"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantlab/barsim/backtest"
	"github.com/quantlab/barsim/internal/id"
	"github.com/quantlab/barsim/metrics"
)

// RunRecord is one backtest run with its headline statistics.
type RunRecord struct {
	RunID    string
	Created  time.Time
	Symbol   string
	Strategy string
	Dataset  string // file path or "synthetic:seed=N"

	FillPolicy string
	Config     []byte // engine config as YAML

	Bars    int
	Trades  int
	Wins    int
	Losses  int
	Skipped int

	StartEquity float64
	FinalEquity float64
	NetPnL      float64
	Fees        float64
	ReturnPct   float64
	WinRate     float64

	// ProfitFactor is +Inf when the run had profits and no losses.
	ProfitFactor float64
	MaxDD        float64
	MaxDDPct     float64
	Sharpe       float64
	Sortino      float64

	Notes []string
}

// TradeRecord is one closed trade of a run.
type TradeRecord struct {
	TradeID    string
	RunID      string
	Seq        int
	Symbol     string
	Side       string
	Qty        float64
	EntryPrice float64
	ExitPrice  float64
	EntryTime  int64
	ExitTime   int64
	PnL        float64
	Fees       float64
	NetPnL     float64
	Reason     string
}

// EquityRecord is one equity curve point of a run.
type EquityRecord struct {
	RunID  string
	Index  int
	Time   int64
	Equity float64
}

// Journal is a sink for run data.
type Journal interface {
	RecordRun(RunRecord) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquityRecord) error
	Close() error
}

// batcher is implemented by sinks that can store a whole run atomically.
type batcher interface {
	RecordBatch(RunRecord, []TradeRecord, []EquityRecord) error
}

// RunMeta describes where a result came from.
type RunMeta struct {
	Strategy string
	Dataset  string
	Created  time.Time // zero means now
	Notes    []string
}

// Records converts a backtest result into journal rows under a new run ID.
func Records(meta RunMeta, res *backtest.Result) (RunRecord, []TradeRecord, []EquityRecord, error) {
	created := meta.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	runID := id.NewAt(created)

	cfg, err := yaml.Marshal(res.Config)
	if err != nil {
		return RunRecord{}, nil, nil, fmt.Errorf("encode config: %w", err)
	}
	sum := metrics.Summarize(res.Trades, res.EquityValues())

	run := RunRecord{
		RunID:        runID,
		Created:      created,
		Symbol:       res.Config.Symbol,
		Strategy:     meta.Strategy,
		Dataset:      meta.Dataset,
		FillPolicy:   string(res.Config.FillPolicy),
		Config:       cfg,
		Bars:         res.Bars,
		Trades:       sum.Trades,
		Wins:         sum.Wins,
		Losses:       sum.Losses,
		Skipped:      res.Skipped,
		StartEquity:  res.StartEquity,
		FinalEquity:  res.FinalEquity,
		NetPnL:       res.FinalEquity - res.StartEquity,
		Fees:         sum.Fees,
		ReturnPct:    100 * sum.Return,
		WinRate:      sum.WinRate,
		ProfitFactor: sum.ProfitFactor.Float(),
		MaxDD:        sum.Drawdown.Max,
		MaxDDPct:     100 * sum.Drawdown.MaxPct,
		Sharpe:       sum.Sharpe,
		Sortino:      sum.Sortino,
		Notes:        meta.Notes,
	}

	trades := make([]TradeRecord, len(res.Trades))
	for i, t := range res.Trades {
		trades[i] = TradeRecord{
			TradeID:    id.NewAt(created),
			RunID:      runID,
			Seq:        i + 1,
			Symbol:     t.Symbol,
			Side:       t.Side.String(),
			Qty:        t.Qty,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			PnL:        t.PnL,
			Fees:       t.Fees,
			NetPnL:     t.NetPnL(),
			Reason:     string(t.Reason),
		}
	}

	equity := make([]EquityRecord, len(res.Equity))
	for i, p := range res.Equity {
		equity[i] = EquityRecord{RunID: runID, Index: p.Index, Time: p.Time, Equity: p.Equity}
	}
	return run, trades, equity, nil
}

// RecordResult writes a whole run to j and returns the run ID.
func RecordResult(j Journal, meta RunMeta, res *backtest.Result) (string, error) {
	run, trades, equity, err := Records(meta, res)
	if err != nil {
		return "", err
	}
	if err := Write(j, run, trades, equity); err != nil {
		return "", err
	}
	return run.RunID, nil
}

// Write stores prepared rows, in one batch when j supports it.
func Write(j Journal, run RunRecord, trades []TradeRecord, equity []EquityRecord) error {
	if b, ok := j.(batcher); ok {
		return b.RecordBatch(run, trades, equity)
	}

	if err := j.RecordRun(run); err != nil {
		return err
	}
	for _, t := range trades {
		if err := j.RecordTrade(t); err != nil {
			return err
		}
	}
	for _, e := range equity {
		if err := j.RecordEquity(e); err != nil {
			return err
		}
	}
	return nil
}

// Infinite reports whether the run's profit factor is unbounded.
func (r RunRecord) Infinite() bool { return math.IsInf(r.ProfitFactor, 1) }
