package journal

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

const insertRun = `
	INSERT INTO runs
	(run_id, created, symbol, strategy, dataset, fill_policy, config,
	 bars, trades, wins, losses, skipped,
	 start_equity, final_equity, net_pnl, fees, return_pct, win_rate,
	 profit_factor, max_dd, max_dd_pct, sharpe, sortino)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertTrade = `
	INSERT INTO trades
	(trade_id, run_id, seq, symbol, side, qty, entry_price, exit_price,
	 entry_time, exit_time, pnl, fees, net_pnl, reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertEquity = `
	INSERT INTO equity (run_id, idx, time, equity)
	VALUES (?, ?, ?, ?)`

func recordRun(x execer, r RunRecord) error {
	// an infinite profit factor is stored as NULL
	pf := sql.NullFloat64{Float64: r.ProfitFactor, Valid: !math.IsInf(r.ProfitFactor, 0) && !math.IsNaN(r.ProfitFactor)}
	_, err := x.Exec(insertRun,
		r.RunID, r.Created.UTC().Format(time.RFC3339Nano), r.Symbol, r.Strategy, r.Dataset, r.FillPolicy, r.Config,
		r.Bars, r.Trades, r.Wins, r.Losses, r.Skipped,
		r.StartEquity, r.FinalEquity, r.NetPnL, r.Fees, r.ReturnPct, r.WinRate,
		pf, r.MaxDD, r.MaxDDPct, r.Sharpe, r.Sortino,
	)
	return err
}

func recordTrade(x execer, t TradeRecord) error {
	_, err := x.Exec(insertTrade,
		t.TradeID, t.RunID, t.Seq, t.Symbol, t.Side, t.Qty, t.EntryPrice, t.ExitPrice,
		t.EntryTime, t.ExitTime, t.PnL, t.Fees, t.NetPnL, t.Reason,
	)
	return err
}

func recordEquity(x execer, e EquityRecord) error {
	_, err := x.Exec(insertEquity, e.RunID, e.Index, e.Time, e.Equity)
	return err
}

func (j *SQLiteJournal) RecordRun(r RunRecord) error       { return recordRun(j.db, r) }
func (j *SQLiteJournal) RecordTrade(t TradeRecord) error   { return recordTrade(j.db, t) }
func (j *SQLiteJournal) RecordEquity(e EquityRecord) error { return recordEquity(j.db, e) }

// RecordBatch stores a run with its trades and equity in one transaction.
func (j *SQLiteJournal) RecordBatch(r RunRecord, trades []TradeRecord, equity []EquityRecord) (err error) {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = recordRun(tx, r); err != nil {
		return fmt.Errorf("run %s: %w", r.RunID, err)
	}
	for _, t := range trades {
		if err = recordTrade(tx, t); err != nil {
			return fmt.Errorf("trade %d: %w", t.Seq, err)
		}
	}
	for _, e := range equity {
		if err = recordEquity(tx, e); err != nil {
			return fmt.Errorf("equity %d: %w", e.Index, err)
		}
	}
	return tx.Commit()
}

// DeleteRun removes a run and everything recorded under it.
func (j *SQLiteJournal) DeleteRun(ctx context.Context, runID string) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, table := range []string{"equity", "trades", "runs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", runID); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
