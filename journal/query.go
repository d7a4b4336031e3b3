package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNotFound is returned when a run or trade does not exist.
var ErrNotFound = errors.New("not found")

const runColumns = `run_id, created, symbol, strategy, dataset, fill_policy, config,
	bars, trades, wins, losses, skipped,
	start_equity, final_equity, net_pnl, fees, return_pct, win_rate,
	profit_factor, max_dd, max_dd_pct, sharpe, sortino`

const tradeColumns = `trade_id, run_id, seq, symbol, side, qty, entry_price, exit_price,
	entry_time, exit_time, pnl, fees, net_pnl, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRecord, error) {
	var (
		r       RunRecord
		created string
		pf      sql.NullFloat64
	)
	err := s.Scan(
		&r.RunID, &created, &r.Symbol, &r.Strategy, &r.Dataset, &r.FillPolicy, &r.Config,
		&r.Bars, &r.Trades, &r.Wins, &r.Losses, &r.Skipped,
		&r.StartEquity, &r.FinalEquity, &r.NetPnL, &r.Fees, &r.ReturnPct, &r.WinRate,
		&pf, &r.MaxDD, &r.MaxDDPct, &r.Sharpe, &r.Sortino,
	)
	if err != nil {
		return RunRecord{}, err
	}
	if r.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: created: %w", r.RunID, err)
	}
	r.ProfitFactor = math.Inf(1)
	if pf.Valid {
		r.ProfitFactor = pf.Float64
	}
	return r, nil
}

func scanTrade(s scanner) (TradeRecord, error) {
	var t TradeRecord
	err := s.Scan(
		&t.TradeID, &t.RunID, &t.Seq, &t.Symbol, &t.Side, &t.Qty, &t.EntryPrice, &t.ExitPrice,
		&t.EntryTime, &t.ExitTime, &t.PnL, &t.Fees, &t.NetPnL, &t.Reason,
	)
	return t, err
}

// GetRun returns a single run by ID.
func (j *SQLiteJournal) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return r, err
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (j *SQLiteJournal) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY created DESC, run_id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetTrade returns a single trade record by ID.
func (j *SQLiteJournal) GetTrade(ctx context.Context, tradeID string) (TradeRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TradeRecord{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
	}
	return t, err
}

// ListTradesByRunID returns a run's trades in close order.
func (j *SQLiteJournal) ListTradesByRunID(ctx context.Context, runID string) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListEquityByRunID returns a run's equity curve in bar order.
func (j *SQLiteJournal) ListEquityByRunID(ctx context.Context, runID string) ([]EquityRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, idx, time, equity
		FROM equity
		WHERE run_id = ?
		ORDER BY idx ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityRecord
	for rows.Next() {
		var e EquityRecord
		if err := rows.Scan(&e.RunID, &e.Index, &e.Time, &e.Equity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ExportRunOrg loads a run and returns it as an Org block.
func (j *SQLiteJournal) ExportRunOrg(ctx context.Context, runID string) (string, error) {
	r, err := j.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	trades, err := j.ListTradesByRunID(ctx, runID)
	if err != nil {
		return "", err
	}
	return FormatRunOrg(r, trades)
}
