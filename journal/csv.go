package journal

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	runHeader    = []string{"run_id", "created", "symbol", "strategy", "dataset", "fill_policy", "bars", "trades", "wins", "losses", "skipped", "start_equity", "final_equity", "net_pnl", "fees", "return_pct", "win_rate", "profit_factor", "max_dd", "max_dd_pct", "sharpe", "sortino"}
	tradeHeader  = []string{"trade_id", "run_id", "seq", "symbol", "side", "qty", "entry_price", "exit_price", "entry_time", "exit_time", "pnl", "fees", "net_pnl", "reason"}
	equityHeader = []string{"run_id", "index", "time", "equity"}
)

// CSVJournal writes runs.csv, trades.csv and equity.csv into a directory.
type CSVJournal struct {
	runs, trades, equity *csv.Writer
	files                []*os.File
}

func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSVJournal{}
	open := func(name string, header []string) (*csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.runs, err = open("runs.csv", runHeader); err != nil {
		j.Close()
		return nil, err
	}
	if j.trades, err = open("trades.csv", tradeHeader); err != nil {
		j.Close()
		return nil, err
	}
	if j.equity, err = open("equity.csv", equityHeader); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordRun(r RunRecord) error {
	return writeRow(j.runs, runRow(r))
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return writeRow(j.trades, tradeRow(t))
}

func (j *CSVJournal) RecordEquity(e EquityRecord) error {
	return writeRow(j.equity, equityRow(e))
}

func (j *CSVJournal) Close() error {
	var first error
	for _, w := range []*csv.Writer{j.runs, j.trades, j.equity} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil && first == nil {
			first = err
		}
	}
	for _, f := range j.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WriteTradesCSV writes a trade ledger with a header row.
func WriteTradesCSV(w io.Writer, trades []TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		if err := cw.Write(tradeRow(t)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes an equity curve with a header row.
func WriteEquityCSV(w io.Writer, equity []EquityRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(equityHeader); err != nil {
		return err
	}
	for _, e := range equity {
		if err := cw.Write(equityRow(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeRow(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func runRow(r RunRecord) []string {
	return []string{
		r.RunID,
		r.Created.UTC().Format("2006-01-02T15:04:05Z07:00"),
		r.Symbol,
		r.Strategy,
		r.Dataset,
		r.FillPolicy,
		strconv.Itoa(r.Bars),
		strconv.Itoa(r.Trades),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
		strconv.Itoa(r.Skipped),
		f(r.StartEquity),
		f(r.FinalEquity),
		f(r.NetPnL),
		f(r.Fees),
		f(r.ReturnPct),
		f(r.WinRate),
		f(r.ProfitFactor),
		f(r.MaxDD),
		f(r.MaxDDPct),
		f(r.Sharpe),
		f(r.Sortino),
	}
}

func tradeRow(t TradeRecord) []string {
	return []string{
		t.TradeID,
		t.RunID,
		strconv.Itoa(t.Seq),
		t.Symbol,
		t.Side,
		f(t.Qty),
		f(t.EntryPrice),
		f(t.ExitPrice),
		strconv.FormatInt(t.EntryTime, 10),
		strconv.FormatInt(t.ExitTime, 10),
		f(t.PnL),
		f(t.Fees),
		f(t.NetPnL),
		t.Reason,
	}
}

func equityRow(e EquityRecord) []string {
	return []string{e.RunID, strconv.Itoa(e.Index), strconv.FormatInt(e.Time, 10), f(e.Equity)}
}

// f renders a float with at most 8 decimals and no trailing zeros.
func f(x float64) string {
	switch {
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	case math.IsNaN(x):
		return "nan"
	}
	return decimal.NewFromFloat(x).Round(8).String()
}
