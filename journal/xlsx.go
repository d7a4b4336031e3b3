package journal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	tradesSheet  = "Trades"
	equitySheet  = "Equity"
)

type xlsxStyles struct {
	header int
	money  int
	price  int
}

// WriteXLSX writes a run workbook with Summary, Trades and Equity sheets.
func WriteXLSX(path string, r RunRecord, trades []TradeRecord, equity []EquityRecord) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), summarySheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(tradesSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(equitySheet); err != nil {
		return err
	}

	st, err := newXLSXStyles(fx)
	if err != nil {
		return err
	}

	if err := writeSummarySheet(fx, r, st); err != nil {
		return err
	}
	if err := writeTradesSheet(fx, trades, st); err != nil {
		return err
	}
	if err := writeEquitySheet(fx, equity, st); err != nil {
		return err
	}
	return fx.SaveAs(path)
}

func newXLSXStyles(fx *excelize.File) (xlsxStyles, error) {
	var st xlsxStyles
	var err error

	st.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return st, err
	}

	st.money, err = fx.NewStyle(&excelize.Style{
		NumFmt:    4, // #,##0.00
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return st, err
	}

	fmtPrice := "0.00000"
	st.price, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: &fmtPrice,
		Alignment:    &excelize.Alignment{Horizontal: "right"},
	})
	return st, err
}

func writeHeader(fx *excelize.File, sheet string, cols []string, st xlsxStyles) error {
	for i, h := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(cols), 1)
	if err := fx.SetCellStyle(sheet, "A1", last, st.header); err != nil {
		return err
	}
	return fx.SetPanes(sheet, &excelize.Panes{Freeze: true, Split: false, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeRowValues(fx *excelize.File, sheet string, row int, vals []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return fx.SetSheetRow(sheet, cell, &vals)
}

func writeSummarySheet(fx *excelize.File, r RunRecord, st xlsxStyles) error {
	if err := writeHeader(fx, summarySheet, []string{"Metric", "Value"}, st); err != nil {
		return err
	}
	pf := any(r.ProfitFactor)
	if r.Infinite() {
		pf = "inf"
	}
	rows := [][]any{
		{"Run ID", r.RunID},
		{"Strategy", r.Strategy},
		{"Symbol", r.Symbol},
		{"Dataset", r.Dataset},
		{"Fill Policy", r.FillPolicy},
		{"Bars", r.Bars},
		{"Trades", r.Trades},
		{"Wins", r.Wins},
		{"Losses", r.Losses},
		{"Skipped", r.Skipped},
		{"Start Equity", r.StartEquity},
		{"Final Equity", r.FinalEquity},
		{"Net P/L", r.NetPnL},
		{"Fees", r.Fees},
		{"Return %", r.ReturnPct},
		{"Win Rate", r.WinRate},
		{"Profit Factor", pf},
		{"Max Drawdown", r.MaxDD},
		{"Max Drawdown %", r.MaxDDPct},
		{"Sharpe", r.Sharpe},
		{"Sortino", r.Sortino},
	}
	for i, row := range rows {
		if err := writeRowValues(fx, summarySheet, i+2, row); err != nil {
			return err
		}
	}
	if err := fx.SetCellStyle(summarySheet, "B12", "B15", st.money); err != nil {
		return err
	}
	return fx.SetColWidth(summarySheet, "A", "B", 22)
}

func writeTradesSheet(fx *excelize.File, trades []TradeRecord, st xlsxStyles) error {
	cols := []string{"#", "Side", "Qty", "Entry", "Exit", "Entry Time", "Exit Time", "P/L", "Fees", "Net P/L", "Reason"}
	if err := writeHeader(fx, tradesSheet, cols, st); err != nil {
		return err
	}
	for i, t := range trades {
		row := []any{t.Seq, t.Side, t.Qty, t.EntryPrice, t.ExitPrice, t.EntryTime, t.ExitTime, t.PnL, t.Fees, t.NetPnL, t.Reason}
		if err := writeRowValues(fx, tradesSheet, i+2, row); err != nil {
			return err
		}
	}
	if n := len(trades); n > 0 {
		last := n + 1
		if err := fx.SetCellStyle(tradesSheet, "D2", fmt.Sprintf("E%d", last), st.price); err != nil {
			return err
		}
		if err := fx.SetCellStyle(tradesSheet, "H2", fmt.Sprintf("J%d", last), st.money); err != nil {
			return err
		}
	}
	return fx.SetColWidth(tradesSheet, "A", "K", 14)
}

func writeEquitySheet(fx *excelize.File, equity []EquityRecord, st xlsxStyles) error {
	if err := writeHeader(fx, equitySheet, []string{"Index", "Time", "Equity"}, st); err != nil {
		return err
	}
	for i, e := range equity {
		if err := writeRowValues(fx, equitySheet, i+2, []any{e.Index, e.Time, e.Equity}); err != nil {
			return err
		}
	}
	if n := len(equity); n > 0 {
		if err := fx.SetCellStyle(equitySheet, "C2", fmt.Sprintf("C%d", n+1), st.money); err != nil {
			return err
		}
	}
	return fx.SetColWidth(equitySheet, "A", "C", 16)
}
