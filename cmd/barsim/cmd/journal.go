package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/quantlab/barsim/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the run journal",
	Long: `Query and export runs stored in the SQLite journal.

Subcommands:
  runs    - List recent runs
  show    - Print a run as an Org block
  trades  - List the trades of a run
  trade   - Print one trade as an Org block
  export  - Write a stored run to CSV/XLSX files
  delete  - Remove a run

Examples:
  barsim journal runs --limit 10
  barsim journal show 01HZX...
  barsim journal export 01HZX... --xlsx run.xlsx`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run as an Org block",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "List the trades of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Print one trade as an Org block",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Write a stored run to CSV and XLSX files",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalExport,
}

var journalDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Remove a run and its trades and equity",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDelete,
}

var (
	journalDBPath string
	journalLimit  int
	exportCSVDir  string
	exportXLSX    string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd, journalShowCmd, journalTradesCmd, journalTradeCmd, journalExportCmd, journalDeleteCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./barsim.sqlite", "path to SQLite journal DB")
	journalRunsCmd.Flags().IntVarP(&journalLimit, "limit", "l", 20, "maximum runs to list (0 for all)")
	journalExportCmd.Flags().StringVar(&exportCSVDir, "csv", "", "directory for trades.csv and equity.csv")
	journalExportCmd.Flags().StringVar(&exportXLSX, "xlsx", "", "XLSX workbook path")
}

func openJournal() (*journal.SQLiteJournal, error) {
	if _, err := os.Stat(journalDBPath); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(cmd.Context(), journalLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Run ID", "Created", "Strategy", "Symbol", "Bars", "Trades", "Return %", "Max DD %", "PF"})
	for _, r := range runs {
		pf := fmt.Sprintf("%.2f", r.ProfitFactor)
		if r.Infinite() {
			pf = "inf"
		}
		t.AppendRow(table.Row{
			r.RunID, r.Created.Format("2006-01-02 15:04"), r.Strategy, r.Symbol, r.Bars, r.Trades,
			fmt.Sprintf("%.2f", r.ReturnPct), fmt.Sprintf("%.2f", r.MaxDDPct), pf,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "runs", len(runs)})
	t.Render()
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	org, err := j.ExportRunOrg(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), org)
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := cmd.Context()
	if _, err := j.GetRun(ctx, args[0]); err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	trades, err := j.ListTradesByRunID(ctx, args[0])
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Trade ID", "Side", "Qty", "Entry", "Exit", "Net P/L", "Reason"})
	var net float64
	for _, tr := range trades {
		net += tr.NetPnL
		t.AppendRow(table.Row{
			tr.Seq, tr.TradeID, tr.Side, fmt.Sprintf("%.4f", tr.Qty),
			fmt.Sprintf("%.5f", tr.EntryPrice), fmt.Sprintf("%.5f", tr.ExitPrice),
			fmt.Sprintf("%.2f", tr.NetPnL), tr.Reason,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", fmt.Sprintf("%.2f", net), ""})
	t.Render()
	return nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetTrade(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func runJournalExport(cmd *cobra.Command, args []string) error {
	if exportCSVDir == "" && exportXLSX == "" {
		return fmt.Errorf("nothing to export: pass --csv and/or --xlsx")
	}

	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := cmd.Context()
	run, trades, equity, err := loadRun(ctx, j, args[0])
	if err != nil {
		return err
	}

	if exportCSVDir != "" {
		if err := exportCSV(exportCSVDir, trades, equity); err != nil {
			return withCode(ExitReport, err)
		}
	}
	if exportXLSX != "" {
		if err := journal.WriteXLSX(exportXLSX, run, trades, equity); err != nil {
			return withCode(ExitReport, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported run %s (%d trades, %d equity points)\n", run.RunID, len(trades), len(equity))
	return nil
}

func runJournalDelete(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := cmd.Context()
	if _, err := j.GetRun(ctx, args[0]); err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if err := j.DeleteRun(ctx, args[0]); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted run %s\n", args[0])
	return nil
}

func loadRun(ctx context.Context, j *journal.SQLiteJournal, runID string) (journal.RunRecord, []journal.TradeRecord, []journal.EquityRecord, error) {
	run, err := j.GetRun(ctx, runID)
	if err != nil {
		return run, nil, nil, fmt.Errorf("get run: %w", err)
	}
	trades, err := j.ListTradesByRunID(ctx, runID)
	if err != nil {
		return run, nil, nil, fmt.Errorf("list trades: %w", err)
	}
	equity, err := j.ListEquityByRunID(ctx, runID)
	if err != nil {
		return run, nil, nil, fmt.Errorf("list equity: %w", err)
	}
	return run, trades, equity, nil
}

func exportCSV(dir string, trades []journal.TradeRecord, equity []journal.EquityRecord) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tf, err := os.Create(filepath.Join(dir, "trades.csv"))
	if err != nil {
		return err
	}
	defer tf.Close()
	if err := journal.WriteTradesCSV(tf, trades); err != nil {
		return err
	}

	ef, err := os.Create(filepath.Join(dir, "equity.csv"))
	if err != nil {
		return err
	}
	defer ef.Close()
	return journal.WriteEquityCSV(ef, equity)
}
