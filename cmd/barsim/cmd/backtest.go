package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/quantlab/barsim/backtest"
	"github.com/quantlab/barsim/config"
	"github.com/quantlab/barsim/internal/monitoring"
	"github.com/quantlab/barsim/journal"
	"github.com/quantlab/barsim/market"
	"github.com/quantlab/barsim/market/data"
	"github.com/quantlab/barsim/market/synthetic"
	"github.com/quantlab/barsim/metrics"
	"github.com/quantlab/barsim/sim"
	"github.com/quantlab/barsim/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay bars through a strategy and report the result",
	Long: `Backtest replays a bar series through a registered strategy.

Bars come from a CSV file (--csv) or the seeded synthetic generator. Settings
are read from --config, then BARSIM_* environment variables, then flags.

Supported strategies:
  - noop: never trades (baseline)
  - buy-once: a single entry on the first bar
  - sma: close vs simple moving average
  - ema-cross: fast/slow EMA crossover
  - orderflow: bid/ask volume imbalance

Examples:
  barsim backtest --strategy ema-cross --fast 10 --slow 30 --bars 2000 --seed 7
  barsim backtest --csv data/eurusd_1h.csv --fill best --db runs.sqlite`,
	RunE: runBacktest,
}

var (
	btConfigPath string
	btTop        int

	btCSV        string
	btBars       int
	btSeed       int64
	btMode       string
	btOrderFlow  bool
	btFrom       string
	btTo         string
	btSymbol     string
	btEquity     float64
	btCommission float64
	btMinFee     float64
	btLeverage   float64
	btATRPeriod  int
	btATRFloor   float64
	btFill       string
	btRisk       float64
	btStopMult   float64
	btTakeMult   float64
	btMinStop    float64

	btStrategy  string
	btFast      int
	btSlow      int
	btWindow    int
	btSignal    string
	btThreshold float64

	btDB      string
	btCSVOut  string
	btXLSX    string
	btOrg     string
	btMetrics string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	f := backtestCmd.Flags()
	f.StringVarP(&btConfigPath, "config", "c", "", "YAML or JSON run configuration")
	f.IntVar(&btTop, "top", 3, "number of best and worst trades to print")

	f.StringVar(&btCSV, "csv", "", "bar CSV file (switches the data source to csv)")
	f.IntVarP(&btBars, "bars", "n", 500, "synthetic: number of bars")
	f.Int64Var(&btSeed, "seed", 42, "synthetic: RNG seed")
	f.StringVar(&btMode, "mode", "mixed", "synthetic: drift mode (up, down, flat, mixed)")
	f.StringVar(&btFrom, "from", "", "first bar time to replay (epoch seconds or date)")
	f.StringVar(&btTo, "to", "", "replay bars before this time")
	f.BoolVar(&btOrderFlow, "orderflow", false, "synthetic: also generate order-flow aggregates")

	f.StringVar(&btSymbol, "symbol", "TEST", "symbol label")
	f.Float64Var(&btEquity, "equity", 100_000, "starting equity")
	f.Float64Var(&btCommission, "commission", 0.0004, "commission rate on notional")
	f.Float64Var(&btMinFee, "min-fee", 0, "minimum fee per fill")
	f.Float64Var(&btLeverage, "leverage", 1, "maximum leverage")
	f.IntVar(&btATRPeriod, "atr-period", 14, "ATR period")
	f.Float64Var(&btATRFloor, "atr-floor", 0, "lower bound on the sizing ATR (0 disables)")
	f.StringVar(&btFill, "fill", "worst", "same-bar stop/take resolution (worst, best)")
	f.Float64Var(&btRisk, "risk", 0.01, "fraction of equity risked per trade")
	f.Float64Var(&btStopMult, "stop-mult", 1.0, "stop distance in ATRs")
	f.Float64Var(&btTakeMult, "take-mult", 2.0, "take distance in ATRs")
	f.Float64Var(&btMinStop, "min-stop", 0.01, "minimum stop distance in price")

	f.StringVarP(&btStrategy, "strategy", "s", "sma", "strategy name")
	f.IntVar(&btFast, "fast", 10, "ema-cross: fast period")
	f.IntVar(&btSlow, "slow", 30, "ema-cross: slow period")
	f.IntVar(&btWindow, "window", 5, "sma: window")
	f.StringVar(&btSignal, "signal", "BUY", "buy-once: BUY or SELL")
	f.Float64Var(&btThreshold, "threshold", 0.6, "orderflow: imbalance threshold")

	f.StringVarP(&btDB, "db", "d", "", "SQLite journal path")
	f.StringVar(&btCSVOut, "csv-out", "", "directory for runs/trades/equity CSV files")
	f.StringVar(&btXLSX, "xlsx", "", "XLSX workbook path")
	f.StringVar(&btOrg, "org", "", "Org report path")
	f.StringVar(&btMetrics, "metrics-file", "", "prometheus textfile path")
}

// loadConfig layers file, environment and changed flags over the defaults.
func loadConfig(path string, flags *pflag.FlagSet) (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, fmt.Errorf("%w: env file: %w", backtest.ErrConfiguration, err)
	}

	cfg := config.Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", backtest.ErrConfiguration, err)
		}
		if cfg, err = config.Parse(raw); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if flags != nil {
		applyFlags(cfg, flags)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, flags *pflag.FlagSet) {
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("csv", func() { cfg.Data.Source, cfg.Data.Path = "csv", btCSV })
	set("bars", func() { cfg.Data.Bars = btBars })
	set("seed", func() { cfg.Data.Seed = btSeed })
	set("mode", func() { cfg.Data.Mode = btMode })
	set("from", func() { cfg.Data.From = btFrom })
	set("to", func() { cfg.Data.To = btTo })
	set("orderflow", func() { cfg.Data.WithOrderFlow = btOrderFlow })

	set("symbol", func() { cfg.Engine.Symbol = btSymbol })
	set("equity", func() { cfg.Engine.StartEquity = btEquity })
	set("commission", func() { cfg.Engine.CommissionRate = btCommission })
	set("min-fee", func() { cfg.Engine.CommissionMinFee = btMinFee })
	set("leverage", func() { cfg.Engine.MaxLeverage = btLeverage })
	set("atr-period", func() { cfg.Engine.ATRPeriod = btATRPeriod })
	set("atr-floor", func() { cfg.Engine.ATRFloor = btATRFloor })
	set("fill", func() { cfg.Engine.FillPolicy = backtest.FillPolicy(btFill) })
	set("risk", func() { cfg.Engine.RiskFraction = btRisk })
	set("stop-mult", func() { cfg.Engine.StopATRMult = btStopMult })
	set("take-mult", func() { cfg.Engine.TakeATRMult = btTakeMult })
	set("min-stop", func() { cfg.Engine.MinStop = btMinStop })

	set("strategy", func() { cfg.Strategy.Name = btStrategy })
	set("fast", func() { cfg.Strategy.Params.Fast = btFast })
	set("slow", func() { cfg.Strategy.Params.Slow = btSlow })
	set("window", func() { cfg.Strategy.Params.Window = btWindow })
	set("signal", func() { cfg.Strategy.Params.Signal = btSignal })
	set("threshold", func() { cfg.Strategy.Params.Threshold = btThreshold })

	set("db", func() { cfg.Journal.DBPath = btDB })
	set("csv-out", func() { cfg.Journal.CSVDir = btCSVOut })
	set("xlsx", func() { cfg.Journal.XLSX = btXLSX })
	set("org", func() { cfg.Journal.OrgPath = btOrg })
	set("metrics-file", func() { cfg.Journal.Metrics = btMetrics })
}

// loadBars returns the bar series and, when requested, synthetic order flow.
func loadBars(d config.DataConfig, strategy string) ([]market.Bar, []market.OrderFlow, error) {
	var bars []market.Bar
	opts := d.SyntheticOptions()

	if d.Source == "csv" {
		var err error
		if bars, err = data.LoadCSV(d.Path); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", backtest.ErrData, err)
		}
	} else {
		bars = synthetic.Generate(opts)
	}

	from, to, err := d.Bounds()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", backtest.ErrConfiguration, err)
	}
	if bars = data.Window(bars, from, to); len(bars) == 0 {
		return nil, nil, fmt.Errorf("%w: %w in [%s, %s)", backtest.ErrData, data.ErrNoBars, d.From, d.To)
	}

	if d.Source == "csv" || (!d.WithOrderFlow && !strategies.NeedsOrderFlow(strategy)) {
		return bars, nil, nil
	}
	flow := synthetic.GenerateOrderFlow(len(bars), synthetic.FlowOptions{
		PriceRef:    bars[0].Open,
		VolumeBase:  opts.VolumeBase,
		VolumeNoise: opts.VolumeNoise,
		Seed:        opts.Seed,
	})
	return bars, flow, nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(btConfigPath, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	mon := monitoring.New()
	res, elapsed, err := execute(cfg, logger)
	if err != nil {
		mon.RecordError(err)
		if cfg.Journal.Metrics != "" {
			_ = mon.WriteTextfile(cfg.Journal.Metrics)
		}
		if backtest.KindOf(err) == backtest.KindUnknown {
			return withCode(ExitEngine, err)
		}
		return err
	}
	mon.ObserveRun(cfg.Strategy.Name, res, elapsed.Seconds())

	sum := metrics.Summarize(res.Trades, res.EquityValues())
	out := cmd.OutOrStdout()
	printSummary(out, cfg, res, sum, elapsed)
	printTopTrades(out, res, btTop)

	if err := writeJournals(cfg, res, logger); err != nil {
		return withCode(ExitReport, err)
	}
	if cfg.Journal.Metrics != "" {
		if err := mon.WriteTextfile(cfg.Journal.Metrics); err != nil {
			return withCode(ExitReport, fmt.Errorf("metrics textfile: %w", err))
		}
	}
	return nil
}

func execute(cfg *config.Config, logger *zap.Logger) (*backtest.Result, time.Duration, error) {
	bars, flow, err := loadBars(cfg.Data, cfg.Strategy.Name)
	if err != nil {
		return nil, 0, err
	}
	logger.Info("bars loaded", zap.String("dataset", cfg.Data.Dataset()), zap.Int("bars", len(bars)), zap.Bool("orderflow", flow != nil))

	strat, err := strategies.New(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", backtest.ErrConfiguration, err)
	}
	engine, err := backtest.New(cfg.Engine, strat, backtest.WithLogger(logger))
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	res, err := engine.Run(bars, flow)
	return res, time.Since(start), err
}

func writeJournals(cfg *config.Config, res *backtest.Result, logger *zap.Logger) error {
	meta := journal.RunMeta{Strategy: cfg.Strategy.Name, Dataset: cfg.Data.Dataset()}
	run, trades, equity, err := journal.Records(meta, res)
	if err != nil {
		return err
	}
	jc := cfg.Journal

	if jc.DBPath != "" {
		j, err := journal.NewSQLite(jc.DBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer j.Close()
		if err := journal.Write(j, run, trades, equity); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		logger.Info("run journaled", zap.String("run_id", run.RunID), zap.String("db", jc.DBPath))
	}

	if jc.CSVDir != "" {
		j, err := journal.NewCSV(jc.CSVDir)
		if err != nil {
			return fmt.Errorf("csv journal: %w", err)
		}
		if err := journal.Write(j, run, trades, equity); err != nil {
			j.Close()
			return fmt.Errorf("csv journal: %w", err)
		}
		if err := j.Close(); err != nil {
			return fmt.Errorf("csv journal: %w", err)
		}
	}

	if jc.XLSX != "" {
		if err := journal.WriteXLSX(jc.XLSX, run, trades, equity); err != nil {
			return fmt.Errorf("xlsx: %w", err)
		}
	}

	if jc.OrgPath != "" {
		if dir := filepath.Dir(jc.OrgPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		if err := journal.WriteOrg(jc.OrgPath, run, trades); err != nil {
			return fmt.Errorf("org: %w", err)
		}
	}
	return nil
}

func printSummary(w io.Writer, cfg *config.Config, res *backtest.Result, sum metrics.Summary, elapsed time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("BACKTEST %s / %s", cfg.Engine.Symbol, cfg.Strategy.Name))
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Dataset", cfg.Data.Dataset()},
		{"Bars", res.Bars},
		{"Fill Policy", string(cfg.Engine.FillPolicy)},
		{"Elapsed", elapsed.Round(time.Microsecond).String()},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Start Equity", fmt.Sprintf("%.2f", res.StartEquity)},
		{"Final Equity", fmt.Sprintf("%.2f", res.FinalEquity)},
		{"Return", fmt.Sprintf("%.2f%%", 100*sum.Return)},
		{"Fees", fmt.Sprintf("%.2f", sum.Fees)},
		{"Max Drawdown", fmt.Sprintf("%.2f (%.2f%%)", sum.Drawdown.Max, 100*sum.Drawdown.MaxPct)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Trades", fmt.Sprintf("%d (%d W / %d L)", sum.Trades, sum.Wins, sum.Losses)},
		{"Signals / Skipped", fmt.Sprintf("%d / %d", res.Signals, res.Skipped)},
		{"Win Rate", fmt.Sprintf("%.2f%%", 100*sum.WinRate)},
		{"Profit Factor", sum.ProfitFactor.String()},
		{"Expectancy", fmt.Sprintf("%.4f", sum.Expectancy)},
		{"Sharpe / Sortino", fmt.Sprintf("%.4f / %.4f", sum.Sharpe, sum.Sortino)},
		{"Streaks W / L", fmt.Sprintf("%d / %d", sum.MaxWinStreak, sum.MaxLossStreak)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 24, Align: text.AlignRight},
	})
	t.Render()
}

func printTopTrades(w io.Writer, res *backtest.Result, n int) {
	if n <= 0 || len(res.Trades) == 0 {
		return
	}
	best, worst := metrics.TopTrades(res.Trades, n)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("TOP TRADES")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"", "Side", "Qty", "Entry", "Exit", "Net P/L", "Reason"})
	add := func(label string, trades []sim.Trade) {
		for _, tr := range trades {
			t.AppendRow(table.Row{label, tr.Side.String(), fmt.Sprintf("%.4f", tr.Qty), fmt.Sprintf("%.5f", tr.EntryPrice), fmt.Sprintf("%.5f", tr.ExitPrice), fmt.Sprintf("%.2f", tr.NetPnL()), string(tr.Reason)})
		}
	}
	add("best", best)
	t.AppendSeparator()
	add("worst", worst)
	t.Render()
}
