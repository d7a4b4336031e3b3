package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantlab/barsim/backtest"
	"github.com/quantlab/barsim/config"
	"github.com/quantlab/barsim/internal/logging"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitData    = 2
	ExitConfig  = 3
	ExitReport  = 4
	ExitEngine  = 5
)

var rootCmd = &cobra.Command{
	Use:   "barsim",
	Short: "Deterministic bar-replay backtester",
	Long: `barsim replays OHLCV bars through a strategy and simulates execution:
next-bar-open entries, intrabar stop/take exits, commissions, margin limits
and ATR-based position sizing.

It provides tools for:
  - Backtesting registered strategies on CSV or synthetic bars
  - Generating reproducible synthetic bar series
  - Journaling runs to SQLite, CSV, XLSX and Org files
  - Querying past runs from the journal`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	envFile   string
	logLevel  string
	logFormat string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with BARSIM_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")
}

// exitError carries an explicit exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch backtest.KindOf(err) {
	case backtest.KindData:
		return ExitData
	case backtest.KindConfiguration:
		return ExitConfig
	case backtest.KindInsufficientMargin, backtest.KindInvalidState:
		return ExitEngine
	}
	return ExitFailure
}

// Execute runs the root command and returns the exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return exitCode(err)
}

// newLogger builds the logger from config, with flags taking precedence.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, format := cfg.Level, cfg.Format
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	l, err := logging.New(level, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backtest.ErrConfiguration, err)
	}
	return l, nil
}
