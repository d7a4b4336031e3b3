// Package config holds the run configuration consumed by the barsim CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/quantlab/barsim/backtest"
	"github.com/quantlab/barsim/market/data"
	"github.com/quantlab/barsim/market/synthetic"
	"github.com/quantlab/barsim/strategies"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BARSIM_"

// Config represents the complete run configuration
type Config struct {
	Engine   backtest.Config `json:"engine" yaml:"engine"`
	Data     DataConfig      `json:"data" yaml:"data"`
	Strategy StrategyConfig  `json:"strategy" yaml:"strategy"`
	Journal  JournalConfig   `json:"journal" yaml:"journal"`
	Log      LogConfig       `json:"log" yaml:"log"`
}

// DataConfig selects where bars come from.
type DataConfig struct {
	Source string `json:"source" yaml:"source"` // "synthetic" or "csv"
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`

	// From and To bound bar times to [From, To). Empty is open.
	From string `json:"from,omitempty" yaml:"from,omitempty"`
	To   string `json:"to,omitempty" yaml:"to,omitempty"`

	// synthetic generator
	Bars          int     `json:"bars" yaml:"bars"`
	Seed          int64   `json:"seed" yaml:"seed"`
	Mode          string  `json:"mode" yaml:"mode"`
	StartPrice    float64 `json:"start_price" yaml:"start_price"`
	Volatility    float64 `json:"volatility" yaml:"volatility"`
	WithOrderFlow bool    `json:"with_orderflow" yaml:"with_orderflow"`
}

// StrategyConfig names a registered strategy and its parameters.
type StrategyConfig struct {
	Name   string            `json:"name" yaml:"name"`
	Params strategies.Params `json:"params" yaml:"params"`
}

// JournalConfig lists the sinks a run is written to. Empty paths are skipped.
type JournalConfig struct {
	DBPath  string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	CSVDir  string `json:"csv_dir,omitempty" yaml:"csv_dir,omitempty"`
	XLSX    string `json:"xlsx,omitempty" yaml:"xlsx,omitempty"`
	OrgPath string `json:"org_path,omitempty" yaml:"org_path,omitempty"`
	Metrics string `json:"metrics,omitempty" yaml:"metrics,omitempty"` // prometheus textfile
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "console" or "json"
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Engine: backtest.DefaultConfig(),
		Data: DataConfig{
			Source:     "synthetic",
			Bars:       500,
			Seed:       42,
			Mode:       string(synthetic.Mixed),
			StartPrice: 100,
			Volatility: 0.10,
		},
		Strategy: StrategyConfig{
			Name:   "sma",
			Params: strategies.DefaultParams(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}

	switch c.Data.Source {
	case "synthetic":
		if c.Data.Bars <= 0 {
			errs = append(errs, fmt.Errorf("data.bars must be positive"))
		}
		if _, err := synthetic.ParseMode(c.Data.Mode); err != nil {
			errs = append(errs, fmt.Errorf("data.mode: %w", err))
		}
		if c.Data.StartPrice < 0 || c.Data.Volatility < 0 {
			errs = append(errs, fmt.Errorf("data.start_price and data.volatility must not be negative"))
		}
	case "csv":
		if c.Data.Path == "" {
			errs = append(errs, fmt.Errorf("data.path required for csv source"))
		}
	default:
		errs = append(errs, fmt.Errorf("data.source must be 'synthetic' or 'csv'"))
	}

	if _, _, err := c.Data.Bounds(); err != nil {
		errs = append(errs, fmt.Errorf("data: %w", err))
	}

	if c.Strategy.Name == "" {
		errs = append(errs, fmt.Errorf("strategy.name is required"))
	} else if _, err := strategies.New(c.Strategy.Name, c.Strategy.Params); err != nil {
		errs = append(errs, fmt.Errorf("strategy: %w", err))
	}
	if c.Data.Source == "csv" && strategies.NeedsOrderFlow(c.Strategy.Name) {
		errs = append(errs, fmt.Errorf("strategy %q needs order-flow, which csv sources do not carry", c.Strategy.Name))
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be 'console' or 'json'"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", backtest.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Parse decodes YAML, falling back to JSON, on top of Default().
func Parse(raw []byte) (*Config, error) {
	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(raw, cfg); jerr != nil {
			return nil, fmt.Errorf("%w: parse config (tried YAML and JSON): %w", backtest.ErrConfiguration, err)
		}
	}
	return cfg, nil
}

// LoadFromFile loads and validates configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config file: %w", backtest.ErrConfiguration, err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration as YAML for .yaml/.yml paths and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var out []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		out, err = yaml.Marshal(c)
	default:
		out, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadEnvFile loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// ApplyEnv overrides fields from BARSIM_* variables looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *float64) {
		if v := getenv(EnvPrefix + key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	str("SYMBOL", &c.Engine.Symbol)
	num("START_EQUITY", &c.Engine.StartEquity)
	num("COMMISSION_RATE", &c.Engine.CommissionRate)
	num("COMMISSION_MIN_FEE", &c.Engine.CommissionMinFee)
	num("MAX_LEVERAGE", &c.Engine.MaxLeverage)
	num("RISK_FRACTION", &c.Engine.RiskFraction)
	num("STOP_ATR_MULT", &c.Engine.StopATRMult)
	num("TAKE_ATR_MULT", &c.Engine.TakeATRMult)
	num("MIN_STOP", &c.Engine.MinStop)
	num("ATR_FLOOR", &c.Engine.ATRFloor)
	integer("ATR_PERIOD", &c.Engine.ATRPeriod)
	if v := getenv(EnvPrefix + "FILL_POLICY"); v != "" {
		c.Engine.FillPolicy = backtest.FillPolicy(strings.ToLower(v))
	}

	str("DATA_SOURCE", &c.Data.Source)
	str("DATA_PATH", &c.Data.Path)
	str("DATA_FROM", &c.Data.From)
	str("DATA_TO", &c.Data.To)
	str("STRATEGY", &c.Strategy.Name)

	str("JOURNAL_DB", &c.Journal.DBPath)
	str("JOURNAL_CSV_DIR", &c.Journal.CSVDir)
	str("JOURNAL_XLSX", &c.Journal.XLSX)
	str("JOURNAL_ORG", &c.Journal.OrgPath)
	str("METRICS_FILE", &c.Journal.Metrics)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", backtest.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// SyntheticOptions maps the data section onto generator options.
func (d DataConfig) SyntheticOptions() synthetic.Options {
	mode, _ := synthetic.ParseMode(d.Mode)
	opts := synthetic.Defaults()
	opts.N = d.Bars
	opts.Seed = d.Seed
	opts.Mode = mode
	if d.StartPrice > 0 {
		opts.StartPrice = d.StartPrice
	}
	if d.Volatility > 0 {
		opts.Volatility = d.Volatility
	}
	return opts
}

// Bounds parses From and To.
func (d DataConfig) Bounds() (from, to int64, err error) {
	if from, err = data.ParseBound(d.From); err != nil {
		return 0, 0, err
	}
	if to, err = data.ParseBound(d.To); err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

// Dataset describes the bar source for journal records.
func (d DataConfig) Dataset() string {
	if d.Source == "csv" {
		return d.Path
	}
	return fmt.Sprintf("synthetic:mode=%s,seed=%d,bars=%d", d.Mode, d.Seed, d.Bars)
}
