package backtest

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/quantlab/barsim/sim"
)

// FillPolicy resolves a bar that touches both stop and take.
type FillPolicy string

const (
	// FillWorst assumes the stop was hit first.
	FillWorst FillPolicy = "worst"
	// FillBest assumes the take was hit first.
	FillBest FillPolicy = "best"
)

func ParseFillPolicy(s string) (FillPolicy, error) {
	switch p := FillPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case FillWorst, FillBest:
		return p, nil
	case "":
		return FillWorst, nil
	}
	return "", fmt.Errorf("%w: unknown fill policy %q (want worst|best)", ErrConfiguration, s)
}

// Config is the immutable engine configuration. It is copied into the
// engine at construction.
type Config struct {
	Symbol string `yaml:"symbol" json:"symbol"`

	StartEquity      float64 `yaml:"start_equity" json:"start_equity"`
	CommissionRate   float64 `yaml:"commission_rate" json:"commission_rate"`
	CommissionMinFee float64 `yaml:"commission_min_fee" json:"commission_min_fee"`
	MaxLeverage      float64 `yaml:"max_leverage" json:"max_leverage"`

	ATRPeriod  int        `yaml:"atr_period" json:"atr_period"`
	ATRFloor   float64    `yaml:"atr_floor" json:"atr_floor"` // 0 disables
	FillPolicy FillPolicy `yaml:"fill_policy" json:"fill_policy"`

	RiskFraction float64 `yaml:"risk_fraction" json:"risk_fraction"`
	StopATRMult  float64 `yaml:"stop_atr_mult" json:"stop_atr_mult"`
	TakeATRMult  float64 `yaml:"take_atr_mult" json:"take_atr_mult"`
	MinStop      float64 `yaml:"min_stop" json:"min_stop"`
}

// DefaultConfig returns a runnable configuration.
func DefaultConfig() Config {
	return Config{
		Symbol:           "TEST",
		StartEquity:      100_000,
		CommissionRate:   0.0004,
		CommissionMinFee: 0,
		MaxLeverage:      1,
		ATRPeriod:        14,
		ATRFloor:         0,
		FillPolicy:       FillWorst,
		RiskFraction:     0.01,
		StopATRMult:      1.0,
		TakeATRMult:      2.0,
		MinStop:          0.01,
	}
}

// Validate checks every field and joins all problems into one error wrapping
// ErrConfiguration.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Symbol) == "" {
		bad("symbol is required")
	}
	if !positive(c.StartEquity) {
		bad("start_equity must be > 0, got %v", c.StartEquity)
	}
	if c.CommissionRate < 0 || math.IsNaN(c.CommissionRate) {
		bad("commission_rate must be >= 0, got %v", c.CommissionRate)
	}
	if c.CommissionMinFee < 0 || math.IsNaN(c.CommissionMinFee) {
		bad("commission_min_fee must be >= 0, got %v", c.CommissionMinFee)
	}
	if !positive(c.MaxLeverage) {
		bad("max_leverage must be > 0, got %v", c.MaxLeverage)
	}
	if c.ATRPeriod < 1 {
		bad("atr_period must be >= 1, got %d", c.ATRPeriod)
	}
	if c.ATRFloor < 0 || math.IsNaN(c.ATRFloor) {
		bad("atr_floor must be >= 0, got %v", c.ATRFloor)
	}
	if _, err := ParseFillPolicy(string(c.FillPolicy)); err != nil {
		bad("fill_policy %q is not worst|best", c.FillPolicy)
	}
	if !positive(c.RiskFraction) || c.RiskFraction > 1 {
		bad("risk_fraction must be in (0, 1], got %v", c.RiskFraction)
	}
	if c.StopATRMult < 0 || math.IsNaN(c.StopATRMult) {
		bad("stop_atr_mult must be >= 0, got %v", c.StopATRMult)
	}
	if !positive(c.TakeATRMult) {
		bad("take_atr_mult must be > 0, got %v", c.TakeATRMult)
	}
	if c.MinStop < 0 || math.IsNaN(c.MinStop) {
		bad("min_stop must be >= 0, got %v", c.MinStop)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
}

func (c Config) brokerConfig() sim.BrokerConfig {
	return sim.BrokerConfig{
		StartEquity: c.StartEquity,
		Commission:  sim.Commission{Rate: c.CommissionRate, MinFee: c.CommissionMinFee},
		MaxLeverage: c.MaxLeverage,
	}
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
