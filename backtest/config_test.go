package backtest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"empty symbol", func(c *Config) { c.Symbol = " " }},
		{"zero equity", func(c *Config) { c.StartEquity = 0 }},
		{"negative commission", func(c *Config) { c.CommissionRate = -0.1 }},
		{"negative min fee", func(c *Config) { c.CommissionMinFee = -1 }},
		{"zero leverage", func(c *Config) { c.MaxLeverage = 0 }},
		{"zero atr period", func(c *Config) { c.ATRPeriod = 0 }},
		{"negative atr floor", func(c *Config) { c.ATRFloor = -1 }},
		{"unknown fill policy", func(c *Config) { c.FillPolicy = "open" }},
		{"risk fraction above one", func(c *Config) { c.RiskFraction = 1.5 }},
		{"zero risk fraction", func(c *Config) { c.RiskFraction = 0 }},
		{"negative stop mult", func(c *Config) { c.StopATRMult = -1 }},
		{"zero take mult", func(c *Config) { c.TakeATRMult = 0 }},
		{"negative min stop", func(c *Config) { c.MinStop = -1 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mut(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxLeverage = 0
	cfg.ATRPeriod = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_leverage")
	assert.Contains(t, err.Error(), "atr_period")
}

func TestParseFillPolicy(t *testing.T) {
	t.Parallel()

	p, err := ParseFillPolicy("BEST")
	require.NoError(t, err)
	assert.Equal(t, FillBest, p)

	p, err = ParseFillPolicy("")
	require.NoError(t, err)
	assert.Equal(t, FillWorst, p)

	_, err = ParseFillPolicy("close")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{errors.New("boom"), KindUnknown},
		{fmt.Errorf("bar 3: %w", ErrInvalidState), KindInvalidState},
		{fmt.Errorf("x: %w", ErrInsufficientMargin), KindInsufficientMargin},
		{fmt.Errorf("x: %w", ErrConfiguration), KindConfiguration},
		{fmt.Errorf("x: %w", ErrData), KindData},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
	assert.Equal(t, "invalid_state", KindInvalidState.String())
}
