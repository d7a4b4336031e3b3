// Package strategies holds reference strategies and the name registry the
// CLI resolves them from.
package strategies

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/quantlab/barsim/backtest"
)

// Params configures strategies built by name. Unused fields are ignored.
type Params struct {
	Fast   int `yaml:"fast" json:"fast"`
	Slow   int `yaml:"slow" json:"slow"`
	Window int `yaml:"window" json:"window"`

	// Signal is the side emitted by buy-once ("BUY" or "SELL").
	Signal string `yaml:"signal" json:"signal"`

	// Order-flow imbalance.
	Threshold float64 `yaml:"threshold" json:"threshold"`
	MinVolume float64 `yaml:"min_volume" json:"min_volume"`
}

// DefaultParams mirrors the defaults each constructor applies.
func DefaultParams() Params {
	return Params{
		Fast:      10,
		Slow:      30,
		Window:    5,
		Signal:    "BUY",
		Threshold: 0.6,
	}
}

// Factory builds a fresh strategy instance. Strategies carry state, so each
// run gets its own.
type Factory func(Params) (backtest.Strategy, error)

const orderFlowName = "orderflow"

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds a factory under name. Names are case-insensitive.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[normalize(name)] = f
}

// New builds the strategy registered under name.
func New(name string, p Params) (backtest.Strategy, error) {
	mu.RLock()
	f, ok := registry[normalize(name)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return f(p)
}

// Names lists registered strategies in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NeedsOrderFlow reports whether the named strategy only trades on
// order-flow aggregates.
func NeedsOrderFlow(name string) bool { return normalize(name) == orderFlowName }

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Fast == 0 {
		p.Fast = d.Fast
	}
	if p.Slow == 0 {
		p.Slow = d.Slow
	}
	if p.Window == 0 {
		p.Window = d.Window
	}
	if p.Signal == "" {
		p.Signal = d.Signal
	}
	if p.Threshold == 0 {
		p.Threshold = d.Threshold
	}
	return p
}

func init() {
	Register("noop", func(Params) (backtest.Strategy, error) {
		return Noop{}, nil
	})
	Register("buy-once", func(p Params) (backtest.Strategy, error) {
		s, err := NewOnce(p.withDefaults().Signal)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	Register("sma", func(p Params) (backtest.Strategy, error) {
		s, err := NewSMA(p.withDefaults().Window)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	Register("ema-cross", func(p Params) (backtest.Strategy, error) {
		p = p.withDefaults()
		s, err := NewEMACross(p.Fast, p.Slow)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	Register(orderFlowName, func(p Params) (backtest.Strategy, error) {
		p = p.withDefaults()
		s, err := NewImbalance(p.Threshold, p.MinVolume)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
