// Package synthetic produces seeded, reproducible bar and order-flow series
// for tests, benchmarks and offline demos.
package synthetic

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/quantlab/barsim/market"
)

// Mode selects the drift profile of a generated series.
type Mode string

const (
	Up    Mode = "up"
	Down  Mode = "down"
	Flat  Mode = "flat"
	Mixed Mode = "mixed" // up for the first third, flat, then down
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Up, Down, Flat, Mixed:
		return m, nil
	case "":
		return Mixed, nil
	}
	return "", fmt.Errorf("unknown synthetic mode %q (up, down, flat, mixed)", s)
}

// minPrice keeps generated prices strictly positive.
const minPrice = 0.01

// Options configures Generate. Zero values are replaced by Defaults(), so
// a series without drift needs Mode Flat rather than a zero Drift.
type Options struct {
	N          int
	StartPrice float64
	Mode       Mode
	Drift      float64 // absolute per-bar drift
	Volatility float64 // stddev of the per-bar shock
	Wick       float64 // stddev of the wick beyond the body
	Seed       int64

	StartTime int64
	TimeStep  int64

	VolumeBase  float64
	VolumeNoise float64 // uniform +/- fraction of VolumeBase
}

// Defaults returns the generator defaults.
func Defaults() Options {
	return Options{
		N:           200,
		StartPrice:  100,
		Mode:        Mixed,
		Drift:       0.02,
		Volatility:  0.10,
		Wick:        0.15,
		Seed:        42,
		StartTime:   1,
		TimeStep:    1,
		VolumeBase:  1000,
		VolumeNoise: 0.2,
	}
}

func (o Options) withDefaults() Options {
	d := Defaults()
	if o.StartPrice <= 0 {
		o.StartPrice = d.StartPrice
	}
	if o.Mode == "" {
		o.Mode = d.Mode
	}
	if o.Drift == 0 {
		o.Drift = d.Drift
	}
	if o.Volatility <= 0 {
		o.Volatility = d.Volatility
	}
	if o.Wick <= 0 {
		o.Wick = d.Wick
	}
	if o.TimeStep <= 0 {
		o.TimeStep = d.TimeStep
	}
	if o.StartTime == 0 {
		o.StartTime = d.StartTime
	}
	if o.VolumeBase <= 0 {
		o.VolumeBase = d.VolumeBase
	}
	if o.VolumeNoise <= 0 {
		o.VolumeNoise = d.VolumeNoise
	}
	return o
}

// Generate returns opts.N bars. Identical options (including Seed) always
// produce identical bars, and every bar satisfies
// High >= max(Open, Close) and Low <= min(Open, Close).
func Generate(opts Options) []market.Bar {
	if opts.N <= 0 {
		return nil
	}
	opts = opts.withDefaults()

	rng := rand.New(rand.NewSource(opts.Seed))
	price := opts.StartPrice
	ts := opts.StartTime

	bars := make([]market.Bar, 0, opts.N)
	for i := 0; i < opts.N; i++ {
		d := driftAt(opts, i)
		shock := rng.NormFloat64() * opts.Volatility

		o := price
		c := math.Max(minPrice, price+d+shock)

		hi := math.Max(o, c) + math.Abs(rng.NormFloat64()*opts.Wick)
		lo := math.Max(minPrice, math.Min(o, c)-math.Abs(rng.NormFloat64()*opts.Wick))
		lo = math.Min(lo, math.Min(o, c))

		vol := opts.VolumeBase * (1 + uniform(rng, -opts.VolumeNoise, opts.VolumeNoise))

		bars = append(bars, market.Bar{
			Time:   ts,
			Open:   o,
			High:   hi,
			Low:    lo,
			Close:  c,
			Volume: math.Max(0, vol),
		})

		price = c
		ts += opts.TimeStep
	}
	return bars
}

func driftAt(opts Options, i int) float64 {
	switch opts.Mode {
	case Up:
		return math.Abs(opts.Drift)
	case Down:
		return -math.Abs(opts.Drift)
	case Flat:
		return 0
	}
	third := max(1, opts.N/3)
	switch {
	case i < third:
		return math.Abs(opts.Drift)
	case i < 2*third:
		return 0
	default:
		return -math.Abs(opts.Drift)
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
