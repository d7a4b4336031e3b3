package indicators

import (
	"fmt"
	"math"

	"github.com/quantlab/barsim/market"
)

// ATR is a streaming Average True Range: the arithmetic mean of the last
// period true ranges. The first bar has no previous close, so its true range
// is just High - Low.
type ATR struct {
	period    int
	window    []float64 // ring buffer of true ranges
	next      int
	count     int
	prevClose float64
	hasPrev   bool
}

// NewATR creates an ATR over period bars. Periods below 1 are raised to 1.
func NewATR(period int) *ATR {
	if period < 1 {
		period = 1
	}
	return &ATR{
		period: period,
		window: make([]float64, period),
	}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR(%d)", a.period)
}

func (a *ATR) Period() int { return a.period }

func (a *ATR) Warmup() int { return a.period }

func (a *ATR) Reset() {
	clear(a.window)
	a.next = 0
	a.count = 0
	a.prevClose = 0
	a.hasPrev = false
}

// Update pushes a bar and returns the current reading. The second result is
// false until period true ranges have been collected.
func (a *ATR) Update(b market.Bar) (float64, bool) {
	tr := b.High - b.Low
	if a.hasPrev {
		tr = TrueRange(b, a.prevClose)
	}
	a.prevClose = b.Close
	a.hasPrev = true

	if a.count < a.period {
		a.count++
	}
	a.window[a.next] = tr
	a.next = (a.next + 1) % a.period

	return a.Value(), a.Ready()
}

func (a *ATR) Ready() bool {
	return a.count >= a.period
}

// Value returns the mean of the window, or 0 when not ready.
func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	var sum float64
	for _, v := range a.window {
		sum += v
	}
	return sum / float64(a.period)
}

// TrueRange is max(H-L, |H-prevClose|, |L-prevClose|).
func TrueRange(b market.Bar, prevClose float64) float64 {
	return math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}

// ATRFunc runs a fresh ATR over bars and returns the final reading.
func ATRFunc(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < period {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period, len(bars))
	}
	a := NewATR(period)
	var v float64
	for _, b := range bars {
		v, _ = a.Update(b)
	}
	return v, nil
}

// atrIndicator adapts ATR to the Indicator interface, whose Update has no
// return value.
type atrIndicator struct{ *ATR }

func (a atrIndicator) Update(b market.Bar) { a.ATR.Update(b) }

// AsIndicator exposes a as an Indicator.
func (a *ATR) AsIndicator() Indicator { return atrIndicator{a} }
