package market

import (
	"errors"
	"fmt"
	"math"
)

// ErrBadBar is returned for bars that break the OHLC envelope.
var ErrBadBar = errors.New("invalid bar")

// Bar is a fixed-interval OHLCV aggregate.
//
// Time is an opaque, monotonic integer stamp (epoch seconds for loaded data,
// a simple counter for synthetic data). Zero means unset.
type Bar struct {
	Time   int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Validate checks high >= max(open, close), low <= min(open, close) and that
// every price is finite and positive.
func (b Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: non-positive or non-finite price in %+v", ErrBadBar, b)
		}
	}
	if b.High < math.Max(b.Open, b.Close) {
		return fmt.Errorf("%w: high %.6f below body in %+v", ErrBadBar, b.High, b)
	}
	if b.Low > math.Min(b.Open, b.Close) {
		return fmt.Errorf("%w: low %.6f above body in %+v", ErrBadBar, b.Low, b)
	}
	return nil
}

// Range returns High - Low.
func (b Bar) Range() float64 { return b.High - b.Low }

// ValidateSeries validates every bar and checks that set timestamps never go
// backwards.
func ValidateSeries(bars []Bar) error {
	var prev int64
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		if b.Time != 0 {
			if prev != 0 && b.Time < prev {
				return fmt.Errorf("bar %d: %w: time %d before %d", i, ErrBadBar, b.Time, prev)
			}
			prev = b.Time
		}
	}
	return nil
}
