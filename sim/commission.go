package sim

import (
	"fmt"
	"math"
)

// Commission is a percentage-of-notional fee with an optional minimum.
type Commission struct {
	Rate   float64 // e.g. 0.0004 = 4 bps
	MinFee float64
}

// Fee returns max(|notional|*Rate, MinFee). It is never negative.
func (c Commission) Fee(notional float64) float64 {
	return math.Max(math.Abs(notional)*c.Rate, math.Max(c.MinFee, 0))
}

func (c Commission) Validate() error {
	if c.Rate < 0 || math.IsNaN(c.Rate) {
		return fmt.Errorf("%w: commission rate must be >= 0, got %v", ErrConfiguration, c.Rate)
	}
	if c.MinFee < 0 || math.IsNaN(c.MinFee) {
		return fmt.Errorf("%w: commission min fee must be >= 0, got %v", ErrConfiguration, c.MinFee)
	}
	return nil
}
