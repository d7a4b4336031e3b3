package sim

import (
	"math"

	"github.com/quantlab/barsim/market"
)

// Position is the single open trade held by a Broker.
type Position struct {
	Symbol   string
	Side     market.Side
	Qty      float64
	Entry    float64
	Stop     float64
	Take     float64
	Time     int64   // entry timestamp
	EntryFee float64 // commission paid on entry
	Margin   float64 // margin reserved at entry
}

// Triggers reports whether the bar's range touched the stop and/or the take.
//   - long: stop if low <= stop, take if high >= take
//   - short: stop if high >= stop, take if low <= take
func (p Position) Triggers(b market.Bar) (stop, take bool) {
	if p.Side == market.Short {
		return b.High >= p.Stop, b.Low <= p.Take
	}
	return b.Low <= p.Stop, b.High >= p.Take
}

// PnL is the gross profit of closing the whole position at price.
func (p Position) PnL(price float64) float64 {
	return p.Side.Sign() * (price - p.Entry) * p.Qty
}

func (p Position) Notional() float64 {
	return math.Abs(p.Entry * p.Qty)
}

// Margin returns |price*qty| / leverage.
func Margin(price, qty, leverage float64) float64 {
	return math.Abs(price*qty) / leverage
}
