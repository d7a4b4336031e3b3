package sim

import (
	"fmt"
	"strings"

	"github.com/quantlab/barsim/market"
)

// ExitReason tells why a position was closed.
type ExitReason string

const (
	ExitStop ExitReason = "STOP"
	ExitTake ExitReason = "TAKE"
	ExitEOD  ExitReason = "EOD"
)

func ParseExitReason(s string) (ExitReason, error) {
	switch r := ExitReason(strings.ToUpper(strings.TrimSpace(s))); r {
	case ExitStop, ExitTake, ExitEOD:
		return r, nil
	}
	return "", fmt.Errorf("unknown exit reason %q", s)
}

// Trade is an immutable closed-position record.
type Trade struct {
	Symbol     string
	Side       market.Side
	Qty        float64
	EntryPrice float64
	ExitPrice  float64
	EntryTime  int64
	ExitTime   int64
	PnL        float64 // realized, before fees
	Fees       float64 // entry fee + exit fee
	Reason     ExitReason
}

// NetPnL is realized PnL after fees.
func (t Trade) NetPnL() float64 { return t.PnL - t.Fees }

// Return is NetPnL relative to entry notional.
func (t Trade) Return() float64 {
	n := t.EntryPrice * t.Qty
	if n == 0 {
		return 0
	}
	return t.NetPnL() / n
}
