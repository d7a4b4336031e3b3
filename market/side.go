package market

import (
	"fmt"
	"strings"
)

// Side is the direction of a position: +1 long, -1 short.
type Side int8

const (
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return fmt.Sprintf("Side(%d)", int8(s))
	}
}

// Sign returns +1 for Long and -1 for Short.
func (s Side) Sign() float64 { return float64(s) }

// ParseSide accepts LONG/SHORT and the BUY/SELL aliases.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return Long, nil
	case "SHORT", "SELL":
		return Short, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

// Signal is a strategy decision.
type Signal int8

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Actionable reports whether the signal asks for an entry.
func (s Signal) Actionable() bool { return s == Buy || s == Sell }

// Side maps BUY to Long and SELL to Short. HOLD returns 0.
func (s Signal) Side() Side {
	switch s {
	case Buy:
		return Long
	case Sell:
		return Short
	}
	return 0
}

// ParseSignal is lenient: anything it does not recognise is HOLD.
func ParseSignal(s string) Signal {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG":
		return Buy
	case "SELL", "SHORT":
		return Sell
	}
	return Hold
}
