package backtest

import (
	"errors"

	"github.com/quantlab/barsim/sim"
)

var (
	ErrConfiguration      = sim.ErrConfiguration
	ErrInsufficientMargin = sim.ErrInsufficientMargin
	ErrInvalidState       = sim.ErrInvalidState

	// ErrData reports unusable input bars or order-flow.
	ErrData = errors.New("bad input data")
)

// Kind classifies an error returned by this package so callers can map it
// to an exit code or a status without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindInsufficientMargin
	KindInvalidState
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindInsufficientMargin:
		return "insufficient_margin"
	case KindInvalidState:
		return "invalid_state"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// KindOf returns the Kind of err. A nil error is KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrInsufficientMargin):
		return KindInsufficientMargin
	case errors.Is(err, ErrData):
		return KindData
	}
	return KindUnknown
}
