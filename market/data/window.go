package data

import (
	"fmt"
	"strings"

	"github.com/quantlab/barsim/market"
)

// Window returns the bars with from <= Time < to. A zero bound is open.
// The result shares the input's backing array.
func Window(bars []market.Bar, from, to int64) []market.Bar {
	lo, hi := 0, len(bars)
	for lo < hi && from != 0 && bars[lo].Time < from {
		lo++
	}
	for hi > lo && to != 0 && bars[hi-1].Time >= to {
		hi--
	}
	return bars[lo:hi]
}

// ParseBound parses a window bound given as epoch seconds or a date/time
// layout accepted by the CSV loader. Empty means open.
func ParseBound(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	ts, err := parseTime(s)
	if err != nil {
		return 0, fmt.Errorf("window bound: %w", err)
	}
	return ts, nil
}
