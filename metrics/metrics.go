// Package metrics computes performance statistics over a trade ledger and an
// equity curve. Every function is pure and returns neutral zero values on
// empty or trivial input.
package metrics

import (
	"math"
)

// DrawdownStats describes the largest peak-to-trough decline.
type DrawdownStats struct {
	Max    float64 // absolute, in money
	MaxPct float64 // fraction of the peak, 0.12 = 12%
	Peak   float64 // peak equity at the max drawdown
	Trough float64 // trough equity at the max drawdown
}

// Drawdown tracks the running peak of equity and reports the deepest decline.
func Drawdown(equity []float64) DrawdownStats {
	if len(equity) == 0 {
		return DrawdownStats{}
	}

	peak := equity[0]
	st := DrawdownStats{Peak: peak, Trough: peak}
	for _, x := range equity {
		if x > peak {
			peak = x
		}
		dd := peak - x
		if dd > st.Max {
			st.Max = dd
			st.Peak = peak
			st.Trough = x
			if peak > 0 {
				st.MaxPct = dd / peak
			} else {
				st.MaxPct = 0
			}
		}
	}
	return st
}

// Ratio is a value that may be undefined. Infinite is set when the
// denominator is zero and the numerator positive.
type Ratio struct {
	Value    float64
	Infinite bool
}

// Float returns +Inf for an infinite ratio.
func (r Ratio) Float() float64 {
	if r.Infinite {
		return math.Inf(1)
	}
	return r.Value
}

func (r Ratio) String() string {
	if r.Infinite {
		return "inf"
	}
	return formatFloat(r.Value)
}

// ProfitFactor is gross profit over gross loss (both positive magnitudes).
// No trades gives 0; profits without losses give an infinite Ratio.
func ProfitFactor(pnls []float64) Ratio {
	var gp, gl float64
	for _, p := range pnls {
		if p > 0 {
			gp += p
		} else if p < 0 {
			gl -= p
		}
	}
	if gl == 0 {
		if gp > 0 {
			return Ratio{Infinite: true}
		}
		return Ratio{}
	}
	return Ratio{Value: gp / gl}
}

// Expectancy is the mean PnL per trade.
func Expectancy(pnls []float64) float64 {
	if len(pnls) == 0 {
		return 0
	}
	return sum(pnls) / float64(len(pnls))
}

// WeightedExpectancy is win_rate*avg_win + (1-win_rate)*avg_non_win, where
// non-wins are trades with PnL <= 0. It equals Expectancy.
func WeightedExpectancy(pnls []float64) float64 {
	if len(pnls) == 0 {
		return 0
	}
	var wins, rest []float64
	for _, p := range pnls {
		if p > 0 {
			wins = append(wins, p)
		} else {
			rest = append(rest, p)
		}
	}
	wr := float64(len(wins)) / float64(len(pnls))
	return wr*mean(wins) + (1-wr)*mean(rest)
}

// WinRate is the fraction of trades with positive PnL.
func WinRate(pnls []float64) float64 {
	if len(pnls) == 0 {
		return 0
	}
	wins := 0
	for _, p := range pnls {
		if p > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(pnls))
}

// Returns gives per-step simple returns (eq[i]-eq[i-1])/eq[i-1]. A zero
// previous value yields a zero return.
func Returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (equity[i]-prev)/prev)
	}
	return out
}

// SharpeSortino computes both ratios on the equity curve's returns, scaled by
// sqrt(annualization). Annualization <= 0 is treated as 1.
//
// Sharpe uses the sample standard deviation. Sortino uses the downside
// deviation sqrt(mean(r^2)) over negative returns only, and is 0 when no
// return is negative.
func SharpeSortino(equity []float64, annualization float64) (sharpe, sortino float64) {
	rets := Returns(equity)
	if len(rets) == 0 {
		return 0, 0
	}
	if annualization <= 0 {
		annualization = 1
	}
	scale := math.Sqrt(annualization)
	m := mean(rets)

	if len(rets) > 1 {
		var ss float64
		for _, r := range rets {
			ss += (r - m) * (r - m)
		}
		if sd := math.Sqrt(ss / float64(len(rets)-1)); sd > 0 {
			sharpe = m / sd * scale
		}
	}

	var down float64
	var n int
	for _, r := range rets {
		if r < 0 {
			down += r * r
			n++
		}
	}
	if n > 0 {
		if dd := math.Sqrt(down / float64(n)); dd > 0 {
			sortino = m / dd * scale
		}
	}
	return sharpe, sortino
}

// Streaks returns the longest run of positive-PnL trades and the longest run
// of negative-PnL trades. A zero PnL breaks both.
func Streaks(pnls []float64) (wins, losses int) {
	var w, l int
	for _, p := range pnls {
		switch {
		case p > 0:
			w++
			l = 0
		case p < 0:
			l++
			w = 0
		default:
			w, l = 0, 0
		}
		wins = max(wins, w)
		losses = max(losses, l)
	}
	return wins, losses
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return sum(xs) / float64(len(xs))
}
