package metrics

import (
	"math"
	"sort"
	"strconv"

	"github.com/quantlab/barsim/sim"
)

// Summary is the headline statistics block of a run. Trade statistics use
// net PnL (after fees), which is what moves equity.
type Summary struct {
	Trades  int
	Wins    int
	Losses  int
	WinRate float64

	TotalPnL     float64
	GrossProfit  float64
	GrossLoss    float64 // positive magnitude
	Fees         float64
	AvgWin       float64
	AvgLoss      float64 // negative, or 0 without losses
	Payoff       float64 // AvgWin / |AvgLoss|
	ProfitFactor Ratio
	Expectancy   float64

	StartEquity float64
	FinalEquity float64
	Return      float64 // FinalEquity/StartEquity - 1

	Drawdown DrawdownStats
	Sharpe   float64
	Sortino  float64

	MaxWinStreak  int
	MaxLossStreak int
}

// NetPnLs extracts per-trade net PnL.
func NetPnLs(trades []sim.Trade) []float64 {
	out := make([]float64, len(trades))
	for i, t := range trades {
		out[i] = t.NetPnL()
	}
	return out
}

// Summarize computes a Summary. Sharpe and Sortino are per-step, not
// annualized.
func Summarize(trades []sim.Trade, equity []float64) Summary {
	pnls := NetPnLs(trades)

	s := Summary{
		Trades:       len(trades),
		WinRate:      WinRate(pnls),
		TotalPnL:     sum(pnls),
		ProfitFactor: ProfitFactor(pnls),
		Expectancy:   Expectancy(pnls),
		Drawdown:     Drawdown(equity),
	}
	for _, t := range trades {
		s.Fees += t.Fees
	}
	for _, p := range pnls {
		switch {
		case p > 0:
			s.Wins++
			s.GrossProfit += p
		case p < 0:
			s.Losses++
			s.GrossLoss -= p
		}
	}
	if s.Wins > 0 {
		s.AvgWin = s.GrossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = -s.GrossLoss / float64(s.Losses)
	}
	if s.AvgLoss != 0 {
		s.Payoff = s.AvgWin / math.Abs(s.AvgLoss)
	}

	if len(equity) > 0 {
		s.StartEquity = equity[0]
		s.FinalEquity = equity[len(equity)-1]
		if s.StartEquity != 0 {
			s.Return = s.FinalEquity/s.StartEquity - 1
		}
	}
	s.Sharpe, s.Sortino = SharpeSortino(equity, 1)
	s.MaxWinStreak, s.MaxLossStreak = Streaks(pnls)
	return s
}

// TopTrades returns up to n best and n worst trades by net PnL. The input is
// not modified.
func TopTrades(trades []sim.Trade, n int) (best, worst []sim.Trade) {
	if n <= 0 || len(trades) == 0 {
		return nil, nil
	}
	sorted := make([]sim.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].NetPnL() > sorted[j].NetPnL() })

	n = min(n, len(sorted))
	best = append(best, sorted[:n]...)
	for i := len(sorted) - 1; i >= len(sorted)-n; i-- {
		worst = append(worst, sorted[i])
	}
	return best, worst
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
