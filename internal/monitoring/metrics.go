// Package monitoring exposes backtest runs as prometheus metrics. Batch runs
// write them to a node-exporter textfile instead of serving HTTP.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quantlab/barsim/backtest"
	"github.com/quantlab/barsim/metrics"
)

const namespace = "barsim"

// Collectors groups the run metrics registered on one registry.
type Collectors struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	tradesTotal *prometheus.CounterVec
	tradePnL    *prometheus.HistogramVec
	barsTotal   *prometheus.CounterVec
	skipped     *prometheus.CounterVec

	finalEquity *prometheus.GaugeVec
	returnPct   *prometheus.GaugeVec
	maxDDPct    *prometheus.GaugeVec
	sharpe      *prometheus.GaugeVec
	winRate     *prometheus.GaugeVec
	duration    *prometheus.GaugeVec
}

// New creates collectors on a fresh registry.
func New() *Collectors {
	labels := []string{"symbol", "strategy"}
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_total",
			Help: "Total number of completed backtest runs",
		}, labels),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total",
			Help: "Total number of failed runs by error kind",
		}, []string{"kind"}),
		tradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "trades_total",
			Help: "Total number of closed trades",
		}, []string{"symbol", "strategy", "side", "reason"}),
		tradePnL: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "trade_net_pnl",
			Help:    "Distribution of per-trade net PnL",
			Buckets: []float64{-1000, -250, -100, -25, -5, 0, 5, 25, 100, 250, 1000},
		}, labels),
		barsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bars_total",
			Help: "Total number of bars replayed",
		}, labels),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "skipped_signals_total",
			Help: "Actionable signals that did not become a fill",
		}, labels),
		finalEquity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "final_equity",
			Help: "Equity at the end of the last run",
		}, labels),
		returnPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "return_percent",
			Help: "Return of the last run in percent",
		}, labels),
		maxDDPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "max_drawdown_percent",
			Help: "Maximum drawdown of the last run in percent",
		}, labels),
		sharpe: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sharpe",
			Help: "Per-bar Sharpe ratio of the last run",
		}, labels),
		winRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "win_rate",
			Help: "Fraction of winning trades in the last run",
		}, labels),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_duration_seconds",
			Help: "Wall time of the last run",
		}, labels),
	}

	c.registry.MustRegister(
		c.runsTotal, c.errorsTotal, c.tradesTotal, c.tradePnL, c.barsTotal, c.skipped,
		c.finalEquity, c.returnPct, c.maxDDPct, c.sharpe, c.winRate, c.duration,
	)
	return c
}

// Registry returns the registry the collectors live on.
func (c *Collectors) Registry() *prometheus.Registry { return c.registry }

// ObserveRun records a finished run.
func (c *Collectors) ObserveRun(strategy string, res *backtest.Result, seconds float64) {
	symbol := res.Config.Symbol
	sum := metrics.Summarize(res.Trades, res.EquityValues())

	c.runsTotal.WithLabelValues(symbol, strategy).Inc()
	c.barsTotal.WithLabelValues(symbol, strategy).Add(float64(res.Bars))
	c.skipped.WithLabelValues(symbol, strategy).Add(float64(res.Skipped))

	for _, t := range res.Trades {
		c.tradesTotal.WithLabelValues(symbol, strategy, t.Side.String(), string(t.Reason)).Inc()
		c.tradePnL.WithLabelValues(symbol, strategy).Observe(t.NetPnL())
	}

	c.finalEquity.WithLabelValues(symbol, strategy).Set(res.FinalEquity)
	c.returnPct.WithLabelValues(symbol, strategy).Set(100 * sum.Return)
	c.maxDDPct.WithLabelValues(symbol, strategy).Set(100 * sum.Drawdown.MaxPct)
	c.sharpe.WithLabelValues(symbol, strategy).Set(sum.Sharpe)
	c.winRate.WithLabelValues(symbol, strategy).Set(sum.WinRate)
	c.duration.WithLabelValues(symbol, strategy).Set(seconds)
}

// RecordError counts a failed run by its error kind.
func (c *Collectors) RecordError(err error) {
	c.errorsTotal.WithLabelValues(backtest.KindOf(err).String()).Inc()
}

// WriteTextfile writes the registry in the text exposition format.
func (c *Collectors) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
