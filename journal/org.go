package journal

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strings"
	"text/template"
	"time"
)

type orgRun struct {
	RunRecord
	TradeRows []TradeRecord
}

var runOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"pf": func(x float64) string {
		if math.IsInf(x, 1) {
			return "inf"
		}
		return fmt.Sprintf("%.2f", x)
	},
	"stamp": stamp,
}

var runOrg = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

// FormatRunOrg renders a run and its trade ledger as an Org-mode block.
func FormatRunOrg(r RunRecord, trades []TradeRecord) (string, error) {
	buf := new(bytes.Buffer)
	if err := runOrg.Execute(buf, orgRun{RunRecord: r, TradeRows: trades}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteOrg writes FormatRunOrg output to path.
func WriteOrg(path string, r RunRecord, trades []TradeRecord) error {
	s, err := FormatRunOrg(r, trades)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0644)
}

const RunOrgTemplate = `
* BACKTEST: {{.Strategy}} {{.Symbol}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:SYMBOL:      {{.Symbol}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:FILL:        {{.FillPolicy}}
:BARS:        {{.Bars}}
:START_EQ:    {{printf "%.2f" .StartEquity}}
:END_EQ:      {{printf "%.2f" .FinalEquity}}
:NET_PL:      {{printf "%.2f" .NetPnL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDDPct}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:SKIPPED:     {{.Skipped}}
:WIN_RATE:    {{printf "%.2f" (mul100 .WinRate)}}
:PROFIT_FAC:  {{pf .ProfitFactor}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Configuration
#+begin_src yaml
{{printf "%s" .Config}}#+end_src

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetPnL}}*
- Fees:             *{{printf "%.2f" .Fees}}*
- Return:           *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDD}} ({{printf "%.2f" .MaxDDPct}}%)*
- Win Rate:         *{{printf "%.2f" (mul100 .WinRate)}}%*
- Profit Factor:    *{{pf .ProfitFactor}}*
- Sharpe / Sortino: *{{printf "%.4f" .Sharpe}} / {{printf "%.4f" .Sortino}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |
{{- if .TradeRows }}

** Trades
| # | Side | Qty | Entry | Exit | Opened | Closed | Net P/L | Reason |
|---+------+-----+-------+------+--------+--------+---------+--------|
{{- range .TradeRows }}
| {{.Seq}} | {{.Side}} | {{printf "%.4f" .Qty}} | {{printf "%.5f" .EntryPrice}} | {{printf "%.5f" .ExitPrice}} | {{stamp .EntryTime}} | {{stamp .ExitTime}} | {{printf "%.2f" .NetPnL}} | {{.Reason}} |
{{- end }}
{{- end }}
{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`

// FormatTradeOrg renders a TradeRecord as an Org-mode block with the facts in
// a PROPERTIES drawer and empty review headings.
func FormatTradeOrg(t TradeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade: %s %s (%s)\n", t.Symbol, t.Side, shortID(t.TradeID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":RUN_ID: %s\n", t.RunID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":QTY: %.4f\n", t.Qty)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.5f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.5f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", stamp(t.EntryTime))
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", stamp(t.ExitTime))
	fmt.Fprintf(&b, ":PNL: %.2f\n", t.PnL)
	fmt.Fprintf(&b, ":FEES: %.2f\n", t.Fees)
	fmt.Fprintf(&b, ":NET_PNL: %.2f\n", t.NetPnL)
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

// stamp renders bar times. Values that look like epoch seconds are shown as
// RFC3339; small synthetic counters are shown as-is.
func stamp(ts int64) string {
	if ts >= 100_000_000 {
		return time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%d", ts)
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
