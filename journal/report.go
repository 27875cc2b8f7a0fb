package journal

import (
	"bytes"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/ledger"
)

// Summary aggregates a set of closed trades.
type Summary struct {
	Trades       int
	Wins         int
	Losses       int
	NetPL        decimal.Decimal
	GrossProfit  decimal.Decimal
	GrossLoss    decimal.Decimal // positive
	WinRate      decimal.Decimal // percent
	ProfitFactor decimal.Decimal // zero when there are no losses
	Best         decimal.Decimal
	Worst        decimal.Decimal
}

func Summarize(trades []ledger.TradeRecord) Summary {
	s := Summary{}
	for i, t := range trades {
		s.Trades++
		s.NetPL = s.NetPL.Add(t.PnL)
		switch {
		case t.PnL.IsPositive():
			s.Wins++
			s.GrossProfit = s.GrossProfit.Add(t.PnL)
		case t.PnL.IsNegative():
			s.Losses++
			s.GrossLoss = s.GrossLoss.Add(t.PnL.Neg())
		}
		if i == 0 || t.PnL.GreaterThan(s.Best) {
			s.Best = t.PnL
		}
		if i == 0 || t.PnL.LessThan(s.Worst) {
			s.Worst = t.PnL
		}
	}
	if s.Trades > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.Wins)).
			Div(decimal.NewFromInt(int64(s.Trades))).
			Mul(decimal.NewFromInt(100))
	}
	if s.GrossLoss.IsPositive() {
		s.ProfitFactor = s.GrossProfit.Div(s.GrossLoss)
	}
	return s
}

// DayReport is the end-of-day review page.
type DayReport struct {
	Day     time.Time
	Summary Summary
	Trades  []ledger.TradeRecord
	Notes   []string
}

func NewDayReport(day time.Time, trades []ledger.TradeRecord) DayReport {
	return DayReport{Day: day, Summary: Summarize(trades), Trades: trades}
}

var reportFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"clock": func(t time.Time) string { return t.UTC().Format("15:04:05") },
}

// Org renders the report as an Org-mode document.
func (r DayReport) Org() (string, error) {
	t, err := template.New("day").Funcs(reportFuncs).Parse(dayOrgTemplate)
	if err != nil {
		return "", err
	}
	buf := new(bytes.Buffer)
	if err := t.Execute(buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const dayOrgTemplate = `* PAPER DAY: {{.Day.Format "2006-01-02 Mon"}}
:PROPERTIES:
:TRADES:      {{.Summary.Trades}}
:WINS:        {{.Summary.Wins}}
:LOSSES:      {{.Summary.Losses}}
:NET_PL:      {{money .Summary.NetPL}}
:WIN_RATE:    {{money .Summary.WinRate}}
:PROFIT_FAC:  {{if .Summary.ProfitFactor.IsZero}}(no losses){{else}}{{money .Summary.ProfitFactor}}{{end}}
:END:

** Performance Summary
- Net P/L:       *{{money .Summary.NetPL}}*
- Gross profit:  {{money .Summary.GrossProfit}}
- Gross loss:    {{money .Summary.GrossLoss}}
- Best trade:    {{money .Summary.Best}}
- Worst trade:   {{money .Summary.Worst}}

** Trades
| Close    | Symbol | Side | Qty | Entry | Exit | P/L | Reason |
|----------+--------+------+-----+-------+------+-----+--------|
{{- range .Trades}}
| {{clock .Timestamp}} | {{.Symbol}} | {{.Side}} | {{.Qty}} | {{money .EntryPrice}} | {{money .ExitPrice}} | {{money .PnL}} | {{.Reason}} |
{{- end}}
{{- if .Notes}}

** Notes
{{- range .Notes}}
- {{.}}
{{- end}}
{{- end}}
`
