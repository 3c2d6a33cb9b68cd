// Package report renders valuations and series as text for logs and the CLI.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"MarketLens/internal/calculator"
	"MarketLens/internal/candle"
	"MarketLens/internal/model"
)

// FormatValuation renders the valuation as a table with a totals row.
// Live prices are marked with "*".
func FormatValuation(quote string, v model.Valuation) string {
	b := &strings.Builder{}
	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{"Asset", "Balance", "Avg Price", "Cost", "Value", "PnL", "ROI"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)

	for _, a := range v.Assets {
		name := a.Currency
		if a.Live {
			name += "*"
		}
		avg := "-"
		if a.ROI != nil {
			avg = Amount(a.AvgBuyPrice)
		}
		table.Append([]string{
			name,
			humanize.FtoaWithDigits(a.Balance, 8),
			avg,
			Amount(a.Cost),
			Amount(a.CurrentValue),
			SignedAmount(a.PnL()),
			ROI(a.ROI),
		})
	}
	roi := v.TotalROI
	table.Append([]string{
		"TOTAL " + strings.ToUpper(quote), "", "",
		Amount(v.TotalCost),
		Amount(v.TotalValue),
		SignedAmount(v.TotalPnL),
		ROI(&roi),
	})
	table.Render()
	return b.String()
}

// FormatSeries renders a one-line series summary.
func FormatSeries(s candle.Snapshot) string {
	switch s.State {
	case candle.StateNotLoaded:
		return fmt.Sprintf("%s loading", s.Key)
	case candle.StateEmpty:
		return fmt.Sprintf("%s empty", s.Key)
	}
	last, _ := s.Last()
	line := fmt.Sprintf("%s %d bars, last %s close %s",
		s.Key, len(s.Bars), last.Time.UTC().Format("2006-01-02 15:04"), price(last.Close))
	sum, err := calculator.Summarize(s.Bars)
	if err != nil {
		return line
	}
	line += fmt.Sprintf(", range %s..%s, change %+.2f%%", price(sum.Low), price(sum.High), sum.Change)
	if sum.HasSMA {
		line += fmt.Sprintf(", sma%d %s", calculator.SMAPeriod, price(sum.SMA))
	}
	return line
}

func price(v float64) string { return humanize.CommafWithDigits(v, 8) }

// Amount formats a quote-currency value with thousands separators, rounded to a unit.
func Amount(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}

// SignedAmount is Amount with an explicit plus sign for gains.
func SignedAmount(v float64) string {
	if math.Round(v) > 0 {
		return "+" + Amount(v)
	}
	return Amount(v)
}

// ROI formats a percentage; nil renders as "-".
func ROI(roi *float64) string {
	if roi == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", *roi)
}
