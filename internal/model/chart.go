package model

// ChartConfig is one user-configured chart.
type ChartConfig struct {
	ID       string
	Symbol   string
	Interval Interval
	Fixed    bool
}

// Key returns the series backing the chart.
func (c ChartConfig) Key() SeriesKey {
	return SeriesKey{Symbol: c.Symbol, Interval: c.Interval}
}
