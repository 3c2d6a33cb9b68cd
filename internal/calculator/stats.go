// Package calculator derives display statistics from a loaded bar window.
package calculator

import (
	"errors"
	"math"

	"MarketLens/internal/model"
)

// SMAPeriod is the moving-average window shown with a series.
const SMAPeriod = 20

var ErrNoBars = errors.New("no bars provided")

// Summary describes the loaded window of one series.
type Summary struct {
	High     float64
	Low      float64
	Position float64 // where the last close sits within [Low, High], 0..1
	Change   float64 // percent change from the first to the last close
	SMA      float64 // simple moving average of the last SMAPeriod closes
	HasSMA   bool
}

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// Range returns the high and low of bars. A tick-updated close outside the
// snapshot extremes widens the range; zero lows are treated as unset.
func Range(bars []model.OHLCV) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, ErrNoBars
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, b := range bars {
		high = math.Max(high, math.Max(b.High, b.Close))
		l := b.Low
		if l <= 0 {
			l = b.Close
		}
		low = math.Min(low, math.Min(l, b.Close))
	}
	return high, low, nil
}

// Position returns where current sits within [low, high], clamped to 0..1.
func Position(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	return math.Min(1, math.Max(0, (current-low)/(high-low))), nil
}

// Summarize computes a Summary for bars ordered oldest first.
func Summarize(bars []model.OHLCV) (Summary, error) {
	high, low, err := Range(bars)
	if err != nil {
		return Summary{}, err
	}
	first, last := bars[0].Close, bars[len(bars)-1].Close

	s := Summary{High: high, Low: low}
	if s.Position, err = Position(last, high, low); err != nil {
		return Summary{}, err
	}
	if first > 0 {
		s.Change = (last - first) / first * 100
	}
	if sma, err := CalculateSMA(closes(bars), SMAPeriod); err == nil {
		s.SMA = sma
		s.HasSMA = true
	}
	return s, nil
}

func closes(bars []model.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
