package model

import (
	"strings"
	"time"
)

// Interval identifies a bar width. Values match the backend's interval query parameter.
type Interval string

const (
	Minute1   Interval = "minute1"
	Minute30  Interval = "minute30"
	Minute60  Interval = "minute60"
	Minute240 Interval = "minute240"
	Day       Interval = "day"
)

// Intervals lists every supported interval, shortest first.
var Intervals = []Interval{Minute1, Minute30, Minute60, Minute240, Day}

// Valid reports whether i is one of the supported intervals.
func (i Interval) Valid() bool {
	for _, v := range Intervals {
		if v == i {
			return true
		}
	}
	return false
}

// OHLCV represents a single candlestick bar. Time is the bucket start.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// SeriesKey addresses one series.
type SeriesKey struct {
	Symbol   string
	Interval Interval
}

func (k SeriesKey) String() string { return k.Symbol + "@" + string(k.Interval) }

// Tick is a single trade-price update.
type Tick struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// Market is one tradable listing as reported by the backend.
type Market struct {
	Symbol      string `json:"market"`
	KoreanName  string `json:"korean_name"`
	EnglishName string `json:"english_name"`
}

// MarketSymbol returns the quote-prefixed market code for a currency, e.g. KRW-BTC.
func MarketSymbol(quote, currency string) string {
	return strings.ToUpper(quote) + "-" + strings.ToUpper(currency)
}
