package collector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"MarketLens/internal/model"
)

// number accepts JSON numbers and numeric strings; the account endpoint sends both.
type number struct {
	decimal.Decimal
}

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		n.Decimal = decimal.Zero
		return nil
	}
	raw := strings.Trim(string(data), `"`)
	if raw == "" {
		n.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", raw, err)
	}
	n.Decimal = d
	return nil
}

func (n number) Float() float64 { return n.InexactFloat64() }

// bar is the JSON shape of /api/ohlcv entries.
type bar struct {
	Time   int64   `json:"time"` // unix seconds, bucket start
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type holding struct {
	Currency    string `json:"currency"`
	Balance     number `json:"balance"`
	AvgBuyPrice number `json:"avg_buy_price"`
	ValueKRW    number `json:"value_krw"`
}

type accountSummary struct {
	Message        string    `json:"message,omitempty"`
	AccountSummary []holding `json:"account_summary"`
}

type setKeysRequest struct {
	IsMockTrade bool   `json:"is_mock_trade"`
	AccessKey   string `json:"access_key"`
	SecretKey   string `json:"secret_key"`
}

func toHoldings(in []holding) []model.Holding {
	out := make([]model.Holding, 0, len(in))
	for _, h := range in {
		if h.Currency == "" {
			continue
		}
		out = append(out, model.Holding{
			Currency:        strings.ToUpper(h.Currency),
			Balance:         h.Balance.Float(),
			AvgBuyPrice:     h.AvgBuyPrice.Float(),
			ValueAtSnapshot: h.ValueKRW.Float(),
		})
	}
	return out
}

func decodeJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
