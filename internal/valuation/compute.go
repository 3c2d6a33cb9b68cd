package valuation

import (
	"strings"

	"MarketLens/internal/model"
)

// Compute derives the account valuation from holdings and the latest price per
// market symbol. It is a pure function: the totals are always sums of the
// per-asset rows it returns.
func Compute(quote string, holdings []model.Holding, prices map[string]float64) model.Valuation {
	v := model.Valuation{Assets: make([]model.AssetValuation, 0, len(holdings))}

	for _, h := range holdings {
		a := model.AssetValuation{
			Currency:    h.Currency,
			Balance:     h.Balance,
			AvgBuyPrice: h.AvgBuyPrice,
		}
		if isQuote(quote, h.Currency) {
			a.Cost = h.Balance
			a.CurrentValue = h.Balance
		} else {
			a.Symbol = model.MarketSymbol(quote, h.Currency)
			a.Cost = h.Balance * h.AvgBuyPrice
			a.CurrentValue = h.ValueAtSnapshot
			roi := 0.0
			if price, ok := prices[a.Symbol]; ok {
				a.CurrentValue = h.Balance * price
				a.Live = true
				if h.AvgBuyPrice > 0 {
					roi = (price - h.AvgBuyPrice) / h.AvgBuyPrice * 100
				}
			}
			a.ROI = &roi
		}
		v.TotalValue += a.CurrentValue
		v.TotalCost += a.Cost
		v.Assets = append(v.Assets, a)
	}

	v.TotalPnL = v.TotalValue - v.TotalCost
	if v.TotalCost > 0 {
		v.TotalROI = v.TotalPnL / v.TotalCost * 100
	}
	return v
}

func isQuote(quote, currency string) bool {
	return strings.EqualFold(quote, currency)
}
