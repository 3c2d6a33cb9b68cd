package model

// Holding is one asset in the account snapshot, including the quote currency.
type Holding struct {
	Currency        string
	Balance         float64
	AvgBuyPrice     float64
	ValueAtSnapshot float64 // backend valuation hint, used until a live price is cached
}

// AssetValuation is the derived per-asset view.
type AssetValuation struct {
	Currency     string
	Symbol       string // market symbol; empty for the quote currency
	Balance      float64
	AvgBuyPrice  float64
	Cost         float64
	CurrentValue float64
	ROI          *float64 // nil for the quote currency
	Live         bool     // CurrentValue came from a streamed price
}

// PnL is CurrentValue minus Cost.
func (a AssetValuation) PnL() float64 { return a.CurrentValue - a.Cost }

// Valuation is the derived account view. It is never stored, only recomputed.
type Valuation struct {
	Assets     []AssetValuation
	TotalValue float64
	TotalCost  float64
	TotalPnL   float64
	TotalROI   float64
}
