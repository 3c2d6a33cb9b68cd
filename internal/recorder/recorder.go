package recorder

import "time"

// Refresh kinds.
const (
	KindBars     = "bars"
	KindHoldings = "holdings"
	KindAccount  = "account"
)

// RefreshEvent is the outcome of one reconciliation attempt.
type RefreshEvent struct {
	Kind     string // KindBars, KindHoldings or KindAccount
	Key      string // series key for bar refreshes, empty otherwise
	OK       bool
	Error    string
	Count    int // bars or holdings received
	Duration time.Duration
	At       time.Time
}

// Recorder persists reconciliation diagnostics.
type Recorder interface {
	RecordRefresh(evt *RefreshEvent) error
	Close() error
}
