package domain

import "time"

// MarketStatus represents the lifecycle state of a market. RESULTED is
// terminal: a resulted market is never resolved again.
type MarketStatus string

const (
	MarketStatusOpen     MarketStatus = "OPEN"
	MarketStatusLocked   MarketStatus = "LOCKED"
	MarketStatusResulted MarketStatus = "RESULTED"
)

// OutcomeVoid is the sentinel winning outcome assigned when the result is
// unknowable (score missing, fixture abandoned). Void markets are refunded,
// never pool-settled.
const OutcomeVoid = "VOID"

// Market is a single bettable question scoped to an event, e.g. "Match
// Result". WinningOutcome is set if and only if Status is RESULTED.
type Market struct {
	ID             string       `json:"id"`
	EventID        string       `json:"event_id"`
	Name           string       `json:"name"` // unique within the event
	Outcomes       []string     `json:"outcomes"`
	Status         MarketStatus `json:"status"`
	WinningOutcome *string      `json:"winning_outcome,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Resulted reports whether the market has reached its terminal state.
func (m Market) Resulted() bool {
	return m.Status == MarketStatusResulted
}

// Void reports whether the market was resulted as void.
func (m Market) Void() bool {
	return m.Resulted() && m.WinningOutcome != nil && *m.WinningOutcome == OutcomeVoid
}

// GeneratedMarket is a market proposal produced by the market generator
// before it is persisted.
type GeneratedMarket struct {
	Name     string
	Outcomes []string
}
