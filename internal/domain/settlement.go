package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettledBet records the final state of one bet inside a settlement report.
type SettledBet struct {
	BetID  string          `json:"bet_id"`
	UserID string          `json:"user_id"`
	Stake  decimal.Decimal `json:"stake"`
	Status BetStatus       `json:"status"`
	Payout decimal.Decimal `json:"payout"`
}

// SettlementReport is the audit record produced when a market's pool is
// settled. Reports are archived to object storage; they are not the source
// of truth, the bet and wallet rows are.
type SettlementReport struct {
	MarketID       string          `json:"market_id"`
	EventID        string          `json:"event_id"`
	MarketName     string          `json:"market_name"`
	WinningOutcome string          `json:"winning_outcome"`
	TotalPool      decimal.Decimal `json:"total_pool"`
	WinningPool    decimal.Decimal `json:"winning_pool"`
	LosingPool     decimal.Decimal `json:"losing_pool"`
	Bets           []SettledBet    `json:"bets"`
	Failures       int             `json:"failures"`
	SettledAt      time.Time       `json:"settled_at"`
}
