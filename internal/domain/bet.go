package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BetStatus represents the settlement state of a bet.
type BetStatus string

const (
	BetStatusPending BetStatus = "PENDING"
	BetStatusWon     BetStatus = "WON"
	BetStatusLost    BetStatus = "LOST"
	// BetStatusVoid marks a bet on a void market; the stake is refunded.
	BetStatusVoid BetStatus = "VOID"
)

// Bet is a stake placed on one outcome of a market. The core only reads
// PENDING bets and writes the terminal status plus payout; placement belongs
// to the betting subsystem.
type Bet struct {
	ID        string
	UserID    string
	MarketID  string
	Outcome   string
	Stake     decimal.Decimal
	Status    BetStatus
	Payout    decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Wallet holds a user's balance. The core only ever credits wallets: stakes
// were already debited at bet placement.
type Wallet struct {
	UserID    string
	Balance   decimal.Decimal
	UpdatedAt time.Time
}
