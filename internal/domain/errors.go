package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrWalletNotFound distinguishes a missing wallet during settlement so
	// the engine can report the bet-level failure precisely.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrBetNotPending is returned when a settlement write finds the bet
	// already in a terminal state (concurrent modification).
	ErrBetNotPending   = errors.New("bet is not pending")
	ErrMarketNotOpen   = errors.New("market is not open")
	ErrMarketResulted  = errors.New("market already resulted")
	ErrEventNotInState = errors.New("event not in expected state")
)
