package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/poolhouse/poolbet/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL. The core never
// creates bets; placement belongs to the betting subsystem.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betCols = `id, user_id, market_id, outcome, stake, status, payout,
	created_at, updated_at`

// ListPending returns a market's PENDING bets in placement order.
func (s *BetStore) ListPending(ctx context.Context, marketID string) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+betCols+` FROM bets
		WHERE market_id = $1 AND status = $2
		ORDER BY created_at ASC`,
		marketID, string(domain.BetStatusPending))
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending bets for market %s: %w", marketID, err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		var b domain.Bet
		var status string
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.MarketID, &b.Outcome, &b.Stake,
			&status, &b.Payout, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		b.Status = domain.BetStatus(status)
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate bets: %w", err)
	}
	return bets, nil
}

// Settle writes a bet's terminal status and payout and credits the owner's
// wallet in the same transaction. A zero payout skips the wallet write. It
// returns domain.ErrBetNotPending when the bet was already settled and
// domain.ErrWalletNotFound when the payout has nowhere to go; in both cases
// nothing is committed.
func (s *BetStore) Settle(ctx context.Context, betID string, status domain.BetStatus, payout decimal.Decimal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin settle tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID string
	err = tx.QueryRow(ctx, `
		UPDATE bets SET status = $1, payout = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING user_id`,
		string(status), payout, betID, string(domain.BetStatusPending),
	).Scan(&userID)
	if err != nil {
		if isNoRows(err) {
			return domain.ErrBetNotPending
		}
		return fmt.Errorf("postgres: settle bet %s: %w", betID, err)
	}

	if payout.IsPositive() {
		tag, err := tx.Exec(ctx, `
			UPDATE wallets SET balance = balance + $1, updated_at = NOW()
			WHERE user_id = $2`,
			payout, userID,
		)
		if err != nil {
			return fmt.Errorf("postgres: credit wallet %s: %w", userID, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrWalletNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit settle bet %s: %w", betID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BetStore = (*BetStore)(nil)
