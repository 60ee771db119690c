// Package settlement turns a resolved market's pool into payouts: winners
// split the losing pool pro-rata to their stake and get their own stake back.
package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/poolhouse/poolbet/internal/domain"
)

// Engine settles the pending bets of resolved markets. Per-bet failures are
// isolated: a missing wallet or concurrent modification on one bet never
// blocks the rest of the market.
type Engine struct {
	bets     domain.BetStore
	archiver domain.SettlementArchiver
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates a settlement engine. archiver may be nil, in which case
// reports are only logged.
func NewEngine(bets domain.BetStore, archiver domain.SettlementArchiver, logger *slog.Logger) *Engine {
	return &Engine{
		bets:     bets,
		archiver: archiver,
		logger:   logger.With("component", "settlement"),
		now:      time.Now,
	}
}

// SettleMarket applies payouts for a market whose winning outcome is known.
// For a VOID market every pending bet is refunded its stake. Otherwise
// winners receive stake + (stake/winningPool) x losingPool and losers
// receive nothing. The returned report reflects what was actually written,
// including per-bet failures.
func (e *Engine) SettleMarket(ctx context.Context, market domain.Market, winningOutcome string) (*domain.SettlementReport, error) {
	pending, err := e.bets.ListPending(ctx, market.ID)
	if err != nil {
		return nil, err
	}

	report := &domain.SettlementReport{
		MarketID:       market.ID,
		EventID:        market.EventID,
		MarketName:     market.Name,
		WinningOutcome: winningOutcome,
		SettledAt:      e.now(),
	}

	if winningOutcome == domain.OutcomeVoid {
		e.refund(ctx, pending, report)
	} else {
		e.payout(ctx, pending, winningOutcome, report)
	}

	e.archive(ctx, report)

	e.logger.Info("market settled",
		"market_id", market.ID,
		"market", market.Name,
		"outcome", winningOutcome,
		"bets", len(report.Bets),
		"failures", report.Failures,
		"total_pool", report.TotalPool)
	return report, nil
}

// payout distributes the losing pool to the winners.
func (e *Engine) payout(ctx context.Context, pending []domain.Bet, winningOutcome string, report *domain.SettlementReport) {
	totalPool := decimal.Zero
	winningPool := decimal.Zero
	for _, b := range pending {
		totalPool = totalPool.Add(b.Stake)
		if b.Outcome == winningOutcome {
			winningPool = winningPool.Add(b.Stake)
		}
	}
	losingPool := totalPool.Sub(winningPool)

	report.TotalPool = totalPool
	report.WinningPool = winningPool
	report.LosingPool = losingPool

	if winningPool.IsZero() && totalPool.IsPositive() {
		// Nobody backed the winning outcome. The losing pool is not
		// redistributed; every bet is simply lost.
		e.logger.Warn("no winning bets, losing pool is not distributed",
			"market_id", report.MarketID, "losing_pool", losingPool)
	}

	for _, b := range pending {
		status := domain.BetStatusLost
		payout := decimal.Zero
		if b.Outcome == winningOutcome {
			status = domain.BetStatusWon
			payout = b.Stake.Add(b.Stake.Div(winningPool).Mul(losingPool)).Round(2)
		}
		e.apply(ctx, b, status, payout, report)
	}
}

// refund returns every pending stake on a void market.
func (e *Engine) refund(ctx context.Context, pending []domain.Bet, report *domain.SettlementReport) {
	for _, b := range pending {
		report.TotalPool = report.TotalPool.Add(b.Stake)
		e.apply(ctx, b, domain.BetStatusVoid, b.Stake, report)
	}
}

// apply writes one bet's terminal state, recording rather than propagating
// failure.
func (e *Engine) apply(ctx context.Context, b domain.Bet, status domain.BetStatus, payout decimal.Decimal, report *domain.SettlementReport) {
	if err := e.bets.Settle(ctx, b.ID, status, payout); err != nil {
		report.Failures++
		e.logger.Error("bet settlement failed",
			"bet_id", b.ID, "user_id", b.UserID, "status", status, "error", err)
		return
	}
	report.Bets = append(report.Bets, domain.SettledBet{
		BetID:  b.ID,
		UserID: b.UserID,
		Stake:  b.Stake,
		Status: status,
		Payout: payout,
	})
}

// archive ships the report to cold storage. Archival is an audit concern;
// failure is logged and does not fail the settlement.
func (e *Engine) archive(ctx context.Context, report *domain.SettlementReport) {
	if e.archiver == nil {
		return
	}
	if err := e.archiver.ArchiveSettlement(ctx, *report); err != nil {
		e.logger.Error("settlement report archival failed",
			"market_id", report.MarketID, "error", err)
	}
}
