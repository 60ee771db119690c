package domain

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// EventStore persists events and their markets. Multi-row writes that must be
// atomic (event status + market locks, resolution) are single methods backed
// by one transaction so a crash mid-sweep cannot split them.
type EventStore interface {
	// Create inserts an event together with its markets. It returns
	// ErrAlreadyExists when an event with the same external id is present.
	Create(ctx context.Context, ev Event, markets []GeneratedMarket) (Event, error)

	GetByExternalID(ctx context.Context, externalID string) (Event, error)
	GetByID(ctx context.Context, id string) (Event, error)

	// ListScheduledStartedBefore returns SCHEDULED events whose start time is
	// at or before t.
	ListScheduledStartedBefore(ctx context.Context, t time.Time) ([]Event, error)

	// ListInPlayEndedBefore returns IN_PLAY events whose projected end is at
	// or before t.
	ListInPlayEndedBefore(ctx context.Context, t time.Time) ([]Event, error)

	// ListResultCandidates returns up to limit events in AWAITING_RESULTS or
	// FINISHED that still have at least one non-RESULTED market, most
	// recently updated first, with markets populated.
	ListResultCandidates(ctx context.Context, limit int) ([]Event, error)

	// BeginPlay atomically moves a SCHEDULED event to IN_PLAY and all of its
	// OPEN markets to LOCKED.
	BeginPlay(ctx context.Context, eventID string) error

	// MarkAwaitingResults moves an IN_PLAY event to AWAITING_RESULTS.
	MarkAwaitingResults(ctx context.Context, eventID string) error

	// ApplyResolution atomically moves the event to FINISHED and assigns the
	// winning outcome to each listed market, skipping markets that are
	// already RESULTED.
	ApplyResolution(ctx context.Context, eventID string, outcomes map[string]string) error

	// Listing queries for the status API. Sport filters when non-empty.
	ListUpcoming(ctx context.Context, sport string) ([]Event, error)
	ListLive(ctx context.Context, sport string) ([]Event, error)
	ListFinished(ctx context.Context, sport string, limit int) ([]Event, error)
}

// MarketStore reads markets independently of their parent event.
type MarketStore interface {
	GetByID(ctx context.Context, id string) (Market, error)
	ListByEvent(ctx context.Context, eventID string) ([]Market, error)
}

// BetStore reads pending bets and applies settlement writes. Settle updates
// the bet row and credits the wallet in one transaction; a payout of zero
// skips the wallet write.
type BetStore interface {
	ListPending(ctx context.Context, marketID string) ([]Bet, error)
	Settle(ctx context.Context, betID string, status BetStatus, payout decimal.Decimal) error
}

// OutcomeDeterminer is the external oracle boundary that turns a consensus
// result into per-market winning outcomes. Responses are untrusted: callers
// must ignore unknown market names and treat empty output as a no-op.
type OutcomeDeterminer interface {
	SettleMarkets(ctx context.Context, res ConsensusResult, marketNames []string) ([]MarketVerdict, error)
}

// MarketGenerator proposes bettable markets for a newly ingested event.
type MarketGenerator interface {
	GenerateMarkets(ctx context.Context, ev Event) ([]GeneratedMarket, error)
}

// SignalBus publishes and subscribes to fire-and-forget change signals for
// downstream subscribers. Delivery is not part of correctness.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// SettlementArchiver persists settlement reports to cold storage for audit.
type SettlementArchiver interface {
	ArchiveSettlement(ctx context.Context, report SettlementReport) error
}
