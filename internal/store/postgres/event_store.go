package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poolhouse/poolbet/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

const eventCols = `id, external_id, home_team, away_team, sport,
	start_time, projected_end, status, created_at, updated_at`

// scanEvent scans a single event row into a domain.Event.
func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	var status string
	err := row.Scan(
		&e.ID, &e.ExternalID, &e.HomeTeam, &e.AwayTeam, &e.Sport,
		&e.StartTime, &e.ProjectedEnd, &status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return domain.Event{}, err
	}
	e.Status = domain.EventStatus(status)
	return e, nil
}

// Create inserts an event together with its generated markets in a single
// transaction. A concurrent ingestion run inserting the same external id
// loses the race and gets domain.ErrAlreadyExists.
func (s *EventStore) Create(ctx context.Context, ev domain.Event, markets []domain.GeneratedMarket) (domain.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Event{}, fmt.Errorf("postgres: begin create event: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO events (
			id, external_id, home_team, away_team, sport,
			start_time, projected_end, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_id) DO NOTHING`,
		ev.ID, ev.ExternalID, ev.HomeTeam, ev.AwayTeam, ev.Sport,
		ev.StartTime, ev.ProjectedEnd, string(domain.EventStatusScheduled),
	)
	if err != nil {
		return domain.Event{}, fmt.Errorf("postgres: insert event %s: %w", ev.ExternalID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Event{}, domain.ErrAlreadyExists
	}

	ev.Status = domain.EventStatusScheduled
	for _, gm := range markets {
		m := domain.Market{
			ID:       uuid.New().String(),
			EventID:  ev.ID,
			Name:     gm.Name,
			Outcomes: gm.Outcomes,
			Status:   domain.MarketStatusOpen,
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO markets (id, event_id, name, outcomes, status)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (event_id, name) DO NOTHING`,
			m.ID, m.EventID, m.Name, m.Outcomes, string(m.Status),
		)
		if err != nil {
			return domain.Event{}, fmt.Errorf("postgres: insert market %q for event %s: %w", m.Name, ev.ExternalID, err)
		}
		ev.Markets = append(ev.Markets, m)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Event{}, fmt.Errorf("postgres: commit create event: %w", err)
	}
	return ev, nil
}

// GetByExternalID retrieves an event by its stable external key.
func (s *EventStore) GetByExternalID(ctx context.Context, externalID string) (domain.Event, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+eventCols+` FROM events WHERE external_id = $1`, externalID)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("postgres: get event by external id %s: %w", externalID, err)
	}
	return e, nil
}

// GetByID retrieves an event by primary key, markets included.
func (s *EventStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+eventCols+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("postgres: get event %s: %w", id, err)
	}
	if err := s.attachMarkets(ctx, []*domain.Event{&e}); err != nil {
		return domain.Event{}, err
	}
	return e, nil
}

// ListScheduledStartedBefore returns SCHEDULED events whose start time has
// passed.
func (s *EventStore) ListScheduledStartedBefore(ctx context.Context, t time.Time) ([]domain.Event, error) {
	return s.list(ctx, `
		SELECT `+eventCols+` FROM events
		WHERE status = $1 AND start_time <= $2
		ORDER BY start_time ASC`,
		string(domain.EventStatusScheduled), t)
}

// ListInPlayEndedBefore returns IN_PLAY events whose projected end has passed.
func (s *EventStore) ListInPlayEndedBefore(ctx context.Context, t time.Time) ([]domain.Event, error) {
	return s.list(ctx, `
		SELECT `+eventCols+` FROM events
		WHERE status = $1 AND projected_end <= $2
		ORDER BY projected_end ASC`,
		string(domain.EventStatusInPlay), t)
}

// ListResultCandidates returns events awaiting a verdict that still have at
// least one unresolved market, most recently updated first. Markets are
// populated. The limit keeps old finished events from being rescanned
// forever.
func (s *EventStore) ListResultCandidates(ctx context.Context, limit int) ([]domain.Event, error) {
	events, err := s.list(ctx, `
		SELECT `+eventCols+` FROM events e
		WHERE e.status = ANY($1)
		  AND EXISTS (
			SELECT 1 FROM markets m
			WHERE m.event_id = e.id AND m.status <> $2
		  )
		ORDER BY e.updated_at DESC
		LIMIT $3`,
		[]string{string(domain.EventStatusAwaitingResults), string(domain.EventStatusFinished)},
		string(domain.MarketStatusResulted), limit)
	if err != nil {
		return nil, err
	}

	refs := make([]*domain.Event, len(events))
	for i := range events {
		refs[i] = &events[i]
	}
	if err := s.attachMarkets(ctx, refs); err != nil {
		return nil, err
	}
	return events, nil
}

// BeginPlay atomically moves a SCHEDULED event to IN_PLAY and locks all of
// its OPEN markets. A crash between the two writes is impossible: both happen
// in one transaction or not at all.
func (s *EventStore) BeginPlay(ctx context.Context, eventID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin play tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE events SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(domain.EventStatusInPlay), eventID, string(domain.EventStatusScheduled),
	)
	if err != nil {
		return fmt.Errorf("postgres: event %s to in-play: %w", eventID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotInState
	}

	if _, err := tx.Exec(ctx, `
		UPDATE markets SET status = $1, updated_at = NOW()
		WHERE event_id = $2 AND status = $3`,
		string(domain.MarketStatusLocked), eventID, string(domain.MarketStatusOpen),
	); err != nil {
		return fmt.Errorf("postgres: lock markets for event %s: %w", eventID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit begin play: %w", err)
	}
	return nil
}

// MarkAwaitingResults moves an IN_PLAY event to AWAITING_RESULTS.
func (s *EventStore) MarkAwaitingResults(ctx context.Context, eventID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE events SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(domain.EventStatusAwaitingResults), eventID, string(domain.EventStatusInPlay),
	)
	if err != nil {
		return fmt.Errorf("postgres: event %s to awaiting results: %w", eventID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotInState
	}
	return nil
}

// ApplyResolution atomically finishes the event and assigns winning outcomes
// to the listed markets. Markets that are already RESULTED are left
// untouched, which makes re-running the resolution sweep idempotent.
func (s *EventStore) ApplyResolution(ctx context.Context, eventID string, outcomes map[string]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin resolution tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE events SET status = $1, updated_at = NOW()
		WHERE id = $2`,
		string(domain.EventStatusFinished), eventID,
	); err != nil {
		return fmt.Errorf("postgres: event %s to finished: %w", eventID, err)
	}

	for marketID, outcome := range outcomes {
		if _, err := tx.Exec(ctx, `
			UPDATE markets SET status = $1, winning_outcome = $2, updated_at = NOW()
			WHERE id = $3 AND event_id = $4 AND status <> $1`,
			string(domain.MarketStatusResulted), outcome, marketID, eventID,
		); err != nil {
			return fmt.Errorf("postgres: result market %s: %w", marketID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit resolution: %w", err)
	}
	return nil
}

// ListUpcoming returns SCHEDULED events, soonest first.
func (s *EventStore) ListUpcoming(ctx context.Context, sport string) ([]domain.Event, error) {
	return s.listWithMarkets(ctx, domain.EventStatusScheduled, sport, "start_time ASC", 0)
}

// ListLive returns IN_PLAY events, latest starters first.
func (s *EventStore) ListLive(ctx context.Context, sport string) ([]domain.Event, error) {
	return s.listWithMarkets(ctx, domain.EventStatusInPlay, sport, "start_time DESC", 0)
}

// ListFinished returns FINISHED events, most recent first.
func (s *EventStore) ListFinished(ctx context.Context, sport string, limit int) ([]domain.Event, error) {
	return s.listWithMarkets(ctx, domain.EventStatusFinished, sport, "start_time DESC", limit)
}

func (s *EventStore) listWithMarkets(ctx context.Context, status domain.EventStatus, sport, order string, limit int) ([]domain.Event, error) {
	query := `SELECT ` + eventCols + ` FROM events WHERE status = $1`
	args := []any{string(status)}
	if sport != "" && sport != "all" {
		query += ` AND sport = $2`
		args = append(args, sport)
	}
	query += ` ORDER BY ` + order
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	events, err := s.list(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	refs := make([]*domain.Event, len(events))
	for i := range events {
		refs[i] = &events[i]
	}
	if err := s.attachMarkets(ctx, refs); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *EventStore) list(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate events: %w", err)
	}
	return events, nil
}

// attachMarkets loads the markets for all given events in one query.
func (s *EventStore) attachMarkets(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	ids := make([]string, len(events))
	byID := make(map[string]*domain.Event, len(events))
	for i, e := range events {
		ids[i] = e.ID
		byID[e.ID] = e
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+marketCols+` FROM markets
		WHERE event_id = ANY($1::uuid[])
		ORDER BY created_at ASC`, ids)
	if err != nil {
		return fmt.Errorf("postgres: load markets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return fmt.Errorf("postgres: scan market: %w", err)
		}
		if e, ok := byID[m.EventID]; ok {
			e.Markets = append(e.Markets, m)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: iterate markets: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.EventStore = (*EventStore)(nil)
