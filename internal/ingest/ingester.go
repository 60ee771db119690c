// Package ingest discovers the day's fixtures from a listing source and
// upserts them as events with generated markets. The external id derived
// from team names and date makes repeated runs idempotent.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/poolhouse/poolbet/internal/domain"
	"github.com/poolhouse/poolbet/internal/metrics"
	"github.com/poolhouse/poolbet/internal/source"
)

// defaultMarkets are used when the market generator is unavailable or
// returns nothing. A match with no markets cannot take bets.
var defaultMarkets = []domain.GeneratedMarket{
	{Name: "Match Result", Outcomes: []string{"Home Win", "Draw", "Away Win"}},
}

// Ingester runs periodic fixture discovery sweeps.
type Ingester struct {
	lister    source.Lister
	events    domain.EventStore
	generator domain.MarketGenerator

	sports        []string
	matchDuration time.Duration

	newSession func() (*source.Session, error)
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New creates an ingester. generator may be nil; defaultMarkets are used
// instead. matchDuration is the projected time from kickoff to full time.
func New(lister source.Lister, events domain.EventStore, generator domain.MarketGenerator, sports []string, matchDuration time.Duration, m *metrics.Metrics, logger *slog.Logger) *Ingester {
	if matchDuration <= 0 {
		matchDuration = 2 * time.Hour
	}
	if len(sports) == 0 {
		sports = []string{"football"}
	}
	return &Ingester{
		lister:        lister,
		events:        events,
		generator:     generator,
		sports:        sports,
		matchDuration: matchDuration,
		newSession:    func() (*source.Session, error) { return source.NewSession(2) },
		logger:        logger.With("component", "ingest"),
		metrics:       m,
		now:           time.Now,
	}
}

// RunLoop runs ingestion sweeps on a repeating interval until the context is
// cancelled.
func (in *Ingester) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}

	// Run immediately on start.
	if err := in.Sweep(ctx); err != nil {
		in.logger.Error("ingestion sweep failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("ingestion loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := in.Sweep(ctx); err != nil {
				in.logger.Error("ingestion sweep failed", "error", err)
			}
		}
	}
}

// Sweep lists fixtures for every configured sport and stores the new ones.
// Per-fixture failures are logged and do not stop the sweep.
func (in *Ingester) Sweep(ctx context.Context) error {
	sess, err := in.newSession()
	if err != nil {
		return fmt.Errorf("ingest: session: %w", err)
	}
	defer sess.Close()

	for _, sport := range in.sports {
		fixtures, err := in.lister.ListFixtures(ctx, sport, sess)
		if err != nil {
			in.logger.Error("fixture listing failed", "sport", sport, "error", err)
			continue
		}
		in.logger.Info("fixtures listed", "sport", sport, "count", len(fixtures))

		for _, fx := range fixtures {
			if err := in.store(ctx, sport, fx); err != nil {
				in.logger.Error("fixture ingestion failed",
					"home", fx.HomeTeam, "away", fx.AwayTeam, "error", err)
			}
		}
	}
	return nil
}

// store upserts one fixture. Existing events are left alone; the lifecycle
// scheduler owns their status from creation onward.
func (in *Ingester) store(ctx context.Context, sport string, fx source.Fixture) error {
	if fx.HomeTeam == "" || fx.AwayTeam == "" {
		return nil
	}

	now := in.now()
	start, started := ParseTimeText(fx.TimeText, now)
	externalID := ExternalID(fx.HomeTeam, fx.AwayTeam, start)

	if _, err := in.events.GetByExternalID(ctx, externalID); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	status := domain.EventStatusScheduled
	if started {
		status = domain.EventStatusInPlay
	}

	ev := domain.Event{
		ExternalID:   externalID,
		HomeTeam:     fx.HomeTeam,
		AwayTeam:     fx.AwayTeam,
		Sport:        sport,
		StartTime:    start,
		ProjectedEnd: start.Add(in.matchDuration),
		Status:       status,
	}

	markets := in.generateMarkets(ctx, ev)

	created, err := in.events.Create(ctx, ev, markets)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Another sweep won the race; the unique external id did its job.
		return nil
	}
	if err != nil {
		return err
	}

	in.metrics.EventIngested()
	in.logger.Info("event ingested",
		"event_id", created.ID,
		"external_id", externalID,
		"status", status,
		"markets", len(markets))
	return nil
}

func (in *Ingester) generateMarkets(ctx context.Context, ev domain.Event) []domain.GeneratedMarket {
	if in.generator == nil {
		return defaultMarkets
	}
	markets, err := in.generator.GenerateMarkets(ctx, ev)
	if err != nil || len(markets) == 0 {
		in.logger.Warn("market generation fell back to defaults",
			"home", ev.HomeTeam, "away", ev.AwayTeam, "error", err)
		return defaultMarkets
	}
	return markets
}

// sanitizeRe keeps only letters and digits for the external id.
var sanitizeRe = regexp.MustCompile(`[^a-z0-9]+`)

// ExternalID derives the stable upsert key for a fixture:
// "homename-vs-awayname-YYYY-MM-DD". The date comes from the parsed start
// time so that a live match discovered mid-play keys to the same event as
// the scheduled listing did.
func ExternalID(homeTeam, awayTeam string, start time.Time) string {
	sanitize := func(s string) string {
		return sanitizeRe.ReplaceAllString(strings.ToLower(s), "")
	}
	return fmt.Sprintf("%s-vs-%s-%s",
		sanitize(homeTeam), sanitize(awayTeam), start.UTC().Format("2006-01-02"))
}

var (
	startedMarkers = []string{"finished", "after", "live", "ft", "pen", "aet", "ended", "full time", "ht"}
	scoreTokenRe   = regexp.MustCompile(`\d+\s*[-:]\s*\d+`)
	clockRe        = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// ParseTimeText turns a fixture row's free-text schedule column into a start
// time. The column is unreliable: finished markers mean the match started
// roughly a full match ago, a visible score means it is under way, and a bare
// HH:MM is today's kickoff. started reports whether the match is already in
// play.
func ParseTimeText(timeText string, now time.Time) (start time.Time, started bool) {
	text := strings.TrimSpace(timeText)
	lower := strings.ToLower(text)

	for _, marker := range startedMarkers {
		if containsWord(lower, marker) {
			return now.Add(-2 * time.Hour), true
		}
	}

	if m := clockRe.FindStringSubmatch(text); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if hh <= 23 && mm <= 59 {
			return time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location()), false
		}
	}

	if scoreTokenRe.MatchString(text) {
		return now.Add(-time.Hour), true
	}

	return now, false
}

// containsWord reports whether lower contains marker as a whole word or
// phrase.
func containsWord(lower, marker string) bool {
	idx := strings.Index(lower, marker)
	for idx >= 0 {
		before := idx == 0 || !isAlnum(lower[idx-1])
		afterIdx := idx + len(marker)
		after := afterIdx >= len(lower) || !isAlnum(lower[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(lower[idx+1:], marker)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
