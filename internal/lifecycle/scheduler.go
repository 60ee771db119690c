// Package lifecycle drives events through their state machine with periodic,
// idempotent sweeps: lock markets at kickoff, freeze events past their
// projected end, then resolve and settle once the oracle reaches a verdict.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poolhouse/poolbet/internal/domain"
	"github.com/poolhouse/poolbet/internal/metrics"
	"github.com/poolhouse/poolbet/internal/source"
)

// ConsensusEngine produces a verdict for a fixture, or nil when no
// trustworthy verdict exists yet.
type ConsensusEngine interface {
	Resolve(ctx context.Context, homeTeam, awayTeam string, sess *source.Session) (*domain.ConsensusResult, error)
}

// MarketSettler applies payouts for one resolved market.
type MarketSettler interface {
	SettleMarket(ctx context.Context, market domain.Market, winningOutcome string) (*domain.SettlementReport, error)
}

// Notifier forwards operational alerts. notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the sweep intervals and the result batch cap.
type Config struct {
	LockInterval   time.Duration
	FreezeInterval time.Duration
	ResultInterval time.Duration
	// ResultBatchLimit caps how many candidate events one resulting sweep
	// processes.
	ResultBatchLimit int
	// RequestsPerSecond bounds outbound requests per source host during a
	// resulting sweep.
	RequestsPerSecond float64
}

// Scheduler owns the three periodic sweeps. It assumes it is the only active
// instance against the store; the per-task busy flags below are in-process
// guards only.
type Scheduler struct {
	cfg      Config
	events   domain.EventStore
	oracle   ConsensusEngine
	judge    domain.OutcomeDeterminer
	settler  MarketSettler
	bus      domain.SignalBus
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger

	newSession func() (*source.Session, error)
	now        func() time.Time

	lockBusy   atomic.Bool
	freezeBusy atomic.Bool
	resultBusy atomic.Bool
}

// New creates a scheduler. bus, notifier, and metrics may be nil.
func New(cfg Config, events domain.EventStore, oracle ConsensusEngine, judge domain.OutcomeDeterminer, settler MarketSettler, bus domain.SignalBus, notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if cfg.LockInterval <= 0 {
		cfg.LockInterval = 10 * time.Second
	}
	if cfg.FreezeInterval <= 0 {
		cfg.FreezeInterval = 10 * time.Second
	}
	if cfg.ResultInterval <= 0 {
		cfg.ResultInterval = 30 * time.Second
	}
	if cfg.ResultBatchLimit <= 0 {
		cfg.ResultBatchLimit = 50
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	return &Scheduler{
		cfg:        cfg,
		events:     events,
		oracle:     oracle,
		judge:      judge,
		settler:    settler,
		bus:        bus,
		notifier:   notifier,
		metrics:    m,
		logger:     logger.With("component", "lifecycle"),
		newSession: func() (*source.Session, error) { return source.NewSession(cfg.RequestsPerSecond) },
		now:        time.Now,
	}
}

// Run starts all three sweep loops and blocks until the context is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loop(gctx, "lock", s.cfg.LockInterval, &s.lockBusy, s.SweepLock)
	})
	g.Go(func() error {
		return s.loop(gctx, "freeze", s.cfg.FreezeInterval, &s.freezeBusy, s.SweepFreeze)
	})
	g.Go(func() error {
		return s.loop(gctx, "result", s.cfg.ResultInterval, &s.resultBusy, s.SweepResults)
	})
	return g.Wait()
}

// loop runs one sweep on a repeating interval until the context is
// cancelled.
func (s *Scheduler) loop(ctx context.Context, task string, interval time.Duration, busy *atomic.Bool, sweep func(context.Context) error) error {
	// Run immediately on start.
	s.runGuarded(ctx, task, busy, sweep)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep loop stopped", "task", task)
			return ctx.Err()
		case <-ticker.C:
			s.runGuarded(ctx, task, busy, sweep)
		}
	}
}

// runGuarded drops the tick when the previous run of the same task is still
// executing. Skipping a cycle is cheaper than unbounded overlap; the next
// tick retries.
func (s *Scheduler) runGuarded(ctx context.Context, task string, busy *atomic.Bool, sweep func(context.Context) error) {
	if !busy.CompareAndSwap(false, true) {
		s.logger.Warn("previous sweep still running, dropping tick", "task", task)
		s.metrics.SweepSkipped(task)
		return
	}
	defer busy.Store(false)

	start := s.now()
	if err := sweep(ctx); err != nil {
		s.logger.Error("sweep failed", "task", task, "error", err)
	}
	s.metrics.SweepRan(task, s.now().Sub(start))
}

// SweepLock moves SCHEDULED events past kickoff to IN_PLAY, locking their
// markets in the same transaction.
func (s *Scheduler) SweepLock(ctx context.Context) error {
	due, err := s.events.ListScheduledStartedBefore(ctx, s.now())
	if err != nil {
		return fmt.Errorf("lifecycle: list due events: %w", err)
	}

	changed := false
	for _, ev := range due {
		if err := s.events.BeginPlay(ctx, ev.ID); err != nil {
			s.logger.Error("event lock failed", "event_id", ev.ID, "error", err)
			continue
		}
		changed = true
		s.logger.Info("event in play",
			"event_id", ev.ID, "home", ev.HomeTeam, "away", ev.AwayTeam)
	}
	if changed {
		s.publish(ctx, "events.changed", map[string]string{"reason": "locked"})
	}
	return nil
}

// SweepFreeze moves IN_PLAY events past their projected end to
// AWAITING_RESULTS so the resulting sweep starts polling for them.
func (s *Scheduler) SweepFreeze(ctx context.Context) error {
	due, err := s.events.ListInPlayEndedBefore(ctx, s.now())
	if err != nil {
		return fmt.Errorf("lifecycle: list ended events: %w", err)
	}

	changed := false
	for _, ev := range due {
		if err := s.events.MarkAwaitingResults(ctx, ev.ID); err != nil {
			s.logger.Error("event freeze failed", "event_id", ev.ID, "error", err)
			continue
		}
		changed = true
		s.logger.Info("event awaiting results",
			"event_id", ev.ID, "home", ev.HomeTeam, "away", ev.AwayTeam)
	}
	if changed {
		s.publish(ctx, "events.changed", map[string]string{"reason": "awaiting_results"})
	}
	return nil
}

// SweepResults resolves candidate events: consensus, outcome determination,
// atomic market resolution, then settlement. One shared scraping session
// backs the whole batch and is always released, even when individual events
// fail.
func (s *Scheduler) SweepResults(ctx context.Context) error {
	candidates, err := s.events.ListResultCandidates(ctx, s.cfg.ResultBatchLimit)
	if err != nil {
		return fmt.Errorf("lifecycle: list result candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	sess, err := s.newSession()
	if err != nil {
		return fmt.Errorf("lifecycle: session: %w", err)
	}
	defer sess.Close()

	for _, ev := range candidates {
		if err := s.resolveEvent(ctx, ev, sess); err != nil {
			s.logger.Error("event resolution failed",
				"event_id", ev.ID, "home", ev.HomeTeam, "away", ev.AwayTeam, "error", err)
		}
	}
	return nil
}

// resolveEvent runs the full resolution of a single candidate. A nil error
// with no state change means no verdict yet; the event stays in
// AWAITING_RESULTS and the next sweep retries.
func (s *Scheduler) resolveEvent(ctx context.Context, ev domain.Event, sess *source.Session) error {
	names := ev.UnresolvedMarketNames()
	if len(names) == 0 {
		return nil
	}

	res, err := s.oracle.Resolve(ctx, ev.HomeTeam, ev.AwayTeam, sess)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	s.metrics.ConsensusVerdict()

	verdicts, err := s.judge.SettleMarkets(ctx, *res, names)
	if err != nil {
		return err
	}
	if len(verdicts) == 0 {
		s.logger.Warn("outcome determination returned nothing",
			"event_id", ev.ID, "provenance", res.Provenance)
		return nil
	}

	// The judge is untrusted: only verdicts naming one of the event's own
	// unresolved markets count.
	byName := make(map[string]domain.Market, len(ev.Markets))
	for _, m := range ev.Markets {
		if m.Status != domain.MarketStatusResulted {
			byName[m.Name] = m
		}
	}

	outcomes := make(map[string]string)
	resolved := make([]resolvedMarket, 0, len(verdicts))
	for _, v := range verdicts {
		m, ok := byName[v.MarketName]
		if !ok {
			s.logger.Warn("ignoring verdict for unknown market",
				"event_id", ev.ID, "market", v.MarketName)
			continue
		}
		outcomes[m.ID] = v.WinningOutcome
		resolved = append(resolved, resolvedMarket{market: m, outcome: v.WinningOutcome})
	}
	if len(outcomes) == 0 {
		return nil
	}

	if err := s.events.ApplyResolution(ctx, ev.ID, outcomes); err != nil {
		return err
	}
	s.logger.Info("event resolved",
		"event_id", ev.ID,
		"home", ev.HomeTeam, "away", ev.AwayTeam,
		"provenance", res.Provenance,
		"markets", len(outcomes))

	for _, rm := range resolved {
		s.metrics.MarketResulted()
		s.settle(ctx, rm)
	}

	s.publish(ctx, "events.changed", map[string]string{"reason": "resolved", "event_id": ev.ID})
	s.notify(ctx, "event_resolved",
		fmt.Sprintf("%s vs %s resolved", ev.HomeTeam, ev.AwayTeam),
		res.Provenance)
	return nil
}

type resolvedMarket struct {
	market  domain.Market
	outcome string
}

// settle pays out one resolved market. Settlement failure is isolated: the
// market is already RESULTED and sibling markets proceed regardless.
func (s *Scheduler) settle(ctx context.Context, rm resolvedMarket) {
	report, err := s.settler.SettleMarket(ctx, rm.market, rm.outcome)
	if err != nil {
		s.logger.Error("market settlement failed",
			"market_id", rm.market.ID, "market", rm.market.Name, "error", err)
		return
	}

	for _, b := range report.Bets {
		payout, _ := b.Payout.Float64()
		s.metrics.BetSettled(string(b.Status), payout)
	}

	s.publish(ctx, "markets.resulted", map[string]string{
		"event_id":  rm.market.EventID,
		"market_id": rm.market.ID,
		"market":    rm.market.Name,
		"outcome":   rm.outcome,
	})
}

// publish sends a fire-and-forget change signal; delivery failures are
// logged only.
func (s *Scheduler) publish(ctx context.Context, channel string, payload map[string]string) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, channel, data); err != nil {
		s.logger.Warn("signal publish failed", "channel", channel, "error", err)
	}
}

func (s *Scheduler) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.Warn("notification failed", "event", event, "error", err)
	}
}
