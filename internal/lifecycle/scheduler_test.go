package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/poolhouse/poolbet/internal/domain"
	"github.com/poolhouse/poolbet/internal/source"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockEventStore struct {
	domain.EventStore

	scheduled  []domain.Event
	inPlay     []domain.Event
	candidates []domain.Event

	beginPlayErr map[string]error

	began       []string
	froze       []string
	resolutions map[string]map[string]string
}

func (m *mockEventStore) ListScheduledStartedBefore(ctx context.Context, t time.Time) ([]domain.Event, error) {
	return m.scheduled, nil
}

func (m *mockEventStore) ListInPlayEndedBefore(ctx context.Context, t time.Time) ([]domain.Event, error) {
	return m.inPlay, nil
}

func (m *mockEventStore) ListResultCandidates(ctx context.Context, limit int) ([]domain.Event, error) {
	if len(m.candidates) > limit {
		return m.candidates[:limit], nil
	}
	return m.candidates, nil
}

func (m *mockEventStore) BeginPlay(ctx context.Context, eventID string) error {
	if err := m.beginPlayErr[eventID]; err != nil {
		return err
	}
	m.began = append(m.began, eventID)
	return nil
}

func (m *mockEventStore) MarkAwaitingResults(ctx context.Context, eventID string) error {
	m.froze = append(m.froze, eventID)
	return nil
}

func (m *mockEventStore) ApplyResolution(ctx context.Context, eventID string, outcomes map[string]string) error {
	if m.resolutions == nil {
		m.resolutions = map[string]map[string]string{}
	}
	m.resolutions[eventID] = outcomes
	return nil
}

type mockOracle struct {
	result *domain.ConsensusResult
	err    error
	calls  int
}

func (m *mockOracle) Resolve(ctx context.Context, homeTeam, awayTeam string, sess *source.Session) (*domain.ConsensusResult, error) {
	m.calls++
	return m.result, m.err
}

type mockJudge struct {
	verdicts []domain.MarketVerdict
	err      error
	calls    int
}

func (m *mockJudge) SettleMarkets(ctx context.Context, res domain.ConsensusResult, marketNames []string) ([]domain.MarketVerdict, error) {
	m.calls++
	return m.verdicts, m.err
}

type mockSettler struct {
	errByMarket map[string]error
	settled     []string
}

func (m *mockSettler) SettleMarket(ctx context.Context, market domain.Market, winningOutcome string) (*domain.SettlementReport, error) {
	if err := m.errByMarket[market.ID]; err != nil {
		return nil, err
	}
	m.settled = append(m.settled, market.ID)
	return &domain.SettlementReport{MarketID: market.ID, WinningOutcome: winningOutcome}, nil
}

type mockBus struct {
	published []string
}

func (m *mockBus) Publish(ctx context.Context, channel string, payload []byte) error {
	m.published = append(m.published, channel)
	return nil
}

func (m *mockBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

func newTestScheduler(store *mockEventStore, oracle *mockOracle, judge *mockJudge, settler *mockSettler, bus *mockBus) *Scheduler {
	var sb domain.SignalBus
	if bus != nil {
		sb = bus
	}
	s := New(Config{}, store, oracle, judge, settler, sb, nil, nil, testLogger())
	s.newSession = func() (*source.Session, error) { return nil, nil }
	return s
}

func awaitingEvent(markets ...domain.Market) domain.Event {
	return domain.Event{
		ID:       "e1",
		HomeTeam: "Chelsea",
		AwayTeam: "Arsenal",
		Status:   domain.EventStatusAwaitingResults,
		Markets:  markets,
	}
}

func lockedMarket(id, name string) domain.Market {
	return domain.Market{ID: id, EventID: "e1", Name: name, Status: domain.MarketStatusLocked}
}

func TestSweepLockIsolatesFailures(t *testing.T) {
	store := &mockEventStore{
		scheduled: []domain.Event{{ID: "e1"}, {ID: "e2"}, {ID: "e3"}},
		beginPlayErr: map[string]error{
			"e2": domain.ErrEventNotInState,
		},
	}
	bus := &mockBus{}
	s := newTestScheduler(store, &mockOracle{}, &mockJudge{}, &mockSettler{}, bus)

	if err := s.SweepLock(context.Background()); err != nil {
		t.Fatalf("SweepLock: %v", err)
	}
	if len(store.began) != 2 {
		t.Errorf("locked %v, want e1 and e3 despite e2 failing", store.began)
	}
	if len(bus.published) != 1 || bus.published[0] != "events.changed" {
		t.Errorf("published = %v, want one events.changed signal", bus.published)
	}
}

func TestSweepFreeze(t *testing.T) {
	store := &mockEventStore{inPlay: []domain.Event{{ID: "e1"}}}
	s := newTestScheduler(store, &mockOracle{}, &mockJudge{}, &mockSettler{}, nil)

	if err := s.SweepFreeze(context.Background()); err != nil {
		t.Fatalf("SweepFreeze: %v", err)
	}
	if len(store.froze) != 1 || store.froze[0] != "e1" {
		t.Errorf("froze = %v, want [e1]", store.froze)
	}
}

func TestSweepResultsResolvesAndSettles(t *testing.T) {
	m1 := lockedMarket("m1", "Match Result")
	m2 := lockedMarket("m2", "Total Goals")
	store := &mockEventStore{candidates: []domain.Event{awaitingEvent(m1, m2)}}
	oracle := &mockOracle{result: &domain.ConsensusResult{
		HomeTeam: "Chelsea", AwayTeam: "Arsenal",
		Score: "2-1", Finished: true,
		Provenance: "Consensus: 2-1 (Votes: 3/4)",
	}}
	judge := &mockJudge{verdicts: []domain.MarketVerdict{
		{MarketName: "Match Result", WinningOutcome: "Home Win"},
		{MarketName: "Total Goals", WinningOutcome: "Over 2.5"},
		{MarketName: "Fabricated Market", WinningOutcome: "Yes"},
	}}
	settler := &mockSettler{}
	bus := &mockBus{}
	s := newTestScheduler(store, oracle, judge, settler, bus)

	if err := s.SweepResults(context.Background()); err != nil {
		t.Fatalf("SweepResults: %v", err)
	}

	outcomes := store.resolutions["e1"]
	if len(outcomes) != 2 {
		t.Fatalf("resolved outcomes = %v, want the 2 real markets only", outcomes)
	}
	if outcomes["m1"] != "Home Win" || outcomes["m2"] != "Over 2.5" {
		t.Errorf("outcomes = %v", outcomes)
	}
	if len(settler.settled) != 2 {
		t.Errorf("settled = %v, want both markets", settler.settled)
	}
}

func TestSweepResultsNoVerdictLeavesEventAlone(t *testing.T) {
	store := &mockEventStore{candidates: []domain.Event{awaitingEvent(lockedMarket("m1", "Match Result"))}}
	judge := &mockJudge{}
	s := newTestScheduler(store, &mockOracle{result: nil}, judge, &mockSettler{}, nil)

	if err := s.SweepResults(context.Background()); err != nil {
		t.Fatalf("SweepResults: %v", err)
	}
	if len(store.resolutions) != 0 {
		t.Errorf("resolutions = %v, want none without a verdict", store.resolutions)
	}
	if judge.calls != 0 {
		t.Errorf("judge called %d times without a verdict", judge.calls)
	}
}

func TestSweepResultsEmptyJudgeResponseIsNoOp(t *testing.T) {
	store := &mockEventStore{candidates: []domain.Event{awaitingEvent(lockedMarket("m1", "Match Result"))}}
	oracle := &mockOracle{result: &domain.ConsensusResult{Score: "2-1", Finished: true}}
	s := newTestScheduler(store, oracle, &mockJudge{}, &mockSettler{}, nil)

	if err := s.SweepResults(context.Background()); err != nil {
		t.Fatalf("SweepResults: %v", err)
	}
	if len(store.resolutions) != 0 {
		t.Errorf("resolutions = %v, want none for an empty judge response", store.resolutions)
	}
}

func TestSweepResultsSkipsFullyResolvedEvents(t *testing.T) {
	resulted := domain.Market{ID: "m1", EventID: "e1", Name: "Match Result", Status: domain.MarketStatusResulted}
	store := &mockEventStore{candidates: []domain.Event{awaitingEvent(resulted)}}
	oracle := &mockOracle{result: &domain.ConsensusResult{Score: "2-1", Finished: true}}
	s := newTestScheduler(store, oracle, &mockJudge{}, &mockSettler{}, nil)

	if err := s.SweepResults(context.Background()); err != nil {
		t.Fatalf("SweepResults: %v", err)
	}
	if oracle.calls != 0 {
		t.Errorf("oracle called %d times for a fully resolved event", oracle.calls)
	}
}

func TestSweepResultsSettlementFailureIsolated(t *testing.T) {
	m1 := lockedMarket("m1", "Match Result")
	m2 := lockedMarket("m2", "Total Goals")
	store := &mockEventStore{candidates: []domain.Event{awaitingEvent(m1, m2)}}
	oracle := &mockOracle{result: &domain.ConsensusResult{Score: "2-1", Finished: true}}
	judge := &mockJudge{verdicts: []domain.MarketVerdict{
		{MarketName: "Match Result", WinningOutcome: "Home Win"},
		{MarketName: "Total Goals", WinningOutcome: "Over 2.5"},
	}}
	settler := &mockSettler{errByMarket: map[string]error{"m1": errors.New("db timeout")}}
	s := newTestScheduler(store, oracle, judge, settler, nil)

	if err := s.SweepResults(context.Background()); err != nil {
		t.Fatalf("SweepResults: %v", err)
	}
	if len(settler.settled) != 1 || settler.settled[0] != "m2" {
		t.Errorf("settled = %v, want m2 despite m1 failing", settler.settled)
	}
}

func TestRunGuardedDropsBusyTick(t *testing.T) {
	s := newTestScheduler(&mockEventStore{}, &mockOracle{}, &mockJudge{}, &mockSettler{}, nil)

	ran := 0
	sweep := func(context.Context) error { ran++; return nil }

	s.resultBusy.Store(true)
	s.runGuarded(context.Background(), "result", &s.resultBusy, sweep)
	if ran != 0 {
		t.Fatal("sweep ran while the busy flag was set")
	}

	s.resultBusy.Store(false)
	s.runGuarded(context.Background(), "result", &s.resultBusy, sweep)
	if ran != 1 {
		t.Fatalf("sweep ran %d times, want 1", ran)
	}
	if s.resultBusy.Load() {
		t.Error("busy flag not cleared after the sweep")
	}
}

func TestSweepResultsBatchLimit(t *testing.T) {
	var candidates []domain.Event
	for i := 0; i < 60; i++ {
		candidates = append(candidates, awaitingEvent(lockedMarket("m", "Match Result")))
	}
	store := &mockEventStore{candidates: candidates}
	oracle := &mockOracle{}
	s := newTestScheduler(store, oracle, &mockJudge{}, &mockSettler{}, nil)

	if err := s.SweepResults(context.Background()); err != nil {
		t.Fatalf("SweepResults: %v", err)
	}
	if oracle.calls != 50 {
		t.Errorf("oracle called %d times, want the default batch cap of 50", oracle.calls)
	}
}
