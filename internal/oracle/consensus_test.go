package oracle

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

type stubSource struct {
	name  string
	obs   *domain.MatchObservation
	err   error
	delay time.Duration
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FindMatch(ctx context.Context, homeTeam, awayTeam string, sess *source.Session) (*domain.MatchObservation, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.obs, s.err
}

func observing(name, home, away, status string) *stubSource {
	return &stubSource{name: name, obs: &domain.MatchObservation{
		Source: name, HomeTeam: home, AwayTeam: away, StatusText: status, Sport: "football",
	}}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveMajorityWithFinality(t *testing.T) {
	eng := NewEngine([]source.Source{
		observing("a", "Chelsea", "Arsenal", "2-1 (FT)"),
		observing("b", "Chelsea FC", "Arsenal FC", "2-1 (Ended)"),
		observing("c", "Chelsea", "Arsenal", "2-1 (Full time)"),
		observing("d", "Chelsea", "Arsenal", "1-1 (Live)"),
	}, time.Second, TieBreakFirstSeen, testLogger())

	res, err := eng.Resolve(context.Background(), "Chelsea", "Arsenal", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res == nil {
		t.Fatal("expected a verdict, got nil")
	}
	if res.Score != "2-1" {
		t.Errorf("score = %q, want 2-1", res.Score)
	}
	if !res.Finished {
		t.Error("finished = false, want true")
	}
	if res.Votes != 3 || res.Sources != 4 {
		t.Errorf("votes = %d/%d, want 3/4", res.Votes, res.Sources)
	}
	if res.Provenance != "Consensus: 2-1 (Votes: 3/4)" {
		t.Errorf("provenance = %q", res.Provenance)
	}
}

func TestResolveNoVerdictWithoutFinality(t *testing.T) {
	eng := NewEngine([]source.Source{
		observing("a", "Chelsea", "Arsenal", "2-1 (Live)"),
		observing("b", "Chelsea", "Arsenal", "2-1 (78')"),
		observing("c", "Chelsea", "Arsenal", "2-1"),
		observing("d", "Chelsea", "Arsenal", "2-1 (Live)"),
	}, time.Second, TieBreakFirstSeen, testLogger())

	res, err := eng.Resolve(context.Background(), "Chelsea", "Arsenal", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res != nil {
		t.Fatalf("expected no verdict mid-match, got %+v", res)
	}
}

func TestResolveIdentityFiltering(t *testing.T) {
	eng := NewEngine([]source.Source{
		observing("a", "Chelsea", "Arsenal", "2-1 (FT)"),
	}, time.Second, TieBreakFirstSeen, testLogger())

	res, err := eng.Resolve(context.Background(), "Real Madrid", "Barcelona", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res != nil {
		t.Fatalf("observation for another fixture must not produce a verdict, got %+v", res)
	}
}

func TestResolveSourceFailuresDoNotBlock(t *testing.T) {
	eng := NewEngine([]source.Source{
		&stubSource{name: "down", err: errors.New("connection refused")},
		&stubSource{name: "absent"},
		observing("ok1", "Chelsea", "Arsenal", "2-1 (FT)"),
		observing("ok2", "Chelsea", "Arsenal", "2-1 (FT)"),
	}, time.Second, TieBreakFirstSeen, testLogger())

	res, err := eng.Resolve(context.Background(), "Chelsea", "Arsenal", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res == nil {
		t.Fatal("expected a verdict from the healthy sources")
	}
	if res.Votes != 2 || res.Sources != 2 {
		t.Errorf("votes = %d/%d, want 2/2", res.Votes, res.Sources)
	}
}

func TestResolveHungSourceIsAbandoned(t *testing.T) {
	slow := observing("slow", "Chelsea", "Arsenal", "9-9 (FT)")
	slow.delay = time.Second

	eng := NewEngine([]source.Source{
		slow,
		observing("a", "Chelsea", "Arsenal", "2-1 (FT)"),
		observing("b", "Chelsea", "Arsenal", "2-1 (FT)"),
	}, 50*time.Millisecond, TieBreakFirstSeen, testLogger())

	start := time.Now()
	res, err := eng.Resolve(context.Background(), "Chelsea", "Arsenal", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("resolve took %v, the hung source was not abandoned", elapsed)
	}
	if res == nil || res.Score != "2-1" {
		t.Fatalf("result = %+v, want 2-1 verdict", res)
	}
	if res.Sources != 2 {
		t.Errorf("sources = %d, want 2 (timed-out source excluded)", res.Sources)
	}
}

func TestResolveTieBreak(t *testing.T) {
	mk := func(tb TieBreak) *Engine {
		return NewEngine([]source.Source{
			observing("a", "Chelsea", "Arsenal", "2-1 (FT)"),
			observing("b", "Chelsea", "Arsenal", "1-1 (FT)"),
		}, time.Second, tb, testLogger())
	}

	res, err := mk(TieBreakFirstSeen).Resolve(context.Background(), "Chelsea", "Arsenal", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res == nil || res.Score != "2-1" {
		t.Fatalf("first_seen tie-break result = %+v, want 2-1", res)
	}

	res, err = mk(TieBreakAbstain).Resolve(context.Background(), "Chelsea", "Arsenal", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res != nil {
		t.Fatalf("abstain tie-break must return no verdict, got %+v", res)
	}
}

func TestResolveScorelessVotersStillSignalFinality(t *testing.T) {
	// A source that reports "Ended" with no score cannot vote on the score
	// but does satisfy the finished check.
	eng := NewEngine([]source.Source{
		observing("a", "Chelsea", "Arsenal", "2-1"),
		observing("b", "Chelsea", "Arsenal", "Ended"),
	}, time.Second, TieBreakFirstSeen, testLogger())

	res, err := eng.Resolve(context.Background(), "Chelsea", "Arsenal", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res == nil {
		t.Fatal("expected a verdict")
	}
	if res.Score != "2-1" || res.Votes != 1 || res.Sources != 2 {
		t.Errorf("result = %+v, want score 2-1 with votes 1/2", res)
	}
}
