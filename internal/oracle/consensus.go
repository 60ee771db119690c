// Package oracle reconciles independent, unreliable score observations into
// a single trusted verdict via identity verification, score extraction, and
// majority vote.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poolhouse/poolbet/internal/domain"
	"github.com/poolhouse/poolbet/internal/source"
)

// TieBreak selects the policy for a tied majority vote.
type TieBreak string

const (
	// TieBreakFirstSeen resolves a tie in favor of the score observed first,
	// in configured source order.
	TieBreakFirstSeen TieBreak = "first_seen"
	// TieBreakAbstain returns no verdict on a tie and waits for a later
	// sweep to break it.
	TieBreakAbstain TieBreak = "abstain"
)

// Engine fans a fixture lookup out to every configured source and votes the
// observations into a ConsensusResult, or decides no trustworthy verdict
// exists yet.
type Engine struct {
	sources  []source.Source
	timeout  time.Duration
	tieBreak TieBreak
	logger   *slog.Logger
}

// NewEngine creates a consensus engine. timeout bounds each individual
// source call; a hung source is abandoned rather than stalling the round.
func NewEngine(sources []source.Source, timeout time.Duration, tieBreak TieBreak, logger *slog.Logger) *Engine {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if tieBreak == "" {
		tieBreak = TieBreakFirstSeen
	}
	return &Engine{
		sources:  sources,
		timeout:  timeout,
		tieBreak: tieBreak,
		logger:   logger.With("component", "oracle"),
	}
}

// Resolve asks every source about the pairing and reduces the answers to one
// verdict. A nil result with a nil error means no consensus yet: the caller
// retries on its next sweep. Source failures never propagate; they are logged
// and the source simply does not vote.
func (e *Engine) Resolve(ctx context.Context, homeTeam, awayTeam string, sess *source.Session) (*domain.ConsensusResult, error) {
	// Index-ordered slots keep first-seen deterministic regardless of which
	// goroutine finishes first.
	observations := make([]*domain.MatchObservation, len(e.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range e.sources {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, e.timeout)
			defer cancel()

			obs, err := src.FindMatch(callCtx, homeTeam, awayTeam, sess)
			if err != nil {
				e.logger.Warn("source lookup failed",
					"source", src.Name(), "home", homeTeam, "away", awayTeam, "error", err)
				return nil
			}
			observations[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("oracle: fan out: %w", err)
	}

	var surviving []*domain.MatchObservation
	for _, obs := range observations {
		if obs == nil {
			continue
		}
		if !source.SameTeam(homeTeam, obs.HomeTeam) || !source.SameTeam(awayTeam, obs.AwayTeam) {
			e.logger.Warn("discarding observation for a different fixture",
				"source", obs.Source,
				"requested", homeTeam+" vs "+awayTeam,
				"observed", obs.HomeTeam+" vs "+obs.AwayTeam)
			continue
		}
		surviving = append(surviving, obs)
	}
	if len(surviving) == 0 {
		e.logger.Debug("no valid observations", "home", homeTeam, "away", awayTeam)
		return nil, nil
	}

	score, votes, tied := e.vote(surviving)
	if score == "" {
		e.logger.Debug("no score majority", "home", homeTeam, "away", awayTeam, "tied", tied)
		return nil, nil
	}

	finished := false
	for _, obs := range surviving {
		if IsFinished(obs.StatusText) {
			finished = true
			break
		}
	}
	if !finished {
		e.logger.Debug("score agreed but no finished signal",
			"home", homeTeam, "away", awayTeam, "score", score)
		return nil, nil
	}

	sport := ""
	for _, obs := range surviving {
		if obs.Sport != "" {
			sport = obs.Sport
			break
		}
	}

	result := &domain.ConsensusResult{
		HomeTeam:   homeTeam,
		AwayTeam:   awayTeam,
		Score:      score,
		Finished:   true,
		Votes:      votes,
		Sources:    len(surviving),
		Sport:      sport,
		Provenance: fmt.Sprintf("Consensus: %s (Votes: %d/%d)", score, votes, len(surviving)),
	}
	e.logger.Info("consensus reached",
		"home", homeTeam, "away", awayTeam, "score", score,
		"votes", votes, "sources", len(surviving))
	return result, nil
}

// vote tallies score tokens in first-seen order and picks the winner. An
// empty score means no observation had a parseable score, or the vote tied
// under the abstain policy; tied reports the latter.
func (e *Engine) vote(observations []*domain.MatchObservation) (score string, votes int, tied bool) {
	tally := make(map[string]int)
	var order []string
	for _, obs := range observations {
		s, ok := ExtractScore(obs.StatusText)
		if !ok {
			continue
		}
		if _, seen := tally[s]; !seen {
			order = append(order, s)
		}
		tally[s]++
	}
	if len(order) == 0 {
		return "", 0, false
	}

	best := order[0]
	for _, s := range order[1:] {
		if tally[s] > tally[best] {
			best = s
		}
	}
	for _, s := range order {
		if s != best && tally[s] == tally[best] {
			tied = true
			break
		}
	}
	if tied && e.tieBreak == TieBreakAbstain {
		return "", 0, true
	}
	return best, tally[best], tied
}
