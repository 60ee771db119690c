// Package source implements the data-source adapter capability: independent
// scrapers that each answer "what does this site say about this fixture".
// Sources are unreliable by nature; adapters contain their own failures so
// one misbehaving site never blocks the rest of a consensus round.
package source

import (
	"context"

	"github.com/poolhouse/poolbet/internal/domain"
)

// Source is one external result provider. Implementations return (nil, nil)
// when the source has no usable view of the fixture and an error only for
// transport or payload failures; the consensus engine treats both the same
// way (the source is absent from the round) and never propagates either.
type Source interface {
	Name() string

	// FindMatch looks the fixture up on the remote source. The returned
	// observation carries team names as the source spells them; callers must
	// verify identity before trusting it. sess may be nil, in which case the
	// adapter creates and releases a private session for the call.
	FindMatch(ctx context.Context, homeTeam, awayTeam string, sess *Session) (*domain.MatchObservation, error)
}

// Fixture is one row from a source's fixture listing, used by ingestion.
type Fixture struct {
	HomeTeam string
	AwayTeam string
	// TimeText is the raw schedule/status column: a kickoff time ("20:45"),
	// a live score ("1 - 0"), or a finished marker ("FT", "AET").
	TimeText string
	Sport    string
}

// Lister is the optional listing capability a source may offer on top of
// fixture lookup. Ingestion uses it to discover new events.
type Lister interface {
	ListFixtures(ctx context.Context, sport string, sess *Session) ([]Fixture, error)
}
