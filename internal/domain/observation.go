package domain

// MatchObservation is one data source's view of a fixture. Team names are
// carried exactly as the source spells them; sources disagree on naming and
// the consensus engine verifies identity before counting a vote.
type MatchObservation struct {
	Source     string
	HomeTeam   string
	AwayTeam   string
	StatusText string // free-text score/status, e.g. "2-1 (FT)"
	Sport      string
}

// ConsensusResult is the reconciled verdict over N independent observations.
// It is ephemeral: produced per resolution attempt, consumed immediately by
// outcome determination, never persisted.
type ConsensusResult struct {
	HomeTeam string
	AwayTeam string
	Score    string // canonical "H-A" token
	Finished bool
	Votes    int // observations that voted for Score
	Sources  int // observations that survived identity verification
	Sport    string
	// Provenance is a human-readable audit string,
	// e.g. `Consensus: 2-1 (Votes: 3/4)`.
	Provenance string
}

// MarketVerdict is one market's winning outcome as decided by the outcome
// determiner. WinningOutcome may be OutcomeVoid.
type MarketVerdict struct {
	MarketName     string
	WinningOutcome string
}
