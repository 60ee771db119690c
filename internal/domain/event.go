// Package domain defines the core entities of the pool betting engine and the
// interfaces that persistence, oracle, and settlement implementations must
// satisfy.
package domain

import "time"

// EventStatus represents the lifecycle state of an event. Transitions are
// strictly ordered: SCHEDULED -> IN_PLAY -> AWAITING_RESULTS -> FINISHED.
type EventStatus string

const (
	EventStatusScheduled       EventStatus = "SCHEDULED"
	EventStatusInPlay          EventStatus = "IN_PLAY"
	EventStatusAwaitingResults EventStatus = "AWAITING_RESULTS"
	EventStatusFinished        EventStatus = "FINISHED"
)

// Event is one real-world fixture that markets attach to.
type Event struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"` // stable key derived from team names + date; unique
	HomeTeam   string    `json:"home_team"`
	AwayTeam   string    `json:"away_team"`
	Sport      string    `json:"sport"`
	StartTime  time.Time `json:"start_time"`
	// ProjectedEnd is an estimate of when the fixture concludes; it decides
	// when result polling begins, not when the event is actually finished.
	ProjectedEnd time.Time   `json:"projected_end"`
	Status       EventStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`

	// Markets is populated by store reads that include the event's markets.
	Markets []Market `json:"markets,omitempty"`
}

// UnresolvedMarketNames returns the names of the event's markets that have
// not been resulted yet.
func (e Event) UnresolvedMarketNames() []string {
	var names []string
	for _, m := range e.Markets {
		if m.Status != MarketStatusResulted {
			names = append(names, m.Name)
		}
	}
	return names
}
