package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/poolhouse/poolbet/internal/domain"
)

// SofaScore queries the sofascore.com public search API for a match between
// two teams and reports the current score and match status.
type SofaScore struct {
	baseURL string
}

// NewSofaScore creates a SofaScore adapter. baseURL defaults to the public
// API host when empty.
func NewSofaScore(baseURL string) *SofaScore {
	if baseURL == "" {
		baseURL = "https://api.sofascore.com"
	}
	return &SofaScore{baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *SofaScore) Name() string { return "sofascore" }

// FindMatch searches for an event involving both teams. A search with no
// plausible hit returns (nil, nil).
func (s *SofaScore) FindMatch(ctx context.Context, homeTeam, awayTeam string, sess *Session) (*domain.MatchObservation, error) {
	sess, owned, err := ensure(sess)
	if err != nil {
		return nil, fmt.Errorf("sofascore: session: %w", err)
	}
	if owned {
		defer sess.Close()
	}

	query := url.QueryEscape(homeTeam + " " + awayTeam)
	body, err := sess.Get(ctx, s.baseURL+"/api/v1/search/events?q="+query)
	if err != nil {
		return nil, fmt.Errorf("sofascore: search events: %w", err)
	}

	var result struct {
		Events []struct {
			HomeTeam struct {
				Name string `json:"name"`
			} `json:"homeTeam"`
			AwayTeam struct {
				Name string `json:"name"`
			} `json:"awayTeam"`
			HomeScore struct {
				Current *int `json:"current"`
			} `json:"homeScore"`
			AwayScore struct {
				Current *int `json:"current"`
			} `json:"awayScore"`
			Status struct {
				Description string `json:"description"`
				Type        string `json:"type"`
			} `json:"status"`
			Tournament struct {
				Category struct {
					Sport struct {
						Name string `json:"name"`
					} `json:"sport"`
				} `json:"category"`
			} `json:"tournament"`
		} `json:"events"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("sofascore: decode search response: %w", err)
	}

	for _, ev := range result.Events {
		if !SameTeam(homeTeam, ev.HomeTeam.Name) || !SameTeam(awayTeam, ev.AwayTeam.Name) {
			continue
		}

		status := ev.Status.Description
		if ev.Status.Type == "finished" && !strings.Contains(strings.ToLower(status), "end") {
			status = "Ended"
		}
		text := status
		if ev.HomeScore.Current != nil && ev.AwayScore.Current != nil {
			text = fmt.Sprintf("%d-%d (%s)", *ev.HomeScore.Current, *ev.AwayScore.Current, status)
		}

		return &domain.MatchObservation{
			Source:     s.Name(),
			HomeTeam:   ev.HomeTeam.Name,
			AwayTeam:   ev.AwayTeam.Name,
			StatusText: text,
			Sport:      strings.ToLower(ev.Tournament.Category.Sport.Name),
		}, nil
	}
	return nil, nil
}

var _ Source = (*SofaScore)(nil)
