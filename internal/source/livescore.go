package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/poolhouse/poolbet/internal/domain"
)

// LiveScore queries the livescore.com public search API. Results arrive as
// stages containing events; team names are nested one level down and scores
// are strings that may be empty before kick-off.
type LiveScore struct {
	baseURL string
}

// NewLiveScore creates a LiveScore adapter. baseURL defaults to the public
// API host when empty.
func NewLiveScore(baseURL string) *LiveScore {
	if baseURL == "" {
		baseURL = "https://prod-public-api.livescore.com"
	}
	return &LiveScore{baseURL: strings.TrimRight(baseURL, "/")}
}

func (l *LiveScore) Name() string { return "livescore" }

// FindMatch searches for an event involving both teams. A search with no
// plausible hit returns (nil, nil).
func (l *LiveScore) FindMatch(ctx context.Context, homeTeam, awayTeam string, sess *Session) (*domain.MatchObservation, error) {
	sess, owned, err := ensure(sess)
	if err != nil {
		return nil, fmt.Errorf("livescore: session: %w", err)
	}
	if owned {
		defer sess.Close()
	}

	query := url.QueryEscape(homeTeam + " " + awayTeam)
	body, err := sess.Get(ctx, l.baseURL+"/v1/api/app/search?query="+query+"&lang=en")
	if err != nil {
		return nil, fmt.Errorf("livescore: search: %w", err)
	}

	var result struct {
		Stages []struct {
			Sport  string `json:"Snm"`
			Events []struct {
				T1 []struct {
					Nm string `json:"Nm"`
				} `json:"T1"`
				T2 []struct {
					Nm string `json:"Nm"`
				} `json:"T2"`
				Tr1 string `json:"Tr1"`
				Tr2 string `json:"Tr2"`
				Eps string `json:"Eps"`
			} `json:"Events"`
		} `json:"Stages"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("livescore: decode search response: %w", err)
	}

	for _, stage := range result.Stages {
		for _, ev := range stage.Events {
			if len(ev.T1) == 0 || len(ev.T2) == 0 {
				continue
			}
			home, away := ev.T1[0].Nm, ev.T2[0].Nm
			if !SameTeam(homeTeam, home) || !SameTeam(awayTeam, away) {
				continue
			}

			text := ev.Eps
			if ev.Tr1 != "" && ev.Tr2 != "" {
				text = fmt.Sprintf("%s-%s (%s)", ev.Tr1, ev.Tr2, ev.Eps)
			}

			return &domain.MatchObservation{
				Source:     l.Name(),
				HomeTeam:   home,
				AwayTeam:   away,
				StatusText: text,
				Sport:      strings.ToLower(stage.Sport),
			}, nil
		}
	}
	return nil, nil
}

var _ Source = (*LiveScore)(nil)
