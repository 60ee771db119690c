package source

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/poolhouse/poolbet/internal/domain"
)

// FlashScore scrapes the mobile flashscore site. The mobile variant is plain
// server-rendered HTML: each match is one line of the form
//
//	18:30 <a href="/match/abc/">Team A - Team B</a>
//	FT <a href="/match/abc/" class="fin">Team A - Team B</a> 2:1
//
// with lines separated by <br>. The text before the anchor is the match
// status (kick-off time, minute, or a finished marker) and the text after it
// is the score when one exists.
type FlashScore struct {
	baseURL string
}

// NewFlashScore creates a FlashScore adapter. baseURL defaults to the mobile
// site when empty.
func NewFlashScore(baseURL string) *FlashScore {
	if baseURL == "" {
		baseURL = "https://m.flashscore.com"
	}
	return &FlashScore{baseURL: strings.TrimRight(baseURL, "/")}
}

func (f *FlashScore) Name() string { return "flashscore" }

var (
	matchAnchorRe = regexp.MustCompile(`<a href="/match/[^"]*"[^>]*>([^<]+)</a>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
)

// flashRow is one parsed match line.
type flashRow struct {
	home, away string
	status     string
	score      string
}

// parseRows extracts match lines from a mobile flashscore page.
func parseRows(page string) []flashRow {
	var rows []flashRow
	for _, seg := range regexp.MustCompile(`<br\s*/?>`).Split(page, -1) {
		m := matchAnchorRe.FindStringSubmatchIndex(seg)
		if m == nil {
			continue
		}

		teams := seg[m[2]:m[3]]
		home, away, ok := strings.Cut(teams, " - ")
		if !ok {
			continue
		}

		status := strings.TrimSpace(htmlTagRe.ReplaceAllString(seg[:m[0]], " "))
		score := strings.TrimSpace(htmlTagRe.ReplaceAllString(seg[m[1]:], " "))
		rows = append(rows, flashRow{
			home:   strings.TrimSpace(home),
			away:   strings.TrimSpace(away),
			status: status,
			score:  score,
		})
	}
	return rows
}

// sportPath maps a sport to its mobile-site path. Football lives at the root.
func sportPath(sport string) string {
	sport = strings.ToLower(strings.TrimSpace(sport))
	if sport == "" || sport == "football" || sport == "soccer" {
		return "/"
	}
	return "/" + sport + "/"
}

// FindMatch scans the day's match list for a row involving both teams. An
// absent row returns (nil, nil).
func (f *FlashScore) FindMatch(ctx context.Context, homeTeam, awayTeam string, sess *Session) (*domain.MatchObservation, error) {
	sess, owned, err := ensure(sess)
	if err != nil {
		return nil, fmt.Errorf("flashscore: session: %w", err)
	}
	if owned {
		defer sess.Close()
	}

	body, err := sess.Get(ctx, f.baseURL+"/")
	if err != nil {
		return nil, fmt.Errorf("flashscore: fetch match list: %w", err)
	}

	for _, row := range parseRows(string(body)) {
		if !SameTeam(homeTeam, row.home) || !SameTeam(awayTeam, row.away) {
			continue
		}

		text := row.status
		if row.score != "" {
			text = fmt.Sprintf("%s (%s)", row.score, row.status)
		}
		return &domain.MatchObservation{
			Source:     f.Name(),
			HomeTeam:   row.home,
			AwayTeam:   row.away,
			StatusText: text,
			Sport:      "football",
		}, nil
	}
	return nil, nil
}

// ListFixtures returns the day's fixtures for a sport. Rows that already
// carry a score are in play or finished and still count as fixtures; the
// ingester decides what to do with their time text.
func (f *FlashScore) ListFixtures(ctx context.Context, sport string, sess *Session) ([]Fixture, error) {
	sess, owned, err := ensure(sess)
	if err != nil {
		return nil, fmt.Errorf("flashscore: session: %w", err)
	}
	if owned {
		defer sess.Close()
	}

	body, err := sess.Get(ctx, f.baseURL+sportPath(sport))
	if err != nil {
		return nil, fmt.Errorf("flashscore: fetch fixtures: %w", err)
	}

	rows := parseRows(string(body))
	fixtures := make([]Fixture, 0, len(rows))
	for _, row := range rows {
		timeText := row.status
		if row.score != "" {
			timeText = fmt.Sprintf("%s %s", row.status, row.score)
		}
		fixtures = append(fixtures, Fixture{
			HomeTeam: row.home,
			AwayTeam: row.away,
			TimeText: timeText,
			Sport:    sport,
		})
	}
	return fixtures, nil
}

var (
	_ Source = (*FlashScore)(nil)
	_ Lister = (*FlashScore)(nil)
)
