package source

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/poolhouse/poolbet/internal/domain"
)

// BBCSport scrapes bbc.co.uk/sport in two steps: a site search to find the
// live match page for the pairing, then the match page itself. The page's
// og:title meta tag carries "Home 2-1 Away" once a match is under way, which
// makes score extraction a single regex rather than a DOM walk.
type BBCSport struct {
	baseURL string
}

// NewBBCSport creates a BBCSport adapter. baseURL defaults to the public
// site when empty.
func NewBBCSport(baseURL string) *BBCSport {
	if baseURL == "" {
		baseURL = "https://www.bbc.co.uk"
	}
	return &BBCSport{baseURL: strings.TrimRight(baseURL, "/")}
}

func (b *BBCSport) Name() string { return "bbcsport" }

var (
	bbcMatchLinkRe = regexp.MustCompile(`href="(/sport/[a-z-]+/live/[^"]+)"`)
	bbcOGTitleRe   = regexp.MustCompile(`<meta property="og:title" content="([^"]+)"`)
	bbcScoreRe     = regexp.MustCompile(`^(.+?)\s+(\d+)\s*-\s*(\d+)\s+(.+)$`)

	bbcFinishedMarkers = []string{"full time", "full-time", "match ends", "ft</"}
)

// FindMatch searches the site for the pairing's live page and reads the score
// from it. No live page, or a page naming different teams, returns (nil, nil).
func (b *BBCSport) FindMatch(ctx context.Context, homeTeam, awayTeam string, sess *Session) (*domain.MatchObservation, error) {
	sess, owned, err := ensure(sess)
	if err != nil {
		return nil, fmt.Errorf("bbcsport: session: %w", err)
	}
	if owned {
		defer sess.Close()
	}

	query := url.QueryEscape(homeTeam + " v " + awayTeam)
	searchPage, err := sess.Get(ctx, b.baseURL+"/search?q="+query+"&d=sport_gnl")
	if err != nil {
		return nil, fmt.Errorf("bbcsport: search: %w", err)
	}

	link := bbcMatchLinkRe.FindSubmatch(searchPage)
	if link == nil {
		return nil, nil
	}

	matchPage, err := sess.Get(ctx, b.baseURL+string(link[1]))
	if err != nil {
		return nil, fmt.Errorf("bbcsport: fetch match page: %w", err)
	}

	title := bbcOGTitleRe.FindSubmatch(matchPage)
	if title == nil {
		return nil, nil
	}
	// "Chelsea 2-1 Arsenal - Premier League" keeps only the score part.
	scoreline, _, _ := strings.Cut(string(title[1]), " - ")

	parts := bbcScoreRe.FindStringSubmatch(scoreline)
	if parts == nil {
		return nil, nil
	}
	home, away := parts[1], parts[4]
	if !SameTeam(homeTeam, home) || !SameTeam(awayTeam, away) {
		return nil, nil
	}

	status := "Live"
	lower := strings.ToLower(string(matchPage))
	for _, marker := range bbcFinishedMarkers {
		if strings.Contains(lower, marker) {
			status = "Full time"
			break
		}
	}

	return &domain.MatchObservation{
		Source:     b.Name(),
		HomeTeam:   home,
		AwayTeam:   away,
		StatusText: fmt.Sprintf("%s-%s (%s)", parts[2], parts[3], status),
		Sport:      "football",
	}, nil
}

var _ Source = (*BBCSport)(nil)
