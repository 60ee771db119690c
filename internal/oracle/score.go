package oracle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// scoreRe matches the first digits-separator-digits token in a status text.
// Sources use "-" or ":" as the separator interchangeably.
var scoreRe = regexp.MustCompile(`(\d+)\s*[-:]\s*(\d+)`)

// ExtractScore pulls a canonical "H-A" score token out of free-text status.
// The second return is false when no score is present, which happens for
// scheduled matches whose status is just a kickoff time.
func ExtractScore(statusText string) (string, bool) {
	m := scoreRe.FindStringSubmatch(statusText)
	if m == nil {
		return "", false
	}
	// A bare "20:45" is a kickoff time, not a score. Times only look like
	// scores when the separator is a colon and the numbers are plausible
	// clock fields with no other context; sources that report scores always
	// keep them under 100.
	if strings.Contains(m[0], ":") && looksLikeClock(m[1], m[2]) && !hasFinishedMarker(statusText) && !strings.Contains(statusText, "(") {
		return "", false
	}
	return fmt.Sprintf("%s-%s", m[1], m[2]), true
}

// looksLikeClock reports whether h:m could be a time of day.
func looksLikeClock(h, m string) bool {
	if len(h) > 2 || len(m) != 2 {
		return false
	}
	hh, err1 := strconv.Atoi(h)
	mm, err2 := strconv.Atoi(m)
	return err1 == nil && err2 == nil && hh <= 23 && mm <= 59
}

// finishedPhrases are matched anywhere in the lowercased status text.
var finishedPhrases = []string{
	"full time",
	"full-time",
	"finished",
	"ended",
	"match ends",
	"after extra time",
	"after penalties",
}

// finishedTokens are matched as whole words only; "ft" inside "fifteen" must
// not count.
var finishedTokens = map[string]bool{
	"ft":    true,
	"aet":   true,
	"pen":   true,
	"pens":  true,
	"after": true,
}

var wordRe = regexp.MustCompile(`[a-z]+`)

// IsFinished reports whether a status text carries a finished-state marker.
// A score alone is not enough; scores are visible mid-match.
func IsFinished(statusText string) bool {
	return hasFinishedMarker(statusText)
}

func hasFinishedMarker(statusText string) bool {
	lower := strings.ToLower(statusText)
	for _, p := range finishedPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	for _, w := range wordRe.FindAllString(lower, -1) {
		if finishedTokens[w] {
			return true
		}
	}
	return false
}
