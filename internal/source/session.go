package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// userAgent identifies the scraper as an ordinary browser; several of the
	// sources reject requests without one.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	// maxBodyBytes caps how much of a response is read. Fixture pages are
	// small; anything larger is a payload we do not want.
	maxBodyBytes = 4 << 20
)

// Session is the shared scraping resource for a fan-out batch: one HTTP
// client with a cookie jar plus a per-host rate limiter. The resulting sweep
// acquires one Session per batch so the adapters do not each open their own
// connection pools; an adapter handed a nil Session owns a private one for
// the duration of the call.
type Session struct {
	client *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
}

// NewSession creates a Session. rps bounds requests per second per host;
// zero or negative disables limiting.
func NewSession(rps float64) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("source: cookie jar: %w", err)
	}
	return &Session{
		client: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
	}, nil
}

// Get fetches a URL, honoring the per-host rate limit and the context
// deadline, and returns the response body. Non-2xx statuses are errors.
func (s *Session) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := s.wait(ctx, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("source: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("source: get %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", rawURL, err)
	}
	return body, nil
}

// wait blocks until the host's rate limiter admits one request.
func (s *Session) wait(ctx context.Context, rawURL string) error {
	if s.rps <= 0 {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("source: parse url %s: %w", rawURL, err)
	}

	s.mu.Lock()
	lim, ok := s.limiters[u.Host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.rps), 1)
		s.limiters[u.Host] = lim
	}
	s.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return fmt.Errorf("source: rate wait %s: %w", u.Host, err)
	}
	return nil
}

// Close releases idle connections. Safe on a nil receiver so adapters can
// defer it unconditionally on private sessions.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.client.CloseIdleConnections()
}

// ensure returns sess when the caller supplied one, or a private session the
// adapter must release itself. The second return reports ownership.
func ensure(sess *Session) (*Session, bool, error) {
	if sess != nil {
		return sess, false, nil
	}
	own, err := NewSession(0)
	if err != nil {
		return nil, false, err
	}
	return own, true, nil
}
