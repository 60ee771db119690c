package judge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poolhouse/poolbet/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization header = %q", auth)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
}

func TestSettleMarkets(t *testing.T) {
	srv := chatServer(t, "```json\n"+`{
  "matchParams": "Chelsea 2-1 Arsenal",
  "results": [
    {"marketName": "Match Result", "winningOutcome": "Home Win"},
    {"marketName": "Total Goals", "winningOutcome": "Over 2.5"},
    {"marketName": "", "winningOutcome": "ignored"}
  ]
}`+"\n```")
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "", time.Second, testLogger())
	verdicts, err := c.SettleMarkets(context.Background(), domain.ConsensusResult{
		HomeTeam:   "Chelsea",
		AwayTeam:   "Arsenal",
		Provenance: "Consensus: 2-1 (Votes: 3/4)",
	}, []string{"Match Result", "Total Goals"})
	if err != nil {
		t.Fatalf("SettleMarkets: %v", err)
	}
	want := []domain.MarketVerdict{
		{MarketName: "Match Result", WinningOutcome: "Home Win"},
		{MarketName: "Total Goals", WinningOutcome: "Over 2.5"},
	}
	if len(verdicts) != len(want) {
		t.Fatalf("got %d verdicts, want %d", len(verdicts), len(want))
	}
	for i, w := range want {
		if verdicts[i] != w {
			t.Errorf("verdict %d = %+v, want %+v", i, verdicts[i], w)
		}
	}
}

func TestSettleMarketsMalformedResponseIsNoOp(t *testing.T) {
	srv := chatServer(t, "sorry, I cannot help with that")
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "", time.Second, testLogger())
	verdicts, err := c.SettleMarkets(context.Background(), domain.ConsensusResult{}, []string{"Match Result"})
	if err != nil {
		t.Fatalf("SettleMarkets: %v", err)
	}
	if len(verdicts) != 0 {
		t.Fatalf("expected no verdicts from malformed output, got %+v", verdicts)
	}
}

func TestSettleMarketsNoKey(t *testing.T) {
	c := NewClient("http://unused.invalid", "", "", time.Second, testLogger())
	_, err := c.SettleMarkets(context.Background(), domain.ConsensusResult{}, []string{"Match Result"})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestSettleMarketsNoMarkets(t *testing.T) {
	c := NewClient("http://unused.invalid", "test-key", "", time.Second, testLogger())
	verdicts, err := c.SettleMarkets(context.Background(), domain.ConsensusResult{}, nil)
	if err != nil || verdicts != nil {
		t.Fatalf("got %+v, %v; want nil, nil", verdicts, err)
	}
}

func TestGenerateMarkets(t *testing.T) {
	srv := chatServer(t, `{
  "sport": "Football",
  "markets": [
    {"name": "Match Result", "outcomes": ["Home Win", "Draw", "Away Win"]},
    {"name": "Total Goals", "outcomes": ["Over 2.5", "Under 2.5"]},
    {"name": "Single Outcome", "outcomes": ["only one"]}
  ]
}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "", time.Second, testLogger())
	markets, err := c.GenerateMarkets(context.Background(), domain.Event{
		HomeTeam:  "Chelsea",
		AwayTeam:  "Arsenal",
		Sport:     "football",
		StartTime: time.Now(),
	})
	if err != nil {
		t.Fatalf("GenerateMarkets: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("got %d markets, want 2 (single-outcome market dropped)", len(markets))
	}
	if markets[0].Name != "Match Result" || len(markets[0].Outcomes) != 3 {
		t.Errorf("market 0 = %+v", markets[0])
	}
}

func TestStripFences(t *testing.T) {
	in := "```json\n{\"a\": 1}\n```"
	if got := stripFences(in); got != `{"a": 1}` {
		t.Errorf("stripFences = %q", got)
	}
	if got := stripFences(`{"a": 1}`); got != `{"a": 1}` {
		t.Errorf("stripFences without fences = %q", got)
	}
}
