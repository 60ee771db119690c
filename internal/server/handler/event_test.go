package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poolhouse/poolbet/internal/domain"
)

type mockEventStore struct {
	domain.EventStore

	upcoming []domain.Event
	live     []domain.Event
	byID     map[string]domain.Event
}

func (m *mockEventStore) ListUpcoming(ctx context.Context, sport string) ([]domain.Event, error) {
	return m.upcoming, nil
}

func (m *mockEventStore) ListLive(ctx context.Context, sport string) ([]domain.Event, error) {
	return m.live, nil
}

func (m *mockEventStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	if ev, ok := m.byID[id]; ok {
		return ev, nil
	}
	return domain.Event{}, domain.ErrNotFound
}

type mockMarketStore struct {
	domain.MarketStore

	byEvent map[string][]domain.Market
}

func (m *mockMarketStore) ListByEvent(ctx context.Context, eventID string) ([]domain.Market, error) {
	return m.byEvent[eventID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMux(h *EventHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", h.ListEvents)
	mux.HandleFunc("GET /api/events/{id}", h.GetEvent)
	mux.HandleFunc("GET /api/events/{id}/markets", h.ListEventMarkets)
	return mux
}

func TestListEvents(t *testing.T) {
	store := &mockEventStore{
		upcoming: []domain.Event{{ID: "e1", HomeTeam: "Chelsea", AwayTeam: "Arsenal"}},
		live:     []domain.Event{{ID: "e2", Status: domain.EventStatusInPlay}},
	}
	h := NewEventHandler(store, &mockMarketStore{}, testLogger())
	mux := newMux(h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?scope=live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Events []domain.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Events) != 1 || body.Events[0].ID != "e2" {
		t.Errorf("events = %+v, want the live event", body.Events)
	}
}

func TestListEventsBadScope(t *testing.T) {
	h := NewEventHandler(&mockEventStore{}, &mockMarketStore{}, testLogger())
	rec := httptest.NewRecorder()
	newMux(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?scope=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListEventMarkets(t *testing.T) {
	events := &mockEventStore{byID: map[string]domain.Event{"e1": {ID: "e1"}}}
	markets := &mockMarketStore{byEvent: map[string][]domain.Market{
		"e1": {{ID: "m1", Name: "Match Result"}},
	}}
	h := NewEventHandler(events, markets, testLogger())

	rec := httptest.NewRecorder()
	newMux(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/e1/markets", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Markets []domain.Market `json:"markets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Markets) != 1 || body.Markets[0].ID != "m1" {
		t.Errorf("markets = %+v, want m1", body.Markets)
	}

	rec = httptest.NewRecorder()
	newMux(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/nope/markets", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown event status = %d, want 404", rec.Code)
	}
}

func TestGetEventNotFound(t *testing.T) {
	h := NewEventHandler(&mockEventStore{byID: map[string]domain.Event{}}, &mockMarketStore{}, testLogger())
	rec := httptest.NewRecorder()
	newMux(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
