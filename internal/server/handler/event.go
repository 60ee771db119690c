package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/poolhouse/poolbet/internal/domain"
)

// EventHandler serves read-only event and market queries.
type EventHandler struct {
	events  domain.EventStore
	markets domain.MarketStore
	logger  *slog.Logger
}

// NewEventHandler creates an EventHandler backed by the given stores.
func NewEventHandler(events domain.EventStore, markets domain.MarketStore, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events:  events,
		markets: markets,
		logger:  logger.With(slog.String("handler", "events")),
	}
}

// ListEvents returns events filtered by scope: upcoming (default), live, or
// finished. An optional sport query narrows the result.
// GET /api/events?scope=live&sport=football
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	sport := r.URL.Query().Get("sport")
	scope := r.URL.Query().Get("scope")

	var (
		events []domain.Event
		err    error
	)
	switch scope {
	case "", "upcoming":
		events, err = h.events.ListUpcoming(r.Context(), sport)
	case "live":
		events, err = h.events.ListLive(r.Context(), sport)
	case "finished":
		events, err = h.events.ListFinished(r.Context(), sport, limitParam(r, 50, 500))
	default:
		writeError(w, http.StatusBadRequest, "scope must be upcoming, live, or finished")
		return
	}
	if err != nil {
		h.logger.Error("event listing failed", slog.String("scope", scope), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// GetEvent returns one event with its markets.
// GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.events.GetByID(r.Context(), pathParam(r, "id"))
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		h.logger.Error("event fetch failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to fetch event")
		return
	}

	writeJSON(w, http.StatusOK, ev)
}

// ListEventMarkets returns all markets belonging to one event.
// GET /api/events/{id}/markets
func (h *EventHandler) ListEventMarkets(w http.ResponseWriter, r *http.Request) {
	eventID := pathParam(r, "id")
	if _, err := h.events.GetByID(r.Context(), eventID); errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	} else if err != nil {
		h.logger.Error("event fetch failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to fetch event")
		return
	}

	markets, err := h.markets.ListByEvent(r.Context(), eventID)
	if err != nil {
		h.logger.Error("market listing failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"markets": markets})
}

// GetMarket returns one market.
// GET /api/markets/{id}
func (h *EventHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.markets.GetByID(r.Context(), pathParam(r, "id"))
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	if err != nil {
		h.logger.Error("market fetch failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to fetch market")
		return
	}

	writeJSON(w, http.StatusOK, m)
}
