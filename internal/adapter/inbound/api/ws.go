package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
	"github.com/jonny/guardian/internal/eventbus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API serves operators on the same network; origin enforcement is
	// left to the deployment's ingress.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWatchAll streams events for every incident.
func (h *Handler) handleWatchAll(w http.ResponseWriter, r *http.Request) {
	h.serveWS(w, r, eventbus.Wildcard)
}

// handleWatchIncident streams events for one incident, preceded by a
// snapshot of its current record.
func (h *Handler) handleWatchIncident(w http.ResponseWriter, r *http.Request) {
	h.serveWS(w, r, r.PathValue("id"))
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request, incidentID string) {
	// Snapshot is read before subscribing so a missing incident fails with
	// a regular HTTP status instead of a dead socket.
	var snapshot *model.Event
	if incidentID != eventbus.Wildcard {
		inc, err := h.incidents.GetByID(r.Context(), incidentID)
		if err != nil {
			if errors.Is(err, outbound.ErrNotFound) {
				http.Error(w, "incident not found", http.StatusNotFound)
				return
			}
			h.logger.Error("loading snapshot", slog.String("error", err.Error()))
			http.Error(w, "failed to load incident", http.StatusInternalServerError)
			return
		}
		e := model.NewEvent(model.EventSnapshot, inc.ID, map[string]any{"incident": inc})
		snapshot = &e
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe(incidentID)
	defer h.bus.Unsubscribe(sub)

	if snapshot != nil {
		if err := conn.WriteJSON(snapshot); err != nil {
			return
		}
	}

	// Drain reads so close frames and pings from the client are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				// Dead peer; unsubscribing prunes it from the bus.
				return
			}
		}
	}
}
