package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sevigo/brigadier/internal/core"
)

// maxEventSize bounds the body of a submitted event.
const maxEventSize = 5 << 20

// EventsHandler accepts events in the event file format from any source.
type EventsHandler struct {
	token      string
	dispatcher core.EventDispatcher
	logger     *slog.Logger
}

// NewEventsHandler creates a handler. When token is not empty, requests must
// carry it as a bearer token.
func NewEventsHandler(token string, dispatcher core.EventDispatcher, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{token: token, dispatcher: dispatcher, logger: logger}
}

// Handle decodes and queues one event.
func (h *EventsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	event, err := core.DecodeEvent(http.MaxBytesReader(w, r.Body, maxEventSize))
	if err != nil {
		h.logger.Warn("rejecting malformed event", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if event.ProjectID() == "" {
		http.Error(w, "event must name a projectID", http.StatusBadRequest)
		return
	}

	dispatch(w, r, h.dispatcher, event, h.logger)
}

func (h *EventsHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
