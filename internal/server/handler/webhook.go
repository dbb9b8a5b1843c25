// Package handler provides the HTTP handlers that turn requests into events.
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/events"
)

// WebhookHandler processes incoming webhooks from GitHub.
type WebhookHandler struct {
	secret     []byte
	dispatcher core.EventDispatcher
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler validating payloads with secret.
func NewWebhookHandler(secret string, dispatcher core.EventDispatcher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:     []byte(secret),
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Handle processes GitHub webhook requests.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := github.ValidatePayload(r, h.secret)
	if err != nil {
		h.logger.Error("invalid webhook payload signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	webhookType := github.WebHookType(r)
	event, err := events.FromGitHubWebhook(webhookType, github.DeliveryID(r), payload)
	if errors.Is(err, events.ErrIgnoredWebhook) {
		h.logger.Debug("ignoring webhook", "type", webhookType)
		_, _ = fmt.Fprint(w, "Event ignored")
		return
	}
	if err != nil {
		h.logger.Error("could not parse webhook", "type", webhookType, "error", err)
		http.Error(w, "Could not parse webhook", http.StatusBadRequest)
		return
	}
	if event.ProjectID() == "" {
		h.logger.Debug("ignoring webhook without repository", "type", webhookType)
		_, _ = fmt.Fprint(w, "Event ignored")
		return
	}

	dispatch(w, r, h.dispatcher, event, h.logger)
}

// dispatch queues event and writes the response shared by all event endpoints.
func dispatch(w http.ResponseWriter, r *http.Request, d core.EventDispatcher, event core.Event, logger *slog.Logger) {
	if err := d.Dispatch(r.Context(), event); err != nil {
		logger.Error("failed to dispatch event", "event", event.ID(), "type", event.Type(), "error", err)
		if errors.Is(err, core.ErrQueueFull) {
			http.Error(w, "Event queue is full", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "Failed to dispatch event", http.StatusInternalServerError)
		return
	}

	logger.Info("event dispatched", "event", event.ID(), "type", event.Type(), "project", event.ProjectID())
	w.WriteHeader(http.StatusAccepted)
	_, _ = fmt.Fprint(w, event.ID())
}
