// Package api exposes the HTTP surface: the Strava webhook, the OAuth
// callback, and the session endpoints.
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/NickPugin/wattsup-training-tracker-app/internal/ingest"
	"github.com/NickPugin/wattsup-training-tracker-app/internal/strava"
)

// Acknowledgement bodies returned to Strava. Both carry status 200: a non-200
// response would trigger provider-side retries and, eventually, subscription
// suspension.
const (
	ackReceived = "EVENT_RECEIVED"
	ackFailed   = "EVENT_FAILED_BUT_RECEIVED"
)

// WebhookHandler terminates the Strava webhook: the GET subscription
// handshake and POST event notifications. Strava expects the acknowledgement
// within about two seconds, so event processing stays synchronous and makes
// at most two outbound calls.
type WebhookHandler struct {
	pipeline    *ingest.Pipeline
	verifyToken string
	logger      *log.Logger
}

// NewWebhookHandler builds a WebhookHandler.
func NewWebhookHandler(pipeline *ingest.Pipeline, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		pipeline:    pipeline,
		verifyToken: verifyToken,
		logger:      log.New(log.Writer(), "[webhook] ", log.LstdFlags),
	}
}

// RegisterRoutes wires the webhook endpoint to the mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/strava/webhook", h.webhook)
}

func (h *WebhookHandler) webhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handshake(w, r)
	case http.MethodPost:
		h.event(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// handshake answers the one-time subscription verification. The challenge
// must be echoed back verbatim for Strava to activate event delivery. This
// path has no side effects.
func (h *WebhookHandler) handshake(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "" || token == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing hub parameters")
		return
	}
	if mode != "subscribe" || token != h.verifyToken {
		writeError(w, http.StatusForbidden, "forbidden", "verification token mismatch")
		return
	}

	h.logger.Printf("webhook subscription verified")
	writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": challenge})
}

// event receives an activity notification. Whatever happens internally,
// Strava gets a 200; failures are visible only in logs and metrics.
func (h *WebhookHandler) event(w http.ResponseWriter, r *http.Request) {
	var event strava.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.logger.Printf("error: undecodable webhook body: %v", err)
		h.ack(w, ackFailed)
		return
	}

	outcome := h.pipeline.Process(r.Context(), event)
	switch outcome.Kind {
	case ingest.OutcomeFailed:
		h.logger.Printf("error: event failed (activity=%d athlete=%d): %v", event.ObjectID, event.OwnerID, outcome.Err)
		h.ack(w, ackFailed)
	case ingest.OutcomeIgnored:
		h.logger.Printf("event ignored: %s", outcome.Reason)
		h.ack(w, ackReceived)
	default:
		h.ack(w, ackReceived)
	}
}

func (h *WebhookHandler) ack(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		h.logger.Printf("error: write acknowledgement: %v", err)
	}
}
