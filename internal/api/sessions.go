package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NickPugin/wattsup-training-tracker-app/internal/auth"
	"github.com/NickPugin/wattsup-training-tracker-app/internal/domain"
)

// Handler coordinates the session endpoints with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/sessions", h.sessions)
	mux.HandleFunc("/v1/leaderboard", h.leaderboard)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createSession(w, r)
	case http.MethodGet:
		h.listSessions(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSessionsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sessions:write required")
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	date, _ := time.Parse("2006-01-02", req.Date)
	session, err := h.service.CreateSession(r.Context(), domain.CreateSessionInput{
		UserID:          claims.Subject,
		Date:            date,
		DurationMinutes: req.DurationMinutes,
		AverageWatts:    req.AverageWatts,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toSessionView(*session))
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSessionsRead) && !claims.HasScope(auth.ScopeSessionsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sessions:read required")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = claims.Subject
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	sessions, err := h.service.ListSessions(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, toSessionView(s))
	}
	writeJSON(w, http.StatusOK, ListSessionsResponse{Items: items})
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSessionsRead) && !claims.HasScope(auth.ScopeSessionsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sessions:read required")
		return
	}

	entries, err := h.service.Leaderboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]LeaderboardEntryView, 0, len(entries))
	for _, e := range entries {
		items = append(items, LeaderboardEntryView{
			UserID:               e.UserID,
			DisplayName:          e.DisplayName,
			TotalEnergyKWh:       e.TotalEnergyKWh,
			TotalDurationMinutes: e.TotalDurationMinutes,
			Sessions:             e.Sessions,
		})
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{Items: items})
}

// CreateSessionRequest is the payload for POST /v1/sessions.
type CreateSessionRequest struct {
	Date            string `json:"date"`
	DurationMinutes int    `json:"duration_minutes"`
	AverageWatts    int    `json:"average_watts"`
}

// Validate ensures request correctness.
func (r CreateSessionRequest) Validate() error {
	if strings.TrimSpace(r.Date) == "" {
		return errors.New("date is required")
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return errors.New("date must be YYYY-MM-DD")
	}
	if r.DurationMinutes <= 0 {
		return errors.New("duration_minutes must be > 0")
	}
	if r.AverageWatts <= 0 {
		return errors.New("average_watts must be > 0")
	}
	return nil
}

// SessionView exposes a session row.
type SessionView struct {
	SessionID        string    `json:"session_id"`
	UserID           string    `json:"user_id"`
	Date             string    `json:"date"`
	DurationMinutes  int       `json:"duration_minutes"`
	AverageWatts     int       `json:"average_watts"`
	EnergyKWh        float64   `json:"energy_kwh"`
	StravaActivityID *int64    `json:"strava_activity_id,omitempty"`
	Source           string    `json:"source"`
	CreatedAt        time.Time `json:"created_at"`
}

// ListSessionsResponse packages list results.
type ListSessionsResponse struct {
	Items []SessionView `json:"items"`
}

// LeaderboardEntryView exposes one leaderboard row.
type LeaderboardEntryView struct {
	UserID               string  `json:"user_id"`
	DisplayName          string  `json:"display_name"`
	TotalEnergyKWh       float64 `json:"total_energy_kwh"`
	TotalDurationMinutes int     `json:"total_duration_minutes"`
	Sessions             int     `json:"sessions"`
}

// LeaderboardResponse packages leaderboard results.
type LeaderboardResponse struct {
	Items []LeaderboardEntryView `json:"items"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toSessionView(s domain.Session) SessionView {
	return SessionView{
		SessionID:        s.ID,
		UserID:           s.UserID,
		Date:             s.Date.Format("2006-01-02"),
		DurationMinutes:  s.DurationMinutes,
		AverageWatts:     s.AverageWatts,
		EnergyKWh:        s.EnergyKWh,
		StravaActivityID: s.StravaActivityID,
		Source:           string(s.Source),
		CreatedAt:        s.CreatedAt,
	}
}
