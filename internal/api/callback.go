package api

import (
	"context"
	"log"
	"net/http"
	"net/url"

	"github.com/NickPugin/wattsup-training-tracker-app/internal/domain"
	"github.com/NickPugin/wattsup-training-tracker-app/internal/strava"
)

// CodeExchanger trades an OAuth authorization code for a token triple.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (*strava.TokenResponse, error)
}

// CallbackHandler completes the Strava account link: it exchanges the
// authorization code and stores the athlete id and tokens against the profile
// carried in the state parameter. Failures redirect the browser back to the
// dashboard with an error query parameter; this is a user-facing flow, not a
// provider callback, so there is no always-200 contract here.
type CallbackHandler struct {
	exchanger  CodeExchanger
	profiles   domain.ProfileRepository
	appBaseURL string
	logger     *log.Logger
}

// NewCallbackHandler builds a CallbackHandler. appBaseURL prefixes the
// dashboard redirects; empty means same-origin relative redirects.
func NewCallbackHandler(exchanger CodeExchanger, profiles domain.ProfileRepository, appBaseURL string) *CallbackHandler {
	return &CallbackHandler{
		exchanger:  exchanger,
		profiles:   profiles,
		appBaseURL: appBaseURL,
		logger:     log.New(log.Writer(), "[oauth] ", log.LstdFlags),
	}
}

// RegisterRoutes wires the callback endpoint to the mux.
func (h *CallbackHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/strava/callback", h.callback)
}

func (h *CallbackHandler) callback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	query := r.URL.Query()

	if oauthErr := query.Get("error"); oauthErr != "" {
		h.logger.Printf("error: strava oauth denied: %s", oauthErr)
		h.redirectError(w, r, "access_denied")
		return
	}

	code := query.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing authorization code")
		return
	}

	userID := query.Get("state")
	if userID == "" {
		h.logger.Printf("error: callback without state parameter")
		h.redirectError(w, r, "missing_state")
		return
	}

	token, err := h.exchanger.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Printf("error: code exchange for user %s: %v", userID, err)
		h.redirectError(w, r, "token_exchange_failed")
		return
	}

	if err := h.profiles.LinkStravaAccount(r.Context(), userID, token.Athlete.ID, token.Credential()); err != nil {
		h.logger.Printf("error: link strava account for user %s: %v", userID, err)
		h.redirectError(w, r, "link_failed")
		return
	}

	h.logger.Printf("linked strava athlete %d to user %s", token.Athlete.ID, userID)
	http.Redirect(w, r, h.appBaseURL+"/dashboard?strava_sync=success", http.StatusFound)
}

func (h *CallbackHandler) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	target := h.appBaseURL + "/dashboard?strava_error=" + url.QueryEscape(reason)
	http.Redirect(w, r, target, http.StatusFound)
}
