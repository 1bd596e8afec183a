package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/codelove/codelove/internal/auth"
	"github.com/codelove/codelove/internal/identity"
	"github.com/codelove/codelove/internal/model"
	"github.com/codelove/codelove/internal/service"
)

// SessionHandler manages the session lifecycle: Google social sign-in,
// the current-user endpoint, on-demand reconciliation, and logout.
type SessionHandler struct {
	google   *identity.GoogleProvider // nil when Google credentials are not configured
	provider identity.Provider
	accounts *service.AccountService
	logger   *slog.Logger
}

func NewSessionHandler(
	google *identity.GoogleProvider,
	provider identity.Provider,
	accounts *service.AccountService,
	logger *slog.Logger,
) *SessionHandler {
	return &SessionHandler{
		google:   google,
		provider: provider,
		accounts: accounts,
		logger:   logger,
	}
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int((24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleGoogleLogin redirects the browser to Google's authorization page.
//
// HTTP: GET /auth/google/login
//
// The random state value goes into a short-lived cookie and is checked on
// callback, so only flows this server initiated can complete.
func (h *SessionHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the Google sign-in: state check, code
// exchange, provider sign-in, session cookie, and a synchronous reconcile
// so the local record exists before the user lands on the app.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
func (h *SessionHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	profile, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	session, err := h.provider.SocialSignIn(r.Context(), *profile)
	if err != nil {
		h.logger.Error("google callback: provider sign-in failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// A reconcile failure does not block the session; the next page load
	// retries it.
	result := h.accounts.Reconcile(r.Context(), session.Identity)
	if result.Outcome == service.ReconcileFailed {
		h.logger.Warn("google callback: reconcile failed",
			slog.String("externalID", session.Identity.ID),
		)
	}

	setSessionCookie(w, session.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type meResponse struct {
	User     *model.User       `json:"user"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HandleMe returns the signed-in user's local record plus the provider-side
// metadata attached to the identity.
//
// HTTP: GET /api/me
// Auth: required
//
// Reconcile runs first, so a session whose local record was never
// materialized (or needs an externalId backfill) self-heals on this call.
func (h *SessionHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	result := h.accounts.Reconcile(r.Context(), ident)
	if result.User == nil {
		h.logger.Error("me: no local record for identity",
			slog.String("externalID", ident.ID),
			slog.String("outcome", string(result.Outcome)),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "could not resolve your account",
		})
		return
	}

	// Metadata is decoration; a provider hiccup must not hide the profile.
	metadata, err := h.provider.Metadata(r.Context(), ident.ID)
	if err != nil {
		h.logger.Warn("me: metadata fetch failed",
			slog.String("externalID", ident.ID),
			slog.String("error", err.Error()),
		)
		metadata = nil
	}

	writeJSON(w, http.StatusOK, meResponse{User: result.User, Metadata: metadata})
}

type reconcileResponse struct {
	Outcome string      `json:"outcome"`
	User    *model.User `json:"user,omitempty"`
}

// HandleReconcile runs a reconciliation pass for the current session and
// reports what it did.
//
// HTTP: POST /api/session/reconcile
//
// The route is public: an anonymous caller gets the "unauthenticated"
// outcome with a 200, because reconciliation treats missing auth as a
// normal nothing-to-do case.
func (h *SessionHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	result := h.accounts.Reconcile(r.Context(), ident)
	writeJSON(w, http.StatusOK, reconcileResponse{
		Outcome: string(result.Outcome),
		User:    result.User,
	})
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /api/logout
//
// POST because logout changes state; a GET could be pre-fetched. The
// provider-side session is untouched — without the cookie the browser
// cannot present it, and it expires on its own.
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
