package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codelove/codelove/internal/auth"
	"github.com/codelove/codelove/internal/model"
	"github.com/codelove/codelove/internal/service"
)

// ProfileHandler serves public profiles, the contribution-graph feed, and
// submission recording.
type ProfileHandler struct {
	profiles *service.ProfileService
	accounts *service.AccountService
	logger   *slog.Logger
}

func NewProfileHandler(
	profiles *service.ProfileService,
	accounts *service.AccountService,
	logger *slog.Logger,
) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		accounts: accounts,
		logger:   logger,
	}
}

type publicProfile struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	MemberSince string `json:"memberSince"`
}

// HandleProfile returns the public view of a user.
//
// HTTP: GET /api/u/{handle}
//
// Only public fields leave the server; email and the external identity
// link stay internal.
func (h *ProfileHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	user, err := h.profiles.PublicProfile(r.Context(), handle)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, publicProfile{
		Handle:      user.Handle,
		DisplayName: user.DisplayName,
		MemberSince: user.CreatedAt.Format("2006-01-02"),
	})
}

type submissionsResponse struct {
	Handle      string                `json:"handle"`
	Submissions []model.SubmissionDay `json:"submissions"`
}

// HandleSubmissions returns the trailing year of a user's submissions as
// the (createdAt, status) pairs the contribution graph renders.
//
// HTTP: GET /api/u/{handle}/submissions
func (h *ProfileHandler) HandleSubmissions(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	days, err := h.profiles.SubmissionsLastYear(r.Context(), handle)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submissionsResponse{
		Handle:      handle,
		Submissions: days,
	})
}

type createSubmissionRequest struct {
	ProblemSlug string `json:"problemSlug"`
	Status      string `json:"status"`
}

// HandleCreateSubmission records a problem attempt for the signed-in user.
//
// HTTP: POST /api/submissions
// Auth: required
//
// The local user id comes from a reconcile pass on the session identity,
// so a first-ever submission also materializes the local record.
func (h *ProfileHandler) HandleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	result := h.accounts.Reconcile(r.Context(), ident)
	if result.User == nil {
		h.logger.Error("submission: no local record for identity",
			slog.String("externalID", ident.ID),
			slog.String("outcome", string(result.Outcome)),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "could not resolve your account",
		})
		return
	}

	sub, err := h.profiles.RecordSubmission(r.Context(), result.User.ID, req.ProblemSlug, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}
