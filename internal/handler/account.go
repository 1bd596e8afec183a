package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/codelove/codelove/internal/service"
)

// AccountHandler serves registration, email verification, and the live
// handle-availability check behind the signup form.
type AccountHandler struct {
	accounts     *service.AccountService
	availability *service.AvailabilityService
	logger       *slog.Logger
}

func NewAccountHandler(
	accounts *service.AccountService,
	availability *service.AvailabilityService,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts:     accounts,
		availability: availability,
		logger:       logger,
	}
}

type registerRequest struct {
	Handle    string `json:"handle"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type registerResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	PendingID string `json:"pendingId,omitempty"`
	Email     string `json:"email,omitempty"`
}

// HandleRegister starts a signup.
//
// HTTP: POST /api/register
//
// The response is always 200 with a success flag: a taken username or a
// weak password is a normal form outcome the frontend renders inline, not
// an HTTP failure. Success means a verification code was emailed; the
// client holds pendingId and submits the code to /api/register/verify.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	result := h.accounts.Register(r.Context(), service.RegistrationForm{
		Handle:    req.Handle,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})

	writeJSON(w, http.StatusOK, registerResponse{
		Success:   result.Success,
		Message:   result.Message,
		Field:     result.Field,
		PendingID: result.PendingID,
		Email:     result.Email,
	})
}

type verifyRequest struct {
	PendingID string `json:"pendingId"`
	Code      string `json:"code"`
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleVerify submits the emailed verification code.
//
// HTTP: POST /api/register/verify
//
// A wrong code comes back success=false and the client may retry with the
// same pendingId. On acceptance the session cookie is set and the user is
// fully signed in.
func (h *AccountHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	result := h.accounts.ConfirmVerification(r.Context(), req.PendingID, req.Code)
	if result.Success {
		setSessionCookie(w, result.SessionToken)
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Success: result.Success,
		Message: result.Message,
	})
}

type availabilityResponse struct {
	Handle    string `json:"handle"`
	Available bool   `json:"available"`
	Status    string `json:"status"`
}

// HandleAvailability answers the signup form's "is this handle free?" poll.
//
// HTTP: GET /api/handle-availability?handle=somename
//
// The answer is advisory; the insert's unique constraint has the final
// word. A candidate the policy rejects outright is a 400 so the form can
// show the rule violation instead of "taken".
func (h *AccountHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	candidate := r.URL.Query().Get("handle")

	verdict, err := h.availability.Check(r.Context(), candidate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Field:   "handle",
		})
		return
	}

	writeJSON(w, http.StatusOK, availabilityResponse{
		Handle:    candidate,
		Available: verdict == service.Available,
		Status:    verdict.String(),
	})
}
