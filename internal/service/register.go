package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/codelove/codelove/internal/apperror"
	"github.com/codelove/codelove/internal/identity"
)

// RegistrationForm is the signup form, modeled with named fields rather
// than a loose key/value bag so the required-field rules are visible in the
// type.
type RegistrationForm struct {
	Handle    string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegistrationResult reports the outcome of a registration attempt. On
// success PendingID identifies the unverified provider account; the caller
// holds onto it and submits the emailed code via ConfirmVerification.
type RegistrationResult struct {
	Success   bool
	Message   string
	Field     string // which field failed, for form highlighting ("" on success)
	PendingID string
	Email     string
}

// VerificationResult reports a verification-code attempt. On success the
// session token authenticates the new identity and Reconcile carries the
// synchronously-created local record.
type VerificationResult struct {
	Success      bool
	Message      string
	SessionToken string
	Reconcile    ReconcileResult
}

const genericRegisterFailure = "Failed to register user"

// Register runs the end-to-end signup sequence: field validation, local
// conflict check, external conflict check, account creation at the
// provider, and the email-verification kick-off. No local record is created
// here — that happens in Reconcile after the email is verified.
//
// Calling Register twice with the same email cannot create a duplicate: the
// second call stops at the local conflict check (or, if both raced past it,
// at the store's unique constraint during the later reconcile).
func (s *AccountService) Register(ctx context.Context, form RegistrationForm) RegistrationResult {
	// Fail fast on missing fields before any I/O.
	if form.Handle == "" || form.Email == "" {
		return RegistrationResult{Message: "Username and email are required", Field: "form"}
	}
	if form.Password == "" {
		return RegistrationResult{Message: "Password is required", Field: "password"}
	}
	if err := s.policy.Validate(form.Handle); err != nil {
		return RegistrationResult{Message: err.Error(), Field: "handle"}
	}

	// Local conflict check, both keys in one query. When the same record
	// matches both, the handle conflict wins the message.
	existing, err := s.users.FindByEmailOrHandle(ctx, form.Email, form.Handle)
	switch {
	case err == nil:
		if existing.Handle == form.Handle {
			return RegistrationResult{Message: "Username already taken", Field: "handle"}
		}
		return RegistrationResult{Message: "Email already registered", Field: "email"}
	case !errors.Is(err, apperror.ErrNotFound):
		s.logger.Error("register: local conflict check failed", slog.String("error", err.Error()))
		return RegistrationResult{Message: genericRegisterFailure}
	}

	// External namespace check. Failure is fail-closed: we refuse to
	// create an account we could not prove conflict-free.
	idents, err := s.provider.ListByHandle(ctx, form.Handle)
	if err != nil {
		s.logger.Error("register: provider handle check failed", slog.String("error", err.Error()))
		return RegistrationResult{Message: genericRegisterFailure}
	}
	if len(idents) > 0 {
		return RegistrationResult{
			Message: "That username is taken at the identity provider. Please try another.",
			Field:   "handle",
		}
	}

	pending, err := s.provider.CreateIdentity(ctx, identity.Signup{
		Handle:    form.Handle,
		Email:     form.Email,
		Password:  form.Password,
		FirstName: form.FirstName,
		LastName:  form.LastName,
	})
	if err != nil {
		// Provider-native validation and conflict messages ("Passwords
		// must be 8 characters or more.") are more useful than a generic
		// one — pass them through verbatim.
		var ae *apperror.AppError
		if errors.As(err, &ae) {
			return RegistrationResult{Message: ae.Message, Field: ae.Field}
		}
		s.logger.Error("register: provider create failed", slog.String("error", err.Error()))
		return RegistrationResult{Message: "Failed to create account. Please check your inputs."}
	}

	if err := s.provider.SendEmailVerification(ctx, pending.ID); err != nil {
		s.logger.Error("register: sending verification failed",
			slog.String("pendingID", pending.ID),
			slog.String("error", err.Error()),
		)
		return RegistrationResult{Message: "Failed to send verification code. Please try again."}
	}

	s.logger.Info("register: verification pending",
		slog.String("pendingID", pending.ID),
		slog.String("handle", form.Handle),
	)
	return RegistrationResult{
		Success:   true,
		Message:   "Verification code sent",
		PendingID: pending.ID,
		Email:     pending.Email,
	}
}

// ConfirmVerification submits the emailed code for a pending signup. A
// wrong code is a retryable failure: the pending signup stays valid and the
// user may submit another code without restarting registration.
//
// On acceptance the identity is fully authenticated; the local record is
// materialized synchronously (via Reconcile) before success is returned, so
// the caller can redirect straight into the authenticated app.
func (s *AccountService) ConfirmVerification(ctx context.Context, pendingID, code string) VerificationResult {
	if pendingID == "" || code == "" {
		return VerificationResult{Message: "Verification code is required"}
	}

	verification, err := s.provider.ConfirmEmailVerification(ctx, pendingID, code)
	if err != nil {
		s.logger.Error("verify: provider confirmation failed",
			slog.String("pendingID", pendingID),
			slog.String("error", err.Error()),
		)
		return VerificationResult{Message: "Verification failed. Please try again."}
	}
	if !verification.Complete {
		return VerificationResult{Message: "Invalid verification code."}
	}

	ident, err := s.provider.IdentityFromSession(ctx, verification.SessionToken)
	if err != nil || ident == nil {
		s.logger.Error("verify: resolving new session failed",
			slog.String("pendingID", pendingID),
		)
		return VerificationResult{Message: "Verification failed. Please try again."}
	}

	// Materialize the local record before reporting success. A reconcile
	// failure is logged but does not block the session — the identity is
	// verified and authenticated at the provider regardless, and the next
	// page load retries the sync.
	reconcile := s.Reconcile(ctx, ident)
	if reconcile.Outcome == ReconcileFailed {
		s.logger.Warn("verify: post-verification reconcile failed",
			slog.String("externalID", ident.ID),
		)
	}

	return VerificationResult{
		Success:      true,
		Message:      "User registered successfully!",
		SessionToken: verification.SessionToken,
		Reconcile:    reconcile,
	}
}
