package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/codelove/codelove/internal/apperror"
	"github.com/codelove/codelove/internal/identity"
	"github.com/codelove/codelove/internal/model"
)

// ReconcileOutcome classifies what a reconciliation pass did.
type ReconcileOutcome string

const (
	ReconcileCreated         ReconcileOutcome = "created"
	ReconcileSynced          ReconcileOutcome = "synced"
	ReconcileUnauthenticated ReconcileOutcome = "unauthenticated"
	ReconcileMissingEmail    ReconcileOutcome = "missing_email"
	ReconcileFailed          ReconcileOutcome = "failed"
)

// ReconcileResult is what a reconciliation pass returns. User is set for
// the created and synced outcomes.
type ReconcileResult struct {
	Outcome ReconcileOutcome
	User    *model.User
}

// Reconcile ensures exactly one consistent local record exists for the
// authenticated external identity. It is safe to call on every page load:
// after the first successful pass it settles into a read-only "synced" and
// never mutates again.
//
// ident is the currently authenticated identity, passed in explicitly by
// the HTTP layer; nil means an anonymous visitor, which is a normal
// nothing-to-do outcome rather than an error.
//
// Reconcile never returns an error. A failure here must not break the
// caller's session — the user stays authenticated at the provider, and the
// next page load retries from scratch — so every store or provider fault is
// logged and absorbed into the Failed outcome.
func (s *AccountService) Reconcile(ctx context.Context, ident *identity.Identity) ReconcileResult {
	if ident == nil {
		return ReconcileResult{Outcome: ReconcileUnauthenticated}
	}
	if ident.Email == "" {
		// Email is the join key; without it there is nothing to match on.
		return ReconcileResult{Outcome: ReconcileMissingEmail}
	}

	existing, err := s.users.FindByEmail(ctx, ident.Email)
	switch {
	case err == nil:
		return s.syncExisting(ctx, ident, existing)
	case errors.Is(err, apperror.ErrNotFound):
		return s.createFromIdentity(ctx, ident)
	default:
		s.logger.Error("reconcile: email lookup failed",
			slog.String("externalID", ident.ID),
			slog.String("error", err.Error()),
		)
		return ReconcileResult{Outcome: ReconcileFailed}
	}
}

// createFromIdentity materializes a local record for an identity seen for
// the first time (the migration/backfill creation path, e.g. first login
// after a social sign-up).
func (s *AccountService) createFromIdentity(ctx context.Context, ident *identity.Identity) ReconcileResult {
	handle := ident.Handle
	if handle == "" {
		handle = ident.ID
	}

	// Local-only uniqueness check. The provider already guarantees its own
	// namespace for this identity, so querying it again would be wasted I/O.
	_, err := s.users.FindByHandle(ctx, handle)
	switch {
	case err == nil:
		handle = s.fallbackHandle(handle)
	case !errors.Is(err, apperror.ErrNotFound):
		s.logger.Error("reconcile: handle lookup failed",
			slog.String("externalID", ident.ID),
			slog.String("error", err.Error()),
		)
		return ReconcileResult{Outcome: ReconcileFailed}
	}

	user := &model.User{
		ExternalID:  ident.ID,
		Email:       ident.Email,
		Handle:      handle,
		DisplayName: displayName(ident),
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("reconcile: creating user failed",
			slog.String("externalID", ident.ID),
			slog.String("error", err.Error()),
		)
		return ReconcileResult{Outcome: ReconcileFailed}
	}

	s.writeBackMetadata(ctx, ident.ID, user.ID)

	s.logger.Info("reconcile: local user created",
		slog.String("userID", user.ID),
		slog.String("externalID", ident.ID),
		slog.String("handle", user.Handle),
	)
	return ReconcileResult{Outcome: ReconcileCreated, User: user}
}

// syncExisting brings an already-present record into agreement with the
// identity. The only mutation it ever performs is the one-time externalId
// backfill; a record linked to this identity is returned untouched.
func (s *AccountService) syncExisting(ctx context.Context, ident *identity.Identity, user *model.User) ReconcileResult {
	switch user.ExternalID {
	case "":
		if err := s.users.SetExternalID(ctx, user.ID, ident.ID); err != nil {
			s.logger.Error("reconcile: backfilling external id failed",
				slog.String("userID", user.ID),
				slog.String("externalID", ident.ID),
				slog.String("error", err.Error()),
			)
			return ReconcileResult{Outcome: ReconcileFailed}
		}
		user.ExternalID = ident.ID
		s.writeBackMetadata(ctx, ident.ID, user.ID)
		s.logger.Info("reconcile: external id backfilled",
			slog.String("userID", user.ID),
			slog.String("externalID", ident.ID),
		)
		return ReconcileResult{Outcome: ReconcileSynced, User: user}

	case ident.ID:
		// Already linked; nothing to write.
		return ReconcileResult{Outcome: ReconcileSynced, User: user}

	default:
		// The record's email now belongs to a different external identity.
		// Relinking is forbidden, so this pass can only report failure.
		s.logger.Error("reconcile: record linked to a different identity",
			slog.String("userID", user.ID),
			slog.String("linkedExternalID", user.ExternalID),
			slog.String("authenticatedExternalID", ident.ID),
		)
		return ReconcileResult{Outcome: ReconcileFailed}
	}
}

// writeBackMetadata stores the local record id in the identity's provider
// metadata. Best effort: the local record is the source of truth, so a
// failed write is only logged.
func (s *AccountService) writeBackMetadata(ctx context.Context, externalID, userID string) {
	err := s.provider.SetMetadata(ctx, externalID, map[string]string{"local_user_id": userID})
	if err != nil {
		s.logger.Warn("reconcile: metadata write-back failed",
			slog.String("externalID", externalID),
			slog.String("error", err.Error()),
		)
	}
}
