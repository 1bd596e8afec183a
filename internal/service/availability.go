package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/codelove/codelove/internal/apperror"
	"github.com/codelove/codelove/internal/identity"
	"github.com/codelove/codelove/internal/repository"
)

// Availability is the verdict on a handle candidate.
type Availability int

const (
	Available Availability = iota
	TakenLocally
	TakenExternally
	// CheckFailed means a store or provider query could not complete.
	// Callers must treat it as unavailable — a false "available" could let
	// two accounts race onto the same handle.
	CheckFailed
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case TakenLocally:
		return "taken_locally"
	case TakenExternally:
		return "taken_externally"
	case CheckFailed:
		return "check_failed"
	default:
		return "unknown"
	}
}

// AvailabilityService answers "is this handle free?" across both stores.
//
// The answer is advisory: the local store and the provider are queried
// independently with no shared lock, so a handle can be taken between this
// check and the actual insert. The UNIQUE constraint at insert time is the
// authority; this service only gives fast feedback and shrinks the
// collision window.
type AvailabilityService struct {
	users    repository.UserRepository
	provider identity.Provider
	policy   HandlePolicy
	logger   *slog.Logger
}

func NewAvailabilityService(
	users repository.UserRepository,
	provider identity.Provider,
	policy HandlePolicy,
	logger *slog.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		users:    users,
		provider: provider,
		policy:   policy,
		logger:   logger,
	}
}

// Check resolves the candidate to a verdict. Checks run cheapest-first and
// short-circuit on the first conflict: syntax (no I/O), then the local
// store, then the provider.
//
// A non-nil error is returned only for syntax rejections, before any I/O.
// Store or provider failures never surface as errors: they are logged and
// collapsed into the CheckFailed verdict, which callers treat as taken.
func (s *AvailabilityService) Check(ctx context.Context, candidate string) (Availability, error) {
	if err := s.policy.Validate(candidate); err != nil {
		return CheckFailed, err
	}

	_, err := s.users.FindByHandle(ctx, candidate)
	switch {
	case err == nil:
		return TakenLocally, nil
	case !errors.Is(err, apperror.ErrNotFound):
		s.logger.Warn("availability: local lookup failed",
			slog.String("handle", candidate),
			slog.String("error", err.Error()),
		)
		return CheckFailed, nil
	}

	idents, err := s.provider.ListByHandle(ctx, candidate)
	if err != nil {
		s.logger.Warn("availability: provider lookup failed",
			slog.String("handle", candidate),
			slog.String("error", err.Error()),
		)
		return CheckFailed, nil
	}
	if len(idents) > 0 {
		return TakenExternally, nil
	}

	return Available, nil
}

// IsAvailable collapses Check to the boolean the registration form polls
// while the user types. Anything but a clean Available — including a failed
// check — reads as unavailable.
func (s *AvailabilityService) IsAvailable(ctx context.Context, candidate string) bool {
	verdict, err := s.Check(ctx, candidate)
	return err == nil && verdict == Available
}
