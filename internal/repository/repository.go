// Package repository declares the storage interfaces consumed by the service
// layer. The sqlite subpackage provides the production implementation; tests
// substitute in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/codelove/codelove/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository is the local user store.
//
// The store owns the only hard uniqueness guarantees in the system: UNIQUE
// constraints on email and handle. Create must surface violations as
// apperror.Conflict with the offending field set, because a duplicate-key
// failure at insert time is the expected outcome of two registrations racing
// past the advisory availability check — callers turn it into a user-facing
// "already taken" message, not an internal error.
//
// Find methods return apperror.ErrNotFound (wrapped) when no row matches.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByHandle(ctx context.Context, handle string) (*model.User, error)
	// FindByEmailOrHandle returns the first record matching either key.
	// Used by registration to detect conflicts in a single query.
	FindByEmailOrHandle(ctx context.Context, email, handle string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	// SetExternalID links a record to an external identity. The link is
	// write-once: linking an already-linked record to a different identity
	// is a conflict. Re-linking to the same identity is a no-op.
	SetExternalID(ctx context.Context, id, externalID string) error
}

type SubmissionRepository interface {
	Create(ctx context.Context, sub *model.Submission) error
	// ListForUserSince returns submissions by the user created at or after
	// the cutoff, newest first. Backs the contribution graph (last year).
	ListForUserSince(ctx context.Context, userID string, since time.Time) ([]model.Submission, error)
}

type ProblemRepository interface {
	GetBySlug(ctx context.Context, slug string) (*model.Problem, error)
	List(ctx context.Context, opts ListOptions) ([]model.Problem, error)
}
