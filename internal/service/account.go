package service

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/codelove/codelove/internal/identity"
	"github.com/codelove/codelove/internal/repository"
)

// AccountService owns the account lifecycle: registration against the
// external identity provider and reconciliation of authenticated identities
// into the local user store.
type AccountService struct {
	users    repository.UserRepository
	provider identity.Provider
	policy   HandlePolicy
	logger   *slog.Logger

	// suffix generates the numeric part of a fallback handle. Injected so
	// tests can pin it; production uses a random 0-999 value.
	suffix func() int
}

func NewAccountService(
	users repository.UserRepository,
	provider identity.Provider,
	policy HandlePolicy,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:    users,
		provider: provider,
		policy:   policy,
		logger:   logger,
		suffix:   func() int { return rand.Intn(1000) },
	}
}

// fallbackHandle derives an alternate handle when the desired one is taken
// at creation time: the base plus a random numeric suffix.
//
// The result is accepted without re-checking uniqueness. This is a
// best-effort fallback for the automatic-creation path, not a guarantee;
// the insert's UNIQUE constraint still has the final word, and a repeat
// collision is not retried.
func (s *AccountService) fallbackHandle(base string) string {
	return fmt.Sprintf("%s_%d", base, s.suffix())
}

// displayName derives the profile display name with the documented fallback
// order: first+last name, then the external handle, then the literal "User".
func displayName(ident *identity.Identity) string {
	name := strings.TrimSpace(strings.TrimSpace(ident.FirstName) + " " + strings.TrimSpace(ident.LastName))
	if name != "" {
		return name
	}
	if ident.Handle != "" {
		return ident.Handle
	}
	return "User"
}
