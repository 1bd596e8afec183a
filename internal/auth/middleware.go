// Package auth resolves the session cookie into an authenticated identity
// and exposes it to handlers through the request context.
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/codelove/codelove/internal/identity"
)

// SessionCookie is the name of the HttpOnly cookie carrying the provider's
// session token.
const SessionCookie = "session"

// contextKey is unexported so only this package can read or write the
// identity slot in a request context.
type contextKey string

const identityKey contextKey = "identity"

// RequireSession enforces authentication on protected routes. The session
// token from the cookie is resolved at the identity provider; a missing,
// expired, or unresolvable token ends the request with 401.
func RequireSession(provider identity.Provider, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := resolveIdentity(r, provider, logger)
			if ident == nil {
				http.Error(w, `{"error":"unauthorized","message":"valid session required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalSession resolves the identity if a valid session cookie is present
// but never blocks the request. Handlers see an anonymous request when
// IdentityFromContext returns (nil, false).
func OptionalSession(provider identity.Provider, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ident := resolveIdentity(r, provider, logger); ident != nil {
				ctx := context.WithValue(r.Context(), identityKey, ident)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext returns the authenticated identity set by the session
// middleware, or (nil, false) for an anonymous request.
func IdentityFromContext(ctx context.Context) (*identity.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(*identity.Identity)
	return ident, ok && ident != nil
}

// resolveIdentity reads the session cookie and asks the provider who it
// belongs to. Every failure mode collapses to anonymous: no cookie, an
// invalid token (provider answers nil, nil), or a provider transport error.
// Treating a transport error as anonymous keeps public pages readable when
// the provider is down; protected routes turn the nil into a 401.
func resolveIdentity(r *http.Request, provider identity.Provider, logger *slog.Logger) *identity.Identity {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}

	ident, err := provider.IdentityFromSession(r.Context(), cookie.Value)
	if err != nil {
		logger.Warn("auth: session resolution failed", slog.String("error", err.Error()))
		return nil
	}
	return ident
}
