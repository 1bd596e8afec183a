// Package identity abstracts the external identity provider: the service of
// record for credentials, email verification, and session issuance.
//
// The rest of the application only sees the Provider interface. Two
// implementations exist: HTTPProvider talks to a hosted provider's REST API,
// and DevProvider is an in-process stand-in used when no API key is
// configured (local development, tests).
package identity

import "context"

// Identity is an authenticated external identity as the provider reports it.
type Identity struct {
	ID        string // provider's stable user id, e.g. "user_2abc..."
	Email     string // first verified email address ("" if none)
	Handle    string // provider-side username ("" if the user never chose one)
	FirstName string
	LastName  string
}

// Signup is the data a new password-based account is created from.
type Signup struct {
	Handle    string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// SocialProfile is a profile obtained from a social sign-in (Google). The
// email has already been verified by the social provider.
type SocialProfile struct {
	Email     string
	Handle    string
	FirstName string
	LastName  string
}

// PendingSignup identifies an account that exists at the provider but has
// not verified its email yet. No session exists for it, and no local record
// is created until verification completes.
type PendingSignup struct {
	ID    string
	Email string
}

// Verification is the outcome of a verification-code attempt. A wrong code
// is not an error: Complete is false and the caller may retry.
type Verification struct {
	Complete     bool
	SessionToken string // set only when Complete
}

// Session pairs a session token with the identity it authenticates.
type Session struct {
	Token    string
	Identity *Identity
}

// Provider is the external identity provider consumed by this service.
//
// Transport failures are returned as errors; callers treat them fail-closed
// (a handle whose external check failed counts as unavailable, a session
// that cannot be resolved counts as anonymous for that request).
type Provider interface {
	// IdentityFromSession resolves a session token to the authenticated
	// identity. Returns (nil, nil) for a missing, expired, or invalid
	// token — that is the normal anonymous case, not an error.
	IdentityFromSession(ctx context.Context, sessionToken string) (*Identity, error)

	// ListByHandle returns identities registered under the handle.
	ListByHandle(ctx context.Context, handle string) ([]Identity, error)

	// CreateIdentity creates a password-based account. Provider-side
	// validation failures (weak password, malformed email) come back as
	// apperror.ErrValidation with the provider's own message, which is
	// shown to the user verbatim.
	CreateIdentity(ctx context.Context, signup Signup) (*PendingSignup, error)

	// SendEmailVerification delivers a one-time code to the pending
	// account's email address.
	SendEmailVerification(ctx context.Context, pendingID string) error

	// ConfirmEmailVerification checks the code. On success the identity is
	// fully authenticated and the returned Verification carries a session
	// token.
	ConfirmEmailVerification(ctx context.Context, pendingID, code string) (*Verification, error)

	// SocialSignIn signs in (or signs up) an identity from a verified
	// social profile and returns an established session.
	SocialSignIn(ctx context.Context, profile SocialProfile) (*Session, error)

	// Metadata reads the free-form metadata attached to an identity.
	Metadata(ctx context.Context, externalID string) (map[string]string, error)

	// SetMetadata merges the given keys into the identity's metadata.
	SetMetadata(ctx context.Context, externalID string, metadata map[string]string) error
}
