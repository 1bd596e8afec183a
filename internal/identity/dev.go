package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rs/xid"

	"github.com/codelove/codelove/internal/apperror"
)

// DevProvider is an in-process identity provider used when no hosted
// provider is configured. It keeps everything in memory, hashes passwords
// and verification codes with bcrypt, and logs verification codes instead of
// sending email. Sessions are HS256 tokens from the shared TokenService, so
// the rest of the stack behaves exactly as it would against a hosted
// provider.
//
// State is guarded by a mutex: registration and reconciliation requests for
// different users run concurrently.
type DevProvider struct {
	tokens *TokenService
	hasher *passwordHasher
	logger *slog.Logger

	mu       sync.Mutex
	accounts map[string]*devAccount // keyed by external id
	byEmail  map[string]string      // email → external id
	byHandle map[string]string      // handle → external id
	pending  map[string]*devPending // pending signup id → state
}

type devAccount struct {
	Identity
	passwordHash string
	verified     bool
	metadata     map[string]string
}

type devPending struct {
	externalID string
	codeHash   string
}

// NewDevProvider creates an empty in-process provider.
func NewDevProvider(tokens *TokenService, logger *slog.Logger) *DevProvider {
	return &DevProvider{
		tokens:   tokens,
		hasher:   newPasswordHasher(),
		logger:   logger,
		accounts: make(map[string]*devAccount),
		byEmail:  make(map[string]string),
		byHandle: make(map[string]string),
		pending:  make(map[string]*devPending),
	}
}

// NewDevProviderForTest uses the minimum bcrypt cost so tests avoid the
// ~250ms per hash of the production setting.
func NewDevProviderForTest(tokens *TokenService, logger *slog.Logger) *DevProvider {
	p := NewDevProvider(tokens, logger)
	p.hasher = &passwordHasher{cost: 4}
	return p
}

var _ Provider = (*DevProvider)(nil)

// IdentityFromSession resolves a session token. Invalid or expired tokens
// mean "anonymous", not failure.
func (p *DevProvider) IdentityFromSession(_ context.Context, sessionToken string) (*Identity, error) {
	if sessionToken == "" {
		return nil, nil
	}
	externalID, err := p.tokens.Validate(sessionToken)
	if err != nil {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[externalID]
	if !ok || !acct.verified {
		return nil, nil
	}
	ident := acct.Identity
	return &ident, nil
}

// ListByHandle returns the identities registered under the handle,
// including unverified ones — the handle is reserved the moment the account
// is created at the provider.
func (p *DevProvider) ListByHandle(_ context.Context, handle string) ([]Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.byHandle[strings.ToLower(handle)]
	if !ok {
		return nil, nil
	}
	acct := p.accounts[id]
	return []Identity{acct.Identity}, nil
}

// CreateIdentity creates an unverified password account. The validation
// messages mimic a hosted provider's: they are shown to the user verbatim.
func (p *DevProvider) CreateIdentity(_ context.Context, signup Signup) (*PendingSignup, error) {
	if !strings.Contains(signup.Email, "@") {
		return nil, apperror.ValidationFailed("email", "Email address is invalid.")
	}
	if len(signup.Password) < 8 {
		return nil, apperror.ValidationFailed("password", "Passwords must be 8 characters or more.")
	}

	hash, err := p.hasher.Hash(signup.Password)
	if err != nil {
		return nil, fmt.Errorf("identity: dev create: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, taken := p.byEmail[strings.ToLower(signup.Email)]; taken {
		return nil, apperror.Conflict("email", "That email address is taken. Please try another.")
	}
	if _, taken := p.byHandle[strings.ToLower(signup.Handle)]; taken {
		return nil, apperror.Conflict("handle", "That username is taken. Please try another.")
	}

	externalID := "user_" + xid.New().String()
	p.accounts[externalID] = &devAccount{
		Identity: Identity{
			ID:        externalID,
			Email:     signup.Email,
			Handle:    signup.Handle,
			FirstName: signup.FirstName,
			LastName:  signup.LastName,
		},
		passwordHash: hash,
		metadata:     make(map[string]string),
	}
	p.byEmail[strings.ToLower(signup.Email)] = externalID
	p.byHandle[strings.ToLower(signup.Handle)] = externalID

	pendingID := "pend_" + xid.New().String()
	p.pending[pendingID] = &devPending{externalID: externalID}

	return &PendingSignup{ID: pendingID, Email: signup.Email}, nil
}

// SendEmailVerification generates a one-time code for the pending signup.
// There is no mail transport in dev mode; the code is logged instead.
func (p *DevProvider) SendEmailVerification(_ context.Context, pendingID string) error {
	code, err := verificationCode()
	if err != nil {
		return fmt.Errorf("identity: generating verification code: %w", err)
	}
	codeHash, err := p.hasher.Hash(code)
	if err != nil {
		return fmt.Errorf("identity: hashing verification code: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pend, ok := p.pending[pendingID]
	if !ok {
		return apperror.NotFound("pending signup", pendingID)
	}
	pend.codeHash = codeHash

	acct := p.accounts[pend.externalID]
	p.logger.Info("dev provider: verification code issued",
		slog.String("email", acct.Email),
		slog.String("code", code),
	)

	return nil
}

// ConfirmEmailVerification checks the code. A wrong code returns an
// incomplete Verification, not an error — the caller may retry.
func (p *DevProvider) ConfirmEmailVerification(_ context.Context, pendingID, code string) (*Verification, error) {
	p.mu.Lock()
	pend, ok := p.pending[pendingID]
	if !ok {
		p.mu.Unlock()
		return nil, apperror.NotFound("pending signup", pendingID)
	}
	codeHash := pend.codeHash
	externalID := pend.externalID
	p.mu.Unlock()

	if codeHash == "" || p.hasher.Verify(codeHash, code) != nil {
		return &Verification{Complete: false}, nil
	}

	p.mu.Lock()
	p.accounts[externalID].verified = true
	delete(p.pending, pendingID)
	p.mu.Unlock()

	token, err := p.tokens.Generate(externalID)
	if err != nil {
		return nil, fmt.Errorf("identity: issuing dev session: %w", err)
	}

	return &Verification{Complete: true, SessionToken: token}, nil
}

// SocialSignIn signs in an identity from a verified social profile,
// creating the account on first sight.
func (p *DevProvider) SocialSignIn(_ context.Context, profile SocialProfile) (*Session, error) {
	if profile.Email == "" {
		return nil, apperror.ValidationFailed("email", "Social profile has no email address.")
	}

	p.mu.Lock()
	externalID, ok := p.byEmail[strings.ToLower(profile.Email)]
	if !ok {
		externalID = "user_" + xid.New().String()
		handle := profile.Handle
		if _, taken := p.byHandle[strings.ToLower(handle)]; taken || handle == "" {
			// Provider-side namespace must stay unique; fall back to the id.
			handle = externalID
		}
		p.accounts[externalID] = &devAccount{
			Identity: Identity{
				ID:        externalID,
				Email:     profile.Email,
				Handle:    handle,
				FirstName: profile.FirstName,
				LastName:  profile.LastName,
			},
			verified: true,
			metadata: make(map[string]string),
		}
		p.byEmail[strings.ToLower(profile.Email)] = externalID
		p.byHandle[strings.ToLower(handle)] = externalID
	}
	acct := p.accounts[externalID]
	acct.verified = true
	ident := acct.Identity
	p.mu.Unlock()

	token, err := p.tokens.Generate(externalID)
	if err != nil {
		return nil, fmt.Errorf("identity: issuing dev session: %w", err)
	}

	return &Session{Token: token, Identity: &ident}, nil
}

// Metadata returns a copy of the identity's metadata.
func (p *DevProvider) Metadata(_ context.Context, externalID string) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.accounts[externalID]
	if !ok {
		return nil, apperror.NotFound("identity", externalID)
	}
	out := make(map[string]string, len(acct.metadata))
	for k, v := range acct.metadata {
		out[k] = v
	}
	return out, nil
}

// SetMetadata merges keys into the identity's metadata.
func (p *DevProvider) SetMetadata(_ context.Context, externalID string, metadata map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.accounts[externalID]
	if !ok {
		return apperror.NotFound("identity", externalID)
	}
	for k, v := range metadata {
		acct.metadata[k] = v
	}
	return nil
}

// verificationCode returns a random six-digit code.
func verificationCode() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	n := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return fmt.Sprintf("%06d", n%1000000), nil
}
