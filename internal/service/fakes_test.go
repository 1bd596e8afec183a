package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/codelove/codelove/internal/apperror"
	"github.com/codelove/codelove/internal/identity"
	"github.com/codelove/codelove/internal/model"
	"github.com/codelove/codelove/internal/repository"
)

// =========================================================================
// FAKES
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. Call counters let
// tests assert short-circuit ordering (e.g. "the provider was never
// queried"); the err fields simulate store failures.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by internal ID
	nextID int

	findByEmailCalls  int
	findByHandleCalls int
	createCalls       int
	setExternalCalls  int

	findErr   error
	createErr error
	setErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) add(user model.User) *model.User {
	f.nextID++
	if user.ID == "" {
		user.ID = fmt.Sprintf("u%d", f.nextID)
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	stored := user
	f.users[user.ID] = &stored
	return &stored
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	f.findByEmailCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) FindByHandle(_ context.Context, handle string) (*model.User, error) {
	f.findByHandleCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, u := range f.users {
		if u.Handle == handle {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", handle)
}

func (f *fakeUserRepo) FindByEmailOrHandle(_ context.Context, email, handle string) (*model.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, u := range f.users {
		if u.Email == email || u.Handle == handle {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("email", "Email already registered")
		}
		if u.Handle == user.Handle {
			return apperror.Conflict("handle", "Username already taken")
		}
	}
	*user = *f.add(*user)
	return nil
}

func (f *fakeUserRepo) SetExternalID(_ context.Context, id, externalID string) error {
	f.setExternalCalls++
	if f.setErr != nil {
		return f.setErr
	}
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	if u.ExternalID == externalID {
		return nil
	}
	if u.ExternalID != "" {
		return apperror.Conflict("externalId", "user already linked to a different external identity")
	}
	u.ExternalID = externalID
	return nil
}

// fakeProvider is a scriptable identity.Provider.
type fakeProvider struct {
	// identities the provider knows, keyed by handle
	byHandle map[string]identity.Identity

	listCalls    int
	createCalls  int
	sendCalls    int
	confirmCalls int

	listErr    error
	createErr  error
	sendErr    error
	confirmErr error

	// scripted verification outcome and the identity behind its session
	verification    *identity.Verification
	sessionIdentity *identity.Identity

	createdSignups []identity.Signup
	metadata       map[string]map[string]string
	metadataErr    error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		byHandle: make(map[string]identity.Identity),
		metadata: make(map[string]map[string]string),
	}
}

func (f *fakeProvider) IdentityFromSession(_ context.Context, token string) (*identity.Identity, error) {
	if token == "" || f.sessionIdentity == nil {
		return nil, nil
	}
	copied := *f.sessionIdentity
	return &copied, nil
}

func (f *fakeProvider) ListByHandle(_ context.Context, handle string) ([]identity.Identity, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if ident, ok := f.byHandle[handle]; ok {
		return []identity.Identity{ident}, nil
	}
	return nil, nil
}

func (f *fakeProvider) CreateIdentity(_ context.Context, signup identity.Signup) (*identity.PendingSignup, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdSignups = append(f.createdSignups, signup)
	return &identity.PendingSignup{ID: "pend_1", Email: signup.Email}, nil
}

func (f *fakeProvider) SendEmailVerification(_ context.Context, pendingID string) error {
	f.sendCalls++
	return f.sendErr
}

func (f *fakeProvider) ConfirmEmailVerification(_ context.Context, pendingID, code string) (*identity.Verification, error) {
	f.confirmCalls++
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	if f.verification != nil {
		return f.verification, nil
	}
	return &identity.Verification{Complete: false}, nil
}

func (f *fakeProvider) SocialSignIn(_ context.Context, profile identity.SocialProfile) (*identity.Session, error) {
	ident := &identity.Identity{
		ID:        "ext_social",
		Email:     profile.Email,
		Handle:    profile.Handle,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
	}
	f.sessionIdentity = ident
	return &identity.Session{Token: "social-session", Identity: ident}, nil
}

func (f *fakeProvider) Metadata(_ context.Context, externalID string) (map[string]string, error) {
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	return f.metadata[externalID], nil
}

func (f *fakeProvider) SetMetadata(_ context.Context, externalID string, md map[string]string) error {
	if f.metadataErr != nil {
		return f.metadataErr
	}
	if f.metadata[externalID] == nil {
		f.metadata[externalID] = make(map[string]string)
	}
	for k, v := range md {
		f.metadata[externalID][k] = v
	}
	return nil
}

var (
	_ repository.UserRepository = (*fakeUserRepo)(nil)
	_ identity.Provider         = (*fakeProvider)(nil)
)

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAccountService(t *testing.T) (*AccountService, *fakeUserRepo, *fakeProvider) {
	t.Helper()
	repo := newFakeUserRepo()
	provider := newFakeProvider()
	svc := NewAccountService(repo, provider, DefaultHandlePolicy(), testLogger())
	return svc, repo, provider
}

func newTestAvailabilityService(t *testing.T) (*AvailabilityService, *fakeUserRepo, *fakeProvider) {
	t.Helper()
	repo := newFakeUserRepo()
	provider := newFakeProvider()
	svc := NewAvailabilityService(repo, provider, DefaultHandlePolicy(), testLogger())
	return svc, repo, provider
}
