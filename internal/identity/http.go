package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/codelove/codelove/internal/apperror"
)

// HTTPProvider talks to a hosted identity provider's backend REST API using
// a secret bearer key. The endpoint shapes follow the common hosted-auth
// layout: /v1/users for listing and creation, /v1/sessions for token
// verification, sign_ups for the email-verification handshake.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider creates a provider client for the given API base URL and
// secret key. Calls are bounded by a 10s client timeout; a timeout surfaces
// as an error, which every caller treats fail-closed.
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

var _ Provider = (*HTTPProvider)(nil)

// apiUser is the subset of the provider's user object we care about.
type apiUser struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
		Verified     bool   `json:"verified"`
	} `json:"email_addresses"`
}

func (u *apiUser) toIdentity() Identity {
	ident := Identity{
		ID:        u.ID,
		Handle:    u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	// First verified address wins; unverified addresses are not a join key.
	for _, addr := range u.EmailAddresses {
		if addr.Verified {
			ident.Email = addr.EmailAddress
			break
		}
	}
	return ident
}

// apiError is the provider's error envelope. The first message is the one
// shown to users verbatim for validation failures.
type apiError struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"meta_param,omitempty"`
	} `json:"errors"`
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("identity: encoding request: %w", err)
		}
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("identity: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity: calling provider %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && len(apiErr.Errors) > 0 {
			// Provider-native validation message, passed through verbatim.
			return apperror.ValidationFailed(apiErr.Errors[0].Field, apiErr.Errors[0].Message)
		}
		return fmt.Errorf("identity: provider rejected %s %s with status %d", method, path, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("identity: provider %s %s returned status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("identity: decoding provider response: %w", err)
		}
	}
	return nil
}

// IdentityFromSession verifies the session token with the provider and
// returns the identity it belongs to. (nil, nil) means anonymous.
func (p *HTTPProvider) IdentityFromSession(ctx context.Context, sessionToken string) (*Identity, error) {
	if sessionToken == "" {
		return nil, nil
	}

	var session struct {
		Status string  `json:"status"`
		User   apiUser `json:"user"`
	}
	err := p.do(ctx, http.MethodPost, "/v1/sessions/verify",
		map[string]string{"token": sessionToken}, &session)
	if err != nil {
		// A rejected token is anonymity; only transport faults propagate.
		var ae *apperror.AppError
		if errors.As(err, &ae) {
			return nil, nil
		}
		return nil, err
	}
	if session.Status != "active" {
		return nil, nil
	}

	ident := session.User.toIdentity()
	return &ident, nil
}

// ListByHandle queries the provider's user listing filtered by username.
func (p *HTTPProvider) ListByHandle(ctx context.Context, handle string) ([]Identity, error) {
	var users []apiUser
	path := "/v1/users?username=" + url.QueryEscape(handle)
	if err := p.do(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}

	idents := make([]Identity, 0, len(users))
	for i := range users {
		idents = append(idents, users[i].toIdentity())
	}
	return idents, nil
}

// CreateIdentity creates a password account at the provider. The account
// starts unverified; SendEmailVerification kicks off the challenge.
func (p *HTTPProvider) CreateIdentity(ctx context.Context, signup Signup) (*PendingSignup, error) {
	var created struct {
		ID             string `json:"id"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	}
	err := p.do(ctx, http.MethodPost, "/v1/sign_ups", map[string]string{
		"username":      signup.Handle,
		"email_address": signup.Email,
		"password":      signup.Password,
		"first_name":    signup.FirstName,
		"last_name":     signup.LastName,
	}, &created)
	if err != nil {
		return nil, err
	}

	email := signup.Email
	if len(created.EmailAddresses) > 0 {
		email = created.EmailAddresses[0].EmailAddress
	}
	return &PendingSignup{ID: created.ID, Email: email}, nil
}

// SendEmailVerification asks the provider to email a one-time code.
func (p *HTTPProvider) SendEmailVerification(ctx context.Context, pendingID string) error {
	return p.do(ctx, http.MethodPost,
		"/v1/sign_ups/"+url.PathEscape(pendingID)+"/prepare_verification",
		map[string]string{"strategy": "email_code"}, nil)
}

// ConfirmEmailVerification submits the code. The provider reports a wrong
// code as an incomplete sign-up, which we pass along for retry.
func (p *HTTPProvider) ConfirmEmailVerification(ctx context.Context, pendingID, code string) (*Verification, error) {
	var result struct {
		Status       string `json:"status"` // "complete" | "missing_requirements"
		SessionToken string `json:"session_token"`
	}
	err := p.do(ctx, http.MethodPost,
		"/v1/sign_ups/"+url.PathEscape(pendingID)+"/attempt_verification",
		map[string]string{"strategy": "email_code", "code": code}, &result)
	if err != nil {
		var ae *apperror.AppError
		if errors.As(err, &ae) {
			// Provider-side "incorrect code" validation means retryable.
			return &Verification{Complete: false}, nil
		}
		return nil, err
	}

	if result.Status != "complete" {
		return &Verification{Complete: false}, nil
	}
	return &Verification{Complete: true, SessionToken: result.SessionToken}, nil
}

// SocialSignIn exchanges a verified social profile for a provider session.
func (p *HTTPProvider) SocialSignIn(ctx context.Context, profile SocialProfile) (*Session, error) {
	var result struct {
		SessionToken string  `json:"session_token"`
		User         apiUser `json:"user"`
	}
	err := p.do(ctx, http.MethodPost, "/v1/sign_ins/social", map[string]string{
		"email_address": profile.Email,
		"username":      profile.Handle,
		"first_name":    profile.FirstName,
		"last_name":     profile.LastName,
	}, &result)
	if err != nil {
		return nil, err
	}

	ident := result.User.toIdentity()
	return &Session{Token: result.SessionToken, Identity: &ident}, nil
}

// Metadata reads the identity's public metadata map.
func (p *HTTPProvider) Metadata(ctx context.Context, externalID string) (map[string]string, error) {
	var user struct {
		PublicMetadata map[string]string `json:"public_metadata"`
	}
	err := p.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(externalID), nil, &user)
	if err != nil {
		return nil, err
	}
	if user.PublicMetadata == nil {
		return map[string]string{}, nil
	}
	return user.PublicMetadata, nil
}

// SetMetadata merges keys into the identity's public metadata.
func (p *HTTPProvider) SetMetadata(ctx context.Context, externalID string, metadata map[string]string) error {
	return p.do(ctx, http.MethodPatch,
		"/v1/users/"+url.PathEscape(externalID)+"/metadata",
		map[string]any{"public_metadata": metadata}, nil)
}
