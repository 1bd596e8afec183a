package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleProvider wraps golang.org/x/oauth2 for the Google authorization-code
// flow used by social sign-up. The exchange happens server-to-server with
// the client secret, so tokens never reach the browser.
type GoogleProvider struct {
	config *oauth2.Config
}

// NewGoogleProvider creates a GoogleProvider with the given credentials.
// callbackURL must exactly match the redirect URI registered in the Google
// console, e.g. "http://localhost:8080/auth/google/callback".
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL returns the URL to redirect the user to for authorization. The
// state value must be verified on callback (CSRF protection).
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for the user's Google profile.
// Google only reports verified email addresses through the userinfo
// endpoint's email_verified flag; an unverified address is rejected here
// because the whole sign-in flow hinges on a provider-verified email.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*SocialProfile, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("identity: exchanging OAuth code: %w", err)
	}

	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get("https://www.googleapis.com/oauth2/v3/userinfo")
	if err != nil {
		return nil, fmt.Errorf("identity: calling Google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity: Google userinfo returned status %d", resp.StatusCode)
	}

	var info struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("identity: decoding Google userinfo: %w", err)
	}

	if info.Email == "" || !info.EmailVerified {
		return nil, fmt.Errorf("identity: Google account has no verified email")
	}

	return &SocialProfile{
		Email:     info.Email,
		Handle:    handleFromEmail(info.Email),
		FirstName: info.GivenName,
		LastName:  info.FamilyName,
	}, nil
}

// handleFromEmail derives a provider-side handle suggestion from the email's
// local part. Local-store uniqueness is arbitrated later by reconciliation.
func handleFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == '.', r == '-', r == '+':
			return '_'
		default:
			return -1
		}
	}, local)
	return local
}
