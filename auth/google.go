package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleUser is the part of the userinfo answer sign-in needs
type GoogleUser struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// GoogleProvider runs the OAuth code flow against Google
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			RedirectURL:  redirectURL,
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: userInfoURL,
	}
}

// Configured reports whether client credentials were supplied
func (g *GoogleProvider) Configured() bool {
	return g.config.ClientID != "" && g.config.ClientSecret != ""
}

// NewState returns a random value to round-trip through the consent screen
func NewState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// Exchange trades the callback code for a token and reads the account's email
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user info: status %d", resp.StatusCode)
	}
	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to read user info: %w", err)
	}
	if user.Email == "" || !user.VerifiedEmail {
		return nil, fmt.Errorf("google account has no verified email")
	}
	return &user, nil
}
