// Package auth runs the Spotify authorization-code flow and yields the
// bearer token the engine consumes. The engine itself never sees more than
// the opaque access token.
package auth

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Scopes required by the engine's catalogue calls.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopeUserLibraryRead,
}

// Config represents auth provider configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Provider wraps the Spotify authenticator for one login flow.
type Provider struct {
	auth  *spotifyauth.Authenticator
	state string
}

// New creates an auth provider.
func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify client credentials are required")
	}

	authenticator := spotifyauth.New(
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	)

	return &Provider{
		auth:  authenticator,
		state: uuid.New().String(),
	}, nil
}

// AuthURL returns the URL the user visits to authorize the application.
func (p *Provider) AuthURL() string {
	return p.auth.AuthURL(p.state)
}

// Exchange completes the flow from the provider's callback request and
// returns the token. The caller surfaces failures; nothing is retried.
func (p *Provider) Exchange(ctx context.Context, r *http.Request) (*oauth2.Token, error) {
	if st := r.FormValue("state"); st != p.state {
		return nil, errors.Newf("state mismatch: %s", st)
	}

	token, err := p.auth.Token(ctx, p.state, r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to exchange token")
	}
	return token, nil
}
