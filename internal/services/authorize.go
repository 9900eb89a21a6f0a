package services

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/medx/internal/models"
	"github.com/desertthunder/medx/internal/shared"
	"golang.org/x/oauth2"
)

// Authorizer builds implicit grant authorization URLs.
type Authorizer struct {
	config         *oauth2.Config
	deploymentHost string
	hostedRedirect string
	localRedirect  string
	showDialog     bool
}

// NewAuthorizer creates an [Authorizer] from the Spotify client settings.
func NewAuthorizer(cfg shared.SpotifyConfig) (*Authorizer, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if cfg.LocalRedirectURI == "" && cfg.HostedRedirectURI == "" {
		return nil, fmt.Errorf("%w: no redirect URI configured", shared.ErrInvalidConfig)
	}

	return &Authorizer{
		config: &oauth2.Config{
			ClientID: cfg.ClientID,
			Scopes:   cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
		deploymentHost: cfg.DeploymentHost,
		hostedRedirect: cfg.HostedRedirectURI,
		localRedirect:  cfg.LocalRedirectURI,
		showDialog:     cfg.ShowDialog,
	}, nil
}

// RedirectURI picks the hosted redirect when location is on the deployment host and the local one otherwise.
func (a *Authorizer) RedirectURI(location string) string {
	if a.deploymentHost != "" && a.hostedRedirect != "" && strings.Contains(location, a.deploymentHost) {
		return a.hostedRedirect
	}
	if a.localRedirect == "" {
		return a.hostedRedirect
	}
	return a.localRedirect
}

// AuthURL returns the authorization URL for the implicit grant.
//
// The redirect URI is chosen from location, and state is echoed back in the fragment.
func (a *Authorizer) AuthURL(location, state string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", "token"),
		oauth2.SetAuthURLParam("redirect_uri", a.RedirectURI(location)),
	}
	if a.showDialog {
		opts = append(opts, oauth2.SetAuthURLParam("show_dialog", "true"))
	}
	return a.config.AuthCodeURL(state, opts...)
}

// ParseFragment splits a URL fragment on "&" and then "=" into a key/value map.
//
// A leading "#" is ignored. Values are percent-decoded when possible.
func ParseFragment(fragment string) map[string]string {
	fragment = strings.TrimPrefix(fragment, "#")
	values := make(map[string]string)
	if fragment == "" {
		return values
	}

	for _, pair := range strings.Split(fragment, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		values[key] = value
	}

	return values
}

// TokenFromFragment extracts a [models.Credential] from an implicit grant redirect fragment.
//
// An "error" parameter from the authorization server is returned as [shared.ErrAuthFailed].
func TokenFromFragment(fragment string) (models.Credential, error) {
	values := ParseFragment(fragment)

	if errParam, ok := values["error"]; ok {
		return models.Credential{}, fmt.Errorf("%w: %s", shared.ErrAuthFailed, errParam)
	}

	token := values["access_token"]
	if strings.TrimSpace(token) == "" {
		return models.Credential{}, fmt.Errorf("%w: no access_token in fragment", shared.ErrNotAuthenticated)
	}

	cred := models.NewCredential(token)
	if tt := values["token_type"]; tt != "" {
		cred.TokenType = tt
	}
	if secs, err := strconv.Atoi(values["expires_in"]); err == nil && secs > 0 {
		cred.ExpiresIn = time.Duration(secs) * time.Second
	}

	return cred, nil
}
