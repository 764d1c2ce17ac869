// TIDAL device authorization (RFC 8628)
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jriverox/tidal-top7/internal/shared"
	"golang.org/x/oauth2"
)

const defaultTidalAuthURL = "https://auth.tidal.com/v1/oauth2"

var tidalScopes = []string{"r_usr", "w_usr", "w_sub"}

// Authenticator runs the TIDAL OAuth2 device flow and builds authenticated HTTP clients.
type Authenticator struct {
	config *oauth2.Config
}

// NewAuthenticator creates an Authenticator for the configured client. authURL defaults to auth.tidal.com.
func NewAuthenticator(creds shared.TidalConfig, authURL string) (*Authenticator, error) {
	if !creds.HasClient() {
		return nil, fmt.Errorf("%w: tidal client_id must be set in config.toml or TIDAL_CLIENT_ID", shared.ErrMissingCredentials)
	}
	if authURL == "" {
		authURL = defaultTidalAuthURL
	}
	authURL = strings.TrimSuffix(authURL, "/")

	return &Authenticator{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Scopes:       tidalScopes,
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: authURL + "/device_authorization",
				TokenURL:      authURL + "/token",
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		},
	}, nil
}

// DeviceLogin is a started device authorization waiting for the user.
type DeviceLogin struct {
	response *oauth2.DeviceAuthResponse
}

// URL returns the page the user must visit, including the user code when the service provides one.
func (d *DeviceLogin) URL() string {
	u := d.response.VerificationURIComplete
	if u == "" {
		u = d.response.VerificationURI
	}
	if u != "" && !strings.Contains(u, "://") {
		u = "https://" + u
	}
	return u
}

// UserCode returns the code the user confirms on the login page.
func (d *DeviceLogin) UserCode() string {
	return d.response.UserCode
}

// Start requests a device code.
func (a *Authenticator) Start(ctx context.Context) (*DeviceLogin, error) {
	resp, err := a.config.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: device authorization: %v", shared.ErrAuthFailed, err)
	}
	return &DeviceLogin{response: resp}, nil
}

// Wait polls the token endpoint until the user completes the login or the device code expires.
func (a *Authenticator) Wait(ctx context.Context, login *DeviceLogin) (*oauth2.Token, error) {
	token, err := a.config.DeviceAccessToken(ctx, login.response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// TokenSource returns a source that refreshes token as needed.
//
// Requests made by the source use the [http.Client] stored in ctx under [oauth2.HTTPClient], if any.
func (a *Authenticator) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return a.config.TokenSource(ctx, token)
}

// Client returns an HTTP client that authenticates with ts and uses base as its transport.
func Client(base *http.Client, ts oauth2.TokenSource) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: transport},
		Timeout:   base.Timeout,
	}
}
