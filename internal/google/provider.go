// Package google is the client for the external task-list provider: the
// OAuth2 authorization-code flow (offline access), refresh-token grant,
// token revocation and the Tasks API item insert used by sync.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	// ProviderTag identifies which external API a stored token grants
	// access to. Constant for now; there is exactly one provider.
	ProviderTag = "tasks"

	tasksScope       = "https://www.googleapis.com/auth/tasks"
	defaultRevokeURL = "https://oauth2.googleapis.com/revoke"
)

type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	revokeURL   string
	httpClient  *http.Client
}

// New builds a Provider using OIDC discovery against accounts.google.com
// for the authorize/token endpoints.
func New(
	ctx context.Context,
	clientID string,
	clientSecret string,
) (*Provider, error) {

	if clientID == "" || clientSecret == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	oidcProvider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}

	p := newWithEndpoint(clientID, clientSecret, oidcProvider.Endpoint(), defaultRevokeURL)
	p.verifier = oidcProvider.Verifier(&oidc.Config{ClientID: clientID})
	return p, nil
}

// NewWithEndpoint builds a Provider against explicit endpoints. Used by
// tests to point the flow at a local server.
func NewWithEndpoint(
	clientID string,
	clientSecret string,
	endpoint oauth2.Endpoint,
	revokeURL string,
) *Provider {
	return newWithEndpoint(clientID, clientSecret, endpoint, revokeURL)
}

func newWithEndpoint(
	clientID string,
	clientSecret string,
	endpoint oauth2.Endpoint,
	revokeURL string,
) *Provider {
	return &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{tasksScope},
		},
		revokeURL:  revokeURL,
		httpClient: http.DefaultClient,
	}
}

// AuthCodeURL builds the authorization URL. Offline access plus forced
// re-consent so a refresh token is issued even for previously-authorized
// accounts.
func (p *Provider) AuthCodeURL(state string, redirectURL string) string {
	cfg := p.configFor(redirectURL)
	return cfg.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades the authorization code for tokens. redirectURL must
// exactly match the one used in AuthCodeURL. When the provider includes an
// id_token and a verifier is configured, the id_token is verified before
// the tokens are trusted.
func (p *Provider) Exchange(
	ctx context.Context,
	code string,
	redirectURL string,
) (*oauth2.Token, error) {

	cfg := p.configFor(redirectURL)
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google token exchange failed: %w", providerError(err))
	}

	if p.verifier != nil {
		if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
			if _, err := p.verifier.Verify(ctx, rawIDToken); err != nil {
				return nil, fmt.Errorf("google id_token verification failed: %w", err)
			}
		}
	}

	return token, nil
}

// Refresh mints a short-lived access token from a stored refresh token.
func (p *Provider) Refresh(
	ctx context.Context,
	refreshToken string,
) (accessToken string, expiresIn int64, err error) {

	src := p.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return "", 0, fmt.Errorf("google token refresh failed: %w", providerError(err))
	}

	expiresIn = int64(time.Until(token.Expiry).Round(time.Second).Seconds())
	return token.AccessToken, expiresIn, nil
}

// Revoke invalidates the refresh token at the provider. Best-effort by
// contract; callers may ignore the error.
func (p *Provider) Revoke(ctx context.Context, refreshToken string) error {
	form := url.Values{"token": {refreshToken}}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.revokeURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("google revoke failed: %s: %s", resp.Status, body)
	}
	return nil
}

func (p *Provider) configFor(redirectURL string) *oauth2.Config {
	cfg := *p.oauthConfig
	cfg.RedirectURL = redirectURL
	return &cfg
}

// providerError unwraps oauth2 retrieval failures so the provider's own
// error text can be surfaced to the caller.
func providerError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode != "" {
			return errors.New(rerr.ErrorCode)
		}
		return fmt.Errorf("%s: %s", rerr.Response.Status, rerr.Body)
	}
	return err
}
