package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-priority-dashboard/internal/config"
	apperrors "github.com/jrsteele09/go-priority-dashboard/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	readTimeout     = 5 * time.Second  // introspection and userinfo
	exchangeTimeout = 10 * time.Second // token endpoint and logout
)

// Client talks to a Keycloak realm. It holds no per-user state.
type Client struct {
	enabled      bool
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	redirectURI  string
	frontendURL  string

	httpClient *http.Client
	oauth      *oauth2.Config
	provider   *oidc.Provider
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the transport used for every provider call.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

type providerConfig interface {
	config.IdentityProviderConfig
	GetFrontendURL() string
}

// NewClient builds a client for the configured realm. The OIDC provider is assembled from
// the realm's well-known Keycloak paths, so no discovery request is made at start-up.
func NewClient(cfg providerConfig, options ...ClientOption) *Client {
	c := &Client{
		enabled:      cfg.IsIdentityProviderEnabled(),
		baseURL:      strings.TrimRight(cfg.GetIdentityProviderBaseURL(), "/"),
		realm:        cfg.GetIdentityProviderRealm(),
		clientID:     cfg.GetIdentityProviderClientID(),
		clientSecret: cfg.GetIdentityProviderClientSecret(),
		redirectURI:  cfg.GetIdentityProviderRedirectURI(),
		frontendURL:  cfg.GetFrontendURL(),
		httpClient:   &http.Client{},
	}
	for _, opt := range options {
		opt(c)
	}

	providerCfg := &oidc.ProviderConfig{
		IssuerURL:   c.realmURL(),
		AuthURL:     c.endpoint("auth"),
		TokenURL:    c.endpoint("token"),
		UserInfoURL: c.endpoint("userinfo"),
		JWKSURL:     c.endpoint("certs"),
	}
	c.provider = providerCfg.NewProvider(oidc.ClientContext(context.Background(), c.httpClient))

	endpoint := c.provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	c.oauth = &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint:     endpoint,
		RedirectURL:  c.redirectURI,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	return c
}

func (c *Client) Enabled() bool {
	return c.enabled
}

func (c *Client) realmURL() string {
	return fmt.Sprintf("%s/realms/%s", c.baseURL, c.realm)
}

func (c *Client) endpoint(name string) string {
	return c.realmURL() + "/protocol/openid-connect/" + name
}

// oauthContext bounds a call and routes x/oauth2 and go-oidc through our http.Client.
func (c *Client) oauthContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oidc.ClientContext(ctx, c.httpClient), cancel
}

// PasswordGrant exchanges user credentials for a token set.
func (c *Client) PasswordGrant(ctx context.Context, username, password string) (TokenSet, error) {
	if !c.enabled {
		return TokenSet{}, apperrors.ErrNotConfigured
	}

	ctx, cancel := c.oauthContext(ctx, exchangeTimeout)
	defer cancel()

	log.Debug().Str("username", username).Str("realm", c.realm).Msg("Requesting identity provider token")
	token, err := c.oauth.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode == http.StatusUnauthorized {
			log.Warn().Str("username", username).Msg("Identity provider rejected credentials")
			return TokenSet{}, fmt.Errorf("%w: invalid username or password in identity provider", apperrors.ErrInvalidCredentials)
		}
		log.Err(err).Str("username", username).Msg("Identity provider authentication error")
		return TokenSet{}, fmt.Errorf("%w: %s", apperrors.ErrProvider, describeRetrieveError(err))
	}

	return newTokenSet(token), nil
}

// ExchangeAuthorizationCode completes the authorization code flow. A confidential client is
// mandatory; the PKCE verifier is forwarded when present.
func (c *Client) ExchangeAuthorizationCode(ctx context.Context, code, redirectURI, codeVerifier string) (TokenSet, error) {
	if !c.enabled {
		return TokenSet{}, apperrors.ErrNotConfigured
	}
	if c.clientSecret == "" {
		log.Error().Msg("Identity provider client secret not set for authorization code flow")
		return TokenSet{}, fmt.Errorf("%w: client secret not set, a confidential client is required for the authorization code flow", apperrors.ErrNotConfigured)
	}

	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("redirect_uri", redirectURI)}
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	ctx, cancel := c.oauthContext(ctx, exchangeTimeout)
	defer cancel()

	log.Debug().Str("redirect_uri", redirectURI).Bool("pkce", codeVerifier != "").Msg("Exchanging authorization code")
	token, err := c.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		log.Err(err).Msg("Identity provider token exchange error")
		return TokenSet{}, fmt.Errorf("%w: %s", apperrors.ErrProvider, describeRetrieveError(err))
	}
	return newTokenSet(token), nil
}

// Refresh trades a refresh token for a new token set.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	if !c.enabled {
		return TokenSet{}, apperrors.ErrNotConfigured
	}
	if refreshToken == "" {
		return TokenSet{}, fmt.Errorf("%w: refresh token is required", apperrors.ErrRefresh)
	}

	ctx, cancel := c.oauthContext(ctx, exchangeTimeout)
	defer cancel()

	// An access-token-less token is never valid, so the source always hits the token endpoint.
	token, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		log.Err(err).Msg("Identity provider token refresh error")
		return TokenSet{}, fmt.Errorf("%w: %s", apperrors.ErrRefresh, describeRetrieveError(err))
	}
	return newTokenSet(token), nil
}

// Introspect reports whether the provider considers the token active. Any failure to ask
// counts as inactive.
func (c *Client) Introspect(ctx context.Context, token string) bool {
	if !c.enabled || token == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	form := url.Values{
		"token":         {token},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("token/introspect"), strings.NewReader(form.Encode()))
	if err != nil {
		log.Err(err).Msg("Failed to build introspection request")
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Err(err).Msg("Identity provider token introspection error")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().Int("status", resp.StatusCode).Msg("Identity provider token introspection rejected")
		return false
	}

	var result struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Err(err).Msg("Failed to decode introspection response")
		return false
	}
	return result.Active
}

// UserInfo fetches the profile of the token's subject.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	if !c.enabled {
		return UserInfo{}, apperrors.ErrNotConfigured
	}

	ctx, cancel := c.oauthContext(ctx, readTimeout)
	defer cancel()

	info, err := c.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		log.Err(err).Msg("Identity provider user info error")
		return UserInfo{}, fmt.Errorf("%w: %v", apperrors.ErrUserInfo, err)
	}

	var user UserInfo
	if err := info.Claims(&user); err != nil {
		return UserInfo{}, fmt.Errorf("%w: %v", apperrors.ErrUserInfo, err)
	}
	if user.Subject == "" {
		user.Subject = info.Subject
	}
	if user.Email == "" {
		user.Email = info.Email
	}

	log.Info().Str("username", user.PreferredUsername).Msg("Identity provider user info received")
	return user, nil
}

// Logout ends the provider session behind refreshToken. The error is returned for the caller
// to record; local session teardown must not depend on it.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	if !c.enabled {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BuildLogoutURL(""), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: logout: %v", apperrors.ErrProvider, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: logout returned status %d", apperrors.ErrProvider, resp.StatusCode)
	}
	log.Info().Msg("Successful identity provider logout")
	return nil
}

// BuildLogoutURL returns the browser logout URL, or "" when the provider is disabled.
// An empty redirectURI falls back to the frontend URL.
func (c *Client) BuildLogoutURL(redirectURI string) string {
	if !c.enabled {
		return ""
	}
	if redirectURI == "" {
		redirectURI = c.frontendURL
	}
	return c.endpoint("logout") +
		"?client_id=" + url.QueryEscape(c.clientID) +
		"&post_logout_redirect_uri=" + url.QueryEscape(redirectURI)
}

// Status is the diagnostic view of the provider settings. The client secret is masked.
func (c *Client) Status() Status {
	status := Status{
		Enabled:      c.enabled,
		BaseURL:      c.baseURL,
		Realm:        c.realm,
		ClientID:     c.clientID,
		ClientSecret: "***NOT SET***",
	}
	if c.clientSecret != "" {
		status.ClientSecret = "***SET***"
	}
	if c.enabled {
		status.TokenURL = c.endpoint("token")
		status.UserInfoURL = c.endpoint("userinfo")
	}
	return status
}

// FrontendConfig is what the browser needs to start the authorization code flow.
func (c *Client) FrontendConfig() FrontendConfig {
	if !c.enabled {
		return FrontendConfig{Enabled: false}
	}
	return FrontendConfig{
		Enabled:  true,
		BaseURL:  c.baseURL,
		Realm:    c.realm,
		ClientID: c.clientID,
	}
}

func describeRetrieveError(err error) string {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
		return fmt.Sprintf("Keycloak error: %s - %s", retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
	}
	return err.Error()
}
