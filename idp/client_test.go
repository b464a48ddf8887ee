package idp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-priority-dashboard/idp"
	apperrors "github.com/jrsteele09/go-priority-dashboard/internal/errors"
	"github.com/stretchr/testify/require"
)

const (
	testRealm        = "ops"
	testClientID     = "dashboard"
	testClientSecret = "client-secret"
	testRedirectURI  = "http://localhost:3001/callback"
	testFrontendURL  = "http://localhost:3001"
	testVerifier     = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

type testProviderConfig struct {
	enabled bool
	baseURL string
	secret  string
}

func (c testProviderConfig) IsIdentityProviderEnabled() bool         { return c.enabled }
func (c testProviderConfig) GetIdentityProviderBaseURL() string      { return c.baseURL }
func (c testProviderConfig) GetIdentityProviderRealm() string        { return testRealm }
func (c testProviderConfig) GetIdentityProviderClientID() string     { return testClientID }
func (c testProviderConfig) GetIdentityProviderClientSecret() string { return c.secret }
func (c testProviderConfig) GetIdentityProviderRedirectURI() string  { return testRedirectURI }
func (c testProviderConfig) GetPasswordLoginEnabled() bool           { return false }
func (c testProviderConfig) GetFrontendURL() string                  { return testFrontendURL }

// fakeKeycloak serves the subset of the realm endpoints the client uses.
type fakeKeycloak struct {
	server      *httptest.Server
	logoutCalls atomic.Int32
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeKeycloak(t *testing.T) *fakeKeycloak {
	t.Helper()
	fk := &fakeKeycloak{}
	prefix := "/realms/" + testRealm + "/protocol/openid-connect"

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+prefix+"/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, testClientID, r.PostForm.Get("client_id"))

		switch r.PostForm.Get("grant_type") {
		case "password":
			if r.PostForm.Get("username") != "jane" || r.PostForm.Get("password") != "pw" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant", "error_description": "Invalid user credentials"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "access-1", "refresh_token": "refresh-1", "token_type": "Bearer", "expires_in": 300})
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("code_verifier") != testVerifier {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Code not valid"})
				return
			}
			require.Equal(t, testClientSecret, r.PostForm.Get("client_secret"))
			require.Equal(t, testRedirectURI, r.PostForm.Get("redirect_uri"))
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "access-1", "refresh_token": "refresh-1", "id_token": "id-1", "token_type": "Bearer", "expires_in": 300})
		case "refresh_token":
			if r.PostForm.Get("refresh_token") != "refresh-1" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Token is not active"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "access-2", "refresh_token": "refresh-2", "token_type": "Bearer", "expires_in": 600})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		}
	})
	mux.HandleFunc("POST "+prefix+"/token/introspect", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		writeJSON(w, http.StatusOK, map[string]bool{"active": r.PostForm.Get("token") == "access-1"})
	})
	mux.HandleFunc("GET "+prefix+"/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"sub": "f3a1", "preferred_username": "jane", "email": "jane@example.com"})
	})
	mux.HandleFunc("POST "+prefix+"/logout", func(w http.ResponseWriter, r *http.Request) {
		fk.logoutCalls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	fk.server = httptest.NewServer(mux)
	t.Cleanup(fk.server.Close)
	return fk
}

func newTestClient(t *testing.T, secret string) (*idp.Client, *fakeKeycloak) {
	t.Helper()
	fk := newFakeKeycloak(t)
	cfg := testProviderConfig{enabled: true, baseURL: fk.server.URL + "/", secret: secret}
	return idp.NewClient(cfg, idp.WithHTTPClient(fk.server.Client())), fk
}

func TestPasswordGrant(t *testing.T) {
	client, _ := newTestClient(t, testClientSecret)

	tokens, err := client.PasswordGrant(context.Background(), "jane", "pw")
	require.NoError(t, err)
	require.Equal(t, "access-1", tokens.AccessToken)
	require.Equal(t, "refresh-1", tokens.RefreshToken)
	require.Equal(t, 300, tokens.ExpiresIn)

	_, err = client.PasswordGrant(context.Background(), "jane", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestExchangeAuthorizationCode(t *testing.T) {
	t.Run("valid code with verifier", func(t *testing.T) {
		client, _ := newTestClient(t, testClientSecret)
		tokens, err := client.ExchangeAuthorizationCode(context.Background(), "good-code", testRedirectURI, testVerifier)
		require.NoError(t, err)
		require.Equal(t, "access-1", tokens.AccessToken)
		require.Equal(t, "id-1", tokens.IDToken)
	})

	t.Run("provider rejects code", func(t *testing.T) {
		client, _ := newTestClient(t, testClientSecret)
		_, err := client.ExchangeAuthorizationCode(context.Background(), "bad-code", testRedirectURI, testVerifier)
		require.ErrorIs(t, err, apperrors.ErrProvider)
		require.Contains(t, err.Error(), "Keycloak error: invalid_grant - Code not valid")
	})

	t.Run("missing client secret", func(t *testing.T) {
		client, _ := newTestClient(t, "")
		_, err := client.ExchangeAuthorizationCode(context.Background(), "good-code", testRedirectURI, testVerifier)
		require.ErrorIs(t, err, apperrors.ErrNotConfigured)
		require.Contains(t, err.Error(), "client secret")
	})
}

func TestRefresh(t *testing.T) {
	client, _ := newTestClient(t, testClientSecret)

	tokens, err := client.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "access-2", tokens.AccessToken)
	require.Equal(t, "refresh-2", tokens.RefreshToken)
	require.Equal(t, 600, tokens.ExpiresIn)

	_, err = client.Refresh(context.Background(), "revoked")
	require.ErrorIs(t, err, apperrors.ErrRefresh)

	_, err = client.Refresh(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrRefresh)
}

func TestIntrospect(t *testing.T) {
	client, fk := newTestClient(t, testClientSecret)

	require.True(t, client.Introspect(context.Background(), "access-1"))
	require.False(t, client.Introspect(context.Background(), "stale"))
	require.False(t, client.Introspect(context.Background(), ""))

	fk.server.Close()
	require.False(t, client.Introspect(context.Background(), "access-1"), "unreachable provider means inactive")
}

func TestUserInfo(t *testing.T) {
	client, _ := newTestClient(t, testClientSecret)

	info, err := client.UserInfo(context.Background(), "access-1")
	require.NoError(t, err)
	require.Equal(t, "jane", info.PreferredUsername)
	require.Equal(t, "jane@example.com", info.Email)
	require.Equal(t, "f3a1", info.Subject)
	require.Equal(t, "jane", info.DisplayName())

	_, err = client.UserInfo(context.Background(), "stale")
	require.ErrorIs(t, err, apperrors.ErrUserInfo)
}

func TestDisplayName_Fallbacks(t *testing.T) {
	require.Equal(t, "jdoe", idp.UserInfo{Username: "jdoe", Subject: "f3a1"}.DisplayName())
	require.Equal(t, "f3a1", idp.UserInfo{Subject: "f3a1"}.DisplayName())
}

func TestLogout(t *testing.T) {
	client, fk := newTestClient(t, testClientSecret)

	require.NoError(t, client.Logout(context.Background(), "refresh-1"))
	require.Equal(t, int32(1), fk.logoutCalls.Load())

	fk.server.Close()
	require.ErrorIs(t, client.Logout(context.Background(), "refresh-1"), apperrors.ErrProvider)
}

func TestBuildLogoutURL(t *testing.T) {
	client, fk := newTestClient(t, testClientSecret)

	logoutURL := client.BuildLogoutURL("")
	parsed, err := url.Parse(logoutURL)
	require.NoError(t, err)
	require.Equal(t, fk.server.URL+"/realms/"+testRealm+"/protocol/openid-connect/logout", parsed.Scheme+"://"+parsed.Host+parsed.Path)
	require.Equal(t, testClientID, parsed.Query().Get("client_id"))
	require.Equal(t, testFrontendURL, parsed.Query().Get("post_logout_redirect_uri"))

	parsed, err = url.Parse(client.BuildLogoutURL("http://example.com/bye"))
	require.NoError(t, err)
	require.Equal(t, "http://example.com/bye", parsed.Query().Get("post_logout_redirect_uri"))
}

func TestDisabledClient(t *testing.T) {
	client := idp.NewClient(testProviderConfig{enabled: false, baseURL: "http://keycloak.invalid"})

	require.False(t, client.Enabled())
	require.Empty(t, client.BuildLogoutURL(""))
	require.False(t, client.Introspect(context.Background(), "access-1"))
	require.NoError(t, client.Logout(context.Background(), "refresh-1"))

	_, err := client.PasswordGrant(context.Background(), "jane", "pw")
	require.ErrorIs(t, err, apperrors.ErrNotConfigured)
	_, err = client.UserInfo(context.Background(), "access-1")
	require.ErrorIs(t, err, apperrors.ErrNotConfigured)

	require.Equal(t, idp.FrontendConfig{Enabled: false}, client.FrontendConfig())
	require.Equal(t, "***NOT SET***", client.Status().ClientSecret)
}

func TestStatusAndFrontendConfig(t *testing.T) {
	client, fk := newTestClient(t, testClientSecret)

	status := client.Status()
	require.True(t, status.Enabled)
	require.Equal(t, "***SET***", status.ClientSecret)
	require.Equal(t, fk.server.URL, status.BaseURL)
	require.Equal(t, fk.server.URL+"/realms/"+testRealm+"/protocol/openid-connect/token", status.TokenURL)

	require.Equal(t, idp.FrontendConfig{
		Enabled:  true,
		BaseURL:  fk.server.URL,
		Realm:    testRealm,
		ClientID: testClientID,
	}, client.FrontendConfig())
}
