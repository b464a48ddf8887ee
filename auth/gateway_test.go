package auth_test

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-priority-dashboard/auth"
	"github.com/jrsteele09/go-priority-dashboard/idp"
	apperrors "github.com/jrsteele09/go-priority-dashboard/internal/errors"
	"github.com/jrsteele09/go-priority-dashboard/sessions"
	"github.com/stretchr/testify/require"
)

type testSessionConfig struct{}

func (testSessionConfig) GetJWTSecret() string                 { return "gateway-secret" }
func (testSessionConfig) GetSessionTokenExpiry() time.Duration { return time.Hour }

// fakeProvider stands in for the identity provider client.
type fakeProvider struct {
	mu            sync.Mutex
	activeTokens  map[string]bool
	userInfo      idp.UserInfo
	userInfoErr   error
	refreshed     idp.TokenSet
	refreshErr    error
	refreshCalls  int
	userInfoCalls int
}

func (p *fakeProvider) Introspect(_ context.Context, token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeTokens[token]
}

func (p *fakeProvider) UserInfo(_ context.Context, _ string) (idp.UserInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoCalls++
	return p.userInfo, p.userInfoErr
}

func (p *fakeProvider) Refresh(_ context.Context, _ string) (idp.TokenSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshCalls++
	return p.refreshed, p.refreshErr
}

type testFixture struct {
	store    *sessions.Store
	provider *fakeProvider
	gateway  *auth.Gateway
	now      time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		provider: &fakeProvider{activeTokens: map[string]bool{"live-token": true}},
		now:      time.Now(),
	}
	store, err := sessions.NewStore(testSessionConfig{}, sessions.WithNowTime(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.store = store
	f.gateway = auth.NewGateway(store, f.provider)
	return f
}

func TestAuthenticate_NoCredential(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.gateway.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	require.Equal(t, "Authorization required", auth.FailureMessage(err))
}

func TestAuthenticate_Bearer(t *testing.T) {
	t.Run("inactive token rejected without profile lookup", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.gateway.Authenticate(context.Background(), "Bearer stale-token")
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		require.Equal(t, "Invalid or expired Keycloak token", auth.FailureMessage(err))
		require.Zero(t, f.provider.userInfoCalls)
	})

	t.Run("active token with profile", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.userInfo = idp.UserInfo{Subject: "f3a1", PreferredUsername: "jane", Email: "jane@example.com"}

		principal, err := f.gateway.Authenticate(context.Background(), "Bearer live-token")
		require.NoError(t, err)
		require.Equal(t, "jane", principal.Username)
		require.Equal(t, "jane@example.com", principal.Email)
		require.Equal(t, sessions.AuthMethodIdentityProvider, principal.Method)
		require.Empty(t, principal.SessionToken)
		require.Equal(t, sessions.ProviderCredentials{AccessToken: "live-token"}, principal.Credentials)
		require.True(t, principal.HasManagementCredentials())
	})

	t.Run("profile failure degrades to placeholder", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.userInfoErr = errors.New("userinfo unavailable")

		principal, err := f.gateway.Authenticate(context.Background(), "Bearer live-token")
		require.NoError(t, err)
		require.Equal(t, "keycloak_user", principal.Username)
		require.Empty(t, principal.Email)
	})
}

func TestAuthenticate_LocalSession(t *testing.T) {
	t.Run("live session", func(t *testing.T) {
		f := setupTestFixture(t)
		token, err := f.store.Create("admin", sessions.LocalCredentials{Password: "pw"})
		require.NoError(t, err)

		principal, err := f.gateway.Authenticate(context.Background(), token)
		require.NoError(t, err)
		require.Equal(t, "admin", principal.Username)
		require.Equal(t, sessions.AuthMethodLocal, principal.Method)
		require.Equal(t, token, principal.SessionToken)
		require.True(t, principal.HasManagementCredentials())
	})

	t.Run("destroyed session is distinct from bad signature", func(t *testing.T) {
		f := setupTestFixture(t)
		token, err := f.store.Create("admin", sessions.LocalCredentials{Password: "pw"})
		require.NoError(t, err)
		require.True(t, f.store.Delete(token))

		_, err = f.gateway.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
		require.Equal(t, "Session not found", auth.FailureMessage(err))
	})

	t.Run("garbage token", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.gateway.Authenticate(context.Background(), "not-a-jwt")
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		require.Equal(t, "Invalid or expired token", auth.FailureMessage(err))
	})

	t.Run("bearer marker selects branch even for session tokens", func(t *testing.T) {
		f := setupTestFixture(t)
		token, err := f.store.Create("admin", sessions.LocalCredentials{Password: "pw"})
		require.NoError(t, err)

		_, err = f.gateway.Authenticate(context.Background(), "Bearer "+token)
		require.ErrorIs(t, err, auth.ErrProviderTokenInactive)
	})
}

func TestHasManagementCredentials(t *testing.T) {
	var nilPrincipal *auth.Principal
	require.False(t, nilPrincipal.HasManagementCredentials())
	require.False(t, (&auth.Principal{Credentials: sessions.LocalCredentials{Password: "pw"}}).HasManagementCredentials())
	require.False(t, (&auth.Principal{Username: "admin", Credentials: sessions.LocalCredentials{}}).HasManagementCredentials())
	require.False(t, (&auth.Principal{Username: "admin"}).HasManagementCredentials())
}

func TestAuthorizationHeader_Local(t *testing.T) {
	f := setupTestFixture(t)
	builder := auth.NewHeaderBuilder(f.store, f.provider)

	header := builder.AuthorizationHeader(context.Background(), &auth.Principal{
		Username:    "admin",
		Method:      sessions.AuthMethodLocal,
		Credentials: sessions.LocalCredentials{Password: "s3cret"},
	})
	require.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:s3cret")), header)

	require.Empty(t, builder.AuthorizationHeader(context.Background(), &auth.Principal{Username: "admin", Credentials: sessions.LocalCredentials{}}))
	require.Empty(t, builder.AuthorizationHeader(context.Background(), nil))
}

func TestAuthorizationHeader_ProviderRefresh(t *testing.T) {
	newSSOPrincipal := func(t *testing.T, f *testFixture) *auth.Principal {
		t.Helper()
		token, err := f.store.Create("jane", sessions.ProviderCredentials{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    5 * time.Minute,
		})
		require.NoError(t, err)
		principal, err := f.gateway.Authenticate(context.Background(), token)
		require.NoError(t, err)
		return principal
	}

	t.Run("fresh token used as is", func(t *testing.T) {
		f := setupTestFixture(t)
		builder := auth.NewHeaderBuilder(f.store, f.provider)
		principal := newSSOPrincipal(t, f)

		require.Equal(t, "Bearer access-1", builder.AuthorizationHeader(context.Background(), principal))
		require.Zero(t, f.provider.refreshCalls)
	})

	t.Run("near expiry refreshes session and principal", func(t *testing.T) {
		f := setupTestFixture(t)
		builder := auth.NewHeaderBuilder(f.store, f.provider)
		principal := newSSOPrincipal(t, f)
		f.provider.refreshed = idp.TokenSet{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 300}

		f.now = f.now.Add(4*time.Minute + 30*time.Second)
		require.Equal(t, "Bearer access-2", builder.AuthorizationHeader(context.Background(), principal))
		require.Equal(t, 1, f.provider.refreshCalls)

		sess, ok := f.store.Get(principal.SessionToken)
		require.True(t, ok)
		require.Equal(t, "access-2", sess.Credentials.(sessions.ProviderCredentials).AccessToken)
		require.Equal(t, "refresh-2", principal.Credentials.(sessions.ProviderCredentials).RefreshToken)
		require.Equal(t, sess.Credentials, principal.Credentials, "principal mirrors the stored session")
		require.Equal(t, f.now.Add(5*time.Minute), principal.Credentials.(sessions.ProviderCredentials).ExpiresAt)
	})

	t.Run("refresh failure keeps current token", func(t *testing.T) {
		f := setupTestFixture(t)
		builder := auth.NewHeaderBuilder(f.store, f.provider)
		principal := newSSOPrincipal(t, f)
		f.provider.refreshErr = apperrors.ErrRefresh

		f.now = f.now.Add(5 * time.Minute)
		require.Equal(t, "Bearer access-1", builder.AuthorizationHeader(context.Background(), principal))
		require.Equal(t, 1, f.provider.refreshCalls)
	})

	t.Run("bearer principal never refreshes", func(t *testing.T) {
		f := setupTestFixture(t)
		builder := auth.NewHeaderBuilder(f.store, f.provider)

		principal := &auth.Principal{Username: "jane", Credentials: sessions.ProviderCredentials{AccessToken: "live-token"}}
		require.Equal(t, "Bearer live-token", builder.AuthorizationHeader(context.Background(), principal))
		require.Zero(t, f.provider.refreshCalls)
	})
}
