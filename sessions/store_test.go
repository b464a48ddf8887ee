package sessions_test

import (
	"strings"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-priority-dashboard/internal/errors"
	"github.com/jrsteele09/go-priority-dashboard/sessions"
	"github.com/stretchr/testify/require"
)

type testSessionConfig struct {
	secret string
	expiry time.Duration
}

func (c testSessionConfig) GetJWTSecret() string                 { return c.secret }
func (c testSessionConfig) GetSessionTokenExpiry() time.Duration { return c.expiry }

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func newTestStore(t *testing.T, c *clock) *sessions.Store {
	t.Helper()
	store, err := sessions.NewStore(testSessionConfig{secret: "test-secret", expiry: time.Hour}, sessions.WithNowTime(c.Now))
	require.NoError(t, err)
	return store
}

func TestNewStore_RequiresSecret(t *testing.T) {
	_, err := sessions.NewStore(testSessionConfig{expiry: time.Hour})
	require.Error(t, err)
}

func TestCreateLocal_RetrievableThenDeleted(t *testing.T) {
	store := newTestStore(t, &clock{now: time.Now()})

	token, err := store.Create("admin", sessions.LocalCredentials{Password: "s3cret"})
	require.NoError(t, err)
	require.NoError(t, store.Verify(token))

	sess, ok := store.Get(token)
	require.True(t, ok)
	require.Equal(t, "admin", sess.Username)
	require.Equal(t, sessions.AuthMethodLocal, sess.Method())
	require.Equal(t, sessions.LocalCredentials{Password: "s3cret"}, sess.Credentials)

	require.True(t, store.Delete(token))
	_, ok = store.Get(token)
	require.False(t, ok)
	require.False(t, store.Delete(token), "second delete reports no session")
}

func TestCreate_TokensAreUnique(t *testing.T) {
	store := newTestStore(t, &clock{now: time.Now()})

	first, err := store.Create("admin", sessions.LocalCredentials{Password: "pw"})
	require.NoError(t, err)
	second, err := store.Create("admin", sessions.LocalCredentials{Password: "pw"})
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.Equal(t, 2, store.Len())
}

func TestCreate_RejectsMissingInput(t *testing.T) {
	store := newTestStore(t, &clock{now: time.Now()})

	_, err := store.Create("", sessions.LocalCredentials{Password: "pw"})
	require.Error(t, err)

	_, err = store.Create("admin", nil)
	require.Error(t, err)
}

func TestVerify(t *testing.T) {
	c := &clock{now: time.Now()}
	store := newTestStore(t, c)
	token, err := store.Create("admin", sessions.LocalCredentials{Password: "pw"})
	require.NoError(t, err)

	t.Run("tampered signature", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
		require.ErrorIs(t, store.Verify(tampered), apperrors.ErrInvalidToken)
	})

	t.Run("other signing key", func(t *testing.T) {
		other, err := sessions.NewStore(testSessionConfig{secret: "another-secret", expiry: time.Hour})
		require.NoError(t, err)
		require.ErrorIs(t, other.Verify(token), apperrors.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		require.ErrorIs(t, store.Verify("not-a-token"), apperrors.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		c.now = c.now.Add(2 * time.Hour)
		require.ErrorIs(t, store.Verify(token), apperrors.ErrInvalidToken)
	})
}

func TestExpiredSessionsAreRemoved(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := newTestStore(t, c)

	first, err := store.Create("alice", sessions.LocalCredentials{Password: "pw"})
	require.NoError(t, err)
	second, err := store.Create("bob", sessions.ProviderCredentials{AccessToken: "at"})
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	c.now = c.now.Add(time.Hour + time.Second)

	t.Run("rejected verify drops the session", func(t *testing.T) {
		require.ErrorIs(t, store.Verify(first), apperrors.ErrInvalidToken)
		_, ok := store.Get(first)
		require.False(t, ok)
		require.Equal(t, 1, store.Len())
	})

	t.Run("create sweeps the rest", func(t *testing.T) {
		fresh, err := store.Create("carol", sessions.LocalCredentials{Password: "pw"})
		require.NoError(t, err)
		_, ok := store.Get(second)
		require.False(t, ok)
		require.Equal(t, 1, store.Len())
		require.NoError(t, store.Verify(fresh))
	})
}

func TestRefreshProviderToken(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := newTestStore(t, c)

	local, err := store.Create("admin", sessions.LocalCredentials{Password: "pw"})
	require.NoError(t, err)
	require.False(t, store.RefreshProviderToken(local, "a", "r", 300), "local sessions are never refreshed")

	require.False(t, store.RefreshProviderToken("unknown", "a", "r", 300))

	sso, err := store.Create("jane", sessions.ProviderCredentials{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    5 * time.Minute,
	})
	require.NoError(t, err)

	c.now = c.now.Add(4 * time.Minute)
	require.True(t, store.RefreshProviderToken(sso, "access-2", "refresh-2", 600))

	sess, ok := store.Get(sso)
	require.True(t, ok)
	creds, ok := sess.Credentials.(sessions.ProviderCredentials)
	require.True(t, ok)
	require.Equal(t, "access-2", creds.AccessToken)
	require.Equal(t, "refresh-2", creds.RefreshToken)
	require.Equal(t, 10*time.Minute, creds.ExpiresIn)
	require.Equal(t, c.now.Add(10*time.Minute), creds.ExpiresAt)

	require.True(t, store.RefreshProviderToken(sso, "access-3", "", 600))
	sess, _ = store.Get(sso)
	require.Equal(t, "refresh-2", sess.Credentials.(sessions.ProviderCredentials).RefreshToken)
}

func TestIsNearExpiry(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &clock{now: start}
	store := newTestStore(t, c)

	token, err := store.Create("jane", sessions.ProviderCredentials{AccessToken: "a", ExpiresIn: 5 * time.Minute})
	require.NoError(t, err)
	expiresAt := start.Add(5 * time.Minute)

	c.now = expiresAt.Add(-61 * time.Second)
	require.False(t, store.IsNearExpiry(token), "a full second before the margin")

	c.now = expiresAt.Add(-60*time.Second - time.Millisecond)
	require.False(t, store.IsNearExpiry(token))

	c.now = expiresAt.Add(-60 * time.Second)
	require.True(t, store.IsNearExpiry(token), "exactly at the margin")

	c.now = expiresAt.Add(time.Minute)
	require.True(t, store.IsNearExpiry(token))
}

func TestIsNearExpiry_WithoutExpiry(t *testing.T) {
	store := newTestStore(t, &clock{now: time.Now()})

	implicit, err := store.Create("jane", sessions.ProviderCredentials{AccessToken: "a"})
	require.NoError(t, err)
	require.False(t, store.IsNearExpiry(implicit))

	local, err := store.Create("admin", sessions.LocalCredentials{Password: "pw"})
	require.NoError(t, err)
	require.False(t, store.IsNearExpiry(local))

	require.False(t, store.IsNearExpiry("unknown"))
}
