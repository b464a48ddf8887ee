package sessions

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-priority-dashboard/internal/config"
	apperrors "github.com/jrsteele09/go-priority-dashboard/internal/errors"
	"github.com/rs/zerolog/log"
)

// nearExpiryMargin is how long before the provider expiry a token is treated as expired.
const nearExpiryMargin = 60 * time.Second

// record is the stored form of a session. Local passwords are only held sealed.
type record struct {
	username       string
	method         AuthMethod
	sealedPassword []byte
	provider       ProviderCredentials
	createdAt      time.Time
	expiresAt      time.Time
}

type sessionClaims struct {
	AuthMethod AuthMethod `json:"auth_method"`
	jwt.RegisteredClaims
}

// Store is the in-memory session registry keyed by the signed session token.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*record
	secret   []byte
	expiry   time.Duration
	sealer   *sealer
	nowTime  func() time.Time
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// NewStore creates a session store signing tokens with the configured secret.
func NewStore(cfg config.SessionConfig, options ...StoreOption) (*Store, error) {
	if cfg.GetJWTSecret() == "" {
		return nil, errors.New("[NewStore] signing secret is required")
	}

	sealer, err := newSealer()
	if err != nil {
		return nil, fmt.Errorf("[NewStore] %w", err)
	}

	s := &Store{
		sessions: make(map[string]*record),
		secret:   []byte(cfg.GetJWTSecret()),
		expiry:   cfg.GetSessionTokenExpiry(),
		sealer:   sealer,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Create issues a signed session token and stores the session under it.
func (s *Store) Create(username string, credentials Credentials) (string, error) {
	if username == "" {
		return "", errors.New("[Create] username is required")
	}
	if credentials == nil {
		return "", errors.New("[Create] credentials are required")
	}

	now := s.nowTime()
	rec := &record{
		username:  username,
		method:    credentials.Method(),
		createdAt: now,
		expiresAt: now.Add(s.expiry),
	}

	switch c := credentials.(type) {
	case LocalCredentials:
		sealed, err := s.sealer.seal([]byte(c.Password))
		if err != nil {
			return "", fmt.Errorf("[Create] %w", err)
		}
		rec.sealedPassword = sealed
	case ProviderCredentials:
		if c.ExpiresIn > 0 && c.ExpiresAt.IsZero() {
			c.ExpiresAt = now.Add(c.ExpiresIn)
		}
		rec.provider = c
	default:
		return "", fmt.Errorf("[Create] unsupported credentials %T", credentials)
	}

	claims := sessionClaims{
		AuthMethod: rec.method,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(rec.expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("[Create] failed to sign session token: %w", err)
	}

	s.mu.Lock()
	s.sweepLocked(now)
	s.sessions[token] = rec
	s.mu.Unlock()

	log.Info().Str("username", username).Str("auth_method", string(rec.method)).Msg("Session created")
	return token, nil
}

// Verify checks the token signature and lifetime. An expired token's session is dropped.
func (s *Store) Verify(token string) error {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.nowTime))
	if errors.Is(err, jwt.ErrTokenExpired) {
		s.mu.Lock()
		if rec, ok := s.sessions[token]; ok {
			delete(s.sessions, token)
			log.Info().Str("username", rec.username).Msg("Expired session removed")
		}
		s.mu.Unlock()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return apperrors.ErrInvalidToken
	}
	return nil
}

// Get returns a copy of the session stored under token.
func (s *Store) Get(token string) (Session, bool) {
	s.mu.RLock()
	rec, ok := s.sessions[token]
	if !ok {
		s.mu.RUnlock()
		return Session{}, false
	}
	sess := Session{Username: rec.username, CreatedAt: rec.createdAt}
	sealedPassword := rec.sealedPassword
	provider := rec.provider
	method := rec.method
	s.mu.RUnlock()

	switch method {
	case AuthMethodLocal:
		password, err := s.sealer.open(sealedPassword)
		if err != nil {
			log.Err(err).Str("username", sess.Username).Msg("Failed to open session credentials")
			return Session{}, false
		}
		sess.Credentials = LocalCredentials{Password: string(password)}
	case AuthMethodIdentityProvider:
		sess.Credentials = provider
	}
	return sess, true
}

// Delete removes the session and reports whether it existed.
func (s *Store) Delete(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[token]
	if !ok {
		return false
	}
	delete(s.sessions, token)
	log.Info().Str("username", rec.username).Str("auth_method", string(rec.method)).Msg("Session deleted")
	return true
}

// RefreshProviderToken replaces the provider tokens of an identity-provider session and
// recomputes its absolute expiry. A blank refresh token keeps the stored one.
func (s *Store) RefreshProviderToken(token, accessToken, refreshToken string, expiresInSeconds int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[token]
	if !ok || rec.method != AuthMethodIdentityProvider {
		return false
	}

	expiresIn := time.Duration(expiresInSeconds) * time.Second
	rec.provider.AccessToken = accessToken
	if refreshToken != "" {
		rec.provider.RefreshToken = refreshToken
	}
	rec.provider.ExpiresIn = expiresIn
	rec.provider.ExpiresAt = s.nowTime().Add(expiresIn)

	log.Info().Str("username", rec.username).Msg("Identity provider token updated in session")
	return true
}

// IsNearExpiry reports whether the provider token of the session is within a minute of
// expiring. Sessions without a known expiry never report true.
func (s *Store) IsNearExpiry(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[token]
	if !ok || rec.method != AuthMethodIdentityProvider || rec.provider.ExpiresAt.IsZero() {
		return false
	}
	return !s.nowTime().Before(rec.provider.ExpiresAt.Add(-nearExpiryMargin))
}

// sweepLocked drops sessions whose token lifetime has passed. s.mu must be held.
func (s *Store) sweepLocked(now time.Time) {
	for token, rec := range s.sessions {
		if !now.Before(rec.expiresAt) {
			delete(s.sessions, token)
			log.Debug().Str("username", rec.username).Msg("Expired session swept")
		}
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
