package users

import (
	"fmt"

	"github.com/jrsteele09/go-priority-dashboard/internal/config"
	apperrors "github.com/jrsteele09/go-priority-dashboard/internal/errors"
	"github.com/rs/zerolog/log"
)

// CredentialStore resolves local accounts from the configured management account and the
// users repo. Entries from the repo win over the management account.
type CredentialStore struct {
	cfg  config.LocalAuthConfig
	repo Repo
}

func NewCredentialStore(cfg config.LocalAuthConfig, repo Repo) *CredentialStore {
	return &CredentialStore{cfg: cfg, repo: repo}
}

// ResolveCredentials returns every known username with its stored password entry. A repo
// failure is logged and only the management account is returned.
func (s *CredentialStore) ResolveCredentials() map[string]string {
	credentials := map[string]string{}
	if user, password := s.cfg.GetManageUser(), s.cfg.GetManagePassword(); user != "" && password != "" {
		credentials[user] = password
	}

	if s.repo == nil {
		return credentials
	}

	entries, err := s.repo.Load()
	if err != nil {
		log.Err(err).Str("path", s.cfg.GetLocalUsersPath()).Msg("Error loading local users file")
		return credentials
	}
	for username, password := range entries {
		credentials[username] = password
	}
	log.Debug().Int("user_count", len(entries)).Msg("Local users loaded")
	return credentials
}

// Authenticate fails with ErrInvalidCredentials for an unknown user or a wrong password.
func (s *CredentialStore) Authenticate(username, password string) error {
	stored, ok := s.ResolveCredentials()[username]
	if !ok || stored == "" {
		log.Warn().Str("username", username).Msg("Local authentication failed: user not found")
		return fmt.Errorf("%w: user not found", apperrors.ErrInvalidCredentials)
	}
	if !CheckPassword(password, stored) {
		log.Warn().Str("username", username).Msg("Local authentication failed: invalid password")
		return fmt.Errorf("%w: invalid password", apperrors.ErrInvalidCredentials)
	}

	log.Info().Str("username", username).Msg("Local authentication successful")
	return nil
}

func (s *CredentialStore) UserExists(username string) bool {
	return s.ResolveCredentials()[username] != ""
}

func (s *CredentialStore) UserCount() int {
	return len(s.ResolveCredentials())
}
