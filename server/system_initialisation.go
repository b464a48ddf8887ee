package server

import (
	"fmt"

	"github.com/jrsteele09/go-priority-dashboard/auth"
	"github.com/jrsteele09/go-priority-dashboard/bulk"
	"github.com/jrsteele09/go-priority-dashboard/idp"
	"github.com/jrsteele09/go-priority-dashboard/internal/config"
	"github.com/jrsteele09/go-priority-dashboard/internal/metrics"
	"github.com/jrsteele09/go-priority-dashboard/priority"
	"github.com/jrsteele09/go-priority-dashboard/sessions"
	"github.com/jrsteele09/go-priority-dashboard/topology"
	"github.com/jrsteele09/go-priority-dashboard/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// InitialiseSystem builds every component from the configuration and returns the server
// routing to them.
func InitialiseSystem(cfg config.Config) (*Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	sessionStore, err := sessions.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("[Server InitialiseSystem] failed to create session store: %w", err)
	}
	metrics.RegisterSessionGauge(reg, sessionStore.Len)

	provider := idp.NewClient(cfg)
	credentials := users.NewCredentialStore(cfg, users.NewFileRepo(cfg.GetLocalUsersPath()))
	resolver := topology.NewResolver(cfg)
	orchestrator := priority.NewOrchestrator(resolver, auth.NewHeaderBuilder(sessionStore, provider), priority.WithMetrics(m))

	logSystemConfiguration(cfg, credentials, provider)

	return New(cfg, Components{
		Sessions:    sessionStore,
		Credentials: credentials,
		Provider:    provider,
		Gateway:     auth.NewGateway(sessionStore, provider),
		Topology:    resolver,
		Priority:    orchestrator,
		Bulk:        bulk.NewCoordinator(orchestrator, bulk.WithMetrics(m)),
		Metrics:     m,
		Gatherer:    reg,
	})
}

func logSystemConfiguration(cfg config.Config, credentials *users.CredentialStore, provider *idp.Client) {
	status := provider.Status()
	log.Info().
		Str("env", cfg.GetEnv()).
		Str("port", cfg.GetPort()).
		Str("settings_path", cfg.GetSettingsPath()).
		Str("public_dir", cfg.GetPublicDir()).
		Int("local_users", credentials.UserCount()).
		Bool("keycloak_enabled", status.Enabled).
		Str("keycloak_base_url", status.BaseURL).
		Str("keycloak_realm", status.Realm).
		Str("keycloak_client_secret", status.ClientSecret).
		Bool("password_login", cfg.GetPasswordLoginEnabled()).
		Str("allowed_origins", cfg.GetAllowedOrigins().String()).
		Msg("System configuration")

	if credentials.UserCount() == 0 && !status.Enabled {
		log.Warn().Msg("No local users and no identity provider configured: nobody can log in")
	}
}
