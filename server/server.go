package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-priority-dashboard/auth"
	"github.com/jrsteele09/go-priority-dashboard/bulk"
	"github.com/jrsteele09/go-priority-dashboard/idp"
	"github.com/jrsteele09/go-priority-dashboard/internal/config"
	"github.com/jrsteele09/go-priority-dashboard/internal/metrics"
	"github.com/jrsteele09/go-priority-dashboard/priority"
	"github.com/jrsteele09/go-priority-dashboard/sessions"
	"github.com/jrsteele09/go-priority-dashboard/topology"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// CredentialChecker validates local username/password pairs.
type CredentialChecker interface {
	Authenticate(username, password string) error
}

// IdentityProvider is the part of the identity-provider client the handlers use.
type IdentityProvider interface {
	Enabled() bool
	PasswordGrant(ctx context.Context, username, password string) (idp.TokenSet, error)
	ExchangeAuthorizationCode(ctx context.Context, code, redirectURI, codeVerifier string) (idp.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (idp.TokenSet, error)
	UserInfo(ctx context.Context, accessToken string) (idp.UserInfo, error)
	Logout(ctx context.Context, refreshToken string) error
	BuildLogoutURL(redirectURI string) string
	Status() idp.Status
	FrontendConfig() idp.FrontendConfig
}

// Authenticator resolves the Authorization header of a request to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, authorizationHeader string) (*auth.Principal, error)
}

// TopologySource loads the current service topology.
type TopologySource interface {
	Load() (*topology.Topology, error)
}

// PriorityManager queries and changes endpoint roles.
type PriorityManager interface {
	QueryAllStatuses(ctx context.Context, principal *auth.Principal) (map[string][]priority.EndpointStatus, error)
	SetPrimary(ctx context.Context, service, url string, principal *auth.Principal) (priority.Outcome, error)
	SetSecondary(ctx context.Context, service, url string, principal *auth.Principal) (priority.CallResult, error)
}

// Components are the collaborators the server routes requests to.
type Components struct {
	Sessions    *sessions.Store
	Credentials CredentialChecker
	Provider    IdentityProvider
	Gateway     Authenticator
	Topology    TopologySource
	Priority    PriorityManager
	Bulk        *bulk.Coordinator
	Metrics     *metrics.Metrics
	// Gatherer backs GET /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
}

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	fileServer http.Handler
	config     config.Config

	sessions    *sessions.Store
	credentials CredentialChecker
	provider    IdentityProvider
	gateway     Authenticator
	topology    TopologySource
	priority    PriorityManager
	bulk        *bulk.Coordinator
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
}

func New(config config.Config, components Components) (*Server, error) {
	if components.Sessions == nil {
		return nil, fmt.Errorf("[Server New] session store is required")
	}
	if components.Gateway == nil || components.Credentials == nil || components.Provider == nil {
		return nil, fmt.Errorf("[Server New] authentication components are required")
	}
	if components.Topology == nil || components.Priority == nil || components.Bulk == nil {
		return nil, fmt.Errorf("[Server New] orchestration components are required")
	}

	s := &Server{
		mux:         http.NewServeMux(),
		config:      config,
		sessions:    components.Sessions,
		credentials: components.Credentials,
		provider:    components.Provider,
		gateway:     components.Gateway,
		topology:    components.Topology,
		priority:    components.Priority,
		bulk:        components.Bulk,
		metrics:     components.Metrics,
		gatherer:    components.Gatherer,
	}
	s.env = config.GetEnv()
	s.fileServer = FileServerHandler(config.GetPublicDir())

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
