package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteRefreshToken, ChainMiddleware(s.RefreshTokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteLogoutURL, ChainMiddleware(s.LogoutURLHandler(), s.APIMiddleware(s.RequireAuth())...))

	// SSO
	s.RegisterRouteHandler("GET "+RouteSSOCallback, ChainMiddleware(s.SSOCallbackHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSSOCallback, ChainMiddleware(s.SSOCallbackHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSSOTokenCallback, ChainMiddleware(s.SSOTokenCallbackHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteKeycloakStatus, ChainMiddleware(s.KeycloakStatusHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteKeycloakConfig, ChainMiddleware(s.KeycloakConfigHandler(), s.APIMiddleware()...))

	// SERVICES
	s.RegisterRouteHandler("GET "+RouteServices, ChainMiddleware(s.ServicesHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteServiceConfigs, ChainMiddleware(s.ServiceConfigsHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteStatuses, ChainMiddleware(s.StatusesHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("PUT "+RoutePriority, ChainMiddleware(s.PriorityHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("PUT "+RouteSetSecondary, ChainMiddleware(s.SetSecondaryHandler(), s.APIMiddleware(s.RequireAuth())...))

	// BULK
	s.RegisterRouteHandler("POST "+RouteBulkApply, ChainMiddleware(s.BulkApplyHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteBulk, ChainMiddleware(s.BulkProgressHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("DELETE "+RouteBulk, ChainMiddleware(s.BulkCancelHandler(), s.APIMiddleware(s.RequireAuth())...))

	// Preflight for every API route
	s.RegisterRouteHandler("OPTIONS "+RouteAPIPrefix, ChainMiddleware(http.NotFound, s.APIMiddleware()...))

	if s.gatherer != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Everything else is the frontend; unknown API paths answer JSON
	s.RegisterRouteHandler("/", ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}
