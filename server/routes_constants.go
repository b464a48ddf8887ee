package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteAPIPrefix = "/api/"

	// Auth Routes - Login & Logout
	RouteLogin        = "/api/login"
	RouteLogout       = "/api/logout"
	RouteRefreshToken = "/api/refresh-token"
	RouteLogoutURL    = "/api/logout-url"

	// SSO Routes
	RouteSSOCallback      = "/api/sso/callback"
	RouteSSOTokenCallback = "/api/sso/token-callback"
	RouteKeycloakStatus   = "/api/keycloak-status"
	RouteKeycloakConfig   = "/api/keycloak-config"

	// Service Routes
	RouteServices       = "/api/services"
	RouteServiceConfigs = "/api/service-configs"
	RouteStatuses       = "/api/statuses"
	RoutePriority       = "/api/priority"
	RouteSetSecondary   = "/api/set-secondary"

	// Bulk Routes
	RouteBulkApply = "/api/bulk-apply"
	RouteBulk      = "/api/bulk/{id}"

	RouteMetrics = "/metrics"
)
