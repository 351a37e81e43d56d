package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Flow Routes
	RouteOAuthAuthorize = "/oauth/authorize"
	RouteOAuthCallback  = "/oauth/callback"
	RouteOAuthRefresh   = "/oauth/refresh"

	// Relay Session Routes
	RouteSessions = "/oauth/sessions"
	RouteSession  = "/oauth/sessions/{sessionID}"

	// Operational Routes
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"
)
