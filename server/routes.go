package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// Flow routes. The callback accepts POST too, for providers using the
	// form_post response mode.
	s.RegisterRouteHandler("GET "+RouteOAuthAuthorize, ChainMiddleware(s.AuthorizeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteOAuthCallback, ChainMiddleware(s.CallbackHandler(), s.PageMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuthCallback, ChainMiddleware(s.CallbackHandler(), s.PageMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))

	// Relay session API
	s.RegisterRouteHandler("POST "+RouteSessions, ChainMiddleware(s.SessionCreateHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSession, ChainMiddleware(s.SessionPollHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteSession, ChainMiddleware(s.SessionCancelHandler(), s.APIMiddleware()...))

	// Operational routes
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())
}
