// Package server exposes the authentication core over HTTP: flow initiation,
// the provider callback, the relay session API, and operational endpoints.
package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/timetrackhq/bexio-auth/bridge"
	"github.com/timetrackhq/bexio-auth/flow"
	"github.com/timetrackhq/bexio-auth/internal/config"
	"github.com/timetrackhq/bexio-auth/notify"
)

// Server routes HTTP traffic onto the flow controller.
type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	flows    *flow.Controller
	sessions bridge.Repo
	renderer *notify.Renderer
}

// New creates a Server wired to the given flow controller and relay session
// store.
func New(config config.Config, flows *flow.Controller, sessions bridge.Repo) (*Server, error) {
	if flows == nil {
		return nil, errors.New("[Server New] flow controller is required")
	}
	if sessions == nil {
		return nil, errors.New("[Server New] session repo is required")
	}

	renderer, err := notify.NewRenderer()
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] completion page renderer")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   config,
		flows:    flows,
		sessions: sessions,
		renderer: renderer,
	}
	s.env = config.GetEnv()

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
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
