package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-sso-service/auth"
	"github.com/jrsteele09/go-sso-service/internal/config"
	"github.com/jrsteele09/go-sso-service/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	handler http.Handler
	routes  []string
	config  config.Config
	logger  zerolog.Logger
	guard   *auth.SessionGuard
	stores  Stores
	started time.Time
}

// New wires the session guard in front of every route. The caller owns
// stores and closes them after the HTTP server has shut down.
func New(c config.Config, upstream auth.Upstream, stores Stores) (*Server, error) {
	guard, err := auth.NewSessionGuard(c, upstream, stores.Sessions, stores.Pending)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create session guard: %w", err)
	}

	s := &Server{
		env:     c.GetEnv(),
		mux:     http.NewServeMux(),
		config:  c,
		logger:  log.Logger,
		guard:   guard,
		stores:  stores,
		started: time.Now(),
	}

	s.initRoutes()
	s.handler = telemetry.Handler(ChainMiddleware(s.mux.ServeHTTP, s.StandardMiddleware()...), c.GetAppName())
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
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
			logRoute(parts[0], parts[1], s.guard.Rules().Match(parts[1]))
		} else {
			logRoute("", parts[0], s.guard.Rules().Match(parts[0]))
		}
	}
}

func logRoute(method, path string, access auth.Access) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	accessColor := Yellow
	if access == auth.AccessPermit {
		accessColor = Gray
	}
	log.Info().Msgf("[%-19s] %-28s %s%s%s", displayMethod, path, accessColor, access, ResetColor)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
