package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// Identity
	s.RegisterRouteFunc("GET "+RouteIndex+"{$}", s.IdentityHandler())

	// LOGIN
	s.RegisterRouteFunc("GET "+RouteLogin, s.LoginHandler())
	s.RegisterRouteFunc("GET "+s.config.CallbackPath, s.OAuthCallbackHandler())
	s.RegisterRouteFunc("POST "+RouteLogout, s.LogoutHandler())
	s.RegisterRouteFunc(RouteLogout, s.MethodNotAllowedHandler(http.MethodPost)) // A link or image must not end a session

	s.RegisterRouteFunc("GET "+RouteError, s.ErrorHandler())

	// Actuator
	s.RegisterRouteFunc("GET "+RouteActuator, s.ActuatorLinksHandler())
	s.RegisterRouteFunc("GET "+RouteActuatorHealth, s.HealthHandler())
	s.RegisterRouteFunc("GET "+RouteActuatorInfo, s.InfoHandler())
	s.RegisterRouteHandler("GET "+RouteActuatorPrometheus, promhttp.Handler())

	s.RegisterRouteFunc("/", s.NotFoundHandler())
}
