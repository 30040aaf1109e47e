package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
)

const healthCheckTimeout = 2 * time.Second

const (
	statusUp   = "UP"
	statusDown = "DOWN"
)

type link struct {
	Href string `json:"href"`
}

type componentHealth struct {
	Status string `json:"status"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentHealth `json:"components"`
}

// ActuatorLinksHandler lists the actuator endpoints.
func (s *Server) ActuatorLinksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := getScheme(r) + "://" + r.Host
		writeJSON(w, http.StatusOK, map[string]map[string]link{
			"_links": {
				"self":       {Href: base + RouteActuator},
				"health":     {Href: base + RouteActuatorHealth},
				"info":       {Href: base + RouteActuatorInfo},
				"prometheus": {Href: base + RouteActuatorPrometheus},
			},
		})
	}
}

// HealthHandler reports UP when both stores answer a ping.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: statusUp, Components: map[string]componentHealth{}}
		for name, err := range s.stores.Ping(ctx) {
			if err != nil {
				resp.Status = statusDown
				resp.Components[name] = componentHealth{Status: statusDown}
				hlog.FromRequest(r).Warn().Err(err).Str("component", name).Msg("health check failed")
				continue
			}
			resp.Components[name] = componentHealth{Status: statusUp}
		}

		status := http.StatusOK
		if resp.Status == statusDown {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, status, resp)
	}
}

// InfoHandler describes the running build.
func (s *Server) InfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"app": map[string]string{
				"name":        s.config.GetAppName(),
				"version":     s.config.Version,
				"environment": s.config.GetEnv(),
			},
			"uptime": time.Since(s.started).Truncate(time.Second).String(),
		})
	}
}
