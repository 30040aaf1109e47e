package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-sso-service/auth"
	"github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/jrsteele09/go-sso-service/principal"
	"github.com/rs/zerolog/hlog"
)

// IdentityHandler returns the authenticated principal as JSON.
func (s *Server) IdentityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal.FromContext(r.Context())
		if !ok {
			// Only reachable if the route is ever permitted without a session
			hlog.FromRequest(r).Error().Err(errors.ErrContractViolation).Str("path", r.URL.Path).Msg("identity requested without a principal")
			s.writeError(w, r, errors.ErrContractViolation)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, p)
	}
}

// ErrorHandler serves the generic error document.
func (s *Server) ErrorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, auth.CodeServerError, "An unexpected error occurred.", http.StatusInternalServerError)
	}
}

// NotFoundHandler answers every path without a route. Protected paths only
// get here with a valid session.
func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "not_found", "The requested resource does not exist.", http.StatusNotFound)
	}
}

// MethodNotAllowedHandler answers a routed path called with the wrong method.
func (s *Server) MethodNotAllowedHandler(allowed ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		writeJSONError(w, "method_not_allowed", "The request method is not supported for this resource.", http.StatusMethodNotAllowed)
	}
}

// writeError maps err onto its HTTP status and a generic description. The
// error itself is only logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, description := auth.ErrorResponse(err)
	logger := hlog.FromRequest(r)
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request rejected")
	w.Header().Set("Cache-Control", "no-store")
	writeJSONError(w, code, description, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
