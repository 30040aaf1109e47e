package auth

import (
	"net/http"

	"github.com/jrsteele09/go-sso-service/internal/errors"
)

// OAuth2 style error codes written in JSON error bodies
const (
	CodeInvalidRequest  = "invalid_request"
	CodeInvalidState    = "invalid_state"
	CodeAccessDenied    = "access_denied"
	CodeInvalidToken    = "invalid_token"
	CodeUnauthenticated = "unauthenticated"
	CodeUpstreamError   = "upstream_error"
	CodeServerError     = "server_error"
)

// ErrorResponse maps an error from the guard onto the status, code and
// generic description returned to the caller. Upstream detail never appears
// in the description.
func ErrorResponse(err error) (status int, code, description string) {
	switch {
	case errors.Is(err, errors.ErrInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest, "The request is missing a required parameter."
	case errors.Is(err, errors.ErrInvalidState):
		return http.StatusUnauthorized, CodeInvalidState, "Login could not be completed. Please try again."
	case errors.Is(err, errors.ErrAuthenticationFailed):
		return http.StatusUnauthorized, CodeAccessDenied, "Authentication failed."
	case errors.Is(err, errors.ErrInvalidToken):
		return http.StatusUnauthorized, CodeInvalidToken, "Authentication failed."
	case errors.Is(err, errors.ErrContractViolation):
		return http.StatusUnauthorized, CodeUnauthenticated, "Authentication is required."
	case errors.Is(err, errors.ErrUpstreamFailure):
		return http.StatusBadGateway, CodeUpstreamError, "The authorization server is unavailable."
	default:
		return http.StatusInternalServerError, CodeServerError, "An internal error occurred."
	}
}
