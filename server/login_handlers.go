package server

import (
	"net/http"

	"github.com/jrsteele09/go-sso-service/auth"
	"github.com/jrsteele09/go-sso-service/principal"
	"github.com/rs/zerolog/hlog"
)

// LoginHandler starts the SSO flow explicitly. Callers that already have a
// session go straight to return_to.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnTo := auth.SafeReturnURL(r.URL.Query().Get(returnToParam))
		w.Header().Set("Cache-Control", "no-store")

		if _, ok := principal.FromContext(r.Context()); ok {
			http.Redirect(w, r, returnTo, http.StatusFound)
			return
		}

		authURL, err := s.guard.BeginLogin(w, r, returnTo)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// LogoutHandler destroys the session and redirects to the configured
// logout target. It succeeds without a session too. Only POST reaches it.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.guard.Logout(w, r); err != nil {
			s.writeError(w, r, err)
			return
		}
		hlog.FromRequest(r).Info().Msg("logged out")
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, s.config.LogoutRedirect, http.StatusSeeOther)
	}
}
