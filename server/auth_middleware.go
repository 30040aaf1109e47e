package server

import (
	"net/http"

	"github.com/jrsteele09/go-sso-service/auth"
	"github.com/jrsteele09/go-sso-service/principal"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// SessionGuardMiddleware applies the guard's decision to every request.
// Forwarded requests carry the principal, when there is one, in their
// context.
func (s *Server) SessionGuardMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision := s.guard.Evaluate(w, r)

		switch decision.Action {
		case auth.ActionForward:
			if p := decision.Principal; p != nil {
				hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
					return c.Str("subject", p.Subject())
				})
				r = r.WithContext(principal.NewContext(r.Context(), p))
			}
			next(w, r)

		case auth.ActionRedirect:
			if decision.ClearCookie {
				s.guard.ClearCookie(w, r)
			}
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, decision.RedirectURL, http.StatusFound)

		default:
			s.writeError(w, r, decision.Err)
		}
	}
}
