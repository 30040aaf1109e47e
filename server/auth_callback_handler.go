package server

import (
	"net/http"
)

// OAuthCallbackHandler completes the authorization code flow and sends the
// browser back to the path that started it.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		returnURL, err := s.guard.HandleCallback(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		http.Redirect(w, r, returnURL, http.StatusFound)
	}
}
