package api

import (
	"context"
	"net/http"

	"collab-go/internal/auth"
	"collab-go/internal/model"
)

type ctxKey struct{}

// authenticate verifies the bearer token and records the caller.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.FromRequest(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		user, err := s.auth.Verify(raw)
		if err != nil {
			s.logger.Debug("rejected token", "path", r.URL.Path, "error", err)
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if err := s.service.TouchUser(r.Context(), user); err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

// currentUser returns the id of the authenticated caller, or "" outside the
// authenticate middleware.
func currentUser(r *http.Request) string {
	if u, ok := r.Context().Value(ctxKey{}).(*model.User); ok {
		return u.ID
	}
	return ""
}
