package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/maxcoind/kapelukh-backend/internal/auth"
	"github.com/maxcoind/kapelukh-backend/internal/ierr"
)

// requireAuth verifies the bearer access token and stores the username in
// the request context.
func (s *RESTServer) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("missing bearer token")))
			return
		}

		username, err := s.tokens.Verify(token, auth.TokenTypeAccess)
		if err != nil {
			s.writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUsername(r.Context(), username)))
	})
}
