package server

import (
	"crypto/subtle"
	"net/http"
)

// MiddlewareAuth checks the configured API key on every route. Stream
// consumers cannot set headers, so the key is also accepted as an "apikey"
// query parameter. No configured key means auth is disabled.
func (s *Server) MiddlewareAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := s.Base.Env.API_KEY
		if expected == "" {
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get("X-Api-Key")
		if provided == "" {
			provided = r.URL.Query().Get("apikey")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeAuthRequired, "Invalid or missing API key", nil), Render.Status(http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}
