package server

import (
	"net/http"

	"github.com/gitoleg1/lucy-agent/internals/env"
)

func (s *Server) MiddlewareCORS(next http.Handler) http.Handler {
	origins := env.SplitList(s.Base.Env.CORS_ORIGINS)
	allowed := make(map[string]bool, len(origins))
	allowAll := false
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			header := origin
			if allowAll {
				header = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", header)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Api-Key")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
