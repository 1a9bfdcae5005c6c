package middleware

import (
	"net/http"
	"strings"
)

// corsMethods lists every method the betting and oracle-admin routes serve.
const corsMethods = "GET, POST, PUT, DELETE, OPTIONS"

// corsHeaders are the request headers the API reads: JSON bodies plus the
// two admin credential carriers checked by AdminAuth.
const corsHeaders = "Content-Type, Authorization, X-API-Key"

// CORS returns middleware answering cross-origin requests for the given
// origins. An empty list or a "*" entry allows any origin; the matched
// origin is echoed back, never the wildcard, so credentialed requests work.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	any := len(allowedOrigins) == 0
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			any = true
			continue
		}
		origins[strings.ToLower(o)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				w.Header().Add("Vary", "Origin")
				_, ok := origins[strings.ToLower(origin)]
				if any || ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", corsMethods)
					w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
