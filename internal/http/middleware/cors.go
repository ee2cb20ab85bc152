package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowedHeaders = "Authorization, Content-Type, X-Account-Id"
	corsAllowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsMaxAge         = "600"
)

// CORS lets the configured dashboard origins call the automation API.
// A "*" entry echoes any Origin back.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowlist := newOriginAllowlist(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if allowlist.allows(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}

			// Preflight ends here; the actual method follows separately.
			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type originAllowlist struct {
	any     bool
	origins map[string]struct{}
}

func newOriginAllowlist(allowedOrigins []string) originAllowlist {
	list := originAllowlist{origins: map[string]struct{}{}}
	for _, origin := range allowedOrigins {
		switch origin = strings.TrimSpace(origin); origin {
		case "":
		case "*":
			list.any = true
		default:
			list.origins[origin] = struct{}{}
		}
	}
	return list
}

func (l originAllowlist) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if l.any {
		return true
	}
	_, ok := l.origins[origin]
	return ok
}
