package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig configures CORS.
type CORSConfig struct {
	// AllowOrigins lists origins allowed to call the API. "*" allows any.
	// Default: ["*"]
	AllowOrigins []string

	// AllowHeaders lists request headers the client may send.
	// Default: ["Content-Type", "Authorization"]
	AllowHeaders []string

	// ExposeHeaders lists response headers readable by the client.
	// Default: [RequestIDHeader]
	ExposeHeaders []string

	// AllowCredentials allows cookies and HTTP auth.
	AllowCredentials bool

	// MaxAge is how long, in seconds, a preflight result may be cached.
	// Zero omits the header.
	MaxAge int
}

// CORS returns HTTP middleware that answers preflight requests and sets
// CORS headers. A nil config allows every origin.
//
// Endpoints accept only POST, so preflights advertise POST and OPTIONS.
func CORS(cfg *CORSConfig) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = &CORSConfig{}
	}
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	headers := cfg.AllowHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", "Authorization"}
	}
	expose := cfg.ExposeHeaders
	if expose == nil {
		expose = []string{RequestIDHeader}
	}

	wildcard := slices.Contains(origins, "*")
	allowHeaders := strings.Join(headers, ", ")
	exposeHeaders := strings.Join(expose, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			switch {
			case origin == "":
			case wildcard && !cfg.AllowCredentials:
				h.Set("Access-Control-Allow-Origin", "*")
			case wildcard || slices.Contains(origins, origin):
				// Credentialed responses may not use "*".
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}
			if exposeHeaders != "" {
				h.Set("Access-Control-Expose-Headers", exposeHeaders)
			}

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
