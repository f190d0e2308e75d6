package middleware

import (
	"net/http"
	"net/url"

	"github.com/rs/cors"
)

// CORSOptions selects the browser origins allowed to call the API with credentials.
type CORSOptions struct {
	AllowedOrigins []string
	// AllowLocalhost admits http(s)://localhost on any port, for frontend development.
	AllowLocalhost bool
}

// isLocalhostOrigin reports whether origin is exactly http(s)://localhost[:port].
func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.User != nil || (u.Path != "" && u.Path != "/") {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Hostname() == "localhost"
}

func (o CORSOptions) allows(origin string, allowed map[string]struct{}) bool {
	if origin == "" {
		return false
	}
	if _, ok := allowed[origin]; ok {
		return true
	}
	return o.AllowLocalhost && isLocalhostOrigin(origin)
}

// CORS returns middleware that answers preflights and sets CORS headers for whitelisted origins.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		allowed[o] = struct{}{}
	}

	c := cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			return opts.allows(origin, allowed)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", ActorHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return c.Handler
}

// SecurityHeaders returns middleware that sets Content-Security-Policy and other security headers.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}
