package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
// Photo uploads get photoBodyFactor times as much.
var maxBodyBytes int64 = 1 << 20

const photoBodyFactor = 8

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// waitTimeout bounds how long a view request with ?wait=1 blocks for its
// resource to settle. Zero means only the request context applies.
var waitTimeout = 15 * time.Second

// SetWaitTimeout sets the wait bound (negative disables).
func SetWaitTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	waitTimeout = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

// corsMiddleware returns nil when CORS is disabled.
func corsMiddleware() func(http.Handler) http.Handler {
	if !corsEnabled {
		return nil
	}
	origins := corsAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := corsAllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}
	}
	headers := corsAllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Accept", "Content-Type", "X-Request-Id", "X-Log-Level"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: methods,
		AllowedHeaders: headers,
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}
