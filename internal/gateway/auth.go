package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/flemzord/edgecycle/internal/security"
)

// authMiddleware validates the bearer token using constant-time comparison.
// Attempts are rate-limited through the "auth" bucket and reported to the
// audit logger when one is set.
func authMiddleware(token string, audit *security.AuditLogger, limiter *security.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil {
				if err := limiter.Allow(security.BucketAuth); err != nil {
					emitAuthEvent(audit, security.EventRateLimit, r, "auth attempts exceeded")
					http.Error(w, "too many requests", http.StatusTooManyRequests)
					return
				}
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				emitAuthEvent(audit, security.EventAuthFailure, r, "missing authorization header")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if got, ok := strings.CutPrefix(auth, "Bearer "); ok && constantTimeEqual(got, token) {
				emitAuthEvent(audit, security.EventAuthSuccess, r, "bearer")
				next.ServeHTTP(w, r)
				return
			}

			emitAuthEvent(audit, security.EventAuthFailure, r, "invalid credentials")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

func emitAuthEvent(logger *security.AuditLogger, eventType security.EventType, r *http.Request, detail string) {
	if logger == nil {
		return
	}
	logger.Log(security.AuditEvent{
		Type:   eventType,
		Detail: detail,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
		},
	})
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
