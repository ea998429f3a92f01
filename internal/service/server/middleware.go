package server

import (
	"crypto/subtle"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const adminRealm = `Basic realm="sharepoint-list-sync admin"`

// statusRecorder captures the status written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs every request at debug level
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

// BasicAuthMiddleware guards the admin endpoints. An empty password turns
// them off entirely. Accepted requests that trigger syncs or change the
// folder cache are logged at info level with the admin user and, for sync
// routes, the entity type.
func BasicAuthMiddleware(username, password string, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				writeError(w, http.StatusForbidden, "admin endpoints are disabled")
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", adminRealm)
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			validUser := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			validPass := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
			if !validUser || !validPass {
				w.Header().Set("WWW-Authenticate", adminRealm)
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				logger.Warn("failed admin authentication attempt",
					zap.String("username", user),
					zap.String("remote_addr", r.RemoteAddr))
				return
			}

			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				fields := []zap.Field{
					zap.String("user", user),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				}
				if t := r.PathValue("type"); t != "" {
					fields = append(fields, zap.String("entity_type", t))
				}
				logger.Info("admin action", fields...)
			}

			next(w, r)
		}
	}
}
