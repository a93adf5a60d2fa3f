package devserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const contextKeyUserID contextKey = "userID"

// userIDFromContext returns the id set by requireBearer
func userIDFromContext(ctx context.Context) int64 {
	if v, ok := ctx.Value(contextKeyUserID).(int64); ok {
		return v
	}
	return 0
}

// requireBearer rejects requests without a valid access token and puts the
// token's user id in the request context
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeError(w, r, unauthorized("Authentication required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			s.writeError(w, r, unauthorized("Invalid authorization header format"))
			return
		}

		userID, err := s.validateAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			s.logger.Debug("access token rejected", "path", r.URL.Path, "err", err)
			s.writeError(w, r, unauthorized("Invalid or expired token"))
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// logRequests logs one line per request and echoes or assigns an X-Request-Id
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			"id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
