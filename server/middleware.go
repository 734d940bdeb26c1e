package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/taro8383/duracalm-proxy/core"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext returns the request's correlation id, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Shopify-Access-Token")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogging(logger core.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			w.Header().Set("X-Request-Id", requestID)

			startedAt := time.Now().UTC()
			next.ServeHTTP(w, r.WithContext(ctx))

			if logger != nil {
				logger.Info("request handled",
					"request_id", requestID,
					"method", r.Method,
					"path", r.URL.Path,
					"duration_ms", time.Since(startedAt).Milliseconds(),
				)
			}
		})
	}
}
