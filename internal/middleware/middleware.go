package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/bacembenakkari/TalentCloud/internal/ratelimit"
)

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (*ratelimit.Result, error)
}

// RateLimit rejects clients that exceed the limiter's window with 429. When
// the limiter itself fails the request is let through.
type RateLimit struct {
	limiter Limiter
	log     logrus.FieldLogger
	timeout time.Duration
}

func NewRateLimit(limiter Limiter, log logrus.FieldLogger) *RateLimit {
	return &RateLimit{
		limiter: limiter,
		log:     log,
		timeout: 200 * time.Millisecond,
	}
}

func (rl *RateLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientKey := ClientKey(r)

		ctx, cancel := context.WithTimeout(r.Context(), rl.timeout)
		result, err := rl.limiter.Allow(ctx, clientKey)
		cancel()
		if err != nil {
			rl.log.WithError(err).WithField("client", clientKey).Warn("Rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		remaining := result.Limit - result.CurrentCount
		if remaining < 0 || !result.Allowed {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !result.Allowed {
			retryAfter := int64(result.RetryAfter.Seconds() + 0.5)
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))

			rl.log.WithFields(logrus.Fields{
				"client":      clientKey,
				"retry_after": retryAfter,
			}).Info("Rate limit exceeded")

			http.Error(w, fmt.Sprintf("Rate limit exceeded. Try again after %d seconds.", retryAfter), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientKey identifies the caller: the user id header when present,
// otherwise the client IP.
func ClientKey(r *http.Request) string {
	if userID := strings.TrimSpace(r.Header.Get("X-User-Id")); userID != "" {
		return "user:" + userID
	}

	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		firstIP := strings.Split(forwardedFor, ",")[0]
		return "ip:" + strings.TrimSpace(firstIP)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return "ip:" + realIP
	}

	remoteIP := r.RemoteAddr
	if colonIdx := strings.LastIndex(remoteIP, ":"); colonIdx != -1 {
		remoteIP = remoteIP[:colonIdx]
	}
	return "ip:" + remoteIP
}

// Logging logs every request with its status and duration.
func Logging(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			log.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_addr": r.RemoteAddr,
			}).Info("HTTP request")
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// CORS allows browser clients of the inbox from any origin.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id, X-User-Email")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Recovery turns a handler panic into a 500.
func Recovery(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(logrus.Fields{
						"panic": fmt.Sprint(err),
						"path":  r.URL.Path,
					}).Error("Panic recovered")
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
