package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// requestIDMiddleware assigns every request a fresh id, preferring one the
// caller already supplied.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs HTTP requests and responses.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := getRequestID(r.Context())

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		s.logger.WithRequestID(requestID).Info("HTTP request started",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)

		next.ServeHTTP(rw, r)

		s.logger.WithRequestID(requestID).Info("HTTP request completed",
			zap.Int("status_code", rw.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int("response_size", rw.size),
		)
	})
}

// rateLimitMiddleware throttles per client IP.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.Server.RateLimit.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if !s.limiter.allow(getClientIP(r)) {
			s.writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientLimiter keeps one token bucket per client IP. Buckets unused for an
// hour are dropped by the cleanup pass.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientBucket
	limit    rate.Limit
	burst    int
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(requestsPerMin, burst int) *clientLimiter {
	if requestsPerMin <= 0 {
		requestsPerMin = 300
	}
	if burst <= 0 {
		burst = requestsPerMin
	}
	return &clientLimiter{
		limiters: make(map[string]*clientBucket),
		limit:    rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burst,
	}
}

func (c *clientLimiter) allow(clientIP string) bool {
	c.mu.Lock()
	bucket, ok := c.limiters[clientIP]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.limiters[clientIP] = bucket
	}
	bucket.lastSeen = time.Now()
	c.mu.Unlock()

	return bucket.limiter.Allow()
}

// cleanup removes buckets that have been idle past cutoff.
func (c *clientLimiter) cleanup(maxIdle time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for ip, bucket := range c.limiters {
		if bucket.lastSeen.Before(cutoff) {
			delete(c.limiters, ip)
		}
	}
}

// StartLimiterCleanup starts a background routine that drops idle rate limit
// buckets.
func (s *Server) StartLimiterCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiter.cleanup(time.Hour)
			}
		}
	}()
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.Index(xff, ","); i != -1 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// responseWriter wraps http.ResponseWriter to capture response data.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// getRequestID extracts the request ID from the context.
func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return "unknown"
}
