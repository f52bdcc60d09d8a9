/*
middleware.go - Identity resolution, request logging, metrics, rate limiting

PURPOSE:
  The cross-cutting HTTP concerns. Identity resolution implements the
  engine's "caller is an authenticated identity, optionally flagged as
  administrator" contract: the X-User-ID header is resolved against the
  identity provider and the full identity is stashed in the request
  context. How that header gets populated (gateway, session proxy) is
  outside this service.

RATE LIMITING:
  Export endpoints walk the full activity table; a small per-caller
  token bucket keeps a misbehaving client from hammering them.
*/
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/apex/activity-engine/engine"
	"github.com/apex/activity-engine/metrics"
)

type contextKey string

const identityKey contextKey = "identity"

// userHeader carries the authenticated caller's id, set by the fronting
// auth layer.
const userHeader = "X-User-ID"

// identityFrom returns the resolved caller identity. Only valid below
// the identity middleware.
func identityFrom(ctx context.Context) engine.UserIdentity {
	id, _ := ctx.Value(identityKey).(engine.UserIdentity)
	return id
}

// Identity resolves the caller from the X-User-ID header. Missing,
// unknown, or deactivated users get 401; handlers below can assume a
// valid active identity in context.
func Identity(users engine.IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(userHeader)
			if id == "" {
				writeError(w, http.StatusUnauthorized, "Missing "+userHeader+" header", nil)
				return
			}

			user, err := users.GetUser(r.Context(), engine.UserID(id))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unknown user", nil)
				return
			}
			if !user.IsActive {
				writeError(w, http.StatusUnauthorized, "User is deactivated", nil)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, *user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger logs each request with zap and feeds the status counter.
func RequestLogger(logger *zap.Logger, collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if collector != nil {
				collector.RecordHTTPStatus(ww.Status())
			}
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// =============================================================================
// RATE LIMITER - Per-caller token buckets
// =============================================================================

// RateLimiter hands out one token bucket per caller id.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewRateLimiter allows rps requests per second with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// Middleware rejects callers over their budget with 429. Keyed on the
// authenticated user id, so it must sit below Identity.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := identityFrom(r.Context())
		if !rl.limiterFor(string(caller.ID)).Allow() {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
