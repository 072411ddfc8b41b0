package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

type rateLimiter interface {
	Allow() bool
}

// tokenBucket adapts rate.Limiter and can estimate when the next token frees up.
type tokenBucket struct {
	limiter *rate.Limiter
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) *tokenBucket {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &tokenBucket{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

func (b *tokenBucket) Allow() bool {
	if b == nil || b.limiter == nil {
		return true
	}
	return b.limiter.Allow()
}

// retryAfter reports the wait until a token is available without consuming it.
func (b *tokenBucket) retryAfter() time.Duration {
	if b == nil || b.limiter == nil {
		return 0
	}
	r := b.limiter.Reserve()
	defer r.Cancel()
	return r.Delay()
}

func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow() {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(limiter)))
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}

func retryAfterSeconds(limiter rateLimiter) int {
	estimator, ok := limiter.(interface{ retryAfter() time.Duration })
	if !ok {
		return 1
	}
	secs := int(math.Ceil(estimator.retryAfter().Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
