package security

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// SignerHeader carries the base58 public key that signed the request body.
const SignerHeader = "X-Signer"

type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int64, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{redis: redisClient, limit: limit, window: window}
}

func rateKey(identity string) string {
	return fmt.Sprintf("ratelimit:%s", identity)
}

// Allow counts one request for identity in the current fixed window.
func (r *RateLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	key := rateKey(identity)
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= r.limit, nil
}

// Identity is the signer when the request names one, otherwise the client IP.
func Identity(e *core.RequestEvent) string {
	if signer := strings.TrimSpace(e.Request.Header.Get(SignerHeader)); signer != "" {
		return "signer:" + signer
	}
	return "ip:" + e.RealIP()
}

// InstructionRateLimit throttles instruction submissions per signer. Redis
// failures let the request through.
func (r *RateLimiter) InstructionRateLimit() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		identity := Identity(e)
		ok, err := r.Allow(e.Request.Context(), identity)
		if err != nil {
			slog.Warn("rate limiter unavailable", "identity", identity, "error", err)
			return e.Next()
		}
		if !ok {
			return apis.NewTooManyRequestsError("Too many requests. Please try again later.", nil)
		}
		return e.Next()
	}
}
