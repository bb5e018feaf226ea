// Package ratelimit implements a sliding-window rate limiter on a Redis
// sorted set. One marker is recorded per admitted request; only markers
// inside the trailing window count toward the quota. On any store failure
// the limiter fails open: availability of the protected endpoint wins
// over strict quota enforcement.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// allowScript runs prune, count and the conditional insert as one atomic
// unit, so concurrent requests for the same identifier cannot both slip
// under the quota. Markers at or before the window start are expired.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local window_start = ARGV[1]
local max_requests = tonumber(ARGV[2])
local now = ARGV[3]
local member = ARGV[4]
local window_seconds = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
if redis.call('ZCARD', key) >= max_requests then
	return 0
end
redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, window_seconds)
return 1
`)

type Limiter struct {
	client *redis.Client
	log    zerolog.Logger

	// now is swapped out by tests to slide the window.
	now func() time.Time
}

func New(client *redis.Client, logger zerolog.Logger) *Limiter {
	return &Limiter{
		client: client,
		log:    logger.With().Str("component", "ratelimit").Logger(),
		now:    time.Now,
	}
}

func key(identifier string) string {
	return "ratelimit:" + identifier
}

// Allow reports whether the identifier may make another request under
// maxRequests per window. An admitted request records a marker and
// refreshes the set's expiry; a rejected request records nothing.
func (l *Limiter) Allow(ctx context.Context, identifier string, maxRequests int, window time.Duration) bool {
	now := l.now()
	windowStart := now.Add(-window).UnixMicro()

	expire := int64(window / time.Second)
	if expire < 1 {
		expire = 1
	}

	allowed, err := allowScript.Run(ctx, l.client, []string{key(identifier)},
		windowStart, maxRequests, now.UnixMicro(), uuid.NewString(), expire).Int64()
	if err != nil {
		l.log.Error().Err(err).Str("kind", "store_unavailable").Str("identifier", identifier).
			Msg("rate limit check failed, failing open")
		return true
	}

	if allowed == 0 {
		l.log.Warn().Str("identifier", identifier).Int("max_requests", maxRequests).
			Msg("rate limit exceeded")
		return false
	}
	return true
}

// Remaining returns how many requests the identifier has left in the
// current window, pruning expired markers first. It never goes below
// zero and fails open to the full quota on store errors.
func (l *Limiter) Remaining(ctx context.Context, identifier string, maxRequests int, window time.Duration) int {
	now := l.now()
	windowStart := now.Add(-window).UnixMicro()
	k := key(identifier)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "0", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error().Err(err).Str("kind", "store_unavailable").Str("identifier", identifier).
			Msg("remaining-requests check failed, failing open")
		return maxRequests
	}

	remaining := maxRequests - int(card.Val())
	if remaining < 0 {
		return 0
	}
	return remaining
}
