// Package cache is a content-addressed cache for analysis results.
//
// Entries are keyed by a digest over (app ID, log digest, doc digest), so
// two requests carrying the same logical content always hit the same key.
// The cache is best-effort: if Redis is unreachable every lookup is a miss
// and every store is dropped, and the request path proceeds as if no cache
// existed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/incidentops/analysis-gateway/internal/models"
)

const keyPrefix = "analysis:"

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// New wraps an already-constructed Redis client. The client is shared
// with the rate limiter and feedback store and is closed by the caller
// at shutdown.
func New(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		log:    logger.With().Str("component", "cache").Logger(),
	}
}

// Digest returns the hex sha256 of the canonical JSON form of content.
// encoding/json sorts map keys, so semantically equal content digests
// identically regardless of key insertion order.
func Digest(content any) (string, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return "", Classify(err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum), nil
}

// Key builds the cache key for an (app, log digest, doc digest) triple.
// Only content that affects the meaning of the analysis participates;
// timestamps and request IDs are deliberately excluded.
func Key(appID, logDigest, docDigest string) string {
	combined := fmt.Sprintf("%s:%s:%s", appID, logDigest, docDigest)
	sum := sha256.Sum256([]byte(combined))
	return fmt.Sprintf("%s%x", keyPrefix, sum)
}

// Lookup returns the cached analysis for the triple, if any. Store errors
// and undecodable payloads are logged and reported as a miss so the caller
// recomputes.
func (c *Cache) Lookup(ctx context.Context, appID, logDigest, docDigest string) (*models.Analysis, bool) {
	key := Key(appID, logDigest, docDigest)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.log.Debug().Str("cache_key", key).Msg("cache miss")
		return nil, false
	}
	if err != nil {
		c.log.Error().Err(Classify(err)).Str("op", "lookup").Str("cache_key", key).
			Msg("cache retrieval failed, treating as miss")
		return nil, false
	}

	var analysis models.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		c.log.Error().Err(Classify(err)).Str("op", "lookup").Str("cache_key", key).
			Msg("cached payload undecodable, treating as miss")
		return nil, false
	}

	c.log.Info().Str("cache_key", key).Msg("cache hit")
	return &analysis, true
}

// Store writes the analysis under the triple's key with the configured
// TTL. Timestamps serialize to RFC 3339 text. Failures are logged and
// dropped; caching must never break the request path.
func (c *Cache) Store(ctx context.Context, appID, logDigest, docDigest string, analysis *models.Analysis) {
	key := Key(appID, logDigest, docDigest)

	data, err := json.Marshal(analysis)
	if err != nil {
		c.log.Error().Err(Classify(err)).Str("op", "store").Str("cache_key", key).
			Msg("analysis not serializable, dropping cache write")
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Error().Err(Classify(err)).Str("op", "store").Str("cache_key", key).
			Msg("cache write failed, dropping")
		return
	}

	c.log.Info().Str("cache_key", key).Dur("ttl", c.ttl).Msg("cached analysis")
}

// Ping reports whether the backing store is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
