package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incidentops/analysis-gateway/internal/models"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, ttl, zerolog.Nop()), mr
}

func sampleAnalysis() *models.Analysis {
	return &models.Analysis{
		IncidentID:         "REQ-123",
		Confidence:         87.5,
		SeverityAssessment: "HIGH",
		RootCause:          "Connection pool exhaustion",
		Recommendations:    []string{"Increase pool size", "Add circuit breaker"},
		BusinessImpact:     "Checkout degraded for ~12% of users",
		EscalationPath:     "Page the payments on-call",
		SimilarIncidents:   []models.SimilarIncident{},
		ReasoningChain:     []string{"Pool metrics saturated", "Timeouts follow saturation"},
		CreatedAt:          time.Now().UTC(),
	}
}

func TestDigestIgnoresKeyOrder(t *testing.T) {
	// Same key-value pairs assembled in different orders must digest
	// identically.
	a := map[string]any{}
	a["level"] = "ERROR"
	a["message"] = "timeout"
	a["service"] = "payments"

	b := map[string]any{}
	b["service"] = "payments"
	b["message"] = "timeout"
	b["level"] = "ERROR"

	da, err := Digest([]map[string]any{a})
	require.NoError(t, err)
	db, err := Digest([]map[string]any{b})
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestDigestDistinguishesContent(t *testing.T) {
	da, err := Digest(map[string]any{"message": "timeout"})
	require.NoError(t, err)
	db, err := Digest(map[string]any{"message": "deadlock"})
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}

func TestKeyUniquenessAcrossTriples(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 100; i++ {
		for j := 0; j < 100; j++ {
			key := Key(fmt.Sprintf("app-%d", i), fmt.Sprintf("log-%d", j), fmt.Sprintf("doc-%d", i^j))
			_, dup := seen[key]
			require.False(t, dup, "duplicate key for triple (%d,%d)", i, j)
			seen[key] = struct{}{}
		}
	}
	assert.Len(t, seen, 10000)
}

func TestKeyComponentsAreNotInterchangeable(t *testing.T) {
	// Swapping log and doc digests must change the key.
	assert.NotEqual(t, Key("acme", "L1", "D1"), Key("acme", "D1", "L1"))
	assert.NotEqual(t, Key("acme", "L1", "D1"), Key("globex", "L1", "D1"))
}

func TestStoreLookupRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	stored := sampleAnalysis()
	c.Store(ctx, "acme", "L1", "D1", stored)

	got, ok := c.Lookup(ctx, "acme", "L1", "D1")
	require.True(t, ok)
	assert.Equal(t, stored.IncidentID, got.IncidentID)
	assert.Equal(t, stored.Confidence, got.Confidence)
	assert.Equal(t, stored.RootCause, got.RootCause)
	assert.Equal(t, stored.Recommendations, got.Recommendations)
	assert.True(t, stored.CreatedAt.Equal(got.CreatedAt))

	// Different tenant, same content digests: isolated.
	_, ok = c.Lookup(ctx, "globex", "L1", "D1")
	assert.False(t, ok)
}

func TestStoreIsIdempotent(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	stored := sampleAnalysis()
	c.Store(ctx, "acme", "L1", "D1", stored)
	c.Store(ctx, "acme", "L1", "D1", stored)

	got, ok := c.Lookup(ctx, "acme", "L1", "D1")
	require.True(t, ok)
	assert.Equal(t, stored.RootCause, got.RootCause)
}

func TestLookupAfterExpiry(t *testing.T) {
	c, mr := newTestCache(t, time.Second)
	ctx := context.Background()

	c.Store(ctx, "acme", "L1", "D1", sampleAnalysis())
	_, ok := c.Lookup(ctx, "acme", "L1", "D1")
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok = c.Lookup(ctx, "acme", "L1", "D1")
	assert.False(t, ok)
}

func TestLookupFailsOpenWhenStoreDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	c := New(client, time.Hour, zerolog.Nop())

	got, ok := c.Lookup(context.Background(), "acme", "L1", "D1")
	assert.False(t, ok)
	assert.Nil(t, got)

	// Store must swallow the failure too.
	c.Store(context.Background(), "acme", "L1", "D1", sampleAnalysis())
}

func TestLookupUndecodablePayloadIsMiss(t *testing.T) {
	c, mr := newTestCache(t, time.Hour)

	require.NoError(t, mr.Set(Key("acme", "L1", "D1"), "not json"))

	got, ok := c.Lookup(context.Background(), "acme", "L1", "D1")
	assert.False(t, ok)
	assert.Nil(t, got)
}
