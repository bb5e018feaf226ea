package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incidentops/analysis-gateway/internal/feedback"
	"github.com/incidentops/analysis-gateway/internal/models"
)

func TestGetFeedbackStats(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := feedback.New(client, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, models.Feedback{
		IncidentID: "INC-1", AnalysisID: "A-1", IsCorrect: true, UserID: "u1",
	}))
	require.NoError(t, store.Record(ctx, models.Feedback{
		IncidentID: "INC-2", AnalysisID: "A-2", IsCorrect: false, UserID: "u2",
	}))

	router := mux.NewRouter()
	NewAdminHandler(nil, store, zerolog.Nop()).RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/admin/feedback/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats feedback.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Correct)
	assert.Equal(t, 1, stats.Incorrect)
	assert.Equal(t, 50.0, stats.AccuracyPct)
}

func TestGetFeedbackStatsStoreDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { client.Close() })

	router := mux.NewRouter()
	NewAdminHandler(nil, feedback.New(client, zerolog.Nop()), zerolog.Nop()).RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/admin/feedback/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
