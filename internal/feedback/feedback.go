// Package feedback stores analyst feedback on AI analyses and aggregates
// it into accuracy statistics. Records live in Redis for thirty days.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/incidentops/analysis-gateway/internal/models"
)

const retention = 30 * 24 * time.Hour

type Store struct {
	client *redis.Client
	log    zerolog.Logger
}

func New(client *redis.Client, logger zerolog.Logger) *Store {
	return &Store{
		client: client,
		log:    logger.With().Str("component", "feedback").Logger(),
	}
}

type record struct {
	models.Feedback
	Timestamp string `json:"timestamp"`
}

func (s *Store) Record(ctx context.Context, fb models.Feedback) error {
	key := fmt.Sprintf("feedback:%s:%s", fb.IncidentID, fb.AnalysisID)

	data, err := json.Marshal(record{Feedback: fb, Timestamp: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}

	if err := s.client.Set(ctx, key, data, retention).Err(); err != nil {
		return fmt.Errorf("store feedback: %w", err)
	}

	s.log.Info().Str("incident_id", fb.IncidentID).Bool("is_correct", fb.IsCorrect).
		Str("user_id", fb.UserID).Msg("feedback recorded")
	return nil
}

type Stats struct {
	Total       int     `json:"total_feedback"`
	Correct     int     `json:"correct_feedback"`
	Incorrect   int     `json:"incorrect_feedback"`
	AccuracyPct float64 `json:"accuracy_percentage"`
}

// Stats scans all retained feedback and aggregates correctness counts.
// Entries that fail to decode are skipped, not fatal.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	iter := s.client.Scan(ctx, 0, "feedback:*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			s.log.Warn().Str("key", iter.Val()).Msg("skipping undecodable feedback record")
			continue
		}
		stats.Total++
		if rec.IsCorrect {
			stats.Correct++
		}
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("scan feedback: %w", err)
	}

	stats.Incorrect = stats.Total - stats.Correct
	if stats.Total > 0 {
		stats.AccuracyPct = math.Round(float64(stats.Correct)/float64(stats.Total)*1000) / 10
	}
	return stats, nil
}
