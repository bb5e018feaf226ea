package db

import (
	"context"

	"github.com/incidentops/analysis-gateway/internal/models"
)

func (db *DB) GetAppByAPIKey(ctx context.Context, apiKey string) (*models.App, error) {
	query := `
        SELECT id, app_id, name, api_key, rate_limit_per_hour, created_at, updated_at
        FROM apps
        WHERE api_key = $1
    `

	var app models.App
	err := db.Pool.QueryRow(ctx, query, apiKey).Scan(
		&app.ID,
		&app.AppID,
		&app.Name,
		&app.APIKey,
		&app.RateLimitPerHour,
		&app.CreatedAt,
		&app.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return &app, nil
}

func (db *DB) GetAppByID(ctx context.Context, id int) (*models.App, error) {
	query := `
        SELECT id, app_id, name, api_key, rate_limit_per_hour, created_at, updated_at
        FROM apps
        WHERE id = $1
    `

	var app models.App
	err := db.Pool.QueryRow(ctx, query, id).Scan(
		&app.ID,
		&app.AppID,
		&app.Name,
		&app.APIKey,
		&app.RateLimitPerHour,
		&app.CreatedAt,
		&app.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return &app, nil
}

func (db *DB) CreateApp(ctx context.Context, app *models.App) error {
	query := `
        INSERT INTO apps (app_id, name, api_key, rate_limit_per_hour)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at
    `

	return db.Pool.QueryRow(ctx, query,
		app.AppID,
		app.Name,
		app.APIKey,
		app.RateLimitPerHour,
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
}

func (db *DB) ListApps(ctx context.Context) ([]models.App, error) {
	query := `
        SELECT id, app_id, name, api_key, rate_limit_per_hour, created_at, updated_at
        FROM apps
        ORDER BY id
    `

	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []models.App
	for rows.Next() {
		var app models.App
		if err := rows.Scan(
			&app.ID,
			&app.AppID,
			&app.Name,
			&app.APIKey,
			&app.RateLimitPerHour,
			&app.CreatedAt,
			&app.UpdatedAt,
		); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}

	return apps, rows.Err()
}

func (db *DB) RotateAPIKey(ctx context.Context, id int, newAPIKey string) error {
	query := `
        UPDATE apps
        SET api_key = $2, updated_at = NOW()
        WHERE id = $1
    `

	_, err := db.Pool.Exec(ctx, query, id, newAPIKey)
	return err
}

func (db *DB) DeleteApp(ctx context.Context, id int) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM apps WHERE id = $1`, id)
	return err
}

func (db *DB) LogAnalysis(ctx context.Context, record *models.AuditRecord) error {
	query := `
        INSERT INTO analysis_audit (app_id, incident_id, cache_hit, duration_ms, confidence)
        VALUES ($1, $2, $3, $4, $5)
    `

	_, err := db.Pool.Exec(ctx, query,
		record.AppID,
		record.IncidentID,
		record.CacheHit,
		record.DurationMs,
		record.Confidence,
	)

	return err
}

type AuditStats struct {
	TotalAnalyses int     `json:"total_analyses"`
	CacheHits     int     `json:"cache_hits"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	AvgConfidence float64 `json:"avg_confidence"`
}

func (db *DB) GetAuditStats(ctx context.Context, appID string) (*AuditStats, error) {
	query := `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE cache_hit),
               COALESCE(AVG(duration_ms), 0),
               COALESCE(AVG(confidence), 0)
        FROM analysis_audit
        WHERE app_id = $1
    `

	var stats AuditStats
	err := db.Pool.QueryRow(ctx, query, appID).Scan(
		&stats.TotalAnalyses,
		&stats.CacheHits,
		&stats.AvgDurationMs,
		&stats.AvgConfidence,
	)

	if err != nil {
		return nil, err
	}

	return &stats, nil
}
