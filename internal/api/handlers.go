// Package api exposes the gateway's HTTP surface: token minting, the
// analyze pipeline (rate limit → cache → model → cache), incident
// listing, feedback and analytics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/incidentops/analysis-gateway/internal/auth"
	"github.com/incidentops/analysis-gateway/internal/cache"
	"github.com/incidentops/analysis-gateway/internal/feedback"
	"github.com/incidentops/analysis-gateway/internal/models"
	"github.com/incidentops/analysis-gateway/internal/ratelimit"
)

// Analyzer produces an analysis for an incident. Implementations degrade
// internally; the handler treats every returned analysis as usable.
type Analyzer interface {
	AnalyzeIncident(ctx context.Context, incident *models.Incident, contextDocs string) *models.Analysis
}

// IncidentSource lists recently detected incidents.
type IncidentSource interface {
	RecentIncidents(ctx context.Context, hours int) []models.Incident
	Ping(ctx context.Context) error
}

// AppRegistry resolves registered apps for token minting and per-app
// rate-limit overrides.
type AppRegistry interface {
	GetAppByAPIKey(ctx context.Context, apiKey string) (*models.App, error)
}

// Auditor records one row per analysis request.
type Auditor interface {
	LogAnalysis(ctx context.Context, record *models.AuditRecord) error
}

// Pinger reports reachability of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// auditTimeout bounds the detached audit write so a slow database cannot
// pile up goroutines behind it.
const auditTimeout = 5 * time.Second

type Options struct {
	Cache     *cache.Cache
	Limiter   *ratelimit.Limiter
	Feedback  *feedback.Store
	Analyzer  Analyzer
	Incidents IncidentSource
	Registry  AppRegistry
	Auditor   Auditor
	Database  Pinger

	RateLimitRequests int
	RateLimitWindow   time.Duration
	JWTSecret         string
	TokenTTL          time.Duration

	Logger zerolog.Logger
}

type Handler struct {
	cache     *cache.Cache
	limiter   *ratelimit.Limiter
	feedback  *feedback.Store
	analyzer  Analyzer
	incidents IncidentSource
	registry  AppRegistry
	auditor   Auditor
	database  Pinger

	rateLimitRequests int
	rateLimitWindow   time.Duration
	jwtSecret         string
	tokenTTL          time.Duration

	log zerolog.Logger
}

func NewHandler(opts Options) *Handler {
	return &Handler{
		cache:             opts.Cache,
		limiter:           opts.Limiter,
		feedback:          opts.Feedback,
		analyzer:          opts.Analyzer,
		incidents:         opts.Incidents,
		registry:          opts.Registry,
		auditor:           opts.Auditor,
		database:          opts.Database,
		rateLimitRequests: opts.RateLimitRequests,
		rateLimitWindow:   opts.RateLimitWindow,
		jwtSecret:         opts.JWTSecret,
		tokenTTL:          opts.TokenTTL,
		log:               opts.Logger.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes wires the public and authenticated routes. Everything
// under /api/v1 passes the JWT middleware and then the rate-limit gate.
func (h *Handler) RegisterRoutes(router *mux.Router, authMW *auth.Middleware) {
	router.HandleFunc("/", h.Root).Methods("GET")
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.HandleFunc("/auth/token", h.Token).Methods("POST")

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.Use(authMW.Authenticate, h.RateLimit)
	v1.HandleFunc("/analyze", h.Analyze).Methods("POST")
	v1.HandleFunc("/incidents", h.Incidents).Methods("GET")
	v1.HandleFunc("/feedback", h.Feedback).Methods("POST")
	v1.HandleFunc("/analytics", h.Analytics).Methods("GET")
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "AI Incident Analysis Gateway",
		"status":  "running",
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{"gemini": "configured"}
	healthy := true

	if err := h.cache.Ping(r.Context()); err != nil {
		components["redis"] = "unreachable"
		healthy = false
	} else {
		components["redis"] = "connected"
	}

	if h.database != nil {
		if err := h.database.Ping(r.Context()); err != nil {
			components["postgres"] = "unreachable"
			healthy = false
		} else {
			components["postgres"] = "connected"
		}
	}

	if h.incidents != nil {
		if err := h.incidents.Ping(r.Context()); err != nil {
			components["splunk"] = "unreachable"
			healthy = false
		} else {
			components["splunk"] = "connected"
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
	})
}

func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		http.Error(w, "App registry not configured", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	app, err := h.registry.GetAppByAPIKey(r.Context(), req.APIKey)
	if err != nil {
		h.log.Warn().Err(err).Msg("token request with unknown API key")
		http.Error(w, "Invalid API key", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken(app.AppID, app.APIKey, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.log.Error().Err(err).Str("app_id", app.AppID).Msg("token generation failed")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Analyze is the core pipeline: content digests → cache lookup → on miss
// call the model, cache the result. The rate-limit gate already ran in
// the middleware.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.ServiceName == "" || len(req.LogData) == 0 {
		http.Error(w, "service_name and log_data are required", http.StatusBadRequest)
		return
	}

	appID := h.resolveAppID(r.Context(), req.AppID)

	logDigest, err := cache.Digest(req.LogData)
	if err != nil {
		http.Error(w, "log_data is not serializable", http.StatusBadRequest)
		return
	}
	docDigest, err := cache.Digest(req.Documentation)
	if err != nil {
		http.Error(w, "documentation is not serializable", http.StatusBadRequest)
		return
	}

	if analysis, ok := h.cache.Lookup(r.Context(), appID, logDigest, docDigest); ok {
		h.audit(appID, analysis, true, time.Since(start))
		w.Header().Set("X-Cache-Status", "HIT")
		writeJSON(w, http.StatusOK, analysis)
		return
	}

	incident := buildIncident(&req)
	analysis := h.analyzer.AnalyzeIncident(r.Context(), incident, req.Documentation)

	h.cache.Store(r.Context(), appID, logDigest, docDigest, analysis)
	h.audit(appID, analysis, false, time.Since(start))

	h.log.Info().Str("incident_id", incident.ID).Str("app_id", appID).
		Float64("confidence", analysis.Confidence).Msg("generated new analysis")

	w.Header().Set("X-Cache-Status", "MISS")
	writeJSON(w, http.StatusOK, analysis)
}

func (h *Handler) Incidents(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid hours parameter", http.StatusBadRequest)
			return
		}
		hours = n
	}

	incidents := h.incidents.RecentIncidents(r.Context(), hours)

	if v := r.URL.Query().Get("severity"); v != "" {
		severity := models.Severity(v)
		if !severity.Valid() {
			http.Error(w, "Invalid severity parameter", http.StatusBadRequest)
			return
		}
		filtered := make([]models.Incident, 0, len(incidents))
		for _, inc := range incidents {
			if inc.Severity == severity {
				filtered = append(filtered, inc)
			}
		}
		incidents = filtered
	}

	if incidents == nil {
		incidents = []models.Incident{}
	}
	writeJSON(w, http.StatusOK, incidents)
}

func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	var fb models.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if fb.IncidentID == "" || fb.AnalysisID == "" || fb.UserID == "" {
		http.Error(w, "incident_id, analysis_id and user_id are required", http.StatusBadRequest)
		return
	}

	if err := h.feedback.Record(r.Context(), fb); err != nil {
		h.log.Error().Err(err).Str("incident_id", fb.IncidentID).Msg("failed to record feedback")
		http.Error(w, "Failed to record feedback", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Feedback recorded",
	})
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.feedback.Stats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to aggregate feedback")
		http.Error(w, "Failed to retrieve analytics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ai_accuracy_percentage": stats.AccuracyPct,
		"feedback_stats":         stats,
	})
}

// resolveAppID prefers the authenticated app identity, then the app_id
// in the request body, then the shared default namespace.
func (h *Handler) resolveAppID(ctx context.Context, requested string) string {
	if claims, ok := auth.AppFromContext(ctx); ok && claims.AppID != "" {
		return claims.AppID
	}
	if requested != "" {
		return requested
	}
	return "default"
}

func (h *Handler) audit(appID string, analysis *models.Analysis, cacheHit bool, elapsed time.Duration) {
	if h.auditor == nil {
		return
	}
	record := &models.AuditRecord{
		AppID:      appID,
		IncidentID: analysis.IncidentID,
		CacheHit:   cacheHit,
		DurationMs: int(elapsed.Milliseconds()),
		Confidence: analysis.Confidence,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := h.auditor.LogAnalysis(ctx, record); err != nil {
			h.log.Warn().Err(err).Str("app_id", appID).Msg("audit write failed")
		}
	}()
}

func buildIncident(req *models.AnalysisRequest) *models.Incident {
	severity := req.SeverityHint
	if !severity.Valid() {
		severity = models.SeverityP3
	}

	now := time.Now().UTC()
	entries := make([]models.LogEntry, 0, len(req.LogData))
	for _, raw := range req.LogData {
		entry := models.LogEntry{
			Timestamp: now,
			Level:     "INFO",
			Service:   req.ServiceName,
		}
		if level, ok := raw["level"].(string); ok && level != "" {
			entry.Level = level
		}
		if message, ok := raw["message"].(string); ok {
			entry.Message = message
		}
		if metadata, ok := raw["metadata"].(map[string]any); ok {
			entry.Metadata = metadata
		}
		entries = append(entries, entry)
	}

	return &models.Incident{
		ID:          "REQ-" + uuid.NewString(),
		Service:     req.ServiceName,
		Severity:    severity,
		Status:      models.StatusAnalyzing,
		Timestamp:   now,
		Description: "Analysis request for " + req.ServiceName,
		LogEntries:  entries,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
