package admin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/incidentops/analysis-gateway/internal/db"
	"github.com/incidentops/analysis-gateway/internal/feedback"
	"github.com/incidentops/analysis-gateway/internal/models"
)

// FeedbackSource aggregates analyst feedback for the stats endpoint.
type FeedbackSource interface {
	Stats(ctx context.Context) (feedback.Stats, error)
}

type AdminHandler struct {
	db       *db.DB
	feedback FeedbackSource
	log      zerolog.Logger
}

func NewAdminHandler(database *db.DB, feedbackSource FeedbackSource, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		db:       database,
		feedback: feedbackSource,
		log:      logger.With().Str("component", "admin").Logger(),
	}
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/admin/apps", h.ListApps).Methods("GET")
	router.HandleFunc("/admin/apps", h.CreateApp).Methods("POST")
	router.HandleFunc("/admin/apps/{id}", h.GetApp).Methods("GET")
	router.HandleFunc("/admin/apps/{id}", h.DeleteApp).Methods("DELETE")
	router.HandleFunc("/admin/apps/{id}/rotate-key", h.RotateAPIKey).Methods("POST")
	router.HandleFunc("/admin/apps/{appID}/audit", h.GetAuditStats).Methods("GET")
	router.HandleFunc("/admin/feedback/stats", h.GetFeedbackStats).Methods("GET")
}

func (h *AdminHandler) CreateApp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppID            string `json:"app_id"`
		Name             string `json:"name"`
		RateLimitPerHour int    `json:"rate_limit_per_hour"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.AppID == "" || req.Name == "" {
		http.Error(w, "app_id and name are required", http.StatusBadRequest)
		return
	}

	// Zero means "use the configured default quota".
	if req.RateLimitPerHour < 0 {
		req.RateLimitPerHour = 0
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		http.Error(w, "Failed to generate API key", http.StatusInternalServerError)
		return
	}

	app := &models.App{
		AppID:            req.AppID,
		Name:             req.Name,
		APIKey:           apiKey,
		RateLimitPerHour: req.RateLimitPerHour,
	}

	if err := h.db.CreateApp(r.Context(), app); err != nil {
		h.log.Error().Err(err).Str("app_id", req.AppID).Msg("failed to create app")
		http.Error(w, "Failed to create app", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(app)
}

func (h *AdminHandler) ListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := h.db.ListApps(r.Context())
	if err != nil {
		http.Error(w, "Failed to list apps", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apps)
}

func (h *AdminHandler) GetApp(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "Invalid app ID", http.StatusBadRequest)
		return
	}

	app, err := h.db.GetAppByID(r.Context(), id)
	if err != nil {
		http.Error(w, "App not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(app)
}

func (h *AdminHandler) DeleteApp(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "Invalid app ID", http.StatusBadRequest)
		return
	}

	if err := h.db.DeleteApp(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete app", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "Invalid app ID", http.StatusBadRequest)
		return
	}

	newAPIKey, err := generateAPIKey()
	if err != nil {
		http.Error(w, "Failed to generate API key", http.StatusInternalServerError)
		return
	}

	if err := h.db.RotateAPIKey(r.Context(), id, newAPIKey); err != nil {
		http.Error(w, "Failed to rotate API key", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"api_key": newAPIKey,
		"status":  "rotated",
	})
}

func (h *AdminHandler) GetAuditStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	stats, err := h.db.GetAuditStats(r.Context(), vars["appID"])
	if err != nil {
		http.Error(w, "Failed to get audit stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *AdminHandler) GetFeedbackStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.feedback.Stats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to aggregate feedback")
		http.Error(w, "Failed to get feedback stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func generateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
