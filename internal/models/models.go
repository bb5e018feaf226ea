package models

import "time"

type Severity string

const (
	SeverityP0 Severity = "P0"
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
	SeverityP3 Severity = "P3"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityP0, SeverityP1, SeverityP2, SeverityP3:
		return true
	}
	return false
}

type IncidentStatus string

const (
	StatusActive    IncidentStatus = "active"
	StatusAnalyzing IncidentStatus = "analyzing"
	StatusResolved  IncidentStatus = "resolved"
	StatusEscalated IncidentStatus = "escalated"
)

type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Service   string         `json:"service"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type Incident struct {
	ID          string         `json:"id"`
	Service     string         `json:"service"`
	Severity    Severity       `json:"severity"`
	Status      IncidentStatus `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Description string         `json:"description"`
	LogEntries  []LogEntry     `json:"log_entries"`
	Tags        []string       `json:"tags,omitempty"`
	AssignedTo  string         `json:"assigned_to,omitempty"`
}

type SimilarIncident struct {
	ID              string    `json:"id"`
	SimilarityScore float64   `json:"similarity_score"`
	Resolution      string    `json:"resolution"`
	MTTR            string    `json:"mttr"`
	ResolutionDate  time.Time `json:"resolution_date"`
}

// Analysis is the structured result produced for one incident. CreatedAt
// is normalized to RFC 3339 when the analysis passes through the cache.
type Analysis struct {
	IncidentID         string            `json:"incident_id"`
	Confidence         float64           `json:"confidence"`
	SeverityAssessment string            `json:"severity_assessment"`
	RootCause          string            `json:"root_cause"`
	Recommendations    []string          `json:"recommendations"`
	BusinessImpact     string            `json:"business_impact"`
	EscalationPath     string            `json:"escalation_path"`
	SimilarIncidents   []SimilarIncident `json:"similar_incidents"`
	ReasoningChain     []string          `json:"reasoning_chain"`
	CreatedAt          time.Time         `json:"created_at"`
}

type AnalysisRequest struct {
	AppID         string           `json:"app_id,omitempty"`
	LogData       []map[string]any `json:"log_data"`
	ServiceName   string           `json:"service_name"`
	SeverityHint  Severity         `json:"severity_hint,omitempty"`
	Documentation string           `json:"documentation,omitempty"`
}

type Feedback struct {
	IncidentID string `json:"incident_id"`
	AnalysisID string `json:"analysis_id"`
	IsCorrect  bool   `json:"is_correct"`
	UserID     string `json:"user_id"`
	Comments   string `json:"comments,omitempty"`
}

type App struct {
	ID               int       `json:"id"`
	AppID            string    `json:"app_id"`
	Name             string    `json:"name"`
	APIKey           string    `json:"api_key"`
	RateLimitPerHour int       `json:"rate_limit_per_hour"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type AuditRecord struct {
	ID         int64     `json:"id"`
	AppID      string    `json:"app_id"`
	IncidentID string    `json:"incident_id"`
	CacheHit   bool      `json:"cache_hit"`
	DurationMs int       `json:"duration_ms"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}
