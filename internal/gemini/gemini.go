// Package gemini calls Google Gemini to turn an incident and its context
// documentation into a structured analysis. Parsing is tolerant of fenced
// or prefixed model output; when the call or the parse fails the client
// returns a low-confidence fallback analysis instead of an error, so the
// request path always has something to return.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/incidentops/analysis-gateway/internal/models"
)

type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

type Client struct {
	client *genai.Client
	model  string
	config Config
	log    zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client: client,
		model:  cfg.Model,
		config: cfg,
		log:    logger.With().Str("component", "gemini").Str("model", cfg.Model).Logger(),
	}, nil
}

// AnalyzeIncident asks the model for a structured analysis of the
// incident. It never returns an error: failures degrade to Fallback.
func (c *Client) AnalyzeIncident(ctx context.Context, incident *models.Incident, contextDocs string) *models.Analysis {
	prompt := buildPrompt(incident, contextDocs)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.config.Temperature)),
		MaxOutputTokens: int32(c.config.MaxTokens),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		c.log.Error().Err(err).Str("incident_id", incident.ID).Msg("generation failed")
		return Fallback(incident.ID)
	}

	text := responseText(resp)
	analysis, err := ParseAnalysis(text, incident.ID)
	if err != nil {
		c.log.Error().Err(err).Str("incident_id", incident.ID).
			Str("response_head", head(text, 200)).Msg("failed to parse model response")
		return Fallback(incident.ID)
	}

	return analysis
}

func responseText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

func buildPrompt(incident *models.Incident, contextDocs string) string {
	entries := incident.LogEntries
	if len(entries) > 10 {
		entries = entries[:10]
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("[%s] %s", entry.Level, entry.Message))
	}

	return fmt.Sprintf(`You are an expert Site Reliability Engineer analyzing a system incident. Provide a detailed analysis in JSON format.

INCIDENT DETAILS:
- ID: %s
- Service: %s
- Severity: %s
- Description: %s
- Timestamp: %s

LOG ENTRIES:
%s

CONTEXT DOCUMENTATION:
%s

Please analyze this incident and respond with a JSON object containing:
{
    "confidence": <0-100 confidence score>,
    "severity_assessment": "<HIGH|MEDIUM|LOW>",
    "root_cause": "<detailed root cause analysis>",
    "recommendations": ["<actionable step 1>", "<actionable step 2>", ...],
    "business_impact": "<executive summary of business impact>",
    "escalation_path": "<escalation path and team contacts>",
    "reasoning_chain": ["<step 1 of analysis>", "<step 2 of analysis>", ...]
}

Focus on:
1. Technical accuracy and actionable recommendations
2. Business impact in non-technical terms
3. Clear escalation paths
4. Evidence-based reasoning from the logs
5. Confidence scoring based on log quality and pattern recognition

Provide confidence scores based on:
- 90-100%%: Clear patterns, high log quality, known solutions
- 70-89%%: Good patterns, some ambiguity, likely solutions
- 50-69%%: Unclear patterns, requires human validation
- Below 50%%: Insufficient data, immediate escalation needed`,
		incident.ID, incident.Service, incident.Severity, incident.Description,
		incident.Timestamp.UTC().Format(time.RFC3339),
		strings.Join(lines, "\n"), contextDocs)
}

// ParseAnalysis extracts the JSON object from the model's text output.
// Models wrap JSON in markdown fences or prose; everything outside the
// outermost braces is discarded.
func ParseAnalysis(text, incidentID string) (*models.Analysis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var parsed struct {
		Confidence         float64  `json:"confidence"`
		SeverityAssessment string   `json:"severity_assessment"`
		RootCause          string   `json:"root_cause"`
		Recommendations    []string `json:"recommendations"`
		BusinessImpact     string   `json:"business_impact"`
		EscalationPath     string   `json:"escalation_path"`
		ReasoningChain     []string `json:"reasoning_chain"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}

	return &models.Analysis{
		IncidentID:         incidentID,
		Confidence:         parsed.Confidence,
		SeverityAssessment: parsed.SeverityAssessment,
		RootCause:          parsed.RootCause,
		Recommendations:    parsed.Recommendations,
		BusinessImpact:     parsed.BusinessImpact,
		EscalationPath:     parsed.EscalationPath,
		SimilarIncidents:   similarIncidents(),
		ReasoningChain:     parsed.ReasoningChain,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

// similarIncidents is a stub finder; a production deployment would back
// this with vector search over resolved incidents.
func similarIncidents() []models.SimilarIncident {
	return []models.SimilarIncident{
		{
			ID:              "INC-2024-156",
			SimilarityScore: 0.85,
			Resolution:      "Increased connection pool size",
			MTTR:            "15min",
			ResolutionDate:  time.Now().UTC(),
		},
	}
}

// Fallback is returned when the model is unavailable or its output is
// unusable; it routes the incident to a human instead of failing the
// request.
func Fallback(incidentID string) *models.Analysis {
	return &models.Analysis{
		IncidentID:         incidentID,
		Confidence:         30.0,
		SeverityAssessment: "UNKNOWN",
		RootCause:          "Analysis failed - requires manual investigation",
		Recommendations:    []string{"Escalate to on-call engineer", "Review logs manually"},
		BusinessImpact:     "Impact assessment pending manual review",
		EscalationPath:     "Immediate escalation to senior engineer",
		SimilarIncidents:   []models.SimilarIncident{},
		ReasoningChain:     []string{"AI analysis unavailable", "Fallback to manual process"},
		CreatedAt:          time.Now().UTC(),
	}
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
