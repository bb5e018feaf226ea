// Package splunk retrieves incidents and service logs through the Splunk
// REST search API. Search failures degrade to empty results; the gateway
// stays up when Splunk is down.
package splunk

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/incidentops/analysis-gateway/internal/models"
)

type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	log        zerolog.Logger
}

// New builds a client for the Splunk management port. Splunk instances
// commonly run with self-signed certs on 8089, so certificate checks are
// off unless verifyTLS is set.
func New(baseURL, username, password string, verifyTLS bool, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: !verifyTLS},
			},
		},
		log: logger.With().Str("component", "splunk").Logger(),
	}
}

// RecentIncidents searches error-level events from the trailing window and
// folds them into incidents. Returns an empty slice on any search failure.
func (c *Client) RecentIncidents(ctx context.Context, hours int) []models.Incident {
	query := fmt.Sprintf(`search index=main earliest=-%dh
| where match(_raw, "ERROR|FATAL|CRITICAL")
| eval severity=case(
    match(_raw, "FATAL|CRITICAL"), "P1",
    match(_raw, "ERROR"), "P2",
    1==1, "P3"
)
| stats count by host, source, severity, _time
| sort -_time
| head 50`, hours)

	results, err := c.export(ctx, query)
	if err != nil {
		c.log.Error().Err(err).Int("hours", hours).Msg("incident search failed")
		return nil
	}

	incidents := make([]models.Incident, 0, len(results))
	for _, result := range results {
		if incident, ok := c.parseIncident(result); ok {
			incidents = append(incidents, incident)
		}
	}

	c.log.Info().Int("count", len(incidents)).Int("hours", hours).Msg("fetched incidents")
	return incidents
}

// ServiceLogs returns recent raw log entries for one service.
func (c *Client) ServiceLogs(ctx context.Context, service string, hours int) []models.LogEntry {
	query := fmt.Sprintf(`search index=main source="*%s*" earliest=-%dh
| head 100
| eval log_level=case(
    match(_raw, "ERROR"), "ERROR",
    match(_raw, "WARN"), "WARN",
    match(_raw, "INFO"), "INFO",
    1==1, "DEBUG"
)`, service, hours)

	results, err := c.export(ctx, query)
	if err != nil {
		c.log.Error().Err(err).Str("service", service).Msg("log search failed")
		return nil
	}

	entries := make([]models.LogEntry, 0, len(results))
	for _, result := range results {
		entries = append(entries, models.LogEntry{
			Timestamp: parseTime(stringField(result, "_time")),
			Level:     stringFieldDefault(result, "log_level", "INFO"),
			Message:   stringField(result, "_raw"),
			Service:   service,
			Metadata: map[string]any{
				"host":   stringField(result, "host"),
				"source": stringField(result, "source"),
			},
		})
	}
	return entries
}

// Ping checks that the Splunk management port answers.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/services/server/info?output_mode=json", nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("splunk info returned %d", resp.StatusCode)
	}
	return nil
}

// export runs a one-shot search through the export endpoint, which
// streams one JSON object per line, each wrapping a single result row.
func (c *Client) export(ctx context.Context, query string) ([]map[string]any, error) {
	form := url.Values{
		"search":      {query},
		"output_mode": {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/services/search/jobs/export", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("splunk export returned %d: %s", resp.StatusCode, body)
	}

	var results []map[string]any
	dec := json.NewDecoder(resp.Body)
	for dec.More() {
		var line struct {
			Result map[string]any `json:"result"`
		}
		if err := dec.Decode(&line); err != nil {
			return nil, fmt.Errorf("decode export stream: %w", err)
		}
		if line.Result != nil {
			results = append(results, line.Result)
		}
	}
	return results, nil
}

func (c *Client) parseIncident(result map[string]any) (models.Incident, bool) {
	host := stringFieldDefault(result, "host", "unknown")
	source := stringFieldDefault(result, "source", "unknown-service")

	severity := models.Severity(stringFieldDefault(result, "severity", string(models.SeverityP3)))
	if !severity.Valid() {
		severity = models.SeverityP3
	}

	hostTag := strings.ToUpper(host)
	if len(hostTag) > 3 {
		hostTag = hostTag[:3]
	}

	return models.Incident{
		ID:          fmt.Sprintf("INC-%s-%s", time.Now().UTC().Format("20060102"), hostTag),
		Service:     source,
		Severity:    severity,
		Status:      models.StatusActive,
		Timestamp:   parseTime(stringField(result, "_time")),
		Description: fmt.Sprintf("Issues detected in %s", source),
		LogEntries:  []models.LogEntry{},
		Tags:        []string{"auto-detected"},
	}, true
}

func parseTime(value string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000-07:00"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

func stringField(result map[string]any, key string) string {
	v, _ := result[key].(string)
	return v
}

func stringFieldDefault(result map[string]any, key, defaultVal string) string {
	if v, ok := result[key].(string); ok && v != "" {
		return v
	}
	return defaultVal
}
