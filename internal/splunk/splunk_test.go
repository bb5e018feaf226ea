package splunk

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/search/jobs/export":
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "admin", user)
			assert.Equal(t, "changeme", pass)

			require.NoError(t, r.ParseForm())
			assert.Equal(t, "json", r.Form.Get("output_mode"))
			assert.Contains(t, r.Form.Get("search"), "index=main")

			for _, line := range lines {
				fmt.Fprintln(w, line)
			}
		case "/services/server/info":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRecentIncidents(t *testing.T) {
	srv := exportServer(t, []string{
		`{"preview":false,"result":{"host":"web-01","source":"payment-service","severity":"P1","_time":"2026-08-20T10:15:00.000-07:00","count":"4"}}`,
		`{"preview":false,"result":{"host":"db-02","source":"orders-db","severity":"P2","_time":"2026-08-20T09:00:00.000-07:00","count":"1"}}`,
	})

	c := New(srv.URL, "admin", "changeme", false, zerolog.Nop())
	incidents := c.RecentIncidents(context.Background(), 24)

	require.Len(t, incidents, 2)
	assert.Equal(t, "payment-service", incidents[0].Service)
	assert.Equal(t, "P1", string(incidents[0].Severity))
	assert.Equal(t, "active", string(incidents[0].Status))
	assert.Contains(t, incidents[0].ID, "WEB")
	assert.Contains(t, incidents[0].Tags, "auto-detected")
	assert.Equal(t, 2026, incidents[0].Timestamp.Year())
}

func TestRecentIncidentsDefaultsBadSeverity(t *testing.T) {
	srv := exportServer(t, []string{
		`{"preview":false,"result":{"host":"web-01","source":"svc","severity":"SEV9","_time":"2026-08-20T10:15:00.000-07:00"}}`,
	})

	c := New(srv.URL, "admin", "changeme", false, zerolog.Nop())
	incidents := c.RecentIncidents(context.Background(), 24)

	require.Len(t, incidents, 1)
	assert.Equal(t, "P3", string(incidents[0].Severity))
}

func TestRecentIncidentsDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "admin", "changeme", false, zerolog.Nop())
	assert.Empty(t, c.RecentIncidents(context.Background(), 24))
}

func TestServiceLogs(t *testing.T) {
	srv := exportServer(t, []string{
		`{"preview":false,"result":{"host":"web-01","source":"payment-service.log","log_level":"ERROR","_raw":"connection refused","_time":"2026-08-20T10:15:00.000-07:00"}}`,
		`{"preview":false,"result":{"host":"web-02","source":"payment-service.log","_raw":"started","_time":"2026-08-20T10:16:00.000-07:00"}}`,
	})

	c := New(srv.URL, "admin", "changeme", false, zerolog.Nop())
	entries := c.ServiceLogs(context.Background(), "payment-service", 1)

	require.Len(t, entries, 2)
	assert.Equal(t, "ERROR", entries[0].Level)
	assert.Equal(t, "connection refused", entries[0].Message)
	assert.Equal(t, "payment-service", entries[0].Service)
	assert.Equal(t, "web-01", entries[0].Metadata["host"])
	// Missing log_level falls back to INFO.
	assert.Equal(t, "INFO", entries[1].Level)
}

func TestPing(t *testing.T) {
	srv := exportServer(t, nil)
	c := New(srv.URL, "admin", "changeme", false, zerolog.Nop())
	assert.NoError(t, c.Ping(context.Background()))

	srv.Close()
	assert.Error(t, c.Ping(context.Background()))
}

func TestTLSVerification(t *testing.T) {
	c := New("https://localhost:8089", "admin", "changeme", false, zerolog.Nop())
	transport := c.httpClient.Transport.(*http.Transport)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)

	c = New("https://localhost:8089", "admin", "changeme", true, zerolog.Nop())
	transport = c.httpClient.Transport.(*http.Transport)
	assert.False(t, transport.TLSClientConfig.InsecureSkipVerify)
}

func TestParseTimeFallsBackToNow(t *testing.T) {
	before := time.Now().Add(-time.Second)
	got := parseTime("not-a-time")
	assert.True(t, got.After(before))
}
