// loggen pushes generated log batches to a running gateway at a fixed
// interval, which is handy for exercising the cache and rate-limit paths
// during development.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
)

var samples = []struct {
	level   string
	message string
}{
	{"ERROR", "Database connection timeout after 30s"},
	{"ERROR", "Connection pool exhausted: 100/100 connections in use"},
	{"FATAL", "OutOfMemoryError: Java heap space"},
	{"ERROR", "Upstream service returned 503 Service Unavailable"},
	{"WARN", "Request latency p99 exceeded 2000ms"},
	{"ERROR", "Deadlock detected while acquiring row lock on orders"},
	{"ERROR", "TLS handshake failed: certificate has expired"},
	{"WARN", "Disk usage at 91% on /var/lib/data"},
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "gateway base URL")
	token := flag.String("token", "", "bearer token for /api/v1")
	service := flag.String("service", "payment-service", "service name to report")
	batch := flag.Int("batch", 5, "log entries per analysis request")
	count := flag.Int("count", 10, "number of requests to send")
	interval := flag.Duration("interval", 10*time.Second, "delay between requests")
	reuse := flag.Bool("reuse", false, "send the same batch every time (exercises cache hits)")
	flag.Parse()

	client := &http.Client{Timeout: 90 * time.Second}

	var fixed []map[string]any
	if *reuse {
		fixed = makeBatch(*service, *batch)
	}

	for i := 0; i < *count; i++ {
		if i > 0 {
			time.Sleep(*interval)
		}

		logData := fixed
		if logData == nil {
			logData = makeBatch(*service, *batch)
		}
		payload := map[string]any{
			"app_id":       "loggen",
			"service_name": *service,
			"log_data":     logData,
		}
		body, _ := json.Marshal(payload)

		req, err := http.NewRequest(http.MethodPost, *baseURL+"/api/v1/analyze", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if *token != "" {
			req.Header.Set("Authorization", "Bearer "+*token)
		}

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("request %d/%d failed: %v", i+1, *count, err)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		log.Printf("request %d/%d: status=%d cache=%s remaining=%s",
			i+1, *count, resp.StatusCode,
			resp.Header.Get("X-Cache-Status"),
			resp.Header.Get("X-RateLimit-Remaining"))
	}
}

func makeBatch(service string, n int) []map[string]any {
	entries := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		sample := samples[rand.Intn(len(samples))]
		entries = append(entries, map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"level":     sample.level,
			"message":   sample.message,
			"metadata": map[string]any{
				"host":     fmt.Sprintf("%s-%02d", service, rand.Intn(4)),
				"trace_id": uuid.NewString(),
			},
		})
	}
	return entries
}
