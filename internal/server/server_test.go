package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lgpdkit/pii-sentinel/internal/config"
	"github.com/lgpdkit/pii-sentinel/internal/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.Anonymization.HashSalt = "Abcdef123456Abcdef123456Abcdef12"
	cfg.Server.RateLimit.Enabled = false

	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	srv, err := New(cfg, log)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return srv
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func customerPayload() datasetPayload {
	return datasetPayload{
		Name: "clientes",
		Columns: []columnPayload{
			{Name: "cpf", Values: []interface{}{"123.456.789-00", "987.654.321-00"}},
			{Name: "email", Values: []interface{}{"ana@example.com", "bruno@example.com"}},
			{Name: "salario", Values: []interface{}{3500.0, nil}},
		},
	}
}

// TestHealthEndpoint tests the health check
func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Health check returned %d", rec.Code)
	}
}

// TestScanEndpoint tests detection over a posted dataset
func TestScanEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv, "/v1/scan", customerPayload())
	if rec.Code != http.StatusOK {
		t.Fatalf("Scan returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp scanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if resp.Cached {
		t.Error("First scan cannot be cached")
	}
	if len(resp.Result.Findings) == 0 {
		t.Error("No findings for a PII-heavy dataset")
	}
	if resp.Result.RiskSummary == nil {
		t.Error("Scan response missing risk summary")
	}
}

// TestScanEndpointRejectsEmpty tests input validation
func TestScanEndpointRejectsEmpty(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv, "/v1/scan", datasetPayload{Name: "vazio"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Empty dataset returned %d, want 400", rec.Code)
	}
}

// TestAnonymizeEndpoint tests the anonymization API
func TestAnonymizeEndpoint(t *testing.T) {
	srv := newTestServer(t)

	t.Run("Success", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/anonymize", map[string]interface{}{
			"dataset": customerPayload(),
			"methods": map[string]interface{}{
				"cpf":   map[string]interface{}{"method": "hash", "parameters": map[string]interface{}{"truncate_len": 12}},
				"email": map[string]interface{}{"method": "mask"},
			},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Anonymize returned %d: %s", rec.Code, rec.Body.String())
		}

		var resp anonymizeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Bad response: %v", err)
		}
		if len(resp.Report.Columns) != 2 {
			t.Errorf("Expected 2 column reports, got %d", len(resp.Report.Columns))
		}

		for _, col := range resp.Dataset.Columns {
			if col.Name != "cpf" {
				continue
			}
			hashed, ok := col.Values[0].(string)
			if !ok || len(hashed) != 12 {
				t.Errorf("CPF not hashed to 12 chars: %v", col.Values[0])
			}
		}
	})

	t.Run("UnknownMethod", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/anonymize", map[string]interface{}{
			"dataset": customerPayload(),
			"methods": map[string]interface{}{
				"cpf": map[string]interface{}{"method": "rot13"},
			},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Unknown method returned %d, want 400", rec.Code)
		}
	})

	t.Run("UnknownColumn", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/anonymize", map[string]interface{}{
			"dataset": customerPayload(),
			"methods": map[string]interface{}{
				"inexistente": map[string]interface{}{"method": "mask"},
			},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Unknown column returned %d, want 400", rec.Code)
		}
	})

	t.Run("NoMethods", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/anonymize", map[string]interface{}{
			"dataset": customerPayload(),
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Missing methods returned %d, want 400", rec.Code)
		}
	})
}

// TestAuditEndpoint tests the full loop with a derived plan
func TestAuditEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv, "/v1/audit", map[string]interface{}{
		"dataset": customerPayload(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Audit returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ScanBefore struct {
			Findings []json.RawMessage `json:"findings"`
		} `json:"scan_before"`
		ReductionRatio float64        `json:"reduction_ratio"`
		Dataset        datasetPayload `json:"dataset"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Bad response: %v", err)
	}

	if len(resp.ScanBefore.Findings) == 0 {
		t.Error("Audit should find PII before anonymizing")
	}
	if resp.ReductionRatio < 0 || resp.ReductionRatio > 1 {
		t.Errorf("Reduction ratio %f outside [0, 1]", resp.ReductionRatio)
	}
	if len(resp.Dataset.Columns) != 3 {
		t.Errorf("Output dataset lost columns: %d", len(resp.Dataset.Columns))
	}
}

// TestDetokenizeWithoutVaultStore tests the disabled-backend response
func TestDetokenizeWithoutVaultStore(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv, "/v1/detokenize", detokenizeRequest{RunID: "r1", Token: "TOK_00000001"})
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("Detokenize without vault store returned %d, want 501", rec.Code)
	}
}

// TestRateLimit tests the per-IP limiter
func TestRateLimit(t *testing.T) {
	cfg := config.GetDefaults()
	cfg.Anonymization.HashSalt = "Abcdef123456Abcdef123456Abcdef12"
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerSec = 1
	cfg.Server.RateLimit.Burst = 2

	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	srv, err := New(cfg, log)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	limited := false
	for i := 0; i < 5; i++ {
		rec := postJSON(t, srv, "/v1/scan", customerPayload())
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("Burst of requests was never rate limited")
	}
}
