package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Hubeet-AI/anon-infer-proxy/internal/config"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/engine"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/events"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.Engine.EnableSignatures = true
	cfg.Engine.SignatureSecret = "test-secret"

	eng, err := engine.New(cfg.Engine, nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(eng.Close)

	hub := events.NewHub(cfg.Events, nil)
	t.Cleanup(hub.Close)

	return New(cfg, logger.Nop(), eng, hub, nil)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func anonymize(t *testing.T, s *Server, prompt string) engine.Result {
	t.Helper()

	rec := doJSON(t, s, "POST", "/v1/anonymize", map[string]string{"prompt": prompt})
	if rec.Code != http.StatusOK {
		t.Fatalf("Anonymize returned %d: %s", rec.Code, rec.Body.String())
	}

	var result engine.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode anonymize response: %v", err)
	}
	return result
}

func TestHandleAnonymize(t *testing.T) {
	s := newTestServer(t)

	t.Run("Success", func(t *testing.T) {
		result := anonymize(t, s, "mail user@example.com")
		if result.MapID == "" || result.Signature == "" {
			t.Errorf("Incomplete result: %+v", result)
		}
		if result.TokenCount != 1 {
			t.Errorf("Expected 1 token, got %d", result.TokenCount)
		}
	})

	t.Run("EmptyPrompt", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/anonymize", map[string]string{"prompt": ""})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("MalformedBody", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/v1/anonymize", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("RequestIDHeader", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/anonymize", map[string]string{"prompt": "plain text"})
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("Expected X-Request-ID response header")
		}
	})
}

func TestHandleDeanonymize(t *testing.T) {
	s := newTestServer(t)
	prompt := "mail user@example.com"
	result := anonymize(t, s, prompt)

	t.Run("RoundTrip", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/deanonymize", deanonymizeRequest{
			Output:    result.AnonPrompt,
			MapID:     result.MapID,
			Signature: result.Signature,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp deanonymizeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.Output != prompt {
			t.Errorf("Round trip mismatch: want %q, got %q", prompt, resp.Output)
		}
	})

	t.Run("UnknownMapID", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/deanonymize", deanonymizeRequest{
			Output:    "output",
			MapID:     "no-such-id",
			Signature: result.Signature,
		})
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})

	t.Run("BadSignature", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/deanonymize", deanonymizeRequest{
			Output:    result.AnonPrompt,
			MapID:     result.MapID,
			Signature: "deadbeef",
		})
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("MissingOutput", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/deanonymize", deanonymizeRequest{
			MapID:     result.MapID,
			Signature: result.Signature,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestHandleDeleteMapping(t *testing.T) {
	s := newTestServer(t)
	result := anonymize(t, s, "mail user@example.com")

	rec := doJSON(t, s, "DELETE", "/v1/mappings/"+result.MapID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	// The mapping is gone.
	rec = doJSON(t, s, "POST", "/v1/deanonymize", deanonymizeRequest{
		Output:    result.AnonPrompt,
		MapID:     result.MapID,
		Signature: result.Signature,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}

	// Deleting again still succeeds.
	rec = doJSON(t, s, "DELETE", "/v1/mappings/"+result.MapID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 on repeat delete, got %d", rec.Code)
	}
}

func TestHandleDetectStats(t *testing.T) {
	s := newTestServer(t)

	t.Run("Success", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/detect/stats", map[string]string{
			"text": "key sk-1234567890abcdef and user@example.com",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		var stats struct {
			TotalTokens int `json:"totalTokens"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if stats.TotalTokens != 2 {
			t.Errorf("Expected 2 tokens, got %d", stats.TotalTokens)
		}
	})

	t.Run("EmptyText", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/detect/stats", map[string]string{"text": ""})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Status  string `json:"status"`
		Storage bool   `json:"storage"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "healthy" || !resp.Storage {
		t.Errorf("Unexpected health response: %+v", resp)
	}
}

func TestHandleInfo(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/info", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Name   string `json:"name"`
		Engine struct {
			SignaturesEnabled bool `json:"signaturesEnabled"`
		} `json:"engine"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Name != "anon-infer-proxy" {
		t.Errorf("Unexpected name: %s", resp.Name)
	}
	if !resp.Engine.SignaturesEnabled {
		t.Error("Expected signatures enabled in info")
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t)
	s.config.Server.RateLimit.RequestsPerMin = 60
	s.config.Server.RateLimit.Burst = 2
	s.limiter = newClientLimiter(60, 2)

	var limited bool
	for i := 0; i < 5; i++ {
		rec := doJSON(t, s, "POST", "/v1/anonymize", map[string]string{
			"prompt": fmt.Sprintf("plain text %d", i),
		})
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("Expected a 429 once the burst was exhausted")
	}
}
