package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Hubeet-AI/anon-infer-proxy/internal/audit"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/detector"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/engine"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/events"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/storage"
)

const maxRequestBody = 1 << 20 // 1 MiB

type anonymizeRequest struct {
	Prompt string `json:"prompt"`
}

type deanonymizeRequest struct {
	Output    string `json:"output"`
	MapID     string `json:"mapId"`
	Signature string `json:"signature,omitempty"`
}

type deanonymizeResponse struct {
	Output string `json:"output"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// handleAnonymize anonymizes a prompt and returns the proxy text, mapping id
// and signature.
func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req anonymizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.engine.Anonymize(r.Context(), req.Prompt)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.recordOperation(r, "anonymize", result.MapID, result.TokenCount, result.ByType, time.Since(start))

	s.writeJSON(w, http.StatusOK, result)
}

// handleDeanonymize restores original values in model output.
func (s *Server) handleDeanonymize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req deanonymizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	output, err := s.engine.Deanonymize(r.Context(), req.Output, req.MapID, req.Signature)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.recordOperation(r, "deanonymize", req.MapID, 0, nil, time.Since(start))

	s.writeJSON(w, http.StatusOK, deanonymizeResponse{Output: output})
}

// handleDeleteMapping removes a stored mapping. Deleting an unknown id is a
// success.
func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	mapID := mux.Vars(r)["id"]

	if err := s.engine.DeleteMapping(r.Context(), mapID); err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.recordOperation(r, "mapping_deleted", mapID, 0, nil, time.Since(start))

	w.WriteHeader(http.StatusNoContent)
}

// handleDetectStats runs detection over text without anonymizing it.
func (s *Server) handleDetectStats(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		s.writeError(w, r, http.StatusBadRequest, "text cannot be empty")
		return
	}

	s.writeJSON(w, http.StatusOK, s.engine.DetectionStats(req.Text))
}

// handleHealth reports the health of the engine and its storage backend.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type healthResponse struct {
		Status    string `json:"status"`
		Storage   bool   `json:"storage"`
		Timestamp string `json:"timestamp"`
	}

	healthy := s.engine.HealthCheck(r.Context())
	resp := healthResponse{
		Status:    "healthy",
		Storage:   healthy,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, resp)
}

// handleInfo reports engine configuration metadata.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	type infoResponse struct {
		Name        string      `json:"name"`
		Engine      engine.Info `json:"engine"`
		Subscribers int         `json:"subscribers"`
	}

	s.writeJSON(w, http.StatusOK, infoResponse{
		Name:        "anon-infer-proxy",
		Engine:      s.engine.Info(),
		Subscribers: s.hub.ClientCount(),
	})
}

// recordOperation broadcasts an operation event and appends it to the audit
// trail. Both are best-effort and never fail the request.
func (s *Server) recordOperation(r *http.Request, operation, mapID string, tokenCount int, byType map[detector.TokenType]int, duration time.Duration) {
	requestID := getRequestID(r.Context())
	durationMS := float64(duration.Nanoseconds()) / 1e6
	strategyName := s.config.Engine.Strategy

	var eventType events.EventType
	switch operation {
	case "anonymize":
		eventType = events.EventTypeAnonymize
	case "deanonymize":
		eventType = events.EventTypeDeanonymize
	default:
		eventType = events.EventTypeMappingDeleted
	}

	s.hub.Broadcast(events.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: events.OperationEvent{
			RequestID:  requestID,
			Operation:  operation,
			MapID:      mapID,
			TokenCount: tokenCount,
			ByType:     byType,
			Strategy:   strategyName,
			DurationMS: durationMS,
		},
	})

	if s.audit == nil {
		return
	}
	if err := s.audit.Record(r.Context(), audit.Event{
		RequestID:  requestID,
		Operation:  operation,
		MapID:      mapID,
		TokenCount: tokenCount,
		Strategy:   strategyName,
		DurationMS: durationMS,
	}); err != nil {
		s.logger.WithRequestID(requestID).Warn("Audit record failed", zap.Error(err))
	}
}

// writeEngineError maps engine errors onto HTTP status codes.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, "mapping not found")
	case errors.Is(err, engine.ErrSignature):
		s.writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrValidation):
		s.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrStorage):
		s.writeError(w, r, http.StatusBadGateway, "storage backend unavailable")
	default:
		s.writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	requestID := getRequestID(r.Context())

	if status >= http.StatusInternalServerError {
		s.logger.WithRequestID(requestID).Error("Request failed",
			zap.Int("status", status),
			zap.String("error", message),
		)
	}

	s.writeJSON(w, status, errorResponse{Error: message, RequestID: requestID})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
