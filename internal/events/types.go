package events

import (
	"time"

	"github.com/Hubeet-AI/anon-infer-proxy/internal/detector"
)

// EventType represents the type of event broadcast to subscribers.
type EventType string

const (
	// EventTypeAnonymize is emitted after a successful anonymize call.
	EventTypeAnonymize EventType = "anonymize"
	// EventTypeDeanonymize is emitted after a successful deanonymize call.
	EventTypeDeanonymize EventType = "deanonymize"
	// EventTypeMappingDeleted is emitted when a mapping is deleted.
	EventTypeMappingDeleted EventType = "mapping_deleted"
	// EventTypeConnection is emitted on subscriber connect/disconnect.
	EventTypeConnection EventType = "connection"
)

// Event is pushed to websocket subscribers. Events carry counts, types and
// ids only, never token values.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data"`
}

// OperationEvent describes one engine operation.
type OperationEvent struct {
	RequestID  string                     `json:"request_id"`
	Operation  string                     `json:"operation"`
	MapID      string                     `json:"map_id"`
	TokenCount int                        `json:"token_count"`
	ByType     map[detector.TokenType]int `json:"by_type,omitempty"`
	Strategy   string                     `json:"strategy"`
	DurationMS float64                    `json:"duration_ms"`
}

// ConnectionEvent describes a subscriber joining or leaving.
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected" or "disconnected"
	ClientID string `json:"client_id"`
}

// Config contains the event hub configuration.
type Config struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	PingInterval   time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
}
