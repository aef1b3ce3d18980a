package storage

import (
	"context"
	"errors"
	"time"
)

// Backend errors. ErrNotFound is distinct from ErrStorage so callers can
// treat an absent mapping differently from a backend failure.
var (
	ErrStorage  = errors.New("storage error")
	ErrNotFound = errors.New("mapping not found")
)

// MappingData is the persisted record produced by one anonymize call. Once
// stored it is owned exclusively by the backend; the engine keeps no cache.
type MappingData struct {
	ID        string            `json:"id"`
	Mappings  map[string]string `json:"mappings"`
	CreatedAt time.Time         `json:"createdAt"`
	Signature string            `json:"signature,omitempty"`
	Strategy  string            `json:"strategy"`
}

// Clone returns a deep copy so stored records cannot be mutated through
// caller-held references.
func (m *MappingData) Clone() *MappingData {
	if m == nil {
		return nil
	}
	mappings := make(map[string]string, len(m.Mappings))
	for proxy, original := range m.Mappings {
		mappings[proxy] = original
	}
	clone := *m
	clone.Mappings = mappings
	return &clone
}

// Backend persists mapping records keyed by an opaque id. Implementations
// must support concurrent Store/Retrieve/Delete without corruption.
type Backend interface {
	// Store persists data under id, stamping CreatedAt with the current time.
	Store(ctx context.Context, id string, data *MappingData) error

	// Retrieve returns the record stored under id, or ErrNotFound.
	Retrieve(ctx context.Context, id string) (*MappingData, error)

	// Delete removes the record under id. Deleting an absent id is not an
	// error.
	Delete(ctx context.Context, id string) error

	// Clear removes every record owned by this backend.
	Clear(ctx context.Context) error

	// HealthCheck reports whether the backend can currently serve requests.
	HealthCheck(ctx context.Context) bool

	// Close releases backend-held resources. Safe to call more than once.
	Close() error
}
