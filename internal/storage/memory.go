package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxEntries bounds the in-memory table when no capacity is
	// configured.
	DefaultMaxEntries = 10000

	// sweepInterval is how often the background janitor purges expired
	// entries.
	sweepInterval = 5 * time.Minute
)

// MemoryConfig configures the in-memory backend.
type MemoryConfig struct {
	// MaxEntries caps the table; at capacity the oldest-inserted entry is
	// evicted to make room for a new id.
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	// TTL expires entries after this duration. Zero disables expiry.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// Memory is a bounded associative store with insertion-order eviction and an
// optional TTL. A background sweep purges expired entries best-effort; expiry
// is also enforced eagerly on Retrieve, so an expired entry is observably
// identical to a deleted one.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*MappingData
	order   []string

	maxEntries int
	ttl        time.Duration
	logger     *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewMemory creates the in-memory backend and starts its TTL sweep.
func NewMemory(cfg MemoryConfig, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	m := &Memory{
		entries:    make(map[string]*MappingData),
		maxEntries: maxEntries,
		ttl:        cfg.TTL,
		logger:     logger,
		done:       make(chan struct{}),
	}

	go m.sweepLoop()

	logger.Debug("Memory storage initialized",
		zap.Int("max_entries", maxEntries),
		zap.Duration("ttl", cfg.TTL),
	)

	return m
}

// Store persists data under id. The record's CreatedAt is always stamped with
// the current time, so storing under an existing id refreshes its age and
// does not count toward the capacity check.
func (m *Memory) Store(_ context.Context, id string, data *MappingData) error {
	if id == "" {
		return fmt.Errorf("%w: empty mapping id", ErrStorage)
	}
	if data == nil {
		return fmt.Errorf("%w: nil mapping data", ErrStorage)
	}

	record := data.Clone()
	record.ID = id
	record.CreatedAt = time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[id]; !exists {
		if len(m.entries) >= m.maxEntries && len(m.order) > 0 {
			oldest := m.order[0]
			m.order = m.order[1:]
			delete(m.entries, oldest)
		}
		m.order = append(m.order, id)
	}
	m.entries[id] = record

	return nil
}

// Retrieve returns the record under id, evicting it eagerly when expired.
func (m *Memory) Retrieve(_ context.Context, id string) (*MappingData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}

	if m.expired(record, time.Now()) {
		m.remove(id)
		return nil, ErrNotFound
	}

	return record.Clone(), nil
}

// Delete removes the record under id; absent ids are a no-op.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(id)
	return nil
}

// Clear drops every stored record.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*MappingData)
	m.order = nil
	return nil
}

// HealthCheck always reports healthy for the in-process table.
func (m *Memory) HealthCheck(_ context.Context) bool { return true }

// Close stops the background sweep. Idempotent.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) expired(record *MappingData, now time.Time) bool {
	return m.ttl > 0 && now.Sub(record.CreatedAt) > m.ttl
}

// remove deletes id from the table and its insertion-order slot. Caller holds
// the lock.
func (m *Memory) remove(id string) {
	if _, ok := m.entries[id]; !ok {
		return
	}
	delete(m.entries, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// sweepLoop periodically purges expired entries. Failures here never surface
// to callers.
func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ttl <= 0 {
		return
	}

	now := time.Now()
	var expired []string
	for id, record := range m.entries {
		if m.expired(record, now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		m.remove(id)
	}

	if len(expired) > 0 {
		m.logger.Debug("Expired mappings purged", zap.Int("count", len(expired)))
	}
}
