package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func record(id string) *MappingData {
	return &MappingData{
		ID:       id,
		Mappings: map[string]string{"anon_abc": "secret-" + id},
		Strategy: "hash_salt",
	}
}

func TestMemoryStoreRetrieve(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryConfig{}, zap.NewNop())
	defer m.Close()

	t.Run("RoundTrip", func(t *testing.T) {
		if err := m.Store(ctx, "id-1", record("id-1")); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
		got, err := m.Retrieve(ctx, "id-1")
		if err != nil {
			t.Fatalf("Retrieve failed: %v", err)
		}
		if got.Mappings["anon_abc"] != "secret-id-1" {
			t.Errorf("Unexpected mapping: %v", got.Mappings)
		}
		if got.CreatedAt.IsZero() {
			t.Error("CreatedAt should be stamped on store")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := m.Retrieve(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("EmptyID", func(t *testing.T) {
		if err := m.Store(ctx, "", record("x")); !errors.Is(err, ErrStorage) {
			t.Errorf("Expected ErrStorage for empty id, got %v", err)
		}
	})

	t.Run("NilData", func(t *testing.T) {
		if err := m.Store(ctx, "id-nil", nil); !errors.Is(err, ErrStorage) {
			t.Errorf("Expected ErrStorage for nil data, got %v", err)
		}
	})

	t.Run("ReturnsCopy", func(t *testing.T) {
		m.Store(ctx, "id-copy", record("id-copy"))
		got, _ := m.Retrieve(ctx, "id-copy")
		got.Mappings["anon_abc"] = "tampered"

		again, _ := m.Retrieve(ctx, "id-copy")
		if again.Mappings["anon_abc"] != "secret-id-copy" {
			t.Error("Mutating a retrieved record should not affect the store")
		}
	})
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryConfig{}, zap.NewNop())
	defer m.Close()

	m.Store(ctx, "id-1", record("id-1"))

	if err := m.Delete(ctx, "id-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := m.Retrieve(ctx, "id-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Deleted record should be gone, got %v", err)
	}

	// Deleting an absent id is not an error.
	if err := m.Delete(ctx, "id-1"); err != nil {
		t.Errorf("Deleting absent id should succeed, got %v", err)
	}
}

func TestMemoryClear(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryConfig{}, zap.NewNop())
	defer m.Close()

	m.Store(ctx, "id-1", record("id-1"))
	m.Store(ctx, "id-2", record("id-2"))

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Expected empty store after clear, got %d entries", m.Len())
	}
}

func TestMemoryEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryConfig{MaxEntries: 2}, zap.NewNop())
	defer m.Close()

	m.Store(ctx, "id-1", record("id-1"))
	m.Store(ctx, "id-2", record("id-2"))
	m.Store(ctx, "id-3", record("id-3"))

	if _, err := m.Retrieve(ctx, "id-1"); !errors.Is(err, ErrNotFound) {
		t.Error("Oldest entry should have been evicted at capacity")
	}
	if _, err := m.Retrieve(ctx, "id-2"); err != nil {
		t.Errorf("id-2 should survive, got %v", err)
	}
	if _, err := m.Retrieve(ctx, "id-3"); err != nil {
		t.Errorf("id-3 should survive, got %v", err)
	}

	// Re-storing an existing id refreshes it without evicting anyone.
	m.Store(ctx, "id-3", record("id-3"))
	if _, err := m.Retrieve(ctx, "id-2"); err != nil {
		t.Errorf("Overwrite should not evict, got %v", err)
	}
}

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryConfig{TTL: 100 * time.Millisecond}, zap.NewNop())
	defer m.Close()

	m.Store(ctx, "id-1", record("id-1"))

	if _, err := m.Retrieve(ctx, "id-1"); err != nil {
		t.Fatalf("Fresh entry should be retrievable, got %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := m.Retrieve(ctx, "id-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expired entry should be evicted on retrieve, got %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Eager eviction should remove the entry, got %d", m.Len())
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryConfig{MaxEntries: 64}, zap.NewNop())
	defer m.Close()

	const goroutines = 8
	const iterations = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				id := fmt.Sprintf("id-%d", i%10)
				if err := m.Store(ctx, id, record(id)); err != nil {
					t.Errorf("Store failed: %v", err)
				}
				if got, err := m.Retrieve(ctx, id); err == nil {
					if got.Mappings["anon_abc"] != "secret-"+id {
						t.Errorf("Read wrong record for %s", id)
					}
				} else if !errors.Is(err, ErrNotFound) {
					t.Errorf("Retrieve failed: %v", err)
				}
				if i%7 == 0 {
					if err := m.Delete(ctx, id); err != nil {
						t.Errorf("Delete failed: %v", err)
					}
				}
			}
		}()
	}
	wg.Wait()

	if m.Len() > 10 {
		t.Errorf("Expected at most 10 live entries, got %d", m.Len())
	}
}

func TestMemoryHealthAndClose(t *testing.T) {
	m := NewMemory(MemoryConfig{}, zap.NewNop())

	if !m.HealthCheck(context.Background()) {
		t.Error("Memory backend should always be healthy")
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	// Close is idempotent.
	if err := m.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestMappingDataClone(t *testing.T) {
	original := record("id-1")
	clone := original.Clone()

	clone.Mappings["anon_abc"] = "changed"
	if original.Mappings["anon_abc"] == "changed" {
		t.Error("Clone should not share the mappings map")
	}

	var nilData *MappingData
	if nilData.Clone() != nil {
		t.Error("Cloning nil should return nil")
	}
}
