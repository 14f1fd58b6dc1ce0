package inmemory

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/and161185/portal-dashboard/model"
)

// MemStorage holds the last snapshot in memory.
type MemStorage struct {
	snapshot  model.MetricSnapshot
	updatedAt time.Time
	mu        sync.RWMutex
}

type fileSnapshot struct {
	Snapshot  model.MetricSnapshot `json:"snapshot"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func NewMemStorage() *MemStorage {
	return &MemStorage{}
}

// Get returns the last applied snapshot, zero before the first Set.
func (store *MemStorage) Get(ctx context.Context) model.MetricSnapshot {
	store.mu.RLock()
	defer store.mu.RUnlock()

	return store.snapshot
}

// Set replaces the stored snapshot.
func (store *MemStorage) Set(ctx context.Context, s model.MetricSnapshot) {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.snapshot = s
	store.updatedAt = time.Now()
}

// UpdatedAt reports when the snapshot was last replaced.
func (store *MemStorage) UpdatedAt() (time.Time, bool) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	return store.updatedAt, !store.updatedAt.IsZero()
}

func (store *MemStorage) SaveToFile(ctx context.Context, filePath string) error {
	store.mu.RLock()
	data := fileSnapshot{Snapshot: store.snapshot, UpdatedAt: store.updatedAt}
	store.mu.RUnlock()

	if data.UpdatedAt.IsZero() {
		return nil
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(filePath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func (store *MemStorage) LoadFromFile(ctx context.Context, filePath string) error {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data fileSnapshot
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	store.snapshot = data.Snapshot.Sanitize()
	store.updatedAt = data.UpdatedAt
	return nil
}
