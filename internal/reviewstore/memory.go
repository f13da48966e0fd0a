package reviewstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joescharf/triage/internal/models"
)

// MemoryStore is a process-local Store for development and tests.
//
// State lives in this process only, so it cannot coordinate handlers that
// run as independent stateless invocations. Not a supported production mode.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	now func() time.Time
}

type memoryEntry struct {
	payload   []byte
	createdAt time.Time
	expiresAt time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, review *models.ReviewRequest, ttl time.Duration) error {
	payload, err := json.Marshal(review)
	if err != nil {
		return fmt.Errorf("marshal review: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	createdAt := now
	if prev, ok := m.entries[review.ID]; ok {
		createdAt = prev.createdAt
	}
	m.entries[review.ID] = memoryEntry{
		payload:   payload,
		createdAt: createdAt,
		expiresAt: now.Add(ttl),
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.ReviewRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.After(m.now().UTC()) {
		delete(m.entries, id)
		return nil, ErrNotFound
	}

	review := &models.ReviewRequest{}
	if err := json.Unmarshal(entry.payload, review); err != nil {
		return nil, fmt.Errorf("unmarshal review %s: %w", id, err)
	}
	return review, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*models.ReviewRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	type pair struct {
		createdAt time.Time
		review    *models.ReviewRequest
	}
	var pairs []pair
	for id, entry := range m.entries {
		if !entry.expiresAt.After(now) {
			delete(m.entries, id)
			continue
		}
		review := &models.ReviewRequest{}
		if err := json.Unmarshal(entry.payload, review); err != nil {
			return nil, fmt.Errorf("unmarshal review %s: %w", id, err)
		}
		pairs = append(pairs, pair{entry.createdAt, review})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].createdAt.After(pairs[j].createdAt) })

	reviews := make([]*models.ReviewRequest, len(pairs))
	for i, p := range pairs {
		reviews[i] = p.review
	}
	return reviews, nil
}

func (m *MemoryStore) Close() error { return nil }

// SetNow overrides the store's clock. Test hook for exercising expiry.
func (m *MemoryStore) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
