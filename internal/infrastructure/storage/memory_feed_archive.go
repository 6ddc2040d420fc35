package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

// DefaultMemoryArchiveCapacity bounds how many objects the in-memory archive keeps
const DefaultMemoryArchiveCapacity = 256

// MemoryFeedArchive is an in-process FeedArchive for development and tests.
// The oldest objects are evicted once capacity is reached.
type MemoryFeedArchive struct {
	mu       sync.RWMutex
	objects  map[string][]byte
	order    []string
	capacity int
}

// Ensure MemoryFeedArchive implements FeedArchive
var _ variation.FeedArchive = (*MemoryFeedArchive)(nil)

// NewMemoryFeedArchive creates an archive keeping at most capacity objects
func NewMemoryFeedArchive(capacity int) *MemoryFeedArchive {
	if capacity <= 0 {
		capacity = DefaultMemoryArchiveCapacity
	}
	return &MemoryFeedArchive{
		objects:  make(map[string][]byte),
		capacity: capacity,
	}
}

// ArchivePayload stores a copy of payload
func (m *MemoryFeedArchive) ArchivePayload(_ context.Context, familyID uuid.UUID, documentID, contentType string, payload []byte) (string, error) {
	key := PayloadKey(familyID, documentID, contentType)
	m.put(key, payload)
	return key, nil
}

// ArchiveReport stores a copy of report
func (m *MemoryFeedArchive) ArchiveReport(_ context.Context, feedID string, report []byte) (string, error) {
	key := ReportKey(feedID)
	m.put(key, report)
	return key, nil
}

// ReportURL returns a memory:// reference to the archived report
func (m *MemoryFeedArchive) ReportURL(_ context.Context, feedID string) (string, error) {
	key := ReportKey(feedID)
	if _, ok := m.Get(key); !ok {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return "memory://" + key, nil
}

// Get returns a copy of the object stored under key
func (m *MemoryFeedArchive) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Len returns the number of archived objects
func (m *MemoryFeedArchive) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *MemoryFeedArchive) put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.objects[key]; !exists {
		m.order = append(m.order, key)
	}
	m.objects[key] = append([]byte(nil), data...)

	for len(m.order) > m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.objects, oldest)
	}
}
