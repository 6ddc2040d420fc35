package cache

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

// InMemoryFamilyLocker implements variation.FamilyLocker within one process.
// This is suitable for single-instance deployments and testing.
// A family's slot lives only while someone holds or waits for it.
type InMemoryFamilyLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewInMemoryFamilyLocker creates an in-process family locker
func NewInMemoryFamilyLocker() *InMemoryFamilyLocker {
	return &InMemoryFamilyLocker{slots: make(map[uuid.UUID]*lockSlot)}
}

func (l *InMemoryFamilyLocker) acquire(familyID uuid.UUID) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[familyID]
	if !ok {
		s = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[familyID] = s
	}
	s.refs++
	return s
}

func (l *InMemoryFamilyLocker) release(familyID uuid.UUID, s *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, familyID)
	}
}

// Lock blocks until the family's slot is free or ctx is done
func (l *InMemoryFamilyLocker) Lock(ctx context.Context, familyID uuid.UUID) (func(), error) {
	s := l.acquire(familyID)
	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(familyID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(familyID, s)
		})
	}, nil
}

// Len reports how many families currently have a holder or waiter.
func (l *InMemoryFamilyLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

// Close is a no-op
func (l *InMemoryFamilyLocker) Close() error {
	return nil
}

var _ variation.FamilyLocker = (*InMemoryFamilyLocker)(nil)
