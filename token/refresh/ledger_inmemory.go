package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	ownerID   uuid.UUID
	expiresAt time.Time
}

// InMemoryLedger is a Ledger for tests and local development.
type InMemoryLedger struct {
	mu      sync.Mutex
	entries map[string]entry
	nowFunc func() time.Time
}

// NewInMemoryLedger creates an empty InMemoryLedger.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		entries: make(map[string]entry),
		nowFunc: time.Now,
	}
}

func (l *InMemoryLedger) Store(_ context.Context, hash string, ownerID uuid.UUID, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[hash] = entry{
		ownerID:   ownerID,
		expiresAt: l.nowFunc().Add(ttl),
	}
	return nil
}

func (l *InMemoryLedger) Owner(_ context.Context, hash string) (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[hash]
	if !ok || l.nowFunc().After(e.expiresAt) {
		delete(l.entries, hash)
		return uuid.Nil, ErrNotFound
	}
	return e.ownerID, nil
}

func (l *InMemoryLedger) Revoke(_ context.Context, hash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[hash]
	if !ok || l.nowFunc().After(e.expiresAt) {
		delete(l.entries, hash)
		return ErrNotFound
	}
	delete(l.entries, hash)
	return nil
}

func (l *InMemoryLedger) RevokeAll(_ context.Context, ownerID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for hash, e := range l.entries {
		if e.ownerID == ownerID {
			delete(l.entries, hash)
		}
	}
	return nil
}
