package middleware

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocations is the single-process RevocationList used when redis is not configured.
type MemoryRevocations struct {
	mu  sync.Mutex
	ids map[string]time.Time
	now func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{ids: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevocations) Revoke(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	if until.After(m.now()) {
		m.ids[id] = until
	}
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.ids[id]
	return ok && until.After(m.now()), nil
}

// Sweep drops entries whose tokens have expired anyway.
func (m *MemoryRevocations) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
}

func (m *MemoryRevocations) sweepLocked() {
	now := m.now()
	for id, until := range m.ids {
		if !until.After(now) {
			delete(m.ids, id)
		}
	}
}
