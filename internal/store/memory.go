package store

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity is the number of runs the in-memory store keeps.
const DefaultMemoryCapacity = 100

// MemoryStore keeps the most recent runs in a bounded ring.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []OptimizationRun
	next int
	full bool
}

// NewMemoryStore constructs a store holding at most capacity runs.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{runs: make([]OptimizationRun, capacity)}
}

// Record stores run, evicting the oldest run when full.
func (m *MemoryStore) Record(_ context.Context, run OptimizationRun) error {
	if err := validateRun(run); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[m.next] = run
	m.next = (m.next + 1) % len(m.runs)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]OptimizationRun, error) {
	limit = normalizeLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	size := m.next
	if m.full {
		size = len(m.runs)
	}
	n := min(limit, size)
	out := make([]OptimizationRun, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.next - i + len(m.runs)) % len(m.runs)
		out = append(out, m.runs[idx])
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
