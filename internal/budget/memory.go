package budget

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int
	expires time.Time
}

// Memory counts in process. Keys reset once window has passed since their
// first check. Expired keys are swept at most once per window.
type Memory struct {
	mu        sync.Mutex
	window    time.Duration
	now       func() time.Time
	entries   map[string]memoryEntry
	nextSweep time.Time
}

func NewMemory(window time.Duration) *Memory {
	return &Memory{window: window, now: time.Now, entries: map[string]memoryEntry{}}
}

func (m *Memory) Take(ctx context.Context, key string, max int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	e, ok := m.entries[key]
	if !ok || (m.window > 0 && !now.Before(e.expires)) {
		e = memoryEntry{expires: now.Add(m.window)}
	}
	if e.count >= max {
		m.entries[key] = e
		return e.count, false, nil
	}
	e.count++
	m.entries[key] = e
	return e.count, true, nil
}

func (m *Memory) sweep(now time.Time) {
	if m.window <= 0 {
		return
	}
	if m.nextSweep.IsZero() {
		m.nextSweep = now.Add(m.window)
		return
	}
	if now.Before(m.nextSweep) {
		return
	}
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.nextSweep = now.Add(m.window)
}

// Len reports how many keys are held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
