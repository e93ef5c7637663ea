package notify

import (
	"context"
	"sync"
)

// Memory broadcasts events inside one process. Slow subscribers miss events
// rather than block publishers.
type Memory struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewMemory() *Memory {
	return &Memory{subs: map[string]map[chan Event]struct{}{}}
}

func (m *Memory) Publish(ctx context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ch := range m.subs[e.Token] {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, token string) (<-chan Event, error) {
	ch := make(chan Event, subscriberBuffer)

	m.mu.Lock()
	if m.subs[token] == nil {
		m.subs[token] = map[chan Event]struct{}{}
	}
	m.subs[token][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs[token], ch)
		if len(m.subs[token]) == 0 {
			delete(m.subs, token)
		}
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

// Subscribers reports how many listeners token has.
func (m *Memory) Subscribers(token string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[token])
}
