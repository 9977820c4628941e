package journal

import (
	"context"
	"sync"
)

const defaultMemoryCapacity = 1000

// Memory is a bounded in-memory journal. Once full, the oldest events are
// dropped.
type Memory struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

// NewMemory returns a Memory journal holding at most capacity events.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &Memory{capacity: capacity}
}

func (m *Memory) Append(_ context.Context, e *Event) error {
	stamp(e)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	if over := len(m.events) - m.capacity; over > 0 {
		m.events = append([]Event(nil), m.events[over:]...)
	}
	return nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := f.limit()
	out := make([]Event, 0, min(limit, len(m.events)))
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if f.SessionID != "" && m.events[i].SessionID != f.SessionID {
			continue
		}
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
