package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

// Store is an append-only event log. Append assigns the monotonic id;
// events are never mutated afterwards.
type Store interface {
	Append(ctx context.Context, e *domain.Event) error
	// Range returns the policy's events with start <= At < end, in id order.
	Range(ctx context.Context, policyID string, start, end time.Time) ([]domain.Event, error)
	// LastBefore returns the policy's newest event with At < t, or nil.
	LastBefore(ctx context.Context, policyID string, t time.Time) (*domain.Event, error)
}

// Memory keeps events in a slice; the default store and the one tests use.
type Memory struct {
	mu     sync.RWMutex
	seq    int64
	events []domain.Event
}

func NewMemory() *Memory {
	return &Memory{events: make([]domain.Event, 0, 128)}
}

func (m *Memory) Append(ctx context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	e.ID = m.seq
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *Memory) Range(ctx context.Context, policyID string, start, end time.Time) ([]domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Event
	for _, e := range m.events {
		if e.PolicyID != policyID {
			continue
		}
		if e.At.Before(start) || !e.At.Before(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) LastBefore(ctx context.Context, policyID string, t time.Time) (*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if e.PolicyID == policyID && e.At.Before(t) {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}
