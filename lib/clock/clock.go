package clock

import (
	"sync"
	"time"
)

// Clock abstracts wall-clock access so the scheduler can be driven by a
// manual clock in tests. The system never builds its own time; it only
// reads the host's.
type Clock interface {
	Now() time.Time
	// After behaves like time.After. Implementations may fire early on
	// manual advance; callers must re-check state on every wake-up.
	After(d time.Duration) <-chan time.Time
}

// Stamp returns the current UTC time in the wire format used by API responses.
func Stamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// System returns the real wall clock.
func System() Clock {
	return systemClock{}
}

// Manual is a hand-advanced clock for deterministic tests.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	waiters []waiter
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan time.Time, 1)
	at := m.now.Add(d)
	if d <= 0 {
		ch <- m.now
		return ch
	}
	m.waiters = append(m.waiters, waiter{at: at, ch: ch})
	return ch
}

// Advance moves the clock forward and releases every waiter whose
// deadline has passed.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	remaining := m.waiters[:0]
	for _, w := range m.waiters {
		if !w.at.After(m.now) {
			w.ch <- m.now
		} else {
			remaining = append(remaining, w)
		}
	}
	m.waiters = remaining
}
