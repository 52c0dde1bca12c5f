// Package ring keeps the most recent diagnostic events in a fixed-size buffer.
// It performs no formatting and no I/O, which makes it the sink of choice for
// constrained targets.
package ring

import (
	"context"
	"sync"

	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

// Name is the sink name registered with the facade.
const Name = "ring"

// DefaultSize is used when New is given a non-positive size.
const DefaultSize = 256

// Sink is a circular event buffer. When full, the oldest event is evicted.
type Sink struct {
	buf         []diagnostics.Event
	next        int
	count       int
	overwritten uint64
	mu          sync.Mutex
}

var _ diagnostics.Sink = (*Sink)(nil)

// New allocates a ring holding size events.
func New(size int) *Sink {
	if size <= 0 {
		size = DefaultSize
	}
	return &Sink{buf: make([]diagnostics.Event, size)}
}

func (s *Sink) Name() string { return Name }

// Write stores ev, evicting the oldest event when the ring is full.
// It never fails.
func (s *Sink) Write(_ context.Context, ev diagnostics.Event) error {
	s.mu.Lock()
	s.buf[s.next] = ev
	s.next = (s.next + 1) % len(s.buf)
	if s.count < len(s.buf) {
		s.count++
	} else {
		s.overwritten++
	}
	s.mu.Unlock()
	return nil
}

// Snapshot returns the retained events, oldest first.
func (s *Sink) Snapshot() []diagnostics.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]diagnostics.Event, 0, s.count)
	start := (s.next - s.count + len(s.buf)) % len(s.buf)
	for i := range s.count {
		out = append(out, s.buf[(start+i)%len(s.buf)])
	}
	return out
}

// Len returns the number of retained events.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Cap returns the ring capacity.
func (s *Sink) Cap() int { return len(s.buf) }

// Overwritten returns how many events were evicted.
func (s *Sink) Overwritten() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overwritten
}

// Reset drops all retained events.
func (s *Sink) Reset() {
	s.mu.Lock()
	clear(s.buf)
	s.next, s.count = 0, 0
	s.mu.Unlock()
}
