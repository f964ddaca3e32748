// Package clock provides the millisecond time base used by the render loop,
// the screen saver and the input gate.
//
// Timestamps are uint32 milliseconds that wrap roughly every 49.7 days.
// Callers compare them with unsigned subtraction (now - then) so that
// elapsed-time checks stay correct across the wrap.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	NowMillis() uint32
}

// Monotonic counts milliseconds since it was created.
type Monotonic struct {
	start time.Time
}

func NewMonotonic() *Monotonic { return &Monotonic{start: time.Now()} }

func (m *Monotonic) NowMillis() uint32 {
	return uint32(time.Since(m.start).Milliseconds())
}

// Manual is a clock that only moves when told to. Tests share it across
// goroutines, so access is locked.
type Manual struct {
	mu  sync.Mutex
	now uint32
}

func NewManual(start uint32) *Manual { return &Manual{now: start} }

func (m *Manual) NowMillis() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(ms uint32) {
	m.mu.Lock()
	m.now = ms
	m.mu.Unlock()
}

func (m *Manual) Advance(ms uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += ms
	return m.now
}

// Elapsed returns now - since using wrap-safe arithmetic.
func Elapsed(now, since uint32) uint32 { return now - since }

// Before reports whether a is strictly earlier than b, treating the two
// values as lying within half the counter range of each other.
func Before(a, b uint32) bool { return int32(a-b) < 0 }
