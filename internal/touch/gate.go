package touch

import (
	"sync"
	"sync/atomic"

	"github.com/rook-computer/panelcore/internal/clock"
)

// Gate decides whether touch input reaches the UI. The screen saver arms
// it while it dims or wakes the panel so the waking gesture does not click
// through.
type Gate struct {
	clock clock.Clock

	mu    sync.Mutex
	until uint32
	armed bool

	forceReleased atomic.Bool
}

func NewGate(clk clock.Clock) *Gate {
	if clk == nil {
		clk = clock.NewMonotonic()
	}
	return &Gate{clock: clk}
}

// Suppress blocks input for windowMillis from now. An active window is only
// ever extended, never shortened.
func (g *Gate) Suppress(windowMillis uint32) {
	until := g.clock.NowMillis() + windowMillis
	g.mu.Lock()
	if !g.armed || clock.Before(g.until, until) {
		g.until = until
		g.armed = true
	}
	g.mu.Unlock()
}

func (g *Gate) SetForceReleased(force bool) { g.forceReleased.Store(force) }

func (g *Gate) ForceReleased() bool { return g.forceReleased.Load() }

// Blocked reports whether input must currently be reported as released.
func (g *Gate) Blocked() bool {
	if g.forceReleased.Load() {
		return true
	}
	now := g.clock.NowMillis()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.armed && clock.Before(now, g.until)
}
