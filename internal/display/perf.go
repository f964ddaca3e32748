package display

import "time"

// PerfStats is a best-effort view of render loop cost.
type PerfStats struct {
	FPS           float64 `json:"fps"`
	EngineMicros  int64   `json:"engine_us"`
	PresentMicros int64   `json:"present_us"`
	Frames        uint64  `json:"frames"`
	Switches      uint64  `json:"switches"`
}

type perfCounter struct {
	stats       PerfStats
	windowStart time.Time
	windowCount int
}

func (c *Coordinator) recordEngine(d time.Duration) {
	c.perfMu.Lock()
	c.perf.stats.EngineMicros = d.Microseconds()
	c.perfMu.Unlock()
}

func (c *Coordinator) recordPresent(d time.Duration) {
	c.perfMu.Lock()
	c.perf.stats.PresentMicros = d.Microseconds()
	c.perfMu.Unlock()
}

func (c *Coordinator) recordSwitch() {
	c.perfMu.Lock()
	c.perf.stats.Switches++
	c.perfMu.Unlock()
}

// recordFrame counts an iteration that produced pixels. FPS is recomputed
// once per second.
func (c *Coordinator) recordFrame() {
	c.perfMu.Lock()
	defer c.perfMu.Unlock()
	now := time.Now()
	c.perf.stats.Frames++
	if c.perf.windowStart.IsZero() {
		c.perf.windowStart = now
	}
	c.perf.windowCount++
	if elapsed := now.Sub(c.perf.windowStart); elapsed >= time.Second {
		c.perf.stats.FPS = float64(c.perf.windowCount) / elapsed.Seconds()
		c.perf.windowStart = now
		c.perf.windowCount = 0
	}
}

// Perf returns a copy of the current counters.
func (c *Coordinator) Perf() PerfStats {
	c.perfMu.Lock()
	defer c.perfMu.Unlock()
	return c.perf.stats
}
