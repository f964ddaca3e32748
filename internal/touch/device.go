package touch

import (
	"sync"
)

// Device is a touch controller backend.
type Device interface {
	Init() error
	// Read returns the current point in panel coordinates and whether the
	// panel is pressed.
	Read() (x, y int, pressed bool)
	Close() error
}

// Memory is a Device driven from code. The simulator and tests use it.
type Memory struct {
	mu      sync.Mutex
	x, y    int
	pressed bool
	InitErr error
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Init() error  { return m.InitErr }
func (m *Memory) Close() error { return nil }

func (m *Memory) Press(x, y int) {
	m.mu.Lock()
	m.x, m.y, m.pressed = x, y, true
	m.mu.Unlock()
}

func (m *Memory) Release() {
	m.mu.Lock()
	m.pressed = false
	m.mu.Unlock()
}

func (m *Memory) Read() (int, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.x, m.y, m.pressed
}

// Calibration maps raw controller coordinates onto the panel.
type Calibration struct {
	XMin, XMax int
	YMin, YMax int
	SwapXY     bool
	InvertX    bool
	InvertY    bool
}

// Map converts a raw reading into a point inside a width x height panel.
// A zero range passes the axis through unscaled.
func (c Calibration) Map(rawX, rawY, width, height int) (int, int) {
	if c.SwapXY {
		rawX, rawY = rawY, rawX
	}
	x := scaleAxis(rawX, c.XMin, c.XMax, width)
	y := scaleAxis(rawY, c.YMin, c.YMax, height)
	if c.InvertX {
		x = width - 1 - x
	}
	if c.InvertY {
		y = height - 1 - y
	}
	return x, y
}

func scaleAxis(v, lo, hi, size int) int {
	if size <= 0 {
		return 0
	}
	out := v
	if hi > lo {
		out = (v - lo) * (size - 1) / (hi - lo)
	}
	return min(max(out, 0), size-1)
}
