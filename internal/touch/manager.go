package touch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rook-computer/panelcore/internal/logging"
	"github.com/rook-computer/panelcore/internal/render"
)

// RegisterTimeout bounds how long registration waits for the display lock.
const RegisterTimeout = 50 * time.Millisecond

// ActivitySink is told about press edges. The screen saver implements it.
type ActivitySink interface {
	NotifyActivity(wake bool)
}

// Host is the display side the manager registers its input with.
type Host interface {
	TryLock(timeout time.Duration) bool
	Unlock()
	Engine() *render.Engine
}

// Manager owns the touch device and feeds it into the render engine.
type Manager struct {
	dev    Device
	gate   *Gate
	sink   ActivitySink
	logger logging.Logger

	mu          sync.Mutex
	host        Host
	pending     bool
	prevPressed bool

	ready      atomic.Bool
	registered atomic.Bool
}

func NewManager(dev Device, gate *Gate, sink ActivitySink, logger logging.Logger) *Manager {
	return &Manager{dev: dev, gate: gate, sink: sink, logger: logging.OrNoop(logger)}
}

// SetSink sets the activity sink. Call before Init.
func (m *Manager) SetSink(sink ActivitySink) { m.sink = sink }

func (m *Manager) Gate() *Gate { return m.gate }

// Init starts the device and tries once to register with host. A failed
// device leaves the manager inert; a busy display is retried from Loop.
func (m *Manager) Init(host Host) {
	if m.dev == nil {
		m.logger.Infof("touch", "no touch device configured")
		return
	}
	if err := m.dev.Init(); err != nil {
		m.logger.Errorf("touch", "touch init failed: %v", err)
		return
	}
	m.ready.Store(true)
	m.mu.Lock()
	m.host = host
	m.pending = host != nil
	m.mu.Unlock()
	m.tryRegister()
}

// Loop retries a pending registration. Call it periodically outside the
// render loop.
func (m *Manager) Loop() {
	m.tryRegister()
}

func (m *Manager) Registered() bool { return m.registered.Load() }

// Sizer is implemented by devices that map raw coordinates onto the
// engine's active area. It is told the size when input is registered.
type Sizer interface {
	SetSize(width, height int)
}

// Pending reports whether registration still has to be retried.
func (m *Manager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

func (m *Manager) tryRegister() bool {
	m.mu.Lock()
	host, pending := m.host, m.pending
	m.mu.Unlock()
	if !pending {
		return m.registered.Load()
	}
	if !host.TryLock(RegisterTimeout) {
		return false
	}
	engine := host.Engine()
	if engine != nil {
		if sz, ok := m.dev.(Sizer); ok {
			sz.SetSize(engine.Width(), engine.Height())
		}
		engine.RegisterInput(m.read)
	}
	host.Unlock()

	m.mu.Lock()
	m.pending = false
	m.mu.Unlock()
	if engine == nil {
		m.logger.Errorf("touch", "no render engine, touch input disabled")
		return false
	}
	m.registered.Store(true)
	m.logger.Infof("touch", "touch input registered")
	return true
}

// read runs inside the render loop each time the engine polls input.
func (m *Manager) read() render.InputState {
	if m.gate != nil && m.gate.Blocked() {
		m.prevPressed = false
		return render.InputState{}
	}
	x, y, pressed := m.dev.Read()
	if !pressed {
		m.prevPressed = false
		return render.InputState{}
	}
	if !m.prevPressed && m.sink != nil {
		m.sink.NotifyActivity(false)
	}
	m.prevPressed = true
	return render.InputState{Pressed: true, X: x, Y: y}
}

// IsTouched reports the raw controller state, ignoring the gate.
func (m *Manager) IsTouched() bool {
	if !m.ready.Load() {
		return false
	}
	_, _, pressed := m.dev.Read()
	return pressed
}

func (m *Manager) Close() error {
	if !m.ready.Load() {
		return nil
	}
	return m.dev.Close()
}
