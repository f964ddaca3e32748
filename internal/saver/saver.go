// Package saver is the screen saver: a power state machine that fades the
// backlight out after inactivity and back in on wake.
//
// Any goroutine may post requests (NotifyActivity, SleepNow, Wake,
// Retarget). They only set flags; Tick, run once per render loop iteration,
// drains them and is the only code that changes state or touches the
// backlight.
package saver

import (
	"fmt"
	"math"
	"sync"

	"github.com/rook-computer/panelcore/internal/clock"
	"github.com/rook-computer/panelcore/internal/logging"
)

// WakeInputMargin is added to the fade-in time when swallowing the touch
// that woke the panel.
const WakeInputMargin = 250

type State uint8

const (
	Awake State = iota
	FadingOut
	Asleep
	FadingIn
)

func (s State) String() string {
	switch s {
	case Awake:
		return "awake"
	case FadingOut:
		return "fading_out"
	case Asleep:
		return "asleep"
	case FadingIn:
		return "fading_in"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Config is the read-only view the saver needs.
type Config struct {
	Enabled        bool
	TimeoutSeconds uint32
	FadeOutMillis  uint16
	FadeInMillis   uint16
	WakeOnTouch    bool
	// Brightness is the steady-state level, 0..100.
	Brightness uint8
}

type ConfigSource interface {
	SaverConfig() Config
}

// ConfigFunc adapts a function to ConfigSource.
type ConfigFunc func() Config

func (f ConfigFunc) SaverConfig() Config { return f() }

// Backlight is the part of the display driver the saver drives.
type Backlight interface {
	SetBacklight(on bool)
	SetBrightness(percent uint8)
	Brightness() uint8
	HasBacklightControl() bool
}

// InputGate blocks touch input during transitions.
type InputGate interface {
	Suppress(windowMillis uint32)
	SetForceReleased(force bool)
}

// TouchSensor reports the raw touch state, bypassing the gate.
type TouchSensor interface {
	IsTouched() bool
}

// Status is a snapshot for status queries.
type Status struct {
	Enabled           bool   `json:"enabled"`
	State             State  `json:"state"`
	CurrentBrightness uint8  `json:"current_brightness"`
	TargetBrightness  uint8  `json:"target_brightness"`
	SecondsUntilSleep uint32 `json:"seconds_until_sleep"`
}

type Options struct {
	Config    ConfigSource
	Backlight Backlight
	// Gate and Touch are optional; devices without touch leave them nil.
	Gate   InputGate
	Touch  TouchSensor
	Clock  clock.Clock
	Logger logging.Logger
}

type requests struct {
	wake         bool
	sleep        bool
	activity     bool
	activityWake bool
	retarget     bool
}

type Manager struct {
	cfg    ConfigSource
	bl     Backlight
	gate   InputGate
	touch  TouchSensor
	clock  clock.Clock
	logger logging.Logger

	reqMu   sync.Mutex
	pending requests

	// Owned by Tick.
	state        State
	current      uint8
	target       uint8
	lastActivity uint32
	fadeStart    uint32
	fadeDuration uint32
	fadeFrom     uint8
	fadeTo       uint8
	prevEnabled  bool
	prevTouch    bool
	prevForce    bool

	snapMu sync.RWMutex
	snap   snapshot
}

// snapshot is what other goroutines see of the Tick-owned fields.
type snapshot struct {
	state        State
	current      uint8
	target       uint8
	lastActivity uint32
}

func New(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.NewMonotonic()
	}
	return &Manager{
		cfg:    opts.Config,
		bl:     opts.Backlight,
		gate:   opts.Gate,
		touch:  opts.Touch,
		clock:  opts.Clock,
		logger: logging.OrNoop(opts.Logger),
		state:  Awake,
	}
}

func (m *Manager) config() Config {
	if m.cfg == nil {
		return Config{Brightness: 100}
	}
	c := m.cfg.SaverConfig()
	if c.Brightness > 100 {
		c.Brightness = 100
	}
	return c
}

// Begin resets the machine to Awake at the configured brightness, synced
// from the backlight when it can report its level. Call it before the
// render loop starts, with the display lock held.
func (m *Manager) Begin() {
	cfg := m.config()
	m.state = Awake
	m.lastActivity = m.clock.NowMillis()
	m.prevEnabled = cfg.Enabled
	m.prevTouch = false
	m.prevForce = false

	m.reqMu.Lock()
	m.pending = requests{}
	m.reqMu.Unlock()

	m.target = cfg.Brightness
	m.current = m.target
	if m.bl != nil && m.bl.HasBacklightControl() {
		m.current = min(m.bl.Brightness(), 100)
	}
	m.publish()
	m.logger.Infof("saver", "init: enabled=%v timeout=%ds fade_out=%dms fade_in=%dms wake_touch=%v",
		cfg.Enabled, cfg.TimeoutSeconds, cfg.FadeOutMillis, cfg.FadeInMillis, cfg.WakeOnTouch)
}

// NotifyActivity resets the idle timer. With wake set it also wakes the
// panel if it is asleep or dimming.
func (m *Manager) NotifyActivity(wake bool) {
	m.reqMu.Lock()
	m.pending.activity = true
	m.pending.activityWake = m.pending.activityWake || wake
	m.reqMu.Unlock()
}

// SleepNow fades the panel out. It works even with the feature disabled.
func (m *Manager) SleepNow() {
	m.reqMu.Lock()
	m.pending.sleep = true
	m.reqMu.Unlock()
}

func (m *Manager) Wake() {
	m.reqMu.Lock()
	m.pending.wake = true
	m.reqMu.Unlock()
}

// Retarget picks up a changed configured brightness. An awake panel jumps
// to it; otherwise the panel wakes and fades in to it.
func (m *Manager) Retarget() {
	m.reqMu.Lock()
	m.pending.retarget = true
	m.reqMu.Unlock()
}

// IsAsleep is true while asleep or fading out.
func (m *Manager) IsAsleep() bool {
	st := m.load().state
	return st == Asleep || st == FadingOut
}

func (m *Manager) State() State { return m.load().state }

func (m *Manager) Status() Status {
	cfg := m.config()
	snap := m.load()
	st := Status{
		Enabled:           cfg.Enabled,
		State:             snap.state,
		CurrentBrightness: snap.current,
		TargetBrightness:  snap.target,
	}
	if !cfg.Enabled || snap.state != Awake {
		return st
	}
	timeout := timeoutMillis(cfg)
	elapsed := uint64(clock.Elapsed(m.clock.NowMillis(), snap.lastActivity))
	if timeout > 0 && elapsed < timeout {
		st.SecondsUntilSleep = uint32((timeout - elapsed + 999) / 1000)
	}
	return st
}

func (m *Manager) load() snapshot {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snap
}

func (m *Manager) publish() {
	m.snapMu.Lock()
	m.snap = snapshot{state: m.state, current: m.current, target: m.target, lastActivity: m.lastActivity}
	m.snapMu.Unlock()
}

// Tick advances the machine by one step.
func (m *Manager) Tick() {
	cfg := m.config()

	if cfg.WakeOnTouch {
		m.pollTouch()
	}

	if m.prevEnabled && !cfg.Enabled {
		m.Wake()
	}
	m.prevEnabled = cfg.Enabled

	m.handleRequests(cfg)
	m.updateFade()
	m.maybeAutoSleep(cfg)

	force := m.state != Awake
	if force != m.prevForce {
		if m.gate != nil {
			m.gate.SetForceReleased(force)
		}
		m.logger.Infof("saver", "touch suppress %s", onOff(force))
		m.prevForce = force
	}
	m.publish()
}

// pollTouch turns a raw press edge into a waking activity while the panel
// is not taking input.
func (m *Manager) pollTouch() {
	if m.touch == nil || m.state == Awake || m.state == FadingIn {
		return
	}
	touched := m.touch.IsTouched()
	edge := touched && !m.prevTouch
	m.prevTouch = touched
	if edge {
		m.NotifyActivity(true)
	}
}

func (m *Manager) handleRequests(cfg Config) {
	m.reqMu.Lock()
	req := m.pending
	m.pending = requests{}
	m.reqMu.Unlock()

	now := m.clock.NowMillis()
	wake := req.wake

	if req.activity {
		m.lastActivity = now
		if req.activityWake && (m.state == Asleep || m.state == FadingOut) {
			wake = true
		}
	}

	if req.retarget {
		if m.state == Awake {
			m.target = cfg.Brightness
			m.current = cfg.Brightness
			m.apply(cfg.Brightness)
			m.lastActivity = now
		} else {
			wake = true
		}
	}

	if req.sleep && !wake {
		m.startFade(FadingOut, m.current, 0, uint32(cfg.FadeOutMillis))
		m.logger.Infof("saver", "sleep requested")
	}

	if !wake {
		return
	}
	m.lastActivity = now
	target := cfg.Brightness
	if m.state == Awake && m.current == target {
		return
	}
	if m.gate != nil && (m.state == Asleep || m.state == FadingOut) {
		m.gate.Suppress(uint32(cfg.FadeInMillis) + WakeInputMargin)
	}
	m.startFade(FadingIn, m.current, target, uint32(cfg.FadeInMillis))
	m.logger.Infof("saver", "wake requested")
}

func (m *Manager) startFade(next State, from, to uint8, duration uint32) {
	m.state = next
	m.fadeStart = m.clock.NowMillis()
	m.fadeDuration = duration
	m.fadeFrom = from
	m.fadeTo = to
	m.target = to

	if duration == 0 {
		m.current = to
		m.apply(to)
		m.state = terminal(to)
		return
	}
	m.current = from
	m.apply(from)
}

func terminal(level uint8) State {
	if level == 0 {
		return Asleep
	}
	return Awake
}

func (m *Manager) updateFade() {
	if m.state != FadingOut && m.state != FadingIn {
		return
	}
	if m.fadeDuration == 0 {
		return
	}
	elapsed := clock.Elapsed(m.clock.NowMillis(), m.fadeStart)
	if elapsed >= m.fadeDuration {
		m.current = m.fadeTo
		m.apply(m.fadeTo)
		m.state = terminal(m.fadeTo)
		return
	}
	m.setLevel(interpolate(m.fadeFrom, m.fadeTo, elapsed, m.fadeDuration))
}

// interpolate is from + (to-from)*elapsed/duration, truncated toward zero
// and clamped to [0,100].
func interpolate(from, to uint8, elapsed, duration uint32) uint8 {
	t := float64(elapsed) / float64(duration)
	delta := float64(int(to) - int(from))
	v := int(from) + int(math.Trunc(delta*t))
	return uint8(max(0, min(100, v)))
}

func (m *Manager) setLevel(level uint8) {
	if level == m.current {
		return
	}
	m.current = level
	m.apply(level)
}

// timeoutMillis widens before multiplying; large second counts overflow
// uint32 milliseconds.
func timeoutMillis(cfg Config) uint64 {
	return uint64(cfg.TimeoutSeconds) * 1000
}

func (m *Manager) maybeAutoSleep(cfg Config) {
	if !cfg.Enabled || m.state != Awake {
		return
	}
	timeout := timeoutMillis(cfg)
	if timeout == 0 {
		return
	}
	if uint64(clock.Elapsed(m.clock.NowMillis(), m.lastActivity)) >= timeout {
		m.startFade(FadingOut, m.current, 0, uint32(cfg.FadeOutMillis))
		m.logger.Infof("saver", "auto-sleep after %ds idle", cfg.TimeoutSeconds)
	}
}

func (m *Manager) apply(level uint8) {
	if m.bl == nil {
		return
	}
	if m.bl.HasBacklightControl() {
		m.bl.SetBrightness(level)
		return
	}
	m.bl.SetBacklight(level > 0)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
