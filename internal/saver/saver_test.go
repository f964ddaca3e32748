package saver

import (
	"sync"
	"testing"

	"github.com/rook-computer/panelcore/internal/clock"
)

type fakeBacklight struct {
	level      uint8
	on         bool
	noControl  bool
	writes     []uint8
	onOffCalls []bool
}

func (b *fakeBacklight) SetBacklight(on bool) {
	b.on = on
	b.onOffCalls = append(b.onOffCalls, on)
}

func (b *fakeBacklight) SetBrightness(p uint8) {
	b.level = p
	b.writes = append(b.writes, p)
}

func (b *fakeBacklight) Brightness() uint8         { return b.level }
func (b *fakeBacklight) HasBacklightControl() bool { return !b.noControl }

type fakeGate struct {
	clk         clock.Clock
	until       uint32
	armed       bool
	forced      bool
	forceEvents []bool
}

func (g *fakeGate) Suppress(window uint32) {
	until := g.clk.NowMillis() + window
	if !g.armed || clock.Before(g.until, until) {
		g.until = until
		g.armed = true
	}
}

func (g *fakeGate) SetForceReleased(f bool) {
	g.forced = f
	g.forceEvents = append(g.forceEvents, f)
}

func (g *fakeGate) blocked(now uint32) bool {
	return g.forced || (g.armed && clock.Before(now, g.until))
}

type fakeTouch struct{ touched bool }

func (t *fakeTouch) IsTouched() bool { return t.touched }

type mutableConfig struct {
	mu  sync.Mutex
	cfg Config
}

func (c *mutableConfig) SaverConfig() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *mutableConfig) set(f func(*Config)) {
	c.mu.Lock()
	f(&c.cfg)
	c.mu.Unlock()
}

type rig struct {
	m     *Manager
	clk   *clock.Manual
	bl    *fakeBacklight
	gate  *fakeGate
	touch *fakeTouch
	cfg   *mutableConfig
}

func newRig(start uint32, cfg Config) *rig {
	clk := clock.NewManual(start)
	r := &rig{
		clk:   clk,
		bl:    &fakeBacklight{level: cfg.Brightness, on: true},
		gate:  &fakeGate{clk: clk},
		touch: &fakeTouch{},
		cfg:   &mutableConfig{cfg: cfg},
	}
	r.m = New(Options{Config: r.cfg, Backlight: r.bl, Gate: r.gate, Touch: r.touch, Clock: clk})
	r.m.Begin()
	return r
}

// runTo ticks every step ms until the clock reaches t.
func (r *rig) runTo(t, step uint32) {
	for clock.Before(r.clk.NowMillis(), t) {
		next := r.clk.NowMillis() + step
		if clock.Before(t, next) {
			next = t
		}
		r.clk.Set(next)
		r.m.Tick()
	}
}

func (r *rig) at(t uint32) {
	r.clk.Set(t)
	r.m.Tick()
}

func TestScreenSaverScenario(t *testing.T) {
	r := newRig(0, Config{Enabled: true, TimeoutSeconds: 10, FadeOutMillis: 500, FadeInMillis: 300, WakeOnTouch: true, Brightness: 80})

	r.m.Tick()
	if st := r.m.Status(); st.State != Awake || st.CurrentBrightness != 80 {
		t.Fatalf("t=0: %+v", st)
	}

	r.at(9999)
	if r.m.State() != Awake {
		t.Fatalf("t=9999: state=%s", r.m.State())
	}
	r.at(10000)
	if st := r.m.Status(); st.State != FadingOut || st.CurrentBrightness != 80 {
		t.Fatalf("t=10000: %+v", st)
	}
	r.at(10250)
	if st := r.m.Status(); st.CurrentBrightness != 40 {
		t.Fatalf("t=10250: brightness=%d, want 40", st.CurrentBrightness)
	}
	r.at(10500)
	if st := r.m.Status(); st.State != Asleep || st.CurrentBrightness != 0 {
		t.Fatalf("t=10500: %+v", st)
	}
	if !r.m.IsAsleep() || r.bl.level != 0 {
		t.Fatalf("asleep=%v level=%d", r.m.IsAsleep(), r.bl.level)
	}

	r.touch.touched = true
	r.at(10600)
	if st := r.m.Status(); st.State != FadingIn || st.TargetBrightness != 80 {
		t.Fatalf("t=10600: %+v", st)
	}
	if r.gate.until != 10600+300+WakeInputMargin {
		t.Fatalf("suppressed until %d, want %d", r.gate.until, 10600+300+WakeInputMargin)
	}
	r.touch.touched = false

	r.runTo(10900, 10)
	if st := r.m.Status(); st.State != Awake || st.CurrentBrightness != 80 {
		t.Fatalf("t=10900: %+v", st)
	}
	for _, now := range []uint32{10600, 10800, 10900, 11149} {
		if !r.gate.blocked(now) {
			t.Fatalf("input not blocked at %d", now)
		}
	}
	if r.gate.blocked(11150) {
		t.Fatalf("input still blocked at 11150")
	}
}

func TestSleepNowFadesMonotonically(t *testing.T) {
	r := newRig(0, Config{Enabled: true, TimeoutSeconds: 300, FadeOutMillis: 800, FadeInMillis: 400, Brightness: 100})
	r.m.SleepNow()
	r.m.Tick()
	if r.m.State() != FadingOut {
		t.Fatalf("state=%s, want fading_out", r.m.State())
	}

	prev := r.m.Status().CurrentBrightness
	for r.clk.NowMillis() < 900 {
		r.clk.Advance(7)
		r.m.Tick()
		cur := r.m.Status().CurrentBrightness
		if cur > prev {
			t.Fatalf("brightness rose %d -> %d at t=%d", prev, cur, r.clk.NowMillis())
		}
		prev = cur
	}
	if st := r.m.Status(); st.State != Asleep || st.CurrentBrightness != 0 {
		t.Fatalf("end: %+v", st)
	}
	for i := 1; i < len(r.bl.writes); i++ {
		if r.bl.writes[i] == r.bl.writes[i-1] {
			t.Fatalf("redundant backlight write of %d", r.bl.writes[i])
		}
	}
}

func TestWakeRoundTrip(t *testing.T) {
	r := newRig(0, Config{Enabled: true, TimeoutSeconds: 60, FadeOutMillis: 0, FadeInMillis: 400, Brightness: 70})
	r.m.SleepNow()
	r.m.Tick()
	if st := r.m.Status(); st.State != Asleep || st.CurrentBrightness != 0 {
		t.Fatalf("zero-length fade: %+v", st)
	}

	r.clk.Set(1000)
	r.m.Wake()
	r.m.Tick()
	if r.m.State() != FadingIn {
		t.Fatalf("state=%s, want fading_in", r.m.State())
	}

	sawFadingIn := false
	for r.clk.NowMillis() < 1500 {
		r.clk.Advance(10)
		if r.clk.NowMillis() <= 1400 && !r.gate.blocked(r.clk.NowMillis()) {
			t.Fatalf("input released during fade-in at %d", r.clk.NowMillis())
		}
		r.m.Tick()
		if r.m.State() == FadingIn {
			sawFadingIn = true
		}
	}
	if !sawFadingIn {
		t.Fatalf("never observed fading_in while ticking")
	}
	if st := r.m.Status(); st.State != Awake || st.CurrentBrightness != 70 {
		t.Fatalf("end: %+v", st)
	}
	if r.gate.forced {
		t.Fatalf("force-release still on while awake")
	}
}

func TestAutoSleepAfterTimeout(t *testing.T) {
	r := newRig(0, Config{Enabled: true, TimeoutSeconds: 5, FadeOutMillis: 200, Brightness: 100})
	r.runTo(4990, 10)
	if r.m.State() != Awake {
		t.Fatalf("slept early at %d", r.clk.NowMillis())
	}
	r.at(5000)
	if r.m.State() != FadingOut {
		t.Fatalf("state=%s at 5000, want fading_out", r.m.State())
	}
}

func TestLongTimeoutDoesNotWrap(t *testing.T) {
	tests := []struct {
		name    string
		seconds uint32
		want    uint32
	}{
		{"first wrapping value", 4294968, 4294967},
		{"max", ^uint32(0), ^uint32(0) - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(0, Config{Enabled: true, TimeoutSeconds: tt.seconds, Brightness: 80})
			r.at(1000)
			if r.m.State() != Awake {
				t.Fatalf("state=%s after 1s idle, want awake", r.m.State())
			}
			if got := r.m.Status().SecondsUntilSleep; got != tt.want {
				t.Fatalf("SecondsUntilSleep=%d, want %d", got, tt.want)
			}
		})
	}
}

func TestActivityDefersAutoSleep(t *testing.T) {
	r := newRig(0, Config{Enabled: true, TimeoutSeconds: 5, FadeOutMillis: 200, Brightness: 100})
	r.at(4000)
	r.m.NotifyActivity(false)
	r.m.Tick()
	r.at(8999)
	if r.m.State() != Awake {
		t.Fatalf("activity did not reset idle timer")
	}
	if got := r.m.Status().SecondsUntilSleep; got != 1 {
		t.Fatalf("seconds until sleep=%d, want 1", got)
	}
	r.at(9000)
	if r.m.State() != FadingOut {
		t.Fatalf("state=%s, want fading_out", r.m.State())
	}
}

func TestAutoSleepAcrossClockWrap(t *testing.T) {
	start := ^uint32(0) - 2000
	r := newRig(start, Config{Enabled: true, TimeoutSeconds: 5, FadeOutMillis: 100, Brightness: 50})
	r.clk.Advance(4999)
	r.m.Tick()
	if r.m.State() != Awake {
		t.Fatalf("slept early across wrap")
	}
	r.clk.Advance(1)
	r.m.Tick()
	if r.m.State() != FadingOut {
		t.Fatalf("no auto-sleep across wrap: %s", r.m.State())
	}
	r.clk.Advance(100)
	r.m.Tick()
	if r.m.State() != Asleep {
		t.Fatalf("fade did not finish across wrap: %s", r.m.State())
	}
}

func TestRequestPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		asleep    bool
		post      func(m *Manager)
		wantState State
	}{
		{"wake beats sleep while asleep", true, func(m *Manager) { m.SleepNow(); m.Wake() }, Awake},
		{"wake beats sleep while awake", false, func(m *Manager) { m.Wake(); m.SleepNow() }, Awake},
		{"activity without wake stays asleep", true, func(m *Manager) { m.NotifyActivity(false) }, Asleep},
		{"activity with wake wakes", true, func(m *Manager) { m.NotifyActivity(true) }, Awake},
		{"wake flag survives later plain activity", true, func(m *Manager) { m.NotifyActivity(true); m.NotifyActivity(false) }, Awake},
		{"activity with wake while awake is a no-op", false, func(m *Manager) { m.NotifyActivity(true) }, Awake},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(0, Config{Enabled: true, TimeoutSeconds: 60, Brightness: 90})
			if tt.asleep {
				r.m.SleepNow()
				r.m.Tick()
			}
			writes := len(r.bl.writes)
			tt.post(r.m)
			r.m.Tick()
			if r.m.State() != tt.wantState {
				t.Fatalf("state=%s, want %s", r.m.State(), tt.wantState)
			}
			if !tt.asleep && len(r.bl.writes) != writes {
				t.Fatalf("awake panel got backlight writes %v", r.bl.writes[writes:])
			}
		})
	}
}

func TestDisablingWakes(t *testing.T) {
	r := newRig(0, Config{Enabled: true, TimeoutSeconds: 60, FadeOutMillis: 100, FadeInMillis: 0, Brightness: 60})
	r.m.SleepNow()
	r.m.Tick()
	r.at(200)
	if r.m.State() != Asleep {
		t.Fatalf("state=%s", r.m.State())
	}
	r.cfg.set(func(c *Config) { c.Enabled = false })
	r.at(300)
	if st := r.m.Status(); st.State != Awake || st.CurrentBrightness != 60 || st.Enabled {
		t.Fatalf("after disable: %+v", st)
	}
}

func TestSleepWorksWhenDisabled(t *testing.T) {
	r := newRig(0, Config{Enabled: false, TimeoutSeconds: 1, FadeOutMillis: 0, Brightness: 100})
	r.at(5000)
	if r.m.State() != Awake {
		t.Fatalf("disabled saver auto-slept")
	}
	if got := r.m.Status().SecondsUntilSleep; got != 0 {
		t.Fatalf("seconds until sleep=%d while disabled", got)
	}
	r.m.SleepNow()
	r.m.Tick()
	if r.m.State() != Asleep {
		t.Fatalf("manual sleep ignored while disabled")
	}
}

func TestWakeOnTouchOnlyWhenEnabled(t *testing.T) {
	r := newRig(0, Config{Enabled: true, TimeoutSeconds: 60, WakeOnTouch: false, Brightness: 100})
	r.m.SleepNow()
	r.m.Tick()
	r.touch.touched = true
	r.at(100)
	if r.m.State() != Asleep {
		t.Fatalf("touch woke panel with wake-on-touch off")
	}

	r.cfg.set(func(c *Config) { c.WakeOnTouch = true })
	r.touch.touched = false
	r.at(200)
	r.touch.touched = true
	r.at(300)
	if r.m.State() != Awake {
		t.Fatalf("touch edge did not wake: %s", r.m.State())
	}
}

func TestRetarget(t *testing.T) {
	r := newRig(0, Config{Enabled: true, TimeoutSeconds: 60, FadeInMillis: 0, Brightness: 100})
	r.cfg.set(func(c *Config) { c.Brightness = 30 })
	r.m.Retarget()
	r.m.Tick()
	if st := r.m.Status(); st.State != Awake || st.CurrentBrightness != 30 || r.bl.level != 30 {
		t.Fatalf("awake retarget: %+v level=%d", st, r.bl.level)
	}

	r.m.SleepNow()
	r.m.Tick()
	r.cfg.set(func(c *Config) { c.Brightness = 55 })
	r.m.Retarget()
	r.m.Tick()
	if st := r.m.Status(); st.State != Awake || st.CurrentBrightness != 55 {
		t.Fatalf("asleep retarget: %+v", st)
	}
}

func TestOnOffBacklightFallback(t *testing.T) {
	clk := clock.NewManual(0)
	bl := &fakeBacklight{noControl: true}
	m := New(Options{
		Config:    ConfigFunc(func() Config { return Config{Enabled: true, TimeoutSeconds: 60, Brightness: 80} }),
		Backlight: bl,
		Clock:     clk,
	})
	m.Begin()
	if got := m.Status().CurrentBrightness; got != 80 {
		t.Fatalf("initial brightness=%d, want config value 80", got)
	}
	m.SleepNow()
	m.Tick()
	m.Wake()
	m.Tick()
	if len(bl.writes) != 0 {
		t.Fatalf("SetBrightness used without backlight control")
	}
	if len(bl.onOffCalls) != 2 || bl.onOffCalls[0] || !bl.onOffCalls[1] {
		t.Fatalf("on/off calls=%v, want [false true]", bl.onOffCalls)
	}
}

func TestBeginSyncsDriverBrightness(t *testing.T) {
	clk := clock.NewManual(0)
	bl := &fakeBacklight{level: 42}
	m := New(Options{Config: ConfigFunc(func() Config { return Config{Brightness: 100} }), Backlight: bl, Clock: clk})
	m.Begin()
	st := m.Status()
	if st.CurrentBrightness != 42 || st.TargetBrightness != 100 {
		t.Fatalf("status=%+v", st)
	}
	// Awake but below target: wake fades up instead of being a no-op.
	m.Wake()
	m.Tick()
	if m.Status().CurrentBrightness != 100 {
		t.Fatalf("wake did not restore target: %+v", m.Status())
	}
}

func TestInterpolate(t *testing.T) {
	tests := []struct {
		from, to          uint8
		elapsed, duration uint32
		want              uint8
	}{
		{80, 0, 250, 500, 40},
		{0, 80, 150, 300, 40},
		{100, 0, 1, 800, 100},
		{100, 0, 798, 800, 1},
		{0, 100, 7, 800, 0},
		{50, 50, 10, 20, 50},
	}
	for _, tt := range tests {
		if got := interpolate(tt.from, tt.to, tt.elapsed, tt.duration); got != tt.want {
			t.Fatalf("interpolate(%d,%d,%d/%d)=%d, want %d", tt.from, tt.to, tt.elapsed, tt.duration, got, tt.want)
		}
	}
}

func TestStateJSONText(t *testing.T) {
	b, _ := FadingOut.MarshalText()
	if string(b) != "fading_out" {
		t.Fatalf("MarshalText=%q", b)
	}
}
