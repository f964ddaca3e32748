package render

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rook-computer/panelcore/internal/clock"
	"github.com/rook-computer/panelcore/internal/driver"
	"github.com/rook-computer/panelcore/internal/logging"
)

// ErrBufferAlloc is returned by NewEngine when the draw buffer could not be
// allocated. The engine is still returned, but it never renders.
var ErrBufferAlloc = errors.New("render: draw buffer allocation failed")

const (
	defaultBufferLines = 40
	defaultInputPeriod = 30 * time.Millisecond
	// idleDelay is reported when no timer is armed.
	idleDelay uint32 = 500
)

// FlushFunc receives one rendered band in panel coordinates. It must call
// Engine.FlushReady before returning, even when it drops the pixels.
type FlushFunc func(area image.Rectangle, px []uint16)

// InputState is what an input device reports when polled.
type InputState struct {
	Pressed bool
	X, Y    int
}

// ReadFunc polls an input device.
type ReadFunc func() InputState

// AllocFunc allocates the draw buffer. Returning nil signals failure.
type AllocFunc func(pixels int) []uint16

type Options struct {
	Geometry driver.Geometry
	// BufferLines is the height of one draw band.
	BufferLines int
	Alloc       AllocFunc
	Clock       clock.Clock
	Theme       Theme
	// InputPeriod is how often input devices are polled.
	InputPeriod time.Duration
	Fonts       *Fonts
	Logger      logging.Logger
}

// Timer is a periodic callback run from TimerHandler.
type Timer struct {
	period uint32
	next   uint32
	fn     func()
	paused bool
	dead   bool
}

func (t *Timer) Pause()  { t.paused = true }
func (t *Timer) Delete() { t.dead = true }

// Resume re-arms the timer one period from now.
func (t *Timer) Resume(now uint32) {
	t.paused = false
	t.next = now + t.period
}

// InputDevice is a registered pointer device.
type InputDevice struct {
	read    ReadFunc
	last    InputState
	pressed bool
}

// State returns the last polled state.
func (d *InputDevice) State() InputState { return d.last }

type Engine struct {
	geo    driver.Geometry
	canvas *image.RGBA
	buf    []uint16
	drawer *canvasDrawer

	clock  clock.Clock
	logger logging.Logger

	flush        FlushFunc
	flushWaiting bool

	timers      []*Timer
	inputs      []*InputDevice
	inputPeriod uint32
	nextInput   uint32

	scene Scene
	dirty image.Rectangle

	stats EngineStats
}

// EngineStats counts rendering work.
type EngineStats struct {
	Renders int
	Bands   int
	Dropped int
}

// NewEngine builds an engine for opts.Geometry. If the draw buffer cannot be
// allocated it returns the engine together with ErrBufferAlloc.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Geometry.Width <= 0 || opts.Geometry.Height <= 0 {
		return nil, fmt.Errorf("render: invalid geometry %dx%d", opts.Geometry.Width, opts.Geometry.Height)
	}
	if opts.BufferLines <= 0 {
		opts.BufferLines = defaultBufferLines
	}
	if opts.BufferLines > opts.Geometry.Height {
		opts.BufferLines = opts.Geometry.Height
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewMonotonic()
	}
	if opts.InputPeriod <= 0 {
		opts.InputPeriod = defaultInputPeriod
	}
	if opts.Theme == (Theme{}) {
		opts.Theme = DefaultTheme
	}
	logger := logging.OrNoop(opts.Logger)
	if opts.Fonts == nil {
		opts.Fonts = LoadFonts(logger)
	}

	e := &Engine{
		geo:         opts.Geometry,
		canvas:      image.NewRGBA(image.Rect(0, 0, opts.Geometry.Width, opts.Geometry.Height)),
		clock:       opts.Clock,
		logger:      logger,
		inputPeriod: uint32(opts.InputPeriod / time.Millisecond),
	}
	e.drawer = &canvasDrawer{img: e.canvas, fonts: opts.Fonts, theme: opts.Theme}
	e.nextInput = e.clock.NowMillis()

	pixels := opts.Geometry.Width * opts.BufferLines
	alloc := opts.Alloc
	if alloc == nil {
		alloc = func(n int) []uint16 { return make([]uint16, n) }
	}
	buf := alloc(pixels)
	if len(buf) < pixels {
		logger.Errorf("render", "draw buffer allocation failed (%d px); rendering disabled", pixels)
		return e, ErrBufferAlloc
	}
	e.buf = buf
	logger.Infof("render", "engine %dx%d rot=%d sw=%v, band=%d lines",
		opts.Geometry.Width, opts.Geometry.Height, opts.Geometry.Rotation, opts.Geometry.SoftwareRotate, opts.BufferLines)
	return e, nil
}

func (e *Engine) Width() int                { return e.geo.Width }
func (e *Engine) Height() int               { return e.geo.Height }
func (e *Engine) Geometry() driver.Geometry { return e.geo }
func (e *Engine) Stats() EngineStats        { return e.stats }

// HasBuffer reports whether the engine can render at all.
func (e *Engine) HasBuffer() bool { return e.buf != nil }

func (e *Engine) Now() uint32 { return e.clock.NowMillis() }

func (e *Engine) SetFlushFunc(f FlushFunc) { e.flush = f }

// FlushReady acknowledges the band handed to the flush callback.
func (e *Engine) FlushReady() { e.flushWaiting = false }

// Load makes s the active scene and schedules a full redraw.
func (e *Engine) Load(s Scene) {
	e.scene = s
	e.Invalidate()
}

func (e *Engine) Scene() Scene { return e.scene }

// Invalidate schedules a redraw of the whole canvas.
func (e *Engine) Invalidate() { e.dirty = e.canvas.Bounds() }

// InvalidateRect schedules a redraw of r.
func (e *Engine) InvalidateRect(r image.Rectangle) {
	r = r.Intersect(e.canvas.Bounds())
	if r.Empty() {
		return
	}
	e.dirty = e.dirty.Union(r)
}

// Dirty reports whether a redraw is pending.
func (e *Engine) Dirty() bool { return !e.dirty.Empty() }

// AddTimer registers fn to run every period, first firing one period from now.
func (e *Engine) AddTimer(period time.Duration, fn func()) *Timer {
	ms := uint32(period / time.Millisecond)
	if ms == 0 {
		ms = 1
	}
	t := &Timer{period: ms, next: e.clock.NowMillis() + ms, fn: fn}
	e.timers = append(e.timers, t)
	return t
}

// RegisterInput adds a pointer device polled from TimerHandler.
func (e *Engine) RegisterInput(read ReadFunc) *InputDevice {
	d := &InputDevice{read: read}
	e.inputs = append(e.inputs, d)
	return d
}

// TimerHandler runs due timers, polls inputs, renders pending damage and
// returns the suggested delay in milliseconds until it should run again.
func (e *Engine) TimerHandler() uint32 {
	now := e.clock.NowMillis()

	// Timers may add timers; index so appended ones are seen next round.
	for i := 0; i < len(e.timers); i++ {
		t := e.timers[i]
		if t.dead || t.paused || clock.Before(now, t.next) {
			continue
		}
		t.next = now + t.period
		t.fn()
	}
	live := e.timers[:0]
	for _, t := range e.timers {
		if !t.dead {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(e.timers); i++ {
		e.timers[i] = nil
	}
	e.timers = live

	if len(e.inputs) > 0 && !clock.Before(now, e.nextInput) {
		e.nextInput = now + e.inputPeriod
		e.pollInputs()
	}

	if e.Dirty() {
		e.refresh()
	}
	return e.nextDelay(e.clock.NowMillis())
}

func (e *Engine) nextDelay(now uint32) uint32 {
	delay := idleDelay
	consider := func(deadline uint32) {
		if clock.Before(deadline, now) {
			delay = 0
			return
		}
		if d := deadline - now; d < delay {
			delay = d
		}
	}
	for _, t := range e.timers {
		if !t.paused && !t.dead {
			consider(t.next)
		}
	}
	if len(e.inputs) > 0 {
		consider(e.nextInput)
	}
	return delay
}

func (e *Engine) pollInputs() {
	for _, d := range e.inputs {
		st := d.read()
		d.last = st
		if st.Pressed == d.pressed {
			continue
		}
		d.pressed = st.Pressed
		h, ok := e.scene.(TouchHandler)
		if !ok {
			continue
		}
		kind := TouchReleased
		if st.Pressed {
			kind = TouchPressed
		}
		h.HandleTouch(TouchEvent{Kind: kind, X: st.X, Y: st.Y})
	}
}

// refresh paints the scene and pushes the damaged area out in bands. A band
// that is not acknowledged stops the refresh; the damage stays pending.
func (e *Engine) refresh() {
	if e.buf == nil || e.flush == nil || e.flushWaiting {
		return
	}
	area := e.dirty
	if e.geo.FullRefresh {
		area = e.canvas.Bounds()
	}

	e.drawer.Fill(e.drawer.theme.Background)
	if e.scene != nil {
		e.scene.Draw(e.drawer)
	}
	e.stats.Renders++

	lines := len(e.buf) / area.Dx()
	for y := area.Min.Y; y < area.Max.Y; y += lines {
		band := image.Rect(area.Min.X, y, area.Max.X, min(y+lines, area.Max.Y))
		out, n := e.convertBand(band)
		e.flushWaiting = true
		e.flush(out, e.buf[:n])
		e.stats.Bands++
		if e.flushWaiting {
			e.stats.Dropped++
			e.logger.Errorf("render", "flush callback did not acknowledge band %v", out)
			return
		}
	}
	e.dirty = image.Rectangle{}
}

// convertBand writes band into the draw buffer as RGB565 in panel order
// and returns the panel-space rectangle it covers.
func (e *Engine) convertBand(band image.Rectangle) (image.Rectangle, int) {
	if !e.geo.SoftwareRotate || e.geo.Rotation == driver.Rotation0 {
		i := 0
		for y := band.Min.Y; y < band.Max.Y; y++ {
			off := e.canvas.PixOffset(band.Min.X, y)
			for x := band.Min.X; x < band.Max.X; x++ {
				p := e.canvas.Pix[off : off+4 : off+4]
				e.buf[i] = driver.RGB565(p[0], p[1], p[2])
				off += 4
				i++
			}
		}
		return band, i
	}

	out := e.toPanelRect(band)
	i := 0
	for py := out.Min.Y; py < out.Max.Y; py++ {
		for px := out.Min.X; px < out.Max.X; px++ {
			x, y := e.toCanvas(px, py)
			c := e.canvas.RGBAAt(x, y)
			e.buf[i] = driver.RGB565(c.R, c.G, c.B)
			i++
		}
	}
	return out, i
}

func (e *Engine) panelSize() (int, int) {
	if e.geo.Rotation.SwapsAxes() {
		return e.geo.Height, e.geo.Width
	}
	return e.geo.Width, e.geo.Height
}

// toPanel maps a canvas pixel to the native panel.
func (e *Engine) toPanel(x, y int) (int, int) {
	pw, ph := e.panelSize()
	switch e.geo.Rotation {
	case driver.Rotation90:
		return pw - 1 - y, x
	case driver.Rotation180:
		return pw - 1 - x, ph - 1 - y
	case driver.Rotation270:
		return y, ph - 1 - x
	}
	return x, y
}

// toCanvas is the inverse of toPanel.
func (e *Engine) toCanvas(px, py int) (int, int) {
	pw, ph := e.panelSize()
	switch e.geo.Rotation {
	case driver.Rotation90:
		return py, pw - 1 - px
	case driver.Rotation180:
		return pw - 1 - px, ph - 1 - py
	case driver.Rotation270:
		return ph - 1 - py, px
	}
	return px, py
}

func (e *Engine) toPanelRect(r image.Rectangle) image.Rectangle {
	x0, y0 := e.toPanel(r.Min.X, r.Min.Y)
	x1, y1 := e.toPanel(r.Max.X-1, r.Max.Y-1)
	return image.Rect(min(x0, x1), min(y0, y1), max(x0, x1)+1, max(y0, y1)+1)
}

// Snapshot copies the logical canvas.
func (e *Engine) Snapshot() *image.RGBA {
	out := image.NewRGBA(e.canvas.Bounds())
	copy(out.Pix, e.canvas.Pix)
	return out
}
