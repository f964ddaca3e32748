package render

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/rook-computer/panelcore/internal/clock"
	"github.com/rook-computer/panelcore/internal/driver"
)

var testFonts = LoadFonts(nil)

type sceneFunc func(d Drawer)

func (f sceneFunc) Draw(d Drawer) { f(d) }

type touchScene struct {
	events []TouchEvent
}

func (s *touchScene) Draw(d Drawer)             {}
func (s *touchScene) HandleTouch(ev TouchEvent) { s.events = append(s.events, ev) }

// panelSink collects flushed bands into a panel-sized pixel slice.
type panelSink struct {
	e     *Engine
	w, h  int
	px    []uint16
	areas []image.Rectangle
	noAck bool
}

func (p *panelSink) flush(area image.Rectangle, px []uint16) {
	p.areas = append(p.areas, area)
	i := 0
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			p.px[y*p.w+x] = px[i]
			i++
		}
	}
	if !p.noAck {
		p.e.FlushReady()
	}
}

func newTestEngine(t *testing.T, geo driver.Geometry, lines int, clk clock.Clock) (*Engine, *panelSink) {
	t.Helper()
	e, err := NewEngine(Options{Geometry: geo, BufferLines: lines, Clock: clk, Fonts: testFonts})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	pw, ph := geo.Width, geo.Height
	if geo.SoftwareRotate && geo.Rotation.SwapsAxes() {
		pw, ph = ph, pw
	}
	sink := &panelSink{e: e, w: pw, h: ph, px: make([]uint16, pw*ph)}
	e.SetFlushFunc(sink.flush)
	return e, sink
}

func TestEngineFlushesInBands(t *testing.T) {
	e, sink := newTestEngine(t, driver.Geometry{Width: 10, Height: 10}, 4, clock.NewManual(0))
	red := color.RGBA{R: 0xFF, A: 0xFF}
	e.Load(sceneFunc(func(d Drawer) { d.Fill(red) }))
	e.TimerHandler()

	want := []image.Rectangle{
		image.Rect(0, 0, 10, 4),
		image.Rect(0, 4, 10, 8),
		image.Rect(0, 8, 10, 10),
	}
	if len(sink.areas) != len(want) {
		t.Fatalf("areas=%v, want %v", sink.areas, want)
	}
	for i := range want {
		if sink.areas[i] != want[i] {
			t.Fatalf("band %d=%v, want %v", i, sink.areas[i], want[i])
		}
	}
	for i, p := range sink.px {
		if p != 0xF800 {
			t.Fatalf("pixel %d=%#04x, want 0xf800", i, p)
		}
	}
	if e.Dirty() {
		t.Fatalf("engine still dirty after full refresh")
	}

	sink.areas = nil
	e.TimerHandler()
	if len(sink.areas) != 0 {
		t.Fatalf("clean engine flushed %v", sink.areas)
	}
}

func TestEngineInvalidateRectFlushesOnlyDamage(t *testing.T) {
	e, sink := newTestEngine(t, driver.Geometry{Width: 10, Height: 10}, 4, clock.NewManual(0))
	e.Load(sceneFunc(func(d Drawer) { d.Fill(color.White) }))
	e.TimerHandler()
	sink.areas = nil

	e.InvalidateRect(image.Rect(-5, 6, 20, 9))
	e.TimerHandler()
	if want := image.Rect(0, 6, 10, 9); len(sink.areas) != 1 || sink.areas[0] != want {
		t.Fatalf("areas=%v, want [%v]", sink.areas, want)
	}

	sink.areas = nil
	e.InvalidateRect(image.Rect(20, 20, 30, 30))
	if e.Dirty() {
		t.Fatal("off-canvas damage marked the engine dirty")
	}
}

func TestEngineStopsOnUnacknowledgedFlush(t *testing.T) {
	e, sink := newTestEngine(t, driver.Geometry{Width: 8, Height: 8}, 2, clock.NewManual(0))
	sink.noAck = true
	e.Load(sceneFunc(func(d Drawer) {}))
	e.TimerHandler()
	if len(sink.areas) != 1 {
		t.Fatalf("flushed %d bands without ack, want 1", len(sink.areas))
	}
	if !e.Dirty() || e.Stats().Dropped != 1 {
		t.Fatalf("dirty=%v stats=%+v", e.Dirty(), e.Stats())
	}

	// Still waiting: nothing else goes out.
	e.TimerHandler()
	if len(sink.areas) != 1 {
		t.Fatalf("engine flushed while waiting for ack")
	}

	sink.noAck = false
	e.FlushReady()
	e.TimerHandler()
	if e.Dirty() || len(sink.areas) != 5 {
		t.Fatalf("after ack: dirty=%v bands=%d", e.Dirty(), len(sink.areas))
	}
}

func TestEngineBufferAllocFailure(t *testing.T) {
	e, err := NewEngine(Options{
		Geometry: driver.Geometry{Width: 16, Height: 16},
		Alloc:    func(int) []uint16 { return nil },
		Clock:    clock.NewManual(0),
		Fonts:    testFonts,
	})
	if !errors.Is(err, ErrBufferAlloc) {
		t.Fatalf("err=%v, want ErrBufferAlloc", err)
	}
	if e == nil || e.HasBuffer() {
		t.Fatalf("expected an engine without buffer")
	}
	flushed := false
	e.SetFlushFunc(func(image.Rectangle, []uint16) { flushed = true })
	e.Load(sceneFunc(func(d Drawer) {}))
	e.TimerHandler()
	if flushed {
		t.Fatalf("engine without buffer flushed")
	}
}

func TestEngineTimersAndDelay(t *testing.T) {
	clk := clock.NewManual(1000)
	e, _ := newTestEngine(t, driver.Geometry{Width: 4, Height: 4}, 4, clk)

	if d := e.TimerHandler(); d != idleDelay {
		t.Fatalf("idle delay=%d, want %d", d, idleDelay)
	}

	fired := 0
	timer := e.AddTimer(100*time.Millisecond, func() { fired++ })
	if d := e.TimerHandler(); d != 100 || fired != 0 {
		t.Fatalf("delay=%d fired=%d", d, fired)
	}
	clk.Advance(40)
	if d := e.TimerHandler(); d != 60 {
		t.Fatalf("delay=%d, want 60", d)
	}
	clk.Advance(60)
	e.TimerHandler()
	if fired != 1 {
		t.Fatalf("fired=%d, want 1", fired)
	}

	timer.Pause()
	clk.Advance(500)
	e.TimerHandler()
	if fired != 1 {
		t.Fatalf("paused timer fired")
	}
	timer.Resume(clk.NowMillis())
	timer.Delete()
	clk.Advance(500)
	e.TimerHandler()
	if fired != 1 || len(e.timers) != 0 {
		t.Fatalf("deleted timer: fired=%d timers=%d", fired, len(e.timers))
	}
}

func TestEngineDeliversTouchEdges(t *testing.T) {
	clk := clock.NewManual(0)
	e, _ := newTestEngine(t, driver.Geometry{Width: 4, Height: 4}, 4, clk)
	scene := &touchScene{}
	e.Load(scene)

	state := InputState{}
	e.RegisterInput(func() InputState { return state })

	steps := []InputState{
		{Pressed: true, X: 1, Y: 2},
		{Pressed: true, X: 2, Y: 2},
		{Pressed: false, X: 2, Y: 2},
		{Pressed: false},
	}
	for _, s := range steps {
		state = s
		e.TimerHandler()
		clk.Advance(30)
	}
	if len(scene.events) != 2 {
		t.Fatalf("events=%+v, want press and release", scene.events)
	}
	if scene.events[0] != (TouchEvent{Kind: TouchPressed, X: 1, Y: 2}) || scene.events[1].Kind != TouchReleased {
		t.Fatalf("events=%+v", scene.events)
	}
}

func TestEngineSoftwareRotation(t *testing.T) {
	geo := driver.Geometry{Width: 4, Height: 2, Rotation: driver.Rotation90, SoftwareRotate: true}
	e, sink := newTestEngine(t, geo, 2, clock.NewManual(0))
	e.Load(sceneFunc(func(d Drawer) {
		d.Fill(color.Black)
		d.FillRect(image.Rect(0, 0, 1, 1), color.White)
	}))
	e.TimerHandler()

	// Panel is 2 wide, 4 tall. Canvas (0,0) lands at panel (1,0).
	if sink.w != 2 || sink.h != 4 {
		t.Fatalf("panel=%dx%d", sink.w, sink.h)
	}
	for y := 0; y < sink.h; y++ {
		for x := 0; x < sink.w; x++ {
			want := uint16(0)
			if x == 1 && y == 0 {
				want = 0xFFFF
			}
			if got := sink.px[y*sink.w+x]; got != want {
				t.Fatalf("panel(%d,%d)=%#04x, want %#04x", x, y, got, want)
			}
		}
	}
}

func TestFitRect(t *testing.T) {
	src := image.Rect(0, 0, 200, 100)
	rect := image.Rect(0, 0, 100, 100)
	tests := []struct {
		mode ScaleMode
		want image.Rectangle
	}{
		{ScaleModeFit, image.Rect(0, 25, 100, 75)},
		{ScaleModeFill, image.Rect(-50, 0, 150, 100)},
		{ScaleModeStretch, rect},
	}
	for _, tt := range tests {
		if got := fitRect(src, rect, tt.mode); got != tt.want {
			t.Fatalf("mode %d: got %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestDrawTextMarksCanvas(t *testing.T) {
	e, _ := newTestEngine(t, driver.Geometry{Width: 120, Height: 40}, 40, clock.NewManual(0))
	d := e.drawer
	d.Fill(color.White)
	m := d.DrawText("Hi", 4, 4, TextStyle{Color: color.Black, Size: 20})
	if m.Width <= 0 || m.Height <= 0 {
		t.Fatalf("metrics=%+v", m)
	}
	dark := false
	for y := 4; y < 4+m.Height && !dark; y++ {
		for x := 4; x < 4+m.Width; x++ {
			if c := e.canvas.RGBAAt(x, y); c.R < 0x80 {
				dark = true
				break
			}
		}
	}
	if !dark {
		t.Fatalf("no glyph pixels found")
	}
}
