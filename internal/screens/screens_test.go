package screens

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/rook-computer/panelcore/internal/clock"
	"github.com/rook-computer/panelcore/internal/driver"
	"github.com/rook-computer/panelcore/internal/render"
)

var testFonts = render.LoadFonts(nil)

func newEngine(t *testing.T, clk clock.Clock) *render.Engine {
	t.Helper()
	e, err := render.NewEngine(render.Options{
		Geometry: driver.Geometry{Width: 160, Height: 120},
		Clock:    clk,
		Fonts:    testFonts,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.SetFlushFunc(func(image.Rectangle, []uint16) { e.FlushReady() })
	return e
}

func TestSplashStatusAndSpinner(t *testing.T) {
	clk := clock.NewManual(0)
	e := newEngine(t, clk)
	s := NewSplash(e, "panelcore")
	s.Create()
	s.Show()
	s.Show()
	if e.Scene() != s {
		t.Fatalf("splash scene not loaded")
	}
	e.TimerHandler()

	s.SetStatus("  starting\nnetwork ")
	s.Update()
	if !e.Dirty() || s.seen != "starting network" {
		t.Fatalf("dirty=%v seen=%q", e.Dirty(), s.seen)
	}
	e.TimerHandler()

	s.Update()
	if e.Dirty() {
		t.Fatalf("unchanged status invalidated the engine")
	}

	clk.Advance(uint32(spinnerPeriod / time.Millisecond))
	e.TimerHandler()
	if s.phase != 1 {
		t.Fatalf("spinner phase=%d, want 1", s.phase)
	}

	s.Hide()
	clk.Advance(uint32(spinnerPeriod / time.Millisecond))
	e.TimerHandler()
	if s.phase != 1 {
		t.Fatalf("hidden splash kept spinning")
	}
}

func TestSplashStatusRedrawsOnlyStatusArea(t *testing.T) {
	e := newEngine(t, clock.NewManual(0))
	var areas []image.Rectangle
	e.SetFlushFunc(func(area image.Rectangle, _ []uint16) {
		areas = append(areas, area)
		e.FlushReady()
	})
	s := NewSplash(e, "panelcore")
	s.Create()
	s.Show()
	e.TimerHandler()

	areas = nil
	s.SetStatus("Starting web server")
	s.Update()
	e.TimerHandler()
	if len(areas) == 0 {
		t.Fatal("status change flushed nothing")
	}
	for _, a := range areas {
		if a.Min.Y < 120*3/5 {
			t.Fatalf("flushed %v above the status area", a)
		}
	}
}

func TestStatusLineTruncates(t *testing.T) {
	if got := statusLine("abcdefghij", 8); got != "abcde..." {
		t.Fatalf("statusLine=%q", got)
	}
	if got := statusLine("short", 8); got != "short" {
		t.Fatalf("statusLine=%q", got)
	}
}

func TestInfoRefreshIsRateLimited(t *testing.T) {
	clk := clock.NewManual(0)
	e := newEngine(t, clk)
	calls := 0
	data := InfoData{DeviceName: "panel", Address: "10.0.0.2", URL: "http://10.0.0.2/"}
	s := NewInfo(e, InfoSourceFunc(func() InfoData {
		calls++
		return data
	}), clk, nil)
	s.Create()
	s.Show()
	e.TimerHandler()
	if calls != 1 {
		t.Fatalf("calls after show=%d, want 1", calls)
	}

	clk.Advance(500)
	s.Update()
	if calls != 1 {
		t.Fatalf("source polled before refresh interval")
	}

	clk.Advance(500)
	s.Update()
	if calls != 2 || e.Dirty() {
		t.Fatalf("calls=%d dirty=%v, want 2 and clean", calls, e.Dirty())
	}

	data.Power = "asleep"
	clk.Advance(1000)
	s.Update()
	if !e.Dirty() {
		t.Fatalf("changed data did not invalidate")
	}
	e.TimerHandler()
	if s.qr == nil || s.qrFor != data.URL {
		t.Fatalf("qr not generated for %q", data.URL)
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{90 * time.Second, "0h 01m"},
		{3*time.Hour + 5*time.Minute, "3h 05m"},
		{50 * time.Hour, "2d 2h"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Fatalf("formatUptime(%s)=%q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTestScreenCyclesOnTouch(t *testing.T) {
	clk := clock.NewManual(0)
	e := newEngine(t, clk)
	s := NewTest(e, 3*time.Second)
	s.Create()
	s.Show()
	if s.Pattern() != PatternBars {
		t.Fatalf("pattern=%s", s.Pattern())
	}
	s.HandleTouch(render.TouchEvent{Kind: render.TouchPressed})
	s.HandleTouch(render.TouchEvent{Kind: render.TouchReleased})
	if s.Pattern() != PatternGradient {
		t.Fatalf("pattern after tap=%s", s.Pattern())
	}
	clk.Advance(3000)
	e.TimerHandler()
	if s.Pattern() != PatternChecker {
		t.Fatalf("pattern after period=%s", s.Pattern())
	}
	s.Hide()
	s.Show()
	if s.Pattern() != PatternBars {
		t.Fatalf("show did not reset pattern")
	}
}

func TestImageViewerPicksUpUploads(t *testing.T) {
	e := newEngine(t, clock.NewManual(0))
	s := NewImageViewer(e)
	s.Create()
	s.Show()
	e.TimerHandler()
	s.Update()
	if e.Dirty() {
		t.Fatalf("viewer invalidated without an upload")
	}
	s.SetImage(image.NewRGBA(image.Rect(0, 0, 4, 4)), "cat")
	s.Update()
	if !e.Dirty() || s.shownCap != "cat" {
		t.Fatalf("dirty=%v caption=%q", e.Dirty(), s.shownCap)
	}
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestDirectImagePaintsAndTimesOut(t *testing.T) {
	clk := clock.NewManual(0)
	drv := driver.NewMemory(20, 10, driver.Buffered)
	if err := drv.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	timeouts := 0
	s := NewDirectImage(drv, clk, nil, func() { timeouts++ })
	s.Create()
	s.SetImage(solid(20, 10, color.RGBA{R: 0xFF, A: 0xFF}), 2*time.Second)
	s.Show()

	if got := drv.PixelAt(10, 5); got != 0xF800 {
		t.Fatalf("pixel=%#04x, want red", got)
	}
	if st := drv.Stats(); st.Presents != 1 || st.PixelsPushed != 200 {
		t.Fatalf("stats=%+v", st)
	}

	clk.Advance(1999)
	s.Update()
	if timeouts != 0 {
		t.Fatalf("timed out early")
	}
	clk.Advance(1)
	s.Update()
	s.Update()
	if timeouts != 1 {
		t.Fatalf("timeouts=%d, want 1", timeouts)
	}

	// A new upload repaints and re-arms the timeout.
	s.SetImage(solid(20, 10, color.RGBA{B: 0xFF, A: 0xFF}), 2*time.Second)
	s.Update()
	if got := drv.PixelAt(10, 5); got != 0x001F {
		t.Fatalf("pixel=%#04x, want blue", got)
	}
	clk.Advance(2000)
	s.Update()
	if timeouts != 2 {
		t.Fatalf("timeouts=%d, want 2", timeouts)
	}
}

func TestDirectImageLetterbox(t *testing.T) {
	got := fitInside(image.Rect(0, 0, 10, 10), image.Rect(0, 0, 20, 10))
	if want := image.Rect(5, 0, 15, 10); got != want {
		t.Fatalf("fitInside=%v, want %v", got, want)
	}
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(3, 2, color.RGBA{G: 0xFF, A: 0xFF})); err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := DecodeImage(buf.Bytes(), 6)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Fatalf("bounds=%v", img.Bounds())
	}
	if _, err := DecodeImage(nil, 0); err == nil {
		t.Fatalf("empty body accepted")
	}
	if _, err := DecodeImage([]byte("not an image"), 0); err == nil {
		t.Fatalf("garbage accepted")
	}
	if _, err := DecodeImage(buf.Bytes(), 5); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("err=%v, want ErrImageTooLarge", err)
	}
}
