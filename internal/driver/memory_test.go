package driver

import (
	"errors"
	"testing"
)

func pushRect(d Driver, x, y, w, h int, v uint16) {
	px := make([]uint16, w*h)
	for i := range px {
		px[i] = v
	}
	d.BeginWrite()
	d.SetWindow(x, y, w, h)
	d.PushPixels(px, true)
	d.EndWrite()
}

func TestMemoryDirectWritesPanel(t *testing.T) {
	m := NewMemory(8, 4, Direct)
	if err := m.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	pushRect(m, 2, 1, 3, 2, 0xF800)

	if got := m.PixelAt(2, 1); got != 0xF800 {
		t.Fatalf("PixelAt(2,1)=%#04x, want 0xf800", got)
	}
	if got := m.PixelAt(4, 2); got != 0xF800 {
		t.Fatalf("PixelAt(4,2)=%#04x, want 0xf800", got)
	}
	if got := m.PixelAt(5, 1); got != 0 {
		t.Fatalf("PixelAt(5,1)=%#04x, want 0", got)
	}
	m.Present()
	if s := m.Stats(); s.Presents != 0 || s.Writes != 1 || s.PixelsPushed != 6 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestMemoryBufferedNeedsPresent(t *testing.T) {
	m := NewMemory(4, 4, Buffered)
	if err := m.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	pushRect(m, 0, 0, 4, 4, 0x07E0)
	if got := m.PixelAt(1, 1); got != 0 {
		t.Fatalf("panel changed before Present: %#04x", got)
	}
	m.Present()
	if got := m.PixelAt(1, 1); got != 0x07E0 {
		t.Fatalf("PixelAt after Present=%#04x, want 0x07e0", got)
	}
	if s := m.Stats(); s.Presents != 1 {
		t.Fatalf("Presents=%d, want 1", s.Presents)
	}
}

func TestMemoryRotationSwapsAxes(t *testing.T) {
	m := NewMemory(320, 240, Direct)
	tests := []struct {
		r    Rotation
		w, h int
	}{
		{Rotation0, 320, 240},
		{Rotation90, 240, 320},
		{Rotation180, 320, 240},
		{Rotation270, 240, 320},
	}
	for _, tt := range tests {
		m.SetRotation(tt.r)
		if m.Width() != tt.w || m.Height() != tt.h {
			t.Fatalf("rotation %d: got %dx%d, want %dx%d", tt.r, m.Width(), m.Height(), tt.w, tt.h)
		}
	}
}

func TestMemoryBrightness(t *testing.T) {
	m := NewMemory(2, 2, Direct)
	if err := m.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	m.SetBrightness(150)
	if got := m.Brightness(); got != 100 {
		t.Fatalf("Brightness=%d, want 100 (clamped)", got)
	}
	m.SetBrightness(0)
	if got := m.Brightness(); got != 0 {
		t.Fatalf("Brightness=%d, want 0", got)
	}
	m.SetBacklight(true)
	if got := m.Brightness(); got != 100 {
		t.Fatalf("Brightness after backlight on=%d, want 100", got)
	}
}

func TestGuardInertAfterInitFailure(t *testing.T) {
	m := NewMemory(4, 4, Buffered)
	m.InitErr = errors.New("bus timeout")
	g := NewGuard(m, nil)

	if err := g.Init(); err == nil {
		t.Fatalf("Init: expected error")
	}
	if !g.Inert() {
		t.Fatalf("guard not inert after failed init")
	}
	pushRect(g, 0, 0, 4, 4, 0xFFFF)
	g.Present()
	g.SetBrightness(50)

	if s := m.Stats(); s.Pushes != 0 || s.Presents != 0 || s.Writes != 0 {
		t.Fatalf("inert guard leaked calls: %+v", s)
	}
	if g.HasBacklightControl() {
		t.Fatalf("inert guard reports backlight control")
	}
}

func TestGuardNilDriver(t *testing.T) {
	g := NewGuard(nil, nil)
	if err := g.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !g.Inert() || g.Width() != 0 || g.RenderMode() != Direct {
		t.Fatalf("nil guard: inert=%v width=%d mode=%s", g.Inert(), g.Width(), g.RenderMode())
	}
	g.Present()
}

func TestGuardForwards(t *testing.T) {
	m := NewMemory(4, 2, Buffered)
	g := NewGuard(m, nil)
	if err := g.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	pushRect(g, 0, 0, 4, 2, 0x001F)
	g.Present()
	if got := m.PixelAt(3, 1); got != 0x001F {
		t.Fatalf("PixelAt=%#04x, want 0x001f", got)
	}
	if g.RenderMode() != Buffered {
		t.Fatalf("RenderMode=%s", g.RenderMode())
	}
}
