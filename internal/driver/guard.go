package driver

import (
	"sync/atomic"

	"github.com/rook-computer/panelcore/internal/logging"
)

// Guard wraps a backend so that a failed Init turns every later hardware call
// into a no-op. The rest of the device keeps running with a dark panel.
type Guard struct {
	d      Driver
	logger logging.Logger
	inert  atomic.Bool
}

func NewGuard(d Driver, logger logging.Logger) *Guard {
	return &Guard{d: d, logger: logging.OrNoop(logger)}
}

func (g *Guard) Init() error {
	if g.d == nil {
		g.inert.Store(true)
		g.logger.Errorf("driver", "no display driver configured; display disabled")
		return nil
	}
	if err := g.d.Init(); err != nil {
		g.inert.Store(true)
		g.logger.Errorf("driver", "init failed, display disabled: %v", err)
		return err
	}
	g.logger.Infof("driver", "init ok: %dx%d, mode=%s", g.d.Width(), g.d.Height(), g.d.RenderMode())
	return nil
}

// Inert reports whether the wrapped driver failed to initialise.
func (g *Guard) Inert() bool { return g.inert.Load() }

// Unwrap returns the wrapped backend.
func (g *Guard) Unwrap() Driver { return g.d }

func (g *Guard) SetRotation(r Rotation) {
	if g.Inert() {
		return
	}
	g.d.SetRotation(r)
}

func (g *Guard) Width() int {
	if g.d == nil {
		return 0
	}
	return g.d.Width()
}

func (g *Guard) Height() int {
	if g.d == nil {
		return 0
	}
	return g.d.Height()
}

func (g *Guard) SetBacklight(on bool) {
	if g.Inert() {
		return
	}
	g.d.SetBacklight(on)
}

func (g *Guard) SetBrightness(percent uint8) {
	if g.Inert() {
		return
	}
	g.d.SetBrightness(clampPercent(percent))
}

func (g *Guard) Brightness() uint8 {
	if g.Inert() {
		return 0
	}
	return g.d.Brightness()
}

func (g *Guard) HasBacklightControl() bool {
	if g.Inert() {
		return false
	}
	return g.d.HasBacklightControl()
}

func (g *Guard) BeginWrite() {
	if g.Inert() {
		return
	}
	g.d.BeginWrite()
}

func (g *Guard) SetWindow(x, y, w, h int) {
	if g.Inert() {
		return
	}
	g.d.SetWindow(x, y, w, h)
}

func (g *Guard) PushPixels(px []uint16, byteSwap bool) {
	if g.Inert() {
		return
	}
	g.d.PushPixels(px, byteSwap)
}

func (g *Guard) EndWrite() {
	if g.Inert() {
		return
	}
	g.d.EndWrite()
}

func (g *Guard) RenderMode() RenderMode {
	if g.d == nil {
		return Direct
	}
	return g.d.RenderMode()
}

func (g *Guard) Present() {
	if g.Inert() {
		return
	}
	g.d.Present()
}

func (g *Guard) AdaptGeometry(geo *Geometry, r Rotation) {
	if g.Inert() {
		return
	}
	if a, ok := g.d.(GeometryAdapter); ok {
		a.AdaptGeometry(geo, r)
	}
}
