// Package driver defines the capability every panel backend implements and
// ships the backends the device can be built with.
//
// Exactly one Driver exists per process. The display coordinator owns it for
// its whole lifetime; nothing else may push pixels through it.
package driver

import "fmt"

// RenderMode tells the coordinator how pixels reach the glass.
type RenderMode uint8

const (
	// Direct drivers push pixels to the panel inside the flush callback.
	// Present is a no-op.
	Direct RenderMode = iota
	// Buffered drivers accumulate flushes into an internal canvas. The
	// coordinator calls Present once per loop iteration that produced pixels.
	Buffered
)

func (m RenderMode) String() string {
	switch m {
	case Direct:
		return "direct"
	case Buffered:
		return "buffered"
	default:
		return fmt.Sprintf("RenderMode(%d)", uint8(m))
	}
}

// Rotation is a quarter-turn count: 0=portrait, 1=landscape,
// 2=portrait flipped, 3=landscape flipped.
type Rotation uint8

const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

func ParseRotation(v int) (Rotation, error) {
	if v < 0 || v > 3 {
		return 0, fmt.Errorf("rotation must be 0..3 (got %d)", v)
	}
	return Rotation(v), nil
}

// SwapsAxes reports whether the rotation exchanges width and height.
func (r Rotation) SwapsAxes() bool { return r == Rotation90 || r == Rotation270 }

// Geometry is the logical resolution the render engine lays out into.
type Geometry struct {
	Width    int
	Height   int
	Rotation Rotation

	// SoftwareRotate asks the engine to rotate pixels itself before flushing,
	// for panels that cannot rotate through their own registers.
	SoftwareRotate bool

	// FullRefresh asks the engine to redraw the whole canvas on every
	// invalidation instead of only the damaged band.
	FullRefresh bool
}

type Driver interface {
	// Init brings the panel up. A failing Init leaves the driver unusable.
	Init() error
	SetRotation(r Rotation)

	// Width and Height report the post-rotation address space that
	// SetWindow/PushPixels target.
	Width() int
	Height() int

	SetBacklight(on bool)
	// SetBrightness takes a percentage in [0,100].
	SetBrightness(percent uint8)
	Brightness() uint8
	HasBacklightControl() bool

	BeginWrite()
	SetWindow(x, y, w, h int)
	// PushPixels writes RGB565 pixels into the current window in row-major
	// order. byteSwap sends the high byte first, which is what SPI panels expect.
	PushPixels(px []uint16, byteSwap bool)
	EndWrite()

	RenderMode() RenderMode
	Present()
}

// GeometryAdapter is implemented by drivers that rotate in software rather
// than through panel registers. It is consulted once, before the engine
// allocates its canvas.
type GeometryAdapter interface {
	AdaptGeometry(g *Geometry, r Rotation)
}

// BacklightDevice is a percentage-based backlight, such as a sysfs node.
type BacklightDevice interface {
	SetPercent(percent int) error
	GetPercent() (int, error)
}

func clampPercent(p uint8) uint8 {
	if p > 100 {
		return 100
	}
	return p
}
