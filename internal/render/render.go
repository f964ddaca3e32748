// Package render is the small retained-mode engine the panel runs on.
//
// The engine owns a logical RGBA canvas, a line-band RGB565 draw buffer,
// periodic timers and polled input devices. It knows nothing about the
// panel: rendered bands leave through a flush callback that must acknowledge
// each band with FlushReady.
//
// Every method of Engine must be called with the display lock held. The
// display coordinator takes care of that for the render goroutine.
package render

import (
	"image"
	"image/color"
)

// Screen is one full-screen view. Exactly one screen is shown at a time.
// Show and Hide must be idempotent.
type Screen interface {
	Create()
	Destroy()
	Show()
	Hide()
	// Update refreshes data; it is called once per render iteration while
	// the screen is current. It must not redraw unless something changed.
	Update()
}

// Scene is what the engine paints into the canvas on each refresh.
type Scene interface {
	Draw(d Drawer)
}

// TouchHandler is implemented by scenes that react to pointer input.
type TouchHandler interface {
	HandleTouch(ev TouchEvent)
}

type TouchKind int

const (
	TouchPressed TouchKind = iota
	TouchReleased
)

// TouchEvent is delivered on press and release edges, in canvas coordinates.
type TouchEvent struct {
	Kind TouchKind
	X, Y int
}

// Drawer is the set of primitives scenes draw with.
type Drawer interface {
	// Size returns the logical canvas size (in pixels) that scenes draw into.
	Size() (width int, height int)
	Bounds() image.Rectangle
	Theme() Theme

	Fill(c color.Color)
	FillRect(rect image.Rectangle, c color.Color)

	MeasureText(text string, style TextStyle) TextMetrics
	DrawText(text string, x, y int, style TextStyle) TextMetrics
	// DrawTextInRect centres text vertically in rect; Align picks the
	// horizontal placement.
	DrawTextInRect(text string, rect image.Rectangle, style TextStyle) TextMetrics
	// DrawHeadline renders large glyphs through the freetype rasteriser,
	// centred in rect.
	DrawHeadline(text string, rect image.Rectangle, sizePx float64, c color.Color)

	DrawImageInRect(img image.Image, rect image.Rectangle, mode ScaleMode)
}

type TextAlign int

const (
	TextAlignLeft TextAlign = iota
	TextAlignCenter
	TextAlignRight
)

// TextStyle describes how to render text.
// Coordinates for DrawText use a top-left anchor for Y.
// For X, Align controls how x is interpreted.
type TextStyle struct {
	Color color.Color
	Size  int // pixel size; 0 means the engine default
	Bold  bool
	Mono  bool
	Align TextAlign
}

type TextMetrics struct {
	Width      int
	Height     int
	Ascent     int
	Descent    int
	LineHeight int
}

type ScaleMode int

const (
	ScaleModeFit ScaleMode = iota
	ScaleModeFill
	ScaleModeStretch
)
