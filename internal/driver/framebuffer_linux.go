//go:build linux

package driver

import (
	"fmt"
	"image"
	"image/color"

	fb "github.com/gonutz/framebuffer"
	xdraw "golang.org/x/image/draw"
)

// Framebuffer drives a Linux fbdev node. It is Buffered: flushes land in an
// RGBA canvas at the logical resolution and Present scales that canvas onto
// the device.
type Framebuffer struct {
	opts FramebufferOpts

	dev    *fb.Device
	canvas *image.RGBA
	scaled *image.RGBA

	window image.Rectangle
	cursor int

	brightness uint8
	on         bool
}

func NewFramebuffer(opts FramebufferOpts) *Framebuffer {
	if opts.Path == "" {
		opts.Path = "/dev/fb0"
	}
	return &Framebuffer{opts: opts, brightness: 100, on: true}
}

func (f *Framebuffer) Init() error {
	dev, err := fb.Open(f.opts.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.opts.Path, err)
	}
	f.dev = dev

	bounds := dev.Bounds()
	w, h := f.opts.LogicalWidth, f.opts.LogicalHeight
	if w <= 0 || h <= 0 {
		w, h = bounds.Dx(), bounds.Dy()
	}
	f.canvas = image.NewRGBA(image.Rect(0, 0, w, h))
	if w != bounds.Dx() || h != bounds.Dy() {
		f.scaled = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	}

	if f.opts.Backlight != nil {
		if p, err := f.opts.Backlight.GetPercent(); err == nil {
			f.brightness = clampPercent(uint8(p))
		}
	}
	return nil
}

// Close releases the device mapping.
func (f *Framebuffer) Close() error {
	if f.dev != nil {
		f.dev.Close()
		f.dev = nil
	}
	return nil
}

// SetRotation is handled by the kernel (fbcon rotate); the logical canvas
// keeps the device orientation.
func (f *Framebuffer) SetRotation(Rotation) {}

func (f *Framebuffer) Width() int {
	if f.canvas == nil {
		return f.opts.LogicalWidth
	}
	return f.canvas.Bounds().Dx()
}

func (f *Framebuffer) Height() int {
	if f.canvas == nil {
		return f.opts.LogicalHeight
	}
	return f.canvas.Bounds().Dy()
}

func (f *Framebuffer) SetBacklight(on bool) {
	f.on = on
	if f.opts.Backlight == nil {
		return
	}
	level := 0
	if on {
		level = int(f.brightness)
		if level == 0 {
			level = 100
		}
	}
	_ = f.opts.Backlight.SetPercent(level)
}

func (f *Framebuffer) SetBrightness(percent uint8) {
	f.brightness = clampPercent(percent)
	f.on = f.brightness > 0
	if f.opts.Backlight != nil {
		_ = f.opts.Backlight.SetPercent(int(f.brightness))
	}
}

func (f *Framebuffer) Brightness() uint8 {
	if !f.on {
		return 0
	}
	return f.brightness
}

func (f *Framebuffer) HasBacklightControl() bool { return f.opts.Backlight != nil }

func (f *Framebuffer) BeginWrite() {}
func (f *Framebuffer) EndWrite()   {}

func (f *Framebuffer) SetWindow(x, y, w, h int) {
	if f.canvas == nil {
		return
	}
	f.window = image.Rect(x, y, x+w, y+h).Intersect(f.canvas.Bounds())
	f.cursor = 0
}

func (f *Framebuffer) PushPixels(px []uint16, byteSwap bool) {
	if f.canvas == nil || f.window.Empty() {
		return
	}
	w := f.window.Dx()
	total := w * f.window.Dy()
	for _, p := range px {
		if f.cursor >= total {
			return
		}
		x := f.window.Min.X + f.cursor%w
		y := f.window.Min.Y + f.cursor/w
		f.canvas.SetRGBA(x, y, ColorFrom565(p))
		f.cursor++
	}
}

func (f *Framebuffer) RenderMode() RenderMode { return Buffered }

// Present copies the canvas to the device, scaling when the logical and
// physical resolutions differ.
func (f *Framebuffer) Present() {
	if f.dev == nil || f.canvas == nil {
		return
	}
	src := f.canvas
	if f.scaled != nil {
		xdraw.NearestNeighbor.Scale(f.scaled, f.scaled.Bounds(), f.canvas, f.canvas.Bounds(), xdraw.Src, nil)
		src = f.scaled
	}
	bounds := f.dev.Bounds()
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			p := src.RGBAAt(x, y)
			f.dev.Set(bounds.Min.X+x, bounds.Min.Y+y, color.RGBA{R: p.R, G: p.G, B: p.B, A: 0xFF})
		}
	}
}
