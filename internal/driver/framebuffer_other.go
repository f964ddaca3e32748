//go:build !linux

package driver

import "errors"

// Framebuffer is only available on Linux; elsewhere Init fails and the
// display runs inert.
type Framebuffer struct{ opts FramebufferOpts }

func NewFramebuffer(opts FramebufferOpts) *Framebuffer { return &Framebuffer{opts: opts} }

func (f *Framebuffer) Init() error { return errors.New("framebuffer: not supported on this platform") }
func (f *Framebuffer) Close() error { return nil }
func (f *Framebuffer) SetRotation(Rotation) {}
func (f *Framebuffer) Width() int { return f.opts.LogicalWidth }
func (f *Framebuffer) Height() int { return f.opts.LogicalHeight }
func (f *Framebuffer) SetBacklight(bool) {}
func (f *Framebuffer) SetBrightness(uint8) {}
func (f *Framebuffer) Brightness() uint8 { return 0 }
func (f *Framebuffer) HasBacklightControl() bool { return false }
func (f *Framebuffer) BeginWrite() {}
func (f *Framebuffer) EndWrite() {}
func (f *Framebuffer) SetWindow(x, y, w, h int) {}
func (f *Framebuffer) PushPixels([]uint16, bool) {}
func (f *Framebuffer) RenderMode() RenderMode { return Buffered }
func (f *Framebuffer) Present() {}
