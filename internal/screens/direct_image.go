package screens

import (
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"github.com/rook-computer/panelcore/internal/clock"
	"github.com/rook-computer/panelcore/internal/driver"
	"github.com/rook-computer/panelcore/internal/logging"
	xdraw "golang.org/x/image/draw"
)

const directRowsPerPush = 16

// DirectImage paints an uploaded image straight to the driver, bypassing the
// engine. While it is current the coordinator drops engine flushes, so
// nothing overwrites the picture. After the configured timeout it calls
// onTimeout, which normally returns to the previous screen.
type DirectImage struct {
	drv       driver.Driver
	clock     clock.Clock
	logger    logging.Logger
	onTimeout func()

	mu      sync.Mutex
	img     image.Image
	timeout uint32
	gen     uint64

	created  bool
	shown    bool
	drawnGen uint64
	paintAt  uint32
	expired  bool
	rowBuf   []uint16
}

func NewDirectImage(drv driver.Driver, clk clock.Clock, logger logging.Logger, onTimeout func()) *DirectImage {
	return &DirectImage{drv: drv, clock: clk, logger: logging.OrNoop(logger), onTimeout: onTimeout}
}

// SetImage queues img for display. timeout <= 0 keeps it up until something
// else is shown. Safe from any goroutine.
func (s *DirectImage) SetImage(img image.Image, timeout time.Duration) {
	ms := uint32(0)
	if timeout > 0 {
		ms = uint32(timeout / time.Millisecond)
	}
	s.mu.Lock()
	s.img, s.timeout = img, ms
	s.gen++
	s.mu.Unlock()
}

func (s *DirectImage) Create()  { s.created = true }
func (s *DirectImage) Destroy() { s.created, s.shown = false, false }

func (s *DirectImage) Show() {
	if s.shown {
		return
	}
	s.shown = true
	s.paint()
}

func (s *DirectImage) Hide() { s.shown = false }

func (s *DirectImage) Update() {
	if !s.shown {
		return
	}
	s.mu.Lock()
	changed := s.gen != s.drawnGen
	timeout := s.timeout
	s.mu.Unlock()
	if changed {
		s.paint()
		return
	}
	if s.expired || timeout == 0 {
		return
	}
	if clock.Elapsed(s.clock.NowMillis(), s.paintAt) >= timeout {
		s.expired = true
		s.logger.Infof("image", "display timeout after %dms", timeout)
		if s.onTimeout != nil {
			s.onTimeout()
		}
	}
}

func (s *DirectImage) paint() {
	s.mu.Lock()
	img := s.img
	s.drawnGen = s.gen
	s.mu.Unlock()
	s.paintAt = s.clock.NowMillis()
	s.expired = false

	w, h := s.drv.Width(), s.drv.Height()
	if w <= 0 || h <= 0 {
		return
	}
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(frame, frame.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	if img != nil {
		dst := fitInside(img.Bounds(), frame.Bounds())
		xdraw.ApproxBiLinear.Scale(frame, dst, img, img.Bounds(), xdraw.Src, nil)
	}

	if cap(s.rowBuf) < w*directRowsPerPush {
		s.rowBuf = make([]uint16, w*directRowsPerPush)
	}
	s.drv.BeginWrite()
	s.drv.SetWindow(0, 0, w, h)
	for y := 0; y < h; y += directRowsPerPush {
		rows := min(directRowsPerPush, h-y)
		px := s.rowBuf[:w*rows]
		i := 0
		for yy := y; yy < y+rows; yy++ {
			off := frame.PixOffset(0, yy)
			for x := 0; x < w; x++ {
				px[i] = driver.RGB565(frame.Pix[off], frame.Pix[off+1], frame.Pix[off+2])
				off += 4
				i++
			}
		}
		s.drv.PushPixels(px, true)
	}
	s.drv.EndWrite()
	if s.drv.RenderMode() == driver.Buffered {
		s.drv.Present()
	}
}

// fitInside letterboxes src into dst keeping the aspect ratio.
func fitInside(src, dst image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	dw, dh := dst.Dx(), dst.Dy()
	if sw <= 0 || sh <= 0 {
		return dst
	}
	w, h := dw, sh*dw/sw
	if h > dh {
		w, h = sw*dh/sh, dh
	}
	x := dst.Min.X + (dw-w)/2
	y := dst.Min.Y + (dh-h)/2
	return image.Rect(x, y, x+w, y+h)
}
