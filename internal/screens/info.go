package screens

import (
	"fmt"
	"image"
	"time"

	"github.com/rook-computer/panelcore/internal/clock"
	"github.com/rook-computer/panelcore/internal/logging"
	"github.com/rook-computer/panelcore/internal/render"
	"github.com/rook-computer/panelcore/internal/render/layout"
)

const infoRefreshMillis = 1000

// InfoData is what the info screen shows.
type InfoData struct {
	DeviceName string
	Version    string
	Address    string
	URL        string
	Uptime     time.Duration
	MemUsedPct float64
	// Power line, e.g. "awake, sleep in 42s".
	Power string
}

// InfoSource supplies fresh InfoData. It is polled about once per second
// from the render goroutine and must not block.
type InfoSource interface {
	InfoData() InfoData
}

// InfoSourceFunc adapts a function to InfoSource.
type InfoSourceFunc func() InfoData

func (f InfoSourceFunc) InfoData() InfoData { return f() }

// Info is the default screen: device identity, address with a QR code for
// the web UI, and a few health figures.
type Info struct {
	sceneScreen
	source InfoSource
	clock  clock.Clock
	logger logging.Logger

	data      InfoData
	lastFetch uint32
	fetched   bool

	qr     image.Image
	qrFor  string
	qrSize int
}

func NewInfo(engine *render.Engine, source InfoSource, clk clock.Clock, logger logging.Logger) *Info {
	s := &Info{source: source, clock: clk, logger: logging.OrNoop(logger)}
	s.engine = engine
	s.scene = s
	return s
}

func (s *Info) Create()  { s.create() }
func (s *Info) Destroy() { s.destroy() }

func (s *Info) Show() {
	if !s.show() {
		return
	}
	s.refresh(true)
}

func (s *Info) Hide() { s.hide() }

func (s *Info) Update() {
	if !s.shown {
		return
	}
	s.refresh(false)
}

func (s *Info) refresh(force bool) {
	now := s.clock.NowMillis()
	if !force && s.fetched && clock.Elapsed(now, s.lastFetch) < infoRefreshMillis {
		return
	}
	s.lastFetch = now
	s.fetched = true
	if s.source == nil {
		return
	}
	next := s.source.InfoData()
	if !force && infoVisiblyEqual(next, s.data) {
		return
	}
	s.data = next
	s.engine.Invalidate()
}

// infoVisiblyEqual compares at the resolution the screen renders.
func infoVisiblyEqual(a, b InfoData) bool {
	return a.DeviceName == b.DeviceName &&
		a.Version == b.Version &&
		a.Address == b.Address &&
		a.URL == b.URL &&
		a.Power == b.Power &&
		formatUptime(a.Uptime) == formatUptime(b.Uptime) &&
		int(a.MemUsedPct) == int(b.MemUsedPct)
}

func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h >= 24 {
		return fmt.Sprintf("%dd %dh", h/24, h%24)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}

func (s *Info) qrImage(theme render.Theme, size int) image.Image {
	if s.data.URL == "" {
		return nil
	}
	if s.qr != nil && s.qrFor == s.data.URL && s.qrSize == size {
		return s.qr
	}
	img, err := render.GenerateQRCodeImage(s.data.URL, size, theme.Foreground, theme.Background)
	if err != nil {
		s.logger.Errorf("info", "qr for %q: %v", s.data.URL, err)
		return nil
	}
	s.qr, s.qrFor, s.qrSize = img, s.data.URL, size
	return img
}

func (s *Info) Draw(d render.Drawer) {
	theme := d.Theme()
	w, h := d.Size()
	area := layout.Inset(d.Bounds(), max(4, h/30))

	header, body := layout.SplitHorizontal(area, area.Dy()/4)
	d.DrawHeadline(s.data.DeviceName, header, float64(header.Dy())*0.7, theme.Foreground)

	textArea := body
	if w > h {
		qrSide := min(body.Dy(), body.Dx()/2)
		var qrArea image.Rectangle
		textArea, qrArea = layout.SplitVertical(body, body.Dx()-qrSide)
		if img := s.qrImage(theme, qrSide); img != nil {
			d.DrawImageInRect(img, layout.FitSquare(layout.Inset(qrArea, 4)), render.ScaleModeFit)
		}
	}

	lines := []string{
		s.data.Address,
		s.data.URL,
		"up " + formatUptime(s.data.Uptime) + fmt.Sprintf("  mem %d%%", int(s.data.MemUsedPct)),
		s.data.Power,
		s.data.Version,
	}
	size := max(10, textArea.Dy()/(len(lines)+1))
	for i, row := range layout.Rows(textArea, len(lines)) {
		if lines[i] == "" {
			continue
		}
		c := theme.Accent
		if i >= 3 {
			c = theme.Muted
		}
		d.DrawTextInRect(lines[i], row, render.TextStyle{Color: c, Size: size, Align: render.TextAlignLeft})
	}
}
