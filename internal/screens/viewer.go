package screens

import (
	"image"
	"sync"

	"github.com/rook-computer/panelcore/internal/render"
	"github.com/rook-computer/panelcore/internal/render/layout"
)

// ImageViewer shows an uploaded image through the engine, scaled to fit,
// with an optional caption.
type ImageViewer struct {
	sceneScreen

	mu      sync.Mutex
	img     image.Image
	caption string
	gen     uint64

	drawnGen uint64
	shownImg image.Image
	shownCap string
}

func NewImageViewer(engine *render.Engine) *ImageViewer {
	s := &ImageViewer{}
	s.engine = engine
	s.scene = s
	return s
}

// SetImage may be called from any goroutine.
func (s *ImageViewer) SetImage(img image.Image, caption string) {
	s.mu.Lock()
	s.img, s.caption = img, caption
	s.gen++
	s.mu.Unlock()
}

func (s *ImageViewer) Create()  { s.create() }
func (s *ImageViewer) Destroy() { s.destroy() }

func (s *ImageViewer) Show() {
	if !s.show() {
		return
	}
	s.pull()
}

func (s *ImageViewer) Hide() { s.hide() }

func (s *ImageViewer) Update() {
	if s.shown && s.pull() {
		s.engine.Invalidate()
	}
}

// pull copies the latest upload into render-side fields.
func (s *ImageViewer) pull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == s.drawnGen {
		return false
	}
	s.drawnGen = s.gen
	s.shownImg, s.shownCap = s.img, s.caption
	return true
}

func (s *ImageViewer) Draw(d render.Drawer) {
	theme := d.Theme()
	area := d.Bounds()
	if s.shownImg == nil {
		d.DrawTextInRect("No image", area, render.TextStyle{Color: theme.Muted, Align: render.TextAlignCenter})
		return
	}
	if s.shownCap != "" {
		var capRow image.Rectangle
		area, capRow = layout.SplitHorizontal(area, area.Dy()-max(18, area.Dy()/8))
		d.DrawTextInRect(s.shownCap, capRow, render.TextStyle{Color: theme.Foreground, Align: render.TextAlignCenter})
	}
	d.DrawImageInRect(s.shownImg, area, render.ScaleModeFit)
}
