package screens

import (
	"image"
	"strings"
	"sync"
	"time"

	"github.com/rook-computer/panelcore/internal/render"
	"github.com/rook-computer/panelcore/internal/render/layout"
)

const spinnerPeriod = 250 * time.Millisecond

// Splash is the boot screen: product name, a status line and a spinner.
type Splash struct {
	sceneScreen
	title string

	mu     sync.Mutex
	status string
	seen   string

	spinner *render.Timer
	phase   int
}

func NewSplash(engine *render.Engine, title string) *Splash {
	s := &Splash{title: title}
	s.engine = engine
	s.scene = s
	return s
}

// SetStatus may be called from any goroutine.
func (s *Splash) SetStatus(text string) {
	s.mu.Lock()
	s.status = statusLine(text, 48)
	s.mu.Unlock()
}

func (s *Splash) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Splash) Create() {
	if !s.create() {
		return
	}
	s.spinner = s.engine.AddTimer(spinnerPeriod, func() {
		s.phase = (s.phase + 1) % 4
		s.engine.InvalidateRect(s.statusArea())
	})
	s.spinner.Pause()
}

func (s *Splash) Destroy() {
	if !s.destroy() {
		return
	}
	s.spinner.Delete()
	s.spinner = nil
}

func (s *Splash) Show() {
	if !s.show() {
		return
	}
	s.seen = s.Status()
	if s.spinner != nil {
		s.spinner.Resume(s.engine.Now())
	}
}

func (s *Splash) Hide() {
	if !s.hide() {
		return
	}
	if s.spinner != nil {
		s.spinner.Pause()
	}
}

func (s *Splash) Update() {
	if !s.shown {
		return
	}
	if st := s.Status(); st != s.seen {
		s.seen = st
		s.engine.InvalidateRect(s.statusArea())
	}
}

// statusArea is the part of the splash below the title that Draw puts the
// status line and spinner in.
func (s *Splash) statusArea() image.Rectangle {
	w, h := s.engine.Width(), s.engine.Height()
	return image.Rect(0, h*3/5, w, h)
}

func (s *Splash) Draw(d render.Drawer) {
	theme := d.Theme()
	_, h := d.Size()
	top, bottom := layout.SplitHorizontal(d.Bounds(), h*3/5)
	d.DrawHeadline(s.title, top, float64(h)/5, theme.Foreground)

	statusRow, spinnerRow := layout.SplitHorizontal(bottom, bottom.Dy()/2)
	d.DrawTextInRect(s.seen, statusRow, render.TextStyle{Color: theme.Accent, Size: max(12, h/16), Align: render.TextAlignCenter})

	dot := max(4, h/40)
	dots := layout.Center(spinnerRow, dot*7, dot)
	for i := 0; i < 4; i++ {
		c := theme.Muted
		if i == s.phase {
			c = theme.Foreground
		}
		x := dots.Min.X + i*dot*2
		d.FillRect(image.Rect(x, dots.Min.Y, x+dot, dots.Min.Y+dot), c)
	}
}

// statusLine trims text to something that fits one line on small panels.
func statusLine(text string, limit int) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if limit > 3 && len(text) > limit {
		return text[:limit-3] + "..."
	}
	return text
}
