package screens

import (
	"image"
	"image/color"
	"time"

	"github.com/rook-computer/panelcore/internal/render"
	"github.com/rook-computer/panelcore/internal/render/layout"
)

// Pattern is one of the panel test patterns.
type Pattern int

const (
	PatternBars Pattern = iota
	PatternGradient
	PatternChecker
	PatternWhite
	patternCount
)

func (p Pattern) String() string {
	switch p {
	case PatternBars:
		return "bars"
	case PatternGradient:
		return "gradient"
	case PatternChecker:
		return "checker"
	case PatternWhite:
		return "white"
	default:
		return "unknown"
	}
}

var barColors = []color.RGBA{
	{0xFF, 0xFF, 0xFF, 0xFF},
	{0xFF, 0xFF, 0x00, 0xFF},
	{0x00, 0xFF, 0xFF, 0xFF},
	{0x00, 0xFF, 0x00, 0xFF},
	{0xFF, 0x00, 0xFF, 0xFF},
	{0xFF, 0x00, 0x00, 0xFF},
	{0x00, 0x00, 0xFF, 0xFF},
	{0x00, 0x00, 0x00, 0xFF},
}

// Test cycles through panel test patterns. A tap advances immediately.
type Test struct {
	sceneScreen
	period  time.Duration
	timer   *render.Timer
	pattern Pattern
}

// NewTest builds the test screen; period <= 0 disables auto-advance.
func NewTest(engine *render.Engine, period time.Duration) *Test {
	s := &Test{period: period}
	s.engine = engine
	s.scene = s
	return s
}

func (s *Test) Pattern() Pattern { return s.pattern }

func (s *Test) Create() {
	if !s.create() || s.period <= 0 {
		return
	}
	s.timer = s.engine.AddTimer(s.period, s.advance)
	s.timer.Pause()
}

func (s *Test) Destroy() {
	if !s.destroy() || s.timer == nil {
		return
	}
	s.timer.Delete()
	s.timer = nil
}

func (s *Test) Show() {
	if !s.show() {
		return
	}
	s.pattern = PatternBars
	if s.timer != nil {
		s.timer.Resume(s.engine.Now())
	}
}

func (s *Test) Hide() {
	if !s.hide() || s.timer == nil {
		return
	}
	s.timer.Pause()
}

func (s *Test) Update() {}

func (s *Test) advance() {
	s.pattern = (s.pattern + 1) % patternCount
	s.engine.Invalidate()
}

func (s *Test) HandleTouch(ev render.TouchEvent) {
	if ev.Kind == render.TouchPressed {
		s.advance()
	}
}

func (s *Test) Draw(d render.Drawer) {
	b := d.Bounds()
	switch s.pattern {
	case PatternBars:
		for i, col := range layout.Columns(b, len(barColors)) {
			d.FillRect(col, barColors[i])
		}
	case PatternGradient:
		w := max(1, b.Dx()-1)
		for x := b.Min.X; x < b.Max.X; x++ {
			v := uint8((x - b.Min.X) * 0xFF / w)
			d.FillRect(image.Rect(x, b.Min.Y, x+1, b.Max.Y), color.RGBA{v, v, v, 0xFF})
		}
	case PatternChecker:
		d.Fill(color.Black)
		cell := max(4, min(b.Dx(), b.Dy())/8)
		for y := b.Min.Y; y < b.Max.Y; y += cell {
			for x := b.Min.X; x < b.Max.X; x += cell {
				if ((x-b.Min.X)/cell+(y-b.Min.Y)/cell)%2 == 0 {
					d.FillRect(image.Rect(x, y, x+cell, y+cell), color.White)
				}
			}
		}
	case PatternWhite:
		d.Fill(color.White)
	}
	label := image.Rect(b.Min.X, b.Max.Y-max(16, b.Dy()/10), b.Max.X, b.Max.Y)
	d.FillRect(label, color.RGBA{0, 0, 0, 0xA0})
	d.DrawTextInRect(s.pattern.String(), label, render.TextStyle{Color: color.White, Align: render.TextAlignCenter})
}
