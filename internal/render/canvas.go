package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// canvasDrawer implements Drawer on the engine's RGBA canvas.
type canvasDrawer struct {
	img   *image.RGBA
	fonts *Fonts
	theme Theme
}

func (d *canvasDrawer) Size() (int, int) {
	b := d.img.Bounds()
	return b.Dx(), b.Dy()
}

func (d *canvasDrawer) Bounds() image.Rectangle { return d.img.Bounds() }
func (d *canvasDrawer) Theme() Theme            { return d.theme }

func (d *canvasDrawer) Fill(c color.Color) {
	draw.Draw(d.img, d.img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func (d *canvasDrawer) FillRect(rect image.Rectangle, c color.Color) {
	draw.Draw(d.img, rect.Intersect(d.img.Bounds()), &image.Uniform{C: c}, image.Point{}, draw.Over)
}

func (d *canvasDrawer) textColor(style TextStyle) color.Color {
	if style.Color == nil {
		return d.theme.Foreground
	}
	return style.Color
}

func (d *canvasDrawer) MeasureText(text string, style TextStyle) TextMetrics {
	face := d.fonts.Face(style)
	m := face.Metrics()
	return TextMetrics{
		Width:      font.MeasureString(face, text).Ceil(),
		Height:     (m.Ascent + m.Descent).Ceil(),
		Ascent:     m.Ascent.Ceil(),
		Descent:    m.Descent.Ceil(),
		LineHeight: m.Height.Ceil(),
	}
}

func (d *canvasDrawer) DrawText(text string, x, y int, style TextStyle) TextMetrics {
	metrics := d.MeasureText(text, style)
	switch style.Align {
	case TextAlignCenter:
		x -= metrics.Width / 2
	case TextAlignRight:
		x -= metrics.Width
	}
	drawer := &font.Drawer{
		Dst:  d.img,
		Src:  image.NewUniform(d.textColor(style)),
		Face: d.fonts.Face(style),
		Dot:  fixed.P(x, y+metrics.Ascent),
	}
	drawer.DrawString(text)
	return metrics
}

func (d *canvasDrawer) DrawTextInRect(text string, rect image.Rectangle, style TextStyle) TextMetrics {
	metrics := d.MeasureText(text, style)
	y := rect.Min.Y + (rect.Dy()-metrics.Height)/2
	x := rect.Min.X
	switch style.Align {
	case TextAlignCenter:
		x = rect.Min.X + rect.Dx()/2
	case TextAlignRight:
		x = rect.Max.X
	}
	return d.DrawText(text, x, y, style)
}

func (d *canvasDrawer) DrawHeadline(text string, rect image.Rectangle, sizePx float64, c color.Color) {
	ttf, err := d.fonts.Headline()
	if err != nil {
		d.DrawTextInRect(text, rect, TextStyle{Color: c, Size: int(sizePx), Bold: true, Align: TextAlignCenter})
		return
	}
	if c == nil {
		c = d.theme.Foreground
	}
	face := truetype.NewFace(ttf, &truetype.Options{Size: sizePx, DPI: 72})
	defer face.Close()
	width := font.MeasureString(face, text).Ceil()
	m := face.Metrics()
	ascent := m.Ascent.Ceil()
	height := ascent + m.Descent.Ceil()

	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(ttf)
	ctx.SetFontSize(sizePx)
	ctx.SetClip(rect.Intersect(d.img.Bounds()))
	ctx.SetDst(d.img)
	ctx.SetSrc(image.NewUniform(c))
	ctx.SetHinting(font.HintingFull)

	x := rect.Min.X + (rect.Dx()-width)/2
	y := rect.Min.Y + (rect.Dy()-height)/2 + ascent
	_, _ = ctx.DrawString(text, freetype.Pt(x, y))
}

func (d *canvasDrawer) DrawImageInRect(img image.Image, rect image.Rectangle, mode ScaleMode) {
	if img == nil || rect.Empty() {
		return
	}
	dst := fitRect(img.Bounds(), rect, mode)
	clip := dst.Intersect(rect).Intersect(d.img.Bounds())
	if clip.Empty() {
		return
	}
	// Scale into the full destination, then composite only the clipped part
	// so Fill mode crops instead of spilling outside rect.
	temp := image.NewRGBA(dst)
	xdraw.ApproxBiLinear.Scale(temp, dst, img, img.Bounds(), xdraw.Src, nil)
	draw.Draw(d.img, clip, temp, clip.Min, draw.Over)
}

// fitRect returns where src lands inside rect for mode.
func fitRect(src, rect image.Rectangle, mode ScaleMode) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw <= 0 || sh <= 0 || mode == ScaleModeStretch {
		return rect
	}
	rw, rh := rect.Dx(), rect.Dy()
	// Compare sw/sh with rw/rh without floats.
	wider := sw*rh > rw*sh
	var w, h int
	if wider == (mode == ScaleModeFit) {
		w = rw
		h = sh * rw / sw
	} else {
		h = rh
		w = sw * rh / sh
	}
	x := rect.Min.X + (rw-w)/2
	y := rect.Min.Y + (rh-h)/2
	return image.Rect(x, y, x+w, y+h)
}
