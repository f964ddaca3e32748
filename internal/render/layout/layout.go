// Package layout splits panel rectangles. Panels are small, so every helper
// clamps instead of failing.
package layout

import "image"

// Inset shrinks rect by paddingPx on all sides.
func Inset(rect image.Rectangle, paddingPx int) image.Rectangle {
	if paddingPx <= 0 {
		return rect
	}
	// A literal, not image.Rect: crossed edges must stay crossed to be caught.
	out := image.Rectangle{
		Min: image.Pt(rect.Min.X+paddingPx, rect.Min.Y+paddingPx),
		Max: image.Pt(rect.Max.X-paddingPx, rect.Max.Y-paddingPx),
	}
	if out.Dx() <= 0 || out.Dy() <= 0 {
		c := image.Pt(rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2)
		return image.Rectangle{Min: c, Max: c}
	}
	return out
}

// SplitHorizontal splits rect into top and bottom parts.
// topHeightPx is clamped to [0, rect.Dy()].
func SplitHorizontal(rect image.Rectangle, topHeightPx int) (top image.Rectangle, bottom image.Rectangle) {
	rect = rect.Canon()
	topHeightPx = clamp(topHeightPx, 0, rect.Dy())
	top = image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+topHeightPx)
	bottom = image.Rect(rect.Min.X, rect.Min.Y+topHeightPx, rect.Max.X, rect.Max.Y)
	return top, bottom
}

// SplitVertical splits rect into left and right parts.
// leftWidthPx is clamped to [0, rect.Dx()].
func SplitVertical(rect image.Rectangle, leftWidthPx int) (left image.Rectangle, right image.Rectangle) {
	rect = rect.Canon()
	leftWidthPx = clamp(leftWidthPx, 0, rect.Dx())
	left = image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+leftWidthPx, rect.Max.Y)
	right = image.Rect(rect.Min.X+leftWidthPx, rect.Min.Y, rect.Max.X, rect.Max.Y)
	return left, right
}

// Rows cuts rect into n equal-height rows. The last row absorbs the rest.
func Rows(rect image.Rectangle, n int) []image.Rectangle {
	if n <= 0 {
		return nil
	}
	rect = rect.Canon()
	h := rect.Dy() / n
	out := make([]image.Rectangle, n)
	for i := range out {
		y0 := rect.Min.Y + i*h
		y1 := y0 + h
		if i == n-1 {
			y1 = rect.Max.Y
		}
		out[i] = image.Rect(rect.Min.X, y0, rect.Max.X, y1)
	}
	return out
}

// Columns cuts rect into n equal-width columns.
func Columns(rect image.Rectangle, n int) []image.Rectangle {
	if n <= 0 {
		return nil
	}
	rect = rect.Canon()
	w := rect.Dx() / n
	out := make([]image.Rectangle, n)
	for i := range out {
		x0 := rect.Min.X + i*w
		x1 := x0 + w
		if i == n-1 {
			x1 = rect.Max.X
		}
		out[i] = image.Rect(x0, rect.Min.Y, x1, rect.Max.Y)
	}
	return out
}

// Center returns a w×h rectangle centred in rect, clamped to its size.
func Center(rect image.Rectangle, w, h int) image.Rectangle {
	rect = rect.Canon()
	w = clamp(w, 0, rect.Dx())
	h = clamp(h, 0, rect.Dy())
	x := rect.Min.X + (rect.Dx()-w)/2
	y := rect.Min.Y + (rect.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// FitSquare returns the largest square that fits into rect, centred.
func FitSquare(rect image.Rectangle) image.Rectangle {
	size := min(rect.Dx(), rect.Dy())
	return Center(rect, size, size)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
