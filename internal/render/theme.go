package render

import "image/color"

// Theme holds the palette screens draw with.
type Theme struct {
	Background color.RGBA
	Foreground color.RGBA
	Accent     color.RGBA
	Muted      color.RGBA
}

// DefaultTheme is the RooK palette: violet on yellow.
var DefaultTheme = Theme{
	Background: color.RGBA{R: 0xFF, G: 0xDC, B: 0x00, A: 0xFF}, // #ffdc00
	Foreground: color.RGBA{R: 0x90, G: 0x00, B: 0xFF, A: 0xFF}, // #9000ff
	Accent:     color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xFF},
	Muted:      color.RGBA{R: 0x80, G: 0x6E, B: 0x00, A: 0xFF},
}

// DarkTheme is used on panels where the yellow background is too bright.
var DarkTheme = Theme{
	Background: color.RGBA{R: 0x10, G: 0x10, B: 0x14, A: 0xFF},
	Foreground: color.RGBA{R: 0xFF, G: 0xDC, B: 0x00, A: 0xFF},
	Accent:     color.RGBA{R: 0x90, G: 0x00, B: 0xFF, A: 0xFF},
	Muted:      color.RGBA{R: 0x70, G: 0x70, B: 0x78, A: 0xFF},
}

// ThemeByName returns the named theme, falling back to DefaultTheme.
func ThemeByName(name string) Theme {
	if name == "dark" {
		return DarkTheme
	}
	return DefaultTheme
}
