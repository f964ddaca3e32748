package render

import (
	"fmt"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/rook-computer/panelcore/internal/assets"
	"github.com/rook-computer/panelcore/internal/logging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

const defaultTextSize = 16

type faceKey struct {
	bold bool
	mono bool
	size int
}

// Fonts parses the embedded fonts once and caches faces per size.
// A font that fails to parse falls back to basicfont.
type Fonts struct {
	mu sync.Mutex

	regular *opentype.Font
	bold    *opentype.Font
	mono    *opentype.Font

	// headline is parsed separately for the freetype rasteriser.
	headline *truetype.Font

	faces  map[faceKey]font.Face
	logger logging.Logger
}

func LoadFonts(logger logging.Logger) *Fonts {
	f := &Fonts{faces: make(map[faceKey]font.Face), logger: logging.OrNoop(logger)}
	f.regular = f.parse("regular", assets.FontRegular)
	f.bold = f.parse("bold", assets.FontBold)
	f.mono = f.parse("mono", assets.FontMono)
	tt, err := truetype.Parse(assets.FontBold)
	if err != nil {
		f.logger.Errorf("render", "truetype parse failed: %v", err)
	} else {
		f.headline = tt
	}
	return f
}

func (f *Fonts) parse(name string, data []byte) *opentype.Font {
	fnt, err := opentype.Parse(data)
	if err != nil {
		f.logger.Errorf("render", "font %s parse failed, using basicfont: %v", name, err)
		return nil
	}
	return fnt
}

// Face returns a cached face for style.
func (f *Fonts) Face(style TextStyle) font.Face {
	size := style.Size
	if size <= 0 {
		size = defaultTextSize
	}
	key := faceKey{bold: style.Bold, mono: style.Mono, size: size}

	f.mu.Lock()
	defer f.mu.Unlock()
	if face, ok := f.faces[key]; ok {
		return face
	}
	src := f.regular
	switch {
	case style.Mono:
		src = f.mono
	case style.Bold:
		src = f.bold
	}
	var face font.Face = basicfont.Face7x13
	if src != nil {
		ff, err := opentype.NewFace(src, &opentype.FaceOptions{Size: float64(size), DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			f.logger.Errorf("render", "face %+v: %v", key, err)
		} else {
			face = ff
		}
	}
	f.faces[key] = face
	return face
}

// Headline returns the truetype font used for large text, or an error if
// it could not be parsed.
func (f *Fonts) Headline() (*truetype.Font, error) {
	if f.headline == nil {
		return nil, fmt.Errorf("headline font unavailable")
	}
	return f.headline, nil
}
