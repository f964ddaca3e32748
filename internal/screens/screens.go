// Package screens holds the concrete views the device can show. Each one is
// a render.Screen; they do not know about each other.
//
// Lifecycle methods run with the display lock held. Setters meant for other
// goroutines (SetStatus, SetImage, ...) only touch screen-local state behind
// a mutex and let the next Update pick the change up.
package screens

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rook-computer/panelcore/internal/render"
)

// Registry ids.
const (
	IDInfo        = "info"
	IDTest        = "test"
	IDDirectImage = "image"
	IDViewer      = "viewer"
)

// sceneScreen is the show/hide bookkeeping shared by engine-backed screens.
type sceneScreen struct {
	engine  *render.Engine
	scene   render.Scene
	created bool
	shown   bool
}

func (s *sceneScreen) create() bool {
	if s.created {
		return false
	}
	s.created = true
	return true
}

func (s *sceneScreen) destroy() bool {
	if !s.created {
		return false
	}
	s.created = false
	s.shown = false
	return true
}

// show loads the scene; it reports false when the screen was already shown.
func (s *sceneScreen) show() bool {
	if s.shown {
		return false
	}
	s.shown = true
	s.engine.Load(s.scene)
	return true
}

func (s *sceneScreen) hide() bool {
	if !s.shown {
		return false
	}
	s.shown = false
	return true
}

// ErrImageTooLarge is returned when an image header claims more pixels than
// allowed.
var ErrImageTooLarge = errors.New("image too large")

// DecodeImage decodes a JPEG or PNG upload. The header is checked first so a
// small file claiming huge dimensions is rejected before any pixel buffer is
// allocated. maxPixels <= 0 disables the check.
func DecodeImage(data []byte, maxPixels int) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode image: empty body")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("decode image: bad size %dx%d", cfg.Width, cfg.Height)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
