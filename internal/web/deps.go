package web

import (
	"context"
	"image"
	"time"

	"github.com/rook-computer/panelcore/internal/config"
	"github.com/rook-computer/panelcore/internal/display"
	"github.com/rook-computer/panelcore/internal/logging"
	"github.com/rook-computer/panelcore/internal/saver"
)

// Screens is the part of the display coordinator the API drives.
type Screens interface {
	Screens() []display.ScreenInfo
	CurrentScreenID() string
	RequestShow(id string) bool
}

// Power is the screen saver as seen by the API. Every call only deposits a
// request; the render goroutine applies it.
type Power interface {
	Status() saver.Status
	SleepNow()
	Wake()
	NotifyActivity(wake bool)
	Retarget()
}

// Images puts uploaded pictures on the panel.
type Images interface {
	ShowImage(ctx context.Context, img image.Image, timeout time.Duration) error
	DismissImage(ctx context.Context)
	ShowViewer(img image.Image, caption string) error
}

type ConfigStore interface {
	Snapshot() config.Config
	Replace(cfg config.Config) (config.Config, error)
	SetBrightness(percent int) uint8
	Save() error
}

// InfoProvider backs GET /api/v1/info.
type InfoProvider interface {
	Info(ctx context.Context) Info
}

type InfoProviderFunc func(ctx context.Context) Info

func (f InfoProviderFunc) Info(ctx context.Context) Info { return f(ctx) }

type Info struct {
	DeviceName string  `json:"device_name"`
	Version    string  `json:"version"`
	Phase      string  `json:"phase"`
	IP         string  `json:"ip"`
	URL        string  `json:"url"`
	UptimeSec  int64   `json:"uptime_seconds"`
	MemUsedPct float64 `json:"mem_used_pct"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
}

const (
	DefaultImageTimeout = 10 * time.Second
	MaxImageTimeout     = 24 * time.Hour
	DefaultMaxImageSize = 1 << 20
	// DefaultMaxImagePixels applies when no panel size is known: four
	// 480x320 screens.
	DefaultMaxImagePixels = 4 * 480 * 320
)

type APIV1Deps struct {
	Screens Screens
	Power   Power
	Images  Images
	Config  ConfigStore
	Info    InfoProvider
	Logger  logging.Logger

	// MaxImageBytes caps image uploads.
	MaxImageBytes int64
	// MaxImagePixels caps the decoded size claimed by an upload's header.
	// It is a func because the panel size is only known after init.
	MaxImagePixels func() int
}

func (d APIV1Deps) withDefaults() APIV1Deps {
	out := d
	out.Logger = logging.OrNoop(out.Logger)
	if out.MaxImageBytes <= 0 {
		out.MaxImageBytes = DefaultMaxImageSize
	}
	return out
}

func (d APIV1Deps) maxImagePixels() int {
	if d.MaxImagePixels != nil {
		if n := d.MaxImagePixels(); n > 0 {
			return n
		}
	}
	return DefaultMaxImagePixels
}
