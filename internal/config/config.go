// Package config holds the persisted device configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rook-computer/panelcore/internal/saver"
)

const DefaultPath = "/etc/panelcore/config.json"

const (
	EnvDeviceName = "PANELCORE_DEVICE_NAME"
	EnvRotation   = "PANELCORE_ROTATION"
	EnvBrightness = "PANELCORE_BRIGHTNESS"
	EnvTheme      = "PANELCORE_THEME"
)

var ErrInvalid = errors.New("invalid config")

// MaxTimeoutSeconds caps the screen saver timeout at about 18 hours.
const MaxTimeoutSeconds = math.MaxUint16

type ScreenSaver struct {
	Enabled        bool   `json:"enabled"`
	TimeoutSeconds uint32 `json:"timeout_seconds"`
	FadeOutMillis  uint32 `json:"fade_out_ms"`
	FadeInMillis   uint32 `json:"fade_in_ms"`
	WakeOnTouch    bool   `json:"wake_on_touch"`
}

type Display struct {
	// Rotation in quarter turns, 0..3.
	Rotation       int    `json:"rotation"`
	BufferLines    int    `json:"buffer_lines"`
	MinDelayMillis int    `json:"min_delay_ms"`
	MaxDelayMillis int    `json:"max_delay_ms"`
	DefaultScreen  string `json:"default_screen"`
	Theme          string `json:"theme"`
}

type Touch struct {
	Device  string `json:"device"`
	XMin    int    `json:"x_min"`
	XMax    int    `json:"x_max"`
	YMin    int    `json:"y_min"`
	YMax    int    `json:"y_max"`
	SwapXY  bool   `json:"swap_xy"`
	InvertX bool   `json:"invert_x"`
	InvertY bool   `json:"invert_y"`
}

type Config struct {
	DeviceName  string      `json:"device_name"`
	Brightness  int         `json:"backlight_brightness"`
	ScreenSaver ScreenSaver `json:"screen_saver"`
	Display     Display     `json:"display"`
	Touch       Touch       `json:"touch"`
}

func Default() Config {
	return Config{
		DeviceName: "panelcore",
		Brightness: 100,
		ScreenSaver: ScreenSaver{
			Enabled:        false,
			TimeoutSeconds: 300,
			FadeOutMillis:  800,
			FadeInMillis:   400,
			WakeOnTouch:    true,
		},
		Display: Display{
			Rotation:       1,
			BufferLines:    40,
			MinDelayMillis: 1,
			MaxDelayMillis: 20,
			DefaultScreen:  "info",
			Theme:          "rook",
		},
	}
}

// Normalize clamps values into range and rejects what cannot be repaired.
func (c *Config) Normalize() error {
	c.DeviceName = strings.TrimSpace(c.DeviceName)
	if c.DeviceName == "" {
		c.DeviceName = Default().DeviceName
	}
	c.Brightness = min(max(c.Brightness, 0), 100)
	c.ScreenSaver.TimeoutSeconds = min(c.ScreenSaver.TimeoutSeconds, MaxTimeoutSeconds)
	c.ScreenSaver.FadeOutMillis = min(c.ScreenSaver.FadeOutMillis, math.MaxUint16)
	c.ScreenSaver.FadeInMillis = min(c.ScreenSaver.FadeInMillis, math.MaxUint16)
	if c.Display.Rotation < 0 || c.Display.Rotation > 3 {
		return fmt.Errorf("%w: rotation %d not in 0..3", ErrInvalid, c.Display.Rotation)
	}
	if c.Display.BufferLines < 0 {
		return fmt.Errorf("%w: buffer_lines %d", ErrInvalid, c.Display.BufferLines)
	}
	if c.Display.MinDelayMillis < 0 || c.Display.MaxDelayMillis < 0 {
		return fmt.Errorf("%w: negative loop delay", ErrInvalid)
	}
	if c.Display.MaxDelayMillis > 0 && c.Display.MinDelayMillis > c.Display.MaxDelayMillis {
		return fmt.Errorf("%w: min_delay_ms %d > max_delay_ms %d", ErrInvalid,
			c.Display.MinDelayMillis, c.Display.MaxDelayMillis)
	}
	return nil
}

// ApplyEnv overrides fields from PANELCORE_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvDeviceName); v != "" {
		c.DeviceName = v
	}
	if v := getenv(EnvTheme); v != "" {
		c.Display.Theme = v
	}
	if v := getenv(EnvRotation); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer (got %q): %w", EnvRotation, v, err)
		}
		c.Display.Rotation = n
	}
	if v := getenv(EnvBrightness); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer (got %q): %w", EnvBrightness, v, err)
		}
		c.Brightness = n
	}
	return c.Normalize()
}

// Store is the in-RAM config plus the file it persists to. An empty path
// keeps the config in memory only.
type Store struct {
	path string

	mu  sync.RWMutex
	cfg Config
}

func NewStore(path string, cfg Config) *Store {
	return &Store{path: path, cfg: cfg}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Store, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
			}
		}
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return NewStore(path, cfg), nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update applies fn to a copy, validates it and publishes it. It does not
// persist; call Save for that.
func (s *Store) Update(fn func(*Config)) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg
	fn(&next)
	if err := next.Normalize(); err != nil {
		return s.cfg, err
	}
	s.cfg = next
	return next, nil
}

// Replace validates cfg and publishes it.
func (s *Store) Replace(cfg Config) (Config, error) {
	return s.Update(func(c *Config) { *c = cfg })
}

// SetBrightness changes the in-RAM backlight target.
func (s *Store) SetBrightness(percent int) uint8 {
	cfg, _ := s.Update(func(c *Config) { c.Brightness = percent })
	return uint8(cfg.Brightness)
}

// Save writes the current config via a temp file and rename.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("save config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// SaverConfig implements saver.ConfigSource.
func (s *Store) SaverConfig() saver.Config {
	c := s.Snapshot()
	return saver.Config{
		Enabled:        c.ScreenSaver.Enabled,
		TimeoutSeconds: c.ScreenSaver.TimeoutSeconds,
		FadeOutMillis:  uint16(c.ScreenSaver.FadeOutMillis),
		FadeInMillis:   uint16(c.ScreenSaver.FadeInMillis),
		WakeOnTouch:    c.ScreenSaver.WakeOnTouch,
		Brightness:     uint8(c.Brightness),
	}
}
