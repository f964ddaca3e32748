package driver

import (
	"errors"
	"image"
	"image/color"
	"sync"
)

// MemoryStats counts what reached a Memory driver.
type MemoryStats struct {
	Inits        int
	Presents     int
	Pushes       int
	PixelsPushed int
	Writes       int
}

// Memory is an in-process RGB565 panel. The simulator renders into it and
// tests use it to observe flush/present traffic.
type Memory struct {
	mu sync.Mutex

	mode          RenderMode
	nativeW       int
	nativeH       int
	width, height int
	rotation      Rotation

	// InitErr, when set before Init, makes Init fail.
	InitErr error
	// NoBacklightControl limits the backlight to on/off.
	NoBacklightControl bool

	panel  []uint16
	canvas []uint16

	window  image.Rectangle
	cursor  int
	writing bool

	backlightOn bool
	brightness  uint8

	stats MemoryStats
}

func NewMemory(width, height int, mode RenderMode) *Memory {
	return &Memory{
		mode:    mode,
		nativeW: width,
		nativeH: height,
		width:   width,
		height:  height,
	}
}

func (m *Memory) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Inits++
	if m.InitErr != nil {
		return m.InitErr
	}
	if m.width <= 0 || m.height <= 0 {
		return errors.New("memory panel: width and height must be positive")
	}
	m.allocLocked()
	m.backlightOn = true
	m.brightness = 100
	return nil
}

func (m *Memory) allocLocked() {
	m.panel = make([]uint16, m.width*m.height)
	if m.mode == Buffered {
		m.canvas = make([]uint16, m.width*m.height)
	} else {
		m.canvas = nil
	}
}

func (m *Memory) SetRotation(r Rotation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotation = r
	if r.SwapsAxes() {
		m.width, m.height = m.nativeH, m.nativeW
	} else {
		m.width, m.height = m.nativeW, m.nativeH
	}
	if m.panel != nil {
		m.allocLocked()
	}
}

func (m *Memory) Width() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.width
}

func (m *Memory) Height() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height
}

func (m *Memory) SetBacklight(on bool) {
	m.mu.Lock()
	m.backlightOn = on
	if on && m.brightness == 0 {
		m.brightness = 100
	}
	m.mu.Unlock()
}

func (m *Memory) SetBrightness(percent uint8) {
	m.mu.Lock()
	m.brightness = clampPercent(percent)
	m.backlightOn = m.brightness > 0
	m.mu.Unlock()
}

func (m *Memory) Brightness() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.backlightOn {
		return 0
	}
	return m.brightness
}

func (m *Memory) HasBacklightControl() bool { return !m.NoBacklightControl }

func (m *Memory) BeginWrite() {
	m.mu.Lock()
	m.writing = true
	m.mu.Unlock()
}

func (m *Memory) SetWindow(x, y, w, h int) {
	m.mu.Lock()
	m.window = image.Rect(x, y, x+w, y+h).Intersect(image.Rect(0, 0, m.width, m.height))
	m.cursor = 0
	m.mu.Unlock()
}

func (m *Memory) PushPixels(px []uint16, byteSwap bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Pushes++
	m.stats.PixelsPushed += len(px)
	target := m.panel
	if m.mode == Buffered {
		target = m.canvas
	}
	if target == nil || m.window.Empty() {
		return
	}
	w := m.window.Dx()
	for _, p := range px {
		if m.cursor >= w*m.window.Dy() {
			return
		}
		x := m.window.Min.X + m.cursor%w
		y := m.window.Min.Y + m.cursor/w
		target[y*m.width+x] = p
		m.cursor++
	}
}

func (m *Memory) EndWrite() {
	m.mu.Lock()
	if m.writing {
		m.stats.Writes++
	}
	m.writing = false
	m.mu.Unlock()
}

func (m *Memory) RenderMode() RenderMode { return m.mode }

func (m *Memory) Present() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != Buffered || m.canvas == nil {
		return
	}
	m.stats.Presents++
	copy(m.panel, m.canvas)
}

func (m *Memory) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// PixelAt returns the raw panel value at (x, y), or 0 outside the panel.
func (m *Memory) PixelAt(x, y int) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panel == nil || x < 0 || y < 0 || x >= m.width || y >= m.height {
		return 0
	}
	return m.panel[y*m.width+x]
}

// Snapshot renders the visible panel, dimmed by the backlight level.
func (m *Memory) Snapshot() *image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	if m.panel == nil {
		return img
	}
	level := uint32(m.brightness)
	if !m.backlightOn {
		level = 0
	}
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			c := ColorFrom565(m.panel[y*m.width+x])
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(uint32(c.R) * level / 100),
				G: uint8(uint32(c.G) * level / 100),
				B: uint8(uint32(c.B) * level / 100),
				A: 0xFF,
			})
		}
	}
	return img
}
