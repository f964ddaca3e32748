package driver

import (
	"errors"
	"fmt"
	"time"

	"github.com/rook-computer/panelcore/internal/logging"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// MIPI DCS commands understood by the ST77xx/ILI9xxx family.
const (
	cmdSoftReset   = 0x01
	cmdSleepOut    = 0x11
	cmdNormalOn    = 0x13
	cmdInvertOn    = 0x21
	cmdDisplayOn   = 0x29
	cmdColumnAddr  = 0x2A
	cmdRowAddr     = 0x2B
	cmdMemoryWrite = 0x2C
	cmdMADCTL      = 0x36
	cmdPixelFormat = 0x3A

	madctlMY  = 0x80
	madctlMX  = 0x40
	madctlMV  = 0x20
	madctlBGR = 0x08

	pixelFormat16 = 0x55
)

// SPIPanelOpts configures a 16-bit SPI panel.
type SPIPanelOpts struct {
	Width  int // native (rotation 0) width
	Height int // native (rotation 0) height

	// Offsets of the visible area inside controller RAM.
	XOffset int
	YOffset int

	BGR    bool
	Invert bool

	// SoftwareRotation keeps the panel in its native orientation and asks
	// the render engine to rotate instead.
	SoftwareRotation bool

	Speed         physic.Frequency // default 40MHz
	BacklightFreq physic.Frequency // default 1kHz
}

// SPIPanel is a Direct driver: every flush goes out on the bus immediately.
type SPIPanel struct {
	opts SPIPanelOpts

	port spi.Port
	dc   gpio.PinOut
	rst  gpio.PinOut
	bl   gpio.PinOut

	c        spi.Conn
	maxTx    int
	scratch  []byte
	rotation Rotation

	width, height int
	brightness    uint8

	logger  logging.Logger
	lastErr error
}

// NewSPIPanel records the wiring; no bus traffic happens until Init.
// rst and bl may be nil.
func NewSPIPanel(port spi.Port, dc, rst, bl gpio.PinOut, opts SPIPanelOpts, logger logging.Logger) *SPIPanel {
	if opts.Speed == 0 {
		opts.Speed = 40 * physic.MegaHertz
	}
	if opts.BacklightFreq == 0 {
		opts.BacklightFreq = physic.KiloHertz
	}
	return &SPIPanel{
		opts:       opts,
		port:       port,
		dc:         dc,
		rst:        rst,
		bl:         bl,
		width:      opts.Width,
		height:     opts.Height,
		brightness: 100,
		logger:     logging.OrNoop(logger),
	}
}

func (p *SPIPanel) Init() error {
	if p.port == nil || p.dc == nil {
		return errors.New("spi panel: port and dc pin are required")
	}
	if p.opts.Width <= 0 || p.opts.Height <= 0 {
		return errors.New("spi panel: width and height must be positive")
	}
	c, err := p.port.Connect(p.opts.Speed, spi.Mode0, 8)
	if err != nil {
		return fmt.Errorf("spi panel: connect: %w", err)
	}
	p.c = c
	p.maxTx = 4096
	if l, ok := c.(conn.Limits); ok && l.MaxTxSize() > 0 {
		p.maxTx = l.MaxTxSize()
	}

	if p.rst != nil {
		if err := p.rst.Out(gpio.Low); err != nil {
			return fmt.Errorf("spi panel: reset low: %w", err)
		}
		time.Sleep(20 * time.Millisecond)
		if err := p.rst.Out(gpio.High); err != nil {
			return fmt.Errorf("spi panel: reset high: %w", err)
		}
		time.Sleep(120 * time.Millisecond)
	}

	steps := []struct {
		cmd   byte
		data  []byte
		pause time.Duration
	}{
		{cmdSoftReset, nil, 150 * time.Millisecond},
		{cmdSleepOut, nil, 120 * time.Millisecond},
		{cmdPixelFormat, []byte{pixelFormat16}, 0},
		{cmdMADCTL, []byte{p.madctl(p.rotation)}, 0},
		{cmdNormalOn, nil, 10 * time.Millisecond},
	}
	if p.opts.Invert {
		steps = append(steps, struct {
			cmd   byte
			data  []byte
			pause time.Duration
		}{cmdInvertOn, nil, 0})
	}
	for _, s := range steps {
		if err := p.command(s.cmd, s.data); err != nil {
			return fmt.Errorf("spi panel: init cmd %#02x: %w", s.cmd, err)
		}
		if s.pause > 0 {
			time.Sleep(s.pause)
		}
	}
	if err := p.command(cmdDisplayOn, nil); err != nil {
		return fmt.Errorf("spi panel: display on: %w", err)
	}
	return nil
}

func (p *SPIPanel) madctl(r Rotation) byte {
	var v byte
	if p.opts.BGR {
		v |= madctlBGR
	}
	if p.opts.SoftwareRotation {
		return v
	}
	switch r {
	case Rotation90:
		v |= madctlMX | madctlMV
	case Rotation180:
		v |= madctlMX | madctlMY
	case Rotation270:
		v |= madctlMY | madctlMV
	}
	return v
}

func (p *SPIPanel) SetRotation(r Rotation) {
	p.rotation = r
	if !p.opts.SoftwareRotation && r.SwapsAxes() {
		p.width, p.height = p.opts.Height, p.opts.Width
	} else {
		p.width, p.height = p.opts.Width, p.opts.Height
	}
	if p.c != nil {
		p.record(p.command(cmdMADCTL, []byte{p.madctl(r)}))
	}
}

// AdaptGeometry keeps the engine's logical layout rotated while the panel
// stays native.
func (p *SPIPanel) AdaptGeometry(g *Geometry, r Rotation) {
	if !p.opts.SoftwareRotation {
		return
	}
	g.Rotation = r
	g.SoftwareRotate = r != Rotation0
	if r.SwapsAxes() {
		g.Width, g.Height = p.opts.Height, p.opts.Width
	} else {
		g.Width, g.Height = p.opts.Width, p.opts.Height
	}
}

func (p *SPIPanel) Width() int  { return p.width }
func (p *SPIPanel) Height() int { return p.height }

func (p *SPIPanel) SetBacklight(on bool) {
	if p.bl == nil {
		return
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	p.record(p.bl.Out(level))
}

func (p *SPIPanel) SetBrightness(percent uint8) {
	p.brightness = clampPercent(percent)
	if p.bl == nil {
		return
	}
	switch p.brightness {
	case 0:
		p.record(p.bl.Out(gpio.Low))
	case 100:
		p.record(p.bl.Out(gpio.High))
	default:
		duty := gpio.DutyMax * gpio.Duty(p.brightness) / 100
		p.record(p.bl.PWM(duty, p.opts.BacklightFreq))
	}
}

func (p *SPIPanel) Brightness() uint8         { return p.brightness }
func (p *SPIPanel) HasBacklightControl() bool { return p.bl != nil }

func (p *SPIPanel) BeginWrite() {}
func (p *SPIPanel) EndWrite()   {}

func (p *SPIPanel) SetWindow(x, y, w, h int) {
	if p.c == nil || w <= 0 || h <= 0 {
		return
	}
	x0 := x + p.opts.XOffset
	y0 := y + p.opts.YOffset
	x1 := x0 + w - 1
	y1 := y0 + h - 1
	p.record(p.command(cmdColumnAddr, []byte{byte(x0 >> 8), byte(x0), byte(x1 >> 8), byte(x1)}))
	p.record(p.command(cmdRowAddr, []byte{byte(y0 >> 8), byte(y0), byte(y1 >> 8), byte(y1)}))
	p.record(p.command(cmdMemoryWrite, nil))
}

func (p *SPIPanel) PushPixels(px []uint16, byteSwap bool) {
	if p.c == nil || len(px) == 0 {
		return
	}
	p.scratch = appendPixelBytes(p.scratch[:0], px, byteSwap)
	p.record(p.data(p.scratch))
}

func (p *SPIPanel) RenderMode() RenderMode { return Direct }
func (p *SPIPanel) Present()               {}

// Err returns the last bus error seen on the flush path.
func (p *SPIPanel) Err() error { return p.lastErr }

func (p *SPIPanel) record(err error) {
	if err == nil {
		return
	}
	if p.lastErr == nil {
		p.logger.Errorf("spi", "bus error: %v", err)
	}
	p.lastErr = err
}

func (p *SPIPanel) command(cmd byte, data []byte) error {
	if err := p.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := p.c.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return p.data(data)
}

func (p *SPIPanel) data(b []byte) error {
	if err := p.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(b) > 0 {
		n := len(b)
		if n > p.maxTx {
			n = p.maxTx
		}
		if err := p.c.Tx(b[:n], nil); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
