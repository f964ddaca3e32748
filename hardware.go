package main

import (
	"flag"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/rook-computer/panelcore/internal/driver"
	"github.com/rook-computer/panelcore/internal/logging"
	"github.com/rook-computer/panelcore/internal/system"
)

type hardwareFlags struct {
	driver string

	fbPath        string
	logicalWidth  int
	logicalHeight int
	backlightGlob string

	spiPort  string
	spiHz    int64
	dcPin    string
	rstPin   string
	blPin    string
	width    int
	height   int
	xOffset  int
	yOffset  int
	bgr      bool
	invert   bool
	swRotate bool

	touchDevice string
}

func (h *hardwareFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&h.driver, "driver", "fb", "display driver: fb | spi | memory")
	fs.StringVar(&h.fbPath, "fb", "/dev/fb0", "framebuffer device (fb driver)")
	fs.IntVar(&h.logicalWidth, "logical-width", 0, "canvas width for the fb driver; 0 uses the device size")
	fs.IntVar(&h.logicalHeight, "logical-height", 0, "canvas height for the fb driver; 0 uses the device size")
	fs.StringVar(&h.backlightGlob, "backlight", "/sys/class/backlight/*", "sysfs backlight glob (fb driver)")
	fs.StringVar(&h.spiPort, "spi-port", "", "SPI port name, e.g. SPI0.0 (spi driver); empty picks the first")
	fs.Int64Var(&h.spiHz, "spi-hz", 40_000_000, "SPI clock in Hz (spi driver)")
	fs.StringVar(&h.dcPin, "spi-dc", "GPIO25", "data/command pin (spi driver)")
	fs.StringVar(&h.rstPin, "spi-rst", "GPIO27", "reset pin, empty for none (spi driver)")
	fs.StringVar(&h.blPin, "spi-bl", "GPIO18", "backlight pin, empty for none (spi driver)")
	fs.IntVar(&h.width, "width", 240, "native panel width (spi and memory drivers)")
	fs.IntVar(&h.height, "height", 320, "native panel height (spi and memory drivers)")
	fs.IntVar(&h.xOffset, "x-offset", 0, "panel RAM column offset (spi driver)")
	fs.IntVar(&h.yOffset, "y-offset", 0, "panel RAM row offset (spi driver)")
	fs.BoolVar(&h.bgr, "bgr", false, "panel uses BGR order (spi driver)")
	fs.BoolVar(&h.invert, "invert", false, "invert panel colours (spi driver)")
	fs.BoolVar(&h.swRotate, "soft-rotate", false, "rotate in software instead of MADCTL (spi driver)")
	fs.StringVar(&h.touchDevice, "touch", "", "evdev touch device; overrides the config file")
}

// openDriver builds the selected driver. Hardware is not touched until the
// display coordinator calls Init.
func (h *hardwareFlags) openDriver(logger logging.Logger) (driver.Driver, func(), error) {
	noop := func() {}
	switch h.driver {
	case "fb":
		opts := driver.FramebufferOpts{Path: h.fbPath, LogicalWidth: h.logicalWidth, LogicalHeight: h.logicalHeight}
		if bl, err := system.DiscoverBacklight(h.backlightGlob); err == nil {
			opts.Backlight = bl
		} else {
			logger.Infof("main", "no sysfs backlight: %v", err)
		}
		fb := driver.NewFramebuffer(opts)
		return fb, func() { _ = fb.Close() }, nil
	case "memory":
		return driver.NewMemory(h.width, h.height, driver.Buffered), noop, nil
	case "spi":
		return h.openSPI(logger)
	}
	return nil, noop, fmt.Errorf("unknown driver %q", h.driver)
}

func (h *hardwareFlags) openSPI(logger logging.Logger) (driver.Driver, func(), error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}
	port, err := spireg.Open(h.spiPort)
	if err != nil {
		return nil, nil, fmt.Errorf("open SPI %q: %w", h.spiPort, err)
	}
	dc := pinByName(h.dcPin)
	if dc == nil {
		port.Close()
		return nil, nil, fmt.Errorf("data/command pin %q not found", h.dcPin)
	}
	panel := driver.NewSPIPanel(port, dc, pinByName(h.rstPin), pinByName(h.blPin), driver.SPIPanelOpts{
		Width:            h.width,
		Height:           h.height,
		XOffset:          h.xOffset,
		YOffset:          h.yOffset,
		BGR:              h.bgr,
		Invert:           h.invert,
		SoftwareRotation: h.swRotate,
		Speed:            physic.Frequency(h.spiHz) * physic.Hertz,
	}, logger)
	return panel, func() { _ = port.Close() }, nil
}

func pinByName(name string) gpio.PinOut {
	if name == "" {
		return nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil
	}
	return p
}
