package touch

import (
	"context"
	"errors"
	"sync"

	"github.com/rook-computer/panelcore/internal/evdev"
	"github.com/rook-computer/panelcore/internal/logging"
)

// Evdev is a touch Device backed by a Linux input event node.
type Evdev struct {
	Path          string
	Width, Height int
	Calibration   Calibration
	Logger        logging.Logger

	dev    *evdev.Device
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	committed evdevPoint
	working   evdevPoint
}

type evdevPoint struct {
	rawX, rawY int
	pressed    bool
}

func NewEvdev(path string, width, height int, cal Calibration, logger logging.Logger) *Evdev {
	return &Evdev{Path: path, Width: width, Height: height, Calibration: cal, Logger: logging.OrNoop(logger)}
}

func (e *Evdev) Init() error {
	if e.Path == "" {
		return errors.New("touch: no evdev path")
	}
	dev, err := evdev.Open(e.Path)
	if err != nil {
		return err
	}
	e.dev = dev
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go func() {
		defer close(e.done)
		if err := dev.Read(ctx, e.handle); err != nil && !errors.Is(err, context.Canceled) {
			e.Logger.Errorf("touch", "evdev reader stopped: %v", err)
			e.mu.Lock()
			e.committed.pressed = false
			e.mu.Unlock()
		}
	}()
	e.Logger.Infof("touch", "reading touch events from %s", e.Path)
	return nil
}

// handle accumulates one report and publishes it on SYN_REPORT.
func (e *Evdev) handle(ev evdev.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch ev.Type {
	case evdev.EvAbs:
		switch ev.Code {
		case evdev.AbsX, evdev.AbsMTPositionX:
			e.working.rawX = int(ev.Value)
		case evdev.AbsY, evdev.AbsMTPositionY:
			e.working.rawY = int(ev.Value)
		case evdev.AbsMTTrackingID:
			e.working.pressed = ev.Value >= 0
		}
	case evdev.EvKey:
		if ev.Code == evdev.BtnTouch {
			e.working.pressed = ev.Value != evdev.KeyReleased
		}
	case evdev.EvSyn:
		if ev.Code == evdev.SynReport {
			e.committed = e.working
		}
	}
}

// SetSize sets the area reads are mapped onto.
func (e *Evdev) SetSize(width, height int) {
	e.mu.Lock()
	e.Width, e.Height = width, height
	e.mu.Unlock()
}

func (e *Evdev) Read() (int, int, bool) {
	e.mu.Lock()
	p, w, h := e.committed, e.Width, e.Height
	e.mu.Unlock()
	if !p.pressed {
		return 0, 0, false
	}
	x, y := e.Calibration.Map(p.rawX, p.rawY, w, h)
	return x, y, true
}

func (e *Evdev) Close() error {
	if e.dev == nil {
		return nil
	}
	e.cancel()
	<-e.done
	err := e.dev.Close()
	e.dev = nil
	return err
}
