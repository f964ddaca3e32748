// Package buttons turns key presses into device events.
package buttons

import (
	"context"
	"sync"

	"github.com/rook-computer/panelcore/internal/evdev"
	"github.com/rook-computer/panelcore/internal/logging"
)

type Event string

const (
	// Next cycles to the next screen.
	Next  Event = "next"
	Sleep Event = "sleep"
	Wake  Event = "wake"
	Exit  Event = "exit"
)

type Buttons interface {
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan Event
}

type NoopButtons struct{ ch chan Event }

func NewNoopButtons() *NoopButtons { return &NoopButtons{ch: make(chan Event)} }

func (n *NoopButtons) Start(ctx context.Context) error { return nil }
func (n *NoopButtons) Stop() error                     { close(n.ch); return nil }
func (n *NoopButtons) Events() <-chan Event            { return n.ch }

// KeyMap maps evdev key codes to events.
type KeyMap map[uint16]Event

func DefaultKeyMap() KeyMap {
	return KeyMap{
		evdev.KeyF4:       Exit,
		evdev.KeyEsc:      Exit,
		evdev.KeyRight:    Next,
		evdev.KeySpace:    Next,
		evdev.KeyNextSong: Next,
		evdev.KeyPower:    Sleep,
		evdev.KeySleep:    Sleep,
		evdev.KeyWakeUp:   Wake,
		evdev.KeyEnter:    Wake,
	}
}

// Evdev watches every input node matching Pattern except Exclude (the touch
// controller). Devices that cannot be opened are skipped.
type Evdev struct {
	Pattern string
	Exclude []string
	Keys    KeyMap
	Logger  logging.Logger

	ch     chan Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewEvdev(exclude []string, logger logging.Logger) *Evdev {
	return &Evdev{Exclude: exclude, Keys: DefaultKeyMap(), Logger: logging.OrNoop(logger), ch: make(chan Event, 8)}
}

func (b *Evdev) Events() <-chan Event { return b.ch }

func (b *Evdev) Start(ctx context.Context) error {
	paths, err := evdev.Glob(b.Pattern)
	if err != nil || len(paths) == 0 {
		b.Logger.Infof("input", "no evdev devices found for buttons")
		return nil
	}
	ctx, b.cancel = context.WithCancel(ctx)
	for _, p := range paths {
		if b.excluded(p) {
			continue
		}
		dev, err := evdev.Open(p)
		if err != nil {
			continue
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer dev.Close()
			if err := dev.Read(ctx, b.handle); err != nil && ctx.Err() == nil {
				b.Logger.Errorf("input", "%s: %v", dev.Path(), err)
			}
		}()
	}
	return nil
}

func (b *Evdev) excluded(path string) bool {
	for _, e := range b.Exclude {
		if e == path {
			return true
		}
	}
	return false
}

// handle forwards key-down events. A full channel drops the event rather
// than stall the reader.
func (b *Evdev) handle(ev evdev.Event) {
	if ev.Type != evdev.EvKey || ev.Value != evdev.KeyPressed {
		return
	}
	e, ok := b.Keys[ev.Code]
	if !ok {
		return
	}
	select {
	case b.ch <- e:
	default:
		b.Logger.Errorf("input", "button event %s dropped", e)
	}
}

func (b *Evdev) Stop() error {
	b.once.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		b.wg.Wait()
		close(b.ch)
	})
	return nil
}
