package buttons

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rook-computer/panelcore/internal/evdev"
)

func TestHandleMapsKeyDown(t *testing.T) {
	b := NewEvdev(nil, nil)
	tests := []struct {
		ev   evdev.Event
		want Event
	}{
		{evdev.Event{Type: evdev.EvKey, Code: evdev.KeyF4, Value: evdev.KeyPressed}, Exit},
		{evdev.Event{Type: evdev.EvKey, Code: evdev.KeyRight, Value: evdev.KeyPressed}, Next},
		{evdev.Event{Type: evdev.EvKey, Code: evdev.KeyPower, Value: evdev.KeyPressed}, Sleep},
		{evdev.Event{Type: evdev.EvKey, Code: evdev.KeyWakeUp, Value: evdev.KeyPressed}, Wake},
	}
	for _, tt := range tests {
		b.handle(tt.ev)
		if got := <-b.Events(); got != tt.want {
			t.Fatalf("code %d: got %s, want %s", tt.ev.Code, got, tt.want)
		}
	}
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	b := NewEvdev(nil, nil)
	b.handle(evdev.Event{Type: evdev.EvKey, Code: evdev.KeyF4, Value: evdev.KeyReleased})
	b.handle(evdev.Event{Type: evdev.EvKey, Code: evdev.KeyF4, Value: evdev.KeyRepeat})
	b.handle(evdev.Event{Type: evdev.EvKey, Code: 999, Value: evdev.KeyPressed})
	b.handle(evdev.Event{Type: evdev.EvAbs, Code: evdev.AbsX, Value: 1})
	select {
	case e := <-b.Events():
		t.Fatalf("unexpected %s", e)
	default:
	}
}

func TestHandleDropsWhenFull(t *testing.T) {
	b := NewEvdev(nil, nil)
	for i := 0; i < cap(b.ch)+3; i++ {
		b.handle(evdev.Event{Type: evdev.EvKey, Code: evdev.KeySpace, Value: evdev.KeyPressed})
	}
	if len(b.ch) != cap(b.ch) {
		t.Fatalf("len=%d", len(b.ch))
	}
}

func TestStartWithoutDevices(t *testing.T) {
	b := NewEvdev(nil, nil)
	b.Pattern = filepath.Join(t.TempDir(), "event*")
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Stop(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-b.Events(); ok {
		t.Fatal("channel must be closed")
	}
	// Stop is idempotent.
	_ = b.Stop()
}
