// Package evdev reads Linux input devices (/dev/input/event*).
package evdev

import (
	"encoding/binary"
	"errors"
)

// Event types and codes from linux/input-event-codes.h.
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvAbs = 0x03

	SynReport = 0x00

	AbsX            = 0x00
	AbsY            = 0x01
	AbsMTSlot       = 0x2f
	AbsMTPositionX  = 0x35
	AbsMTPositionY  = 0x36
	AbsMTTrackingID = 0x39

	BtnTouch = 0x14a

	KeyEsc      = 1
	KeyEnter    = 28
	KeySpace    = 57
	KeyF4       = 62
	KeyRight    = 106
	KeyPower    = 116
	KeySleep    = 142
	KeyWakeUp   = 143
	KeyNextSong = 163
)

// Key values.
const (
	KeyReleased = 0
	KeyPressed  = 1
	KeyRepeat   = 2
)

// ErrUnsupported is returned on platforms without evdev.
var ErrUnsupported = errors.New("evdev: not supported on this platform")

type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

// layout describes the input_event record: timeval + u16 type + u16 code +
// s32 value. The timeval size depends on the architecture.
type layout struct {
	tvSize    int
	eventSize int
}

func newLayout(tvSize int) layout {
	return layout{tvSize: tvSize, eventSize: tvSize + 2 + 2 + 4}
}

// decode calls fn for every complete record in buf and returns the number
// of bytes consumed.
func (l layout) decode(buf []byte, fn func(Event)) int {
	off := 0
	for ; off+l.eventSize <= len(buf); off += l.eventSize {
		rec := buf[off : off+l.eventSize]
		fn(Event{
			Type:  binary.LittleEndian.Uint16(rec[l.tvSize : l.tvSize+2]),
			Code:  binary.LittleEndian.Uint16(rec[l.tvSize+2 : l.tvSize+4]),
			Value: int32(binary.LittleEndian.Uint32(rec[l.tvSize+4 : l.tvSize+8])),
		})
	}
	return off
}
