//go:build linux

package evdev

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const pollTimeoutMillis = 250

var nativeLayout = newLayout(int(binary.Size(unix.Timeval{})))

type Device struct {
	path string
	fd   int
	f    *os.File
}

// Open opens path non-blocking for reading.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("evdev: open %s: %w", path, err)
	}
	return &Device{path: path, fd: fd, f: os.NewFile(uintptr(fd), path)}, nil
}

// Glob lists input device nodes; pattern defaults to /dev/input/event*.
func Glob(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "/dev/input/event*"
	}
	return filepath.Glob(pattern)
}

func (d *Device) Path() string { return d.path }

func (d *Device) Close() error { return d.f.Close() }

// Read delivers events to fn until ctx is done or the device fails.
// It wakes at least every 250ms to notice cancellation.
func (d *Device) Read(ctx context.Context, fn func(Event)) error {
	buf := make([]byte, 64*nativeLayout.eventSize)
	fill := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pollFds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
		if _, err := unix.Poll(pollFds, pollTimeoutMillis); err != nil {
			if err == unix.EINTR {
				continue
			}
			// Device might have gone away.
			return fmt.Errorf("evdev: poll %s: %w", d.path, err)
		}
		if pollFds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		n, err := unix.Read(d.fd, buf[fill:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return fmt.Errorf("evdev: read %s: %w", d.path, err)
		}
		fill += n
		used := nativeLayout.decode(buf[:fill], fn)
		fill = copy(buf, buf[used:fill])
	}
}
