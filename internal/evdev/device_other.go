//go:build !linux

package evdev

import "context"

type Device struct{}

func Open(path string) (*Device, error)                       { return nil, ErrUnsupported }
func Glob(pattern string) ([]string, error)                   { return nil, nil }
func (d *Device) Path() string                                { return "" }
func (d *Device) Close() error                                { return nil }
func (d *Device) Read(ctx context.Context, fn func(Event)) error { return ErrUnsupported }
