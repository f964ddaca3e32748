package system

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const sysfsBacklightGlob = "/sys/class/backlight/*"

// Backlight is a sysfs backlight node. It implements driver.BacklightDevice.
type Backlight struct {
	BaseDir        string
	BrightnessPath string
	MaxPath        string
}

// DiscoverBacklight returns the first usable node under pattern, which
// defaults to /sys/class/backlight/*.
func DiscoverBacklight(pattern string) (*Backlight, error) {
	if pattern == "" {
		pattern = sysfsBacklightGlob
	}
	ents, err := filepath.Glob(pattern)
	if err != nil || len(ents) == 0 {
		return nil, fmt.Errorf("no backlight device under %s", pattern)
	}
	for _, d := range ents {
		bp := filepath.Join(d, "brightness")
		mp := filepath.Join(d, "max_brightness")
		if _, err := os.Stat(bp); err != nil {
			continue
		}
		if _, err := os.Stat(mp); err != nil {
			continue
		}
		return &Backlight{BaseDir: d, BrightnessPath: bp, MaxPath: mp}, nil
	}
	return nil, fmt.Errorf("no backlight node with brightness and max_brightness under %s", pattern)
}

func (b *Backlight) Max() (int, error) {
	v, err := readInt(b.MaxPath)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid max_brightness: %d", v)
	}
	return v, nil
}

func (b *Backlight) SetPercent(percent int) error {
	percent = min(max(percent, 0), 100)
	maxV, err := b.Max()
	if err != nil {
		return err
	}
	return writeInt(b.BrightnessPath, percent*maxV/100)
}

func (b *Backlight) GetPercent() (int, error) {
	maxV, err := b.Max()
	if err != nil {
		return 0, err
	}
	raw, err := readInt(b.BrightnessPath)
	if err != nil {
		return 0, err
	}
	raw = min(max(raw, 0), maxV)
	return raw * 100 / maxV, nil
}

func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

func writeInt(path string, v int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(v)), 0o644)
}
