package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/skip2/go-qrcode"
)

const (
	defaultQRCodeSizePx = 128
	// Below this the medium recovery level packs modules too densely to scan
	// off a small panel.
	smallQRCodeSizePx = 96
)

// GenerateQRCodeImage returns a borderless QR code for payload drawn in fg on
// bg. The side is rounded down to a whole number of pixels per module so the
// code stays crisp. If payload is empty, it returns (nil, nil).
func GenerateQRCodeImage(payload string, sizePx int, fg, bg color.Color) (image.Image, error) {
	if payload == "" {
		return nil, nil
	}
	if sizePx <= 0 {
		sizePx = defaultQRCodeSizePx
	}
	level := qrcode.Medium
	if sizePx < smallQRCodeSizePx {
		level = qrcode.Low
	}

	qrCode, err := qrcode.New(payload, level)
	if err != nil {
		return nil, fmt.Errorf("qrcode: %w", err)
	}
	qrCode.DisableBorder = true
	if fg != nil {
		qrCode.ForegroundColor = fg
	}
	if bg != nil {
		qrCode.BackgroundColor = bg
	}
	if modules := len(qrCode.Bitmap()); modules > 0 && sizePx >= modules {
		sizePx -= sizePx % modules
	}
	return qrCode.Image(sizePx), nil
}
