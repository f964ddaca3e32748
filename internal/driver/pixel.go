package driver

import "image/color"

// RGB565 packs an 8-bit-per-channel colour into 5-6-5.
func RGB565(r, g, b uint8) uint16 {
	return uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3
}

// ColorFrom565 expands a 5-6-5 pixel, replicating high bits into the low ones
// so full white stays 0xFF.
func ColorFrom565(v uint16) color.RGBA {
	r := uint8(v>>11) & 0x1F
	g := uint8(v>>5) & 0x3F
	b := uint8(v) & 0x1F
	return color.RGBA{
		R: r<<3 | r>>2,
		G: g<<2 | g>>4,
		B: b<<3 | b>>2,
		A: 0xFF,
	}
}

// appendPixelBytes serialises px into dst. With byteSwap the high byte goes
// first (big-endian, panel wire order).
func appendPixelBytes(dst []byte, px []uint16, byteSwap bool) []byte {
	for _, p := range px {
		if byteSwap {
			dst = append(dst, byte(p>>8), byte(p))
		} else {
			dst = append(dst, byte(p), byte(p>>8))
		}
	}
	return dst
}
