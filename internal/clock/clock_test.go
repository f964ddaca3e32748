package clock

import "testing"

func TestElapsedAcrossWrap(t *testing.T) {
	since := uint32(0xFFFFFF00)
	now := since + 0x200 // wraps past zero
	if got := Elapsed(now, since); got != 0x200 {
		t.Errorf("Elapsed = %d, want %d", got, 0x200)
	}
}

func TestBefore(t *testing.T) {
	tests := []struct {
		name string
		a, b uint32
		want bool
	}{
		{"plain", 10, 20, true},
		{"equal", 5, 5, false},
		{"after", 30, 20, false},
		{"across wrap", 0xFFFFFFF0, 0x10, true},
		{"after wrap", 0x10, 0xFFFFFFF0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Before(tt.a, tt.b); got != tt.want {
				t.Errorf("Before(%#x, %#x) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestManualAdvance(t *testing.T) {
	c := NewManual(100)
	if got := c.Advance(50); got != 150 {
		t.Errorf("Advance = %d, want 150", got)
	}
	c.Set(7)
	if got := c.NowMillis(); got != 7 {
		t.Errorf("NowMillis = %d, want 7", got)
	}
}
