package system

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func ipNet(s string) net.Addr {
	ip, n, _ := net.ParseCIDR(s)
	n.IP = ip
	return n
}

func TestInterfaceNetInfoPrimary(t *testing.T) {
	ifaces := []ifaceAddrs{
		{name: "lo", up: true, loop: true, addrs: []net.Addr{ipNet("127.0.0.1/8")}},
		{name: "eth0", up: false, addrs: []net.Addr{ipNet("10.0.0.2/24")}},
		{name: "usb0", up: true, addrs: []net.Addr{ipNet("169.254.1.1/16"), ipNet("192.168.7.2/24")}},
		{name: "wlan0", up: true, addrs: []net.Addr{ipNet("fe80::1/64"), ipNet("192.168.1.20/24")}},
	}
	tests := []struct {
		name      string
		preferred []string
		wantIface string
		wantIP    string
	}{
		{"first usable", nil, "usb0", "192.168.7.2"},
		{"preferred", []string{"wlan"}, "wlan0", "192.168.1.20"},
		{"preferred down", []string{"eth"}, "usb0", "192.168.7.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := InterfaceNetInfo{Preferred: tt.preferred, lister: func() ([]ifaceAddrs, error) { return ifaces, nil }}
			iface, ip, err := n.Primary(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if iface != tt.wantIface || ip != tt.wantIP {
				t.Fatalf("got %s %s", iface, ip)
			}
		})
	}
}

func TestInterfaceNetInfoNone(t *testing.T) {
	n := InterfaceNetInfo{lister: func() ([]ifaceAddrs, error) { return nil, nil }}
	if _, _, err := n.Primary(context.Background()); !errors.Is(err, ErrNoAddress) {
		t.Fatalf("err=%v", err)
	}
}

func TestWebURL(t *testing.T) {
	tests := []struct{ ip, listen, want string }{
		{"10.0.0.1", ":80", "http://10.0.0.1/"},
		{"10.0.0.1", ":8080", "http://10.0.0.1:8080/"},
		{"10.0.0.1", "bogus", "http://10.0.0.1/"},
		{"", ":80", ""},
	}
	for _, tt := range tests {
		if got := WebURL(tt.ip, tt.listen); got != tt.want {
			t.Errorf("WebURL(%q,%q)=%q, want %q", tt.ip, tt.listen, got, tt.want)
		}
	}
}

func TestSysfsBacklight(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "panel")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "max_brightness"), []byte("255\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "brightness"), []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := DiscoverBacklight(filepath.Join(filepath.Dir(dir), "*"))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetPercent(150); err != nil {
		t.Fatal(err)
	}
	raw, _ := readInt(b.BrightnessPath)
	if raw != 255 {
		t.Fatalf("raw=%d, want 255", raw)
	}
	if err := b.SetPercent(50); err != nil {
		t.Fatal(err)
	}
	if p, err := b.GetPercent(); err != nil || p != 49 {
		// 50% of 255 is 127 raw, which reads back as 49%.
		t.Fatalf("GetPercent=%d, %v", p, err)
	}
	if _, err := DiscoverBacklight(filepath.Join(t.TempDir(), "*")); err == nil {
		t.Fatal("want error for empty dir")
	}
}

func TestReadHostStatsDoesNotFail(t *testing.T) {
	st := ReadHostStats(context.Background())
	if st.MemUsedPct < 0 || st.MemUsedPct > 100 {
		t.Fatalf("mem used %v", st.MemUsedPct)
	}
}
