// Package system is the OS glue: console mode, sysfs backlight, host stats
// and network addresses.
package system

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// NetInfo reports the address the web UI is reachable on.
type NetInfo interface {
	Primary(ctx context.Context) (iface, ip string, err error)
}

type NoopNetInfo struct{}

func (NoopNetInfo) Primary(ctx context.Context) (string, string, error) { return "", "", nil }

var ErrNoAddress = errors.New("no usable IPv4 address")

// InterfaceNetInfo picks the first up, non-loopback interface with an IPv4
// address. Preferred names are tried first, in order.
type InterfaceNetInfo struct {
	Preferred []string
	// lister is replaced in tests.
	lister func() ([]ifaceAddrs, error)
}

type ifaceAddrs struct {
	name  string
	up    bool
	loop  bool
	addrs []net.Addr
}

func (n InterfaceNetInfo) Primary(ctx context.Context) (string, string, error) {
	list := n.lister
	if list == nil {
		list = systemInterfaces
	}
	ifaces, err := list()
	if err != nil {
		return "", "", fmt.Errorf("list interfaces: %w", err)
	}
	rank := func(name string) int {
		for i, p := range n.Preferred {
			if name == p || strings.HasPrefix(name, p) {
				return i
			}
		}
		return len(n.Preferred)
	}
	bestRank, bestName, bestIP := -1, "", ""
	for _, it := range ifaces {
		if !it.up || it.loop {
			continue
		}
		ip := firstIPv4(it.addrs)
		if ip == "" {
			continue
		}
		if r := rank(it.name); bestRank < 0 || r < bestRank {
			bestRank, bestName, bestIP = r, it.name, ip
		}
	}
	if bestRank < 0 {
		return "", "", ErrNoAddress
	}
	return bestName, bestIP, nil
}

func systemInterfaces() ([]ifaceAddrs, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]ifaceAddrs, 0, len(ifaces))
	for _, it := range ifaces {
		addrs, err := it.Addrs()
		if err != nil {
			continue
		}
		out = append(out, ifaceAddrs{
			name:  it.Name,
			up:    it.Flags&net.FlagUp != 0,
			loop:  it.Flags&net.FlagLoopback != 0,
			addrs: addrs,
		})
	}
	return out, nil
}

func firstIPv4(addrs []net.Addr) string {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip4 := ip.To4(); ip4 != nil && !ip4.IsLinkLocalUnicast() {
			return ip4.String()
		}
	}
	return ""
}

// WebURL formats the address the web UI listens on.
func WebURL(ip, listenAddr string) string {
	if ip == "" {
		return ""
	}
	_, port, err := net.SplitHostPort(listenAddr)
	if err != nil || port == "" || port == "80" {
		return "http://" + ip + "/"
	}
	return "http://" + net.JoinHostPort(ip, port) + "/"
}
