package config

import (
	"net"
	"strings"
)

// CGNAT range, also used by Cloudflare WARP and Tailscale.
var cgnatBlock = &net.IPNet{
	IP:   net.IPv4(100, 64, 0, 0),
	Mask: net.CIDRMask(10, 32),
}

var tunnelPrefixes = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

// RestrictiveNetwork reports whether this host looks like it sits behind
// a VPN or carrier-grade NAT, where direct peer links usually fail and
// TURN should be used from the start.
func RestrictiveNetwork() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		if restrictedInterface(iface.Name, addrs) {
			return true
		}
	}
	return false
}

// UseRelay decides the ICE policy: relay-only when forced, or when a TURN
// server is available and the network looks restrictive.
func (c *Config) UseRelay(restrictive func() bool) bool {
	if c.ForceRelay {
		return true
	}
	return c.TURNServer != "" && restrictive != nil && restrictive()
}

func restrictedInterface(name string, addrs []net.Addr) bool {
	name = strings.ToLower(name)
	for _, prefix := range tunnelPrefixes {
		if strings.Contains(name, prefix) {
			return true
		}
	}
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip != nil && cgnatBlock.Contains(ip) {
			return true
		}
	}
	return false
}
