package config

import (
	"net"
	"testing"
)

func TestRestrictedInterface(t *testing.T) {
	tests := []struct {
		name  string
		iface string
		addrs []net.Addr
		want  bool
	}{
		{"wireguard", "wg0", nil, true},
		{"openvpn", "tun0", nil, true},
		{"macos tunnel", "utun3", nil, true},
		{"cgnat address", "eth0", []net.Addr{&net.IPNet{IP: net.ParseIP("100.100.1.2"), Mask: net.CIDRMask(10, 32)}}, true},
		{"private lan", "eth0", []net.Addr{&net.IPNet{IP: net.ParseIP("192.168.1.20"), Mask: net.CIDRMask(24, 32)}}, false},
		{"ipaddr lan", "en0", []net.Addr{&net.IPAddr{IP: net.ParseIP("10.0.0.5")}}, false},
		{"ipv6", "en0", []net.Addr{&net.IPNet{IP: net.ParseIP("2001:db8::1"), Mask: net.CIDRMask(64, 128)}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := restrictedInterface(tt.iface, tt.addrs); got != tt.want {
				t.Errorf("restrictedInterface(%q) = %v, want %v", tt.iface, got, tt.want)
			}
		})
	}
}

func TestUseRelay(t *testing.T) {
	yes := func() bool { return true }
	no := func() bool { return false }

	if !(&Config{ForceRelay: true, TURNServer: "turn.example.com"}).UseRelay(no) {
		t.Error("forced relay not honored")
	}
	if (&Config{}).UseRelay(yes) {
		t.Error("relay chosen without a TURN server")
	}
	if !(&Config{TURNServer: "turn.example.com"}).UseRelay(yes) {
		t.Error("restrictive network did not select relay")
	}
	if (&Config{TURNServer: "turn.example.com"}).UseRelay(no) {
		t.Error("open network selected relay")
	}
}
