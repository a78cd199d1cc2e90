package netlinkx

import (
	"net"
	"testing"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

func TestDecodeLink(t *testing.T) {
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	mtu := 1500

	cases := []struct {
		name string
		link netlink.Link
		want InterfaceInfo
		ok   bool
	}{
		{
			name: "plain ethernet",
			link: &netlink.Device{LinkAttrs: netlink.LinkAttrs{
				Index:        3,
				Name:         "eth0",
				EncapType:    "ether",
				HardwareAddr: mac,
				MTU:          mtu,
			}},
			want: InterfaceInfo{Idx: 3, Name: "eth0", Type: HWTypeEther, MAC: mac, Kind: "device"},
			ok:   true,
		},
		{
			name: "loopback is decoded, not filtered",
			link: &netlink.Device{LinkAttrs: netlink.LinkAttrs{
				Index:     1,
				Name:      "lo",
				EncapType: "loopback",
			}},
			want: InterfaceInfo{Idx: 1, Name: "lo", Type: 772, Kind: "device"},
			ok:   true,
		},
		{
			name: "vlan child carries parent index and vlan id",
			link: &netlink.Vlan{
				LinkAttrs: netlink.LinkAttrs{
					Index:       10,
					Name:        "eth0.100",
					EncapType:   "ether",
					ParentIndex: 3,
				},
				VlanId: 100,
			},
			ok: true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := decodeLink(c.link)
			if ok != c.ok {
				t.Fatalf("decodeLink() ok = %v, want %v", ok, c.ok)
			}
			if c.name == "vlan child carries parent index and vlan id" {
				if got.ParentIdx == nil || *got.ParentIdx != 3 {
					t.Fatalf("ParentIdx = %v, want 3", got.ParentIdx)
				}
				if got.VLANID == nil || *got.VLANID != 100 {
					t.Fatalf("VLANID = %v, want 100", got.VLANID)
				}
				return
			}
			if got.Idx != c.want.Idx || got.Name != c.want.Name || got.Type != c.want.Type || got.Kind != c.want.Kind {
				t.Fatalf("decodeLink() = %+v, want %+v", got, c.want)
			}
		})
	}
}

func TestDecodeLinkNilAttrs(t *testing.T) {
	// A Link whose Attrs() returns nil should be rejected, not panic.
	if _, ok := decodeLink(nilAttrsLink{}); ok {
		t.Fatalf("expected decodeLink to reject a link with nil attrs")
	}
}

type nilAttrsLink struct{}

func (nilAttrsLink) Attrs() *netlink.LinkAttrs { return nil }
func (nilAttrsLink) Type() string              { return "nil" }

func TestEncapToHWType(t *testing.T) {
	cases := map[string]HWType{
		"ether":    HWTypeEther,
		"loopback": 772,
		"none":     65534,
		"unknown":  65535,
		"":         65535,
	}
	for encap, want := range cases {
		if got := encapToHWType(encap); got != want {
			t.Errorf("encapToHWType(%q) = %d, want %d", encap, got, want)
		}
	}
}

func TestDecodeAddr(t *testing.T) {
	_, ipnet, _ := net.ParseCIDR("192.168.1.10/24")

	info, err := decodeAddr(5, netlink.Addr{IPNet: ipnet, Scope: 0, Flags: 0})
	if err != nil {
		t.Fatalf("decodeAddr: %v", err)
	}
	if info.Ifidx != 5 || info.IPNet != ipnet {
		t.Fatalf("decodeAddr() = %+v", info)
	}

	if _, err := decodeAddr(5, netlink.Addr{}); err == nil {
		t.Fatalf("expected error decoding address with nil IPNet")
	}
}

func TestAddressInfoDeprecated(t *testing.T) {
	a := AddressInfo{Flags: uint32(unix.IFA_F_DEPRECATED)}
	if !a.Deprecated() {
		t.Fatalf("expected address with IFA_F_DEPRECATED set to report deprecated")
	}
	b := AddressInfo{Flags: 0}
	if b.Deprecated() {
		t.Fatalf("expected address with no flags to not report deprecated")
	}
}

func TestDecodeNeigh(t *testing.T) {
	ip := net.ParseIP("10.0.0.5")
	mac, _ := net.ParseMAC("11:22:33:44:55:66")

	info, err := decodeNeigh(netlink.Neigh{LinkIndex: 4, IP: ip, HardwareAddr: mac, State: unix.NUD_PERMANENT})
	if err != nil {
		t.Fatalf("decodeNeigh: %v", err)
	}
	if !info.Permanent() {
		t.Fatalf("expected NUD_PERMANENT neighbor to report Permanent() = true")
	}

	if _, err := decodeNeigh(netlink.Neigh{LinkIndex: 4}); err == nil {
		t.Fatalf("expected error decoding neighbor with no address")
	}
}

func TestNeighborInfoNotPermanent(t *testing.T) {
	n := NeighborInfo{State: unix.NUD_REACHABLE}
	if n.Permanent() {
		t.Fatalf("expected NUD_REACHABLE neighbor to not be permanent")
	}
}

func TestDecodeDefaultGateway(t *testing.T) {
	gwIP := net.ParseIP("192.168.1.1")

	t.Run("default route with gateway", func(t *testing.T) {
		gw, ok := decodeDefaultGateway(netlink.Route{LinkIndex: 3, Gw: gwIP})
		if !ok {
			t.Fatalf("expected ok=true for a route with no Dst and a gateway")
		}
		if gw.Ifidx != 3 || !gw.IP.Equal(gwIP) {
			t.Fatalf("decodeDefaultGateway() = %+v", gw)
		}
		if gw.IsV6() {
			t.Fatalf("expected IPv4 gateway to report IsV6() = false")
		}
	})

	t.Run("no gateway is not a default route candidate", func(t *testing.T) {
		if _, ok := decodeDefaultGateway(netlink.Route{LinkIndex: 3}); ok {
			t.Fatalf("expected ok=false for a route with no gateway")
		}
	})

	t.Run("non-default destination is dropped", func(t *testing.T) {
		_, dst, _ := net.ParseCIDR("10.0.0.0/24")
		if _, ok := decodeDefaultGateway(netlink.Route{LinkIndex: 3, Gw: gwIP, Dst: dst}); ok {
			t.Fatalf("expected ok=false for a route with a non-zero-length destination prefix")
		}
	})

	t.Run("explicit zero-length destination is a default route", func(t *testing.T) {
		_, dst, _ := net.ParseCIDR("0.0.0.0/0")
		gw, ok := decodeDefaultGateway(netlink.Route{LinkIndex: 3, Gw: gwIP, Dst: dst})
		if !ok {
			t.Fatalf("expected ok=true for an explicit 0.0.0.0/0 destination")
		}
		if gw.Ifidx != 3 {
			t.Fatalf("decodeDefaultGateway() = %+v", gw)
		}
	})

	t.Run("ipv6 gateway", func(t *testing.T) {
		gw6 := net.ParseIP("fe80::1")
		gw, ok := decodeDefaultGateway(netlink.Route{LinkIndex: 7, Gw: gw6})
		if !ok || !gw.IsV6() {
			t.Fatalf("expected an IPv6 gateway to decode and report IsV6() = true")
		}
	})
}
