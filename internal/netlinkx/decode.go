package netlinkx

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// decodeLink translates a vishvananda/netlink Link into InterfaceInfo.
// It does NOT filter by hardware type — spec.md §4.3 addInterface makes
// that call (non-ETHER links are admitted to ignored_intf, not dropped
// at decode time), so every link the kernel reports comes through here.
func decodeLink(link netlink.Link) (InterfaceInfo, bool) {
	attrs := link.Attrs()
	if attrs == nil {
		return InterfaceInfo{}, false
	}

	info := InterfaceInfo{
		Idx:   uint32(attrs.Index),
		Name:  attrs.Name,
		Type:  encapToHWType(attrs.EncapType),
		Flags: uint32(attrs.Flags),
		Kind:  link.Type(),
	}
	if len(attrs.HardwareAddr) == 6 {
		info.MAC = attrs.HardwareAddr
	}
	if attrs.MTU > 0 {
		mtu := uint32(attrs.MTU)
		info.MTU = &mtu
	}
	if attrs.ParentIndex > 0 {
		parent := uint32(attrs.ParentIndex)
		info.ParentIdx = &parent
	}
	if vlan, ok := link.(*netlink.Vlan); ok {
		vid := uint16(vlan.VlanId)
		info.VLANID = &vid
	}
	return info, true
}

// encapToHWType maps the kernel's encapsulation-type string (as
// surfaced by vishvananda/netlink's LinkAttrs.EncapType) to the ARP
// hardware type the registry filters on. Only the ether/non-ether
// distinction is load-bearing; non-ether values are kept distinct
// mainly for log readability.
func encapToHWType(encap string) HWType {
	switch encap {
	case "ether":
		return HWTypeEther
	case "loopback":
		return 772 // ARPHRD_LOOPBACK
	case "none":
		return 65534 // ARPHRD_NONE
	default:
		return 65535
	}
}

// decodeAddr translates a vishvananda/netlink Addr into AddressInfo.
func decodeAddr(ifidx uint32, addr netlink.Addr) (AddressInfo, error) {
	if addr.IPNet == nil {
		return AddressInfo{}, fmt.Errorf("address with nil IPNet on ifidx %d", ifidx)
	}
	return AddressInfo{
		Ifidx: ifidx,
		IPNet: addr.IPNet,
		Scope: uint8(addr.Scope),
		Flags: uint32(addr.Flags),
	}, nil
}

// decodeNeigh translates a vishvananda/netlink Neigh into NeighborInfo.
func decodeNeigh(neigh netlink.Neigh) (NeighborInfo, error) {
	if neigh.IP == nil {
		return NeighborInfo{}, fmt.Errorf("neighbor with no address on ifidx %d", neigh.LinkIndex)
	}
	return NeighborInfo{
		Ifidx:  uint32(neigh.LinkIndex),
		IP:     neigh.IP,
		LLAddr: neigh.HardwareAddr,
		State:  uint16(neigh.State),
	}, nil
}

// decodeDefaultGateway returns (gw, true) only when route describes a
// default route: destination prefix length zero (or nil, meaning
// "any") and a gateway attribute present. Every other route is silently
// dropped per spec.md §4.2.
func decodeDefaultGateway(route netlink.Route) (DefaultGateway, bool) {
	if route.Gw == nil {
		return DefaultGateway{}, false
	}
	if route.Dst != nil {
		ones, _ := route.Dst.Mask.Size()
		if ones != 0 {
			return DefaultGateway{}, false
		}
	}
	return DefaultGateway{
		Ifidx: uint32(route.LinkIndex),
		IP:    route.Gw,
	}, true
}
