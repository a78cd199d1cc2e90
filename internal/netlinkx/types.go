// Package netlinkx is the kernel event source (C1) and message decoder
// (C2) of the network registry core: it opens a netlink-route socket,
// performs the initial link/address/route/neighbor dump, stays
// subscribed to the corresponding multicast groups, and translates every
// message into one of the typed events described in spec.md §3.
//
// The daemon's own ip(8)-equivalent helper historically hand-rolled these
// messages over the raw syscall package — adequate for one-shot
// request/reply calls (link up/down, address add, route replace) but
// with no support for multicast subscription, which this component
// requires. vishvananda/netlink supplies that idiomatically (see
// DESIGN.md), so it is used for both the dump and the subscription side
// rather than extending the hand-rolled client.
package netlinkx

import "net"

// HWType mirrors the kernel's ARP hardware type field (ifi_type).
type HWType uint16

// ARP hardware type for Ethernet. Every other value is permanently
// ignored per spec.md §3.
const HWTypeEther HWType = 1

// InterfaceInfo is the kernel's view of one network link.
type InterfaceInfo struct {
	Idx       uint32
	Name      string
	Type      HWType
	MAC       net.HardwareAddr // nil if absent
	MTU       *uint32
	Flags     uint32
	Kind      string // e.g. "vlan"; empty if not a virtual link
	ParentIdx *uint32
	VLANID    *uint16
}

// AddressInfo is one IP address assigned to an interface.
type AddressInfo struct {
	Ifidx uint32
	IPNet *net.IPNet
	Scope uint8
	Flags uint32
}

// Key returns the equality key AllIntfInfo.addrs is keyed by: address
// plus prefix length.
func (a AddressInfo) Key() string {
	if a.IPNet == nil {
		return ""
	}
	return a.IPNet.String()
}

// Deprecated reports whether the kernel has marked this address
// deprecated (IFA_F_DEPRECATED). Such addresses must never reach the
// registry.
func (a AddressInfo) Deprecated() bool {
	return a.Flags&flagDeprecated != 0
}

// NeighborInfo is one neighbor-table entry.
type NeighborInfo struct {
	Ifidx  uint32
	IP     net.IP
	LLAddr net.HardwareAddr
	State  uint16
}

// Permanent reports whether the NUD_PERMANENT bit is set — the only
// neighbor entries the registry retains (spec.md §3).
func (n NeighborInfo) Permanent() bool {
	return n.State&stateNeighPermanent != 0
}

// DefaultGateway is a route with destination prefix length zero and a
// gateway attribute.
type DefaultGateway struct {
	Ifidx uint32
	IP    net.IP
}

// IsV6 reports whether this is an IPv6 default gateway.
func (g DefaultGateway) IsV6() bool {
	return g.IP != nil && g.IP.To4() == nil
}

// EventKind discriminates the typed events the source emits.
type EventKind int

const (
	EventNewLink EventKind = iota
	EventDelLink
	EventNewAddr
	EventDelAddr
	EventNewNeigh
	EventDelNeigh
	EventNewRoute
	EventDelRoute
)

func (k EventKind) String() string {
	switch k {
	case EventNewLink:
		return "NEWLINK"
	case EventDelLink:
		return "DELLINK"
	case EventNewAddr:
		return "NEWADDR"
	case EventDelAddr:
		return "DELADDR"
	case EventNewNeigh:
		return "NEWNEIGH"
	case EventDelNeigh:
		return "DELNEIGH"
	case EventNewRoute:
		return "NEWROUTE"
	case EventDelRoute:
		return "DELROUTE"
	default:
		return "UNKNOWN"
	}
}

// Event is one kernel-originated message, already decoded to the typed
// payload the registry understands. Ifidx is always populated, even on
// a decode error, so the error can be attributed and suppressed for
// ignored interfaces.
type Event struct {
	Kind    EventKind
	Ifidx   uint32
	Link    *InterfaceInfo
	Addr    *AddressInfo
	Neigh   *NeighborInfo
	Gateway *DefaultGateway
}

// DecodeError is a transient, non-fatal failure to decode one message.
// Per spec.md §7.1, the caller logs and continues unless Ifidx is in the
// ignore set.
type DecodeError struct {
	Ifidx uint32
	Err   error
}

func (e *DecodeError) Error() string { return e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }
