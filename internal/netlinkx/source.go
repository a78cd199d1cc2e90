package netlinkx

import (
	"context"
	"errors"
	"fmt"
	"log"
	"syscall"

	"github.com/vishvananda/netlink"
)

// Source is the kernel event source (C1). It performs the initial
// link/address/route/neighbor dump, then stays subscribed to the
// corresponding multicast groups for the lifetime of Run.
//
// Each vishvananda/netlink Subscribe call runs its own reader goroutine
// against the netlink socket and drains it until EAGAIN before handing a
// message to its update channel — the "drain until recv would block"
// requirement of spec.md §4.1 is therefore satisfied by construction,
// not by code in this package.
type Source struct {
	events chan Event
	errs   chan *DecodeError
	done   chan struct{}

	linkList  func() ([]netlink.Link, error)
	addrList  func() ([]netlink.Addr, error)
	routeList func() ([]netlink.Route, error)
	neighList func() ([]netlink.Neigh, error)
}

// NewSource creates a Source using the real netlink syscalls.
func NewSource() *Source {
	s := &Source{
		events: make(chan Event, 1024),
		errs:   make(chan *DecodeError, 256),
		done:   make(chan struct{}),
	}
	s.linkList = func() ([]netlink.Link, error) { return netlink.LinkList() }
	s.addrList = func() ([]netlink.Addr, error) { return netlink.AddrList(nil, netlink.FAMILY_ALL) }
	s.routeList = func() ([]netlink.Route, error) { return netlink.RouteList(nil, netlink.FAMILY_ALL) }
	s.neighList = func() ([]netlink.Neigh, error) { return netlink.NeighList(0, netlink.FAMILY_ALL) }
	return s
}

// Events returns the channel of decoded kernel events. Events from one
// subscription (links, addresses, routes, or neighbors) keep kernel
// delivery order; the order between events of different subscriptions
// is not preserved, since Run selects over four separate update
// channels.
func (s *Source) Events() <-chan Event { return s.events }

// Errors returns the channel of transient decode failures.
func (s *Source) Errors() <-chan *DecodeError { return s.errs }

type overrunKind int

const (
	overrunLink overrunKind = iota
	overrunAddr
	overrunRoute
	overrunNeigh
)

// Run performs the initial dump, subscribes to the four multicast
// groups, and dispatches events until ctx is cancelled. It is intended
// to run for the lifetime of the daemon in its own goroutine.
func (s *Source) Run(ctx context.Context) error {
	linkUpdates := make(chan netlink.LinkUpdate)
	addrUpdates := make(chan netlink.AddrUpdate)
	routeUpdates := make(chan netlink.RouteUpdate)
	neighUpdates := make(chan netlink.NeighUpdate)
	overrun := make(chan overrunKind, 8)

	onOverrunOrErr := func(kind overrunKind, label string) func(error) {
		return func(err error) {
			if errors.Is(err, syscall.ENOBUFS) {
				log.Printf("[netlinkx] %s subscription overran (ENOBUFS), re-dumping", label)
				select {
				case overrun <- kind:
				default:
				}
				return
			}
			log.Printf("[netlinkx] %s subscription error: %v", label, err)
		}
	}

	if err := netlink.LinkSubscribeWithOptions(linkUpdates, s.done, netlink.LinkSubscribeOptions{
		ErrorCallback: onOverrunOrErr(overrunLink, "link"),
	}); err != nil {
		return fmt.Errorf("netlinkx: subscribe link: %w", err)
	}
	if err := netlink.AddrSubscribeWithOptions(addrUpdates, s.done, netlink.AddrSubscribeOptions{
		ErrorCallback: onOverrunOrErr(overrunAddr, "addr"),
	}); err != nil {
		return fmt.Errorf("netlinkx: subscribe addr: %w", err)
	}
	if err := netlink.RouteSubscribeWithOptions(routeUpdates, s.done, netlink.RouteSubscribeOptions{
		ErrorCallback: onOverrunOrErr(overrunRoute, "route"),
	}); err != nil {
		return fmt.Errorf("netlinkx: subscribe route: %w", err)
	}
	if err := netlink.NeighSubscribeWithOptions(neighUpdates, s.done, netlink.NeighSubscribeOptions{
		ErrorCallback: onOverrunOrErr(overrunNeigh, "neigh"),
	}); err != nil {
		return fmt.Errorf("netlinkx: subscribe neigh: %w", err)
	}

	// Initial dumps, strictly in this order: links, addresses, routes,
	// neighbors (spec.md §4.1).
	s.dumpLinks()
	s.dumpAddrs()
	s.dumpRoutes()
	s.dumpNeighs()

	for {
		select {
		case <-ctx.Done():
			close(s.done)
			return ctx.Err()

		case u, ok := <-linkUpdates:
			if !ok {
				return fmt.Errorf("netlinkx: link subscription closed")
			}
			s.handleLinkUpdate(u)

		case u, ok := <-addrUpdates:
			if !ok {
				return fmt.Errorf("netlinkx: addr subscription closed")
			}
			s.handleAddrUpdate(u)

		case u, ok := <-routeUpdates:
			if !ok {
				return fmt.Errorf("netlinkx: route subscription closed")
			}
			s.handleRouteUpdate(u)

		case u, ok := <-neighUpdates:
			if !ok {
				return fmt.Errorf("netlinkx: neigh subscription closed")
			}
			s.handleNeighUpdate(u)

		case kind := <-overrun:
			switch kind {
			case overrunLink:
				s.dumpLinks()
			case overrunAddr:
				s.dumpAddrs()
			case overrunRoute:
				s.dumpRoutes()
			case overrunNeigh:
				s.dumpNeighs()
			}
		}
	}
}

func (s *Source) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Source) fail(ifidx uint32, err error) {
	select {
	case s.errs <- &DecodeError{Ifidx: ifidx, Err: err}:
	default:
		log.Printf("[netlinkx] error channel full, dropping decode error for ifidx %d: %v", ifidx, err)
	}
}

func (s *Source) dumpLinks() {
	links, err := s.linkList()
	if err != nil {
		log.Printf("[netlinkx] dump links: %v", err)
		return
	}
	for _, l := range links {
		info, ok := decodeLink(l)
		if !ok {
			continue
		}
		s.emit(Event{Kind: EventNewLink, Ifidx: info.Idx, Link: &info})
	}
}

func (s *Source) dumpAddrs() {
	addrs, err := s.addrList()
	if err != nil {
		log.Printf("[netlinkx] dump addrs: %v", err)
		return
	}
	for _, a := range addrs {
		ifidx := uint32(a.LinkIndex)
		info, err := decodeAddr(ifidx, a)
		if err != nil {
			s.fail(ifidx, err)
			continue
		}
		s.emit(Event{Kind: EventNewAddr, Ifidx: ifidx, Addr: &info})
	}
}

func (s *Source) dumpRoutes() {
	routes, err := s.routeList()
	if err != nil {
		log.Printf("[netlinkx] dump routes: %v", err)
		return
	}
	for _, r := range routes {
		gw, ok := decodeDefaultGateway(r)
		if !ok {
			continue
		}
		s.emit(Event{Kind: EventNewRoute, Ifidx: gw.Ifidx, Gateway: &gw})
	}
}

func (s *Source) dumpNeighs() {
	neighs, err := s.neighList()
	if err != nil {
		log.Printf("[netlinkx] dump neighs: %v", err)
		return
	}
	for _, n := range neighs {
		ifidx := uint32(n.LinkIndex)
		info, err := decodeNeigh(n)
		if err != nil {
			s.fail(ifidx, err)
			continue
		}
		if !info.Permanent() {
			continue
		}
		s.emit(Event{Kind: EventNewNeigh, Ifidx: ifidx, Neigh: &info})
	}
}

func (s *Source) handleLinkUpdate(u netlink.LinkUpdate) {
	attrs := u.Attrs()
	if attrs == nil {
		s.fail(0, fmt.Errorf("link update with no attributes"))
		return
	}
	ifidx := uint32(attrs.Index)
	if u.Header.Type == syscall.RTM_DELLINK {
		s.emit(Event{Kind: EventDelLink, Ifidx: ifidx, Link: &InterfaceInfo{Idx: ifidx, Name: attrs.Name}})
		return
	}
	info, ok := decodeLink(u.Link)
	if !ok {
		s.fail(ifidx, fmt.Errorf("undecodable link update"))
		return
	}
	s.emit(Event{Kind: EventNewLink, Ifidx: ifidx, Link: &info})
}

func (s *Source) handleAddrUpdate(u netlink.AddrUpdate) {
	ifidx := uint32(u.LinkIndex)
	ipnet := &u.LinkAddress
	info := AddressInfo{Ifidx: ifidx, IPNet: ipnet, Scope: uint8(u.Scope), Flags: uint32(u.Flags)}
	if u.NewAddr {
		s.emit(Event{Kind: EventNewAddr, Ifidx: ifidx, Addr: &info})
	} else {
		s.emit(Event{Kind: EventDelAddr, Ifidx: ifidx, Addr: &info})
	}
}

func (s *Source) handleRouteUpdate(u netlink.RouteUpdate) {
	gw, ok := decodeDefaultGateway(u.Route)
	if !ok {
		return
	}
	if u.Type == syscall.RTM_DELROUTE {
		s.emit(Event{Kind: EventDelRoute, Ifidx: gw.Ifidx, Gateway: &gw})
		return
	}
	s.emit(Event{Kind: EventNewRoute, Ifidx: gw.Ifidx, Gateway: &gw})
}

func (s *Source) handleNeighUpdate(u netlink.NeighUpdate) {
	ifidx := uint32(u.Neigh.LinkIndex)
	info, err := decodeNeigh(u.Neigh)
	if err != nil {
		// Removal notifications may legitimately carry no address; only
		// additions require one (spec.md §3).
		if u.Type == syscall.RTM_DELNEIGH {
			return
		}
		s.fail(ifidx, err)
		return
	}
	if u.Type == syscall.RTM_DELNEIGH {
		s.emit(Event{Kind: EventDelNeigh, Ifidx: ifidx, Neigh: &info})
		return
	}
	if !info.Permanent() {
		return
	}
	s.emit(Event{Kind: EventNewNeigh, Ifidx: ifidx, Neigh: &info})
}
