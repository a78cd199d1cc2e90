package registry

import (
	"context"
	"log"

	"github.com/paradise2017/phosphor-networkd/internal/netlinkx"
)

// Run is the registry's single-threaded event loop (spec.md §5): it is
// the only goroutine that ever calls the unexported mutation methods,
// so none of them need locking. Within one socket drain, netlinkx
// delivers many events back-to-back on the same channel; since this
// loop never yields control between them except at the select
// boundary, ordering is preserved and no event is interleaved with
// another's processing.
func (m *Manager) Run(
	ctx context.Context,
	events <-chan netlinkx.Event,
	decodeErrs <-chan *netlinkx.DecodeError,
	adminStates <-chan AdminStateUpdate,
	scheduler Scheduler,
) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			m.dispatch(ev, scheduler)

		case derr, ok := <-decodeErrs:
			if !ok {
				continue
			}
			if _, ignored := m.ignoredIntf[derr.Ifidx]; !ignored {
				log.Printf("[registry] decode error on ifidx %d: %v", derr.Ifidx, derr.Err)
			}

		case upd, ok := <-adminStates:
			if !ok {
				continue
			}
			m.handleAdminState(upd.Ifidx, upd.State)
			if scheduler != nil {
				scheduler.Schedule()
			}
		}
	}
}

func (m *Manager) dispatch(ev netlinkx.Event, scheduler Scheduler) {
	switch ev.Kind {
	case netlinkx.EventNewLink:
		if ev.Link == nil {
			return
		}
		m.addInterface(*ev.Link)
		if scheduler != nil {
			scheduler.Schedule()
		}

	case netlinkx.EventDelLink:
		name := ""
		if ev.Link != nil {
			name = ev.Link.Name
		} else if all, ok := m.intfInfo[ev.Ifidx]; ok {
			name = all.Intf.Name
		}
		m.removeInterface(ev.Ifidx, name)
		if scheduler != nil {
			scheduler.Schedule()
		}

	case netlinkx.EventNewAddr:
		if ev.Addr == nil {
			return
		}
		if err := m.addAddress(*ev.Addr); err != nil {
			log.Printf("[registry] addAddress: %v", err)
			return
		}
		if scheduler != nil {
			scheduler.Schedule()
		}

	case netlinkx.EventDelAddr:
		if ev.Addr == nil {
			return
		}
		if err := m.removeAddress(*ev.Addr); err != nil {
			log.Printf("[registry] removeAddress: %v", err)
			return
		}
		if scheduler != nil {
			scheduler.Schedule()
		}

	case netlinkx.EventNewNeigh:
		if ev.Neigh == nil {
			return
		}
		if err := m.addNeighbor(*ev.Neigh); err != nil {
			log.Printf("[registry] addNeighbor: %v", err)
		}

	case netlinkx.EventDelNeigh:
		if ev.Neigh == nil {
			return
		}
		if err := m.removeNeighbor(*ev.Neigh); err != nil {
			log.Printf("[registry] removeNeighbor: %v", err)
		}

	case netlinkx.EventNewRoute:
		if ev.Gateway == nil {
			return
		}
		if err := m.addDefGw(*ev.Gateway); err != nil {
			log.Printf("[registry] addDefGw: %v", err)
			return
		}
		if scheduler != nil {
			scheduler.Schedule()
		}

	case netlinkx.EventDelRoute:
		if ev.Gateway == nil {
			return
		}
		if err := m.removeDefGw(*ev.Gateway); err != nil {
			log.Printf("[registry] removeDefGw: %v", err)
			return
		}
		if scheduler != nil {
			scheduler.Schedule()
		}
	}
}
