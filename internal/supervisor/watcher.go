package supervisor

import (
	"context"
	"log"
	"time"

	"github.com/paradise2017/phosphor-networkd/internal/registry"
)

// Watcher drives C3: at startup it enumerates every link the
// supervisor knows about and queries each one's AdministrativeState,
// then stays subscribed to PropertiesChanged notifications for the
// lifetime of the daemon. Supervisor unavailability, at startup or
// later, is never fatal (spec.md §4.4, §7.4) — a failed startup
// enumeration is logged and skipped, a failed subscription is logged
// and retried; the registry simply has no opinion on those indices
// until state arrives.
type Watcher struct {
	client       Client
	retryBackoff time.Duration
}

func NewWatcher(client Client) *Watcher {
	return &Watcher{client: client, retryBackoff: 5 * time.Second}
}

// Run delivers AdminStateUpdate values to out until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, out chan<- registry.AdminStateUpdate) {
	w.enumerateStartup(ctx, out)

	for {
		if ctx.Err() != nil {
			return
		}
		changes, err := w.client.Subscribe(ctx)
		if err != nil {
			log.Printf("[supervisor] subscribe failed, retrying in %s: %v", w.retryBackoff, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.retryBackoff):
				continue
			}
		}
		w.drain(ctx, changes, out)
	}
}

func (w *Watcher) enumerateStartup(ctx context.Context, out chan<- registry.AdminStateUpdate) {
	links, err := w.client.ListLinks(ctx)
	if err != nil {
		log.Printf("[supervisor] startup enumeration unavailable, continuing without it: %v", err)
		return
	}
	for _, idx := range links {
		state, err := w.client.AdministrativeState(ctx, idx)
		if err != nil {
			log.Printf("[supervisor] query AdministrativeState for idx %d: %v", idx, err)
			continue
		}
		select {
		case out <- registry.AdminStateUpdate{Ifidx: idx, State: state}:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) drain(ctx context.Context, changes <-chan PropertyChange, out chan<- registry.AdminStateUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if change.Property != "AdministrativeState" {
				continue
			}
			ifidx, ok := ParseLinkPath(change.Path)
			if !ok {
				log.Printf("[supervisor] malformed link path %q, dropping", change.Path)
				continue
			}
			select {
			case out <- registry.AdminStateUpdate{Ifidx: ifidx, State: change.Value}:
			case <-ctx.Done():
				return
			}
		}
	}
}
