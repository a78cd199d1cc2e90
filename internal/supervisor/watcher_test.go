package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/paradise2017/phosphor-networkd/internal/registry"
)

type fakeWatcherClient struct {
	links      []uint32
	adminState map[uint32]string
	changes    chan PropertyChange
}

func (f *fakeWatcherClient) ListLinks(ctx context.Context) ([]uint32, error) { return f.links, nil }
func (f *fakeWatcherClient) AdministrativeState(ctx context.Context, ifidx uint32) (string, error) {
	return f.adminState[ifidx], nil
}
func (f *fakeWatcherClient) Subscribe(ctx context.Context) (<-chan PropertyChange, error) {
	return f.changes, nil
}
func (f *fakeWatcherClient) Reload(ctx context.Context) error { return nil }

func TestWatcherEnumeratesStartupLinks(t *testing.T) {
	client := &fakeWatcherClient{
		links:      []uint32{3, 4},
		adminState: map[uint32]string{3: "managed", 4: "unmanaged"},
		changes:    make(chan PropertyChange),
	}
	w := NewWatcher(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan registry.AdminStateUpdate, 8)
	go w.Run(ctx, out)

	seen := map[uint32]string{}
	for i := 0; i < 2; i++ {
		select {
		case upd := <-out:
			seen[upd.Ifidx] = upd.State
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for startup enumeration updates")
		}
	}
	if seen[3] != "managed" || seen[4] != "unmanaged" {
		t.Fatalf("unexpected startup enumeration result: %v", seen)
	}
}

func TestWatcherDrainsPropertyChanges(t *testing.T) {
	client := &fakeWatcherClient{changes: make(chan PropertyChange, 2)}
	w := NewWatcher(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan registry.AdminStateUpdate, 8)
	go w.Run(ctx, out)

	client.changes <- PropertyChange{Path: "/xyz/openbmc_project/network/link/_35", Property: "AdministrativeState", Value: "managed"}
	client.changes <- PropertyChange{Path: "/xyz/openbmc_project/network/link/_35", Property: "SomeOtherProperty", Value: "ignored"}

	select {
	case upd := <-out:
		if upd.Ifidx != 5 || upd.State != "managed" {
			t.Fatalf("unexpected update: %+v", upd)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a property-change update")
	}

	select {
	case upd := <-out:
		t.Fatalf("expected no update for a non-AdministrativeState property change, got %+v", upd)
	case <-time.After(100 * time.Millisecond):
	}
}
