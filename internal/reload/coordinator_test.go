package reload

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/paradise2017/phosphor-networkd/internal/supervisor"
)

type fakeClient struct {
	mu         sync.Mutex
	reloads    int
	reloadErr  error
	links      []uint32
	adminState map[uint32]string
}

func (f *fakeClient) ListLinks(ctx context.Context) ([]uint32, error) { return f.links, nil }
func (f *fakeClient) AdministrativeState(ctx context.Context, ifidx uint32) (string, error) {
	return f.adminState[ifidx], nil
}
func (f *fakeClient) Subscribe(ctx context.Context) (<-chan supervisor.PropertyChange, error) {
	return make(chan supervisor.PropertyChange), nil
}
func (f *fakeClient) Reload(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return f.reloadErr
}

func (f *fakeClient) reloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestScheduleDebouncesMultipleCalls(t *testing.T) {
	client := &fakeClient{}
	c := NewCoordinator(client, nil)

	c.Schedule()
	c.Schedule()
	c.Schedule()

	waitFor(t, 2*QuietPeriod, func() bool { return client.reloadCount() == 1 })
	time.Sleep(QuietPeriod)
	if got := client.reloadCount(); got != 1 {
		t.Fatalf("expected exactly one debounced reload, got %d", got)
	}
}

func TestHooksAreOneShot(t *testing.T) {
	client := &fakeClient{}
	c := NewCoordinator(client, nil)

	var preRuns, postRuns int
	var mu sync.Mutex
	c.AddPreHook(func(ctx context.Context) error {
		mu.Lock()
		preRuns++
		mu.Unlock()
		return nil
	})
	c.AddPostHook(func(ctx context.Context) error {
		mu.Lock()
		postRuns++
		mu.Unlock()
		return nil
	})

	c.Schedule()
	waitFor(t, 2*QuietPeriod, func() bool { return client.reloadCount() == 1 })

	c.Schedule()
	waitFor(t, 2*QuietPeriod, func() bool { return client.reloadCount() == 2 })

	mu.Lock()
	defer mu.Unlock()
	if preRuns != 1 || postRuns != 1 {
		t.Fatalf("expected one-shot hooks to run exactly once each, got pre=%d post=%d", preRuns, postRuns)
	}
}

func TestPostHooksDiscardedOnReloadFailure(t *testing.T) {
	client := &fakeClient{reloadErr: errBoom}
	c := NewCoordinator(client, nil)

	var postRan bool
	c.AddPostHook(func(ctx context.Context) error {
		postRan = true
		return nil
	})

	c.Schedule()
	waitFor(t, 2*QuietPeriod, func() bool { return client.reloadCount() == 1 })
	time.Sleep(50 * time.Millisecond)

	if postRan {
		t.Fatalf("expected post-hooks to be discarded when the reload RPC fails")
	}
}

var errBoom = &staticError{"boom"}

type staticError struct{ msg string }

func (e *staticError) Error() string { return e.msg }
