// Package reload is the deferred reload coordinator (C6): a debounced
// trigger plus ordered, one-shot pre/post hook lists and the
// supervisor Reload RPC (spec.md §4.5).
package reload

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paradise2017/phosphor-networkd/internal/audit"
	"github.com/paradise2017/phosphor-networkd/internal/supervisor"
)

// QuietPeriod is the fixed debounce window (spec.md §4.5, §5).
const QuietPeriod = 3 * time.Second

// Hook is a one-shot pre- or post-reload action. A hook's own failure
// is logged and never aborts the firing sequence.
type Hook func(ctx context.Context) error

// Coordinator implements spec.md §4.5. Safe for concurrent Schedule/
// AddPreHook/AddPostHook calls: the registry's event loop, httpapi
// handlers, and hooks running inside a firing each call these from
// their own goroutines.
type Coordinator struct {
	mu        sync.Mutex
	timer     *time.Timer
	preHooks  []Hook
	postHooks []Hook

	client   supervisor.Client
	auditLog *audit.BufferedLogger
}

func NewCoordinator(client supervisor.Client, auditLog *audit.BufferedLogger) *Coordinator {
	return &Coordinator{client: client, auditLog: auditLog}
}

// AddPreHook appends a one-shot hook that runs before the supervisor
// Reload RPC on the next firing.
func (c *Coordinator) AddPreHook(h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preHooks = append(c.preHooks, h)
}

// AddPostHook appends a one-shot hook that runs after a successful
// Reload RPC on the next firing.
func (c *Coordinator) AddPostHook(h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postHooks = append(c.postHooks, h)
}

// Schedule (re)arms the debounce timer. Successive calls within
// QuietPeriod collapse into a single firing.
func (c *Coordinator) Schedule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(QuietPeriod, c.fire)
}

func (c *Coordinator) fire() {
	c.mu.Lock()
	pre := c.preHooks
	post := c.postHooks
	c.preHooks = nil
	c.postHooks = nil
	c.mu.Unlock()

	id := uuid.NewString()
	ctx := context.Background()

	for _, h := range pre {
		if err := h(ctx); err != nil {
			log.Printf("[reload %s] pre-hook failed: %v", id, err)
		}
	}

	if err := c.client.Reload(ctx); err != nil {
		log.Printf("[reload %s] supervisor reload failed, discarding post-hooks: %v", id, err)
		if c.auditLog != nil {
			_ = c.auditLog.Log(audit.Event{
				Action:  "reload_failed",
				Details: id + ": " + err.Error(),
				Success: false,
			})
		}
		return
	}
	log.Printf("[reload %s] supervisor reload OK", id)

	for _, h := range post {
		if err := h(ctx); err != nil {
			log.Printf("[reload %s] post-hook failed: %v", id, err)
		}
	}
}
