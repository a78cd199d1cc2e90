package ethif

import (
	"fmt"
	"net"

	"github.com/paradise2017/phosphor-networkd/internal/ipcbus"
	"github.com/paradise2017/phosphor-networkd/internal/netlinkx"
)

// ObjectPathRoot is the object-manager root spec.md §6 says is produced
// on the IPC bus, default `/xyz/openbmc_project/network`.
const ObjectPathRoot = "/xyz/openbmc_project/network"

// EthernetInterface is the per-interface object (C5): it holds one
// interface's runtime properties, writes its own configuration file,
// and owns its addresses and static neighbors. spec.md treats this as a
// contract rather than specifying it in depth; this implementation
// fills exactly the operations the registry invokes on it (§4.3).
type EthernetInterface struct {
	Idx       uint32
	Name      string
	Managed   bool
	MAC       net.HardwareAddr
	MTU       *uint32
	Kind      string
	ParentIdx *uint32
	VLANID    *uint16

	parentName string

	DefGw4 net.IP
	DefGw6 net.IP

	Addrs        map[string]netlinkx.AddressInfo
	StaticNeighs map[string]netlinkx.NeighborInfo

	DNSServers []string
	NTPServers []string

	bus    ipcbus.Sink
	writer *Writer
}

// New constructs an EthernetInterface for a freshly-admitted registry
// entry. Corresponds to createInterface's step 5–6 (spec.md §4.3): load
// persisted config, construct, load DNS/NTP.
func New(info netlinkx.InterfaceInfo, cfg Config, managed bool, bus ipcbus.Sink, writer *Writer) *EthernetInterface {
	e := &EthernetInterface{
		Idx:          info.Idx,
		Name:         info.Name,
		Managed:      managed,
		MAC:          info.MAC,
		MTU:          info.MTU,
		Kind:         info.Kind,
		ParentIdx:    info.ParentIdx,
		VLANID:       info.VLANID,
		Addrs:        make(map[string]netlinkx.AddressInfo),
		StaticNeighs: make(map[string]netlinkx.NeighborInfo),
		DNSServers:   cfg.DNSServers,
		NTPServers:   cfg.NTPServers,
		bus:          bus,
		writer:       writer,
	}
	if bus != nil {
		bus.EmitAdded(e.Path(), e.properties())
	}
	return e
}

// Path is this object's IPC bus path.
func (e *EthernetInterface) Path() string {
	return ObjectPathRoot + "/" + e.Name
}

func (e *EthernetInterface) properties() map[string]interface{} {
	return map[string]interface{}{
		"Idx":     e.Idx,
		"Managed": e.Managed,
	}
}

// UpdateInfo applies a new InterfaceInfo in place (idx/name unchanged;
// the registry handles name changes by re-creating). Returns whether
// anything actually changed, so replaying the same RTM_NEWLINK twice is
// a provable no-op (spec.md §8).
func (e *EthernetInterface) UpdateInfo(info netlinkx.InterfaceInfo) bool {
	changed := !macEqual(e.MAC, info.MAC) ||
		!u32PtrEqual(e.MTU, info.MTU) ||
		e.Kind != info.Kind ||
		!u32PtrEqual(e.ParentIdx, info.ParentIdx) ||
		!u16PtrEqual(e.VLANID, info.VLANID)
	if !changed {
		return false
	}
	e.MAC = info.MAC
	e.MTU = info.MTU
	e.Kind = info.Kind
	e.ParentIdx = info.ParentIdx
	e.VLANID = info.VLANID
	if e.bus != nil {
		e.bus.EmitPropertyChanged(e.Path(), "MAC", e.MAC.String())
	}
	return true
}

// SetManaged updates the administrative-state derived managed flag.
func (e *EthernetInterface) SetManaged(managed bool) {
	if e.Managed == managed {
		return
	}
	e.Managed = managed
	if e.bus != nil {
		e.bus.EmitPropertyChanged(e.Path(), "Managed", managed)
	}
}

// AddAddress mirrors an address into this object's address map.
// Deprecated addresses must never reach here; the registry filters
// them before calling in.
func (e *EthernetInterface) AddAddress(a netlinkx.AddressInfo) {
	e.Addrs[a.Key()] = a
}

// RemoveAddress removes an address if present; absence is not an
// error.
func (e *EthernetInterface) RemoveAddress(a netlinkx.AddressInfo) {
	delete(e.Addrs, a.Key())
}

// AddNeighbor mirrors a static (PERMANENT) neighbor entry.
func (e *EthernetInterface) AddNeighbor(n netlinkx.NeighborInfo) {
	if n.IP == nil {
		return
	}
	e.StaticNeighs[n.IP.String()] = n
}

// RemoveNeighbor removes a neighbor entry if present.
func (e *EthernetInterface) RemoveNeighbor(n netlinkx.NeighborInfo) {
	if n.IP == nil {
		return
	}
	delete(e.StaticNeighs, n.IP.String())
}

// SetDefaultGateway records a default gateway for the given family.
func (e *EthernetInterface) SetDefaultGateway(gw netlinkx.DefaultGateway) {
	if gw.IsV6() {
		e.DefGw6 = gw.IP
	} else {
		e.DefGw4 = gw.IP
	}
	if e.bus != nil {
		prop := "DefaultGateway4"
		if gw.IsV6() {
			prop = "DefaultGateway6"
		}
		e.bus.EmitPropertyChanged(e.Path(), prop, gw.IP.String())
	}
}

// ClearDefaultGateway clears the stored gateway for gw's family, but
// only if it still equals gw — guards against a newer value having
// arrived first (spec.md §4.3 addDefGw/removeDefGw).
func (e *EthernetInterface) ClearDefaultGateway(gw netlinkx.DefaultGateway) {
	if gw.IsV6() {
		if e.DefGw6 != nil && e.DefGw6.Equal(gw.IP) {
			e.DefGw6 = nil
		}
		return
	}
	if e.DefGw4 != nil && e.DefGw4.Equal(gw.IP) {
		e.DefGw4 = nil
	}
}

// WriteConfigFile asks the writer to emit this interface's systemd-
// networkd configuration. Idempotent: atomicWrite always replaces the
// file, but the rendered content is deterministic from current state,
// so re-writing unchanged state yields identical content.
func (e *EthernetInterface) WriteConfigFile() error {
	if e.writer == nil {
		return nil
	}
	cidr, gateway := e.staticConfig()
	if e.VLANID != nil && e.ParentParentName() != "" {
		return e.writer.WriteVLAN(e.Name, e.ParentParentName(), *e.VLANID, cidr, e.DNSServers)
	}
	return e.writer.WriteNetwork(e.Name, cidr, gateway, e.DNSServers)
}

// ParentParentName is a placeholder the registry fills via
// SetParentName once the parent's name is known (VLAN children are
// decoded with only a parent *index*, per InterfaceInfo.ParentIdx).
func (e *EthernetInterface) ParentParentName() string { return e.parentName }

// SetParentName records the resolved parent interface name for a VLAN
// child, looked up by the registry from ParentIdx.
func (e *EthernetInterface) SetParentName(name string) { e.parentName = name }

func (e *EthernetInterface) staticConfig() (cidr, gateway string) {
	// Pick the lowest address string so the choice does not depend on
	// map iteration order.
	for _, a := range e.Addrs {
		if a.IPNet != nil {
			if s := a.IPNet.String(); cidr == "" || s < cidr {
				cidr = s
			}
		}
	}
	if e.DefGw4 != nil {
		gateway = e.DefGw4.String()
	} else if e.DefGw6 != nil {
		gateway = e.DefGw6.String()
	}
	return cidr, gateway
}

// CreateVLAN delegates VLAN device creation to this (parent) object,
// per spec.md §4.3 vlan(): writes the netdev/attachment/network files
// and returns the would-be child's object path. The registry object
// itself is created later, when the kernel reports NEWLINK for the new
// device (spec.md §8 scenario 4).
func (e *EthernetInterface) CreateVLAN(name string, id uint16) (string, error) {
	if e.writer == nil {
		return "", fmt.Errorf("ethif: no writer configured")
	}
	if err := e.writer.WriteVLAN(name, e.Name, id, "", nil); err != nil {
		return "", err
	}
	return ObjectPathRoot + "/" + name, nil
}

// Remove deletes this interface's configuration file and emits the
// removal event. Called by the registry as part of removeInterface.
func (e *EthernetInterface) Remove() {
	if e.writer != nil {
		if e.VLANID != nil && e.parentName != "" {
			_ = e.writer.RemoveVLAN(e.Name, e.parentName, *e.VLANID)
		} else {
			_ = e.writer.RemoveInterface(e.Name)
		}
	}
	if e.bus != nil {
		e.bus.EmitRemoved(e.Path())
	}
}

func macEqual(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func u32PtrEqual(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func u16PtrEqual(a, b *uint16) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
