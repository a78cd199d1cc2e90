package registry

import (
	"fmt"
	"log"

	"github.com/paradise2017/phosphor-networkd/internal/ethif"
	"github.com/paradise2017/phosphor-networkd/internal/netlinkx"
)

// fatalf aborts the process on detected registry corruption (spec.md
// §3, §7.6). A package variable so tests can substitute a
// non-terminating stand-in and assert it was called.
var fatalf = log.Fatalf

// addInterface is spec.md §4.3 addInterface.
func (m *Manager) addInterface(info netlinkx.InterfaceInfo) {
	if info.Type != netlinkx.HWTypeEther {
		m.ignoredIntf[info.Idx] = struct{}{}
		return
	}
	if info.Name != "" && m.matchesIgnoreList(info.Name) {
		if !m.loggedIgnore[info.Name] {
			log.Printf("[registry] ignoring interface %s (matches ignore list)", info.Name)
			m.loggedIgnore[info.Name] = true
		}
		m.ignoredIntf[info.Idx] = struct{}{}
		return
	}

	all, ok := m.intfInfo[info.Idx]
	if !ok {
		all = newAllIntfInfo(info)
		m.intfInfo[info.Idx] = all
	} else {
		all.Intf = info
	}

	if managed, known := m.supervisorState[info.Idx]; known {
		m.createInterface(all, managed)
	}
}

// createInterface is spec.md §4.3 createInterface.
func (m *Manager) createInterface(all *AllIntfInfo, managed bool) {
	idx := all.Intf.Idx
	if _, ignored := m.ignoredIntf[idx]; ignored {
		return
	}

	if obj, ok := m.interfacesByIdx[idx]; ok {
		if obj.Name != all.Intf.Name {
			m.destroyObject(obj)
		} else {
			obj.UpdateInfo(all.Intf)
			obj.SetManaged(managed)
			m.resolveParentName(obj)
			return
		}
	}

	if obj, ok := m.interfaces[all.Intf.Name]; ok && all.Intf.Name != "" {
		delete(m.interfacesByIdx, obj.Idx)
		obj.Idx = idx
		obj.UpdateInfo(all.Intf)
		obj.SetManaged(managed)
		m.interfacesByIdx[idx] = obj
		m.resolveParentName(obj)
		return
	}

	if all.Intf.Name == "" {
		log.Printf("[registry] cannot create interface for idx %d: no name", idx)
		return
	}

	cfg, err := m.loader.Load(all.Intf.Name)
	if err != nil {
		log.Printf("[registry] load config for %s: %v", all.Intf.Name, err)
	}

	obj := ethif.New(all.Intf, cfg, managed, m.bus, m.writer)
	for _, a := range all.Addrs {
		obj.AddAddress(a)
	}
	for _, n := range all.StaticNeighs {
		obj.AddNeighbor(n)
	}
	if all.DefGw4 != nil {
		obj.DefGw4 = all.DefGw4
	}
	if all.DefGw6 != nil {
		obj.DefGw6 = all.DefGw6
	}

	m.interfaces[all.Intf.Name] = obj
	m.interfacesByIdx[idx] = obj
	m.resolveParentName(obj)

	m.logAudit("interface_added", idx, all.Intf.Name, "", true)
}

// resolveParentName fills a VLAN child's parent name once the parent
// object is known, since InterfaceInfo only carries ParentIdx.
func (m *Manager) resolveParentName(obj *ethif.EthernetInterface) {
	if obj.ParentIdx == nil {
		return
	}
	if parent, ok := m.interfacesByIdx[*obj.ParentIdx]; ok {
		obj.SetParentName(parent.Name)
	}
}

// destroyObject removes obj from both maps in the ownership-safe
// order: by-idx erase, then by-name erase (the latter is what releases
// the object per spec.md §3 Ownership).
func (m *Manager) destroyObject(obj *ethif.EthernetInterface) {
	delete(m.interfacesByIdx, obj.Idx)
	delete(m.interfaces, obj.Name)
	obj.Remove()
}

// removeInterface is spec.md §4.3 removeInterface.
func (m *Manager) removeInterface(idx uint32, name string) {
	byIdx, hasIdx := m.interfacesByIdx[idx]
	byName, hasName := m.interfaces[name]

	if hasIdx && hasName && byIdx != byName {
		m.logAudit("registry_corruption", idx, name, "idx and name lookups resolved to different objects", false)
		fatalf("registry corrupt: idx %d and name %q resolved to different EthernetInterface objects", idx, name)
		return
	}

	obj := byIdx
	if obj == nil {
		obj = byName
	}
	if obj != nil {
		m.destroyObject(obj)
	}

	delete(m.intfInfo, idx)
	delete(m.ignoredIntf, idx)
}

// addAddress is spec.md §4.3 addAddress.
func (m *Manager) addAddress(a netlinkx.AddressInfo) error {
	if a.Deprecated() {
		return nil
	}
	all, ok := m.intfInfo[a.Ifidx]
	if !ok {
		if _, ignored := m.ignoredIntf[a.Ifidx]; ignored {
			return nil
		}
		return fmt.Errorf("%w: ifidx %d", ErrUnknownIfidx, a.Ifidx)
	}
	all.Addrs[a.Key()] = a
	if obj, ok := m.interfacesByIdx[a.Ifidx]; ok {
		obj.AddAddress(a)
	}
	return nil
}

// removeAddress is spec.md §4.3 removeAddress.
func (m *Manager) removeAddress(a netlinkx.AddressInfo) error {
	all, ok := m.intfInfo[a.Ifidx]
	if !ok {
		if _, ignored := m.ignoredIntf[a.Ifidx]; ignored {
			return nil
		}
		return fmt.Errorf("%w: ifidx %d", ErrUnknownIfidx, a.Ifidx)
	}
	delete(all.Addrs, a.Key())
	if obj, ok := m.interfacesByIdx[a.Ifidx]; ok {
		obj.RemoveAddress(a)
	}
	return nil
}

// addNeighbor is spec.md §4.3 addNeighbor.
func (m *Manager) addNeighbor(n netlinkx.NeighborInfo) error {
	if !n.Permanent() || n.IP == nil {
		return nil
	}
	all, ok := m.intfInfo[n.Ifidx]
	if !ok {
		if _, ignored := m.ignoredIntf[n.Ifidx]; ignored {
			return nil
		}
		return fmt.Errorf("%w: ifidx %d", ErrUnknownIfidx, n.Ifidx)
	}
	all.StaticNeighs[n.IP.String()] = n
	if obj, ok := m.interfacesByIdx[n.Ifidx]; ok {
		obj.AddNeighbor(n)
	}
	return nil
}

// removeNeighbor is spec.md §4.3 removeNeighbor. Tolerates absence.
func (m *Manager) removeNeighbor(n netlinkx.NeighborInfo) error {
	if n.IP == nil {
		return nil
	}
	all, ok := m.intfInfo[n.Ifidx]
	if !ok {
		if _, ignored := m.ignoredIntf[n.Ifidx]; ignored {
			return nil
		}
		return fmt.Errorf("%w: ifidx %d", ErrUnknownIfidx, n.Ifidx)
	}
	delete(all.StaticNeighs, n.IP.String())
	if obj, ok := m.interfacesByIdx[n.Ifidx]; ok {
		obj.RemoveNeighbor(n)
	}
	return nil
}

// addDefGw is spec.md §4.3 addDefGw. Replaces any existing value for
// the family.
func (m *Manager) addDefGw(gw netlinkx.DefaultGateway) error {
	all, ok := m.intfInfo[gw.Ifidx]
	if !ok {
		if _, ignored := m.ignoredIntf[gw.Ifidx]; ignored {
			return nil
		}
		return fmt.Errorf("%w: ifidx %d", ErrUnknownIfidx, gw.Ifidx)
	}
	if gw.IsV6() {
		all.DefGw6 = gw.IP
	} else {
		all.DefGw4 = gw.IP
	}
	if obj, ok := m.interfacesByIdx[gw.Ifidx]; ok {
		obj.SetDefaultGateway(gw)
	}
	return nil
}

// removeDefGw is spec.md §4.3 removeDefGw. Only clears a family's
// value if it still equals the address being removed.
func (m *Manager) removeDefGw(gw netlinkx.DefaultGateway) error {
	all, ok := m.intfInfo[gw.Ifidx]
	if !ok {
		if _, ignored := m.ignoredIntf[gw.Ifidx]; ignored {
			return nil
		}
		return fmt.Errorf("%w: ifidx %d", ErrUnknownIfidx, gw.Ifidx)
	}
	if gw.IsV6() {
		if all.DefGw6 != nil && all.DefGw6.Equal(gw.IP) {
			all.DefGw6 = nil
		}
	} else {
		if all.DefGw4 != nil && all.DefGw4.Equal(gw.IP) {
			all.DefGw4 = nil
		}
	}
	if obj, ok := m.interfacesByIdx[gw.Ifidx]; ok {
		obj.ClearDefaultGateway(gw)
	}
	return nil
}

// handleAdminState is spec.md §4.3 handleAdminState. The "exist
// config" branch noted as syntactically malformed in spec.md §9 is
// treated as absent: the working path is the plain createInterface
// call below.
func (m *Manager) handleAdminState(ifidx uint32, state string) {
	switch state {
	case "initialized", "linger":
		delete(m.supervisorState, ifidx)
	case "unmanaged":
		m.supervisorState[ifidx] = false
		if all, ok := m.intfInfo[ifidx]; ok {
			m.createInterface(all, false)
		}
	default:
		m.supervisorState[ifidx] = true
		if all, ok := m.intfInfo[ifidx]; ok {
			m.createInterface(all, true)
		}
	}
}

// VLAN is spec.md §4.3 vlan(name, id). The kernel assigns the new
// device's ifidx once NEWLINK is reported for it (spec.md §8 scenario
// 4); until then this only writes its configuration files under its
// own child name, distinct from the parent's.
func (m *Manager) VLAN(name string, id uint16, scheduler Scheduler) (string, error) {
	if id == 0 || id >= 4095 {
		return "", ErrInvalidArgument
	}
	parent, ok := m.interfaces[name]
	if !ok {
		return "", ErrNotFound
	}
	childName := fmt.Sprintf("%s.%d", name, id)
	path, err := parent.CreateVLAN(childName, id)
	if err != nil {
		return "", err
	}
	m.logAudit("vlan_created", parent.Idx, childName, "", true)
	if scheduler != nil {
		scheduler.Schedule()
	}
	return path, nil
}

// Reset is spec.md §4.3 reset. Deletes every configuration file,
// ignoring per-file errors; in-memory objects survive.
func (m *Manager) Reset() {
	m.writer.Reset()
	m.logAudit("registry_reset", 0, "", "", true)
}

// WriteToConfigurationFile is spec.md §4.3 writeToConfigurationFile.
func (m *Manager) WriteToConfigurationFile() {
	for name, obj := range m.interfaces {
		if !obj.Managed {
			continue
		}
		if err := obj.WriteConfigFile(); err != nil {
			log.Printf("[registry] write config for %s: %v", name, err)
		}
	}
}
