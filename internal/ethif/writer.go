// Package ethif is the per-interface object (C5) spec.md treats as a
// contract, not specified in depth: it holds one interface's runtime
// properties, writes its own systemd-networkd configuration file, and
// owns its addresses and static neighbors. The file-writing half is
// adapted from this codebase's networkd config writer, trimmed to the
// operations the registry core actually drives (static/DHCP and VLAN
// attachment) — bonding and global-DNS emission are outside spec.md's
// scope and were dropped rather than carried for their own sake.
package ethif

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// DefaultConfigDir is where systemd-networkd reads configuration.
	DefaultConfigDir = "/etc/systemd/network"

	// FilePrefix is prepended to every file this daemon manages, so
	// reset (spec.md §4.3) and ListManagedFiles only ever touch files
	// this daemon itself wrote.
	FilePrefix = "50-phosphornet-"
)

// Writer emits systemd-networkd .network/.netdev files. It never
// triggers a reload itself (spec.md §9: "the core itself never invokes
// the supervisor reload synchronously from a mutation path") — callers
// schedule a debounced reload through reload.Coordinator once their
// mutation completes. One Writer is shared by every EthernetInterface.
type Writer struct {
	mu  sync.Mutex
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func DefaultWriter() *Writer { return NewWriter(DefaultConfigDir) }

// WriteNetwork writes the .network file for a plain (non-VLAN)
// interface. cidr == "" selects DHCP.
func (w *Writer) WriteNetwork(iface, cidr, gateway string, dns []string) error {
	if err := validateIface(iface); err != nil {
		return err
	}
	if cidr != "" {
		if err := validateCIDR(cidr); err != nil {
			return err
		}
	}
	content := renderNetwork(iface, cidr, gateway, dns)
	return w.writeFile(networkFilename(iface), content)
}

// WriteVLAN writes the .netdev file that creates the VLAN device, the
// parent attachment, and the VLAN's own .network file.
func (w *Writer) WriteVLAN(iface, parent string, vid uint16, cidr string, dns []string) error {
	if err := validateIface(iface); err != nil {
		return err
	}
	if err := validateIface(parent); err != nil {
		return fmt.Errorf("parent: %w", err)
	}
	if vid == 0 || vid >= 4095 {
		return fmt.Errorf("VLAN id %d out of range", vid)
	}

	netdev := fmt.Sprintf("# Managed by phosphornetd\n\n[NetDev]\nName=%s\nKind=vlan\n\n[VLAN]\nId=%d\n", iface, vid)
	if err := w.writeFileLocked(netdevFilename(iface), netdev); err != nil {
		return fmt.Errorf("write vlan netdev: %w", err)
	}

	attach := fmt.Sprintf("# Managed by phosphornetd — attaches VLAN %d to %s\n\n[Match]\nName=%s\n\n[Network]\nVLAN=%s\n",
		vid, parent, parent, iface)
	if err := w.writeFileLocked(vlanAttachFilename(parent, vid), attach); err != nil {
		return fmt.Errorf("write vlan attachment: %w", err)
	}

	content := renderNetwork(iface, cidr, "", dns)
	if err := w.writeFileLocked(networkFilename(iface), content); err != nil {
		return fmt.Errorf("write vlan network: %w", err)
	}
	return nil
}

// RemoveInterface deletes every file this daemon wrote for iface.
func (w *Writer) RemoveInterface(iface string) error {
	path := filepath.Join(w.dir, networkFilename(iface))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// RemoveVLAN deletes the netdev, attachment, and network files for a
// VLAN interface.
func (w *Writer) RemoveVLAN(iface, parent string, vid uint16) error {
	files := []string{
		netdevFilename(iface),
		vlanAttachFilename(parent, vid),
		networkFilename(iface),
	}
	for _, f := range files {
		path := filepath.Join(w.dir, f)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("[ethif] remove %s: %v", path, err)
		}
	}
	return nil
}

// Reset deletes every file this daemon manages, ignoring per-file
// errors (spec.md §4.3 reset). In-memory objects are left untouched by
// the caller; the next write-configuration re-materialises them.
func (w *Writer) Reset() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[ethif] reset: read dir: %v", err)
		}
		return
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), FilePrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(w.dir, e.Name())); err != nil {
			log.Printf("[ethif] reset: remove %s: %v", e.Name(), err)
		}
	}
}

// ListManagedFiles returns every file under the config directory this
// daemon wrote.
func (w *Writer) ListManagedFiles() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), FilePrefix) {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

func renderNetwork(iface, cidr, gateway string, dns []string) string {
	var sb strings.Builder
	sb.WriteString("# Managed by phosphornetd — do not edit by hand\n\n")
	sb.WriteString("[Match]\n")
	fmt.Fprintf(&sb, "Name=%s\n\n", iface)
	sb.WriteString("[Network]\n")
	if cidr == "" {
		sb.WriteString("DHCP=yes\n")
		return sb.String()
	}
	sb.WriteString("DHCP=no\n")
	fmt.Fprintf(&sb, "Address=%s\n", cidr)
	if gateway != "" {
		fmt.Fprintf(&sb, "Gateway=%s\n", gateway)
	}
	for _, d := range dns {
		if d != "" {
			fmt.Fprintf(&sb, "DNS=%s\n", d)
		}
	}
	return sb.String()
}

func networkFilename(iface string) string   { return FilePrefix + sanitizeIface(iface) + ".network" }
func netdevFilename(iface string) string    { return FilePrefix + sanitizeIface(iface) + ".netdev" }
func vlanAttachFilename(parent string, vid uint16) string {
	return fmt.Sprintf("%s%s-vlan%d.network", FilePrefix, sanitizeIface(parent), vid)
}

func (w *Writer) writeFile(filename, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeFileNoLock(filename, content)
}

// writeFileLocked is the locked write WriteVLAN uses. Like writeFile,
// each call takes and releases w.mu on its own, so each of WriteVLAN's
// three writes is serialized but another write may land between them.
func (w *Writer) writeFileLocked(filename, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeFileNoLock(filename, content)
}

func (w *Writer) writeFileNoLock(filename, content string) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("ethif: mkdir %s: %w", w.dir, err)
	}
	path := filepath.Join(w.dir, filename)
	return atomicWrite(path, content)
}

func atomicWrite(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".phosphornet-*.tmp")
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	log.Printf("[ethif] wrote %s", path)
	return nil
}

func sanitizeIface(iface string) string {
	return strings.NewReplacer(".", "-").Replace(iface)
}

func validateIface(iface string) error {
	if len(iface) == 0 || len(iface) > 16 {
		return fmt.Errorf("interface name %q: invalid length", iface)
	}
	for _, c := range iface {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_' || c == '.') {
			return fmt.Errorf("interface name %q: invalid character %q", iface, c)
		}
	}
	return nil
}

func validateCIDR(cidr string) error {
	if !strings.Contains(cidr, "/") {
		return fmt.Errorf("CIDR %q: must include prefix length", cidr)
	}
	return nil
}
