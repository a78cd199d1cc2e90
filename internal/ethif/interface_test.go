package ethif

import (
	"net"
	"testing"

	"github.com/paradise2017/phosphor-networkd/internal/ipcbus"
	"github.com/paradise2017/phosphor-networkd/internal/netlinkx"
)

func testInfo() netlinkx.InterfaceInfo {
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	return netlinkx.InterfaceInfo{Idx: 3, Name: "eth0", Type: netlinkx.HWTypeEther, MAC: mac}
}

func TestNewEmitsAdded(t *testing.T) {
	var sink recordingSink
	e := New(testInfo(), Config{}, true, &sink, nil)

	if len(sink.added) != 1 || sink.added[0] != e.Path() {
		t.Fatalf("expected New to emit EmitAdded for %s, got %v", e.Path(), sink.added)
	}
}

func TestUpdateInfoNoopWhenUnchanged(t *testing.T) {
	var sink recordingSink
	e := New(testInfo(), Config{}, true, &sink, nil)
	sink.changed = nil

	if changed := e.UpdateInfo(testInfo()); changed {
		t.Fatalf("expected UpdateInfo with identical info to report no change")
	}
	if len(sink.changed) != 0 {
		t.Fatalf("expected no property-changed events for an identical update")
	}
}

func TestUpdateInfoDetectsMACChange(t *testing.T) {
	var sink recordingSink
	e := New(testInfo(), Config{}, true, &sink, nil)
	sink.changed = nil

	newMAC, _ := net.ParseMAC("11:22:33:44:55:66")
	info := testInfo()
	info.MAC = newMAC

	if changed := e.UpdateInfo(info); !changed {
		t.Fatalf("expected UpdateInfo to detect a MAC change")
	}
	if len(sink.changed) != 1 {
		t.Fatalf("expected exactly one property-changed event, got %d", len(sink.changed))
	}
}

func TestSetManagedNoopWhenUnchanged(t *testing.T) {
	var sink recordingSink
	e := New(testInfo(), Config{}, true, &sink, nil)
	sink.changed = nil

	e.SetManaged(true)
	if len(sink.changed) != 0 {
		t.Fatalf("expected SetManaged with the same value to be a no-op")
	}

	e.SetManaged(false)
	if len(sink.changed) != 1 {
		t.Fatalf("expected SetManaged with a new value to emit a property-changed event")
	}
}

func TestAddRemoveAddress(t *testing.T) {
	e := New(testInfo(), Config{}, true, ipcbus.NopSink{}, nil)
	_, ipnet, _ := net.ParseCIDR("10.0.0.5/24")
	addr := netlinkx.AddressInfo{Ifidx: 3, IPNet: ipnet}

	e.AddAddress(addr)
	if len(e.Addrs) != 1 {
		t.Fatalf("expected 1 address after AddAddress, got %d", len(e.Addrs))
	}

	e.RemoveAddress(addr)
	if len(e.Addrs) != 0 {
		t.Fatalf("expected 0 addresses after RemoveAddress, got %d", len(e.Addrs))
	}
}

func TestDefaultGatewayClearOnlyIfMatching(t *testing.T) {
	e := New(testInfo(), Config{}, true, ipcbus.NopSink{}, nil)
	gw := netlinkx.DefaultGateway{Ifidx: 3, IP: net.ParseIP("192.168.1.1")}
	e.SetDefaultGateway(gw)

	other := netlinkx.DefaultGateway{Ifidx: 3, IP: net.ParseIP("192.168.1.2")}
	e.ClearDefaultGateway(other)
	if e.DefGw4 == nil {
		t.Fatalf("expected DefGw4 to survive clearing a non-matching gateway")
	}

	e.ClearDefaultGateway(gw)
	if e.DefGw4 != nil {
		t.Fatalf("expected DefGw4 to be cleared when the matching gateway is removed")
	}
}

func TestWriteConfigFileDispatchesToVLANWhenParentKnown(t *testing.T) {
	writer := NewWriter(t.TempDir())
	id := uint16(100)
	parentIdx := uint32(2)
	info := testInfo()
	info.VLANID = &id
	info.ParentIdx = &parentIdx

	e := New(info, Config{}, true, ipcbus.NopSink{}, writer)
	e.SetParentName("eth0")

	if err := e.WriteConfigFile(); err != nil {
		t.Fatalf("WriteConfigFile: %v", err)
	}
	files, err := writer.ListManagedFiles()
	if err != nil {
		t.Fatalf("ListManagedFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected a VLAN write to produce 3 managed files, got %d: %v", len(files), files)
	}
}

type recordingSink struct {
	added   []string
	removed []string
	changed []string
}

func (s *recordingSink) EmitAdded(path string, properties map[string]interface{}) {
	s.added = append(s.added, path)
}
func (s *recordingSink) EmitRemoved(path string) {
	s.removed = append(s.removed, path)
}
func (s *recordingSink) EmitPropertyChanged(path, property string, value interface{}) {
	s.changed = append(s.changed, path+"."+property)
}
