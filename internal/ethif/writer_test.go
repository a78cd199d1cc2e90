package ethif

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteNetworkStatic(t *testing.T) {
	w := NewWriter(t.TempDir())

	if err := w.WriteNetwork("eth0", "192.168.1.10/24", "192.168.1.1", []string{"8.8.8.8"}); err != nil {
		t.Fatalf("WriteNetwork: %v", err)
	}

	content := readManaged(t, w, "eth0.network")
	for _, want := range []string{"Name=eth0", "Address=192.168.1.10/24", "Gateway=192.168.1.1", "DNS=8.8.8.8", "DHCP=no"} {
		if !strings.Contains(content, want) {
			t.Errorf("expected rendered .network to contain %q, got:\n%s", want, content)
		}
	}
}

func TestWriteNetworkDHCP(t *testing.T) {
	w := NewWriter(t.TempDir())

	if err := w.WriteNetwork("eth0", "", "", nil); err != nil {
		t.Fatalf("WriteNetwork: %v", err)
	}
	content := readManaged(t, w, "eth0.network")
	if !strings.Contains(content, "DHCP=yes") {
		t.Errorf("expected DHCP=yes in rendered .network, got:\n%s", content)
	}
}

func TestWriteNetworkRejectsBadIfaceName(t *testing.T) {
	w := NewWriter(t.TempDir())
	if err := w.WriteNetwork("../etc/passwd", "", "", nil); err == nil {
		t.Fatalf("expected an error for a path-traversal interface name")
	}
}

func TestWriteVLANRejectsOutOfRangeID(t *testing.T) {
	w := NewWriter(t.TempDir())
	if err := w.WriteVLAN("eth0.100", "eth0", 0, "", nil); err == nil {
		t.Fatalf("expected an error for VLAN id 0")
	}
	if err := w.WriteVLAN("eth0.100", "eth0", 4095, "", nil); err == nil {
		t.Fatalf("expected an error for VLAN id 4095")
	}
}

func TestWriteVLANWritesThreeFiles(t *testing.T) {
	w := NewWriter(t.TempDir())
	if err := w.WriteVLAN("eth0.100", "eth0", 100, "10.0.0.5/24", nil); err != nil {
		t.Fatalf("WriteVLAN: %v", err)
	}

	files, err := w.ListManagedFiles()
	if err != nil {
		t.Fatalf("ListManagedFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 managed files after WriteVLAN, got %d: %v", len(files), files)
	}
}

func TestResetRemovesOnlyManagedFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	if err := w.WriteNetwork("eth0", "", "", nil); err != nil {
		t.Fatalf("WriteNetwork: %v", err)
	}

	stray := filepath.Join(dir, "10-unrelated.network")
	if err := os.WriteFile(stray, []byte("not ours"), 0644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	w.Reset()

	files, err := w.ListManagedFiles()
	if err != nil {
		t.Fatalf("ListManagedFiles: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected Reset to remove every managed file, got %v", files)
	}
	if _, err := os.Stat(stray); err != nil {
		t.Fatalf("expected Reset to leave unrelated files alone: %v", err)
	}
}

func TestRemoveInterfaceDeletesFile(t *testing.T) {
	w := NewWriter(t.TempDir())
	if err := w.WriteNetwork("eth0", "", "", nil); err != nil {
		t.Fatalf("WriteNetwork: %v", err)
	}
	if err := w.RemoveInterface("eth0"); err != nil {
		t.Fatalf("RemoveInterface: %v", err)
	}
	files, _ := w.ListManagedFiles()
	if len(files) != 0 {
		t.Fatalf("expected no managed files after RemoveInterface, got %v", files)
	}
}

func readManaged(t *testing.T, w *Writer, filename string) string {
	t.Helper()
	files, err := w.ListManagedFiles()
	if err != nil {
		t.Fatalf("ListManagedFiles: %v", err)
	}
	for _, f := range files {
		if strings.HasSuffix(f, filename) {
			data, err := os.ReadFile(filepath.Join(w.dir, f))
			if err != nil {
				t.Fatalf("read %s: %v", f, err)
			}
			return string(data)
		}
	}
	t.Fatalf("managed file %s not found among %v", filename, files)
	return ""
}
