package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadIgnoreListMissingFile(t *testing.T) {
	patterns, err := LoadIgnoreList(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("LoadIgnoreList on missing file: %v", err)
	}
	if patterns != nil {
		t.Fatalf("expected nil patterns for a missing file, got %v", patterns)
	}
}

func TestLoadIgnoreListSkipsBlankAndComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ignore-list")
	content := "veth\n# comment\n\ndocker0\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write ignore list: %v", err)
	}

	patterns, err := LoadIgnoreList(path)
	if err != nil {
		t.Fatalf("LoadIgnoreList: %v", err)
	}
	if !reflect.DeepEqual(patterns, []string{"veth", "docker0"}) {
		t.Fatalf("patterns = %v", patterns)
	}
}
