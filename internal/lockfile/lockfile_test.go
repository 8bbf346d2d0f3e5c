package lockfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateDetectsIncompleteClosure(t *testing.T) {
	l := &Lockfile{
		Root: Entry{Name: "full-add", Version: "1.0.0"},
		Entries: []Entry{
			{Name: "half-add", Version: "0.1.0", Dependencies: map[string]string{"gates": "0.1.0"}},
		},
	}

	if err := l.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for missing gates entry")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	l := &Lockfile{
		Root: Entry{Name: "full-add", UUID: "abcdefghijklmnopqrstuvwx0", Version: "1.0.0", Checksum: "deadbeef"},
		Entries: []Entry{
			{Name: "gates", UUID: "abcdefghijklmnopqrstuvwx1", Version: "1.0.0", Checksum: "cafebabe"},
		},
	}

	if err := Save(dir, l); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Fatalf("lockfile not written: %v", err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if reloaded.Root.Name != l.Root.Name {
		t.Fatalf("root mismatch: %+v vs %+v", reloaded.Root, l.Root)
	}

	if _, ok := reloaded.ByName("gates"); !ok {
		t.Fatalf("gates entry missing after round-trip")
	}
}
