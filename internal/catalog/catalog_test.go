package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chaseruskin/orbit/internal/semver"
)

func writeManifest(t *testing.T, dir, name, version string) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	content := "[ip]\n" +
		"name = \"" + name + "\"\n" +
		"uuid = \"abcdefghijklmnopqrstuvwxy\"\n" +
		"version = \"" + version + "\"\n"

	if err := os.WriteFile(filepath.Join(dir, "Orbit.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestBuildIndexesChannelTier(t *testing.T) {
	root := t.TempDir()
	channelRoot := filepath.Join(root, "channel")

	writeManifest(t, filepath.Join(channelRoot, "gates", "1.0.0"), "gates", "1.0.0")
	writeManifest(t, filepath.Join(channelRoot, "gates", "1.2.0"), "gates", "1.2.0")

	cat, err := Build(channelRoot, filepath.Join(root, "archive"), filepath.Join(root, "cache"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	entries := cat.Find("gates", "", nil)
	if len(entries) != 2 {
		t.Fatalf("Find(gates) = %d entries, want 2", len(entries))
	}
}

func TestFindAppliesNameFoldingAndVersionRequirement(t *testing.T) {
	root := t.TempDir()
	channelRoot := filepath.Join(root, "channel")

	writeManifest(t, filepath.Join(channelRoot, "my-gates", "1.0.0"), "my-gates", "1.0.0")
	writeManifest(t, filepath.Join(channelRoot, "my-gates", "2.0.0"), "my-gates", "2.0.0")

	cat, err := Build(channelRoot, filepath.Join(root, "archive"), filepath.Join(root, "cache"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(cat.Find("my_gates", "", nil)) != 2 {
		t.Fatalf("Find should fold - and _ together")
	}

	req, err := semver.ParsePartial("2")
	if err != nil {
		t.Fatalf("ParsePartial: %v", err)
	}

	got := cat.Find("my-gates", "", &req)
	if len(got) != 1 || got[0].Version.Major != 2 {
		t.Fatalf("Find with version_req = %+v, want exactly the 2.x entry", got)
	}
}

func TestParseSlotDirNameHandlesHyphenatedNames(t *testing.T) {
	slot, ok := parseSlotDirName("my-gates-1.2.3-abc123def0")
	if !ok {
		t.Fatalf("parseSlotDirName failed to parse")
	}

	if slot.Name != "my-gates" || slot.ChecksumPrefix != "abc123def0" {
		t.Fatalf("parsed slot = %+v", slot)
	}

	if slot.Version.String() != "1.2.3" {
		t.Fatalf("parsed version = %s, want 1.2.3", slot.Version.String())
	}
}

func TestInsertAndRemoveInstall(t *testing.T) {
	root := t.TempDir()
	cacheRoot := filepath.Join(root, "cache")

	cat, err := Build(filepath.Join(root, "channel"), filepath.Join(root, "archive"), cacheRoot)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	slotPath := filepath.Join(cacheRoot, "gates-1.0.0-deadbeef00")
	if err := os.MkdirAll(slotPath, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	slot := CacheSlot{Name: "gates", Version: semver.MustParse("1.0.0"), ChecksumPrefix: "deadbeef00", Path: slotPath}
	cat.InsertInstall(slot)

	if cat.BestInstall("gates", nil) == nil {
		t.Fatalf("BestInstall should find the inserted slot")
	}

	if err := cat.RemoveInstall(slot); err != nil {
		t.Fatalf("RemoveInstall: %v", err)
	}

	if cat.BestInstall("gates", nil) != nil {
		t.Fatalf("BestInstall should be nil after RemoveInstall")
	}

	if _, err := os.Stat(slotPath); !os.IsNotExist(err) {
		t.Fatalf("slot directory should have been deleted")
	}
}
