package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chaseruskin/orbit/internal/semver"
)

const sample = `
[ip]
name = "gates"
uuid = "abcdefghijklmnopqrstuvwx0"
version = "1.0.0"
library = "gates"

[dependencies]
half-add = "0.1"
`

func TestLoadValidatesAndParses(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(sample), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if m.Name != "gates" {
		t.Errorf("Name = %q, want gates", m.Name)
	}

	if m.EffectiveLibrary() != "gates" {
		t.Errorf("EffectiveLibrary() = %q, want gates", m.EffectiveLibrary())
	}

	if got, want := m.Version.String(), "1.0.0"; got != want {
		t.Errorf("Version = %q, want %q", got, want)
	}

	if _, ok := m.Dependencies["half-add"]; !ok {
		t.Errorf("missing dependency half-add")
	}
}

func TestValidateRejectsIncludeExcludeBoth(t *testing.T) {
	m := &Manifest{Name: "gates", UUID: "abcdefghijklmnopqrstuvwx0", Include: []string{"*.vhd"}, Exclude: []string{"*.tmp"}}
	if err := m.Validate(t.TempDir()); err == nil {
		t.Fatalf("Validate() = nil, want error for mutually exclusive include/exclude")
	}
}

func TestValidateRejectsReservedFileAtPackageRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".orbit-bogus"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m := &Manifest{Name: "gates", UUID: "abcdefghijklmnopqrstuvwx0", Version: semver.MustParse("1.0.0")}
	if err := m.Validate(dir); err == nil {
		t.Fatalf("Validate() = nil, want error for a .orbit- file at the package root")
	}
}

func TestValidateToleratesOrbitsOwnChecksumMarker(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".orbit-checksum"), []byte("abc"), 0o444); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m := &Manifest{Name: "gates", UUID: "abcdefghijklmnopqrstuvwx0", Version: semver.MustParse("1.0.0")}
	if err := m.Validate(dir); err != nil {
		t.Fatalf("Validate() = %v, want nil: an installed cache slot's own checksum marker must not trip the reserved-name guard", err)
	}
}

func TestLoadRejectsReservedFileAtPackageRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(sample), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".orbit-secrets"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatalf("Load() = nil, want error for a .orbit- file at the package root")
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{
		Name:    "gates",
		UUID:    "abcdefghijklmnopqrstuvwx0",
		Version: semver.MustParse("1.0.0"),
		Library: "gates",
		Dependencies: map[string]Dependency{
			"half-add": {Requirement: "0.1"},
		},
	}

	if err := Save(dir, m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}

	if reloaded.Name != m.Name || reloaded.Version != m.Version {
		t.Fatalf("reloaded manifest mismatch: %+v vs %+v", reloaded, m)
	}
}
