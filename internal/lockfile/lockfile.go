// Package lockfile implements the Orbit.lock reproducibility record: its
// entries, TOML codec, and the root-entry freshness check that decides
// whether a resolved closure must be rebuilt.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/chaseruskin/orbit/internal/checksum"
	"github.com/chaseruskin/orbit/internal/manifest"
)

// FileName is the exact, case-sensitive lockfile name at a package root.
const FileName = "Orbit.lock"

// Entry pins one package in the resolved closure to a concrete version,
// source, content checksum, and its own resolved direct-dependency edges.
type Entry struct {
	Name         string            `toml:"name"`
	UUID         string            `toml:"uuid"`
	Version      string            `toml:"version"`
	Source       manifest.Source   `toml:"source"`
	Checksum     string            `toml:"checksum"`
	Dependencies map[string]string `toml:"dependencies,omitempty"`
}

// doc is the on-disk shape: the root entry first, then the flat closure.
type doc struct {
	Root    Entry   `toml:"root"`
	Package []Entry `toml:"package"`
}

// Lockfile is the parsed in-memory form of Orbit.lock.
type Lockfile struct {
	Root    Entry
	Entries []Entry
}

// ByName returns the entry for a given package name, excluding the root, or
// false if absent.
func (l *Lockfile) ByName(name string) (Entry, bool) {
	for _, e := range l.Entries {
		if e.Name == name {
			return e, true
		}
	}

	return Entry{}, false
}

// Load reads and validates Orbit.lock from dir.
func Load(dir string) (*Lockfile, error) {
	path := filepath.Join(dir, FileName)

	var d doc
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return nil, fmt.Errorf("lockfile: parsing %s: %w", path, err)
	}

	l := &Lockfile{Root: d.Root, Entries: d.Package}

	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("lockfile: %s: %w", path, err)
	}

	return l, nil
}

// Save writes the lockfile back, with entries sorted by name for a stable
// diff.
func Save(dir string, l *Lockfile) error {
	sorted := append([]Entry(nil), l.Entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	d := doc{Root: l.Root, Package: sorted}

	path := filepath.Join(dir, FileName)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("lockfile: creating %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("lockfile: encoding %s: %w", path, err)
	}

	return nil
}

// Validate enforces that the closure is complete: every dependency edge
// refers to a listed entry or the root. Checksums are not checked.
func (l *Lockfile) Validate() error {
	known := make(map[string]bool, len(l.Entries)+1)
	known[l.Root.Name] = true

	for _, e := range l.Entries {
		known[e.Name] = true
	}

	for _, e := range l.Entries {
		for dep := range e.Dependencies {
			if !known[dep] {
				return fmt.Errorf("package %s depends on %s, which is not a listed entry", e.Name, dep)
			}
		}
	}

	return nil
}

// IsFresh reports whether the lockfile's root entry still matches the
// current manifest's (name, version, fingerprint). A mismatch triggers a
// rebuild of the resolved closure.
func (l *Lockfile) IsFresh(m *manifest.Manifest, packageRoot string, skip checksum.Skip) (bool, error) {
	if l.Root.Name != m.Name || l.Root.Version != m.Version.String() {
		return false, nil
	}

	fp, err := checksum.Fingerprint(packageRoot, skip)
	if err != nil {
		return false, fmt.Errorf("lockfile: computing fingerprint: %w", err)
	}

	return l.Root.Checksum == string(fp), nil
}

// RootEntry builds the root lockfile entry for the local manifest given its
// freshly computed fingerprint.
func RootEntry(m *manifest.Manifest, fp checksum.Digest) Entry {
	return Entry{
		Name:     m.Name,
		UUID:     m.UUID,
		Version:  m.Version.String(),
		Source:   m.Source,
		Checksum: string(fp),
	}
}

// NewFromClosure assembles a Lockfile from the root entry and the resolved
// closure's entries, each carrying its concrete version, checksum, and
// direct dependency edges (name -> concrete version string). Entries are
// kept in the order given; Save sorts them by name for the on-disk form.
func NewFromClosure(root Entry, closure []Entry) *Lockfile {
	return &Lockfile{Root: root, Entries: closure}
}
