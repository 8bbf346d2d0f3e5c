// Package manifest implements the per-package Orbit.toml record: its
// fields, TOML codec, and validation invariants.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chaseruskin/orbit/internal/ident"
	"github.com/chaseruskin/orbit/internal/semver"
)

// FileName is the exact, case-sensitive manifest file name at a package
// root.
const FileName = "Orbit.toml"

// Source describes how to retrieve a package's sources: either a bare URL
// using the default protocol, or a record naming an explicit protocol and
// optional tag.
type Source struct {
	URL      string `toml:"url"`
	Protocol string `toml:"protocol,omitempty"`
	Tag      string `toml:"tag,omitempty"`
}

// IsZero reports whether no source was configured at all (a path-only
// manifest, e.g. for local dev-dependencies).
func (s Source) IsZero() bool { return s.URL == "" && s.Protocol == "" && s.Tag == "" }

// UnmarshalTOML accepts either a bare URL string (default protocol) or a
// {url, protocol, tag} table.
func (s *Source) UnmarshalTOML(v interface{}) error {
	if url, ok := v.(string); ok {
		*s = Source{URL: url}
		return nil
	}

	t, ok := v.(map[string]interface{})
	if !ok {
		return fmt.Errorf("source must be a URL string or a table, got %T", v)
	}

	s.URL, _ = t["url"].(string)
	s.Protocol, _ = t["protocol"].(string)
	s.Tag, _ = t["tag"].(string)

	return nil
}

// Dependency is a single [dependencies] or [dev-dependencies] table entry:
// a partial-version requirement, or a relative filesystem path for a
// development-only local package (which is never publishable).
type Dependency struct {
	Requirement string `toml:"version,omitempty"`
	Path        string `toml:"path,omitempty"`
}

// IsPathLocal reports whether this dependency names a relative-path local
// package rather than a catalog requirement.
func (d Dependency) IsPathLocal() bool { return d.Path != "" }

// UnmarshalTOML accepts either a bare version-requirement string or a
// {version, path} table.
func (d *Dependency) UnmarshalTOML(v interface{}) error {
	if s, ok := v.(string); ok {
		*d = Dependency{Requirement: s}
		return nil
	}

	t, ok := v.(map[string]interface{})
	if !ok {
		return fmt.Errorf("dependency must be a version string or a table, got %T", v)
	}

	d.Requirement, _ = t["version"].(string)
	d.Path, _ = t["path"].(string)

	return nil
}

// ip is the [ip] table.
type ip struct {
	Name        string            `toml:"name"`
	UUID        string            `toml:"uuid"`
	Version     string            `toml:"version"`
	Library     string            `toml:"library,omitempty"`
	Description string            `toml:"description,omitempty"`
	Keywords    []string          `toml:"keywords,omitempty"`
	Authors     []string          `toml:"authors,omitempty"`
	Source      *Source           `toml:"source,omitempty"`
	Public      []string          `toml:"public,omitempty"`
	Include     []string          `toml:"include,omitempty"`
	Exclude     []string          `toml:"exclude,omitempty"`
	Readme      string            `toml:"readme,omitempty"`
	Channels    []string          `toml:"channels,omitempty"`
	Metadata    map[string]string `toml:"metadata,omitempty"`
}

// doc is the on-disk shape of Orbit.toml.
type doc struct {
	IP             ip                    `toml:"ip"`
	Dependencies   map[string]Dependency `toml:"dependencies,omitempty"`
	DevDepencencies map[string]Dependency `toml:"dev-dependencies,omitempty"`
}

// Manifest is the parsed, validated in-memory form of Orbit.toml.
type Manifest struct {
	Name            string
	UUID            string
	Version         semver.Version
	Library         string
	Description     string
	Keywords        []string
	Authors         []string
	Source          Source
	Public          []string
	Include         []string
	Exclude         []string
	Readme          string
	Channels        []string
	Metadata        map[string]string
	Dependencies    map[string]Dependency
	DevDependencies map[string]Dependency
}

// EffectiveLibrary returns the HDL library binding for this package: the
// declared library, or the package name when unset.
func (m *Manifest) EffectiveLibrary() string {
	if m.Library != "" {
		return m.Library
	}

	return m.Name
}

// HasPathDependency reports whether any dependency (direct or dev) is a
// local relative-path reference, which makes the package unpublishable.
func (m *Manifest) HasPathDependency() bool {
	for _, d := range m.Dependencies {
		if d.IsPathLocal() {
			return true
		}
	}

	for _, d := range m.DevDependencies {
		if d.IsPathLocal() {
			return true
		}
	}

	return false
}

// Load reads and validates Orbit.toml from dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)

	var d doc
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return nil, fmt.Errorf("manifest: parsing %s: %w", path, err)
	}

	m := &Manifest{
		Name:            d.IP.Name,
		UUID:            d.IP.UUID,
		Library:         d.IP.Library,
		Description:     d.IP.Description,
		Keywords:        d.IP.Keywords,
		Authors:         d.IP.Authors,
		Public:          d.IP.Public,
		Include:         d.IP.Include,
		Exclude:         d.IP.Exclude,
		Readme:          d.IP.Readme,
		Channels:        d.IP.Channels,
		Metadata:        d.IP.Metadata,
		Dependencies:    d.Dependencies,
		DevDependencies: d.DevDepencencies,
	}

	if d.IP.Source != nil {
		m.Source = *d.IP.Source
	}

	v, err := semver.Parse(d.IP.Version)
	if err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}

	m.Version = v

	if err := m.Validate(dir); err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}

	return m, nil
}

// Save serializes the manifest back to Orbit.toml in dir.
func Save(dir string, m *Manifest) error {
	if err := m.Validate(dir); err != nil {
		return fmt.Errorf("manifest: refusing to save invalid manifest: %w", err)
	}

	d := doc{
		IP: ip{
			Name:        m.Name,
			UUID:        m.UUID,
			Version:     m.Version.String(),
			Library:     m.Library,
			Description: m.Description,
			Keywords:    m.Keywords,
			Authors:     m.Authors,
			Public:      m.Public,
			Include:     m.Include,
			Exclude:     m.Exclude,
			Readme:      m.Readme,
			Channels:    m.Channels,
			Metadata:    m.Metadata,
		},
		Dependencies:    m.Dependencies,
		DevDepencencies: m.DevDependencies,
	}

	if !m.Source.IsZero() {
		src := m.Source
		d.IP.Source = &src
	}

	path := filepath.Join(dir, FileName)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("manifest: creating %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("manifest: encoding %s: %w", path, err)
	}

	return nil
}

// orbitOwnedRootFiles lists the ".orbit-"-prefixed entries Orbit itself
// writes into a package root it manages (the cache tier's install marker);
// finding one there is expected, not a violation of the reserved-name
// guard below, which exists to catch a package shipping its own such file.
var orbitOwnedRootFiles = map[string]bool{
	".orbit-checksum": true,
}

// Validate enforces the manifest invariants from the data model: name/uuid
// well-formed, include/exclude mutual exclusion, dependency keys parse as
// package names, no reserved ".orbit-" file collision with the manifest's
// own declared scan surface, and no reserved ".orbit-" file actually
// present at dir, the package root.
func (m *Manifest) Validate(dir string) error {
	if err := ident.ValidateName(m.Name); err != nil {
		return err
	}

	if err := ident.ValidateUUID(m.UUID); err != nil {
		return err
	}

	if len(m.Include) > 0 && len(m.Exclude) > 0 {
		return fmt.Errorf("include and exclude are mutually exclusive")
	}

	for key := range m.Dependencies {
		if err := ident.ValidateName(key); err != nil {
			return fmt.Errorf("dependency key %q: %w", key, err)
		}
	}

	for key := range m.DevDependencies {
		if err := ident.ValidateName(key); err != nil {
			return fmt.Errorf("dev-dependency key %q: %w", key, err)
		}
	}

	for _, pattern := range append(append([]string{}, m.Include...), m.Exclude...) {
		if strings.HasPrefix(pattern, ".orbit-") {
			return fmt.Errorf("pattern %q targets the reserved .orbit- prefix", pattern)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("manifest: reading package root %s: %w", dir, err)
	}

	for _, e := range entries {
		name := e.Name()
		if name == FileName || orbitOwnedRootFiles[name] {
			continue
		}

		if err := ident.ValidateReservedFile(name); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
	}

	return nil
}

// SortedDependencyNames returns the direct dependency keys (not including
// dev-dependencies) in stable alphabetical order.
func (m *Manifest) SortedDependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for n := range m.Dependencies {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}
