// Package catalog implements Orbit's three-tier package index: channels
// (available manifests, no sources), archive (compressed install
// snapshots), and cache (installed, read-only, checksum-marked working
// trees). It builds an in-memory index by walking all three filesystem
// roots, the same gzip-blob storage pattern as a build-artifact cache but
// generalized to three differently-shaped trees of installed package
// trees instead of one flat blob store.
package catalog

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/chaseruskin/orbit/internal/ident"
	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/semver"
)

// Tier names one of the three catalog roots.
type Tier int

const (
	TierChannel Tier = iota
	TierArchive
	TierCache
)

func (t Tier) String() string {
	switch t {
	case TierChannel:
		return "channel"
	case TierArchive:
		return "archive"
	case TierCache:
		return "cache"
	default:
		return "unknown"
	}
}

// Entry is one indexed package manifest, regardless of which tier it was
// found in.
type Entry struct {
	Name    string
	UUID    string
	Version semver.Version
	Tier    Tier
	Path    string
}

// CacheSlot is an installed, read-only working tree keyed by
// (name, version, checksum-prefix).
type CacheSlot struct {
	Name           string
	UUID           string
	Version        semver.Version
	ChecksumPrefix string
	Path           string
}

func (s CacheSlot) dirName() string {
	return s.Name + "-" + s.Version.String() + "-" + s.ChecksumPrefix
}

// Catalog is the in-memory index over the three roots.
type Catalog struct {
	ChannelRoot string
	ArchiveRoot string
	CacheRoot   string

	entries map[Tier][]Entry
	slots   []CacheSlot
}

// Build walks all three roots and constructs the in-memory index.
func Build(channelRoot, archiveRoot, cacheRoot string) (*Catalog, error) {
	c := &Catalog{
		ChannelRoot: channelRoot,
		ArchiveRoot: archiveRoot,
		CacheRoot:   cacheRoot,
		entries:     make(map[Tier][]Entry),
	}

	if err := c.indexChannel(); err != nil {
		return nil, err
	}

	if err := c.indexArchive(); err != nil {
		return nil, err
	}

	if err := c.indexCache(); err != nil {
		return nil, err
	}

	return c, nil
}

// indexChannel walks channel/<name>/<version>/Orbit.toml manifests. A
// channel mirror carries manifests only, never sources.
func (c *Catalog) indexChannel() error {
	return c.walkManifests(c.ChannelRoot, TierChannel)
}

// indexArchive walks archive/<name>/<version>-<checksum-prefix>.tar.gz
// compressed snapshots; the manifest lives only in the decompressed
// content, so archive entries are recorded by directory-name parsing
// rather than by reading an uncompressed manifest.
func (c *Catalog) indexArchive() error {
	if _, err := os.Stat(c.ArchiveRoot); os.IsNotExist(err) {
		return nil
	}

	nameDirs, err := os.ReadDir(c.ArchiveRoot)
	if err != nil {
		return err
	}

	for _, nd := range nameDirs {
		if !nd.IsDir() {
			continue
		}

		snapshots, err := os.ReadDir(filepath.Join(c.ArchiveRoot, nd.Name()))
		if err != nil {
			return err
		}

		for _, snap := range snapshots {
			if snap.IsDir() {
				continue
			}

			ver, ok := parseSnapshotVersion(snap.Name())
			if !ok {
				continue
			}

			c.entries[TierArchive] = append(c.entries[TierArchive], Entry{
				Name:    nd.Name(),
				Version: ver,
				Tier:    TierArchive,
				Path:    filepath.Join(c.ArchiveRoot, nd.Name(), snap.Name()),
			})
		}
	}

	return nil
}

// indexCache walks cache/<name>-<version>-<checksum-prefix>/ slots, each
// marked read-only and carrying a .orbit-checksum file.
func (c *Catalog) indexCache() error {
	if _, err := os.Stat(c.CacheRoot); os.IsNotExist(err) {
		return nil
	}

	slotDirs, err := os.ReadDir(c.CacheRoot)
	if err != nil {
		return err
	}

	for _, sd := range slotDirs {
		if !sd.IsDir() {
			continue
		}

		slot, ok := parseSlotDirName(sd.Name())
		if !ok {
			continue
		}

		slot.Path = filepath.Join(c.CacheRoot, sd.Name())
		c.slots = append(c.slots, slot)

		c.entries[TierCache] = append(c.entries[TierCache], Entry{
			Name:    slot.Name,
			UUID:    slot.UUID,
			Version: slot.Version,
			Tier:    TierCache,
			Path:    slot.Path,
		})
	}

	return nil
}

func (c *Catalog) walkManifests(root string, tier Tier) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}

	nameDirs, err := os.ReadDir(root)
	if err != nil {
		return err
	}

	for _, nd := range nameDirs {
		if !nd.IsDir() {
			continue
		}

		verDirs, err := os.ReadDir(filepath.Join(root, nd.Name()))
		if err != nil {
			return err
		}

		for _, vd := range verDirs {
			if !vd.IsDir() {
				continue
			}

			verDir := filepath.Join(root, nd.Name(), vd.Name())

			m, err := manifest.Load(verDir)
			if err != nil {
				continue
			}

			c.entries[tier] = append(c.entries[tier], Entry{
				Name:    m.Name,
				UUID:    m.UUID,
				Version: m.Version,
				Tier:    tier,
				Path:    verDir,
			})
		}
	}

	return nil
}

// Find returns every entry whose name identifies (case/-_fold) with name,
// optionally narrowed by uuid and a version requirement.
func (c *Catalog) Find(name string, uuid string, req *semver.Partial) []Entry {
	var out []Entry

	for _, tierEntries := range c.entries {
		for _, e := range tierEntries {
			if !ident.SameName(e.Name, name) {
				continue
			}

			if uuid != "" && e.UUID != uuid {
				continue
			}

			if req != nil && !req.Matches(e.Version) {
				continue
			}

			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}

		return out[i].Version.LessThan(out[j].Version)
	})

	return out
}

// BestInstall returns the highest installed cache slot satisfying req, or
// nil if none is installed.
func (c *Catalog) BestInstall(name string, req *semver.Partial) *CacheSlot {
	var best *CacheSlot

	for i := range c.slots {
		s := c.slots[i]

		if !ident.SameName(s.Name, name) {
			continue
		}

		if req != nil && !req.Matches(s.Version) {
			continue
		}

		if best == nil || s.Version.GreaterThan(best.Version) {
			best = &c.slots[i]
		}
	}

	return best
}

// InsertInstall registers a newly installed cache slot, already
// materialized at slot.Path, into the in-memory index.
func (c *Catalog) InsertInstall(slot CacheSlot) {
	c.slots = append(c.slots, slot)
	c.entries[TierCache] = append(c.entries[TierCache], Entry{
		Name: slot.Name, UUID: slot.UUID, Version: slot.Version, Tier: TierCache, Path: slot.Path,
	})
}

// RemoveInstall deletes one cache slot's working tree from disk and the
// in-memory index.
func (c *Catalog) RemoveInstall(slot CacheSlot) error {
	if err := os.RemoveAll(slot.Path); err != nil {
		return err
	}

	c.slots = removeSlot(c.slots, slot)
	c.entries[TierCache] = removeEntry(c.entries[TierCache], slot.Path)

	return nil
}

// RemoveAll deletes every installed cache slot for name.
func (c *Catalog) RemoveAll(name string) error {
	var remaining []CacheSlot

	for _, s := range c.slots {
		if !ident.SameName(s.Name, name) {
			remaining = append(remaining, s)

			continue
		}

		if err := os.RemoveAll(s.Path); err != nil {
			return err
		}
	}

	c.slots = remaining
	c.entries[TierCache] = removeEntriesByName(c.entries[TierCache], name)

	return nil
}

// ListTier returns every entry indexed under tier, for search/listing
// commands.
func (c *Catalog) ListTier(tier Tier) []Entry {
	out := append([]Entry(nil), c.entries[tier]...)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}

		return out[i].Version.LessThan(out[j].Version)
	})

	return out
}

func removeSlot(slots []CacheSlot, target CacheSlot) []CacheSlot {
	out := slots[:0]

	for _, s := range slots {
		if s.Path != target.Path {
			out = append(out, s)
		}
	}

	return out
}

func removeEntry(entries []Entry, path string) []Entry {
	out := entries[:0]

	for _, e := range entries {
		if e.Path != path {
			out = append(out, e)
		}
	}

	return out
}

func removeEntriesByName(entries []Entry, name string) []Entry {
	out := entries[:0]

	for _, e := range entries {
		if !ident.SameName(e.Name, name) {
			out = append(out, e)
		}
	}

	return out
}
