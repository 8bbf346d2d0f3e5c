package plan

import (
	"context"
	"fmt"

	"github.com/chaseruskin/orbit/internal/catalog"
	"github.com/chaseruskin/orbit/internal/checksum"
	"github.com/chaseruskin/orbit/internal/config"
	"github.com/chaseruskin/orbit/internal/lockfile"
	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/resolver"
	"github.com/chaseruskin/orbit/internal/semver"
)

// LockResult is the outcome of the lock step: the resolved closure, ready
// for the unit graph build, and the lockfile now reflecting it (already
// written to disk when the closure was recomputed, left untouched when
// the existing lockfile was still fresh).
type LockResult struct {
	Closure    *resolver.Closure
	Lockfile   *lockfile.Lockfile
	Recomputed bool
}

// lockfileSkip excludes the lockfile itself and any VCS directory from the
// root package's content fingerprint, mirroring checksum.Fingerprint's own
// CACHEDIR.TAG convention of ignoring bookkeeping files that are not part
// of a package's actual design content.
func lockfileSkip(relPath string, isDir bool) bool {
	if isDir {
		return relPath == ".git"
	}

	return relPath == lockfile.FileName
}

// Lock loads Orbit.lock if present and reuses it when the root entry's
// (name, version, fingerprint) still matches the recomputed one; otherwise
// it re-runs MVS resolution against the root package's current content or
// builds a lockfile from scratch when none exists yet.
func Lock(ctx context.Context, localDir string, root *manifest.Manifest, cat *catalog.Catalog, cfg *config.Config) (*LockResult, error) {
	fp, err := checksum.Fingerprint(localDir, lockfileSkip)
	if err != nil {
		return nil, fmt.Errorf("plan: fingerprinting %s: %w", localDir, err)
	}

	if existing, err := lockfile.Load(localDir); err == nil {
		if fresh, err := existing.IsFresh(root, localDir, lockfileSkip); err == nil && fresh {
			return &LockResult{Closure: closureFromLockfile(existing), Lockfile: existing}, nil
		}
	}

	provider := &CatalogProvider{Catalog: cat, Config: cfg}

	closure, err := resolver.Resolve(ctx, root, provider)
	if err != nil {
		return nil, fmt.Errorf("plan: resolving dependencies: %w", err)
	}

	rootEntry := lockfile.RootEntry(root, fp)
	rootEntry.Dependencies = closure.RootDependencies

	entries := make([]lockfile.Entry, 0, len(closure.Entries))

	for _, e := range closure.Entries {
		cs, err := entryChecksum(e, cat)
		if err != nil {
			return nil, fmt.Errorf("plan: computing checksum for %s@%s: %w", e.Name, e.Version, err)
		}

		entries = append(entries, lockfile.Entry{
			Name:         e.Name,
			UUID:         e.UUID,
			Version:      e.Version.String(),
			Source:       e.Source,
			Checksum:     cs,
			Dependencies: e.Dependencies,
		})
	}

	lf := lockfile.NewFromClosure(rootEntry, entries)

	if err := lockfile.Save(localDir, lf); err != nil {
		return nil, fmt.Errorf("plan: writing %s: %w", lockfile.FileName, err)
	}

	return &LockResult{Closure: closure, Lockfile: lf, Recomputed: true}, nil
}

// closureFromLockfile rebuilds a resolver.Closure shape from an
// already-fresh lockfile, so a lockfile-only rebuild (no MVS re-run) can
// still drive the unit graph build through the same downstream path.
func closureFromLockfile(lf *lockfile.Lockfile) *resolver.Closure {
	entries := make([]resolver.Entry, 0, len(lf.Entries))

	for _, e := range lf.Entries {
		entries = append(entries, resolver.Entry{
			Name:         e.Name,
			UUID:         e.UUID,
			Version:      mustParseVersion(e.Version),
			Source:       e.Source,
			Dependencies: e.Dependencies,
		})
	}

	return &resolver.Closure{Entries: entries, RootDependencies: lf.Root.Dependencies}
}

// entryChecksum fingerprints a resolved entry's on-disk content: the
// installed cache slot for a catalog dependency, or the referenced
// directory itself for a path-local one. This is the checksum the
// lockfile records and the reinstall-on-mismatch check later verifies
// against.
func entryChecksum(e resolver.Entry, cat *catalog.Catalog) (string, error) {
	if e.Path != "" {
		fp, err := checksum.Fingerprint(e.Path, nil)
		if err != nil {
			return "", err
		}

		return string(fp), nil
	}

	exact, err := semver.ParsePartial(e.Version.String())
	if err != nil {
		return "", err
	}

	slot := cat.BestInstall(e.Name, &exact)
	if slot == nil {
		return "", fmt.Errorf("%s@%s is not installed", e.Name, e.Version)
	}

	fp, err := checksum.Fingerprint(slot.Path, nil)
	if err != nil {
		return "", err
	}

	return string(fp), nil
}

func mustParseVersion(s string) semver.Version {
	v, err := semver.Parse(s)
	if err != nil {
		return semver.Version{}
	}

	return v
}
