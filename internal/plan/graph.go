package plan

import (
	"context"
	"fmt"

	"github.com/chaseruskin/orbit/internal/catalog"
	"github.com/chaseruskin/orbit/internal/checksum"
	"github.com/chaseruskin/orbit/internal/config"
	"github.com/chaseruskin/orbit/internal/diag"
	"github.com/chaseruskin/orbit/internal/fetch"
	"github.com/chaseruskin/orbit/internal/lockfile"
	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/resolver"
	"github.com/chaseruskin/orbit/internal/semver"
	"github.com/chaseruskin/orbit/internal/unitgraph"
)

// Closure assembles every resolved package instance's ResolvedPackage
// view (the unit graph build's input) from a resolved closure: the local
// root plus every catalog entry, each pointed at its installed cache
// slot. It does not yet
// assign Distance (that needs the package graph itself, see Distances)
// or apply DST (see ApplyDST).
func Closure(ctx context.Context, root *manifest.Manifest, localDir string, lr *LockResult, cat *catalog.Catalog, cfg *config.Config) ([]unitgraph.ResolvedPackage, error) {
	packages := make([]unitgraph.ResolvedPackage, 0, len(lr.Closure.Entries)+1)

	packages = append(packages, unitgraph.ResolvedPackage{
		Name:                 root.Name,
		UUID:                 root.UUID,
		Version:              root.Version,
		Root:                 localDir,
		Manifest:             root,
		IsLocal:              true,
		ResolvedDependencies: lr.Closure.RootDependencies,
	})

	for _, e := range lr.Closure.Entries {
		rp, err := resolvedPackageFor(ctx, e, cat, cfg, lr.Lockfile)
		if err != nil {
			return nil, err
		}

		packages = append(packages, rp)
	}

	return packages, nil
}

func resolvedPackageFor(ctx context.Context, e resolver.Entry, cat *catalog.Catalog, cfg *config.Config, lf *lockfile.Lockfile) (unitgraph.ResolvedPackage, error) {
	if e.Path != "" {
		m, err := manifest.Load(e.Path)
		if err != nil {
			return unitgraph.ResolvedPackage{}, fmt.Errorf("plan: loading path-local manifest at %s: %w", e.Path, err)
		}

		return unitgraph.ResolvedPackage{
			Name:                 e.Name,
			UUID:                 e.UUID,
			Version:              m.Version,
			InstanceID:           "path:" + e.Path,
			Root:                 e.Path,
			Manifest:             m,
			ResolvedDependencies: e.Dependencies,
		}, nil
	}

	exact, err := semver.ParsePartial(e.Version.String())
	if err != nil {
		return unitgraph.ResolvedPackage{}, fmt.Errorf("plan: %w", err)
	}

	slot := cat.BestInstall(e.Name, &exact)
	if slot == nil {
		return unitgraph.ResolvedPackage{}, fmt.Errorf("plan: %s@%s is not installed, run lock/install first", e.Name, e.Version)
	}

	fp, err := checksum.Fingerprint(slot.Path, nil)
	if err != nil {
		return unitgraph.ResolvedPackage{}, fmt.Errorf("plan: fingerprinting %s@%s: %w", e.Name, e.Version, err)
	}

	if expected, ok := lf.ByName(e.Name); ok && expected.Checksum != "" && expected.Checksum != string(fp) {
		reinstalled, newFp, rerr := reinstallOnMismatch(ctx, e, cat, cfg, *slot, expected.Checksum)
		if rerr != nil {
			return unitgraph.ResolvedPackage{}, rerr
		}

		slot, fp = reinstalled, newFp
	}

	m, err := manifest.Load(slot.Path)
	if err != nil {
		return unitgraph.ResolvedPackage{}, fmt.Errorf("plan: loading manifest for %s@%s: %w", e.Name, e.Version, err)
	}

	return unitgraph.ResolvedPackage{
		Name:                 e.Name,
		UUID:                 e.UUID,
		Version:              e.Version,
		Root:                 slot.Path,
		Manifest:             m,
		Checksum:             string(fp),
		ResolvedDependencies: e.Dependencies,
	}, nil
}

// reinstallOnMismatch handles a checksum mismatch on an installed
// dependency with one re-install attempt before surfacing an error: it
// evicts the stale slot (so a same-version reinstall
// can't leave two checksum-prefixed slots of the same package@version
// coexisting, which would make a later BestInstall's "highest installed
// version" comparison ambiguous between them), re-runs the fetch
// pipeline with force=true, and accepts the result only if the freshly
// installed content now matches what Orbit.lock recorded.
func reinstallOnMismatch(ctx context.Context, e resolver.Entry, cat *catalog.Catalog, cfg *config.Config, stale catalog.CacheSlot, expected string) (*catalog.CacheSlot, checksum.Digest, error) {
	if e.Source.IsZero() {
		return nil, "", diag.New(diag.KindChecksumMismatch, diag.Error,
			fmt.Sprintf("%s@%s: installed content does not match Orbit.lock and declares no source to re-install from", e.Name, e.Version))
	}

	if err := cat.RemoveInstall(stale); err != nil {
		return nil, "", fmt.Errorf("plan: evicting stale install for %s@%s: %w", e.Name, e.Version, err)
	}

	req := fetch.Request{Name: e.Name, Version: e.Version.String(), Source: e.Source}
	if _, err := fetch.Run(ctx, cat, cfg, req, true); err != nil {
		return nil, "", diag.New(diag.KindChecksumMismatch, diag.Error,
			fmt.Sprintf("%s@%s: checksum mismatch, re-install failed: %v", e.Name, e.Version, err))
	}

	exact, err := semver.ParsePartial(e.Version.String())
	if err != nil {
		return nil, "", err
	}

	slot := cat.BestInstall(e.Name, &exact)
	if slot == nil {
		return nil, "", diag.New(diag.KindChecksumMismatch, diag.Error,
			fmt.Sprintf("%s@%s: re-install produced no installed slot", e.Name, e.Version))
	}

	fp, err := checksum.Fingerprint(slot.Path, nil)
	if err != nil {
		return nil, "", err
	}

	if string(fp) != expected {
		return nil, "", diag.New(diag.KindChecksumMismatch, diag.Error,
			fmt.Sprintf("%s@%s: checksum mismatch persists after re-install", e.Name, e.Version))
	}

	return slot, fp, nil
}

// Distances computes each package instance's BFS hop count from the local
// root (0 = local, 1 = direct dependency, >1 = indirect), over the
// already-built package graph's dependency edges. Ties in traversal order
// never affect the result: BFS visits every
// node at its true shortest distance regardless of adjacency order.
func Distances(pkgGraph *unitgraph.PackageGraph, localKey string) map[string]int {
	dist := map[string]int{localKey: 0}
	queue := []string{localKey}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, dep := range pkgGraph.GetDependencies(cur) {
			if _, seen := dist[dep]; !seen {
				dist[dep] = dist[cur] + 1
				queue = append(queue, dep)
			}
		}
	}

	return dist
}
