package plan

import (
	"context"
	"fmt"

	"github.com/chaseruskin/orbit/internal/catalog"
	"github.com/chaseruskin/orbit/internal/config"
	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/unitgraph"
)

// Graph is the fully assembled, post-DST view of one build: the resolved
// package instances (Root already pointing at a dynamic variant tree
// where DST required one), and the unit/package graphs scanned from that
// final state.
type Graph struct {
	Packages []unitgraph.ResolvedPackage
	Units    *unitgraph.UnitGraph
	Package  *unitgraph.PackageGraph
	Lock     *LockResult
}

// Build runs the full pipeline in order: lock/resolve, assemble the
// closure's ResolvedPackage view, scan it into a unit graph, compute each
// instance's distance from root, resolve DST, and re-scan the
// post-rewrite closure so the returned graph reflects every dynamic
// variant's rewritten source.
func Build(ctx context.Context, localDir string, cat *catalog.Catalog, cfg *config.Config) (*Graph, error) {
	root, err := manifest.Load(localDir)
	if err != nil {
		return nil, fmt.Errorf("plan: loading local manifest: %w", err)
	}

	lr, err := Lock(ctx, localDir, root, cat, cfg)
	if err != nil {
		return nil, err
	}

	packages, err := Closure(ctx, root, localDir, lr, cat, cfg)
	if err != nil {
		return nil, err
	}

	ug, pkgGraph, diag, err := unitgraph.BuildGraph(packages, root.Name)
	if err != nil {
		return nil, fmt.Errorf("plan: building unit graph: %w", err)
	}

	if diag.HasErrors() {
		return nil, fmt.Errorf("plan: unit graph has fatal errors: %v", diag.Errors)
	}

	localKey := localInstanceKey(packages)

	distanceOf := Distances(pkgGraph, localKey)

	rewritten, err := ApplyDST(packages, ug, pkgGraph, cat, distanceOf)
	if err != nil {
		return nil, err
	}

	finalUG, finalPkgGraph, finalDiag, err := unitgraph.BuildGraph(rewritten, root.Name)
	if err != nil {
		return nil, fmt.Errorf("plan: re-building unit graph after DST: %w", err)
	}

	if finalDiag.HasErrors() {
		return nil, fmt.Errorf("plan: post-DST unit graph has fatal errors: %v", finalDiag.Errors)
	}

	return &Graph{Packages: rewritten, Units: finalUG, Package: finalPkgGraph, Lock: lr}, nil
}

func localInstanceKey(packages []unitgraph.ResolvedPackage) string {
	for _, p := range packages {
		if p.IsLocal {
			return p.Key()
		}
	}

	return ""
}
