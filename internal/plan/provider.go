// Package plan is the orchestrator that ties every other package together
// into the installation and build pipeline end to end: resolve, scan and
// build the unit graph, rewrite colliding symbols, emit a blueprint, and
// spawn the build driver. It plays the same "tie the resolver and the
// registry together" role a package manager's manifest-to-build pipeline
// plays, generalized to Orbit's three-tier catalog and DST-aware package
// graph.
package plan

import (
	"context"
	"fmt"

	"github.com/chaseruskin/orbit/internal/catalog"
	"github.com/chaseruskin/orbit/internal/config"
	"github.com/chaseruskin/orbit/internal/fetch"
	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/semver"
)

// CatalogProvider is the production resolver.Provider: it answers version
// and manifest queries from an in-memory catalog.Catalog index, fetching
// and installing a package the first time a query needs a release that
// isn't in the cache tier yet.
type CatalogProvider struct {
	Catalog *catalog.Catalog
	Config  *config.Config
}

// ResolveVersion returns the maximum cataloged release agreeing with
// req's prefix. A release already installed in the cache tier is
// returned directly; an archive-tier snapshot is decompressed into a new
// cache slot without touching the network; a channel-only release is
// fetched via internal/fetch using the source its own manifest declares.
func (p *CatalogProvider) ResolveVersion(ctx context.Context, name, uuid string, req semver.Partial) (semver.Version, error) {
	if slot := p.Catalog.BestInstall(name, &req); slot != nil {
		return slot.Version, nil
	}

	entries := p.Catalog.Find(name, uuid, &req)
	if len(entries) == 0 {
		return semver.Version{}, fmt.Errorf("plan: no known release of %s satisfies the requirement", name)
	}

	best := entries[len(entries)-1] // catalog.Find sorts ascending by version

	switch best.Tier {
	case catalog.TierArchive:
		if _, err := p.Catalog.InstallFromQueue(best.Name, best.Version.String(), best.Path, false); err != nil {
			return semver.Version{}, fmt.Errorf("plan: installing %s@%s from the archive tier: %w", name, best.Version, err)
		}
	default:
		m, err := manifest.Load(best.Path)
		if err != nil {
			return semver.Version{}, fmt.Errorf("plan: loading catalog manifest for %s@%s: %w", name, best.Version, err)
		}

		if m.Source.IsZero() {
			return semver.Version{}, fmt.Errorf("plan: %s@%s declares no source, it cannot be fetched", name, best.Version)
		}

		req := fetch.Request{Name: m.Name, Version: best.Version.String(), Source: m.Source}

		if _, err := fetch.Run(ctx, p.Catalog, p.Config, req, false); err != nil {
			return semver.Version{}, fmt.Errorf("plan: fetching %s@%s: %w", name, best.Version, err)
		}
	}

	return best.Version, nil
}

// Manifest loads the manifest of an already-resolved, now-installed
// release directly from its cache slot.
func (p *CatalogProvider) Manifest(ctx context.Context, name, uuid string, version semver.Version) (*manifest.Manifest, error) {
	exact, err := semver.ParsePartial(version.String())
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	slot := p.Catalog.BestInstall(name, &exact)
	if slot == nil {
		return nil, fmt.Errorf("plan: %s@%s is not installed", name, version)
	}

	return manifest.Load(slot.Path)
}

// ManifestAtPath loads a development-only local package's manifest
// directly from disk, bypassing the catalog entirely.
func (p *CatalogProvider) ManifestAtPath(ctx context.Context, path string) (*manifest.Manifest, error) {
	return manifest.Load(path)
}
