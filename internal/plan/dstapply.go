package plan

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chaseruskin/orbit/internal/catalog"
	"github.com/chaseruskin/orbit/internal/checksum"
	"github.com/chaseruskin/orbit/internal/dst"
	"github.com/chaseruskin/orbit/internal/unitgraph"
)

// packageTagger is the production dst.ChecksumTagger: it resolves a
// package instance's rewrite tag from its own already-computed install
// checksum.
type packageTagger struct {
	byKey map[string]unitgraph.ResolvedPackage
}

func (t packageTagger) Tag(packageKey string) (string, error) {
	p, ok := t.byKey[packageKey]
	if !ok {
		return "", fmt.Errorf("plan: no package instance known for %s", packageKey)
	}

	if p.Checksum == "" {
		return "", fmt.Errorf("plan: package instance %s has no recorded checksum to tag", packageKey)
	}

	return checksum.Digest(p.Checksum).Tag(10), nil
}

// ApplyDST runs dynamic symbol transformation end to end over an
// already-built unit graph: compute the rewrite plan, propagate it to
// every ancestor that references a rewritten identifier, then materialize
// each affected package instance's dynamic variant as a sibling tree
// under the cache root's .orbit-dst area, with its own recomputed
// checksum — the slot key incorporates the set of rewritten references.
// Instances with no rewrite are returned unchanged. The caller is
// expected to re-scan the returned packages (a second
// unitgraph.BuildGraph pass) since a dynamic variant's Root now points at
// rewritten source.
func ApplyDST(packages []unitgraph.ResolvedPackage, ug *unitgraph.UnitGraph, pkgGraph *unitgraph.PackageGraph, cat *catalog.Catalog, distanceOf map[string]int) ([]unitgraph.ResolvedPackage, error) {
	byKey := make(map[string]unitgraph.ResolvedPackage, len(packages))
	for _, p := range packages {
		byKey[p.Key()] = p
	}

	dstPlan, err := dst.Compute(ug, distanceOf, packageTagger{byKey: byKey})
	if err != nil {
		return nil, fmt.Errorf("plan: computing DST plan: %w", err)
	}

	dst.Propagate(dstPlan, pkgGraph)

	updated := append([]unitgraph.ResolvedPackage(nil), packages...)

	for i := range updated {
		p := &updated[i]

		targets := dstPlan.Targets(p.Key())
		if targets == nil {
			continue
		}

		variantDir := filepath.Join(cat.CacheRoot, ".orbit-dst", sanitizeInstanceKey(p.Key()))

		changed, err := dst.ApplyToTree(p.Root, variantDir, targets)
		if err != nil {
			return nil, fmt.Errorf("plan: materializing dynamic variant of %s: %w", p.Key(), err)
		}

		if !changed {
			continue
		}

		fp, err := checksum.Fingerprint(variantDir, nil)
		if err != nil {
			return nil, fmt.Errorf("plan: fingerprinting dynamic variant of %s: %w", p.Key(), err)
		}

		p.Root = variantDir
		p.Checksum = string(fp)
	}

	return updated, nil
}

func sanitizeInstanceKey(key string) string {
	return strings.NewReplacer("@", "-", "/", "_", ":", "_").Replace(key)
}
