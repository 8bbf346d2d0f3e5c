// Package dst implements the Dynamic Symbol Transformation engine: VHDL
// and Verilog tools cannot compile two units sharing a (library,
// identifier) pair, so for every such collision left standing after the
// graph builder's fatal pre-DST check, exactly one colliding package
// instance keeps the original identifier and every other one is
// rewritten to a checksum-tagged variant, becoming its own dynamic
// cache-slot sibling.
package dst

import (
	"fmt"
	"sort"

	"github.com/chaseruskin/orbit/internal/unitgraph"
)

// Rewrite is one identifier substitution required to resolve a collision:
// within PackageKey's source tree, every definition and internal use of
// Identifier under library Library is renamed to NewIdentifier.
type Rewrite struct {
	PackageKey    string
	Library       string
	Identifier    string
	NewIdentifier string
	Tag           string
}

// Plan groups every rewrite a closure's DST pass requires by the package
// instance whose tree must be transformed into a dynamic variant.
type Plan struct {
	ByPackage map[string][]Rewrite
}

// Variants reports which package instances need their own dynamic cache
// slot: exactly those with at least one rewrite, in deterministic order.
func (p *Plan) Variants() []string {
	keys := make([]string, 0, len(p.ByPackage))
	for k := range p.ByPackage {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Targets collapses one package instance's rewrites into the canonical
// old-identifier -> new-identifier map RewriteSource/ApplyToTree expect.
func (p *Plan) Targets(packageKey string) map[string]string {
	rewrites := p.ByPackage[packageKey]
	if len(rewrites) == 0 {
		return nil
	}

	out := make(map[string]string, len(rewrites))
	for _, r := range rewrites {
		out[r.Identifier] = r.NewIdentifier
	}

	return out
}

// ChecksumTagger resolves a package instance's install checksum to the
// first 10 lowercase hex characters used to name its rewritten
// identifiers. internal/plan's packageTagger, which runs each resolved
// package's checksum through internal/checksum.Digest.Tag, is the
// production implementation; tests supply a fixed map.
type ChecksumTagger interface {
	Tag(packageKey string) (string, error)
}

// MapTagger is a ChecksumTagger backed by a fixed lookup table, used by
// tests and by callers that have already resolved every instance's tag.
type MapTagger map[string]string

func (m MapTagger) Tag(packageKey string) (string, error) {
	tag, ok := m[packageKey]
	if !ok {
		return "", fmt.Errorf("dst: no checksum tag known for package instance %s", packageKey)
	}

	return tag, nil
}

// Compute picks, for every (library, identifier) collision in the unit
// graph, the one package instance that retains the original identifier
// (the local package, else the direct dependency, else the
// closest-surviving indirect instance) and schedules every other
// colliding instance for rewrite. distanceOf reports each package
// instance's hop count from the root (0 = local, 1 = direct dependency,
// >1 = indirect) — reportPreDSTDuplicates has already fatal-errored any
// collision where every colliding instance is local-or-direct, so a
// collision reaching Compute carries at most one instance at distance
// <= 1, and minimum-distance selection alone is enough to guarantee a
// direct dependency never gets rewritten, without special-casing it.
func Compute(ug *unitgraph.UnitGraph, distanceOf map[string]int, tagger ChecksumTagger) (*Plan, error) {
	plan := &Plan{ByPackage: make(map[string][]Rewrite)}

	for _, collision := range ug.Collisions() {
		retain, err := pickRetained(collision, distanceOf)
		if err != nil {
			return nil, err
		}

		seen := make(map[string]bool)

		for _, loc := range collision.Locations {
			if loc.Instance == retain || seen[loc.Instance] {
				continue
			}

			seen[loc.Instance] = true

			tag, err := tagger.Tag(loc.Instance)
			if err != nil {
				return nil, fmt.Errorf("dst: resolving checksum tag for %s: %w", loc.Instance, err)
			}

			plan.ByPackage[loc.Instance] = append(plan.ByPackage[loc.Instance], Rewrite{
				PackageKey:    loc.Instance,
				Library:       collision.Library,
				Identifier:    collision.Identifier,
				NewIdentifier: collision.Identifier + "_" + tag,
				Tag:           tag,
			})
		}
	}

	for key := range plan.ByPackage {
		rewrites := plan.ByPackage[key]
		sort.Slice(rewrites, func(i, j int) bool {
			if rewrites[i].Library != rewrites[j].Library {
				return rewrites[i].Library < rewrites[j].Library
			}

			return rewrites[i].Identifier < rewrites[j].Identifier
		})
	}

	return plan, nil
}

// Propagate fans a rewrite out one hop through the package graph, since a
// direct dependent's cached source may textually reference
// P.I and must be updated to P.I_<tag> to keep compiling against the
// rewritten package. Every package that directly depends on a rewritten
// instance (pkgGraph's reverse adjacency) picks up that instance's rewrites
// too, becoming a dynamic variant itself even if none of its OWN
// definitions collided with anything. Packages further up are not visited.
func Propagate(plan *Plan, pkgGraph *unitgraph.PackageGraph) {
	for _, rewrittenKey := range plan.Variants() {
		rewrites := plan.ByPackage[rewrittenKey]

		for _, ancestor := range ancestorsOf(pkgGraph, rewrittenKey) {
			plan.ByPackage[ancestor] = mergeRewrites(plan.ByPackage[ancestor], rewrites)
		}
	}
}

// ancestorsOf returns every package instance that directly depends on key,
// via pkgGraph's reverse adjacency, sorted.
func ancestorsOf(pkgGraph *unitgraph.PackageGraph, key string) []string {
	out := append([]string(nil), pkgGraph.GetDependents(key)...)

	sort.Strings(out)

	return out
}

func mergeRewrites(existing, additions []Rewrite) []Rewrite {
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r.Library+"\x00"+r.Identifier] = true
	}

	for _, r := range additions {
		key := r.Library + "\x00" + r.Identifier
		if seen[key] {
			continue
		}

		seen[key] = true
		existing = append(existing, r)
	}

	sort.Slice(existing, func(i, j int) bool {
		if existing[i].Library != existing[j].Library {
			return existing[i].Library < existing[j].Library
		}

		return existing[i].Identifier < existing[j].Identifier
	})

	return existing
}

// pickRetained selects the package instance favored by distance-from-root
// order: minimum distance from root first (local beats direct beats indirect),
// then lexical instance key to stay deterministic among equal-distance
// indirect instances (the "else the direct dependency (if any)" clause
// leaves no guidance when none of the colliding instances are local or
// direct at all).
func pickRetained(c unitgraph.Collision, distanceOf map[string]int) (string, error) {
	best := ""
	bestDistance := -1

	for _, loc := range c.Locations {
		d, ok := distanceOf[loc.Instance]
		if !ok {
			return "", fmt.Errorf("dst: no distance recorded for package instance %s", loc.Instance)
		}

		if best == "" || d < bestDistance || (d == bestDistance && loc.Instance < best) {
			best = loc.Instance
			bestDistance = d
		}
	}

	return best, nil
}
