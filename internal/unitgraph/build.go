package unitgraph

import (
	"fmt"
	"sort"

	"github.com/chaseruskin/orbit/internal/hdl"
	"github.com/chaseruskin/orbit/internal/position"
)

// BuildGraph walks every resolved package instance's scan scope, extracts
// its design units, and assembles the UnitGraph and PackageGraph.
// The package marked IsLocal is the one actually being built (localName is
// not consulted): its dev-dependency units and edges are kept; every other
// package's dev-dependency-only packages are pruned from the walk
// entirely (callers are expected to have already excluded them from
// packages, since pruning happens at the resolver/plan layer —
// BuildGraph additionally refuses to walk any package still marked
// DevPruned as a defensive check). Dependency edges are wired via each
// package's ResolvedDependencies/ResolvedDevDependencies (name -> resolved
// version, populated by the orchestrator from resolver.Entry.Dependencies),
// not the raw manifest requirement strings, so an edge always lands on the
// correct sibling instance even when two incompatible majors of the same
// package name are both in scope.
func BuildGraph(packages []ResolvedPackage, localName string) (*UnitGraph, *PackageGraph, *Diagnostics, error) {
	diag := position.NewDiagnostic()

	pkgGraph := NewPackageGraph()
	libraryOf := make(map[string]string, len(packages))

	var localKey string

	for i := range packages {
		p := packages[i]
		if p.DevPruned {
			continue
		}

		pkgGraph.AddPackage(&packages[i])
		libraryOf[p.Key()] = p.EffectiveLibrary()

		if p.IsLocal {
			localKey = p.Key()
		}
	}

	for _, p := range packages {
		if p.DevPruned {
			continue
		}

		for depName, depVersion := range p.ResolvedDependencies {
			depKey := dependencyKey(depName, depVersion)
			if _, ok := pkgGraph.Packages[depKey]; ok {
				pkgGraph.AddDependency(p.Key(), depKey)
			}
		}

		if p.IsLocal {
			for depName, depVersion := range p.ResolvedDevDependencies {
				depKey := dependencyKey(depName, depVersion)
				if _, ok := pkgGraph.Packages[depKey]; ok {
					pkgGraph.AddDependency(p.Key(), depKey)
				}
			}
		}
	}

	if cycles := pkgGraph.DetectCycles(); len(cycles) > 0 {
		return nil, nil, nil, fmt.Errorf("unitgraph: package graph has a cycle: %v", cycles[0])
	}

	var allUnits []UnitLocation

	for _, p := range packages {
		if p.DevPruned {
			continue
		}

		locs, err := ScanPackage(p)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("unitgraph: scanning %s: %w", p.Name, err)
		}

		allUnits = append(allUnits, locs...)
	}

	ug := NewUnitGraph(allUnits, libraryOf)

	reportPreDSTDuplicates(ug, pkgGraph, localKey, diag)
	reportBlackBoxes(ug, libraryOf, diag)

	return ug, pkgGraph, diag, nil
}

// reportPreDSTDuplicates reports, as fatal errors, duplicate primary
// identifiers within the same library that are NOT DST-eligible: both
// occurrences lie inside the local package, or one lies in the local
// package and the other in a direct dependency. Indirect-dependency
// duplicates are left for the DST engine to resolve by rewriting.
func reportPreDSTDuplicates(ug *UnitGraph, pkgGraph *PackageGraph, localKey string, diag *Diagnostics) {
	isLocalOrDirect := func(instanceKey string) bool {
		if instanceKey == localKey {
			return true
		}

		for _, dep := range pkgGraph.Dependencies[localKey] {
			if dep == instanceKey {
				return true
			}
		}

		return false
	}

	for _, collision := range ug.Collisions() {
		notDSTEligible := true

		for _, loc := range collision.Locations {
			if !isLocalOrDirect(loc.Instance) {
				notDSTEligible = false

				break
			}
		}

		if !notDSTEligible {
			continue
		}

		first, second := collision.Locations[0], collision.Locations[1]
		diag.AddError(first.Unit.Span.Start, "duplicate-identifier",
			fmt.Sprintf("%q is also defined at %s (package %s)", first.Unit.Identifier, second.Unit.Span.Start, second.Package))
	}
}

// reportBlackBoxes warns on every reference with no matching defining
// unit anywhere in the closure: these are marked as black boxes rather
// than treated as errors.
func reportBlackBoxes(ug *UnitGraph, libraryOf map[string]string, diag *Diagnostics) {
	defined := make(map[string]bool, len(ug.byLibraryIdent))
	for key := range ug.byLibraryIdent {
		defined[key] = true
	}

	for _, loc := range ug.Units {
		for _, ref := range loc.Unit.References {
			library := ref.Library
			if library == "" || library == "work" {
				library = libraryOf[loc.Instance]
			}

			name := hdl.NormalizeSecondary(loc.Unit.Language, ref.Name)

			if !defined[libraryIdentKey(library, name)] {
				diag.AddWarning(ref.Span.Start, "black-box",
					fmt.Sprintf("no defining unit found for %s.%s", library, ref.Name))
			}
		}
	}
}

// PickRoot auto-detects the top design unit when unambiguous: the one
// local primary unit with no local referencer. It errors listing every
// candidate when more than one qualifies, or when none do.
func PickRoot(ug *UnitGraph, localName string) (hdl.DesignUnit, error) {
	referenced := make(map[string]bool)

	for _, loc := range ug.Units {
		if loc.Package != localName {
			continue
		}

		for _, ref := range loc.Unit.References {
			referenced[hdl.NormalizeSecondary(loc.Unit.Language, ref.Name)] = true
		}
	}

	var candidates []hdl.DesignUnit

	for _, loc := range ug.Units {
		if loc.Package != localName || !primaryUnit(loc.Unit.Kind) {
			continue
		}

		if !referenced[loc.Unit.Identifier] {
			candidates = append(candidates, loc.Unit)
		}
	}

	switch len(candidates) {
	case 0:
		return hdl.DesignUnit{}, fmt.Errorf("unitgraph: no unreferenced top-level unit found in %s", localName)
	case 1:
		return candidates[0], nil
	default:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Identifier
		}

		sort.Strings(names)

		return hdl.DesignUnit{}, fmt.Errorf("unitgraph: ambiguous root in %s, candidates: %v", localName, names)
	}
}
