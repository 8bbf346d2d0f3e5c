package unitgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chaseruskin/orbit/internal/hdl"
	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/position"
	"github.com/chaseruskin/orbit/internal/semver"
)

// ResolvedPackage is one package instance in the resolved closure, ready
// to be walked for design units. Distance is the BFS hop count from the
// local root (0 for the root itself, 1 for a direct dependency, and so
// on), used by DST's eligibility rule.
//
// A package NAME is not a unique graph identity: two mutually-incompatible
// majors of the same name can coexist in one closure (internal/resolver
// groups MVS selection by major for exactly this reason), so every
// ResolvedPackage also carries InstanceID, the
// resolver's own identity string for this specific instance
// ("name@version", or "path:<dir>" for a path-local) — the only thing
// that is guaranteed unique per node of the package graph.
// ResolvedDependencies/ResolvedDevDependencies (populated by the
// orchestrator from resolver.Entry.Dependencies / Closure.RootDependencies)
// name, for each declared dependency, which specific sibling instance it
// resolved to, so the package graph wires edges to the right instance
// rather than to an ambiguous bare name.
type ResolvedPackage struct {
	Name                     string
	UUID                     string
	Version                  semver.Version
	InstanceID               string
	Root                     string // absolute path to the package's source tree
	Manifest                 *manifest.Manifest
	Checksum                 string // install checksum, source of the DST rewrite tag
	IsLocal                  bool
	Distance                 int
	DevPruned                bool // true when this package was reachable only via a non-root dev-dependency edge
	ResolvedDependencies     map[string]string
	ResolvedDevDependencies  map[string]string
}

// EffectiveLibrary returns this package's HDL library binding: the
// declared library, or the package name when unset.
func (p ResolvedPackage) EffectiveLibrary() string { return p.Manifest.EffectiveLibrary() }

// Key returns this package instance's unique graph identity: the
// resolver-assigned InstanceID when set, else the conventional
// "name@version" form (sufficient for callers, such as tests, that build
// a ResolvedPackage by hand without going through internal/resolver).
func (p ResolvedPackage) Key() string {
	if p.InstanceID != "" {
		return p.InstanceID
	}

	return p.Name + "@" + p.Version.String()
}

// dependencyKey turns a declared dependency name plus its resolved value
// (a version string, or the literal "path:<dir>" resolver already uses for
// path-locals) into the target instance's graph key.
func dependencyKey(name, resolved string) string {
	if strings.HasPrefix(resolved, "path:") {
		return resolved
	}

	return name + "@" + resolved
}

// UnitLocation is one design unit together with the package and file it
// was extracted from. Package is the human-readable package name (used
// for diagnostics and tree display); Instance is the package graph key
// (collisions are keyed by library+identifier regardless of which field
// is used, but library lookups must use Instance since two same-named
// instances may coexist).
type UnitLocation struct {
	Package  string
	Instance string
	File     string
	Unit     hdl.DesignUnit
}

// primaryUnit reports whether a unit kind introduces a name directly into
// its library's namespace. Architectures and package bodies attach to a
// primary unit's identifier (via Secondary) rather than contending for a
// library slot of their own.
func primaryUnit(k hdl.UnitKind) bool {
	switch k {
	case hdl.KindArchitecture, hdl.KindPackageBody:
		return false
	default:
		return true
	}
}

// UnitGraph is the flat set of every design unit in the resolved closure,
// indexed by (library, identifier) for collision detection.
type UnitGraph struct {
	Units []UnitLocation

	byLibraryIdent map[string][]int // "library\x00identifier" -> indices into Units
}

func libraryIdentKey(library, identifier string) string { return library + "\x00" + identifier }

// NewUnitGraph indexes a flat slice of unit locations. libraryOf maps each
// unit's owning package instance (UnitLocation.Instance) to its effective
// library: a unit's library membership is a property of the package
// instance that defines it, never of the unit itself, and two distinct
// instances sharing a name must be looked up independently even though
// they typically bind the same library name.
func NewUnitGraph(units []UnitLocation, libraryOf map[string]string) *UnitGraph {
	g := &UnitGraph{Units: units, byLibraryIdent: make(map[string][]int)}

	for i, loc := range units {
		if !primaryUnit(loc.Unit.Kind) {
			continue
		}

		key := libraryIdentKey(libraryOf[loc.Instance], loc.Unit.Identifier)
		g.byLibraryIdent[key] = append(g.byLibraryIdent[key], i)
	}

	return g
}

// Collision is one (library, identifier) pair bound by more than one unit
// source — the input to the DST engine's eligibility rule.
type Collision struct {
	Library    string
	Identifier string
	Locations  []UnitLocation
}

// Collisions returns every (library, identifier) pair bound by more than
// one unit source, sorted by library then identifier for deterministic
// processing order.
func (g *UnitGraph) Collisions() []Collision {
	var out []Collision

	keys := make([]string, 0, len(g.byLibraryIdent))
	for key := range g.byLibraryIdent {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		idxs := g.byLibraryIdent[key]
		if len(idxs) < 2 {
			continue
		}

		library, identifier, _ := strings.Cut(key, "\x00")

		locs := make([]UnitLocation, len(idxs))
		for i, idx := range idxs {
			locs[i] = g.Units[idx]
		}

		out = append(out, Collision{Library: library, Identifier: identifier, Locations: locs})
	}

	return out
}

// PackageGraph is the dependency graph over resolved package instances
// (keyed by ResolvedPackage.Key(), not bare name, since two instances can
// share a name): adjacency plus reverse-adjacency maps, DFS cycle
// detection, and Kahn's-algorithm topological sort reversed into
// leaves-first order for blueprint emission.
type PackageGraph struct {
	Packages     map[string]*ResolvedPackage
	Dependencies map[string][]string
	Reverse      map[string][]string
}

// NewPackageGraph returns an empty package graph.
func NewPackageGraph() *PackageGraph {
	return &PackageGraph{
		Packages:     make(map[string]*ResolvedPackage),
		Dependencies: make(map[string][]string),
		Reverse:      make(map[string][]string),
	}
}

// AddPackage registers a resolved package instance as a graph node, keyed
// by its Key().
func (g *PackageGraph) AddPackage(p *ResolvedPackage) {
	key := p.Key()
	g.Packages[key] = p

	if g.Dependencies[key] == nil {
		g.Dependencies[key] = []string{}
	}

	if g.Reverse[key] == nil {
		g.Reverse[key] = []string{}
	}
}

// AddDependency records that from depends directly on to.
func (g *PackageGraph) AddDependency(from, to string) {
	g.Dependencies[from] = append(g.Dependencies[from], to)
	g.Reverse[to] = append(g.Reverse[to], from)
}

// DetectCycles reports every cycle found via DFS: a package graph with
// any cycle cannot be built.
func (g *PackageGraph) DetectCycles() [][]string {
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var cycles [][]string

	names := make([]string, 0, len(g.Packages))
	for name := range g.Packages {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if !visited[name] {
			if cyc := g.detectCyclesDFS(name, visited, recursionStack, nil); cyc != nil {
				cycles = append(cycles, cyc)
			}
		}
	}

	return cycles
}

func (g *PackageGraph) detectCyclesDFS(name string, visited, recursionStack map[string]bool, path []string) []string {
	visited[name] = true
	recursionStack[name] = true
	path = append(path, name)

	deps := append([]string(nil), g.Dependencies[name]...)
	sort.Strings(deps)

	for _, dep := range deps {
		if !visited[dep] {
			if cyc := g.detectCyclesDFS(dep, visited, recursionStack, path); cyc != nil {
				return cyc
			}
		} else if recursionStack[dep] {
			cycleStart := -1

			for i, p := range path {
				if p == dep {
					cycleStart = i

					break
				}
			}

			if cycleStart >= 0 {
				cyc := append([]string(nil), path[cycleStart:]...)

				return append(cyc, dep)
			}
		}
	}

	recursionStack[name] = false

	return nil
}

// TopologicalSort returns packages in leaves-first order (a package's own
// dependencies always precede it), the order the blueprint emitter needs.
// It errors if the graph contains a cycle.
func (g *PackageGraph) TopologicalSort() ([]string, error) {
	if cycles := g.DetectCycles(); len(cycles) > 0 {
		return nil, fmt.Errorf("unitgraph: cannot order package graph: %d cycle(s) found, first: %v", len(cycles), cycles[0])
	}

	inDegree := make(map[string]int, len(g.Packages))
	for name := range g.Packages {
		inDegree[name] = 0
	}

	for _, deps := range g.Dependencies {
		for _, dep := range deps {
			inDegree[dep]++
		}
	}

	queue := make([]string, 0)

	names := make([]string, 0, len(inDegree))
	for name := range inDegree {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var visitedOrder []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visitedOrder = append(visitedOrder, current)

		deps := append([]string(nil), g.Dependencies[current]...)
		sort.Strings(deps)

		for _, dep := range deps {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(visitedOrder) != len(g.Packages) {
		return nil, fmt.Errorf("unitgraph: topological sort failed: graph contains a cycle")
	}

	reversed := make([]string, len(visitedOrder))
	for i, name := range visitedOrder {
		reversed[len(visitedOrder)-1-i] = name
	}

	return reversed, nil
}

// GetDependencies returns the direct dependencies of a package.
func (g *PackageGraph) GetDependencies(name string) []string { return g.Dependencies[name] }

// GetDependents returns the packages directly depending on name.
func (g *PackageGraph) GetDependents(name string) []string { return g.Reverse[name] }

// Diagnostics aggregates the graph builder's findings: fatal pre-DST
// duplicate identifiers and non-fatal black-box (unresolved reference)
// warnings.
type Diagnostics = position.Diagnostic
