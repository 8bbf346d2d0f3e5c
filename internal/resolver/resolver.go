// Package resolver implements Minimum-Version Selection: for every
// package reachable from the local root, the selected version is the
// maximum of every lower bound contributed anywhere in the transitive
// closure, never a range-search over a SAT-style constraint graph.
// Closure discovery is a bounded-concurrency BFS worklist; the fatal
// package-graph cycle check is a standard DFS white/gray/black coloring.
package resolver

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/semver"
)

// Requirement is one edge discovered in the closure: requirer depends on
// name (identified by uuid when known) at partial req, or, for a
// development-only local dependency, at the filesystem path instead.
// RequirerVersion, when the requirer is itself a catalog package (not the
// root and not a path-local), names which of its possibly-several
// coexisting major-version instances contributed this edge (two
// incompatible majors of the same name can both be reachable at once,
// each with its own dependency set, a diamond the DST rewrite engine
// reconciles).
type Requirement struct {
	Name            string
	UUID            string
	Req             semver.Partial
	Path            string // non-empty for a path-local dependency; Req/UUID unused
	Requirer        string
	RequirerVersion string
	Dev             bool
}

// IsPathLocal reports whether this requirement names a relative-path local
// package rather than a catalog requirement.
func (r Requirement) IsPathLocal() bool { return r.Path != "" }

// Provider resolves a partial requirement to a concrete catalog version and
// loads manifests, fetching into the cache when a dependency is not yet
// installed. internal/plan supplies the real implementation (catalog +
// fetch); tests use an in-memory fake.
type Provider interface {
	// ResolveVersion returns the concrete release to use for req: an
	// installed release agreeing with req's prefix if there is one, else the
	// best cataloged release, which is fetched into the cache first.
	ResolveVersion(ctx context.Context, name, uuid string, req semver.Partial) (semver.Version, error)
	// Manifest loads the manifest of a specific, already-resolved version.
	Manifest(ctx context.Context, name, uuid string, version semver.Version) (*manifest.Manifest, error)
	// ManifestAtPath loads a development-only local package's manifest
	// directly from disk, bypassing the catalog.
	ManifestAtPath(ctx context.Context, path string) (*manifest.Manifest, error)
}

// Entry is one resolved package in the closure, ready to become a lockfile
// record: its selected version and its own direct dependency edges at
// their final resolved versions.
type Entry struct {
	Name         string
	UUID         string
	Version      semver.Version
	Source       manifest.Source
	Path         string
	Dependencies map[string]string // dep name -> resolved version string, or "path:<dir>" for path-locals
}

// Closure is the full resolved result: the entries other than the root, in
// stable breadth-first, name-then-version order, the root's own direct (and
// dev-) dependency edges at their final resolved versions (needed to wire
// the root into internal/unitgraph's package graph and to populate the
// lockfile's root entry), plus whether any
// path-local dependency was encountered anywhere in the closure (which
// makes the resulting lockfile unpublishable, since a path dependency has
// no catalog-resolvable source for anyone else to fetch).
type Closure struct {
	Entries          []Entry
	RootDependencies map[string]string // dep name -> resolved version string, or "path:<dir>"
	Unpublishable    bool
}

// ConflictError reports MVS determinism failure: the maximum of a
// package's lower bounds does not satisfy every requirement that
// contributed to it.
type ConflictError struct {
	Package      string
	Selected     semver.Version
	Requirer     string
	Requirement  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resolver: %s: selected version %s does not satisfy %s's requirement %q",
		e.Package, e.Selected, e.Requirer, e.Requirement)
}

// CycleError reports a fatal dependency cycle at the package-graph level.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("resolver: cycle detected: %v", e.Path)
}

type candidate struct {
	version  semver.Version
	req      semver.Partial
	requirer string
}

type packageNode struct {
	name string
	uuid string
	path string // non-empty for a path-local package
	mf   *manifest.Manifest
	// byVersion holds every distinct version's manifest loaded during the
	// walk, since different requirers may pin different lower bounds and
	// the final Entry must reflect the MVS-selected version's own
	// dependency edges, not whichever version happened to load last.
	byVersion map[string]*manifest.Manifest
	pathDeps  []Requirement // direct deps of a path-local package (single fixed version, no ambiguity)
}

// Resolve walks the transitive closure of root's direct dependencies (plus
// root's dev-dependencies, since root is always the package being built
// here) and assigns every reachable package its MVS-selected version.
func Resolve(ctx context.Context, root *manifest.Manifest, provider Provider) (*Closure, error) {
	candidates := make(map[string][]candidate)
	nodes := make(map[string]*packageNode)
	pathNodes := make(map[string]*packageNode) // keyed by path for path-locals
	loadedVersions := make(map[string]bool)     // "name@version" already manifest-loaded
	edgeMajor := make(map[string]int)           // "requirerName@requirerVersion\x00depName" -> resolved major, for reconciling edges post-grouping

	rootReqs := directRequirements(root, true)

	queue := rootReqs
	graphEdges := make(map[string][]string) // package identity -> dependency identities, for cycle detection

	unpublishable := root.HasPathDependency()

	for len(queue) > 0 {
		batch := queue
		queue = nil

		type loadResult struct {
			req Requirement
			mf  *manifest.Manifest
			ver semver.Version
			err error
		}

		results := make([]loadResult, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(ioConcurrency())

		for i, req := range batch {
			i, req := i, req

			g.Go(func() error {
				if req.IsPathLocal() {
					mf, err := provider.ManifestAtPath(gctx, req.Path)
					results[i] = loadResult{req: req, mf: mf, err: err}

					return nil
				}

				ver, err := provider.ResolveVersion(gctx, req.Name, req.UUID, req.Req)
				if err != nil {
					results[i] = loadResult{req: req, err: err}

					return nil
				}

				results[i] = loadResult{req: req, ver: ver}

				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, r := range results {
			if r.err != nil {
				return nil, fmt.Errorf("resolver: resolving %s (required by %s): %w", identOf(r.req), r.req.Requirer, r.err)
			}

			if r.req.IsPathLocal() {
				if existing, ok := pathNodes[r.req.Path]; ok {
					graphEdges[r.req.Requirer] = append(graphEdges[r.req.Requirer], identityFor(existing))

					continue
				}

				mf := r.mf

				unpublishable = true

				n := &packageNode{name: mf.Name, uuid: mf.UUID, path: r.req.Path, mf: mf}
				n.pathDeps = directRequirements(mf, false)
				pathNodes[r.req.Path] = n
				graphEdges[r.req.Requirer] = append(graphEdges[r.req.Requirer], identityFor(n))

				for _, d := range n.pathDeps {
					d.Requirer = identityFor(n)
					queue = append(queue, d)
				}

				continue
			}

			candidates[r.req.Name] = append(candidates[r.req.Name], candidate{version: r.ver, req: r.req.Req, requirer: r.req.Requirer})

			edgeKey := r.req.Requirer + "@" + r.req.RequirerVersion + "\x00" + r.req.Name
			edgeMajor[edgeKey] = r.ver.Major

			key := r.req.Name + "@" + r.ver.String()
			if loadedVersions[key] {
				continue
			}

			loadedVersions[key] = true

			mf, err := provider.Manifest(ctx, r.req.Name, r.req.UUID, r.ver)
			if err != nil {
				return nil, fmt.Errorf("resolver: loading manifest for %s@%s: %w", r.req.Name, r.ver, err)
			}

			if mf.HasPathDependency() {
				unpublishable = true
			}

			n, existing := nodes[r.req.Name]
			if !existing {
				n = &packageNode{name: mf.Name, uuid: mf.UUID, byVersion: make(map[string]*manifest.Manifest)}
				nodes[r.req.Name] = n
			}

			n.byVersion[r.ver.String()] = mf

			deps := directRequirements(mf, false)

			for _, d := range deps {
				d.Requirer = r.req.Name
				d.RequirerVersion = r.ver.String()
				queue = append(queue, d)
				graphEdges[r.req.Name] = append(graphEdges[r.req.Name], d.identity())
			}
		}
	}

	if err := detectCycle(root.Name, rootReqs, graphEdges); err != nil {
		return nil, err
	}

	// Group each package name's candidates by major version before taking
	// the maximum of lower bounds: a requirement is a floor, not an exact
	// band (requirers pinned at "1.2" and "1.4" both select 1.4.0), so
	// only an exact-pin (FieldFull) requirement can ever conflict with a
	// higher selection. Two mutually-incompatible majors of the same name
	// are not a conflict at all: they coexist as separate resolved
	// instances, a diamond the DST engine alone is responsible for
	// reconciling into non-colliding (library, identifier) bindings.
	selectedByNameMajor := make(map[string]map[int]semver.Version, len(candidates))

	for name, cands := range candidates {
		byMajor := make(map[int][]candidate)
		for _, c := range cands {
			byMajor[c.version.Major] = append(byMajor[c.version.Major], c)
		}

		majors := make([]int, 0, len(byMajor))
		for major := range byMajor {
			majors = append(majors, major)
		}

		sort.Ints(majors)

		selectedByNameMajor[name] = make(map[int]semver.Version, len(majors))

		for _, major := range majors {
			group := byMajor[major]
			best := group[0]

			for _, c := range group[1:] {
				if c.version.GreaterThan(best.version) {
					best = c
				}
			}

			for _, c := range group {
				if c.req.Field == semver.FieldFull && !c.version.Equal(best.version) {
					return nil, &ConflictError{Package: name, Selected: best.version, Requirer: c.requirer, Requirement: partialString(c.req)}
				}
			}

			selectedByNameMajor[name][major] = best.version
		}
	}

	entries := make([]Entry, 0, len(nodes)+len(pathNodes))

	for name, n := range nodes {
		majors := make([]int, 0, len(selectedByNameMajor[name]))
		for major := range selectedByNameMajor[name] {
			majors = append(majors, major)
		}

		sort.Ints(majors)

		for _, major := range majors {
			ver := selectedByNameMajor[name][major]
			mf := n.byVersion[ver.String()]

			ownDeps := directRequirements(mf, false)
			deps := make(map[string]string, len(ownDeps))

			for _, d := range ownDeps {
				if d.IsPathLocal() {
					deps[d.Name] = "path:" + d.Path

					continue
				}

				depMajor := edgeMajor[name+"@"+ver.String()+"\x00"+d.Name]
				deps[d.Name] = selectedByNameMajor[d.Name][depMajor].String()
			}

			entries = append(entries, Entry{
				Name:         name,
				UUID:         n.uuid,
				Version:      ver,
				Source:       mf.Source,
				Dependencies: deps,
			})
		}
	}

	for path, n := range pathNodes {
		deps := make(map[string]string, len(n.pathDeps))

		for _, d := range n.pathDeps {
			if d.IsPathLocal() {
				deps[d.Name] = "path:" + d.Path

				continue
			}

			depMajor := edgeMajor[identityFor(n)+"@"+"\x00"+d.Name]
			deps[d.Name] = selectedByNameMajor[d.Name][depMajor].String()
		}

		entries = append(entries, Entry{
			Name:         n.name,
			UUID:         n.uuid,
			Version:      n.mf.Version,
			Path:         path,
			Dependencies: deps,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}

		return entries[i].Version.LessThan(entries[j].Version)
	})

	rootDeps := make(map[string]string, len(rootReqs))

	for _, r := range rootReqs {
		if r.IsPathLocal() {
			rootDeps[r.Name] = "path:" + r.Path

			continue
		}

		depMajor := edgeMajor[root.Name+"@"+"\x00"+r.Name]
		rootDeps[r.Name] = selectedByNameMajor[r.Name][depMajor].String()
	}

	return &Closure{Entries: entries, RootDependencies: rootDeps, Unpublishable: unpublishable}, nil
}

// directRequirements extracts a manifest's direct dependency set as
// Requirement edges. includeDev adds dev-dependencies too; only the root
// being built ever gets this treatment, since a dependency's own
// dev-dependencies are irrelevant to anyone depending on it.
func directRequirements(m *manifest.Manifest, includeDev bool) []Requirement {
	var out []Requirement

	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		out = append(out, requirementFrom(m.Name, name, m.Dependencies[name], false))
	}

	if includeDev {
		devNames := make([]string, 0, len(m.DevDependencies))
		for name := range m.DevDependencies {
			devNames = append(devNames, name)
		}

		sort.Strings(devNames)

		for _, name := range devNames {
			out = append(out, requirementFrom(m.Name, name, m.DevDependencies[name], true))
		}
	}

	return out
}

func requirementFrom(requirer, name string, d manifest.Dependency, dev bool) Requirement {
	if d.IsPathLocal() {
		return Requirement{Name: name, Path: d.Path, Requirer: requirer, Dev: dev}
	}

	p, err := semver.ParsePartial(d.Requirement)
	if err != nil {
		p = semver.Partial{Field: semver.FieldLatest}
	}

	return Requirement{Name: name, Req: p, Requirer: requirer, Dev: dev}
}

func (r Requirement) identity() string {
	if r.IsPathLocal() {
		return "path:" + r.Path
	}

	return r.Name
}

func identityFor(n *packageNode) string {
	if n.path != "" {
		return "path:" + n.path
	}

	return n.name
}

func identOf(r Requirement) string {
	if r.IsPathLocal() {
		return r.Path
	}

	return r.Name
}

func partialString(p semver.Partial) string {
	switch p.Field {
	case semver.FieldFull:
		return fmt.Sprintf("%d.%d.%d", p.Major, p.Minor, p.Patch)
	case semver.FieldMinorInclusive:
		return fmt.Sprintf("%d.%d", p.Major, p.Minor)
	case semver.FieldMajor:
		return strconv.Itoa(p.Major)
	default:
		return "latest"
	}
}

// detectCycle runs a DFS white/gray/black coloring pass over the
// package-identity graph, fatal on any back edge: cycles are forbidden
// at the package-graph level.
func detectCycle(rootName string, rootReqs []Requirement, edges map[string][]string) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	full := make(map[string][]string, len(edges)+1)
	for k, v := range edges {
		full[k] = v
	}

	for _, r := range rootReqs {
		full[rootName] = append(full[rootName], r.identity())
	}

	color := make(map[string]int, len(full))
	stack := make([]string, 0, len(full))

	var visit func(string) error
	visit = func(id string) error {
		switch color[id] {
		case gray:
			cyc := append([]string(nil), stack...)
			cyc = append(cyc, id)

			return &CycleError{Path: cyc}
		case black:
			return nil
		}

		color[id] = gray
		stack = append(stack, id)

		for _, d := range full[id] {
			if err := visit(d); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black

		return nil
	}

	ids := make([]string, 0, len(full))
	for id := range full {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}

	return nil
}

// ioConcurrency bounds closure-discovery fan-out. It reads
// ORBIT_MAX_CONCURRENCY if set, otherwise GOMAXPROCS*8 clamped to [4,1024].
func ioConcurrency() int {
	if v := os.Getenv("ORBIT_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			if n > 1024 {
				return 1024
			}

			return n
		}
	}

	c := runtime.GOMAXPROCS(0) * 8
	if c < 4 {
		c = 4
	}

	if c > 1024 {
		c = 1024
	}

	return c
}
