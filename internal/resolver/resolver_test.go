package resolver

import (
	"context"
	"sort"
	"testing"

	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/semver"
)

// fakeProvider is an in-memory Provider backed by a fixed catalog of
// manifests per (name, version) and per path, used to drive the resolver
// without any real catalog or fetch pipeline.
type fakeProvider struct {
	versions map[string]map[string]*manifest.Manifest // name -> version string -> manifest
	paths    map[string]*manifest.Manifest
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		versions: make(map[string]map[string]*manifest.Manifest),
		paths:    make(map[string]*manifest.Manifest),
	}
}

func (f *fakeProvider) add(name, uuid, version string, deps map[string]string) *manifest.Manifest {
	m := &manifest.Manifest{
		Name:         name,
		UUID:         uuid,
		Version:      semver.MustParse(version),
		Dependencies: make(map[string]manifest.Dependency, len(deps)),
	}

	for depName, req := range deps {
		m.Dependencies[depName] = manifest.Dependency{Requirement: req}
	}

	if f.versions[name] == nil {
		f.versions[name] = make(map[string]*manifest.Manifest)
	}

	f.versions[name][version] = m

	return m
}

func (f *fakeProvider) addPath(path, name, uuid, version string, deps map[string]string) *manifest.Manifest {
	m := &manifest.Manifest{
		Name:         name,
		UUID:         uuid,
		Version:      semver.MustParse(version),
		Dependencies: make(map[string]manifest.Dependency, len(deps)),
	}

	for depName, req := range deps {
		m.Dependencies[depName] = manifest.Dependency{Requirement: req}
	}

	f.paths[path] = m

	return m
}

func (f *fakeProvider) ResolveVersion(_ context.Context, name, _ string, req semver.Partial) (semver.Version, error) {
	known := make([]semver.Version, 0, len(f.versions[name]))
	for _, m := range f.versions[name] {
		known = append(known, m.Version)
	}

	sort.Slice(known, func(i, j int) bool { return known[i].LessThan(known[j]) })

	v, ok := semver.Best(req, known)
	if !ok {
		return semver.Version{}, errNoMatch(name)
	}

	return v, nil
}

func (f *fakeProvider) Manifest(_ context.Context, name, _ string, version semver.Version) (*manifest.Manifest, error) {
	m, ok := f.versions[name][version.String()]
	if !ok {
		return nil, errNoMatch(name)
	}

	return m, nil
}

func (f *fakeProvider) ManifestAtPath(_ context.Context, path string) (*manifest.Manifest, error) {
	m, ok := f.paths[path]
	if !ok {
		return nil, errNoMatch(path)
	}

	return m, nil
}

type notFoundError string

func errNoMatch(what string) error { return notFoundError(what) }
func (e notFoundError) Error() string { return "no match: " + string(e) }

func TestResolveSelectsMaximumOfDiscoveredLowerBounds(t *testing.T) {
	fp := newFakeProvider()
	fp.add("a", "aaaaaaaaaaaaaaaaaaaaaaaaa", "1.0.0", map[string]string{"shared": "1"})
	fp.add("b", "bbbbbbbbbbbbbbbbbbbbbbbbb", "1.0.0", map[string]string{"shared": "1"})
	fp.add("shared", "sssssssssssssssssssssssss", "1.0.0", nil)
	fp.add("shared", "sssssssssssssssssssssssss", "1.2.0", nil)
	fp.add("shared", "sssssssssssssssssssssssss", "1.5.0", nil)

	root := &manifest.Manifest{
		Name: "root",
		Dependencies: map[string]manifest.Dependency{
			"a": {Requirement: "1"},
			"b": {Requirement: "1"},
		},
	}

	closure, err := Resolve(context.Background(), root, fp)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var shared *Entry

	for i := range closure.Entries {
		if closure.Entries[i].Name == "shared" {
			shared = &closure.Entries[i]
		}
	}

	if shared == nil {
		t.Fatalf("shared not in closure: %+v", closure.Entries)
	}

	if shared.Version.String() != "1.5.0" {
		t.Errorf("selected version = %s, want 1.5.0 (the maximum known release satisfying both requirers)", shared.Version)
	}

	if closure.Unpublishable {
		t.Errorf("closure should be publishable, no path dependency present")
	}
}

// TestResolveSelectsHighestAcrossRequirersAtDifferentMinorFloors mirrors
// spec scenario 1 directly: a requires shared@1.2, b requires shared@1.4,
// available releases are {1.2.1, 1.4.0, 1.8.2}. A partial is a lower-bound
// floor, not an exact prefix band, so this is not a conflict at all: the
// maximum across both requirers' own resolved candidates (1.2.1 and 1.4.0)
// is selected, 1.4.0.
func TestResolveSelectsHighestAcrossRequirersAtDifferentMinorFloors(t *testing.T) {
	fp := newFakeProvider()
	fp.add("a", "aaaaaaaaaaaaaaaaaaaaaaaaa", "1.0.0", map[string]string{"shared": "1.2"})
	fp.add("b", "bbbbbbbbbbbbbbbbbbbbbbbbb", "1.0.0", map[string]string{"shared": "1.4"})
	fp.add("shared", "sssssssssssssssssssssssss", "1.2.1", nil)
	fp.add("shared", "sssssssssssssssssssssssss", "1.4.0", nil)
	fp.add("shared", "sssssssssssssssssssssssss", "1.8.2", nil)

	root := &manifest.Manifest{
		Name: "root",
		Dependencies: map[string]manifest.Dependency{
			"a": {Requirement: "1"},
			"b": {Requirement: "1"},
		},
	}

	closure, err := Resolve(context.Background(), root, fp)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var shared *Entry

	for i := range closure.Entries {
		if closure.Entries[i].Name == "shared" {
			shared = &closure.Entries[i]
		}
	}

	if shared == nil {
		t.Fatalf("shared not in closure: %+v", closure.Entries)
	}

	if shared.Version.String() != "1.4.0" {
		t.Errorf("selected version = %s, want 1.4.0", shared.Version)
	}
}

func TestResolveReportsConflictWhenAnExactPinCannotBeSatisfiedByTheSelectedMajor(t *testing.T) {
	fp := newFakeProvider()
	fp.add("a", "aaaaaaaaaaaaaaaaaaaaaaaaa", "1.0.0", map[string]string{"shared": "1"})
	fp.add("b", "bbbbbbbbbbbbbbbbbbbbbbbbb", "1.0.0", map[string]string{"shared": "1.2.0"})
	fp.add("shared", "sssssssssssssssssssssssss", "1.2.0", nil)
	fp.add("shared", "sssssssssssssssssssssssss", "1.5.0", nil)

	root := &manifest.Manifest{
		Name: "root",
		Dependencies: map[string]manifest.Dependency{
			"a": {Requirement: "1"},
			"b": {Requirement: "1"},
		},
	}

	_, err := Resolve(context.Background(), root, fp)
	if err == nil {
		t.Fatalf("expected a ConflictError, got nil")
	}

	if _, ok := err.(*ConflictError); !ok {
		t.Errorf("err = %T(%v), want *ConflictError", err, err)
	}
}

// TestResolveCoexistsIncompatibleMajorsOfTheSameName mirrors §8's DST
// diamond setup at the resolver layer: root directly requires gates@1 and,
// via half-add, indirectly requires gates@0.1 (a different, incompatible
// major). Both must survive into the closure as separate entries — this is
// exactly the condition the DST engine exists to reconcile in the unit
// graph, and it is not the resolver's job to collapse it into one version
// or reject it as a conflict.
func TestResolveCoexistsIncompatibleMajorsOfTheSameName(t *testing.T) {
	fp := newFakeProvider()
	fp.add("half-add", "0000000000000000000000000", "0.1.0", map[string]string{"gates": "0.1"})
	fp.add("gates", "ggggggggggggggggggggggggg", "0.1.0", nil)
	fp.add("gates", "ggggggggggggggggggggggggg", "1.0.0", nil)

	root := &manifest.Manifest{
		Name: "root",
		Dependencies: map[string]manifest.Dependency{
			"gates":    {Requirement: "1"},
			"half-add": {Requirement: "0.1"},
		},
	}

	closure, err := Resolve(context.Background(), root, fp)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var gatesVersions []string

	for _, e := range closure.Entries {
		if e.Name == "gates" {
			gatesVersions = append(gatesVersions, e.Version.String())
		}
	}

	sort.Strings(gatesVersions)

	if len(gatesVersions) != 2 || gatesVersions[0] != "0.1.0" || gatesVersions[1] != "1.0.0" {
		t.Errorf("gates instances = %v, want both [0.1.0 1.0.0] to coexist", gatesVersions)
	}
}

func TestResolveDetectsPackageGraphCycle(t *testing.T) {
	fp := newFakeProvider()
	fp.add("a", "aaaaaaaaaaaaaaaaaaaaaaaaa", "1.0.0", map[string]string{"b": "1"})
	fp.add("b", "bbbbbbbbbbbbbbbbbbbbbbbbb", "1.0.0", map[string]string{"a": "1"})

	root := &manifest.Manifest{
		Name:         "root",
		Dependencies: map[string]manifest.Dependency{"a": {Requirement: "1"}},
	}

	_, err := Resolve(context.Background(), root, fp)
	if err == nil {
		t.Fatalf("expected a CycleError, got nil")
	}

	if _, ok := err.(*CycleError); !ok {
		t.Errorf("err = %T(%v), want *CycleError", err, err)
	}
}

func TestResolveIncludesRootDevDependenciesOnly(t *testing.T) {
	fp := newFakeProvider()
	fp.add("devtool", "ddddddddddddddddddddddddd", "1.0.0", nil)

	root := &manifest.Manifest{
		Name:            "root",
		DevDependencies: map[string]manifest.Dependency{"devtool": {Requirement: "1"}},
	}

	closure, err := Resolve(context.Background(), root, fp)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(closure.Entries) != 1 || closure.Entries[0].Name != "devtool" {
		t.Errorf("closure.Entries = %+v, want exactly [devtool] since root is the package being built", closure.Entries)
	}
}

func TestResolvePathDependencyMarksClosureUnpublishable(t *testing.T) {
	fp := newFakeProvider()
	fp.addPath("../local-ip", "locally", "lllllllllllllllllllllllll", "0.1.0", nil)

	root := &manifest.Manifest{
		Name:         "root",
		Dependencies: map[string]manifest.Dependency{"locally": {Path: "../local-ip"}},
	}

	closure, err := Resolve(context.Background(), root, fp)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if !closure.Unpublishable {
		t.Errorf("closure.Unpublishable = false, want true: a path dependency is present")
	}

	if len(closure.Entries) != 1 || closure.Entries[0].Path != "../local-ip" {
		t.Errorf("closure.Entries = %+v", closure.Entries)
	}
}
