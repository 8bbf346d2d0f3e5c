package unitgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/semver"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestBuildGraphResolvesCrossPackageReference(t *testing.T) {
	primitivesRoot := t.TempDir()
	writeFile(t, primitivesRoot, "full_adder.vhd", `
entity full_adder is
  port ( a : in bit );
end entity full_adder;

architecture rtl of full_adder is
begin
end architecture rtl;
`)

	topRoot := t.TempDir()
	writeFile(t, topRoot, "top.vhd", `
entity top is
  port ( a : in bit );
end entity top;

architecture rtl of top is
begin
  u1 : entity primitives.full_adder(rtl);
end architecture rtl;
`)

	primitivesManifest := &manifest.Manifest{Name: "primitives", UUID: "aaaaaaaaaaaaaaaaaaaaaaaaa"}
	topManifest := &manifest.Manifest{
		Name: "top", UUID: "bbbbbbbbbbbbbbbbbbbbbbbbb",
		Dependencies: map[string]manifest.Dependency{"primitives": {Requirement: "1"}},
	}

	packages := []ResolvedPackage{
		{Name: "primitives", Version: semver.MustParse("1.0.0"), Root: primitivesRoot, Manifest: primitivesManifest, Distance: 1},
		{
			Name: "top", Version: semver.MustParse("0.1.0"), Root: topRoot, Manifest: topManifest, IsLocal: true, Distance: 0,
			ResolvedDependencies: map[string]string{"primitives": "1.0.0"},
		},
	}

	ug, pkgGraph, diag, err := BuildGraph(packages, "top")
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	if diag.HasErrors() {
		t.Errorf("unexpected errors: %+v", diag.Errors)
	}

	if diag.HasWarnings() {
		t.Errorf("unexpected black-box warnings: %+v", diag.Warnings)
	}

	if len(ug.Collisions()) != 0 {
		t.Errorf("expected no (library, identifier) collisions, got %+v", ug.Collisions())
	}

	deps := pkgGraph.GetDependencies("top@0.1.0")
	if len(deps) != 1 || deps[0] != "primitives@1.0.0" {
		t.Errorf("top's package-graph dependencies = %v, want [primitives@1.0.0]", deps)
	}

	order, err := pkgGraph.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}

	if len(order) != 2 || order[0] != "primitives@1.0.0" || order[1] != "top@0.1.0" {
		t.Errorf("topological order = %v, want [primitives@1.0.0 top@0.1.0] (leaves first)", order)
	}
}

func TestBuildGraphReportsBlackBoxForUnresolvedReference(t *testing.T) {
	topRoot := t.TempDir()
	writeFile(t, topRoot, "top.vhd", `
entity top is
  port ( a : in bit );
end entity top;

architecture rtl of top is
begin
  u1 : entity ghost_library.nonexistent(rtl);
end architecture rtl;
`)

	topManifest := &manifest.Manifest{Name: "top", UUID: "bbbbbbbbbbbbbbbbbbbbbbbbb"}

	packages := []ResolvedPackage{
		{Name: "top", Root: topRoot, Manifest: topManifest, IsLocal: true, Distance: 0},
	}

	_, _, diag, err := BuildGraph(packages, "top")
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	if !diag.HasWarnings() {
		t.Fatalf("expected a black-box warning for the unresolved ghost_library.nonexistent reference")
	}
}

func TestBuildGraphFlagsPreDSTDuplicateInLocalPackage(t *testing.T) {
	topRoot := t.TempDir()
	writeFile(t, topRoot, "a.vhd", `
entity dup is
  port ( a : in bit );
end entity dup;
`)
	writeFile(t, topRoot, "b.vhd", `
entity dup is
  port ( b : in bit );
end entity dup;
`)

	topManifest := &manifest.Manifest{Name: "top", UUID: "bbbbbbbbbbbbbbbbbbbbbbbbb"}

	packages := []ResolvedPackage{
		{Name: "top", Root: topRoot, Manifest: topManifest, IsLocal: true, Distance: 0},
	}

	_, _, diag, err := BuildGraph(packages, "top")
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	if !diag.HasErrors() {
		t.Fatalf("expected a fatal duplicate-identifier error for two local entities named dup")
	}
}

func TestPickRootFindsSoleUnreferencedLocalUnit(t *testing.T) {
	primitivesRoot := t.TempDir()
	writeFile(t, primitivesRoot, "full_adder.vhd", `
entity full_adder is
  port ( a : in bit );
end entity full_adder;
`)

	topRoot := t.TempDir()
	writeFile(t, topRoot, "top.vhd", `
entity top is
  port ( a : in bit );
end entity top;

architecture rtl of top is
begin
  u1 : entity primitives.full_adder(rtl);
end architecture rtl;
`)

	primitivesManifest := &manifest.Manifest{Name: "primitives", UUID: "aaaaaaaaaaaaaaaaaaaaaaaaa"}
	topManifest := &manifest.Manifest{
		Name: "top", UUID: "bbbbbbbbbbbbbbbbbbbbbbbbb",
		Dependencies: map[string]manifest.Dependency{"primitives": {Requirement: "1"}},
	}

	packages := []ResolvedPackage{
		{Name: "primitives", Root: primitivesRoot, Manifest: primitivesManifest, Distance: 1},
		{Name: "top", Root: topRoot, Manifest: topManifest, IsLocal: true, Distance: 0},
	}

	ug, _, _, err := BuildGraph(packages, "top")
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	root, err := PickRoot(ug, "top")
	if err != nil {
		t.Fatalf("PickRoot: %v", err)
	}

	if root.Identifier != "top" {
		t.Errorf("PickRoot = %q, want top", root.Identifier)
	}
}
