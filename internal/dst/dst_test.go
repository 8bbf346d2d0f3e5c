package dst

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/semver"
	"github.com/chaseruskin/orbit/internal/unitgraph"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

// buildDiamond assembles the §8 DST diamond: top directly depends on
// gates@1.0.0 and on half-add@0.1.0, which in turn depends on gates@0.1.0.
// Both gates instances define an entity named nand_gate in their own
// library, producing one (library, identifier) collision with a direct
// instance (gates@1.0.0, distance 1) and an indirect one (gates@0.1.0,
// distance 2, reached only through half-add).
func buildDiamond(t *testing.T) (*unitgraph.UnitGraph, *unitgraph.PackageGraph, map[string]int) {
	t.Helper()

	gatesV1Root := t.TempDir()
	writeFile(t, gatesV1Root, "nand_gate.vhd", `
entity nand_gate is
  port ( a, b : in bit; y : out bit );
end entity nand_gate;
`)

	gatesV01Root := t.TempDir()
	writeFile(t, gatesV01Root, "nand_gate.vhd", `
entity nand_gate is
  port ( a, b : in bit );
end entity nand_gate;
`)

	halfAddRoot := t.TempDir()
	writeFile(t, halfAddRoot, "half_add.vhd", `
entity half_add is
  port ( a, b : in bit );
end entity half_add;

architecture rtl of half_add is
begin
  u1 : entity gates.nand_gate(rtl);
end architecture rtl;
`)

	topRoot := t.TempDir()
	writeFile(t, topRoot, "top.vhd", `
entity top is
  port ( a, b : in bit );
end entity top;

architecture rtl of top is
begin
  u1 : entity gates.nand_gate(rtl);
  u2 : entity half_add.half_add(rtl);
end architecture rtl;
`)

	gatesV1Manifest := &manifest.Manifest{Name: "gates", UUID: "ggggggggggggggggggggggggg", Version: semver.MustParse("1.0.0")}
	gatesV01Manifest := &manifest.Manifest{Name: "gates", UUID: "ggggggggggggggggggggggggg", Version: semver.MustParse("0.1.0")}
	halfAddManifest := &manifest.Manifest{
		Name: "half-add", UUID: "0000000000000000000000000", Version: semver.MustParse("0.1.0"),
		Dependencies: map[string]manifest.Dependency{"gates": {Requirement: "0.1"}},
	}
	topManifest := &manifest.Manifest{
		Name: "top", UUID: "bbbbbbbbbbbbbbbbbbbbbbbbb",
		Dependencies: map[string]manifest.Dependency{
			"gates":    {Requirement: "1"},
			"half-add": {Requirement: "0.1"},
		},
	}

	packages := []unitgraph.ResolvedPackage{
		{
			Name: "gates", Version: semver.MustParse("1.0.0"), Root: gatesV1Root, Manifest: gatesV1Manifest, Distance: 1,
		},
		{
			Name: "gates", Version: semver.MustParse("0.1.0"), Root: gatesV01Root, Manifest: gatesV01Manifest, Distance: 2,
		},
		{
			Name: "half-add", Version: semver.MustParse("0.1.0"), Root: halfAddRoot, Manifest: halfAddManifest, Distance: 1,
			ResolvedDependencies: map[string]string{"gates": "0.1.0"},
		},
		{
			Name: "top", Version: semver.MustParse("0.1.0"), Root: topRoot, Manifest: topManifest, IsLocal: true, Distance: 0,
			ResolvedDependencies: map[string]string{"gates": "1.0.0", "half-add": "0.1.0"},
		},
	}

	ug, pkgGraph, diag, err := unitgraph.BuildGraph(packages, "top")
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	if diag.HasErrors() {
		t.Fatalf("unexpected fatal pre-DST errors (this collision should not be fatal, only one colliding instance is local-or-direct): %+v", diag.Errors)
	}

	distanceOf := make(map[string]int, len(packages))
	for _, p := range packages {
		distanceOf[p.Key()] = p.Distance
	}

	return ug, pkgGraph, distanceOf
}

func TestComputeRetainsDirectDependencyAndRewritesIndirectOne(t *testing.T) {
	ug, _, distanceOf := buildDiamond(t)

	tagger := MapTagger{
		"gates@0.1.0": "0123456789",
	}

	plan, err := Compute(ug, distanceOf, tagger)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if _, rewritten := plan.ByPackage["gates@1.0.0"]; rewritten {
		t.Errorf("gates@1.0.0 is the direct dependency, it must never be rewritten (%v)", plan.Variants())
	}

	rewrites := plan.ByPackage["gates@0.1.0"]
	if len(rewrites) != 1 {
		t.Fatalf("gates@0.1.0 rewrites = %+v, want exactly one", rewrites)
	}

	if rewrites[0].NewIdentifier != "nand_gate_0123456789" {
		t.Errorf("NewIdentifier = %q, want nand_gate_0123456789 (first 10 hex chars of the checksum tag)", rewrites[0].NewIdentifier)
	}
}

func TestComputeErrorsWhenDistanceMissing(t *testing.T) {
	ug, _, _ := buildDiamond(t)

	_, err := Compute(ug, map[string]int{}, MapTagger{})
	if err == nil {
		t.Fatalf("expected an error when no distance is known for any colliding instance")
	}
}

func TestPropagateCarriesRewriteToReferencingAncestor(t *testing.T) {
	ug, pkgGraph, distanceOf := buildDiamond(t)

	tagger := MapTagger{"gates@0.1.0": "0123456789"}

	plan, err := Compute(ug, distanceOf, tagger)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	Propagate(plan, pkgGraph)

	if _, ok := plan.ByPackage["half-add@0.1.0"]; !ok {
		t.Fatalf("half-add@0.1.0 references gates@0.1.0's nand_gate and must become a dynamic variant too, plan = %+v", plan.ByPackage)
	}

	if _, ok := plan.ByPackage["top@0.1.0"]; ok {
		t.Errorf("top only references the retained gates@1.0.0 instance, it must not be rewritten")
	}
}
