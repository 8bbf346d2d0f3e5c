package blueprint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chaseruskin/orbit/internal/config"
	"github.com/chaseruskin/orbit/internal/hdl"
	"github.com/chaseruskin/orbit/internal/manifest"
	"github.com/chaseruskin/orbit/internal/semver"
	"github.com/chaseruskin/orbit/internal/substitution"
	"github.com/chaseruskin/orbit/internal/unitgraph"
)

// buildFixture assembles a two-package closure: the local package "top"
// directly depends on "gates", giving a deterministic topological order
// (gates before top) to assert against.
func buildFixture(t *testing.T) ([]unitgraph.ResolvedPackage, *unitgraph.PackageGraph, *unitgraph.UnitGraph) {
	t.Helper()

	gatesRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(gatesRoot, "nand_gate.vhd"), []byte(`
entity nand_gate is
  port ( a, b : in bit; y : out bit );
end entity nand_gate;
`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	topRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(topRoot, "top.vhd"), []byte(`
entity top is
  port ( a, b : in bit );
end entity top;
`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := os.WriteFile(filepath.Join(topRoot, "top.xdc"), []byte("set_property PACKAGE_PIN A1 [get_ports a]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	gatesManifest := &manifest.Manifest{Name: "gates", UUID: "gggggggggggggggggggggg", Version: semver.MustParse("1.0.0")}
	topManifest := &manifest.Manifest{
		Name: "top", UUID: "bbbbbbbbbbbbbbbbbbbbbbb",
		Dependencies: map[string]manifest.Dependency{"gates": {Requirement: "1"}},
	}

	packages := []unitgraph.ResolvedPackage{
		{Name: "gates", Version: semver.MustParse("1.0.0"), Root: gatesRoot, Manifest: gatesManifest, Distance: 1},
		{
			Name: "top", Version: semver.MustParse("0.1.0"), Root: topRoot, Manifest: topManifest, IsLocal: true,
			ResolvedDependencies: map[string]string{"gates": "1.0.0"},
		},
	}

	pkgGraph := unitgraph.NewPackageGraph()
	libraryOf := make(map[string]string)

	for i := range packages {
		p := &packages[i]
		pkgGraph.AddPackage(p)
		libraryOf[p.Key()] = p.EffectiveLibrary()
	}

	pkgGraph.AddDependency("top@0.1.0", "gates@1.0.0")

	var units []unitgraph.UnitLocation

	units = append(units, unitgraph.UnitLocation{
		Package: "gates", Instance: "gates@1.0.0", File: filepath.Join(gatesRoot, "nand_gate.vhd"),
		Unit: hdl.DesignUnit{Identifier: "nand_gate", Kind: hdl.KindEntity, Language: hdl.VHDL},
	})

	units = append(units, unitgraph.UnitLocation{
		Package: "top", Instance: "top@0.1.0", File: filepath.Join(topRoot, "top.vhd"),
		Unit: hdl.DesignUnit{Identifier: "top", Kind: hdl.KindEntity, Language: hdl.VHDL},
	})

	ug := unitgraph.NewUnitGraph(units, libraryOf)

	return packages, pkgGraph, ug
}

func TestReservedFilesetClassifiesByExtension(t *testing.T) {
	cases := map[string]string{
		"a.vhd":     "VHDL",
		"a.vhdl":    "VHDL",
		"a.v":       "VLOG",
		"a.vl":      "VLOG",
		"a.verilog": "VLOG",
		"a.vlg":     "VLOG",
		"a.vh":      "VLOG",
		"a.sv":      "SYSV",
		"a.svh":     "SYSV",
	}

	for path, want := range cases {
		got, ok := ReservedFileset(path)
		if !ok || got != want {
			t.Errorf("ReservedFileset(%q) = (%q, %v), want (%q, true)", path, got, ok, want)
		}
	}

	if _, ok := ReservedFileset("a.xdc"); ok {
		t.Errorf("ReservedFileset(a.xdc) should not match a reserved fileset")
	}
}

func TestNormalizeFilesetUppercasesAndJoins(t *testing.T) {
	if got := NormalizeFileset("constraints"); got != "CONSTRAINTS" {
		t.Errorf("NormalizeFileset(constraints) = %q, want CONSTRAINTS", got)
	}

	if got := NormalizeFileset("pin-map_file"); got != "PIN-MAP-FILE" {
		t.Errorf("NormalizeFileset(pin-map_file) = %q, want PIN-MAP-FILE", got)
	}
}

func TestEmitOrdersFilesLeavesFirstAndClassifiesReservedFilesets(t *testing.T) {
	packages, pkgGraph, ug := buildFixture(t)

	target := config.Target{Name: "sim", Fileset: map[string]string{"constraints": "*.xdc"}}

	bp, err := Emit(packages, pkgGraph, ug, target, substitution.MapResolver{})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	if len(bp.Records) != 3 {
		t.Fatalf("got %d records, want 3: %+v", len(bp.Records), bp.Records)
	}

	if bp.Records[0].Fileset != "VHDL" || !strings.HasSuffix(bp.Records[0].Path, "nand_gate.vhd") {
		t.Errorf("first record = %+v, want gates's VHDL file (leaves first)", bp.Records[0])
	}

	if bp.Records[0].Library != "gates" {
		t.Errorf("first record library = %q, want gates", bp.Records[0].Library)
	}

	if bp.Records[1].Fileset != "VHDL" || !strings.HasSuffix(bp.Records[1].Path, "top.vhd") {
		t.Errorf("second record = %+v, want top's VHDL file", bp.Records[1])
	}

	if bp.Records[2].Fileset != "CONSTRAINTS" || !strings.HasSuffix(bp.Records[2].Path, "top.xdc") {
		t.Errorf("third record = %+v, want top's user constraints fileset", bp.Records[2])
	}
}

func TestEmitExpandsSubstitutionInFilesetPattern(t *testing.T) {
	packages, pkgGraph, ug := buildFixture(t)

	// The pattern itself doesn't need {{ orbit.top }} to resolve to an
	// existing file; this only asserts Expand ran and left an unknown key
	// untouched rather than erroring, since Glob on a literal brace
	// pattern simply matches nothing.
	target := config.Target{Name: "sim", Fileset: map[string]string{"constraints": "{{ orbit.bogus }}.xdc"}}

	bp, err := Emit(packages, pkgGraph, ug, target, substitution.MapResolver{"orbit.top": "top"})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	for _, r := range bp.Records {
		if r.Fileset == "CONSTRAINTS" {
			t.Errorf("unexpected match for an unresolved substitution pattern: %+v", r)
		}
	}
}

func TestWriteFileProducesTabSeparatedLinesAndCacheDirTag(t *testing.T) {
	packages, pkgGraph, ug := buildFixture(t)

	target := config.Target{Name: "sim"}

	bp, err := Emit(packages, pkgGraph, ug, target, substitution.MapResolver{})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "target-out")

	path, err := WriteFile(dir, bp)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading blueprint: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), contents)
	}

	if fields := strings.Split(lines[0], "\t"); len(fields) != 3 {
		t.Errorf("line %q does not have 3 tab-separated fields", lines[0])
	}

	if _, err := os.Stat(filepath.Join(dir, "CACHEDIR.TAG")); err != nil {
		t.Errorf("CACHEDIR.TAG was not written: %v", err)
	}
}

func TestEnvContextRendersFixedVariables(t *testing.T) {
	e := EnvContext{IPName: "top", Target: "sim", Top: "top_tb"}

	env := e.Env()

	if env["ORBIT_IP_NAME"] != "top" {
		t.Errorf("ORBIT_IP_NAME = %q, want top", env["ORBIT_IP_NAME"])
	}

	if env["ORBIT_TARGET"] != "sim" {
		t.Errorf("ORBIT_TARGET = %q, want sim", env["ORBIT_TARGET"])
	}

	if env["ORBIT_TOP"] != "top_tb" {
		t.Errorf("ORBIT_TOP = %q, want top_tb", env["ORBIT_TOP"])
	}
}

func TestMergeConfigEnvExportsUnderOrbitEnvPrefixWithoutShadowingFixedVars(t *testing.T) {
	env := EnvContext{Target: "sim"}.Env()

	cfg := &config.Config{Env: map[string]string{"board": "arty-a7", "target": "should-not-shadow"}}

	merged := MergeConfigEnv(env, cfg)

	if merged["ORBIT_ENV_BOARD"] != "arty-a7" {
		t.Errorf("ORBIT_ENV_BOARD = %q, want arty-a7", merged["ORBIT_ENV_BOARD"])
	}

	if merged["ORBIT_TARGET"] != "sim" {
		t.Errorf("fixed ORBIT_TARGET must not be shadowed by [env] target, got %q", merged["ORBIT_TARGET"])
	}
}
