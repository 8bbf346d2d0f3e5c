// Package unitgraph implements the design-unit graph builder: it walks
// every resolved package's scan scope, lexes and extracts design units
// via internal/hdl, binds them to their library, and assembles both the
// flat UnitGraph (for the DST engine) and the PackageGraph (for
// topological blueprint emission).
package unitgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chaseruskin/orbit/internal/hdl"
	"github.com/chaseruskin/orbit/internal/ident"
	"github.com/chaseruskin/orbit/internal/ignore"
	"github.com/chaseruskin/orbit/internal/manifest"
)

// languageOf maps a file extension to its HDL dialect, or false when the
// file is not HDL source at all and falls outside the scan scope.
func languageOf(path string) (hdl.Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vhd", ".vhdl":
		return hdl.VHDL, true
	case ".v", ".sv", ".svh":
		return hdl.SystemVerilog, true
	default:
		return 0, false
	}
}

// ScanPackage walks a resolved package's root applying the manifest's
// include/exclude glob filter, any .orbitignore at the package root, and
// the reserved ".orbit-" prefix, then lexes and extracts design units from
// every remaining HDL file. Every returned UnitLocation is tagged with the
// package's instance key so callers can distinguish coexisting same-named
// instances when two incompatible majors of one package are both in the
// closure.
func ScanPackage(p ResolvedPackage) ([]UnitLocation, error) {
	root, m := p.Root, p.Manifest

	ignoreMatcher, err := ignore.Load(root)
	if err != nil {
		return nil, fmt.Errorf("unitgraph: loading .orbitignore for %s: %w", m.Name, err)
	}

	var locations []UnitLocation

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		if rel == "." {
			return nil
		}

		if err := ident.ValidateReservedFile(filepath.Base(path)); err != nil {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if ignoreMatcher.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			return nil
		}

		if !includedByManifest(rel, m) {
			return nil
		}

		lang, ok := languageOf(path)
		if !ok {
			return nil
		}

		src, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}

		toks, lexErr := hdl.Tokenize(path, src, lang)
		if lexErr != nil {
			return fmt.Errorf("unitgraph: %s: %w", m.Name, lexErr)
		}

		for _, unit := range hdl.ExtractUnits(toks, lang) {
			locations = append(locations, UnitLocation{Package: m.Name, Instance: p.Key(), File: path, Unit: unit})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(locations, func(i, j int) bool {
		if locations[i].File != locations[j].File {
			return locations[i].File < locations[j].File
		}

		return locations[i].Unit.Span.Start.Offset < locations[j].Unit.Span.Start.Offset
	})

	return locations, nil
}

// includedByManifest applies the manifest's include/exclude glob patterns
// (mutually exclusive per manifest.Validate) to a root-relative path. An
// empty include list means everything is in scope by default; an exclude
// list removes matches from that default scope.
func includedByManifest(rel string, m *manifest.Manifest) bool {
	if len(m.Include) > 0 {
		for _, pat := range m.Include {
			if ok, _ := filepath.Match(pat, rel); ok {
				return true
			}
		}

		return false
	}

	for _, pat := range m.Exclude {
		if ok, _ := filepath.Match(pat, rel); ok {
			return false
		}
	}

	return true
}
