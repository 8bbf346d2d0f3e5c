// Package blueprint implements the blueprint emitter: the flattened,
// topologically-ordered file list a downstream EDA tool consumes instead
// of walking the package graph itself.
package blueprint

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chaseruskin/orbit/internal/config"
	"github.com/chaseruskin/orbit/internal/substitution"
	"github.com/chaseruskin/orbit/internal/unitgraph"
)

// Record is one blueprint line: FILESET\tLIBRARY\tPATH.
type Record struct {
	Fileset string
	Library string
	Path    string // absolute
}

// Blueprint is the ordered record list Emit produces.
type Blueprint struct {
	Records []Record
}

// Write renders the blueprint as tab-separated lines, one per record, in
// the order Records already holds them (callers are responsible for
// having built that order topologically).
func (b *Blueprint) Write(w io.Writer) error {
	for _, r := range b.Records {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", r.Fileset, r.Library, r.Path); err != nil {
			return err
		}
	}

	return nil
}

// ReservedFileset classifies a file by extension into one of the three
// filesets every target receives regardless of its own configuration:
// VHDL, VLOG (Verilog), or SYSV (SystemVerilog). The second result
// is false for any extension outside HDL's scope, leaving the file to be
// matched against a target's own fileset patterns instead.
func ReservedFileset(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vhd", ".vhdl":
		return "VHDL", true
	case ".v", ".vl", ".verilog", ".vlg", ".vh":
		return "VLOG", true
	case ".sv", ".svh":
		return "SYSV", true
	default:
		return "", false
	}
}

// NormalizeFileset renders a user-declared fileset name in its canonical
// blueprint form: uppercase words joined by '-'.
func NormalizeFileset(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})

	for i, p := range parts {
		parts[i] = strings.ToUpper(p)
	}

	return strings.Join(parts, "-")
}

// dedupeSorted returns a sorted copy of files with duplicates removed (a
// package's unit scan can visit the same file more than once when it
// declares several primary units in it).
func dedupeSorted(files []string) []string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	out := sorted[:0]

	var last string

	for i, f := range sorted {
		if i == 0 || f != last {
			out = append(out, f)
			last = f
		}
	}

	return out
}

// Emit builds the blueprint for one target: every HDL file reachable in
// the resolved closure, classified into its reserved fileset, followed by
// every file in the local package matching one of target's own fileset
// glob patterns, all in topological (leaves-first) package order.
// userFilesetResolver expands {{ orbit.top }}/{{ orbit.bench }}/
// {{ orbit.env.* }} references inside target.Fileset patterns, restricted
// to substitution.AllowedInFilesetPattern.
func Emit(packages []unitgraph.ResolvedPackage, pkgGraph *unitgraph.PackageGraph, ug *unitgraph.UnitGraph, target config.Target, userFilesetResolver substitution.Resolver) (*Blueprint, error) {
	order, err := pkgGraph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("blueprint: %w", err)
	}

	byKey := make(map[string]unitgraph.ResolvedPackage, len(packages))
	for _, p := range packages {
		byKey[p.Key()] = p
	}

	filesByInstance := make(map[string][]string)
	for _, loc := range ug.Units {
		filesByInstance[loc.Instance] = append(filesByInstance[loc.Instance], loc.File)
	}

	restricted := substitution.AllowedKeys{Inner: userFilesetResolver, Allowed: substitution.AllowedInFilesetPattern}

	bp := &Blueprint{}

	for _, key := range order {
		p, ok := byKey[key]
		if !ok {
			continue
		}

		library := p.EffectiveLibrary()

		for _, f := range dedupeSorted(filesByInstance[key]) {
			fileset, ok := ReservedFileset(f)
			if !ok {
				continue
			}

			abs, err := filepath.Abs(f)
			if err != nil {
				return nil, fmt.Errorf("blueprint: resolving absolute path for %s: %w", f, err)
			}

			bp.Records = append(bp.Records, Record{Fileset: fileset, Library: library, Path: abs})
		}

		if !p.IsLocal {
			continue
		}

		names := make([]string, 0, len(target.Fileset))
		for name := range target.Fileset {
			names = append(names, name)
		}

		sort.Strings(names)

		for _, name := range names {
			pattern := substitution.Expand(target.Fileset[name], restricted)

			matches, err := filepath.Glob(filepath.Join(p.Root, pattern))
			if err != nil {
				return nil, fmt.Errorf("blueprint: fileset %q pattern %q: %w", name, pattern, err)
			}

			sort.Strings(matches)

			for _, m := range matches {
				abs, err := filepath.Abs(m)
				if err != nil {
					return nil, fmt.Errorf("blueprint: resolving absolute path for %s: %w", m, err)
				}

				bp.Records = append(bp.Records, Record{Fileset: NormalizeFileset(name), Library: library, Path: abs})
			}
		}
	}

	return bp, nil
}

// FileName is the blueprint's fixed name within a target's output
// directory.
const FileName = "blueprint.tsv"

// cacheDirTag is the standard Cache Directory Tagging signature
// (https://bford.info/cachedir/), written into every target output
// directory so backup and indexing tools can skip it.
const cacheDirTag = "Signature: 8a477f597d28d172789f06886806bc55\n" +
	"# This file is a cache directory tag created by orbit.\n" +
	"# For information about cache directory tags, see https://bford.info/cachedir/\n"

// WriteFile renders bp into dir/blueprint.tsv, creating dir if needed and
// marking it with CACHEDIR.TAG, and returns the blueprint's absolute path.
func WriteFile(dir string, bp *Blueprint) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("blueprint: creating target directory %s: %w", dir, err)
	}

	if err := markCacheDir(dir); err != nil {
		return "", err
	}

	path := filepath.Join(dir, FileName)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("blueprint: creating %s: %w", path, err)
	}

	defer f.Close()

	if err := bp.Write(f); err != nil {
		return "", fmt.Errorf("blueprint: writing %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("blueprint: resolving absolute path for %s: %w", path, err)
	}

	return abs, nil
}

func markCacheDir(dir string) error {
	tag := filepath.Join(dir, "CACHEDIR.TAG")

	if _, err := os.Stat(tag); err == nil {
		return nil
	}

	return os.WriteFile(tag, []byte(cacheDirTag), 0o644)
}
