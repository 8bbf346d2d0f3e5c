// Package ignore implements the .orbitignore pattern matcher: the
// widely-known gitignore pattern dialect (glob segments, "**", leading-'/'
// anchoring, trailing-'/' directory-only rules, '!' negation).
//
// No gitignore-pattern-matching library is wired into this module's
// dependency graph, so this is a from-scratch implementation rather than
// an adaptation of an existing one.
package ignore

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Rule is a single compiled pattern line.
type Rule struct {
	negate      bool
	dirOnly     bool
	anchored    bool
	segments    []string
}

// Matcher holds the ordered rule set from one .orbitignore file. Later
// rules override earlier ones, as in gitignore.
type Matcher struct {
	rules []Rule
}

// Load reads .orbitignore from dir, if present, returning an empty Matcher
// (matches nothing) when the file is absent.
func Load(dir string) (*Matcher, error) {
	path := filepath.Join(dir, ".orbitignore")

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Matcher{}, nil
		}

		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse compiles rules from an .orbitignore-formatted reader.
func Parse(r io.Reader) (*Matcher, error) {
	m := &Matcher{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		rule := Rule{}

		if strings.HasPrefix(trimmed, "!") {
			rule.negate = true
			trimmed = trimmed[1:]
		}

		if strings.HasSuffix(trimmed, "/") {
			rule.dirOnly = true
			trimmed = strings.TrimSuffix(trimmed, "/")
		}

		if strings.HasPrefix(trimmed, "/") {
			rule.anchored = true
			trimmed = strings.TrimPrefix(trimmed, "/")
		}

		if strings.Contains(trimmed, "/") {
			rule.anchored = true
		}

		rule.segments = strings.Split(trimmed, "/")
		m.rules = append(m.rules, rule)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return m, nil
}

// Match reports whether relPath (slash-separated, relative to the
// .orbitignore's directory) is ignored. isDir indicates whether relPath
// names a directory, for trailing-'/' directory-only rules.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	ignored := false

	for _, rule := range m.rules {
		applies := false

		if rule.dirOnly {
			if isDir && ruleMatches(rule, relPath) {
				applies = true
			} else if ruleMatchesAncestorDir(rule, relPath) {
				applies = true
			}
		} else if ruleMatches(rule, relPath) {
			applies = true
		}

		if applies {
			ignored = !rule.negate
		}
	}

	return ignored
}

// ruleMatchesAncestorDir checks whether relPath lives beneath a directory
// matched by a dirOnly rule, so files inside an ignored directory are
// still excluded even though the file itself isn't a directory.
func ruleMatchesAncestorDir(rule Rule, relPath string) bool {
	parts := strings.Split(relPath, "/")
	for i := 0; i < len(parts)-1; i++ {
		if ruleMatches(rule, strings.Join(parts[:i+1], "/")) {
			return true
		}
	}

	return false
}

func ruleMatches(rule Rule, relPath string) bool {
	parts := strings.Split(relPath, "/")

	if !rule.anchored {
		// An unanchored single-segment pattern may match starting at any
		// path segment (gitignore's "matches in any directory").
		for start := 0; start < len(parts); start++ {
			if matchSegments(rule.segments, parts[start:]) {
				return true
			}
		}

		return false
	}

	return matchSegments(rule.segments, parts)
}

// matchSegments matches a pattern's path segments against a candidate
// path's segments, supporting "**" as a match-any-number-of-segments
// wildcard and per-segment glob matching via filepath.Match.
func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}

	if pattern[0] == "**" {
		if len(pattern) == 1 {
			return true
		}

		for i := 0; i <= len(path); i++ {
			if matchSegments(pattern[1:], path[i:]) {
				return true
			}
		}

		return false
	}

	if len(path) == 0 {
		return false
	}

	ok, err := filepath.Match(pattern[0], path[0])
	if err != nil || !ok {
		return false
	}

	return matchSegments(pattern[1:], path[1:])
}
