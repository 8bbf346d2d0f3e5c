// Package semver implements Orbit's (major, minor, patch[-label]) version
// model, including the partial-version matching rule used throughout the
// manifest, lockfile, and resolver.
package semver

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Version is an ordered triple of non-negative integers with an optional
// label of letters/digits/'.' after a single '-'.
type Version struct {
	Major, Minor, Patch int
	Label               string
}

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z.]+))?$`)

// Parse parses a fully-qualified version string, e.g. "1.4.0" or
// "1.4.0-rc.1".
func Parse(s string) (Version, error) {
	m := versionPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Version{}, fmt.Errorf("semver: invalid version %q", s)
	}

	maj, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	pat, _ := strconv.Atoi(m[3])

	return Version{Major: maj, Minor: min, Patch: pat, Label: m[4]}, nil
}

// MustParse panics on an invalid version; reserved for tests and literals
// known to be well-formed.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return v
}

func (v Version) String() string {
	base := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Label != "" {
		return base + "-" + v.Label
	}

	return base
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other. Numeric fields dominate; a version with no label is considered
// greater than the same numeric triple with a label (pre-release ordering).
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return cmpInt(v.Major, other.Major)
	}

	if v.Minor != other.Minor {
		return cmpInt(v.Minor, other.Minor)
	}

	if v.Patch != other.Patch {
		return cmpInt(v.Patch, other.Patch)
	}

	if v.Label == other.Label {
		return 0
	}

	if v.Label == "" {
		return 1
	}

	if other.Label == "" {
		return -1
	}

	return strings.Compare(v.Label, other.Label)
}

func (v Version) LessThan(other Version) bool    { return v.Compare(other) < 0 }
func (v Version) GreaterThan(other Version) bool { return v.Compare(other) > 0 }
func (v Version) Equal(other Version) bool       { return v.Compare(other) == 0 }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Field counts how many of (major, minor, patch) a partial version
// specifies.
type Field int

const (
	FieldMajor Field = iota + 1
	FieldMinorInclusive
	FieldFull
	FieldLatest
)

// Partial is a version requirement that omits trailing fields, e.g. "1" or
// "1.2", or the sentinel "latest". It matches the maximum known version
// agreeing on the specified prefix.
type Partial struct {
	Major, Minor, Patch int
	Field               Field
	Label               string
}

var partialPattern = regexp.MustCompile(`^(\d+)(?:\.(\d+)(?:\.(\d+)(?:-([0-9A-Za-z.]+))?)?)?$`)

// ParsePartial parses a partial version requirement string ("1", "1.2",
// "1.2.1", "1.2.1-rc.1", or "latest").
func ParsePartial(s string) (Partial, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "latest") || s == "" {
		return Partial{Field: FieldLatest}, nil
	}

	m := partialPattern.FindStringSubmatch(s)
	if m == nil {
		return Partial{}, fmt.Errorf("semver: invalid partial version %q", s)
	}

	p := Partial{}
	p.Major, _ = strconv.Atoi(m[1])

	switch {
	case m[3] != "":
		p.Minor, _ = strconv.Atoi(m[2])
		p.Patch, _ = strconv.Atoi(m[3])
		p.Label = m[4]
		p.Field = FieldFull
	case m[2] != "":
		p.Minor, _ = strconv.Atoi(m[2])
		p.Field = FieldMinorInclusive
	default:
		p.Field = FieldMajor
	}

	return p, nil
}

// Matches reports whether v agrees with p on the prefix p specifies.
func (p Partial) Matches(v Version) bool {
	switch p.Field {
	case FieldLatest:
		return true
	case FieldMajor:
		return v.Major == p.Major
	case FieldMinorInclusive:
		return v.Major == p.Major && v.Minor == p.Minor
	case FieldFull:
		return v.Major == p.Major && v.Minor == p.Minor && v.Patch == p.Patch && v.Label == p.Label
	default:
		return false
	}
}

// Best returns the maximum of known that matches p, and false if none do.
// This realizes "a partial version matches the maximum known version that
// agrees on the specified prefix."
func Best(p Partial, known []Version) (Version, bool) {
	sorted := append([]Version(nil), known...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	var best Version

	found := false

	for _, v := range sorted {
		if p.Matches(v) {
			best = v
			found = true
		}
	}

	return best, found
}

// LowerBound returns the minimum version satisfying p: a partial
// requirement contributes its prefix's smallest numeric value as a lower
// bound.
func (p Partial) LowerBound() Version {
	switch p.Field {
	case FieldFull:
		return Version{Major: p.Major, Minor: p.Minor, Patch: p.Patch, Label: p.Label}
	case FieldMinorInclusive:
		return Version{Major: p.Major, Minor: p.Minor, Patch: 0}
	case FieldMajor:
		return Version{Major: p.Major, Minor: 0, Patch: 0}
	default: // FieldLatest
		return Version{}
	}
}
