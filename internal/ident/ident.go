// Package ident implements the package name grammar and uuid generation
// described in the Package Identity section of the data model: an
// ASCII-lead name identified case-insensitively with '-'/'_' folded
// together, plus a 25-character lowercase base36 uuid.
package ident

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// namePattern: ASCII letter lead, then letters/digits/-/_, not ending in -/_.
var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*[A-Za-z0-9]$|^[A-Za-z]$`)

// ValidateName checks a package name against the naming grammar. It does
// not reject reserved '.orbit-' prefixed names; that rule applies to files
// at a package root, not to the name field itself (see ValidateReservedFile).
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("ident: package name cannot be empty")
	}

	for _, r := range name {
		if r > unicode.MaxASCII {
			return fmt.Errorf("ident: package name %q must be ASCII", name)
		}

		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("ident: package name %q contains a control character", name)
		}
	}

	if !namePattern.MatchString(name) {
		return fmt.Errorf("ident: package name %q must start with a letter, contain only letters/digits/-/_, and not end with -/_", name)
	}

	return nil
}

// Canonical folds a name to its identification key: lowercase, with '-' and
// '_' both mapped to '-'. Two names identify the same package iff their
// Canonical forms match: "foo-bar" and "Foo_Bar" identify; "foo-bar" and
// "foobar" do not.
func Canonical(name string) string {
	lower := strings.ToLower(name)
	return strings.ReplaceAll(lower, "_", "-")
}

// SameName reports whether a and b identify the same package name.
func SameName(a, b string) bool { return Canonical(a) == Canonical(b) }

const uuidAlphabetLen = 36
const uuidDigits = 25

// NewUUID generates a fresh 25-character lowercase base36 package uuid from
// 128 random bits (36^25 > 2^128 > 36^24, so 25 digits is the minimum that
// always covers the entropy without truncation).
func NewUUID() (string, error) {
	raw, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("ident: generating uuid: %w", err)
	}

	return EncodeUUID(raw), nil
}

// EncodeUUID renders a uuid.UUID's 128 bits as a zero-padded, fixed-width
// lowercase base36 string.
func EncodeUUID(u uuid.UUID) string {
	n := new(big.Int).SetBytes(u[:])
	s := n.Text(uuidAlphabetLen)

	if len(s) < uuidDigits {
		s = strings.Repeat("0", uuidDigits-len(s)) + s
	}

	return s
}

var uuidPattern = regexp.MustCompile(`^[0-9a-z]{25}$`)

// ValidateUUID checks the 25-character lowercase base36 grammar.
func ValidateUUID(id string) error {
	if !uuidPattern.MatchString(id) {
		return fmt.Errorf("ident: uuid %q must be 25 lowercase base36 characters", id)
	}

	return nil
}

// reservedPrefix is the marker Orbit uses for internal metadata files at a
// package root.
const reservedPrefix = ".orbit-"

// ValidateReservedFile rejects file names reserved for Orbit's own
// metadata markers (".orbit-checksum", ".orbit-dynamic", ...) appearing at
// a package root under the user's control.
func ValidateReservedFile(name string) error {
	if strings.HasPrefix(name, reservedPrefix) {
		return fmt.Errorf("ident: %q uses the reserved .orbit- prefix", name)
	}

	return nil
}
