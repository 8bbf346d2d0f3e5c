// Package diag provides the diagnostic and error-kind model shared across
// Orbit's resolver, catalog, build, and HDL subsystems.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chaseruskin/orbit/internal/position"
)

// Level is the severity of a diagnostic.
type Level int

const (
	Error Level = iota
	Warning
	Info
)

func (l Level) String() string {
	switch l {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	default:
		return "unknown"
	}
}

// Kind enumerates the error kinds surfaced to the user, per the error
// handling design: manifest/lockfile malformed, resolver conflict, missing
// package, protocol failure, checksum mismatch, duplicate identifier,
// lex/parse failure, unresolved root, and I/O.
type Kind string

const (
	KindManifestMalformed   Kind = "manifest_malformed"
	KindLockfileMalformed   Kind = "lockfile_malformed"
	KindResolverConflict    Kind = "resolver_conflict"
	KindMissingPackage      Kind = "missing_package"
	KindProtocolFailure     Kind = "protocol_failure"
	KindChecksumMismatch    Kind = "checksum_mismatch"
	KindDuplicateIdentifier Kind = "duplicate_identifier"
	KindLexParseFailure     Kind = "lex_parse_failure"
	KindUnresolvedRoot      Kind = "unresolved_root"
	KindIO                  Kind = "io"
	KindBlackBox            Kind = "black_box"
)

// Diagnostic is a single user-facing message, optionally anchored to a
// source span and carrying kind-specific context fields.
type Diagnostic struct {
	Kind    Kind
	Level   Level
	Message string
	Span    position.Span
	Related []position.Span
	Context map[string]string
}

func (d *Diagnostic) Error() string {
	var b strings.Builder

	if d.Span.IsValid() {
		b.WriteString(d.Span.String())
		b.WriteString(": ")
	}

	b.WriteString(d.Level.String())
	b.WriteString("[")
	b.WriteString(string(d.Kind))
	b.WriteString("]: ")
	b.WriteString(d.Message)

	for _, r := range d.Related {
		if r.IsValid() {
			b.WriteString("\n  also at: ")
			b.WriteString(r.String())
		}
	}

	return b.String()
}

// New builds a Diagnostic of the given kind and level.
func New(kind Kind, level Level, message string) *Diagnostic {
	return &Diagnostic{Kind: kind, Level: level, Message: message, Context: map[string]string{}}
}

func (d *Diagnostic) At(span position.Span) *Diagnostic {
	d.Span = span
	return d
}

func (d *Diagnostic) AlsoAt(span position.Span) *Diagnostic {
	d.Related = append(d.Related, span)
	return d
}

func (d *Diagnostic) With(key, value string) *Diagnostic {
	if d.Context == nil {
		d.Context = map[string]string{}
	}

	d.Context[key] = value

	return d
}

// Bag collects diagnostics raised during a single operation (e.g. one
// design-unit graph build) and separates errors from warnings.
type Bag struct {
	items []*Diagnostic
}

func NewBag() *Bag { return &Bag{} }

func (b *Bag) Add(d *Diagnostic) { b.items = append(b.items, d) }

func (b *Bag) Errorf(kind Kind, format string, args ...interface{}) *Diagnostic {
	d := New(kind, Error, fmt.Sprintf(format, args...))
	b.Add(d)

	return d
}

func (b *Bag) Warnf(kind Kind, format string, args ...interface{}) *Diagnostic {
	d := New(kind, Warning, fmt.Sprintf(format, args...))
	b.Add(d)

	return d
}

func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Level == Error {
			return true
		}
	}

	return false
}

func (b *Bag) Errors() []*Diagnostic   { return b.byLevel(Error) }
func (b *Bag) Warnings() []*Diagnostic { return b.byLevel(Warning) }

func (b *Bag) byLevel(l Level) []*Diagnostic {
	out := make([]*Diagnostic, 0, len(b.items))

	for _, d := range b.items {
		if d.Level == l {
			out = append(out, d)
		}
	}

	return out
}

func (b *Bag) All() []*Diagnostic { return b.items }

// Sort orders diagnostics by file, then line, then column, errors before
// warnings, for stable user-facing output.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		a, c := b.items[i], b.items[j]
		if a.Span.Start.Filename != c.Span.Start.Filename {
			return a.Span.Start.Filename < c.Span.Start.Filename
		}

		if a.Span.Start.Line != c.Span.Start.Line {
			return a.Span.Start.Line < c.Span.Start.Line
		}

		if a.Span.Start.Column != c.Span.Start.Column {
			return a.Span.Start.Column < c.Span.Start.Column
		}

		return a.Level < c.Level
	})
}

// AsError adapts a Bag's errors into a single Go error for propagation to a
// subcommand entry point, or nil if there are none.
func (b *Bag) AsError() error {
	errs := b.Errors()
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}

	return fmt.Errorf("%d errors:\n%s", len(errs), strings.Join(msgs, "\n"))
}
