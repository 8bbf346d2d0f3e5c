package hdl

import (
	"strings"

	"github.com/chaseruskin/orbit/internal/position"
)

// UnitKind enumerates the design-unit-level construct kinds across both
// dialects.
type UnitKind int

const (
	KindEntity UnitKind = iota
	KindArchitecture
	KindPackage
	KindPackageBody
	KindConfiguration
	KindContext
	KindModule
	KindInterface
	KindProgram
	KindClass
	KindPrimitive
)

func (k UnitKind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindArchitecture:
		return "architecture"
	case KindPackage:
		return "package"
	case KindPackageBody:
		return "package body"
	case KindConfiguration:
		return "configuration"
	case KindContext:
		return "context"
	case KindModule:
		return "module"
	case KindInterface:
		return "interface"
	case KindProgram:
		return "program"
	case KindClass:
		return "class"
	case KindPrimitive:
		return "primitive"
	default:
		return "unknown"
	}
}

// UnitRef is a reference found within a unit's body: an instantiation, a
// package use/import, or a configuration binding. Library is empty for a
// component-style (library-less) VHDL instantiation, in which case the
// referenced entity is resolved through configuration/default-binding
// rules at the graph-builder stage rather than here.
type UnitRef struct {
	Library string
	Name    string
	Span    position.Span
}

// DesignUnit is one design-unit-level construct extracted from a file:
// entity/architecture/package/... for VHDL, module/interface/.../primitive
// for Verilog.
type DesignUnit struct {
	Identifier string // canonical-case for VHDL, literal for Verilog
	Kind       UnitKind
	Language   Language
	// Secondary holds the primary unit name an architecture or package
	// body attaches to (e.g. the entity name in "architecture rtl of
	// adder"); empty for primary units.
	Secondary string
	Span      position.Span
	References []UnitRef
}

// extractor walks a flat token stream (comments and directives stripped) and
// produces design units plus their reference sets in one pass: no full
// grammar, just enough structure to find unit boundaries and references.
type extractor struct {
	toks []Token
	pos  int
	lang Language
}

func significant(toks []Token) []Token {
	out := make([]Token, 0, len(toks))

	for _, t := range toks {
		if t.Type == TokComment || t.Type == TokDirective {
			continue
		}

		out = append(out, t)
	}

	return out
}

// ExtractUnits scans tokens for design-unit-level boundaries and, for each
// unit found, its instantiation/use/import references.
func ExtractUnits(tokens []Token, lang Language) []DesignUnit {
	e := &extractor{toks: significant(tokens), lang: lang}

	var units []DesignUnit

	for e.pos < len(e.toks) {
		if lang == VHDL {
			if u, ok := e.vhdlUnit(); ok {
				units = append(units, u)

				continue
			}
		} else {
			if u, ok := e.verilogUnit(); ok {
				units = append(units, u)

				continue
			}
		}

		e.pos++
	}

	return units
}

// ExtractReferences returns a unit's References slice as populated during
// ExtractUnits; tokens is not consulted. Kept as a distinct entry point for
// callers that hold only a unit and the original token stream.
func ExtractReferences(tokens []Token, unit DesignUnit) []UnitRef {
	return unit.References
}

func (e *extractor) cur() Token {
	if e.pos >= len(e.toks) {
		return Token{Type: TokEOF}
	}

	return e.toks[e.pos]
}

func (e *extractor) at(offset int) Token {
	i := e.pos + offset
	if i >= len(e.toks) {
		return Token{Type: TokEOF}
	}

	return e.toks[i]
}

func (e *extractor) isWord(tok Token, word string) bool {
	if tok.Type != TokIdentifier {
		return false
	}

	if e.lang == VHDL {
		return tok.CanonicalLiteral == word
	}

	return tok.Literal == word
}

func (e *extractor) symbol(tok Token, s string) bool {
	return tok.Type == TokSymbol && tok.Literal == s
}

// skipBalanced advances past a declarative/statement part up to and
// including its own closing "end [keyword] [name];", treating each word in
// openWords as introducing a nested region that needs its own "end" before
// the outer one closes. A mandatory top-level "begin" (e.g. an
// architecture's statement part) is never passed in openWords: it is part
// of the same region, not a nested one.
func (e *extractor) skipBalanced(openWords []string) {
	depth := 1

	for e.pos < len(e.toks) && depth > 0 {
		t := e.cur()

		opened := false

		for _, w := range openWords {
			if e.isWord(t, w) {
				depth++
				opened = true

				break
			}
		}

		if opened {
			e.pos++

			continue
		}

		if e.isWord(t, "end") {
			depth--
			e.pos++

			for e.pos < len(e.toks) && !e.symbol(e.cur(), ";") {
				e.pos++
			}

			if e.symbol(e.cur(), ";") {
				e.pos++
			}

			continue
		}

		e.pos++
	}
}

func (e *extractor) vhdlUnit() (DesignUnit, bool) {
	t := e.cur()

	switch {
	case e.isWord(t, "entity"):
		start := t.Span
		e.pos++
		name := e.identName()
		e.skipBalanced([]string{"process", "generate", "block"})

		return DesignUnit{Identifier: name, Kind: KindEntity, Language: VHDL, Span: joinSpan(start, e.lastSpan())}, true

	case e.isWord(t, "architecture"):
		start := t.Span
		e.pos++
		archName := e.identName()

		if e.isWord(e.cur(), "of") {
			e.pos++
		}

		ofName := e.identName()
		refs := e.vhdlBodyReferences()

		return DesignUnit{
			Identifier: archName, Kind: KindArchitecture, Language: VHDL,
			Secondary: ofName, Span: joinSpan(start, e.lastSpan()), References: refs,
		}, true

	case e.isWord(t, "package") && e.isWord(e.at(1), "body"):
		start := t.Span
		e.pos += 2
		name := e.identName()
		refs := e.vhdlBodyReferences()

		return DesignUnit{Identifier: name, Kind: KindPackageBody, Language: VHDL, Span: joinSpan(start, e.lastSpan()), References: refs}, true

	case e.isWord(t, "package"):
		start := t.Span
		e.pos++
		name := e.identName()
		refs := e.vhdlBodyReferences()

		return DesignUnit{Identifier: name, Kind: KindPackage, Language: VHDL, Span: joinSpan(start, e.lastSpan()), References: refs}, true

	case e.isWord(t, "configuration"):
		start := t.Span
		e.pos++
		name := e.identName()
		e.skipBalanced([]string{"block"})

		return DesignUnit{Identifier: name, Kind: KindConfiguration, Language: VHDL, Span: joinSpan(start, e.lastSpan())}, true

	case e.isWord(t, "context"):
		start := t.Span
		e.pos++
		name := e.identName()
		refs := e.vhdlBodyReferences()

		return DesignUnit{Identifier: name, Kind: KindContext, Language: VHDL, Span: joinSpan(start, e.lastSpan()), References: refs}, true
	}

	return DesignUnit{}, false
}

var lastSeenSpan position.Span

func (e *extractor) lastSpan() position.Span {
	if e.pos > 0 && e.pos <= len(e.toks) {
		return e.toks[e.pos-1].Span
	}

	return lastSeenSpan
}

func joinSpan(a, b position.Span) position.Span {
	return position.Span{Start: a.Start, End: b.End}
}

// identName consumes and returns one identifier token's canonical name, or
// empty string if the current token isn't an identifier.
func (e *extractor) identName() string {
	t := e.cur()
	if t.Type != TokIdentifier && t.Type != TokExtendedIdentifier {
		return ""
	}

	e.pos++

	return t.CanonicalLiteral
}

// vhdlBodyReferences scans a package/architecture/context body up to its
// closing "end", collecting `use L.P.all`-style package references and
// instantiation references, then consumes the closing end clause.
func (e *extractor) vhdlBodyReferences() []UnitRef {
	var refs []UnitRef
	depth := 1

	for e.pos < len(e.toks) && depth > 0 {
		t := e.cur()

		switch {
		case e.isWord(t, "process") || e.isWord(t, "generate") || e.isWord(t, "block"):
			depth++
			e.pos++

		case e.isWord(t, "end"):
			// "end" always closes the innermost process/generate/block or,
			// at depth 1, the unit itself; either way consume through the
			// trailing keyword/name and semicolon before resuming so a
			// process/generate token right after "end" is never mistaken
			// for a new opener.
			depth--
			e.pos++

			for e.pos < len(e.toks) && !e.symbol(e.cur(), ";") {
				e.pos++
			}

			if e.symbol(e.cur(), ";") {
				e.pos++
			}

		case e.isWord(t, "use"):
			e.pos++

			if r, ok := e.vhdlDottedRef(); ok {
				refs = append(refs, r)
			}

		case e.isWord(t, "entity") && e.at(1).Type == TokIdentifier:
			// direct entity instantiation: entity LIB.NAME [(ARCH)]
			start := t.Span
			e.pos++

			if r, ok := e.vhdlDottedRef(); ok {
				r.Span = joinSpan(start, r.Span)
				refs = append(refs, r)
			}

		case e.isWord(t, "configuration") && e.at(1).Type == TokIdentifier:
			start := t.Span
			e.pos++

			if r, ok := e.vhdlDottedRef(); ok {
				r.Span = joinSpan(start, r.Span)
				refs = append(refs, r)
			}

		case t.Type == TokIdentifier && e.symbol(e.at(1), ":") && (e.isWord(e.at(2), "entity") || e.isWord(e.at(2), "configuration")):
			// label : entity|configuration LIB.NAME [(ARCH)]
			e.pos += 3

			if r, ok := e.vhdlDottedRef(); ok {
				refs = append(refs, r)
			}

		case t.Type == TokIdentifier && e.symbol(e.at(1), ":") && e.at(2).Type == TokIdentifier &&
			(e.isWord(e.at(3), "port") || e.isWord(e.at(3), "generic")):
			// label : component_name [generic map (...)] port map (...)
			nameTok := e.at(2)

			refs = append(refs, UnitRef{Name: nameTok.CanonicalLiteral, Span: nameTok.Span})
			e.pos += 3

		default:
			e.pos++
		}
	}

	return refs
}

// vhdlDottedRef parses "LIB.NAME" optionally followed by "(ARCH)" and
// consumes through the trailing semicolon if one directly follows,
// returning a library-qualified reference.
func (e *extractor) vhdlDottedRef() (UnitRef, bool) {
	libOrName := e.cur()
	if libOrName.Type != TokIdentifier {
		return UnitRef{}, false
	}

	start := libOrName.Span
	e.pos++

	if e.symbol(e.cur(), ".") {
		e.pos++

		nameTok := e.cur()
		if nameTok.Type != TokIdentifier && nameTok.Type != TokSymbol {
			return UnitRef{}, false
		}

		isAll := nameTok.Type == TokIdentifier && e.isWord(nameTok, "all")

		e.pos++

		ref := UnitRef{Library: libOrName.CanonicalLiteral, Name: nameTok.CanonicalLiteral, Span: joinSpan(start, nameTok.Span)}

		if isAll {
			ref.Name = "all"
		}

		// optional (ARCH) suffix on a direct entity instantiation
		if e.symbol(e.cur(), "(") {
			depth := 0

			for e.pos < len(e.toks) {
				if e.symbol(e.cur(), "(") {
					depth++
				} else if e.symbol(e.cur(), ")") {
					depth--
					e.pos++

					if depth == 0 {
						break
					}

					continue
				}

				e.pos++
			}
		}

		return ref, true
	}

	return UnitRef{Name: libOrName.CanonicalLiteral, Span: start}, true
}

func (e *extractor) verilogUnit() (DesignUnit, bool) {
	t := e.cur()

	kindFor := map[string]UnitKind{
		"module": KindModule, "macromodule": KindModule,
		"interface": KindInterface, "program": KindProgram,
		"package": KindPackage, "class": KindClass, "primitive": KindPrimitive,
		"config": KindConfiguration,
	}
	endFor := map[string]string{
		"module": "endmodule", "macromodule": "endmodule",
		"interface": "endinterface", "program": "endprogram",
		"package": "endpackage", "class": "endclass", "primitive": "endprimitive",
		"config": "endconfig",
	}

	if t.Type != TokIdentifier {
		return DesignUnit{}, false
	}

	kind, known := kindFor[t.Literal]
	if !known {
		return DesignUnit{}, false
	}

	endWord := endFor[t.Literal]
	start := t.Span
	e.pos++
	name := e.identName()

	refs := e.verilogBodyReferences(endWord)

	return DesignUnit{Identifier: name, Kind: kind, Language: SystemVerilog, Span: joinSpan(start, e.lastSpan()), References: refs}, true
}

// verilogBodyReferences scans until the nesting depth returns to zero, where
// any opener keyword (module, begin, generate, ...) adds a level and any
// end-keyword (endmodule, end, endgenerate, ...) removes one; endWord itself
// is not compared. It collects import P::*, P::member, and
// "<module_name> <inst_name> (" instantiation shapes.
func (e *extractor) verilogBodyReferences(endWord string) []UnitRef {
	var refs []UnitRef
	depth := 1

	openers := map[string]bool{"module": true, "macromodule": true, "interface": true, "program": true, "package": true, "class": true, "primitive": true, "config": true, "begin": true, "generate": true}
	closers := map[string]string{"endmodule": "", "endinterface": "", "endprogram": "", "endpackage": "", "endclass": "", "endprimitive": "", "endconfig": "", "end": "", "endgenerate": ""}

	for e.pos < len(e.toks) && depth > 0 {
		t := e.cur()

		if t.Type == TokIdentifier && openers[t.Literal] {
			depth++
			e.pos++

			continue
		}

		if t.Type == TokIdentifier {
			if _, isCloser := closers[t.Literal]; isCloser {
				depth--
				e.pos++

				continue
			}
		}

		if e.isWord(t, "import") {
			e.pos++

			if pkg, ok := e.verilogScopedRef(); ok {
				refs = append(refs, pkg)
			}

			continue
		}

		if t.Type == TokIdentifier && e.at(1).Type == TokSymbol && e.at(1).Literal == ":" && e.at(2).Type == TokSymbol && e.at(2).Literal == ":" {
			if pkg, ok := e.verilogScopedRef(); ok {
				refs = append(refs, pkg)
			}

			continue
		}

		if t.Type == TokIdentifier && !verilogKeywords[t.Literal] && e.at(1).Type == TokIdentifier && !verilogKeywords[e.at(1).Literal] {
			next2 := e.at(2)
			if next2.Type == TokSymbol && (next2.Literal == "(" || next2.Literal == "#") {
				instTok := t
				refs = append(refs, UnitRef{Name: instTok.Literal, Span: instTok.Span})
				e.pos += 2

				continue
			}
		}

		e.pos++
	}

	return refs
}

func (e *extractor) verilogScopedRef() (UnitRef, bool) {
	nameTok := e.cur()
	if nameTok.Type != TokIdentifier {
		return UnitRef{}, false
	}

	start := nameTok.Span
	e.pos++

	if e.symbol(e.cur(), ":") && e.at(1).Type == TokSymbol && e.at(1).Literal == ":" {
		e.pos += 2

		member := "*"

		if e.symbol(e.cur(), "*") {
			e.pos++
		} else if e.cur().Type == TokIdentifier {
			member = e.cur().Literal
			e.pos++
		}

		return UnitRef{Library: nameTok.Literal, Name: member, Span: joinSpan(start, e.lastSpan())}, true
	}

	return UnitRef{Name: nameTok.Literal, Span: start}, true
}

// PrimaryIdentifierAt reports the first design unit (if any) whose whole
// span, from its opening keyword to its end, contains pos: which unit is
// defined at a given source line/column.
func PrimaryIdentifierAt(units []DesignUnit, pos position.Position) (DesignUnit, bool) {
	for _, u := range units {
		if u.Span.Contains(pos) {
			return u, true
		}
	}

	return DesignUnit{}, false
}

// NormalizeSecondary returns the lowercase form for VHDL comparisons and
// the literal form otherwise, used when matching an architecture's
// Secondary field against an entity's Identifier.
func NormalizeSecondary(lang Language, s string) string {
	if lang == VHDL {
		return strings.ToLower(s)
	}

	return s
}
