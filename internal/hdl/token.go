// Package hdl implements the HDL lexer and shallow parser: tokenizing VHDL
// and (System)Verilog, then extracting design units, library bindings,
// instantiations, and package references with byte-accurate spans for the
// DST engine.
package hdl

import (
	"fmt"

	"github.com/chaseruskin/orbit/internal/position"
)

// Language distinguishes the two HDL dialects Orbit understands.
type Language int

const (
	VHDL Language = iota
	SystemVerilog
)

func (l Language) String() string {
	switch l {
	case VHDL:
		return "vhdl"
	case SystemVerilog:
		return "systemverilog"
	default:
		return "unknown"
	}
}

// TokenType enumerates the lexical categories shared by both dialects. The
// shallow parser interprets dialect-specific keyword identity via the
// keyword tables in keywords.go rather than dedicated token types,
// keeping one token vocabulary for both lexers.
type TokenType int

const (
	TokEOF TokenType = iota
	TokError
	TokComment
	TokIdentifier
	TokExtendedIdentifier // VHDL \name\, case-preserving
	TokString
	TokNumber
	TokSymbol     // punctuation: ( ) ; , . : etc., literal value in Token.Literal
	TokDirective  // (System)Verilog compiler directive, e.g. `ifdef
)

var tokenNames = map[TokenType]string{
	TokEOF:                "EOF",
	TokError:               "ERROR",
	TokComment:             "COMMENT",
	TokIdentifier:          "IDENTIFIER",
	TokExtendedIdentifier:  "EXTENDED_IDENTIFIER",
	TokString:              "STRING",
	TokNumber:              "NUMBER",
	TokSymbol:              "SYMBOL",
	TokDirective:           "DIRECTIVE",
}

func (t TokenType) String() string {
	if n, ok := tokenNames[t]; ok {
		return n
	}

	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// Token is one lexical unit with its byte-accurate source span.
type Token struct {
	Type    TokenType
	Literal string
	// CanonicalLiteral is the identification key used for comparisons: for
	// VHDL plain identifiers, the lowercase-folded form; for extended
	// identifiers, the body between the backslash delimiters with case
	// preserved; for all (System)Verilog identifiers, identical to Literal
	// (case-sensitive).
	CanonicalLiteral string
	Span             position.Span
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Type, t.Literal, t.Span)
}

// LexError reports a failure tokenizing a file: the file, line, column,
// and a short error kind.
type LexError struct {
	File string
	Line int
	Col  int
	Kind string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s:%d:%d: lex error: %s", e.File, e.Line, e.Col, e.Kind)
}
