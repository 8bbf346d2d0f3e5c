package hdl

import (
	"strings"
	"unicode"

	"github.com/chaseruskin/orbit/internal/position"
)

// lexer is a one-shot, byte-oriented scanner over a single source file:
// position/readPosition/ch/line/column track the read cursor. There is no
// incremental-reparse cache since tokenizing always runs on a whole file.
type lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
	line         int
	column       int
	filename     string
	lang         Language
}

func newLexer(filename, input string, lang Language) *lexer {
	l := &lexer{
		input:    input,
		filename: filename,
		lang:     lang,
		line:     1,
		column:   0,
	}
	l.advance()

	return l
}

func (l *lexer) advance() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}

	l.position = l.readPosition
	l.readPosition++
}

func (l *lexer) peek() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}

	return l.input[l.readPosition]
}

func (l *lexer) pos() position.Position {
	return position.Position{
		Filename: l.filename,
		Line:     l.line,
		Column:   l.column,
		Offset:   l.position,
	}
}

// Tokenize scans the entire file for the given dialect, returning the token
// stream or the first LexError encountered. Whitespace is discarded;
// comments are still recorded as TokComment tokens so the DST engine can
// verify it is skipping over comment bodies when rewriting identifiers.
func Tokenize(path string, src []byte, lang Language) ([]Token, error) {
	l := newLexer(path, string(src), lang)

	var tokens []Token

	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}

		tokens = append(tokens, tok)

		if tok.Type == TokEOF {
			break
		}
	}

	return tokens, nil
}

func (l *lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.advance()
	}
}

func (l *lexer) next() (Token, error) {
	l.skipWhitespace()

	start := l.pos()

	switch {
	case l.ch == 0:
		return Token{Type: TokEOF, Span: position.Span{Start: start, End: start}}, nil

	case l.lang == VHDL && l.ch == '-' && l.peek() == '-':
		return l.scanLineComment(start), nil

	case l.lang == SystemVerilog && l.ch == '/' && l.peek() == '/':
		return l.scanLineComment(start), nil

	case l.lang == SystemVerilog && l.ch == '/' && l.peek() == '*':
		return l.scanBlockComment(start)

	case l.lang == VHDL && l.ch == '\\':
		return l.scanExtendedIdentifier(start)

	case l.ch == '"':
		return l.scanString(start)

	case l.lang == SystemVerilog && l.ch == '`':
		return l.scanDirective(start), nil

	case isIdentStart(l.ch):
		return l.scanIdentifier(start), nil

	case isDigit(l.ch):
		return l.scanNumber(start), nil

	default:
		return l.scanSymbol(start), nil
	}
}

func (l *lexer) span(start position.Position) position.Span {
	return position.Span{Start: start, End: l.pos()}
}

func (l *lexer) scanLineComment(start position.Position) Token {
	var sb strings.Builder

	for l.ch != '\n' && l.ch != 0 {
		sb.WriteByte(l.ch)
		l.advance()
	}

	lit := sb.String()

	return Token{Type: TokComment, Literal: lit, CanonicalLiteral: lit, Span: l.span(start)}
}

func (l *lexer) scanBlockComment(start position.Position) (Token, error) {
	var sb strings.Builder

	sb.WriteByte(l.ch)
	l.advance()
	sb.WriteByte(l.ch)
	l.advance()

	for {
		if l.ch == 0 {
			return Token{}, &LexError{File: l.filename, Line: start.Line, Col: start.Column, Kind: "unterminated block comment"}
		}

		if l.ch == '*' && l.peek() == '/' {
			sb.WriteByte(l.ch)
			l.advance()
			sb.WriteByte(l.ch)
			l.advance()

			break
		}

		sb.WriteByte(l.ch)
		l.advance()
	}

	lit := sb.String()

	return Token{Type: TokComment, Literal: lit, CanonicalLiteral: lit, Span: l.span(start)}, nil
}

// scanExtendedIdentifier scans a VHDL extended identifier, delimited by
// backslashes, with a doubled backslash ("\\") as an escaped literal
// backslash inside the name. The literal preserves delimiters; the
// canonical form strips them but keeps case, since extended identifiers are
// always case-preserving even in VHDL.
func (l *lexer) scanExtendedIdentifier(start position.Position) (Token, error) {
	var sb strings.Builder
	var body strings.Builder

	sb.WriteByte(l.ch) // opening backslash
	l.advance()

	for {
		if l.ch == 0 {
			return Token{}, &LexError{File: l.filename, Line: start.Line, Col: start.Column, Kind: "unterminated extended identifier"}
		}

		if l.ch == '\\' {
			if l.peek() == '\\' {
				sb.WriteByte(l.ch)
				l.advance()
				sb.WriteByte(l.ch)
				l.advance()
				body.WriteByte('\\')

				continue
			}

			sb.WriteByte(l.ch)
			l.advance()

			break
		}

		sb.WriteByte(l.ch)
		body.WriteByte(l.ch)
		l.advance()
	}

	return Token{
		Type:             TokExtendedIdentifier,
		Literal:          sb.String(),
		CanonicalLiteral: body.String(),
		Span:             l.span(start),
	}, nil
}

func (l *lexer) scanString(start position.Position) (Token, error) {
	var sb strings.Builder

	sb.WriteByte(l.ch)
	l.advance()

	for {
		if l.ch == 0 || l.ch == '\n' {
			return Token{}, &LexError{File: l.filename, Line: start.Line, Col: start.Column, Kind: "unterminated string literal"}
		}

		if l.ch == '"' {
			sb.WriteByte(l.ch)
			l.advance()

			if l.ch == '"' && l.lang == VHDL {
				// doubled quote is an escaped quote inside a VHDL string
				sb.WriteByte(l.ch)
				l.advance()

				continue
			}

			break
		}

		if l.ch == '\\' && l.lang == SystemVerilog {
			sb.WriteByte(l.ch)
			l.advance()

			if l.ch != 0 {
				sb.WriteByte(l.ch)
				l.advance()
			}

			continue
		}

		sb.WriteByte(l.ch)
		l.advance()
	}

	lit := sb.String()

	return Token{Type: TokString, Literal: lit, CanonicalLiteral: lit, Span: l.span(start)}, nil
}

func (l *lexer) scanDirective(start position.Position) Token {
	var sb strings.Builder

	sb.WriteByte(l.ch)
	l.advance()

	for isIdentPart(l.ch) {
		sb.WriteByte(l.ch)
		l.advance()
	}

	lit := sb.String()

	return Token{Type: TokDirective, Literal: lit, CanonicalLiteral: lit, Span: l.span(start)}
}

func (l *lexer) scanIdentifier(start position.Position) Token {
	var sb strings.Builder

	for isIdentPart(l.ch) {
		sb.WriteByte(l.ch)
		l.advance()
	}

	lit := sb.String()
	canon := lit

	if l.lang == VHDL {
		canon = strings.ToLower(lit)
	}

	return Token{Type: TokIdentifier, Literal: lit, CanonicalLiteral: canon, Span: l.span(start)}
}

func (l *lexer) scanNumber(start position.Position) Token {
	var sb strings.Builder

	for isDigit(l.ch) || l.ch == '_' || l.ch == '.' ||
		isIdentPart(l.ch) || l.ch == '#' || l.ch == '\'' {
		sb.WriteByte(l.ch)
		l.advance()
	}

	lit := sb.String()

	return Token{Type: TokNumber, Literal: lit, CanonicalLiteral: lit, Span: l.span(start)}
}

func (l *lexer) scanSymbol(start position.Position) Token {
	ch := l.ch
	l.advance()
	lit := string(ch)

	return Token{Type: TokSymbol, Literal: lit, CanonicalLiteral: lit, Span: l.span(start)}
}

func isIdentStart(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || ch == '_'
}

func isIdentPart(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_' || ch == '$'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// isKeyword reports whether tok is a reserved word in lang, using the
// appropriate case sensitivity.
func isKeyword(tok Token, lang Language) bool {
	if tok.Type != TokIdentifier {
		return false
	}

	if lang == VHDL {
		return vhdlKeywords[tok.CanonicalLiteral]
	}

	return verilogKeywords[tok.Literal]
}
