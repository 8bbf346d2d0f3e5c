package dst

import (
	"fmt"

	"github.com/chaseruskin/orbit/internal/hdl"
)

// RewriteSource applies a set of identifier substitutions to one HDL
// file's bytes: the rewrite is byte-accurate, touches only
// identifier and extended-identifier tokens whose canonical form matches a
// target (so comments and string literals, which lex to their own token
// types, are never touched), is case-preserving for (System)Verilog and
// case-normalized for VHDL non-extended identifiers (VHDL's own
// canonical-folding already lowercases the match; the replacement is
// written out exactly as given in targets). targets maps an old canonical
// identifier to its I_<tag> replacement. Matching spans are spliced in
// source order into a fresh output buffer, so every token's original
// offsets stay valid. It reports whether any replacement was made.
func RewriteSource(path string, src []byte, lang hdl.Language, targets map[string]string) ([]byte, bool, error) {
	toks, err := hdl.Tokenize(path, src, lang)
	if err != nil {
		return nil, false, fmt.Errorf("dst: tokenizing %s: %w", path, err)
	}

	type edit struct {
		start, end int
		text       string
	}

	var edits []edit

	for _, t := range toks {
		if t.Type != hdl.TokIdentifier && t.Type != hdl.TokExtendedIdentifier {
			continue
		}

		repl, ok := targets[t.CanonicalLiteral]
		if !ok {
			continue
		}

		edits = append(edits, edit{start: t.Span.Start.Offset, end: t.Span.End.Offset, text: repl})
	}

	if len(edits) == 0 {
		return src, false, nil
	}

	out := make([]byte, 0, len(src))
	cursor := 0

	for _, e := range edits {
		out = append(out, src[cursor:e.start]...)
		out = append(out, e.text...)
		cursor = e.end
	}

	out = append(out, src[cursor:]...)

	return out, true, nil
}
