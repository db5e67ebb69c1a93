package lsp

import (
	"strings"

	"ember/internal/lexer"
	"ember/internal/token"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// DocIndex holds the top-level declarations of one script.
type DocIndex struct {
	Defs    map[string]protocol.Location
	Symbols []protocol.DocumentSymbol

	toks []token.Token
}

// BuildIndex scans text for top-level fn and mut declarations. It works on
// tokens alone so it still produces symbols for scripts that fail to
// compile.
func BuildIndex(uri, text string) *DocIndex {
	ix := &DocIndex{
		Defs:    map[string]protocol.Location{},
		Symbols: []protocol.DocumentSymbol{},
		toks:    lexer.Tokenize(text),
	}
	lines := splitLines(text)
	toks := ix.toks

	add := func(name token.Token, kind protocol.SymbolKind, full protocol.Range, detail string) {
		sel := tokenRange(lines, name.Line, name.Col, len(name.Literal))
		if _, dup := ix.Defs[name.Literal]; !dup {
			ix.Defs[name.Literal] = protocol.Location{URI: protocol.DocumentUri(uri), Range: sel}
		}
		sym := protocol.DocumentSymbol{
			Name:           name.Literal,
			Kind:           kind,
			Range:          full,
			SelectionRange: sel,
		}
		if detail != "" {
			sym.Detail = ptrString(detail)
		}
		ix.Symbols = append(ix.Symbols, sym)
	}

	depth := 0
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		switch tok.Type {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			if depth > 0 {
				depth--
			}
		case token.FN:
			if depth != 0 || toks[i+1].Type != token.IDENT {
				continue
			}
			params, end := scanFunction(toks, i+2)
			last := toks[end]
			full := tokenRange(lines, tok.Line, tok.Col, 2)
			full.End = tokenRange(lines, last.Line, last.Col, len(last.Literal)).End
			add(toks[i+1], protocol.SymbolKindFunction, full, "("+strings.Join(params, ", ")+")")
			i = end
		case token.MUT:
			if depth != 0 || toks[i+1].Type != token.IDENT {
				continue
			}
			name := toks[i+1]
			add(name, protocol.SymbolKindVariable, tokenRange(lines, name.Line, name.Col, len(name.Literal)), "")
		}
	}
	return ix
}

// scanFunction reads a parameter list starting at toks[i] and skips the
// body that follows it. It returns the parameter names and the index of
// the last token of the declaration.
func scanFunction(toks []token.Token, i int) ([]string, int) {
	var params []string
	if toks[i].Type != token.LPAREN {
		return nil, i - 1
	}
	for i++; toks[i].Type != token.RPAREN; i++ {
		if toks[i].Type == token.EOF {
			return params, i - 1
		}
		if toks[i].Type == token.IDENT {
			params = append(params, toks[i].Literal)
		}
	}
	if toks[i+1].Type != token.LBRACE {
		return params, i
	}
	depth := 0
	for i++; toks[i].Type != token.EOF; i++ {
		switch toks[i].Type {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
			if depth == 0 {
				return params, i
			}
		}
	}
	return params, i - 1
}

// identAt returns the identifier token under or just before p.
func (ix *DocIndex) identAt(p Pos) (token.Token, bool) {
	for _, tok := range ix.toks {
		if tok.Line > p.Line {
			break
		}
		if tok.Type != token.IDENT || tok.Line != p.Line {
			continue
		}
		if tok.Col <= p.Col && p.Col <= tok.Col+len(tok.Literal) {
			return tok, true
		}
	}
	return token.Token{}, false
}

// Definition resolves the identifier at pos to its top-level declaration.
func Definition(doc *Document, pos protocol.Position) (protocol.Location, bool) {
	p, ok := positionToByte(doc.Text, pos)
	if !ok {
		return protocol.Location{}, false
	}
	tok, ok := doc.Index.identAt(p)
	if !ok {
		return protocol.Location{}, false
	}
	loc, ok := doc.Index.Defs[tok.Literal]
	return loc, ok
}
