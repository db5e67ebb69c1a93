package lsp

import (
	"sort"

	"ember/internal/token"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Globals the engine binds for every entity.
var hostGlobals = []string{"self", "time", "dt", "input"}

var mapMethods = []struct {
	name   string
	detail string
}{
	{"get", "get(key)"},
	{"has", "has(key)"},
	{"insert", "insert(key, value)"},
	{"remove", "remove(key)"},
}

// CompletionItems offers map methods after a dot and otherwise the
// script's own declarations, the engine globals and every keyword.
func CompletionItems(doc *Document, pos protocol.Position) []protocol.CompletionItem {
	p, ok := positionToByte(doc.Text, pos)
	if !ok {
		return nil
	}
	line := splitLines(doc.Text)[p.Line-1]

	if afterDot(line, p.Col) {
		out := make([]protocol.CompletionItem, 0, len(mapMethods))
		for _, m := range mapMethods {
			out = append(out, protocol.CompletionItem{
				Label:  m.name,
				Kind:   completionKind(protocol.CompletionItemKindMethod),
				Detail: ptrString(m.detail),
			})
		}
		return out
	}

	seen := map[string]bool{}
	var out []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if seen[label] {
			return
		}
		seen[label] = true
		item := protocol.CompletionItem{Label: label, Kind: completionKind(kind)}
		if detail != "" {
			item.Detail = ptrString(detail)
		}
		out = append(out, item)
	}

	for _, sym := range doc.Index.Symbols {
		kind := protocol.CompletionItemKindVariable
		detail := ""
		if sym.Kind == protocol.SymbolKindFunction {
			kind = protocol.CompletionItemKindFunction
			if sym.Detail != nil {
				detail = sym.Name + *sym.Detail
			}
		}
		add(sym.Name, kind, detail)
	}
	for _, g := range hostGlobals {
		add(g, protocol.CompletionItemKindVariable, "engine global")
	}
	keywords := token.Keywords()
	sort.Strings(keywords)
	for _, kw := range keywords {
		add(kw, protocol.CompletionItemKindKeyword, "")
	}
	return out
}

// afterDot reports whether the identifier being typed at byte column col
// follows a '.'.
func afterDot(line string, col int) bool {
	i := min(col-1, len(line)) - 1
	for i >= 0 && isIdentByte(line[i]) {
		i--
	}
	return i >= 0 && line[i] == '.'
}

func isIdentByte(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}

func completionKind(k protocol.CompletionItemKind) *protocol.CompletionItemKind {
	return &k
}
