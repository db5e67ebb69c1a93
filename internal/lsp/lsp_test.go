package lsp

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

const testURI = "file:///game/player.emb"

// extractPos removes the '|' cursor marker and returns its LSP position.
func extractPos(t *testing.T, text string) (string, protocol.Position) {
	t.Helper()
	idx := strings.Index(text, "|")
	if idx < 0 {
		t.Fatalf("missing cursor marker")
	}
	before := text[:idx]
	line := strings.Count(before, "\n")
	col := idx - (strings.LastIndex(before, "\n") + 1)
	return before + text[idx+1:], protocol.Position{Line: uint32(line), Character: uint32(col)}
}

func labels(items []protocol.CompletionItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Label
	}
	return out
}

func indexOf(items []protocol.CompletionItem, label string) int {
	for i, it := range items {
		if it.Label == label {
			return i
		}
	}
	return -1
}

func TestDiagnostics(t *testing.T) {
	store := NewStore()
	doc := store.Set(testURI, "mut x = 1\nprint (x\nmut = 2")
	if len(doc.Diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d: %+v", len(doc.Diagnostics), doc.Diagnostics)
	}
	first := doc.Diagnostics[0]
	if first.Message != "expected ')' after expression" || first.Range.Start.Line != 2 || first.Range.Start.Character != 0 {
		t.Fatalf("unexpected first diagnostic %+v", first)
	}
	if *first.Source != "ember" || *first.Severity != protocol.DiagnosticSeverityError {
		t.Fatalf("unexpected source or severity")
	}
	if doc.Diagnostics[1].Message != "expected variable name" {
		t.Fatalf("unexpected second diagnostic %q", doc.Diagnostics[1].Message)
	}

	doc = store.Set(testURI, "mut x = 1\nprint x")
	if len(doc.Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", doc.Diagnostics)
	}

	doc = store.Set("file:///game/notes.txt", "mut = ")
	if len(doc.Diagnostics) != 0 || len(doc.Index.Symbols) != 0 {
		t.Fatalf("non-script files must not be analyzed")
	}
}

func TestDiagnosticRangeUTF16(t *testing.T) {
	ds := ToLspDiagnostics("print \"é\" +", Diagnostics("print \"é\" +"))
	if len(ds) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(ds))
	}
	// end of input is reported at the column of the last byte
	if ds[0].Range.Start.Line != 0 || ds[0].Range.Start.Character != 10 {
		t.Fatalf("unexpected range %+v", ds[0].Range)
	}
	if ds[0].Range.End.Character != 11 {
		t.Fatalf("expected a one-unit range, got %+v", ds[0].Range)
	}
}

func TestDocumentSymbols(t *testing.T) {
	text := `mut speed = 2
mut state = {hp: 3, pos: {x: 0}}
fn update(dt2, extra) {
  mut local = 1
  if (true) { mut inner = 2 }
}
fn init() {}
mut speed = 3
`
	ix := BuildIndex(testURI, text)
	var got []string
	for _, s := range ix.Symbols {
		got = append(got, s.Name)
	}
	if strings.Join(got, ",") != "speed,state,update,init,speed" {
		t.Fatalf("unexpected symbols %v", got)
	}

	update := ix.Symbols[2]
	if update.Kind != protocol.SymbolKindFunction || *update.Detail != "(dt2, extra)" {
		t.Fatalf("unexpected function symbol %+v", update)
	}
	if update.Range.Start.Line != 2 || update.Range.End.Line != 5 || update.Range.End.Character != 1 {
		t.Fatalf("unexpected function range %+v", update.Range)
	}
	if update.SelectionRange.Start.Character != 3 || update.SelectionRange.End.Character != 9 {
		t.Fatalf("unexpected selection range %+v", update.SelectionRange)
	}

	if loc := ix.Defs["speed"]; loc.Range.Start.Line != 0 {
		t.Fatalf("first declaration should win, got line %d", loc.Range.Start.Line)
	}
	if _, ok := ix.Defs["local"]; ok {
		t.Fatalf("locals must not be indexed")
	}
}

func TestSymbolsSurviveBrokenSource(t *testing.T) {
	ix := BuildIndex(testURI, "fn broken(a {\nmut g = 1")
	if len(ix.Symbols) != 1 || ix.Symbols[0].Name != "broken" {
		t.Fatalf("unexpected symbols %+v", ix.Symbols)
	}
	ix = BuildIndex(testURI, "fn")
	if len(ix.Symbols) != 0 {
		t.Fatalf("expected no symbols")
	}
}

func TestDefinition(t *testing.T) {
	text, pos := extractPos(t, "fn jump(h) { return h }\nmut y = ju|mp(2)")
	doc := NewStore().Set(testURI, text)
	loc, ok := Definition(doc, pos)
	if !ok {
		t.Fatalf("expected a definition")
	}
	if loc.URI != testURI || loc.Range.Start.Line != 0 || loc.Range.Start.Character != 3 {
		t.Fatalf("unexpected location %+v", loc)
	}

	text, pos = extractPos(t, "fn f(h) { return h| }")
	if _, ok := Definition(NewStore().Set(testURI, text), pos); ok {
		t.Fatalf("parameters have no top-level definition")
	}
}

func TestCompletion(t *testing.T) {
	text, pos := extractPos(t, "mut speed = 1\nfn move(dx) {}\n|")
	items := CompletionItems(NewStore().Set(testURI, text), pos)

	iSpeed, iMove, iSelf, iMut := indexOf(items, "speed"), indexOf(items, "move"), indexOf(items, "self"), indexOf(items, "mut")
	if iSpeed == -1 || iMove == -1 || iSelf == -1 || iMut == -1 {
		t.Fatalf("missing completions in %v", labels(items))
	}
	if !(iSpeed < iMove && iMove < iSelf && iSelf < iMut) {
		t.Fatalf("unexpected ordering %v", labels(items))
	}
	if *items[iMove].Detail != "move(dx)" || *items[iMove].Kind != protocol.CompletionItemKindFunction {
		t.Fatalf("unexpected function item %+v", items[iMove])
	}
	if *items[iMut].Kind != protocol.CompletionItemKindKeyword {
		t.Fatalf("expected keyword kind for mut")
	}
}

func TestCompletionAfterDot(t *testing.T) {
	text, pos := extractPos(t, "mut m = {}\nm.ha|")
	items := CompletionItems(NewStore().Set(testURI, text), pos)
	if strings.Join(labels(items), ",") != "get,has,insert,remove" {
		t.Fatalf("unexpected method completions %v", labels(items))
	}
}

func TestURI(t *testing.T) {
	if got := UriToPath("file:///tmp/a%20b.emb"); got != "/tmp/a b.emb" {
		t.Fatalf("unexpected path %q", got)
	}
	if UriToPath("untitled:1") != "" {
		t.Fatalf("expected empty path for non-file uri")
	}
	if PathToURI("/tmp/x.emb") != "file:///tmp/x.emb" {
		t.Fatalf("unexpected uri")
	}
	if !IsScript("file:///A.EMB") || IsScript("file:///a.embc") {
		t.Fatalf("IsScript is wrong")
	}
}
