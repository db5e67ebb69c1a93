package lsp

import (
	"errors"

	"ember/internal/compiler"
	"ember/internal/diag"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Diagnostics compiles text and returns every compile error as a
// diagnostic. A clean compile returns an empty slice.
func Diagnostics(text string) []diag.Diagnostic {
	_, err := compiler.Compile(text)
	var list compiler.ErrorList
	if !errors.As(err, &list) {
		return []diag.Diagnostic{}
	}
	ds := list.Diagnostics()
	diag.Sort(ds)
	return ds
}

// ToLspDiagnostics converts byte columns in text to UTF-16 ranges.
func ToLspDiagnostics(text string, ds []diag.Diagnostic) []protocol.Diagnostic {
	lines := splitLines(text)
	out := make([]protocol.Diagnostic, 0, len(ds))
	for _, d := range ds {
		rng := protocol.Range{
			Start: protocol.Position{Line: uint32(max(0, d.Range.Line-1))},
		}
		if d.Range.Line > 0 && d.Range.Line <= len(lines) {
			lineText := lines[d.Range.Line-1]
			rng.Start.Character = byteColToUTF16(lineText, d.Range.Col)
			endCol := min(d.Range.Col+max(1, d.Range.Length), len(lineText)+1)
			rng.End = protocol.Position{Line: rng.Start.Line, Character: byteColToUTF16(lineText, endCol)}
		}
		if rng.End.Character <= rng.Start.Character {
			rng.End = protocol.Position{Line: rng.Start.Line, Character: rng.Start.Character + 1}
		}

		severity := protocol.DiagnosticSeverityError
		switch d.Severity {
		case diag.SeverityWarning:
			severity = protocol.DiagnosticSeverityWarning
		case diag.SeverityInfo:
			severity = protocol.DiagnosticSeverityInformation
		}

		pd := protocol.Diagnostic{
			Range:    rng,
			Severity: &severity,
			Source:   ptrString("ember"),
			Message:  d.Message,
		}
		if d.Code != "" {
			code := protocol.IntegerOrString{Value: d.Code}
			pd.Code = &code
		}
		out = append(out, pd)
	}
	return out
}

func ptrString(s string) *string { return &s }
