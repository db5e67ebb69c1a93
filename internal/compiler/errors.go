package compiler

import (
	"fmt"
	"strings"

	"ember/internal/diag"
)

// Error is a single compile error. Lexeme is the offending token text, or
// "<end>" when the error is at end of input.
type Error struct {
	Line    int
	Col     int
	Message string
	Lexeme  string
}

func (e *Error) Error() string {
	if e.Lexeme == "" {
		return fmt.Sprintf("[line %d] error: %s", e.Line, e.Message)
	}
	if e.Lexeme == endLexeme {
		return fmt.Sprintf("[line %d] error at end: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("[line %d] error at '%s': %s", e.Line, e.Lexeme, e.Message)
}

// Diagnostic converts e for editors and the CLI.
func (e *Error) Diagnostic() diag.Diagnostic {
	length := len(e.Lexeme)
	if e.Lexeme == endLexeme || length == 0 {
		length = 1
	}
	return diag.Diagnostic{
		Message:  e.Message,
		Severity: diag.SeverityError,
		Range:    diag.Range{Line: e.Line, Col: e.Col, Length: length},
		Lexeme:   e.Lexeme,
	}
}

// ErrorList is every error recorded during one compile pass, in source
// order.
type ErrorList []*Error

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

func (l ErrorList) Diagnostics() []diag.Diagnostic {
	out := make([]diag.Diagnostic, len(l))
	for i, e := range l {
		out[i] = e.Diagnostic()
	}
	return out
}
