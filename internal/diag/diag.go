package diag

import (
	"fmt"
	"sort"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

type Range struct {
	Line   int // 1-based
	Col    int // 1-based
	Length int // best-effort; can be 1 if unknown
}

type Diagnostic struct {
	Code     string
	Message  string
	Severity Severity
	Range    Range
	// Lexeme is the offending source text, or "<end>" at end of input.
	Lexeme string
}

func (d Diagnostic) Format(path string) string {
	msg := d.Message
	if d.Lexeme != "" {
		msg = fmt.Sprintf("%s (at '%s')", msg, d.Lexeme)
	}
	if d.Code != "" {
		return fmt.Sprintf("%s:%d:%d: %s %s: %s", path, d.Range.Line, d.Range.Col, d.Severity.String(), d.Code, msg)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", path, d.Range.Line, d.Range.Col, d.Severity.String(), msg)
}

// Sort orders diagnostics by position, keeping the original order for ties.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Range.Line != ds[j].Range.Line {
			return ds[i].Range.Line < ds[j].Range.Line
		}
		return ds[i].Range.Col < ds[j].Range.Col
	})
}
