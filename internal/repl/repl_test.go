package repl

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, input string) string {
	t.Helper()
	var out bytes.Buffer
	Start(strings.NewReader(input), &out, Options{})
	return out.String()
}

func TestGlobalsPersistBetweenEntries(t *testing.T) {
	got := run(t, "mut n = 2\nfn twice(x) { return x * 2 }\nprint twice(n)\n")
	if got != "4\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestMultiLineEntry(t *testing.T) {
	input := "fn add(a,\n  b) {\n  return a + b\n}\nprint add(1, 2)\nprint \"x\n{y\"\n"
	got := run(t, input)
	if got != "3\nx\n{y\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestErrorsDoNotEndSession(t *testing.T) {
	got := run(t, "print\nprint 1 + true\nprint 5\n")
	want := "compile error: [line 1] error at end: expected expression\n" +
		"[line 1] runtime error: operands must be two numbers or two strings, got number and boolean\n" +
		"  [line 1] in script\n" +
		"5\n"
	if got != want {
		t.Fatalf("unexpected output.\nwant=%q\ngot =%q", want, got)
	}
}

func TestErrorAtEndOfMultiLineEntry(t *testing.T) {
	got := run(t, "print \"a\nb\" +\nprint 1\n")
	want := "compile error: [line 2] error at end: expected expression\n1\n"
	if got != want {
		t.Fatalf("unexpected output.\nwant=%q\ngot =%q", want, got)
	}
}

func TestExit(t *testing.T) {
	if got := run(t, "print 1\nexit\nprint 2\n"); got != "1\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestUpdateBalance(t *testing.T) {
	tests := []struct {
		lines    []string
		complete bool
	}{
		{[]string{"print 1"}, true},
		{[]string{"fn f() {"}, false},
		{[]string{"fn f() {", "}"}, true},
		{[]string{"print (1 +"}, false},
		{[]string{"print \"{\""}, true},
		{[]string{"print '\\'{'"}, true},
		{[]string{"print 1 ; {"}, true},
		{[]string{"/* {", "still */ print 1"}, true},
		{[]string{"/* open"}, false},
		{[]string{"print \"a", "b\""}, true},
	}
	for _, tt := range tests {
		var b balance
		for _, l := range tt.lines {
			b = updateBalance(l, b)
		}
		if b.complete() != tt.complete {
			t.Errorf("%q: expected complete=%v, got %+v", tt.lines, tt.complete, b)
		}
	}
}
