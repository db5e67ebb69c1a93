// Package repl is an interactive prompt over one persistent VM, so
// globals and functions survive from one entry to the next.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"ember/internal/compiler"
	"ember/internal/vm"

	"golang.org/x/term"
)

const (
	prompt1 = "ember> "
	prompt2 = "...... "
)

type Options struct {
	// MaxMemory caps the session heap in bytes. Zero is unlimited.
	MaxMemory int64

	// Trace receives an instruction trace when set.
	Trace io.Writer
}

// Start reads entries from in until EOF or exit. Prompts and the banner
// are only written when in is a terminal.
func Start(in io.Reader, out io.Writer, opts Options) {
	scanner := bufio.NewScanner(in)
	interactive := isTerminal(in)

	m := vm.New(vm.WithOutput(out))
	if opts.MaxMemory > 0 {
		m.SetMaxMemory(opts.MaxMemory)
	}
	if opts.Trace != nil {
		m.SetTrace(opts.Trace)
	}
	defer m.Reset()

	if interactive {
		fmt.Fprint(out, "ember REPL (Ctrl+D to exit)\n")
	}

	var buf strings.Builder
	var bal balance

	for {
		if interactive {
			if buf.Len() == 0 {
				fmt.Fprint(out, prompt1)
			} else {
				fmt.Fprint(out, prompt2)
			}
		}

		if !scanner.Scan() {
			if interactive {
				fmt.Fprint(out, "\n")
			}
			return
		}

		line := scanner.Text()
		trim := strings.TrimSpace(line)

		if buf.Len() == 0 && (trim == "exit" || trim == "quit") {
			return
		}

		buf.WriteString(line)
		buf.WriteString("\n")

		bal = updateBalance(line, bal)
		if !bal.complete() {
			continue
		}

		// end-of-input errors belong on the entry's last line
		src := strings.TrimSuffix(buf.String(), "\n")
		buf.Reset()
		bal = balance{}

		if _, err := m.Interpret(src); err != nil {
			printError(out, err)
		}
	}
}

func printError(out io.Writer, err error) {
	var list compiler.ErrorList
	if errors.As(err, &list) {
		for _, e := range list {
			fmt.Fprintf(out, "compile error: %s\n", e)
		}
		return
	}
	fmt.Fprintln(out, err)
	var rt *vm.RuntimeError
	if errors.As(err, &rt) {
		for _, line := range rt.Trace {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// balance tracks open delimiters across the lines of one entry.
type balance struct {
	braces         int
	parens         int
	quote          byte // open string delimiter, 0 outside strings
	escaped        bool
	inBlockComment bool
}

func (b balance) complete() bool {
	return b.braces == 0 && b.parens == 0 && b.quote == 0 && !b.inBlockComment
}

func updateBalance(line string, b balance) balance {
	for i := 0; i < len(line); i++ {
		ch := line[i]

		if b.inBlockComment {
			if ch == '*' && i+1 < len(line) && line[i+1] == '/' {
				b.inBlockComment = false
				i++
			}
			continue
		}

		if b.quote != 0 {
			if b.escaped {
				b.escaped = false
				continue
			}
			if ch == '\\' {
				b.escaped = true
				continue
			}
			if ch == b.quote {
				b.quote = 0
			}
			continue
		}

		if ch == ';' {
			break
		}
		if ch == '/' && i+1 < len(line) && line[i+1] == '*' {
			b.inBlockComment = true
			i++
			continue
		}

		switch ch {
		case '"', '\'':
			b.quote = ch
		case '{':
			b.braces++
		case '}':
			if b.braces > 0 {
				b.braces--
			}
		case '(':
			b.parens++
		case ')':
			if b.parens > 0 {
				b.parens--
			}
		}
	}
	return b
}
