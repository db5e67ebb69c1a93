package spectest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"ember/internal/compiler"
	"ember/internal/object"
	"ember/internal/objfile"
	"ember/internal/vm"
)

// Mode selects how a script reaches the VM.
type Mode string

const (
	ModeSource Mode = "source" // compile and run
	ModeCache  Mode = "cache"  // compile, round-trip through objfile, run
)

var Modes = []Mode{ModeSource, ModeCache}

type Options struct {
	Mode      Mode
	Source    string
	MaxMemory int64
}

type Expectation struct {
	Stdout      string
	Status      vm.InterpretResult
	ErrContains string
}

type Result struct {
	Stdout string
	Status vm.InterpretResult
	ErrMsg string
	Line   int
}

// Execute compiles and runs opts.Source. The error is for failures of
// the harness itself; script errors are reported in the Result.
func Execute(opts Options) (Result, error) {
	in := object.NewInterner()
	fn, err := compiler.Compile(opts.Source, compiler.WithInterner(in))
	if err != nil {
		return Result{Status: vm.InterpretCompileError, ErrMsg: err.Error()}, nil
	}

	switch opts.Mode {
	case ModeSource, "":
	case ModeCache:
		data, err := objfile.Marshal(fn)
		if err != nil {
			return Result{}, fmt.Errorf("objfile marshal failed: %w", err)
		}
		in = object.NewInterner()
		fn, err = objfile.Unmarshal(data, in)
		if err != nil {
			return Result{}, fmt.Errorf("objfile unmarshal failed: %w", err)
		}
	default:
		return Result{}, fmt.Errorf("unknown mode: %q", opts.Mode)
	}

	var out bytes.Buffer
	m := vm.New(vm.WithInterner(in), vm.WithOutput(&out))
	if opts.MaxMemory > 0 {
		m.SetMaxMemory(opts.MaxMemory)
	}
	status, err := m.Run(fn)

	res := Result{Stdout: out.String(), Status: status}
	if err != nil {
		res.ErrMsg = err.Error()
		var rt *vm.RuntimeError
		if errors.As(err, &rt) {
			res.ErrMsg = rt.Message
			res.Line = rt.Line
		}
	}
	return res, nil
}

func Run(t *testing.T, opts Options) Result {
	t.Helper()
	res, err := Execute(opts)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

// Check reports whether res meets exp, and why not.
func Check(res Result, exp Expectation) (bool, string) {
	ok, reason := MatchStdout(res.Stdout, StdoutExpectation{
		Mode:  StdoutExact,
		Value: exp.Stdout,
	})
	if !ok {
		return false, reason
	}
	if res.Status != exp.Status {
		return false, fmt.Sprintf("status mismatch: expected %s, got %s (%s)", exp.Status, res.Status, res.ErrMsg)
	}
	if exp.ErrContains != "" && !strings.Contains(res.ErrMsg, exp.ErrContains) {
		return false, fmt.Sprintf("error message mismatch: expected to contain %q, got %q", exp.ErrContains, res.ErrMsg)
	}
	return true, ""
}

func Assert(t *testing.T, res Result, exp Expectation) {
	t.Helper()
	if ok, reason := Check(res, exp); !ok {
		t.Fatal(reason)
	}
}

// RunAll checks exp against every mode.
func RunAll(t *testing.T, opts Options, exp Expectation) {
	t.Helper()
	for _, mode := range Modes {
		opts.Mode = mode
		t.Run(string(mode), func(t *testing.T) {
			Assert(t, Run(t, opts), exp)
		})
	}
}
