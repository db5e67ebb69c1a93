package spectest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"ember/internal/config"
	"ember/internal/vm"
)

// Golden scripts carry their expectations as comments:
//
//	; expect: <one line of output>
//	; runtime-error: <message fragment>
//	; compile-error: <message fragment>
const (
	expectPrefix       = "; expect:"
	runtimeErrorPrefix = "; runtime-error:"
	compileErrorPrefix = "; compile-error:"
)

// ParseExpectations reads the annotations out of a golden script.
func ParseExpectations(src string) Expectation {
	var exp Expectation
	var out strings.Builder
	for _, line := range strings.Split(NormalizeNewlines(src), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, expectPrefix):
			out.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, expectPrefix), " "))
			out.WriteByte('\n')
		case strings.HasPrefix(line, runtimeErrorPrefix):
			exp.Status = vm.InterpretRuntimeError
			exp.ErrContains = strings.TrimSpace(strings.TrimPrefix(line, runtimeErrorPrefix))
		case strings.HasPrefix(line, compileErrorPrefix):
			exp.Status = vm.InterpretCompileError
			exp.ErrContains = strings.TrimSpace(strings.TrimPrefix(line, compileErrorPrefix))
		}
	}
	exp.Stdout = out.String()
	return exp
}

// RunDir runs every *.emb file under dir as a subtest.
func RunDir(t *testing.T, dir string) {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join(dir, "*"+config.ScriptExt))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(paths) == 0 {
		t.Fatalf("no scripts in %s", dir)
	}
	sort.Strings(paths)

	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		src := string(b)
		name := strings.TrimSuffix(filepath.Base(path), config.ScriptExt)
		t.Run(name, func(t *testing.T) {
			RunAll(t, Options{Source: src}, ParseExpectations(src))
		})
	}
}
