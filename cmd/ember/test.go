package main

import (
	"fmt"
	"os"

	"ember/internal/spectest"
)

// runTest runs annotated scripts once per execution mode and reports the
// ones whose output or status differs from their annotations.
func (c *cli) runTest(args []string) int {
	targets := args
	if len(targets) == 0 {
		targets = []string{"."}
	}
	files, err := collectScripts(targets)
	if err != nil {
		fmt.Fprintln(c.stderr, "test error:", err)
		return exitFailure
	}
	if len(files) == 0 {
		fmt.Fprintln(c.stdout, "no tests found")
		return exitOK
	}

	passed, failed := 0, 0
	for _, path := range files {
		ok, reason := runTestFile(path, c.maxMemory)
		if ok {
			passed++
			continue
		}
		failed++
		fmt.Fprintf(c.stdout, "FAIL %s: %s\n", path, reason)
	}
	fmt.Fprintf(c.stdout, "passed %d, failed %d\n", passed, failed)
	if failed > 0 {
		return exitFailure
	}
	return exitOK
}

func runTestFile(path string, maxMemory int64) (bool, string) {
	b, err := os.ReadFile(path)
	if err != nil {
		return false, err.Error()
	}
	src := string(b)
	exp := spectest.ParseExpectations(src)
	for _, mode := range spectest.Modes {
		res, err := spectest.Execute(spectest.Options{Mode: mode, Source: src, MaxMemory: maxMemory})
		if err != nil {
			return false, err.Error()
		}
		if ok, reason := spectest.Check(res, exp); !ok {
			return false, fmt.Sprintf("[%s] %s", mode, reason)
		}
	}
	return true, ""
}
