package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ember/internal/compiler"
	"ember/internal/objfile"
)

func newTestCLI(stdin string) (*cli, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &cli{
		stdin:  strings.NewReader(stdin),
		stdout: &stdout,
		stderr: &stderr,
	}, &stdout, &stderr
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	c, stdout, stderr := newTestCLI("")
	code := c.main(args)
	return code, stdout.String(), stderr.String()
}

func TestRunScript(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hello.emb", "mut who = \"world\"\nprint \"hello \" + who\nprint 1 + 2")

	code, out, errOut := runCLI(t, "run", path)
	if code != exitOK || out != "hello world\n3\n" {
		t.Fatalf("unexpected result %d %q %q", code, out, errOut)
	}

	code, out, _ = runCLI(t, path)
	if code != exitOK || out != "hello world\n3\n" {
		t.Fatalf("shorthand run failed: %d %q", code, out)
	}
}

func TestRunCompileError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.emb", "mut a = 1\nprint")
	code, out, errOut := runCLI(t, "run", path)
	if code != exitCompileError {
		t.Fatalf("expected exit %d, got %d", exitCompileError, code)
	}
	if out != "" || !strings.Contains(errOut, "bad.emb:2:5: error: expected expression (at '<end>')") {
		t.Fatalf("unexpected output %q / %q", out, errOut)
	}
}

func TestRunRuntimeError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "crash.emb", "print 1\nfn f() {\n  return x\n}\nf()")
	code, out, errOut := runCLI(t, "run", path)
	if code != exitRuntimeError {
		t.Fatalf("expected exit %d, got %d", exitRuntimeError, code)
	}
	if out != "1\n" {
		t.Fatalf("output before the error must be kept, got %q", out)
	}
	want := "[line 3] runtime error: undefined variable 'x'\n[line 3] in f()\n[line 5] in script\n"
	if errOut != want {
		t.Fatalf("unexpected stderr.\nwant=%q\ngot =%q", want, errOut)
	}
}

func TestBuildAndRunCache(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "game.emb", "fn sq(n) { return n * n }\nmut m = {k: sq(4)}\nprint m.k")

	code, _, errOut := runCLI(t, "build", src)
	if code != exitOK {
		t.Fatalf("build failed: %s", errOut)
	}
	cache := filepath.Join(dir, "game.embc")
	if _, err := os.Stat(cache); err != nil {
		t.Fatalf("expected %s: %v", cache, err)
	}

	code, out, errOut := runCLI(t, "run", cache)
	if code != exitOK || out != "16\n" {
		t.Fatalf("cached run failed: %d %q %q", code, out, errOut)
	}

	other := filepath.Join(dir, "out", "x.embc")
	if err := os.MkdirAll(filepath.Dir(other), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if code, _, errOut := runCLI(t, "build", "-o", other, src); code != exitOK {
		t.Fatalf("build -o failed: %s", errOut)
	}
	if code, out, _ := runCLI(t, other); code != exitOK || out != "16\n" {
		t.Fatalf("shorthand cached run failed: %d %q", code, out)
	}
}

func TestRunCorruptCache(t *testing.T) {
	fn, err := compiler.Compile("print 1")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	fn.Chunk.Code[1] = 200
	cache := filepath.Join(t.TempDir(), "bad.embc")
	if err := objfile.WriteFile(cache, fn); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	code, out, errOut := runCLI(t, "run", cache)
	if code != exitFailure || out != "" {
		t.Fatalf("unexpected result %d %q %q", code, out, errOut)
	}
	if !strings.Contains(errOut, "load error:") || !strings.Contains(errOut, "constant 200 outside a pool of 1") {
		t.Fatalf("unexpected stderr %q", errOut)
	}
}

func TestTokensAndDis(t *testing.T) {
	path := writeFile(t, t.TempDir(), "t.emb", "print 1")

	code, out, _ := runCLI(t, "-tokens", "run", path)
	if code != exitOK || !strings.Contains(out, "PRINT") || !strings.Contains(out, "EOF") {
		t.Fatalf("unexpected tokens output %q", out)
	}

	code, out, _ = runCLI(t, "-dis", "run", path)
	if code != exitOK || !strings.Contains(out, "OpPrint") || !strings.Contains(out, "OpReturn") {
		t.Fatalf("unexpected disassembly %q", out)
	}
}

func TestMaxMemory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ember.toml", "[project]\nentry = \"main.emb\"\n\n[runtime]\nmax_memory = 16\n")
	writeFile(t, dir, "main.emb", "mut m = {a: 1}\nprint m.a")

	code, _, errOut := runCLI(t, "run", dir)
	if code != exitRuntimeError || !strings.Contains(errOut, "max memory exceeded (16 bytes)") {
		t.Fatalf("expected memory error, got %d %q", code, errOut)
	}

	code, out, errOut := runCLI(t, "-max-memory", "4096", "run", dir)
	if code != exitOK || out != "1\n" {
		t.Fatalf("flag should override the manifest: %d %q %q", code, out, errOut)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.emb", "print 1")
	writeFile(t, dir, "sub/bad.emb", "mut = 1\nprint (")
	writeFile(t, dir, "notes.txt", "mut =")

	code, _, errOut := runCLI(t, "check", dir)
	if code != exitCompileError {
		t.Fatalf("expected exit %d, got %d", exitCompileError, code)
	}
	if strings.Count(errOut, "bad.emb:") != 2 || strings.Contains(errOut, "good.emb") || strings.Contains(errOut, "notes.txt") {
		t.Fatalf("unexpected diagnostics %q", errOut)
	}

	if code, _, errOut := runCLI(t, "check", filepath.Join(dir, "good.emb")); code != exitOK {
		t.Fatalf("good file failed: %s", errOut)
	}
}

func TestTestCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pass.emb", "print 1 + 1\n; expect: 2\n")
	writeFile(t, dir, "err.emb", "print {}.k\n; runtime-error: undefined key 'k'\n")
	writeFile(t, dir, "fail.emb", "print 3\n; expect: 4\n")

	code, out, _ := runCLI(t, "test", dir)
	if code != exitFailure {
		t.Fatalf("expected failure exit, got %d", code)
	}
	if !strings.Contains(out, "FAIL "+filepath.Join(dir, "fail.emb")) || !strings.Contains(out, "passed 2, failed 1") {
		t.Fatalf("unexpected report %q", out)
	}
}

func TestInitThenRun(t *testing.T) {
	dir := t.TempDir()
	if code, _, errOut := runCLI(t, "init", "-dir", dir, "-name", "demo"); code != exitOK {
		t.Fatalf("init failed: %s", errOut)
	}
	manifest, err := os.ReadFile(filepath.Join(dir, "ember.toml"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if string(manifest) != "[project]\nname = \"demo\"\nentry = \"main.emb\"\n" {
		t.Fatalf("unexpected manifest %q", manifest)
	}

	code, out, errOut := runCLI(t, "run", dir)
	if code != exitOK || out != "hello, ember\n" {
		t.Fatalf("run failed: %d %q %q", code, out, errOut)
	}

	if code, _, _ := runCLI(t, "init", "-dir", dir); code != exitFailure {
		t.Fatalf("init must refuse to overwrite without -force")
	}
	if code, _, _ := runCLI(t, "init", "-dir", dir, "-force"); code != exitOK {
		t.Fatalf("init -force failed")
	}
}

func TestPlayHeadless(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ember.toml", "[project]\nname = \"demo\"\nscene = \"scene.yaml\"\n\n[runtime]\nworkers = 2\n")
	writeFile(t, dir, "scene.yaml", "entities:\n  - name: blob\n    script: blob.emb\n    count: 3\n    props: {x: 0, y: 0}\n")
	writeFile(t, dir, "blob.emb", "fn update() {\n  self.x = self.x + 1\n  if (self.x == 2) print \"two\"\n}\n")

	code, out, errOut := runCLI(t, "play", "-frames", "4", dir)
	if code != exitOK {
		t.Fatalf("play failed: %d %q", code, errOut)
	}
	if out != "two\ntwo\ntwo\n" {
		t.Fatalf("unexpected output %q", out)
	}

	if code, _, errOut := runCLI(t, "run", dir); code != exitFailure || !strings.Contains(errOut, "no entry script") {
		t.Fatalf("run on a scene-only project should fail: %d %q", code, errOut)
	}
}

func TestPlayReportsEntityErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ember.toml", "[project]\nscene = \"scene.yaml\"\n")
	writeFile(t, dir, "scene.yaml", "entities:\n  - name: bad\n    script: bad.emb\n")
	writeFile(t, dir, "bad.emb", "fn update() { print self.missing }\n")

	code, _, errOut := runCLI(t, "play", "-frames", "2", dir)
	if code != exitRuntimeError || strings.Count(errOut, "undefined key 'missing'") != 1 {
		t.Fatalf("expected one reported failure, got %d %q", code, errOut)
	}
}

func TestRepl(t *testing.T) {
	c, stdout, _ := newTestCLI("mut a = 2\nprint a * 21\n")
	if code := c.main([]string{"repl"}); code != exitOK {
		t.Fatalf("repl exited with %d", code)
	}
	if stdout.String() != "42\n" {
		t.Fatalf("unexpected repl output %q", stdout.String())
	}
}

func TestUsageErrors(t *testing.T) {
	tests := [][]string{
		{"frobnicate"},
		{"build"},
		{"check"},
		{"repl", "extra"},
		{"tools"},
		{"tools", "install", "stray"},
		{"-nope"},
	}
	for _, args := range tests {
		if code, _, _ := runCLI(t, args...); code != exitUsage {
			t.Errorf("%v: expected usage exit, got %d", args, code)
		}
	}
	if code, _, errOut := runCLI(t, "run", filepath.Join(t.TempDir(), "missing.emb")); code != exitFailure || !strings.Contains(errOut, "path not found") {
		t.Fatalf("unexpected result for a missing file: %d %q", code, errOut)
	}
}
