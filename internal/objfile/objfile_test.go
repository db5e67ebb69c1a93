package objfile

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"ember/internal/code"
	"ember/internal/compiler"
	"ember/internal/object"
	"ember/internal/vm"
)

const program = `
mut greeting = "hello"
fn shout(s, n) {
  mut out = s
  for (mut i = 0, i < n, i = i + 1) out = out + "!"
  return out
}
print shout(greeting, 3)
print {a: 1.5, b: true}
`

func TestRoundTrip(t *testing.T) {
	fn, err := compiler.Compile(program)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	data, err := Marshal(fn)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	in := object.NewInterner()
	loaded, err := Unmarshal(data, in)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got, want := compiler.Disassemble(loaded), compiler.Disassemble(fn); got != want {
		t.Fatalf("disassembly differs after round trip.\nwant:\n%s\ngot:\n%s", want, got)
	}
	if _, ok := in.Lookup("greeting"); !ok {
		t.Fatalf("expected constants to be interned on load")
	}

	m := vm.New(vm.WithInterner(in))
	var out bytes.Buffer
	m.SetOutput(&out)
	if _, err := m.Run(loaded); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.String() != "hello!!!\n{a: 1.5, b: true}\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	fn, err := compiler.Compile(program)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	a, err := Marshal(fn)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	b, err := Marshal(fn)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("expected identical encodings")
	}
}

func TestRejectsForeignData(t *testing.T) {
	wrong, err := encMode.Marshal(header{Magic: "NOPE", Version: Version})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if _, err := Unmarshal(wrong, nil); !errors.Is(err, ErrNotObjectFile) {
		t.Fatalf("expected ErrNotObjectFile, got %v", err)
	}

	future, err := encMode.Marshal(header{Magic: Magic, Version: Version + 1})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if _, err := Unmarshal(future, nil); err == nil || !strings.Contains(err.Error(), "unsupported version") {
		t.Fatalf("expected version error, got %v", err)
	}

	if _, err := Unmarshal([]byte("print 1"), nil); err == nil {
		t.Fatalf("expected error for source text")
	}
}

func TestRejectsMismatchedLines(t *testing.T) {
	data, err := encMode.Marshal(header{
		Magic:   Magic,
		Version: Version,
		Main:    function{Code: []byte{1, 2}, Lines: []int{1}},
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if _, err := Unmarshal(data, nil); err == nil {
		t.Fatalf("expected error for truncated line table")
	}
}

func TestWriteAndReadFile(t *testing.T) {
	fn, err := compiler.Compile("fn f() { return 1 }\nprint f()")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "f"+Ext)
	if err := WriteFile(path, fn); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	loaded, err := ReadFile(path, nil)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(loaded.Chunk.Constants) != len(fn.Chunk.Constants) {
		t.Fatalf("constant pool size changed: %d vs %d", len(loaded.Chunk.Constants), len(fn.Chunk.Constants))
	}
}

func handAssembled(consts []object.Value, ins ...code.Instructions) *object.Function {
	fn := object.NewFunction(nil, 0)
	for _, c := range consts {
		fn.Chunk.AddConstant(c)
	}
	for _, i := range ins {
		fn.Chunk.WriteInstruction(i, 1)
	}
	return fn
}

func TestRejectsCorruptBytecode(t *testing.T) {
	badConstant, err := compiler.Compile("print 1")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	badConstant.Chunk.Code[1] = 200

	nested, err := compiler.Compile("fn f() { return 1 }")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	for _, c := range nested.Chunk.Constants {
		if c.IsFunction() {
			c.AsFunction().Chunk.Code[0] = 250
		}
	}

	tests := []struct {
		name string
		fn   *object.Function
		want string
	}{
		{"constant index", badConstant, "constant 200 outside a pool of 1"},
		{"nested function", nested, "f: offset 0: unknown opcode 250"},
		{"unknown opcode", handAssembled(nil, code.Instructions{250}), "unknown opcode 250"},
		{"truncated operand", handAssembled(nil, code.Instructions{byte(code.OpConstant)}), "truncated OpConstant"},
		{"underflow", handAssembled(nil,
			code.Make(code.OpPop), code.Make(code.OpFalse), code.Make(code.OpReturn)),
			"OpPop needs 1 stack values, has 0"},
		{"local slot", handAssembled(nil,
			code.Make(code.OpGetLocal, 3), code.Make(code.OpReturn)),
			"local slot 3 outside a frame of 0"},
		{"global name", handAssembled([]object.Value{object.Number(1)},
			code.Make(code.OpGetGlobal, 0), code.Make(code.OpReturn)),
			"OpGetGlobal names a number constant"},
		{"falls off the end", handAssembled(nil, code.Make(code.OpTrue)), "runs past the end"},
		{"jump target", handAssembled(nil,
			code.Make(code.OpJump, 40), code.Make(code.OpFalse), code.Make(code.OpReturn)),
			"jump to 43 is not an instruction"},
		{"depth mismatch", handAssembled(nil,
			code.Make(code.OpTrue), code.Make(code.OpJumpIfFalse, 1), code.Make(code.OpTrue), code.Make(code.OpReturn)),
			"stack depth 2 at 5, expected 1"},
	}
	for _, tt := range tests {
		data, err := Marshal(tt.fn)
		if err != nil {
			t.Fatalf("%s: marshal failed: %v", tt.name, err)
		}
		_, err = Unmarshal(data, nil)
		if err == nil {
			t.Fatalf("%s: expected the cache to be rejected", tt.name)
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tt.name, tt.want, err)
		}
	}
}

func TestCompiledCodeVerifies(t *testing.T) {
	sources := []string{
		program,
		"mut m = {}\nm.a = 1\nprint m.has(\"a\") and m.get(\"a\") == 1 or false",
		"for (, false, ) print 1\nmut i = 0\nwhile (i < 2) { mut j = i i = j + 1 }",
		"fn f(a, b) { if (a > b) return a else { mut c = b return c } }\nprint f(1, 2)",
		"{ mut q = {k: 1} q.k = 2 q.insert(\"z\", 3).remove(\"k\") }",
	}
	for _, src := range sources {
		fn, err := compiler.Compile(src)
		if err != nil {
			t.Fatalf("%q: compile error: %v", src, err)
		}
		if err := Verify(fn); err != nil {
			t.Fatalf("%q: %v", src, err)
		}
		for _, c := range fn.Chunk.Constants {
			if c.IsFunction() {
				if err := Verify(c.AsFunction()); err != nil {
					t.Fatalf("%q: %v", src, err)
				}
			}
		}
	}
}
