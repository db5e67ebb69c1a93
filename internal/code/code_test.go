package code

import "testing"

func TestMake(t *testing.T) {
	tests := []struct {
		op       Opcode
		operands []int
		expected []byte
	}{
		{OpConstant, []int{254}, []byte{byte(OpConstant), 254}},
		{OpConstantLong, []int{65536 + 2}, []byte{byte(OpConstantLong), 1, 0, 2}},
		{OpGetGlobal, []int{300}, []byte{byte(OpGetGlobal), 0, 1, 44}},
		{OpJump, []int{65534}, []byte{byte(OpJump), 255, 254}},
		{OpAdd, nil, []byte{byte(OpAdd)}},
	}

	for _, tt := range tests {
		ins := Make(tt.op, tt.operands...)
		if len(ins) != len(tt.expected) {
			t.Fatalf("%s: wrong length. want=%d got=%d", tt.op, len(tt.expected), len(ins))
		}
		for i, b := range tt.expected {
			if ins[i] != b {
				t.Fatalf("%s: wrong byte at %d. want=%d got=%d", tt.op, i, b, ins[i])
			}
		}
	}
}

func TestReadOperands(t *testing.T) {
	tests := []struct {
		op        Opcode
		operands  []int
		bytesRead int
	}{
		{OpConstant, []int{255}, 1},
		{OpConstantLong, []int{MaxUint24}, 3},
		{OpLoop, []int{MaxUint16}, 2},
		{OpCall, []int{3}, 1},
	}

	for _, tt := range tests {
		ins := Make(tt.op, tt.operands...)
		def, ok := Lookup(tt.op)
		if !ok {
			t.Fatalf("definition not found: %d", tt.op)
		}
		got, n := ReadOperands(def, ins[1:])
		if n != tt.bytesRead {
			t.Fatalf("%s: n wrong. want=%d got=%d", tt.op, tt.bytesRead, n)
		}
		for i, want := range tt.operands {
			if got[i] != want {
				t.Fatalf("%s: operand %d wrong. want=%d got=%d", tt.op, i, want, got[i])
			}
		}
	}
}

func TestInstructionsString(t *testing.T) {
	var ins Instructions
	ins = append(ins, Make(OpConstant, 1)...)
	ins = append(ins, Make(OpConstantLong, 256)...)
	ins = append(ins, Make(OpAdd)...)
	ins = append(ins, Make(OpJumpIfFalse, 7)...)

	expected := "0000 OpConstant 1\n" +
		"0002 OpConstantLong 256\n" +
		"0006 OpAdd\n" +
		"0007 OpJumpIfFalse 7\n"
	if ins.String() != expected {
		t.Fatalf("instructions wrongly formatted.\nwant=%q\ngot=%q", expected, ins.String())
	}
}

func TestEveryOpcodeHasDefinition(t *testing.T) {
	for op := OpConstant; op <= OpRetain; op++ {
		if _, ok := Lookup(op); !ok {
			t.Fatalf("opcode %d has no definition", op)
		}
	}
}
