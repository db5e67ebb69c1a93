package compiler

import (
	"fmt"
	"strings"

	"ember/internal/code"
	"ember/internal/object"
)

// Disassemble renders fn and every function in its constant pool.
func Disassemble(fn *object.Function) string {
	var b strings.Builder
	disassembleInto(&b, fn)
	return b.String()
}

func disassembleInto(b *strings.Builder, fn *object.Function) {
	fmt.Fprintf(b, "== %s ==\n", fn.DisplayName())
	ch := fn.Chunk
	for offset := 0; offset < ch.Len(); {
		line, next := DisassembleInstruction(ch, offset)
		b.WriteString(line)
		b.WriteByte('\n')
		offset = next
	}
	b.WriteString(FormatConstants(ch.Constants))

	for _, c := range ch.Constants {
		if c.IsFunction() {
			b.WriteByte('\n')
			disassembleInto(b, c.AsFunction())
		}
	}
}

// DisassembleInstruction renders the instruction at offset and returns the
// offset of the next one.
func DisassembleInstruction(ch *object.Chunk, offset int) (string, int) {
	var b strings.Builder
	fmt.Fprintf(&b, "%04d ", offset)
	if offset > 0 && ch.Line(offset) == ch.Line(offset-1) {
		b.WriteString("   | ")
	} else {
		fmt.Fprintf(&b, "%4d ", ch.Line(offset))
	}

	op := code.Opcode(ch.Code[offset])
	def, ok := code.Lookup(op)
	if !ok {
		fmt.Fprintf(&b, "UNKNOWN_OPCODE %d", byte(op))
		return b.String(), offset + 1
	}

	operands, read := code.ReadOperands(def, ch.Code[offset+1:])
	fmt.Fprintf(&b, "%-16s", def.Name)
	for _, o := range operands {
		fmt.Fprintf(&b, " %4d", o)
	}

	switch op {
	case code.OpConstant, code.OpConstantLong,
		code.OpDefineGlobal, code.OpGetGlobal, code.OpSetGlobal:
		if len(operands) == 1 && operands[0] < len(ch.Constants) {
			fmt.Fprintf(&b, " '%s'", ch.Constants[operands[0]].String())
		}
	case code.OpJump, code.OpJumpIfFalse:
		if len(operands) == 1 {
			fmt.Fprintf(&b, " -> %d", offset+3+operands[0])
		}
	case code.OpLoop:
		if len(operands) == 1 {
			fmt.Fprintf(&b, " -> %d", offset+3-operands[0])
		}
	}
	return strings.TrimRight(b.String(), " "), offset + 1 + read
}

func FormatConstants(constants []object.Value) string {
	var b strings.Builder
	b.WriteString("== constants ==\n")
	for i, c := range constants {
		switch {
		case c.IsNumber():
			fmt.Fprintf(&b, "%04d NUMBER %s\n", i, c.String())
		case c.IsString():
			fmt.Fprintf(&b, "%04d STRING %q\n", i, c.AsString().Text())
		case c.IsFunction():
			fn := c.AsFunction()
			fmt.Fprintf(&b, "%04d FUNCTION %s (arity=%d ins=%dB)\n", i, fn.DisplayName(), fn.Arity, fn.Chunk.Len())
		default:
			fmt.Fprintf(&b, "%04d %s %s\n", i, strings.ToUpper(c.TypeName()), c.String())
		}
	}
	return b.String()
}
