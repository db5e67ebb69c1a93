package objfile

import (
	"fmt"

	"ember/internal/code"
	"ember/internal/object"
)

type instruction struct {
	op       code.Opcode
	operands []int
	next     int
}

// Verify checks that fn's bytecode can be run as is: every opcode is
// known and complete, constant and name operands are inside the pool,
// jumps land on instruction boundaries, and every path reaches a return
// with the same stack depth wherever paths meet and without reading below
// the frame. It does not descend into nested functions.
func Verify(fn *object.Function) error {
	ins := fn.Chunk.Code
	if len(ins) == 0 {
		return verifyError(fn, 0, "empty code")
	}
	if fn.Arity < 0 || fn.Arity > code.MaxUint8 {
		return verifyError(fn, 0, "bad arity %d", fn.Arity)
	}

	decoded := make(map[int]instruction)
	for off := 0; off < len(ins); {
		op := code.Opcode(ins[off])
		def, ok := code.Lookup(op)
		if !ok {
			return verifyError(fn, off, "unknown opcode %d", byte(op))
		}
		operands, read := code.ReadOperands(def, ins[off+1:])
		if len(operands) != len(def.OperandWidths) {
			return verifyError(fn, off, "truncated %s", op)
		}
		if err := checkOperands(fn, off, op, operands); err != nil {
			return err
		}
		decoded[off] = instruction{op: op, operands: operands, next: off + 1 + read}
		off += 1 + read
	}

	depth := map[int]int{0: fn.Arity}
	work := []int{0}
	for len(work) > 0 {
		off := work[len(work)-1]
		work = work[:len(work)-1]
		in := decoded[off]
		d := depth[off]

		pops, pushes := stackEffect(in)
		if d < pops {
			return verifyError(fn, off, "%s needs %d stack values, has %d", in.op, pops, d)
		}
		switch in.op {
		case code.OpGetLocal:
			if in.operands[0] >= d {
				return verifyError(fn, off, "local slot %d outside a frame of %d", in.operands[0], d)
			}
		case code.OpSetLocal:
			if in.operands[0] >= d-1 {
				return verifyError(fn, off, "local slot %d outside a frame of %d", in.operands[0], d-1)
			}
		}
		d += pushes - pops

		var targets []int
		switch in.op {
		case code.OpReturn:
			continue
		case code.OpJump:
			targets = []int{in.next + in.operands[0]}
		case code.OpLoop:
			targets = []int{in.next - in.operands[0]}
		case code.OpJumpIfFalse:
			targets = []int{in.next, in.next + in.operands[0]}
		default:
			targets = []int{in.next}
		}

		for _, t := range targets {
			if _, ok := decoded[t]; !ok {
				if t == len(ins) {
					return verifyError(fn, off, "execution runs past the end of the code")
				}
				return verifyError(fn, off, "jump to %d is not an instruction", t)
			}
			if prev, seen := depth[t]; seen {
				if prev != d {
					return verifyError(fn, off, "stack depth %d at %d, expected %d", d, t, prev)
				}
				continue
			}
			depth[t] = d
			work = append(work, t)
		}
	}
	return nil
}

func checkOperands(fn *object.Function, off int, op code.Opcode, operands []int) error {
	consts := fn.Chunk.Constants
	switch op {
	case code.OpConstant, code.OpConstantLong:
		if operands[0] >= len(consts) {
			return verifyError(fn, off, "constant %d outside a pool of %d", operands[0], len(consts))
		}
	case code.OpDefineGlobal, code.OpGetGlobal, code.OpSetGlobal:
		if operands[0] >= len(consts) {
			return verifyError(fn, off, "constant %d outside a pool of %d", operands[0], len(consts))
		}
		if !consts[operands[0]].IsString() {
			return verifyError(fn, off, "%s names a %s constant", op, consts[operands[0]].TypeName())
		}
	}
	return nil
}

// stackEffect is how many values in consumes and produces.
func stackEffect(in instruction) (pops, pushes int) {
	switch in.op {
	case code.OpConstant, code.OpConstantLong, code.OpTrue, code.OpFalse,
		code.OpGetLocal, code.OpGetGlobal, code.OpNewMap:
		return 0, 1
	case code.OpPop, code.OpPopLocal, code.OpPrint, code.OpReturn,
		code.OpSetLocal, code.OpDefineGlobal, code.OpSetGlobal:
		return 1, 0
	case code.OpEqual, code.OpGreater, code.OpLess,
		code.OpAdd, code.OpSubtract, code.OpMultiply, code.OpDivide,
		code.OpGetEntry, code.OpRemoveEntry, code.OpHasEntry:
		return 2, 1
	case code.OpSetEntry:
		return 3, 1
	case code.OpNot, code.OpNegate, code.OpRetain, code.OpJumpIfFalse:
		return 1, 1
	case code.OpCall:
		return in.operands[0] + 1, 1
	}
	return 0, 0
}

func verifyError(fn *object.Function, off int, format string, args ...any) error {
	return fmt.Errorf("objfile: %s: offset %d: %s", fn.DisplayName(), off, fmt.Sprintf(format, args...))
}
