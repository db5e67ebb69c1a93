package compiler

import (
	"ember/internal/code"
	"ember/internal/object"
	"ember/internal/token"
)

// Constant folding works on the emitted tail of the chunk. An operand is
// foldable only if it is a constant load that no jump lands inside of or
// after, since patched offsets would otherwise point into rewritten code.

func (c *Compiler) constantAt(e EmittedInstruction) (object.Value, bool) {
	ins := c.chunk().Code
	var idx int
	switch e.Opcode {
	case code.OpConstant:
		idx = int(ins[e.Position+1])
	case code.OpConstantLong:
		idx = code.ReadUint24(ins[e.Position+1:])
	default:
		return object.Value{}, false
	}
	return c.chunk().Constants[idx], true
}

// tailConstants returns the last n emitted instructions if they are all
// foldable constant loads.
func (c *Compiler) tailConstants(n int) ([]object.Value, int, bool) {
	if c.preview {
		return nil, 0, false
	}
	fs := c.fs
	if len(fs.emitted) < n {
		return nil, 0, false
	}
	tail := fs.emitted[len(fs.emitted)-n:]
	if fs.lastTarget > tail[0].Position {
		return nil, 0, false
	}
	vals := make([]object.Value, n)
	for i, e := range tail {
		v, ok := c.constantAt(e)
		if !ok {
			return nil, 0, false
		}
		vals[i] = v
	}
	return vals, tail[0].Position, true
}

// replaceTail rewinds the chunk to start and loads v in place of the
// instructions that were there.
func (c *Compiler) replaceTail(n, start int, v object.Value) {
	fs := c.fs
	fs.emitted = fs.emitted[:len(fs.emitted)-n]
	c.chunk().Truncate(start)
	c.emitConstant(v)
}

func (c *Compiler) foldNegate() bool {
	vals, start, ok := c.tailConstants(1)
	if !ok || !vals[0].IsNumber() {
		return false
	}
	c.replaceTail(1, start, object.Number(-vals[0].AsNumber()))
	return true
}

func (c *Compiler) foldBinary(op token.Type) bool {
	switch op {
	case token.PLUS, token.MINUS, token.STAR, token.SLASH:
	default:
		return false
	}
	vals, start, ok := c.tailConstants(2)
	if !ok {
		return false
	}
	a, b := vals[0], vals[1]

	if a.IsString() && b.IsString() {
		if op != token.PLUS {
			return false
		}
		s := c.interner.Intern(a.AsString().Text() + b.AsString().Text())
		c.replaceTail(2, start, object.FromObject(s))
		return true
	}
	if !a.IsNumber() || !b.IsNumber() {
		return false
	}

	x, y := a.AsNumber(), b.AsNumber()
	var r float64
	switch op {
	case token.PLUS:
		r = x + y
	case token.MINUS:
		r = x - y
	case token.STAR:
		r = x * y
	case token.SLASH:
		r = x / y
	}
	c.replaceTail(2, start, object.Number(r))
	return true
}
