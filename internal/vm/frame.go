package vm

import (
	"ember/internal/code"
	"ember/internal/object"
)

// Frame is one active call. Slot 0 of the frame is stack[base]; the callee
// itself sits just below it at stack[base-1].
type Frame struct {
	fn   *object.Function
	ip   int
	base int
}

func (f *Frame) Instructions() code.Instructions { return f.fn.Chunk.Code }

func (f *Frame) readByte() int {
	b := f.fn.Chunk.Code[f.ip]
	f.ip++
	return int(b)
}

func (f *Frame) readUint16() int {
	v := code.ReadUint16(f.fn.Chunk.Code[f.ip:])
	f.ip += 2
	return int(v)
}

func (f *Frame) readUint24() int {
	v := code.ReadUint24(f.fn.Chunk.Code[f.ip:])
	f.ip += 3
	return v
}

func (f *Frame) constant(idx int) object.Value {
	return f.fn.Chunk.Constants[idx]
}
