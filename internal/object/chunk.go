package object

import (
	"fmt"

	"ember/internal/code"
)

// Chunk is a unit of compiled bytecode. Lines holds the source line of
// every byte in Code, so len(Code) == len(Lines) at all times.
type Chunk struct {
	Code      code.Instructions
	Lines     []int
	Constants []Value
}

func NewChunk() *Chunk {
	return &Chunk{
		Code:      code.Instructions{},
		Lines:     []int{},
		Constants: []Value{},
	}
}

func (c *Chunk) Len() int { return len(c.Code) }

// Write appends a single byte.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteInstruction appends an encoded instruction and returns its offset.
func (c *Chunk) WriteInstruction(ins code.Instructions, line int) int {
	pos := len(c.Code)
	for _, b := range ins {
		c.Write(b, line)
	}
	return pos
}

// AddConstant appends v to the pool. Indices are stable for the life of
// the chunk.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// WriteConstant adds v to the pool and emits the load for it.
func (c *Chunk) WriteConstant(v Value, line int) (int, error) {
	idx := c.AddConstant(v)
	return c.WriteConstantLoad(idx, line)
}

// WriteConstantLoad emits the short form for indices below 256 and the
// 24-bit long form otherwise.
func (c *Chunk) WriteConstantLoad(idx int, line int) (int, error) {
	if idx <= code.MaxUint8 {
		return c.WriteInstruction(code.Make(code.OpConstant, idx), line), nil
	}
	if idx > code.MaxUint24 {
		return 0, fmt.Errorf("too many constants in one chunk")
	}
	return c.WriteInstruction(code.Make(code.OpConstantLong, idx), line), nil
}

// Line returns the source line of the byte at offset.
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		if len(c.Lines) > 0 {
			return c.Lines[len(c.Lines)-1]
		}
		return 0
	}
	return c.Lines[offset]
}

// Truncate drops every byte at or after offset.
func (c *Chunk) Truncate(offset int) {
	c.Code = c.Code[:offset]
	c.Lines = c.Lines[:offset]
}
