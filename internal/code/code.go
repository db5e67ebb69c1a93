package code

import (
	"encoding/binary"
	"fmt"
)

type Opcode byte

const (
	OpConstant     Opcode = iota // operand: constant index (1 byte)
	OpConstantLong               // operand: constant index (3 bytes)
	OpTrue
	OpFalse

	OpPop      // discard a temporary
	OpPopLocal // discard a local at scope exit; releases it

	OpGetLocal // operand: slot (1 byte)
	OpSetLocal // operand: slot (1 byte)

	OpDefineGlobal // operand: name constant (3 bytes)
	OpGetGlobal    // operand: name constant (3 bytes)
	OpSetGlobal    // operand: name constant (3 bytes)

	OpEqual
	OpGreater
	OpLess

	OpAdd
	OpSubtract
	OpMultiply
	OpDivide

	OpNot
	OpNegate

	OpPrint

	OpJump        // operand: forward offset (2 bytes)
	OpJumpIfFalse // operand: forward offset (2 bytes); leaves the condition
	OpLoop        // operand: backward offset (2 bytes)

	OpCall // operand: argument count (1 byte)
	OpReturn

	OpNewMap
	OpSetEntry    // map key value -> map
	OpGetEntry    // map key -> value
	OpRemoveEntry // map key -> map
	OpHasEntry    // map key -> bool

	OpRetain // retain the top of stack if it is a heap value
)

type Instructions []byte

type Definition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*Definition{
	OpConstant:     {"OpConstant", []int{1}},
	OpConstantLong: {"OpConstantLong", []int{3}},
	OpTrue:         {"OpTrue", nil},
	OpFalse:        {"OpFalse", nil},
	OpPop:          {"OpPop", nil},
	OpPopLocal:     {"OpPopLocal", nil},
	OpGetLocal:     {"OpGetLocal", []int{1}},
	OpSetLocal:     {"OpSetLocal", []int{1}},
	OpDefineGlobal: {"OpDefineGlobal", []int{3}},
	OpGetGlobal:    {"OpGetGlobal", []int{3}},
	OpSetGlobal:    {"OpSetGlobal", []int{3}},
	OpEqual:        {"OpEqual", nil},
	OpGreater:      {"OpGreater", nil},
	OpLess:         {"OpLess", nil},
	OpAdd:          {"OpAdd", nil},
	OpSubtract:     {"OpSubtract", nil},
	OpMultiply:     {"OpMultiply", nil},
	OpDivide:       {"OpDivide", nil},
	OpNot:          {"OpNot", nil},
	OpNegate:       {"OpNegate", nil},
	OpPrint:        {"OpPrint", nil},
	OpJump:         {"OpJump", []int{2}},
	OpJumpIfFalse:  {"OpJumpIfFalse", []int{2}},
	OpLoop:         {"OpLoop", []int{2}},
	OpCall:         {"OpCall", []int{1}},
	OpReturn:       {"OpReturn", nil},
	OpNewMap:       {"OpNewMap", nil},
	OpSetEntry:     {"OpSetEntry", nil},
	OpGetEntry:     {"OpGetEntry", nil},
	OpRemoveEntry:  {"OpRemoveEntry", nil},
	OpHasEntry:     {"OpHasEntry", nil},
	OpRetain:       {"OpRetain", nil},
}

const (
	MaxUint8  = 1<<8 - 1
	MaxUint16 = 1<<16 - 1
	MaxUint24 = 1<<24 - 1
)

func Lookup(op Opcode) (*Definition, bool) {
	def, ok := definitions[op]
	return def, ok
}

func (op Opcode) String() string {
	if def, ok := definitions[op]; ok {
		return def.Name
	}
	return fmt.Sprintf("Opcode(%d)", byte(op))
}

// Width is the encoded size of op including its operands.
func (op Opcode) Width() int {
	def, ok := definitions[op]
	if !ok {
		return 1
	}
	n := 1
	for _, w := range def.OperandWidths {
		n += w
	}
	return n
}

func Make(op Opcode, operands ...int) Instructions {
	def := definitions[op]
	ins := make([]byte, op.Width())
	ins[0] = byte(op)

	offset := 1
	for i, o := range operands {
		w := def.OperandWidths[i]
		switch w {
		case 1:
			ins[offset] = byte(o)
		case 2:
			binary.BigEndian.PutUint16(ins[offset:], uint16(o))
		case 3:
			PutUint24(ins[offset:], o)
		}
		offset += w
	}
	return ins
}

func ReadUint16(ins Instructions) uint16 {
	return binary.BigEndian.Uint16(ins)
}

func ReadUint24(ins Instructions) int {
	return int(ins[0])<<16 | int(ins[1])<<8 | int(ins[2])
}

func PutUint24(b []byte, v int) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}
