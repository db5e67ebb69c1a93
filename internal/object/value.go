package object

import (
	"math"
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindBool Kind = iota
	KindNumber
	KindObject
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindObject:
		return "object"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Value is the tagged runtime value. Copying a Value never changes the
// reference count of the heap object it points to; ownership is adjusted
// explicitly through a Heap.
//
// The zero Value is false.
type Value struct {
	kind Kind
	num  float64
	ref  any // HeapObject or *Function
}

func Bool(b bool) Value {
	if b {
		return Value{kind: KindBool, num: 1}
	}
	return Value{kind: KindBool}
}

func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

func FromObject(o HeapObject) Value { return Value{kind: KindObject, ref: o} }

func FromFunction(fn *Function) Value { return Value{kind: KindFunction, ref: fn} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsBool() bool     { return v.kind == KindBool }
func (v Value) IsNumber() bool   { return v.kind == KindNumber }
func (v Value) IsObject() bool   { return v.kind == KindObject }
func (v Value) IsFunction() bool { return v.kind == KindFunction }

func (v Value) IsString() bool {
	_, ok := v.ref.(*StringObject)
	return ok
}

func (v Value) IsMap() bool {
	_, ok := v.ref.(*MapObject)
	return ok
}

func (v Value) AsBool() bool      { return v.num != 0 }
func (v Value) AsNumber() float64 { return v.num }

func (v Value) AsObject() HeapObject {
	o, _ := v.ref.(HeapObject)
	return o
}

func (v Value) AsString() *StringObject {
	s, _ := v.ref.(*StringObject)
	return s
}

func (v Value) AsMap() *MapObject {
	m, _ := v.ref.(*MapObject)
	return m
}

func (v Value) AsFunction() *Function {
	fn, _ := v.ref.(*Function)
	return fn
}

// TypeName is the user-facing name of the value's type, used in runtime
// error messages.
func (v Value) TypeName() string {
	switch v.ref.(type) {
	case *StringObject:
		return "string"
	case *MapObject:
		return "map"
	case *Function:
		return "function"
	}
	return v.kind.String()
}

// Equal is defined for every pair of values. Values of different kinds are
// never equal. Interned strings compare by identity; everything else that
// is a string falls back to content.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBool:
		return a.AsBool() == b.AsBool()
	case KindNumber:
		return a.num == b.num
	case KindFunction:
		return a.ref == b.ref
	}

	if a.ref == b.ref {
		return true
	}
	as, aok := a.ref.(*StringObject)
	bs, bok := b.ref.(*StringObject)
	if !aok || !bok {
		return false
	}
	if as.interned && bs.interned {
		return false
	}
	return as.text == bs.text
}

// FormatNumber renders n the way print does: %g with six significant digits.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "nan"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	}
	return strconv.FormatFloat(n, 'g', 6, 64)
}

// String renders v for print. Strings are written raw at the top level and
// quoted inside maps.
func (v Value) String() string {
	var b strings.Builder
	writeValue(&b, v, false, map[*MapObject]bool{})
	return b.String()
}

func writeValue(b *strings.Builder, v Value, quote bool, seen map[*MapObject]bool) {
	switch v.kind {
	case KindBool:
		if v.AsBool() {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
		return
	case KindNumber:
		b.WriteString(FormatNumber(v.num))
		return
	case KindFunction:
		b.WriteString(v.AsFunction().String())
		return
	}

	switch o := v.ref.(type) {
	case *StringObject:
		if quote {
			b.WriteString(strconv.Quote(o.text))
		} else {
			b.WriteString(o.text)
		}
	case *MapObject:
		if seen[o] {
			b.WriteString("{...}")
			return
		}
		seen[o] = true
		b.WriteString("{")
		for i, k := range o.Keys() {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString(": ")
			val, _ := o.Get(k)
			writeValue(b, val, true, seen)
		}
		b.WriteString("}")
		delete(seen, o)
	default:
		b.WriteString("<object>")
	}
}
