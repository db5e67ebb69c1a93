// Package objfile stores compiled functions as canonical CBOR so a behavior
// script can be loaded without recompiling it.
package objfile

import (
	"errors"
	"fmt"
	"os"

	"ember/internal/object"

	"github.com/fxamacker/cbor/v2"
)

const (
	Magic   = "EMBC"
	Version = 1
	Ext     = ".embc"
)

var ErrNotObjectFile = errors.New("objfile: not an ember object file")

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("objfile: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

type header struct {
	Magic   string   `cbor:"1,keyasint"`
	Version int      `cbor:"2,keyasint"`
	Main    function `cbor:"3,keyasint"`
}

type function struct {
	Name      string     `cbor:"1,keyasint,omitempty"`
	Arity     int        `cbor:"2,keyasint"`
	Code      []byte     `cbor:"3,keyasint"`
	Lines     []int      `cbor:"4,keyasint"`
	Constants []constant `cbor:"5,keyasint"`
}

type constKind uint8

const (
	constNumber constKind = iota + 1
	constString
	constFunction
	constBool
)

type constant struct {
	Kind constKind `cbor:"1,keyasint"`
	Num  float64   `cbor:"2,keyasint,omitempty"`
	Str  string    `cbor:"3,keyasint,omitempty"`
	Fn   *function `cbor:"4,keyasint,omitempty"`
}

// Marshal encodes fn and every function reachable from its constant pool.
func Marshal(fn *object.Function) ([]byte, error) {
	main, err := encodeFunction(fn)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(header{Magic: Magic, Version: Version, Main: *main})
}

// Unmarshal decodes a function tree and verifies the bytecode of every
// function in it. Strings are interned in in, so the result can run on any
// VM that shares it.
func Unmarshal(data []byte, in *object.Interner) (*object.Function, error) {
	var h header
	if err := cbor.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("objfile: unmarshal: %w", err)
	}
	if h.Magic != Magic {
		return nil, ErrNotObjectFile
	}
	if h.Version != Version {
		return nil, fmt.Errorf("objfile: unsupported version %d (want %d)", h.Version, Version)
	}
	if in == nil {
		in = object.NewInterner()
	}
	return decodeFunction(&h.Main, in, true)
}

func WriteFile(path string, fn *object.Function) error {
	data, err := Marshal(fn)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func ReadFile(path string, in *object.Interner) (*object.Function, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fn, err := Unmarshal(data, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fn, nil
}

func encodeFunction(fn *object.Function) (*function, error) {
	out := &function{
		Arity:     fn.Arity,
		Code:      append([]byte(nil), fn.Chunk.Code...),
		Lines:     append([]int(nil), fn.Chunk.Lines...),
		Constants: make([]constant, 0, len(fn.Chunk.Constants)),
	}
	if fn.Name != nil {
		out.Name = fn.Name.Text()
	}

	for i, v := range fn.Chunk.Constants {
		switch {
		case v.IsNumber():
			out.Constants = append(out.Constants, constant{Kind: constNumber, Num: v.AsNumber()})
		case v.IsBool():
			c := constant{Kind: constBool}
			if v.AsBool() {
				c.Num = 1
			}
			out.Constants = append(out.Constants, c)
		case v.IsString():
			out.Constants = append(out.Constants, constant{Kind: constString, Str: v.AsString().Text()})
		case v.IsFunction():
			nested, err := encodeFunction(v.AsFunction())
			if err != nil {
				return nil, err
			}
			out.Constants = append(out.Constants, constant{Kind: constFunction, Fn: nested})
		default:
			return nil, fmt.Errorf("objfile: %s: constant %d has unsupported type %s", fn.DisplayName(), i, v.TypeName())
		}
	}
	return out, nil
}

func decodeFunction(f *function, in *object.Interner, script bool) (*object.Function, error) {
	if len(f.Code) != len(f.Lines) {
		return nil, fmt.Errorf("objfile: %q: %d code bytes but %d line entries", f.Name, len(f.Code), len(f.Lines))
	}
	if !script && f.Name == "" {
		return nil, fmt.Errorf("objfile: nested function without a name")
	}

	var name *object.StringObject
	if !script {
		name = in.Intern(f.Name)
	}
	fn := object.NewFunction(name, f.Arity)
	fn.Chunk.Code = append(fn.Chunk.Code, f.Code...)
	fn.Chunk.Lines = append(fn.Chunk.Lines, f.Lines...)

	for i, c := range f.Constants {
		var v object.Value
		switch c.Kind {
		case constNumber:
			v = object.Number(c.Num)
		case constBool:
			v = object.Bool(c.Num != 0)
		case constString:
			v = object.FromObject(in.Intern(c.Str))
		case constFunction:
			if c.Fn == nil {
				return nil, fmt.Errorf("objfile: constant %d: missing function body", i)
			}
			nested, err := decodeFunction(c.Fn, in, false)
			if err != nil {
				return nil, err
			}
			v = object.FromFunction(nested)
		default:
			return nil, fmt.Errorf("objfile: constant %d: unknown kind %d", i, c.Kind)
		}
		fn.Chunk.AddConstant(v)
	}
	if err := Verify(fn); err != nil {
		return nil, err
	}
	return fn, nil
}
