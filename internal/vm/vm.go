package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"ember/internal/code"
	"ember/internal/compiler"
	"ember/internal/limits"
	"ember/internal/object"
)

const (
	MaxFrames = 64
	MaxLocals = 256
	StackSize = MaxFrames * MaxLocals
)

type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

func (r InterpretResult) String() string {
	switch r {
	case InterpretOK:
		return "ok"
	case InterpretCompileError:
		return "compile error"
	default:
		return "runtime error"
	}
}

// RuntimeError aborts the current run. Line is the source line of the
// failing instruction; Trace lists the active calls, innermost first.
type RuntimeError struct {
	Line    int
	Message string
	Trace   []string
	Err     error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("[line %d] runtime error: %s", e.Line, e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// VM executes compiled functions. A VM is not safe for concurrent use, but
// any number of VMs may share one Interner and run the same functions.
type VM struct {
	stack []object.Value
	sp    int

	frames     []Frame
	frameCount int

	globals  map[*object.StringObject]object.Value
	interner *object.Interner
	heap     *object.Heap

	out   io.Writer
	trace io.Writer
}

type Option func(*VM)

func WithInterner(in *object.Interner) Option {
	return func(m *VM) {
		if in != nil {
			m.interner = in
		}
	}
}

func WithOutput(w io.Writer) Option {
	return func(m *VM) { m.SetOutput(w) }
}

func WithBudget(b *limits.Budget) Option {
	return func(m *VM) { m.heap.SetBudget(b) }
}

func New(opts ...Option) *VM {
	m := &VM{
		stack:    make([]object.Value, StackSize),
		frames:   make([]Frame, MaxFrames),
		globals:  map[*object.StringObject]object.Value{},
		interner: object.NewInterner(),
		heap:     object.NewHeap(nil),
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *VM) Interner() *object.Interner { return m.interner }

func (m *VM) Heap() *object.Heap { return m.heap }

// SetOutput redirects print. A nil writer discards output.
func (m *VM) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	m.out = w
}

// SetTrace enables instruction tracing to w; nil disables it.
func (m *VM) SetTrace(w io.Writer) { m.trace = w }

func (m *VM) SetMaxMemory(max int64) {
	m.heap.SetBudget(limits.NewBudget(max))
}

// SetGlobal binds name in the global table, taking a reference to v.
func (m *VM) SetGlobal(name string, v object.Value) {
	key := m.interner.Intern(name)
	m.heap.Retain(v)
	if old, ok := m.globals[key]; ok {
		m.heap.Release(old)
	}
	m.globals[key] = v
}

func (m *VM) Global(name string) (object.Value, bool) {
	key, ok := m.interner.Lookup(name)
	if !ok {
		return object.Value{}, false
	}
	v, ok := m.globals[key]
	return v, ok
}

// Globals returns the names of every defined global, sorted.
func (m *VM) Globals() []string {
	out := make([]string, 0, len(m.globals))
	for k := range m.globals {
		out = append(out, k.Text())
	}
	sort.Strings(out)
	return out
}

// HasFunction reports whether name is bound to a function.
func (m *VM) HasFunction(name string) bool {
	v, ok := m.Global(name)
	return ok && v.IsFunction()
}

// Reset releases every global. The VM can be reused afterwards.
func (m *VM) Reset() {
	for k, v := range m.globals {
		delete(m.globals, k)
		m.heap.Release(v)
	}
	m.resetStack()
}

// Interpret compiles source against this VM's intern table and runs it.
func (m *VM) Interpret(source string) (InterpretResult, error) {
	fn, err := compiler.Compile(source, compiler.WithInterner(m.interner))
	if err != nil {
		return InterpretCompileError, err
	}
	return m.Run(fn)
}

// Run executes a top-level function to completion.
func (m *VM) Run(fn *object.Function) (InterpretResult, error) {
	if err := m.push(object.FromFunction(fn)); err != nil {
		return InterpretRuntimeError, err
	}
	if err := m.invoke(fn, 0); err != nil {
		return InterpretRuntimeError, m.fail(err)
	}
	if err := m.run(m.frameCount - 1); err != nil {
		return InterpretRuntimeError, m.fail(err)
	}
	m.heap.Drop(m.pop())
	return InterpretOK, nil
}

// Call invokes the global function name with args and discards its result.
func (m *VM) Call(name string, args ...object.Value) error {
	callee, ok := m.Global(name)
	if !ok {
		return fmt.Errorf("undefined function '%s'", name)
	}
	if !callee.IsFunction() {
		return fmt.Errorf("'%s' is a %s, not a function", name, callee.TypeName())
	}
	fn := callee.AsFunction()

	if err := m.push(callee); err != nil {
		return err
	}
	for _, a := range args {
		m.heap.Retain(a)
		if err := m.push(a); err != nil {
			return m.fail(err)
		}
	}
	stop := m.frameCount
	if err := m.invoke(fn, len(args)); err != nil {
		return m.fail(err)
	}
	if err := m.run(stop); err != nil {
		return m.fail(err)
	}
	m.heap.Drop(m.pop())
	return nil
}

func (m *VM) push(v object.Value) error {
	if m.sp >= StackSize {
		return m.runtimeError("stack overflow")
	}
	m.stack[m.sp] = v
	m.sp++
	return nil
}

func (m *VM) pop() object.Value {
	m.sp--
	v := m.stack[m.sp]
	m.stack[m.sp] = object.Value{}
	return v
}

func (m *VM) peek(distance int) object.Value {
	return m.stack[m.sp-1-distance]
}

// resetStack abandons every frame. Values still on the stack are not
// released, so heap objects owned only by locals of the aborted run leak.
func (m *VM) resetStack() {
	for i := 0; i < m.sp; i++ {
		m.stack[i] = object.Value{}
	}
	m.sp = 0
	m.frameCount = 0
}

func (m *VM) fail(err error) error {
	m.resetStack()
	return err
}

func (m *VM) invoke(fn *object.Function, argc int) error {
	if argc != fn.Arity {
		return m.runtimeError("expected %d arguments but got %d", fn.Arity, argc)
	}
	if m.frameCount == MaxFrames {
		return m.runtimeError("stack overflow")
	}
	m.frames[m.frameCount] = Frame{fn: fn, ip: 0, base: m.sp - argc}
	m.frameCount++
	return nil
}

func (m *VM) runtimeError(format string, args ...any) *RuntimeError {
	e := &RuntimeError{Message: fmt.Sprintf(format, args...)}
	for i := m.frameCount - 1; i >= 0; i-- {
		f := &m.frames[i]
		line := f.fn.Chunk.Line(f.ip - 1)
		if i == m.frameCount-1 {
			e.Line = line
		}
		where := "script"
		if f.fn.Name != nil {
			where = f.fn.Name.Text() + "()"
		}
		e.Trace = append(e.Trace, fmt.Sprintf("[line %d] in %s", line, where))
	}
	return e
}

func (m *VM) heapError(err error) error {
	var mem limits.MaxMemoryError
	if errors.As(err, &mem) {
		e := m.runtimeError("%s", mem.Error())
		e.Err = err
		return e
	}
	return m.runtimeError("%s", err.Error())
}

func (m *VM) run(stopFrames int) error {
	frame := &m.frames[m.frameCount-1]

	for {
		if m.trace != nil {
			m.traceInstruction(frame)
		}

		op := code.Opcode(frame.readByte())
		switch op {
		case code.OpConstant:
			if err := m.push(frame.constant(frame.readByte())); err != nil {
				return err
			}

		case code.OpConstantLong:
			if err := m.push(frame.constant(frame.readUint24())); err != nil {
				return err
			}

		case code.OpTrue:
			if err := m.push(object.Bool(true)); err != nil {
				return err
			}

		case code.OpFalse:
			if err := m.push(object.Bool(false)); err != nil {
				return err
			}

		case code.OpPop:
			m.heap.Drop(m.pop())

		case code.OpPopLocal:
			m.heap.Release(m.pop())

		case code.OpGetLocal:
			slot := frame.readByte()
			if err := m.push(m.stack[frame.base+slot]); err != nil {
				return err
			}

		case code.OpSetLocal:
			slot := frame.readByte()
			v := m.pop()
			old := m.stack[frame.base+slot]
			m.heap.Retain(v)
			m.stack[frame.base+slot] = v
			m.heap.Release(old)

		case code.OpDefineGlobal:
			name := frame.constant(frame.readUint24()).AsString()
			v := m.pop()
			old, had := m.globals[name]
			m.globals[name] = v
			if had {
				m.heap.Release(old)
			}

		case code.OpGetGlobal:
			name := frame.constant(frame.readUint24()).AsString()
			v, ok := m.globals[name]
			if !ok {
				return m.runtimeError("undefined variable '%s'", name.Text())
			}
			if err := m.push(v); err != nil {
				return err
			}

		case code.OpSetGlobal:
			name := frame.constant(frame.readUint24()).AsString()
			old, ok := m.globals[name]
			if !ok {
				return m.runtimeError("undefined variable '%s'", name.Text())
			}
			v := m.pop()
			m.heap.Retain(v)
			m.globals[name] = v
			m.heap.Release(old)

		case code.OpEqual:
			b, a := m.pop(), m.pop()
			eq := object.Equal(a, b)
			m.heap.Drop(a)
			m.heap.Drop(b)
			if err := m.push(object.Bool(eq)); err != nil {
				return err
			}

		case code.OpGreater, code.OpLess, code.OpSubtract, code.OpMultiply, code.OpDivide:
			if err := m.execNumeric(op); err != nil {
				return err
			}

		case code.OpAdd:
			if err := m.execAdd(); err != nil {
				return err
			}

		case code.OpNot:
			v := m.peek(0)
			if !v.IsBool() {
				return m.runtimeError("operand must be a boolean, got %s", v.TypeName())
			}
			m.stack[m.sp-1] = object.Bool(!v.AsBool())

		case code.OpNegate:
			v := m.peek(0)
			if !v.IsNumber() {
				return m.runtimeError("operand must be a number, got %s", v.TypeName())
			}
			m.stack[m.sp-1] = object.Number(-v.AsNumber())

		case code.OpPrint:
			v := m.pop()
			fmt.Fprintln(m.out, v.String())
			m.heap.Drop(v)

		case code.OpJump:
			offset := frame.readUint16()
			frame.ip += offset

		case code.OpJumpIfFalse:
			offset := frame.readUint16()
			cond := m.peek(0)
			if !cond.IsBool() {
				return m.runtimeError("condition must be a boolean, got %s", cond.TypeName())
			}
			if !cond.AsBool() {
				frame.ip += offset
			}

		case code.OpLoop:
			offset := frame.readUint16()
			frame.ip -= offset

		case code.OpCall:
			argc := frame.readByte()
			callee := m.peek(argc)
			if !callee.IsFunction() {
				return m.runtimeError("can only call functions, got %s", callee.TypeName())
			}
			if err := m.invoke(callee.AsFunction(), argc); err != nil {
				return err
			}
			frame = &m.frames[m.frameCount-1]

		case code.OpReturn:
			result := m.pop()
			m.heap.Retain(result)
			for m.sp > frame.base {
				m.heap.Release(m.pop())
			}
			m.heap.Disown(result)

			m.pop() // callee
			m.frameCount--
			if err := m.push(result); err != nil {
				return err
			}
			if m.frameCount == stopFrames {
				return nil
			}
			frame = &m.frames[m.frameCount-1]

		case code.OpNewMap:
			mp, err := m.heap.NewMap()
			if err != nil {
				return m.heapError(err)
			}
			if err := m.push(object.FromObject(mp)); err != nil {
				return err
			}

		case code.OpSetEntry:
			v, k, target := m.pop(), m.pop(), m.pop()
			mp, key, err := m.entryOperands(target, k)
			if err != nil {
				return err
			}
			if _, err := m.heap.SetEntry(mp, key, v); err != nil {
				return m.heapError(err)
			}
			m.heap.Drop(k)
			m.stack[m.sp] = target
			m.sp++

		case code.OpGetEntry:
			k, target := m.pop(), m.pop()
			mp, key, err := m.entryOperands(target, k)
			if err != nil {
				return err
			}
			v, ok := mp.Get(key)
			if !ok {
				return m.runtimeError("undefined key '%s'", key)
			}
			m.heap.Retain(v)
			m.heap.Drop(target)
			m.heap.Drop(k)
			m.heap.Disown(v)
			m.stack[m.sp] = v
			m.sp++

		case code.OpRemoveEntry:
			k, target := m.pop(), m.pop()
			mp, key, err := m.entryOperands(target, k)
			if err != nil {
				return err
			}
			m.heap.RemoveEntry(mp, key)
			m.heap.Drop(k)
			m.stack[m.sp] = target
			m.sp++

		case code.OpHasEntry:
			k, target := m.pop(), m.pop()
			mp, key, err := m.entryOperands(target, k)
			if err != nil {
				return err
			}
			_, ok := mp.Get(key)
			m.heap.Drop(target)
			m.heap.Drop(k)
			m.stack[m.sp] = object.Bool(ok)
			m.sp++

		case code.OpRetain:
			m.heap.Retain(m.peek(0))

		default:
			return m.runtimeError("unknown opcode %d", byte(op))
		}
	}
}

// entryOperands checks the operands of a map instruction. Popped slots are
// reused for the result, so the stack never grows here.
func (m *VM) entryOperands(target, k object.Value) (*object.MapObject, string, error) {
	if !target.IsMap() {
		return nil, "", m.runtimeError("only maps have entries, got %s", target.TypeName())
	}
	if !k.IsString() {
		return nil, "", m.runtimeError("map keys must be strings, got %s", k.TypeName())
	}
	return target.AsMap(), k.AsString().Text(), nil
}

func (m *VM) execNumeric(op code.Opcode) error {
	b, a := m.peek(0), m.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		return m.runtimeError("operands must be numbers, got %s and %s", a.TypeName(), b.TypeName())
	}
	x, y := a.AsNumber(), b.AsNumber()
	var r object.Value
	switch op {
	case code.OpGreater:
		r = object.Bool(x > y)
	case code.OpLess:
		r = object.Bool(x < y)
	case code.OpSubtract:
		r = object.Number(x - y)
	case code.OpMultiply:
		r = object.Number(x * y)
	case code.OpDivide:
		r = object.Number(x / y)
	}
	m.sp--
	m.stack[m.sp] = object.Value{}
	m.stack[m.sp-1] = r
	return nil
}

func (m *VM) execAdd() error {
	b, a := m.peek(0), m.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		m.sp--
		m.stack[m.sp] = object.Value{}
		m.stack[m.sp-1] = object.Number(a.AsNumber() + b.AsNumber())
		return nil

	case a.IsString() && b.IsString():
		s, err := m.heap.NewString(a.AsString().Text() + b.AsString().Text())
		if err != nil {
			return m.heapError(err)
		}
		m.pop()
		m.pop()
		m.heap.Drop(a)
		m.heap.Drop(b)
		m.stack[m.sp] = object.FromObject(s)
		m.sp++
		return nil
	}
	return m.runtimeError("operands must be two numbers or two strings, got %s and %s", a.TypeName(), b.TypeName())
}

func (m *VM) traceInstruction(frame *Frame) {
	var b strings.Builder
	b.WriteString("          ")
	for i := 0; i < m.sp; i++ {
		fmt.Fprintf(&b, "[ %s ]", m.stack[i].String())
	}
	line, _ := compiler.DisassembleInstruction(frame.fn.Chunk, frame.ip)
	fmt.Fprintf(m.trace, "%s\n%s\n", b.String(), line)
}
