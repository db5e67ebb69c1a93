package object

// Function is a compiled function declaration or the top-level script.
// Once compilation finishes it is immutable and may be shared by any
// number of VMs.
type Function struct {
	Name  *StringObject // nil for the top-level script
	Arity int
	Chunk *Chunk
}

func NewFunction(name *StringObject, arity int) *Function {
	return &Function{Name: name, Arity: arity, Chunk: NewChunk()}
}

func (f *Function) DisplayName() string {
	if f == nil || f.Name == nil {
		return "script"
	}
	return f.Name.Text()
}

func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return "<fn " + f.Name.Text() + ">"
}
