package object

import "sync"

// Interner deduplicates string constants. Two interned strings are equal
// exactly when they are the same object. An Interner may be shared by any
// number of compilers and VMs.
type Interner struct {
	mu      sync.Mutex
	strings map[string]*StringObject
}

func NewInterner() *Interner {
	return &Interner{strings: map[string]*StringObject{}}
}

// Intern returns the unique interned object for text, allocating it on
// first use.
func (in *Interner) Intern(text string) *StringObject {
	in.mu.Lock()
	defer in.mu.Unlock()
	if s, ok := in.strings[text]; ok {
		return s
	}
	s := &StringObject{text: text, interned: true}
	s.refs = 1 // owned by the table
	in.strings[text] = s
	return s
}

func (in *Interner) Lookup(text string) (*StringObject, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	s, ok := in.strings[text]
	return s, ok
}

func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.strings)
}
