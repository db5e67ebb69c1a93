package object

import (
	"sort"

	"ember/internal/limits"
)

type ObjKind uint8

const (
	ObjString ObjKind = iota
	ObjMap
)

// HeapObject is a reference-counted object. Counts are only ever adjusted
// by a Heap; the VM decides when, copying a Value never does.
type HeapObject interface {
	ObjKind() ObjKind
	header() *Header
}

type Header struct {
	refs  int32
	freed bool
}

func (h *Header) header() *Header { return h }

// RefCount reports the current number of owners.
func (h *Header) RefCount() int32 { return h.refs }

// Freed reports whether the object's count dropped to zero.
func (h *Header) Freed() bool { return h.freed }

type StringObject struct {
	Header
	text     string
	interned bool
}

func (*StringObject) ObjKind() ObjKind { return ObjString }

func (s *StringObject) Text() string     { return s.text }
func (s *StringObject) IsInterned() bool { return s.interned }

// MapObject maps string keys to values. Keys compare by content.
type MapObject struct {
	Header
	entries map[string]Value
}

func (*MapObject) ObjKind() ObjKind { return ObjMap }

func newMapObject() *MapObject {
	return &MapObject{entries: map[string]Value{}}
}

// Set stores v under key and reports whether the key was newly inserted.
func (m *MapObject) Set(key string, v Value) bool {
	_, exists := m.entries[key]
	m.entries[key] = v
	return !exists
}

func (m *MapObject) Get(key string) (Value, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Delete removes key and returns the value it held.
func (m *MapObject) Delete(key string) (Value, bool) {
	v, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	return v, ok
}

func (m *MapObject) Len() int { return len(m.entries) }

// Keys returns the keys in sorted order.
func (m *MapObject) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Heap allocates the non-interned objects of one VM and tracks their
// ownership. It is not safe for concurrent use; interned strings are owned
// by the Interner and never counted here, so they may be shared freely.
type Heap struct {
	budget *limits.Budget
	live   int
	allocs int
}

func NewHeap(budget *limits.Budget) *Heap {
	return &Heap{budget: budget}
}

// Live is the number of allocated objects that have not been freed.
func (h *Heap) Live() int { return h.live }

// Allocs is the total number of objects ever allocated.
func (h *Heap) Allocs() int { return h.allocs }

func (h *Heap) Budget() *limits.Budget { return h.budget }

func (h *Heap) SetBudget(b *limits.Budget) { h.budget = b }

func (h *Heap) NewString(text string) (*StringObject, error) {
	if err := h.budget.Charge(CostString(text)); err != nil {
		return nil, err
	}
	h.live++
	h.allocs++
	return &StringObject{text: text}, nil
}

func (h *Heap) NewMap() (*MapObject, error) {
	if err := h.budget.Charge(CostMap(0)); err != nil {
		return nil, err
	}
	h.live++
	h.allocs++
	return newMapObject(), nil
}

// SetEntry stores v in m, taking a reference to v and releasing whatever
// the key held before.
func (h *Heap) SetEntry(m *MapObject, key string, v Value) (bool, error) {
	old, had := m.Get(key)
	if !had {
		if err := h.budget.Charge(CostMapEntry()); err != nil {
			return false, err
		}
	}
	h.Retain(v)
	inserted := m.Set(key, v)
	if had {
		h.Release(old)
	}
	return inserted, nil
}

// RemoveEntry deletes key from m and releases the removed value.
func (h *Heap) RemoveEntry(m *MapObject, key string) bool {
	old, ok := m.Delete(key)
	if !ok {
		return false
	}
	h.budget.Credit(CostMapEntry())
	h.Release(old)
	return true
}

func counted(v Value) (HeapObject, bool) {
	o := v.AsObject()
	if o == nil {
		return nil, false
	}
	if s, ok := o.(*StringObject); ok && s.interned {
		return nil, false
	}
	return o, true
}

// Retain adds an owner to v if it is a counted heap object.
func (h *Heap) Retain(v Value) {
	if o, ok := counted(v); ok {
		o.header().refs++
	}
}

// Release removes an owner from v and frees it when none remain.
func (h *Heap) Release(v Value) {
	o, ok := counted(v)
	if !ok {
		return
	}
	hd := o.header()
	if hd.freed {
		return
	}
	hd.refs--
	if hd.refs <= 0 {
		h.free(o)
	}
}

// Disown removes an owner without freeing, leaving the object floating on
// the stack for the next owner to pick up.
func (h *Heap) Disown(v Value) {
	if o, ok := counted(v); ok {
		if hd := o.header(); hd.refs > 0 {
			hd.refs--
		}
	}
}

// Drop frees v if nothing owns it. It is applied to every temporary that
// an instruction consumes.
func (h *Heap) Drop(v Value) {
	o, ok := counted(v)
	if !ok {
		return
	}
	if hd := o.header(); hd.refs <= 0 && !hd.freed {
		h.free(o)
	}
}

func (h *Heap) free(o HeapObject) {
	hd := o.header()
	hd.freed = true
	hd.refs = 0
	h.live--

	switch obj := o.(type) {
	case *StringObject:
		h.budget.Credit(CostString(obj.text))
	case *MapObject:
		h.budget.Credit(CostMap(len(obj.entries)))
		for _, child := range obj.entries {
			h.Release(child)
		}
	}
}
