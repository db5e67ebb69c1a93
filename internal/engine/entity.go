package engine

import (
	"fmt"
	"sort"

	"ember/internal/object"
	"ember/internal/vm"

	"github.com/google/uuid"
)

// Entity is one live instance of a template.
type Entity struct {
	ID       uuid.UUID
	Template string

	vm  *vm.VM
	err error
}

// Err is the error that disabled the entity, if any.
func (ent *Entity) Err() error { return ent.err }

func (ent *Entity) Disabled() bool { return ent.err != nil }

func (ent *Entity) VM() *vm.VM { return ent.vm }

// Self is the map currently bound to the entity's self global. Scripts
// may rebind self, so it is looked up on every call.
func (ent *Entity) Self() (*object.MapObject, bool) {
	v, ok := ent.vm.Global("self")
	if !ok || !v.IsMap() {
		return nil, false
	}
	return v.AsMap(), true
}

func (ent *Entity) prop(key string) (object.Value, bool) {
	self, ok := ent.Self()
	if !ok {
		return object.Value{}, false
	}
	return self.Get(key)
}

// Number reads a numeric self property.
func (ent *Entity) Number(key string) (float64, bool) {
	v, ok := ent.prop(key)
	if !ok || !v.IsNumber() {
		return 0, false
	}
	return v.AsNumber(), true
}

// Text reads a string self property.
func (ent *Entity) Text(key string) (string, bool) {
	v, ok := ent.prop(key)
	if !ok || !v.IsString() {
		return "", false
	}
	return v.AsString().Text(), true
}

// Bool reads a boolean self property.
func (ent *Entity) Bool(key string) (bool, bool) {
	v, ok := ent.prop(key)
	if !ok || !v.IsBool() {
		return false, false
	}
	return v.AsBool(), true
}

func (ent *Entity) tick(now, dt float64, in Input) error {
	m := ent.vm
	m.SetGlobal("time", object.Number(now))
	m.SetGlobal("dt", object.Number(dt))
	if in != nil {
		input, err := ent.inputMap(in)
		if err != nil {
			ent.err = err
			return err
		}
		m.SetGlobal("input", object.FromObject(input))
	}

	if !m.HasFunction(UpdateFunc) {
		return nil
	}
	if err := m.Call(UpdateFunc); err != nil {
		ent.err = err
		return err
	}
	return nil
}

// inputMap builds {keys: {<pressed>: true}, mouse: {x, y}} on the
// entity's heap.
func (ent *Entity) inputMap(in Input) (*object.MapObject, error) {
	pressed := map[string]any{}
	for k, down := range in.Keys() {
		if down {
			pressed[k] = true
		}
	}
	x, y := in.Mouse()
	return ent.newMap(map[string]any{
		"keys":  pressed,
		"mouse": map[string]any{"x": x, "y": y},
	})
}

func (ent *Entity) newMap(props map[string]any) (*object.MapObject, error) {
	h := ent.vm.Heap()
	mp, err := h.NewMap()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := ent.toValue(props[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		if _, err := h.SetEntry(mp, k, v); err != nil {
			return nil, err
		}
	}
	return mp, nil
}

func (ent *Entity) toValue(v any) (object.Value, error) {
	switch val := v.(type) {
	case bool:
		return object.Bool(val), nil
	case int:
		return object.Number(float64(val)), nil
	case int64:
		return object.Number(float64(val)), nil
	case float64:
		return object.Number(val), nil
	case string:
		return object.FromObject(ent.vm.Interner().Intern(val)), nil
	case map[string]any:
		mp, err := ent.newMap(val)
		if err != nil {
			return object.Value{}, err
		}
		return object.FromObject(mp), nil
	case object.Value:
		return val, nil
	}
	return object.Value{}, fmt.Errorf("unsupported value of type %T", v)
}
