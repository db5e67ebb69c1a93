// Package engine hosts behavior scripts for game entities. Every entity
// runs in its own VM; entities spawned from one template share a single
// compiled function and the engine's intern table.
package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"ember/internal/compiler"
	"ember/internal/object"
	"ember/internal/objfile"
	"ember/internal/scene"
	"ember/internal/vm"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("ember.engine")

// Lifecycle hooks a behavior script may define.
const (
	InitFunc   = "init"
	UpdateFunc = "update"
)

type Options struct {
	// Workers is the number of goroutines ticking entities. Values below
	// 2 tick sequentially.
	Workers int

	// MaxMemory caps each entity's heap in bytes. Zero is unlimited.
	MaxMemory int64

	// Output receives print output from every entity. Defaults to stdout.
	Output io.Writer
}

type Engine struct {
	opts     Options
	interner *object.Interner
	out      *syncWriter

	templates map[string]*object.Function
	entities  []*Entity

	time float64
}

func New(opts Options) *Engine {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return &Engine{
		opts:      opts,
		interner:  object.NewInterner(),
		out:       &syncWriter{w: out},
		templates: map[string]*object.Function{},
	}
}

func (e *Engine) Interner() *object.Interner { return e.interner }

// Time is the total simulated time passed to Tick.
func (e *Engine) Time() float64 { return e.time }

// LoadTemplate compiles source once for every entity spawned from name.
func (e *Engine) LoadTemplate(name, source string) error {
	fn, err := compiler.Compile(source, compiler.WithInterner(e.interner))
	if err != nil {
		return fmt.Errorf("template %s: %w", name, err)
	}
	e.templates[name] = fn
	log.Debugf("compiled template %s (%d bytes)", name, fn.Chunk.Len())
	return nil
}

// LoadTemplateFile loads a template from a script or a compiled cache.
func (e *Engine) LoadTemplateFile(name, path string) error {
	if isObjectFile(path) {
		fn, err := objfile.ReadFile(path, e.interner)
		if err != nil {
			return fmt.Errorf("template %s: %w", name, err)
		}
		e.templates[name] = fn
		return nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("template %s: %w", name, err)
	}
	return e.LoadTemplate(name, string(src))
}

func (e *Engine) Templates() []string {
	out := make([]string, 0, len(e.templates))
	for k := range e.templates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LoadScene loads every template of s and spawns its instances.
func (e *Engine) LoadScene(s *scene.Scene) error {
	for _, t := range s.Entities {
		if err := e.LoadTemplateFile(t.Name, s.ScriptPath(t)); err != nil {
			return err
		}
		for i := 0; i < t.Count; i++ {
			if _, err := e.Spawn(t.Name, t.Props); err != nil {
				return err
			}
		}
	}
	log.Infof("scene loaded: %d templates, %d entities", len(s.Entities), len(e.entities))
	return nil
}

// Spawn creates an entity, binds self, runs the template's top level and
// then its init function if there is one.
func (e *Engine) Spawn(template string, props map[string]any) (*Entity, error) {
	fn, ok := e.templates[template]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", template)
	}

	m := vm.New(vm.WithInterner(e.interner), vm.WithOutput(e.out))
	if e.opts.MaxMemory > 0 {
		m.SetMaxMemory(e.opts.MaxMemory)
	}
	ent := &Entity{ID: uuid.New(), Template: template, vm: m}

	self, err := ent.newMap(props)
	if err != nil {
		return nil, fmt.Errorf("%s: self: %w", template, err)
	}
	m.SetGlobal("self", object.FromObject(self))
	m.SetGlobal("time", object.Number(e.time))

	if _, err := m.Run(fn); err != nil {
		m.Reset()
		return nil, fmt.Errorf("%s: %w", template, err)
	}
	if m.HasFunction(InitFunc) {
		if err := m.Call(InitFunc); err != nil {
			m.Reset()
			return nil, fmt.Errorf("%s.%s: %w", template, InitFunc, err)
		}
	}

	e.entities = append(e.entities, ent)
	log.Debugf("spawned %s %s", template, ent.ID)
	return ent, nil
}

// Despawn removes an entity and releases everything its VM holds.
func (e *Engine) Despawn(id uuid.UUID) bool {
	for i, ent := range e.entities {
		if ent.ID == id {
			ent.vm.Reset()
			e.entities = append(e.entities[:i], e.entities[i+1:]...)
			return true
		}
	}
	return false
}

func (e *Engine) Entities() []*Entity { return e.entities }

func (e *Engine) Entity(id uuid.UUID) (*Entity, bool) {
	for _, ent := range e.entities {
		if ent.ID == id {
			return ent, true
		}
	}
	return nil, false
}

// Tick advances time by dt and calls update on every enabled entity. An
// entity whose update fails is disabled; the others keep running. The
// returned error joins every failure of this tick.
func (e *Engine) Tick(dt float64, in Input) error {
	e.time += dt

	var (
		mu   sync.Mutex
		errs []error
	)
	tick := func(ent *Entity) {
		if err := ent.tick(e.time, dt, in); err != nil {
			err = fmt.Errorf("%s %s: %w", ent.Template, ent.ID, err)
			log.Errorf("entity disabled: %s", err)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	active := make([]*Entity, 0, len(e.entities))
	for _, ent := range e.entities {
		if ent.err == nil {
			active = append(active, ent)
		}
	}

	workers := e.opts.Workers
	if workers < 2 || len(active) < 2 {
		for _, ent := range active {
			tick(ent)
		}
		return errors.Join(errs...)
	}

	jobs := make(chan *Entity)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ent := range jobs {
				tick(ent)
			}
		}()
	}
	for _, ent := range active {
		jobs <- ent
	}
	close(jobs)
	wg.Wait()

	return errors.Join(errs...)
}

func isObjectFile(path string) bool {
	return filepath.Ext(path) == objfile.Ext
}

// syncWriter serializes writes from entities ticking in parallel.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
