// Package scene reads scene.yaml: the entity templates a game starts with.
package scene

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Scene struct {
	// Entities are spawned in file order.
	Entities []Template `yaml:"entities"`

	// Dir is the directory holding the scene file, set at load time.
	Dir string `yaml:"-"`
}

// Template describes a group of entities sharing one behavior script.
type Template struct {
	Name   string `yaml:"name"`
	Script string `yaml:"script"`

	// Count is the number of instances to spawn. Defaults to 1.
	Count int `yaml:"count,omitempty"`

	// Props seed each instance's self map. Values must be numbers,
	// strings, booleans, or nested maps of those.
	Props map[string]any `yaml:"props,omitempty"`
}

func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene %s: %w", path, err)
	}
	return ParseScene(data, path)
}

func ParseScene(data []byte, path string) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving directory: %w", err)
	}
	s.Dir = dir
	if err := s.validate(path); err != nil {
		return nil, err
	}
	return &s, nil
}

// ScriptPath resolves a template's script relative to the scene file.
func (s *Scene) ScriptPath(t Template) string {
	if filepath.IsAbs(t.Script) {
		return t.Script
	}
	return filepath.Join(s.Dir, t.Script)
}

func (s *Scene) validate(path string) error {
	if len(s.Entities) == 0 {
		return fmt.Errorf("%s: no entities defined", path)
	}
	seen := map[string]bool{}
	for i := range s.Entities {
		t := &s.Entities[i]
		if t.Name == "" {
			return fmt.Errorf("%s: entities[%d]: name is required", path, i)
		}
		if seen[t.Name] {
			return fmt.Errorf("%s: entities[%d]: duplicate name %q", path, i, t.Name)
		}
		seen[t.Name] = true
		if t.Script == "" {
			return fmt.Errorf("%s: entities[%d] (%s): script is required", path, i, t.Name)
		}
		if t.Count < 0 {
			return fmt.Errorf("%s: entities[%d] (%s): count must not be negative", path, i, t.Name)
		}
		if t.Count == 0 {
			t.Count = 1
		}
		for k, v := range t.Props {
			if err := checkProp(v); err != nil {
				return fmt.Errorf("%s: entities[%d] (%s): props.%s: %w", path, i, t.Name, k, err)
			}
		}
	}
	return nil
}

func checkProp(v any) error {
	switch val := v.(type) {
	case int, float64, string, bool:
		return nil
	case map[string]any:
		for k, child := range val {
			if err := checkProp(child); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported value of type %T", v)
	}
}
