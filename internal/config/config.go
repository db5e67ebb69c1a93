// Package config loads the ember.toml project manifest.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	FileName = "ember.toml"

	// ScriptExt is the extension of behavior script sources.
	ScriptExt = ".emb"
)

type Manifest struct {
	Project Project `toml:"project"`
	Runtime Runtime `toml:"runtime"`
	Window  Window  `toml:"window"`

	// Dir is the directory holding the manifest, set at load time.
	Dir string `toml:"-"`
}

type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
	Scene string `toml:"scene"`
}

type Runtime struct {
	MaxMemory int64 `toml:"max_memory"`
	Workers   int   `toml:"workers"`
	Trace     bool  `toml:"trace"`
}

type Window struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
}

// LoadManifest parses the manifest at path and fills in defaults.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	m.applyDefaults()
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// Load reads ember.toml from dir.
func Load(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, FileName))
}

// FindAndLoad walks up from startDir to the nearest ember.toml. It returns
// nil, nil when there is none.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.Project.Entry == "" && m.Project.Scene == "" {
		m.Project.Entry = "main.emb"
	}
	if m.Runtime.Workers <= 0 {
		m.Runtime.Workers = 1
	}
	if m.Window.Width <= 0 {
		m.Window.Width = 640
	}
	if m.Window.Height <= 0 {
		m.Window.Height = 480
	}
	if m.Window.Title == "" {
		m.Window.Title = m.Project.Name
	}
	if m.Window.Title == "" {
		m.Window.Title = "ember"
	}
}

func (m *Manifest) validate() error {
	if m.Runtime.MaxMemory < 0 {
		return fmt.Errorf("runtime.max_memory must not be negative")
	}
	return nil
}

// EntryPath is the absolute path of the entry script, or "" if none.
func (m *Manifest) EntryPath() string {
	if m.Project.Entry == "" {
		return ""
	}
	return m.resolve(m.Project.Entry)
}

// ScenePath is the absolute path of the scene file, or "" if none.
func (m *Manifest) ScenePath() string {
	if m.Project.Scene == "" {
		return ""
	}
	return m.resolve(m.Project.Scene)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
