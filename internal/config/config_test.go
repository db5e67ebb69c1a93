package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "pong"
scene = "scene.yaml"

[runtime]
max_memory = 1048576
workers = 4
trace = true

[window]
width = 800
height = 600
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if m.Project.Name != "pong" || m.Runtime.Workers != 4 || !m.Runtime.Trace {
		t.Fatalf("unexpected manifest %+v", m)
	}
	if m.Runtime.MaxMemory != 1<<20 {
		t.Fatalf("unexpected max_memory %d", m.Runtime.MaxMemory)
	}
	if m.Window.Title != "pong" {
		t.Fatalf("expected title to default to project name, got %q", m.Window.Title)
	}
	if m.EntryPath() != "" {
		t.Fatalf("expected no entry when a scene is set, got %q", m.EntryPath())
	}
	abs, _ := filepath.Abs(dir)
	if m.ScenePath() != filepath.Join(abs, "scene.yaml") {
		t.Fatalf("unexpected scene path %q", m.ScenePath())
	}
}

func TestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project]\nname = \"x\"\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if m.Project.Entry != "main.emb" {
		t.Fatalf("expected default entry, got %q", m.Project.Entry)
	}
	if m.Runtime.Workers != 1 || m.Window.Width != 640 || m.Window.Height != 480 {
		t.Fatalf("unexpected defaults %+v", m)
	}
}

func TestUnknownKey(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project]\nnmae = \"typo\"\n")

	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "project.nmae") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestParseError(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project\n")
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"walk\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if m == nil || m.Project.Name != "walk" {
		t.Fatalf("expected manifest from ancestor, got %+v", m)
	}
}
