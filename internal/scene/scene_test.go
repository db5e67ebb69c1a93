package scene

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const pong = `
entities:
  - name: paddle
    script: paddle.emb
    props:
      x: 10
      y: 200.5
      label: left
      solid: true
      size: {w: 10, h: 80}
  - name: ball
    script: /abs/ball.emb
    count: 3
`

func TestParseScene(t *testing.T) {
	s, err := ParseScene([]byte(pong), "games/pong/scene.yaml")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(s.Entities) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(s.Entities))
	}

	paddle := s.Entities[0]
	if paddle.Count != 1 {
		t.Fatalf("expected default count 1, got %d", paddle.Count)
	}
	if paddle.Props["x"] != 10 || paddle.Props["y"] != 200.5 || paddle.Props["label"] != "left" || paddle.Props["solid"] != true {
		t.Fatalf("unexpected props %#v", paddle.Props)
	}
	size, ok := paddle.Props["size"].(map[string]any)
	if !ok || size["h"] != 80 {
		t.Fatalf("unexpected nested props %#v", paddle.Props["size"])
	}
	if !strings.HasSuffix(s.ScriptPath(paddle), filepath.Join("games", "pong", "paddle.emb")) {
		t.Fatalf("unexpected script path %q", s.ScriptPath(paddle))
	}
	if s.ScriptPath(s.Entities[1]) != "/abs/ball.emb" || s.Entities[1].Count != 3 {
		t.Fatalf("unexpected ball template %+v", s.Entities[1])
	}
}

func TestSceneValidation(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"entities: []", "no entities"},
		{"entities:\n  - script: a.emb", "name is required"},
		{"entities:\n  - name: a", "script is required"},
		{"entities:\n  - {name: a, script: a.emb}\n  - {name: a, script: b.emb}", "duplicate name"},
		{"entities:\n  - {name: a, script: a.emb, count: -1}", "count must not be negative"},
		{"entities:\n  - {name: a, script: a.emb, props: {xs: [1, 2]}}", "props.xs"},
		{"entities: {", "parsing"},
	}
	for _, tt := range tests {
		_, err := ParseScene([]byte(tt.src), "scene.yaml")
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%q: expected error containing %q, got %v", tt.src, tt.want, err)
		}
	}
}

func TestLoadScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(path, []byte(pong), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := LoadScene(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if s.Dir != filepath.Dir(path) {
		t.Fatalf("unexpected dir %q", s.Dir)
	}
	if _, err := LoadScene(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
