// Package tools builds the ember command-line binaries from a source
// checkout.
package tools

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Binaries maps each installed binary to the package it is built from.
var Binaries = []struct {
	Name string
	Pkg  string
}{
	{"ember", "./cmd/ember"},
	{"ember-lsp", "./cmd/ember-lsp"},
}

type InstallOptions struct {
	BinDir string

	// Output receives the compiler's output. Defaults to stderr.
	Output io.Writer
}

// goBuild runs the go tool. Tests replace it.
var goBuild = func(pkg, out string, w io.Writer) error {
	cmd := exec.Command("go", "build", "-o", out, pkg)
	cmd.Stdout = w
	cmd.Stderr = w
	return cmd.Run()
}

// Install builds every binary into opts.BinDir and returns their paths.
func Install(opts InstallOptions) ([]string, error) {
	if opts.BinDir == "" {
		opts.BinDir = "bin"
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	if err := os.MkdirAll(opts.BinDir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	for _, b := range Binaries {
		out := filepath.Join(opts.BinDir, exeName(b.Name))
		if err := goBuild(b.Pkg, out, opts.Output); err != nil {
			return paths, fmt.Errorf("build %s: %w", b.Name, err)
		}
		paths = append(paths, out)
	}
	return paths, nil
}

func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
