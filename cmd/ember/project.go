package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ember/internal/compiler"
	"ember/internal/config"
	"ember/internal/engine"
	"ember/internal/gfx"
	"ember/internal/scene"
	"ember/internal/tools"
)

func (c *cli) runCheck(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stderr, "usage: ember check <file|dir> [more...]")
		return exitUsage
	}
	files, err := collectScripts(args)
	if err != nil {
		fmt.Fprintln(c.stderr, "check error:", err)
		return exitFailure
	}

	failed := 0
	for _, path := range files {
		b, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(c.stderr, "check error:", err)
			failed++
			continue
		}
		if _, err := compiler.Compile(string(b)); err != nil {
			c.reportLoadError(path, err)
			failed++
		}
	}
	log.Infof("checked %d files", len(files))
	if failed > 0 {
		return exitCompileError
	}
	return exitOK
}

func (c *cli) runPlay(args []string) int {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	frames := fs.Int("frames", 0, "tick this many frames headless instead of opening a window")
	if err := fs.Parse(args); err != nil || fs.NArg() > 1 {
		fmt.Fprintln(c.stderr, "usage: ember play [-frames n] [dir]")
		return exitUsage
	}
	dir := "."
	if fs.NArg() == 1 {
		dir = fs.Arg(0)
	}

	man, err := config.Load(dir)
	if err != nil {
		fmt.Fprintln(c.stderr, "play error:", err)
		return exitFailure
	}
	if man.ScenePath() == "" {
		fmt.Fprintf(c.stderr, "play error: %s: project has no scene\n", filepath.Join(man.Dir, config.FileName))
		return exitFailure
	}
	sc, err := scene.LoadScene(man.ScenePath())
	if err != nil {
		fmt.Fprintln(c.stderr, "play error:", err)
		return exitFailure
	}

	maxMemory := c.maxMemory
	if maxMemory == 0 {
		maxMemory = man.Runtime.MaxMemory
	}
	eng := engine.New(engine.Options{
		Workers:   man.Runtime.Workers,
		MaxMemory: maxMemory,
		Output:    c.stdout,
	})
	if err := eng.LoadScene(sc); err != nil {
		c.printRuntimeError(err)
		return exitRuntimeError
	}

	if *frames > 0 {
		status := exitOK
		for i := 0; i < *frames; i++ {
			if err := eng.Tick(1.0/60, engine.StaticInput{}); err != nil {
				c.printRuntimeError(err)
				status = exitRuntimeError
			}
		}
		return status
	}

	err = gfx.Run(eng, gfx.Window{
		Width:  man.Window.Width,
		Height: man.Window.Height,
		Title:  man.Window.Title,
	})
	if err != nil {
		fmt.Fprintln(c.stderr, "play error:", err)
		return exitFailure
	}
	return exitOK
}

func (c *cli) runInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "project name")
	entry := fs.String("entry", "main"+config.ScriptExt, "entry file")
	dir := fs.String("dir", ".", "project directory")
	force := fs.Bool("force", false, "overwrite existing files")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		fmt.Fprintln(c.stderr, "usage: ember init [-name <name>] [-entry <file>] [-dir <dir>] [-force]")
		return exitUsage
	}
	if strings.TrimSpace(*entry) == "" {
		fmt.Fprintln(c.stderr, "init error: entry cannot be empty")
		return exitUsage
	}

	manifestPath := filepath.Join(*dir, config.FileName)
	manifestExists, err := pathExists(manifestPath)
	if err != nil {
		fmt.Fprintln(c.stderr, "init error:", err)
		return exitFailure
	}
	if manifestExists && !*force {
		fmt.Fprintf(c.stderr, "init error: %s already exists (use -force to overwrite)\n", config.FileName)
		return exitFailure
	}
	if err := os.WriteFile(manifestPath, []byte(buildManifest(*name, *entry)), 0o644); err != nil {
		fmt.Fprintln(c.stderr, "init error:", err)
		return exitFailure
	}

	entryPath := filepath.Join(*dir, *entry)
	if err := ensureDir(entryPath); err != nil {
		fmt.Fprintln(c.stderr, "init error:", err)
		return exitFailure
	}
	entryExists, err := pathExists(entryPath)
	if err != nil {
		fmt.Fprintln(c.stderr, "init error:", err)
		return exitFailure
	}
	if !entryExists || *force {
		if err := os.WriteFile(entryPath, []byte(starterProgram), 0o644); err != nil {
			fmt.Fprintln(c.stderr, "init error:", err)
			return exitFailure
		}
	}
	return exitOK
}

func (c *cli) runTools(args []string) int {
	if len(args) == 0 || args[0] != "install" {
		fmt.Fprintln(c.stderr, "usage: ember tools install [-bin <dir>]")
		return exitUsage
	}
	fs := flag.NewFlagSet("tools install", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	binDir := fs.String("bin", "bin", "output directory for tools")
	if err := fs.Parse(args[1:]); err != nil || fs.NArg() != 0 {
		fmt.Fprintln(c.stderr, "usage: ember tools install [-bin <dir>]")
		return exitUsage
	}

	paths, err := tools.Install(tools.InstallOptions{BinDir: *binDir, Output: c.stderr})
	if err != nil {
		fmt.Fprintln(c.stderr, "install error:", err)
		return exitFailure
	}
	fmt.Fprintf(c.stdout, "installed: %s\n", strings.Join(paths, ", "))
	return exitOK
}

func buildManifest(name, entry string) string {
	var b strings.Builder
	b.WriteString("[project]\n")
	if strings.TrimSpace(name) != "" {
		fmt.Fprintf(&b, "name = %q\n", name)
	}
	fmt.Fprintf(&b, "entry = %q\n", entry)
	return b.String()
}

const starterProgram = `fn greet(who) {
  return "hello, " + who
}

print greet("ember")
`

// collectScripts expands directories into the scripts below them, sorted.
func collectScripts(targets []string) ([]string, error) {
	var files []string
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, target)
			continue
		}

		err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				base := filepath.Base(path)
				if path != target && (base == ".git" || base == "node_modules") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(path, config.ScriptExt) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
