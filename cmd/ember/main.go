package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ember/internal/compiler"
	"ember/internal/config"
	"ember/internal/lexer"
	"ember/internal/object"
	"ember/internal/objfile"
	"ember/internal/repl"
	"ember/internal/token"
	"ember/internal/vm"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("ember.cli")

// Exit statuses.
const (
	exitOK           = 0
	exitFailure      = 1
	exitUsage        = 2
	exitCompileError = 65
	exitRuntimeError = 70
)

const usage = `usage:
  ember [flags] run [file.emb|file.embc|dir]
  ember [flags] <file>
  ember build [-o out.embc] <file.emb>
  ember check <file|dir>...
  ember test <file|dir>...
  ember play [-frames n] [dir]
  ember init [-name <name>] [-entry <file>] [-force]
  ember repl
  ember tools install [-bin <dir>]

flags:`

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	color  bool

	verbose   int
	trace     bool
	maxMemory int64
	tokens    bool
	dis       bool
}

func main() {
	c := &cli{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		color:  isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}
	os.Exit(c.main(os.Args[1:]))
}

func (c *cli) main(args []string) int {
	fs := flag.NewFlagSet("ember", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.IntVar(&c.verbose, "v", 0, "log verbosity (0-2)")
	fs.BoolVar(&c.trace, "trace", false, "trace every executed instruction to stderr")
	fs.Int64Var(&c.maxMemory, "max-memory", 0, "heap limit in bytes (0 uses the manifest or no limit)")
	fs.BoolVar(&c.tokens, "tokens", false, "print tokens instead of running")
	fs.BoolVar(&c.dis, "dis", false, "print bytecode instead of running")
	fs.Usage = func() {
		fmt.Fprintln(c.stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	commonlog.Configure(c.verbose, nil)

	args = fs.Args()
	if len(args) == 0 {
		return c.runRepl(nil)
	}

	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "run":
		return c.runRun(cmdArgs)
	case "build":
		return c.runBuild(cmdArgs)
	case "check":
		return c.runCheck(cmdArgs)
	case "test":
		return c.runTest(cmdArgs)
	case "play":
		return c.runPlay(cmdArgs)
	case "init":
		return c.runInit(cmdArgs)
	case "repl":
		return c.runRepl(cmdArgs)
	case "tools":
		return c.runTools(cmdArgs)
	}
	if strings.HasSuffix(cmd, config.ScriptExt) || strings.HasSuffix(cmd, objfile.Ext) {
		return c.runRun(args)
	}
	fmt.Fprintln(c.stderr, "unknown command:", cmd)
	fs.Usage()
	return exitUsage
}

func (c *cli) runRepl(args []string) int {
	if c.tokens || c.dis {
		fmt.Fprintln(c.stderr, "repl does not support -tokens or -dis")
		return exitUsage
	}
	if len(args) != 0 {
		fmt.Fprintln(c.stderr, "usage: ember repl")
		return exitUsage
	}
	opts := repl.Options{MaxMemory: c.maxMemory}
	if c.trace {
		opts.Trace = c.stderr
	}
	repl.Start(c.stdin, c.stdout, opts)
	return exitOK
}

func (c *cli) runRun(args []string) int {
	if len(args) > 1 {
		fmt.Fprintln(c.stderr, "usage: ember run [file|dir]")
		return exitUsage
	}
	target := "."
	if len(args) == 1 {
		target = args[0]
	}
	path, man, err := resolveRunTarget(target)
	if err != nil {
		fmt.Fprintln(c.stderr, "run error:", err)
		return exitFailure
	}

	if c.tokens {
		return c.printTokens(path)
	}

	in := object.NewInterner()
	fn, err := c.load(path, in)
	if err != nil {
		return c.reportLoadError(path, err)
	}
	if c.dis {
		fmt.Fprint(c.stdout, compiler.Disassemble(fn))
		return exitOK
	}

	m := vm.New(vm.WithInterner(in), vm.WithOutput(c.stdout))
	maxMemory := c.maxMemory
	trace := c.trace
	if man != nil {
		if maxMemory == 0 {
			maxMemory = man.Runtime.MaxMemory
		}
		trace = trace || man.Runtime.Trace
	}
	if maxMemory > 0 {
		m.SetMaxMemory(maxMemory)
	}
	if trace {
		m.SetTrace(c.stderr)
	}

	log.Debugf("running %s", path)
	if _, err := m.Run(fn); err != nil {
		c.printRuntimeError(err)
		return exitRuntimeError
	}
	return exitOK
}

// load compiles a script or reads a compiled cache.
func (c *cli) load(path string, in *object.Interner) (*object.Function, error) {
	if filepath.Ext(path) == objfile.Ext {
		return objfile.ReadFile(path, in)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(string(src), compiler.WithInterner(in))
}

func (c *cli) reportLoadError(path string, err error) int {
	var list compiler.ErrorList
	if errors.As(err, &list) {
		for _, d := range list.Diagnostics() {
			fmt.Fprintln(c.stderr, c.colorize(d.Format(path)))
		}
		return exitCompileError
	}
	fmt.Fprintln(c.stderr, "load error:", err)
	return exitFailure
}

func (c *cli) printRuntimeError(err error) {
	fmt.Fprintln(c.stderr, c.colorize(err.Error()))
	var rt *vm.RuntimeError
	if errors.As(err, &rt) {
		for _, line := range rt.Trace {
			fmt.Fprintln(c.stderr, line)
		}
	}
}

func (c *cli) printTokens(path string) int {
	if filepath.Ext(path) == objfile.Ext {
		fmt.Fprintln(c.stderr, "-tokens needs a source file")
		return exitUsage
	}
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(c.stderr, "read error:", err)
		return exitFailure
	}
	l := lexer.New(string(b))
	for {
		tok := l.NextToken()
		fmt.Fprintf(c.stdout, "%4d:%-3d  %-10s  %q\n", tok.Line, tok.Col, tok.Type, tok.Literal)
		if tok.Type == token.EOF {
			return exitOK
		}
	}
}

func (c *cli) runBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	out := fs.String("o", "", "output file (defaults to the input with "+objfile.Ext+")")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprintln(c.stderr, "usage: ember build [-o out.embc] <file.emb>")
		return exitUsage
	}
	path := fs.Arg(0)
	if *out == "" {
		*out = strings.TrimSuffix(path, filepath.Ext(path)) + objfile.Ext
	}

	fn, err := c.load(path, object.NewInterner())
	if err != nil {
		return c.reportLoadError(path, err)
	}
	if err := objfile.WriteFile(*out, fn); err != nil {
		fmt.Fprintln(c.stderr, "build error:", err)
		return exitFailure
	}
	log.Infof("wrote %s", *out)
	return exitOK
}

const (
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func (c *cli) colorize(s string) string {
	if !c.color {
		return s
	}
	return ansiRed + s + ansiReset
}

func resolveRunTarget(target string) (string, *config.Manifest, error) {
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("path not found: %s", target)
		}
		return "", nil, err
	}
	if !info.IsDir() {
		abs, err := filepath.Abs(target)
		if err != nil {
			return "", nil, err
		}
		man, err := config.FindAndLoad(filepath.Dir(abs))
		if err != nil {
			return "", nil, err
		}
		return abs, man, nil
	}
	man, err := config.Load(target)
	if err != nil {
		return "", nil, err
	}
	entry := man.EntryPath()
	if entry == "" {
		return "", nil, fmt.Errorf("%s: project has no entry script (use ember play for scenes)", filepath.Join(man.Dir, config.FileName))
	}
	return entry, man, nil
}
