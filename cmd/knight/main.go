// Knight CLI - runs Knight programs, a REPL, the evaluation server and the
// language server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/knight/compiler"
	"github.com/chazu/knight/manifest"
	"github.com/chazu/knight/server"
	"github.com/chazu/knight/vm"
)

var log = commonlog.GetLogger("knight.cli")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// verbosityFlag counts -v flags; -v=N sets the level directly.
type verbosityFlag struct {
	level int
	set   bool
}

func (v *verbosityFlag) String() string {
	if v == nil {
		return "0"
	}
	return strconv.Itoa(v.level)
}

func (v *verbosityFlag) Set(s string) error {
	v.set = true
	if s == "true" {
		v.level++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("verbosity must be a number: %q", s)
	}
	v.level = n
	return nil
}

func (v *verbosityFlag) IsBoolFlag() bool { return true }

// options holds the parsed command line.
type options struct {
	expr        string
	exprSet     bool // -e was given, possibly with empty source
	file        string
	interactive bool
	image       string
	saveImage   string
	serve       bool
	port        int
	lsp         bool
	remote      string
	config      string
	noConfig    bool
	verbosity   verbosityFlag
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fset := flag.NewFlagSet("knight", flag.ContinueOnError)
	fset.SetOutput(stderr)

	fset.StringVar(&o.expr, "e", "", "Run the given expression")
	fset.StringVar(&o.file, "f", "", "Run the program in the given file")
	fset.BoolVar(&o.interactive, "i", false, "Start interactive REPL (after any program)")
	fset.StringVar(&o.image, "image", "", "Load globals from an image before running")
	fset.StringVar(&o.saveImage, "save-image", "", "Save globals to an image after running")
	fset.BoolVar(&o.serve, "serve", false, "Start evaluation server (gRPC + Connect HTTP/JSON)")
	fset.IntVar(&o.port, "port", 0, "Evaluation server port (default from knight.toml, else 4567)")
	fset.BoolVar(&o.lsp, "lsp", false, "Start language server on stdio")
	fset.StringVar(&o.remote, "remote", "", "Evaluate on a remote server at host:port")
	fset.StringVar(&o.config, "config", "", "Path to knight.toml (default: search upward from the working directory)")
	fset.BoolVar(&o.noConfig, "no-config", false, "Ignore knight.toml")
	fset.Var(&o.verbosity, "v", "Verbose logging; repeat or use -v=N for more")

	fset.Usage = func() {
		fmt.Fprintf(stderr, "Usage: knight [options] [file]\n\n")
		fmt.Fprintf(stderr, "Runs a Knight program from -e, -f, a file argument or the entry in knight.toml.\n")
		fmt.Fprintf(stderr, "With no program, starts the REPL.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fset.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  knight -e 'OUTPUT + 1 2'        # Run an expression\n")
		fmt.Fprintf(stderr, "  knight prog.kn                  # Run a file\n")
		fmt.Fprintf(stderr, "  knight -f lib.kn -save-image s  # Run, then save globals\n")
		fmt.Fprintf(stderr, "  knight -image s -i              # Restore globals, start REPL\n")
		fmt.Fprintf(stderr, "  knight -serve -port 8080        # Evaluation server on :8080\n")
		fmt.Fprintf(stderr, "  knight -remote localhost:4567 -e 'OUTPUT 1'\n")
		fmt.Fprintf(stderr, "  knight -lsp                     # Language server for editors\n")
	}

	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	fset.Visit(func(f *flag.Flag) {
		if f.Name == "e" {
			o.exprSet = true
		}
	})

	switch rest := fset.Args(); {
	case len(rest) > 1:
		return nil, fmt.Errorf("expected at most one program file, got %d", len(rest))
	case len(rest) == 1 && o.file != "":
		return nil, errors.New("-f and a file argument are mutually exclusive")
	case len(rest) == 1:
		o.file = rest[0]
	}
	if o.exprSet && o.file != "" {
		return nil, errors.New("-e and -f are mutually exclusive")
	}
	if o.serve && o.lsp {
		return nil, errors.New("-serve and -lsp are mutually exclusive")
	}
	if o.remote != "" && (o.serve || o.lsp) {
		return nil, errors.New("-remote cannot be combined with -serve or -lsp")
	}
	return o, nil
}

// run is main without the process exit, returning the exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "knight: %v\n", err)
		return 2
	}

	m, err := loadManifest(o)
	if err != nil {
		fmt.Fprintf(stderr, "knight: %v\n", err)
		return 1
	}
	configureLogging(o, m)

	switch {
	case o.lsp:
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(stderr, "knight: language server: %v\n", err)
			return 1
		}
		return 0
	case o.serve:
		return runServer(m, o.port, stderr)
	}

	source, hasProgram, err := programSource(o, m)
	if err != nil {
		fmt.Fprintf(stderr, "knight: %v\n", err)
		return 1
	}

	if o.remote != "" {
		if !hasProgram {
			fmt.Fprintf(stderr, "knight: -remote needs a program (-e, -f or a file)\n")
			return 2
		}
		return runRemote(o.remote, source, stdout, stderr)
	}

	out := bufio.NewWriter(stdout)
	defer out.Flush()

	in, err := newInterpreter(o, m, stdin, out)
	if err != nil {
		fmt.Fprintf(stderr, "knight: %v\n", err)
		return 1
	}

	if hasProgram {
		_, err := in.Run(source)
		if ferr := in.Flush(); ferr != nil && err == nil {
			err = ferr
		}
		if code, ok := vm.ExitCode(err); ok {
			if serr := saveImage(o, m, in); serr != nil {
				fmt.Fprintf(stderr, "knight: %v\n", serr)
			}
			return code
		}
		if err != nil {
			out.Flush()
			fmt.Fprintf(stderr, "knight: %v\n", err)
			return 1
		}
	}

	status := 0
	if o.interactive || !hasProgram {
		out.Flush()
		status = runREPL(in, newLiner(), out, stderr)
	}

	if err := saveImage(o, m, in); err != nil {
		fmt.Fprintf(stderr, "knight: %v\n", err)
		return 1
	}
	return status
}

// loadManifest returns the knight.toml in effect: an explicit -config, the
// nearest one above the working directory, or defaults.
func loadManifest(o *options) (*manifest.Manifest, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if o.noConfig {
		return manifest.Default(cwd), nil
	}
	if o.config != "" {
		return manifest.LoadFile(o.config)
	}

	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(cwd), nil
	}
	return m, nil
}

func configureLogging(o *options, m *manifest.Manifest) {
	verbosity := m.Log.Verbosity
	if o.verbosity.set {
		verbosity = o.verbosity.level
	}
	var path *string
	if p := m.LogPath(); p != "" {
		path = &p
	}
	commonlog.Configure(verbosity, path)
	if m.Project.Name != "" {
		log.Info("using project", "name", m.Project.Name, "dir", m.Dir)
	}
}

// programSource picks the program to run. The second result is false when
// there is none, which means the REPL.
func programSource(o *options, m *manifest.Manifest) (string, bool, error) {
	if o.exprSet {
		return o.expr, true, nil
	}
	path := o.file
	if path == "" {
		path = m.EntryPath()
	}
	if path == "" {
		return "", false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("cannot read program: %w", err)
	}
	log.Debug("read program", "path", path, "bytes", len(data))
	return string(data), true, nil
}

func newInterpreter(o *options, m *manifest.Manifest, stdin io.Reader, stdout io.Writer) (*vm.Interpreter, error) {
	opts := append(m.InterpreterOptions(),
		vm.WithParser(compiler.Parse),
		vm.WithStdin(stdin),
		vm.WithStdout(stdout),
	)

	// An explicit -image must exist; the knight.toml image may not have
	// been written yet.
	path, required := o.image, true
	if path == "" {
		path, required = m.ImagePath(), false
	}
	if path != "" {
		env, err := loadImage(path)
		switch {
		case err == nil:
			log.Info("loaded image", "path", path, "globals", env.Len())
			opts = append(opts, vm.WithGlobals(env))
		case !required && errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}
	return vm.NewInterpreter(opts...), nil
}

func loadImage(path string) (*vm.Environment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	env, err := vm.LoadImage(f, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return env, nil
}

// saveImage writes the globals to -save-image, or to the knight.toml image.
func saveImage(o *options, m *manifest.Manifest, in *vm.Interpreter) error {
	path := o.saveImage
	if path == "" {
		path = m.ImagePath()
	}
	if path == "" {
		return nil
	}
	return writeImage(path, in.Globals)
}

func writeImage(path string, env *vm.Environment) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := vm.SaveImage(f, env); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info("saved image", "path", path, "globals", env.Len())
	return nil
}

// runServer serves until the listener fails or the process is interrupted.
func runServer(m *manifest.Manifest, port int, stderr io.Writer) int {
	opts := []server.ServerOption{server.WithSessionTTL(m.SessionTTL())}
	if m.Server.AllowShell {
		opts = append(opts, server.WithShell(m.ShellFunc()))
	}
	if m.Run.Seed != 0 {
		opts = append(opts, server.WithSeed(uint64(m.Run.Seed)))
	}
	addr := m.Server.Addr
	if port != 0 {
		addr = fmt.Sprintf(":%d", port)
	}

	srv := server.New(opts...)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(addr) }()

	select {
	case err := <-errc:
		srv.Stop()
		if err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return 1
		}
		return 0
	case <-ctx.Done():
		log.Notice("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return 1
		}
		return 0
	}
}

// runRemote evaluates source on a remote server and mirrors the local exit
// contract: output to stdout, errors to stderr, QUIT's status as ours.
func runRemote(addr, source string, stdout, stderr io.Writer) int {
	client, err := server.Dial(addr)
	if err != nil {
		fmt.Fprintf(stderr, "knight: %v\n", err)
		return 1
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := client.Evaluate(ctx, source)
	if err != nil {
		fmt.Fprintf(stderr, "knight: remote %s: %v\n", addr, err)
		return 1
	}
	defer client.CloseSession(context.Background())

	io.WriteString(stdout, result.Output)
	switch {
	case result.Exit != nil:
		return *result.Exit
	case result.Error != "":
		fmt.Fprintf(stderr, "knight: %s\n", result.Error)
		return 1
	}
	return 0
}
