package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/knight/compiler"
	"github.com/chazu/knight/vm"
)

const (
	historyFile = ".knight_history"
	promptMain  = ">> "
	promptCont  = ".. "
)

// lineReader is the part of liner the REPL uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// linerReader adds history persistence to a liner.State.
type linerReader struct {
	*liner.State
	histPath string
}

func newLiner() lineReader {
	ln := liner.NewLiner()
	ln.SetCtrlCAborts(true)

	r := &linerReader{State: ln}
	if home, err := os.UserHomeDir(); err == nil {
		r.histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(r.histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	return r
}

func (r *linerReader) Close() error {
	if r.histPath != "" {
		if f, err := os.Create(r.histPath); err == nil {
			_, _ = r.WriteHistory(f)
			_ = f.Close()
		}
	}
	return r.State.Close()
}

// readProgram reads lines until they form a complete program. It returns
// false at end of input.
func readProgram(lr lineReader) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := lr.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			// Ctrl-C discards the pending input.
			b.Reset()
			continue
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.TrimSpace(src) == "" || isREPLCommand(strings.TrimSpace(src)) {
			return src, true
		}
		if _, err := compiler.Parse(src); compiler.IsIncomplete(err) {
			continue
		}
		return src, true
	}
}

// runREPL reads and evaluates programs until end of input, :quit or QUIT.
// Every program runs against the same globals. It returns the exit status.
func runREPL(in *vm.Interpreter, lr lineReader, out *bufio.Writer, stderr io.Writer) int {
	defer lr.Close()

	fmt.Fprintln(out, "Knight REPL (type :help for commands, :quit to exit)")
	out.Flush()

	for {
		code, ok := readProgram(lr)
		if !ok {
			fmt.Fprintln(out)
			out.Flush()
			return 0
		}

		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		lr.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		if isREPLCommand(trimmed) {
			if quit := handleREPLCommand(in, trimmed, out, stderr); quit {
				out.Flush()
				return 0
			}
			out.Flush()
			continue
		}

		if code, exited := evalAndPrint(in, code, out, stderr); exited {
			return code
		}
	}
}

// isREPLCommand reports whether line is a meta-command such as :help. A
// colon is whitespace to Knight, so ": OUTPUT 1" is still a program.
func isREPLCommand(line string) bool {
	return len(line) > 1 && line[0] == ':' && (line[1] >= 'a' && line[1] <= 'z' || line[1] == '?')
}

// evalAndPrint runs one program and prints its value. The second result
// reports a QUIT.
func evalAndPrint(in *vm.Interpreter, source string, out *bufio.Writer, stderr io.Writer) (int, bool) {
	v, err := in.Run(source)
	if ferr := in.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	if code, ok := vm.ExitCode(err); ok {
		out.Flush()
		return code, true
	}
	if err != nil {
		out.Flush()
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 0, false
	}
	fmt.Fprintln(out, vm.Dump(v))
	out.Flush()
	return 0, false
}

// handleREPLCommand handles REPL meta-commands. It returns true for :quit.
func handleREPLCommand(in *vm.Interpreter, line string, out io.Writer, stderr io.Writer) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(out, "REPL Commands:")
		fmt.Fprintln(out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(out, "  :globals          List global variables")
		fmt.Fprintln(out, "  :save <path>      Save globals to an image")
		fmt.Fprintln(out, "  :load <path>      Replace globals with an image")
		fmt.Fprintln(out, "  :quit, :q         Exit REPL")
		fmt.Fprintln(out, "A program that is not finished continues on the next line.")
	case ":globals":
		for _, name := range in.Globals.Names() {
			v, _ := in.Globals.Get(name)
			fmt.Fprintf(out, "%s = %s\n", name, vm.Dump(v))
		}
	case ":save":
		if arg == "" {
			fmt.Fprintln(stderr, "usage: :save <path>")
			break
		}
		if err := writeImage(arg, in.Globals); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			break
		}
		fmt.Fprintf(out, "Saved %d globals to %s\n", in.Globals.Len(), arg)
	case ":load":
		if arg == "" {
			fmt.Fprintln(stderr, "usage: :load <path>")
			break
		}
		env, err := loadImage(arg)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			break
		}
		in.Globals = env
		fmt.Fprintf(out, "Loaded %d globals from %s\n", env.Len(), arg)
	case ":quit", ":q":
		return true
	default:
		fmt.Fprintf(out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
	return false
}
