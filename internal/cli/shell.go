package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/calvinalkan/dbcollection/pkg/container"
)

const (
	shellPrompt = "dbc> "
	historyName = ".dbc_history"
)

// ShellCmd returns the shell command.
func ShellCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell <source>",
		Short: "Explore a container interactively",
		Long: `Open a container and read accessor commands (sets, fields, get, object,
size) from the terminal without repeating the source. Lines are split like
a POSIX shell. On a terminal, line editing, history and tab completion are
available.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := exactArgs(args, 1, sourceArg); err != nil {
				return err
			}

			r, _, release, err := a.openSource(args)
			if err != nil {
				return err
			}

			defer release()

			sh := &shell{reader: r, o: o, history: filepath.Join(a.cfg.Home, historyName)}

			return sh.run(ctx, a.newLineReader(sh.complete))
		},
	}
}

// lineReader reads one input line per call. io.EOF ends the session.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// newLineReader uses liner when stdin is the process terminal and plain
// line scanning otherwise.
func (a *app) newLineReader(complete func(string) []string) lineReader {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) && liner.TerminalSupported() {
		l := liner.NewLiner()
		l.SetCtrlCAborts(true)
		l.SetCompleter(complete)

		return &linerReader{State: l}
	}

	return &scanReader{scanner: bufio.NewScanner(a.in)}
}

type linerReader struct {
	*liner.State

	historyPath string
}

func (l *linerReader) Prompt(prompt string) (string, error) {
	line, err := l.State.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}

	return line, err
}

func (l *linerReader) loadHistory(path string) {
	l.historyPath = path

	if f, err := os.Open(path); err == nil {
		_, _ = l.ReadHistory(f)
		_ = f.Close()
	}
}

func (l *linerReader) Close() error {
	if l.historyPath != "" {
		if f, err := os.Create(l.historyPath); err == nil {
			_, _ = l.WriteHistory(f)
			_ = f.Close()
		}
	}

	return l.State.Close()
}

type scanReader struct {
	scanner *bufio.Scanner
}

func (s *scanReader) Prompt(string) (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return s.scanner.Text(), nil
}

func (s *scanReader) AppendHistory(string) {}

func (s *scanReader) Close() error { return nil }

type shell struct {
	reader  *container.Reader
	o       *IO
	history string
}

func (sh *shell) commands() []*Command {
	src := fixedSource(sh.reader)

	return []*Command{
		SetsCmd(src, ""),
		FieldsCmd(src, ""),
		GetCmd(src, ""),
		ObjectCmd(src, ""),
		SizeCmd(src, ""),
	}
}

func (sh *shell) run(ctx context.Context, lr lineReader) (err error) {
	if l, ok := lr.(*linerReader); ok {
		l.loadHistory(sh.history)
	}

	defer func() {
		err = errors.Join(err, lr.Close())
	}()

	for ctx.Err() == nil {
		line, err := lr.Prompt(shellPrompt)
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		lr.AppendHistory(line)

		words, err := shellquote.Split(line)
		if err != nil {
			sh.o.ErrPrintln("error:", err)

			continue
		}

		if len(words) == 0 {
			continue
		}

		if done := sh.exec(ctx, words); done {
			return nil
		}
	}

	return ctx.Err()
}

// exec runs one shell line. It reports whether the session should end.
func (sh *shell) exec(ctx context.Context, words []string) bool {
	name := strings.ToLower(words[0])

	switch name {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		sh.printHelp()

		return false
	}

	for _, cmd := range sh.commands() {
		if cmd.Name() == name {
			// Errors are printed by Run; the session goes on.
			_ = cmd.Run(ctx, sh.o.Sub(), words[1:])

			return false
		}
	}

	sh.o.ErrPrintln("error:", fmt.Errorf("%w: %s (type 'help' for commands)", ErrUnknownCommand, name))

	return false
}

func (sh *shell) printHelp() {
	sh.o.Println("Commands:")

	for _, cmd := range sh.commands() {
		sh.o.Println(cmd.HelpLine())
	}

	sh.o.Println("  help                                     Show this help")
	sh.o.Println("  exit / quit / q                          Exit")
}

// complete provides tab completion for command names, set names and the
// fields of the set named on the line.
func (sh *shell) complete(line string) []string {
	words := strings.Fields(line)
	trailing := strings.HasSuffix(line, " ")

	var candidates []string

	var prefix string

	switch {
	case len(words) == 0 || (len(words) == 1 && !trailing):
		for _, cmd := range sh.commands() {
			candidates = append(candidates, cmd.Name())
		}

		candidates = append(candidates, "help", "exit")
	case len(words) == 1 || (len(words) == 2 && !trailing):
		candidates = sh.reader.Sets()
		prefix = words[0] + " "
	case len(words) == 2 || (len(words) == 3 && !trailing):
		fields, err := sh.reader.Fields(words[1])
		if err != nil {
			return nil
		}

		candidates = fields
		prefix = words[0] + " " + words[1] + " "
	default:
		return nil
	}

	partial := ""
	if !trailing && len(words) > 0 {
		partial = words[len(words)-1]
	}

	var completions []string

	for _, c := range candidates {
		if strings.HasPrefix(c, partial) {
			completions = append(completions, prefix+c)
		}
	}

	return completions
}
