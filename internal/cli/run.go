// Package cli implements the dbc command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/dbcollection/internal/config"
	"github.com/calvinalkan/dbcollection/internal/logging"
	"github.com/calvinalkan/dbcollection/pkg/fs"
	"github.com/calvinalkan/dbcollection/pkg/registry"
)

// Run is the main entry point. Returns exit code.
//
// SIGINT/SIGTERM on sigCh cancel the context passed to commands. sigCh may be
// nil.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	globals := newGlobalFlags()

	err := globals.set.Parse(args[min(1, len(args)):])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(out, nil)

			return 0
		}

		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, nil)

		return 1
	}

	rest := globals.set.Args()
	if len(rest) == 0 {
		printUsage(out, nil)

		return 0
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDir:          env["PWD"],
		ConfigPath:       globals.configPath,
		RegistryOverride: globals.registryPath,
		Env:              env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	a := &app{
		cfg: cfg,
		log: logging.New(errOut, globals.verbose),
		fs:  fs.NewReal(),
		in:  in,
	}

	commands := a.commands()

	name := rest[0]
	if name == "help" {
		printUsage(out, commands)

		return 0
	}

	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd.Run(ctx, NewIO(out, errOut), rest[1:])
		}
	}

	fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, name))
	fprintln(errOut)
	printUsage(errOut, commands)

	return 1
}

type globalFlags struct {
	set          *flag.FlagSet
	configPath   string
	registryPath string
	verbose      bool
}

func newGlobalFlags() *globalFlags {
	g := &globalFlags{set: flag.NewFlagSet("dbc", flag.ContinueOnError)}

	g.set.SetOutput(io.Discard)
	g.set.SetInterspersed(false)
	g.set.StringVarP(&g.configPath, "config", "c", "", "Use specified config file")
	g.set.StringVar(&g.registryPath, "registry", "", "Use specified registry file")
	g.set.BoolVarP(&g.verbose, "verbose", "v", false, "Log debug events to stderr")

	return g
}

// app carries the resolved configuration shared by all commands.
type app struct {
	cfg config.Config
	log *logrus.Logger
	fs  fs.FS
	in  io.Reader

	reg *registry.Registry
}

// registry opens the registry on first use, creating the file when
// missing.
func (a *app) registry() (*registry.Registry, error) {
	if a.reg != nil {
		return a.reg, nil
	}

	reg, err := registry.Open(registry.Options{
		Path: a.cfg.Registry,
		Defaults: registry.Info{
			DefaultCacheDir: a.cfg.DefaultCacheDir,
			DefaultDataDir:  a.cfg.DefaultDataDir,
		},
		FS:     a.fs,
		Logger: a.log,
	})
	if err != nil {
		return nil, err
	}

	a.reg = reg

	return reg, nil
}

func (a *app) commands() []*Command {
	return []*Command{
		LsCmd(a),
		InfoCmd(a),
		PathsCmd(a),
		AddCmd(a),
		SetCmd(a),
		RmCmd(a),
		ExtractCmd(a),
		SetsCmd(a.openSource, sourceArg),
		FieldsCmd(a.openSource, sourceArg),
		GetCmd(a.openSource, sourceArg),
		ObjectCmd(a.openSource, sourceArg),
		SizeCmd(a.openSource, sourceArg),
		ShellCmd(a),
		PrintConfigCmd(a),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, commands []*Command) {
	if commands == nil {
		commands = (&app{}).commands()
	}

	fprintln(w, `dbc - dataset cache and container access

Usage: dbc [global flags] <command> [args]

Global flags:`)

	var buf strings.Builder

	g := newGlobalFlags()
	g.set.SetOutput(&buf)
	g.set.PrintDefaults()
	fprintln(w, strings.TrimRight(buf.String(), "\n"))
	fprintln(w, "  -h, --help                 Show help")
	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}

	fprintln(w)
	fprintln(w, `A <source> is a container file path or @name:task of a registered dataset.
Run "dbc <command> --help" for command flags.`)
}
