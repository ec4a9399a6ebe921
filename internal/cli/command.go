package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines a CLI command with unified help generation.
type Command struct {
	// Flags defines command-specific flags.
	// The FlagSet name is not used - command identity comes from Usage.
	Flags *flag.FlagSet

	// Usage is the freeform usage string shown after "dbc" in help.
	// Includes the command name and arguments/flags.
	// Examples: "info <name>", "rm <name> [--delete-data]"
	Usage string

	// Short is a one-line description for the global help listing.
	Short string

	// Long is the full description shown in command help.
	// If empty, Short is used instead.
	Long string

	// Exec runs the command after flags are parsed.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine returns the short help line for the main usage display.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-40s %s", c.Usage, c.Short)
}

// PrintHelp prints the full help output for "dbc <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	c.writeHelp(o.out)
}

func (c *Command) writeHelp(w io.Writer) {
	fprintln(w, "Usage: dbc", c.Usage)
	fprintln(w)

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	fprintln(w, desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		fprintln(w)
		fprintln(w, "Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		_, _ = io.WriteString(w, buf.String())
	}
}

// Run parses flags and executes the command. Returns exit code.
// Handles error printing internally for consistent output ordering.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{}) // discard pflag output

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)

			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.writeHelp(o.errOut)

		return 1
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return o.Finish()
}

// exactArgs returns an error unless args has n elements.
func exactArgs(args []string, n int, names ...string) error {
	if len(args) < n {
		return fmt.Errorf("%w: %s", ErrMissingArg, strings.Join(names[len(args):], ", "))
	}

	if len(args) > n {
		return fmt.Errorf("%w: %s", ErrTooManyArgs, strings.Join(args[n:], " "))
	}

	return nil
}

// minArgs returns an error unless args has at least n elements.
func minArgs(args []string, n int, names ...string) error {
	if len(args) < n {
		return fmt.Errorf("%w: %s", ErrMissingArg, strings.Join(names[len(args):], ", "))
	}

	return nil
}
