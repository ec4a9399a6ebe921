package cli

import (
	"fmt"
	"io"
)

// IO is the output of one command. Warnings go to stderr twice, before the
// first line of output and after the last, so they survive scrolling.
type IO struct {
	out      io.Writer
	errOut   io.Writer
	warnings []string
	flushed  bool
}

// NewIO returns an IO writing to out and errOut.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Sub returns a fresh IO on the same writers. Warnings of the child do not
// affect the parent.
func (o *IO) Sub() *IO {
	return NewIO(o.out, o.errOut)
}

// Warn records a non-fatal problem. A command with warnings exits 1.
func (o *IO) Warn(issue string, detail string) {
	o.warnings = append(o.warnings, issue+": "+detail)
}

// Println writes a line to stdout.
func (o *IO) Println(a ...any) {
	o.flushWarnings()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	o.flushWarnings()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes a line to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Out returns the stdout writer.
func (o *IO) Out() io.Writer {
	return o.out
}

// Finish repeats the warnings on stderr and returns the exit code.
func (o *IO) Finish() int {
	o.flushWarnings()

	if len(o.warnings) == 0 {
		return 0
	}

	o.printWarnings()

	return 1
}

func (o *IO) flushWarnings() {
	if o.flushed || len(o.warnings) == 0 {
		return
	}

	o.flushed = true
	o.printWarnings()
}

func (o *IO) printWarnings() {
	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}
}
