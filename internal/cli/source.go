package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/calvinalkan/dbcollection/pkg/container"
	"github.com/calvinalkan/dbcollection/pkg/dataset"
)

// sourceArg is the positional argument naming the container in usage lines.
const sourceArg = "<source>"

// sourceFunc yields the reader an accessor command works on. It may consume
// leading args and returns the rest; release must be called when done.
type sourceFunc func(args []string) (r *container.Reader, rest []string, release func(), err error)

// openSource opens args[0] as a container path or, for "@name:task", the
// task container of a registered dataset.
func (a *app) openSource(args []string) (*container.Reader, []string, func(), error) {
	if len(args) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrMissingArg, sourceArg)
	}

	source := args[0]

	ref, isDataset := strings.CutPrefix(source, "@")
	if !isDataset {
		a.log.WithField("path", source).Debug("opening container")

		r, err := container.Open(source)
		if err != nil {
			return nil, nil, nil, err
		}

		return r, args[1:], func() { _ = r.Close() }, nil
	}

	name, task, ok := strings.Cut(ref, ":")
	if !ok || name == "" || task == "" {
		return nil, nil, nil, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}

	reg, err := a.registry()
	if err != nil {
		return nil, nil, nil, err
	}

	ld, err := dataset.Load(reg, name, task)
	if err != nil {
		return nil, nil, nil, err
	}

	a.log.WithFields(logrus.Fields{"dataset": name, "task": task, "path": ld.CachePath}).Debug("opened dataset")

	return ld.Reader, args[1:], func() { _ = ld.Close() }, nil
}

// fixedSource serves a reader that is already open.
func fixedSource(r *container.Reader) sourceFunc {
	return func(args []string) (*container.Reader, []string, func(), error) {
		return r, args, func() {}, nil
	}
}

// parseIndex turns row arguments into an index: none selects everything,
// one row selects that row, several rows are stacked.
func parseIndex(args []string) (container.Index, error) {
	if len(args) == 0 {
		return nil, nil
	}

	rows := make([]int, len(args))

	for i, arg := range args {
		row, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRow, arg)
		}

		rows[i] = row
	}

	if len(rows) == 1 {
		return container.At(rows[0]), nil
	}

	return container.Rows(rows...), nil
}
