package cli

import "errors"

// Usage errors.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingArg     = errors.New("missing argument")
	ErrTooManyArgs    = errors.New("too many arguments")
	ErrInvalidRow     = errors.New("invalid row index")
	ErrInvalidSource  = errors.New("invalid source: want a container path or @name:task")
	ErrInvalidTask    = errors.New("invalid --task: want task=path")
	ErrFlagRequired   = errors.New("required flag not set")
)
