package cli

import (
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/dbcollection/pkg/container"
)

// Accessor commands work on a container given by src. With a non-empty
// srcUsage the command takes the source as its first argument; the shell
// passes an empty srcUsage and a fixed source.

func usageLine(name, srcUsage, rest string) string {
	parts := []string{name}
	if srcUsage != "" {
		parts = append(parts, srcUsage)
	}

	if rest != "" {
		parts = append(parts, rest)
	}

	return strings.Join(parts, " ")
}

// withSource opens the source, runs fn on the remaining args and releases
// the source.
func withSource(src sourceFunc, args []string, fn func(r *container.Reader, args []string) error) error {
	r, rest, release, err := src(args)
	if err != nil {
		return err
	}

	defer release()

	return fn(r, rest)
}

// SetsCmd returns the sets command.
func SetsCmd(src sourceFunc, srcUsage string) *Command {
	return &Command{
		Flags: flag.NewFlagSet("sets", flag.ContinueOnError),
		Usage: usageLine("sets", srcUsage, ""),
		Short: "List sets",
		Long:  "List the set names of the container, one per line, followed by the object fields if any.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			return withSource(src, args, func(r *container.Reader, rest []string) error {
				if err := exactArgs(rest, 0); err != nil {
					return err
				}

				for _, set := range r.Sets() {
					o.Println(set)
				}

				if fields := r.ObjectFields(); len(fields) > 0 {
					o.Println()
					o.Println("# object fields:", strings.Join(fields, ", "))
				}

				return nil
			})
		},
	}
}

// FieldsCmd returns the fields command.
func FieldsCmd(src sourceFunc, srcUsage string) *Command {
	return &Command{
		Flags: flag.NewFlagSet("fields", flag.ContinueOnError),
		Usage: usageLine("fields", srcUsage, "<set>"),
		Short: "List fields of a set",
		Long:  "List the field names of a set with their type and shape, one per line.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			return withSource(src, args, func(r *container.Reader, rest []string) error {
				if err := exactArgs(rest, 1, "<set>"); err != nil {
					return err
				}

				set := rest[0]

				fields, err := r.Fields(set)
				if err != nil {
					return err
				}

				for _, field := range fields {
					shape, err := r.Shape(set, field)
					if err != nil {
						return err
					}

					o.Printf("%s\t%v\n", field, shape)
				}

				return nil
			})
		},
	}
}

// GetCmd returns the get command.
func GetCmd(src sourceFunc, srcUsage string) *Command {
	flags := flag.NewFlagSet("get", flag.ContinueOnError)
	text := flags.BoolP("text", "t", false, "Decode uint8 character codes as text")

	return &Command{
		Flags: flags,
		Usage: usageLine("get", srcUsage, "<set> <field> [row...]"),
		Short: "Print a field or rows of it",
		Long: `Print a field. Without rows the whole array is printed; one row prints
that row, several rows are printed stacked in the given order. Negative rows
count from the end and must follow "--".`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return withSource(src, args, func(r *container.Reader, rest []string) error {
				if err := minArgs(rest, 2, "<set>", "<field>"); err != nil {
					return err
				}

				idx, err := parseIndex(rest[2:])
				if err != nil {
					return err
				}

				arr, err := r.Get(rest[0], rest[1], idx)
				if err != nil {
					return err
				}

				return printArray(o, arr, *text)
			})
		},
	}
}

// ObjectCmd returns the object command.
func ObjectCmd(src sourceFunc, srcUsage string) *Command {
	flags := flag.NewFlagSet("object", flag.ContinueOnError)
	values := flags.Bool("values", false, "Resolve object ids to field values")

	return &Command{
		Flags: flags,
		Usage: usageLine("object", srcUsage, "<set> <row>... [--values]"),
		Short: "Print objects by row",
		Long: `Print the object id vectors at the given rows. With --values every id is
resolved to the row of its object field.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return withSource(src, args, func(r *container.Reader, rest []string) error {
				if err := minArgs(rest, 2, "<set>", "<row>"); err != nil {
					return err
				}

				idx, err := parseIndex(rest[1:])
				if err != nil {
					return err
				}

				res, err := r.GetObject(rest[0], idx, *values)
				if err != nil {
					return err
				}

				switch {
				case res.IDs != nil:
					o.Println(res.IDs.String())
				case res.Tuple != nil:
					printObject(o, r.ObjectFields(), res.Tuple, "")
				default:
					for i, obj := range res.Tuples {
						o.Printf("[%d]\n", i)
						printObject(o, r.ObjectFields(), obj, "  ")
					}
				}

				return nil
			})
		},
	}
}

// SizeCmd returns the size command.
func SizeCmd(src sourceFunc, srcUsage string) *Command {
	flags := flag.NewFlagSet("size", flag.ContinueOnError)
	full := flags.Bool("full", false, "Print the full shape")

	return &Command{
		Flags: flags,
		Usage: usageLine("size", srcUsage, "<set> [field] [--full]"),
		Short: "Print the number of rows",
		Long:  "Print the length of a field's first dimension. Without field, the number of objects.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			return withSource(src, args, func(r *container.Reader, rest []string) error {
				if err := minArgs(rest, 1, "<set>"); err != nil {
					return err
				}

				if len(rest) > 2 {
					return fmt.Errorf("%w: %s", ErrTooManyArgs, strings.Join(rest[2:], " "))
				}

				field := ""
				if len(rest) == 2 {
					field = rest[1]
				}

				if *full {
					shape, err := r.Shape(rest[0], field)
					if err != nil {
						return err
					}

					o.Println(fmt.Sprint(shape))

					return nil
				}

				n, err := r.Size(rest[0], field)
				if err != nil {
					return err
				}

				o.Println(n)

				return nil
			})
		},
	}
}

func printArray(o *IO, arr *container.Array, text bool) error {
	if !text {
		o.Println(arr.String())

		return nil
	}

	switch arr.Ndim() {
	case 1:
		s, err := arr.Text()
		if err != nil {
			return err
		}

		o.Println(s)
	default:
		strs, err := arr.Strings()
		if err != nil {
			return err
		}

		for _, s := range strs {
			o.Println(s)
		}
	}

	return nil
}

func printObject(o *IO, fields []string, obj container.Object, indent string) {
	for k, v := range obj {
		o.Printf("%s%s: %s\n", indent, fields[k], v)
	}
}
