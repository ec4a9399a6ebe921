package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/dbcollection/internal/extract"
)

// ExtractCmd returns the extract command.
func ExtractCmd(a *app) *Command {
	flags := flag.NewFlagSet("extract", flag.ContinueOnError)
	remove := flags.Bool("remove", false, "Delete the archive after extraction")

	return &Command{
		Flags: flags,
		Usage: "extract <archive> <dir> [--remove]",
		Short: "Extract a dataset archive",
		Long: `Extract a tar, tar.gz, tgz, tar.bz2 or zip archive into dir. The format
is chosen by the archive's extension.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := exactArgs(args, 2, "<archive>", "<dir>"); err != nil {
				return err
			}

			a.log.WithField("archive", args[0]).Debug("extracting")

			err := extract.File(args[0], args[1], *remove)
			if err != nil {
				return err
			}

			o.Println("Extracted", args[0], "to", args[1])

			return nil
		},
	}
}
