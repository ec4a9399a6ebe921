package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/dbcollection/pkg/registry"
)

// LsCmd returns the ls command.
func LsCmd(a *app) *Command {
	flags := flag.NewFlagSet("ls", flag.ContinueOnError)
	category := flags.String("category", "", "Only list datasets of this category")

	return &Command{
		Flags: flags,
		Usage: "ls [--category=X]",
		Short: "List registered datasets",
		Long: `List registered datasets as "name<TAB>category<TAB>tasks", sorted by
category then name. Tasks whose container file is missing are reported as
warnings.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := exactArgs(args, 0); err != nil {
				return err
			}

			reg, err := a.registry()
			if err != nil {
				return err
			}

			for _, e := range reg.Entries() {
				if *category != "" && e.Category != *category {
					continue
				}

				tasks := slices.Sorted(maps.Keys(e.Record.CacheFiles))
				o.Printf("%s\t%s\t%s\n", e.Name, e.Category, strings.Join(tasks, ","))

				for _, task := range tasks {
					path := e.Record.CacheFiles[task]

					exists, err := a.fs.Exists(path)
					if err != nil {
						return err
					}

					if !exists {
						o.Warn("missing cache file", fmt.Sprintf("%s:%s %s", e.Name, task, path))
					}
				}
			}

			return nil
		},
	}
}

// InfoCmd returns the info command.
func InfoCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("info", flag.ContinueOnError),
		Usage: "info <name>",
		Short: "Show a dataset record as JSON",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := exactArgs(args, 1, "<name>"); err != nil {
				return err
			}

			reg, err := a.registry()
			if err != nil {
				return err
			}

			name := args[0]

			rec, err := reg.Record(name)
			if err != nil {
				return err
			}

			category, _ := reg.Category(name)

			out := struct {
				Name     string `json:"name"`
				Category string `json:"category"`
				registry.Record
			}{Name: name, Category: category, Record: rec}

			enc := json.NewEncoder(o.Out())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")

			return enc.Encode(out)
		},
	}
}

// PathsCmd returns the paths command.
func PathsCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("paths", flag.ContinueOnError),
		Usage: "paths <name>",
		Short: "Show storage paths of a dataset",
		Long: `Show the cache and data directory of a dataset. Unregistered datasets get
the default locations below the configured default directories.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := exactArgs(args, 1, "<name>"); err != nil {
				return err
			}

			reg, err := a.registry()
			if err != nil {
				return err
			}

			paths := reg.StoragePaths(args[0])

			o.Println("cache_dir=" + paths.CacheDir)
			o.Println("data_dir=" + paths.DataDir)

			return nil
		},
	}
}

// AddCmd returns the add command.
func AddCmd(a *app) *Command {
	flags := flag.NewFlagSet("add", flag.ContinueOnError)
	category := flags.String("category", "", "Dataset category (required)")
	dataDir := flags.String("data-dir", "", "Data directory (default: registry default)")
	cacheDir := flags.String("cache-dir", "", "Cache directory (default: registry default)")
	tasks := flags.StringArray("task", nil, "Task container as task=path (repeatable)")

	return &Command{
		Flags: flags,
		Usage: "add <name> --category=C [flags]",
		Short: "Register or update a dataset",
		Long: `Register a dataset or update its record. Task containers given with --task
are merged into the existing ones; on collision the new path wins.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := exactArgs(args, 1, "<name>"); err != nil {
				return err
			}

			if *category == "" {
				return fmt.Errorf("%w: --category", ErrFlagRequired)
			}

			cacheFiles := make(map[string]string, len(*tasks))

			for _, t := range *tasks {
				task, path, ok := strings.Cut(t, "=")
				if !ok || task == "" || path == "" {
					return fmt.Errorf("%w: %q", ErrInvalidTask, t)
				}

				cacheFiles[task] = path
			}

			reg, err := a.registry()
			if err != nil {
				return err
			}

			name := args[0]
			defaults := reg.StoragePaths(name)

			if *dataDir == "" {
				*dataDir = defaults.DataDir
			}

			if *cacheDir == "" {
				*cacheDir = defaults.CacheDir
			}

			err = reg.Upsert(name, *category, *dataDir, *cacheDir, cacheFiles)
			if err != nil {
				return err
			}

			o.Println("Registered", name, "in", *category)

			return nil
		},
	}
}

// SetCmd returns the set command.
func SetCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("set", flag.ContinueOnError),
		Usage: "set <name> <field> <value>",
		Short: "Change data_dir or cache_dir of a dataset",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := exactArgs(args, 3, "<name>", "<field>", "<value>"); err != nil {
				return err
			}

			reg, err := a.registry()
			if err != nil {
				return err
			}

			err = reg.SetField(args[0], args[1], args[2])
			if err != nil {
				return err
			}

			o.Printf("%s.%s=%s\n", args[0], args[1], args[2])

			return nil
		},
	}
}

// RmCmd returns the rm command.
func RmCmd(a *app) *Command {
	flags := flag.NewFlagSet("rm", flag.ContinueOnError)
	deleteData := flags.Bool("delete-data", false, "Also delete the data directory")

	return &Command{
		Flags: flags,
		Usage: "rm <name> [--delete-data]",
		Short: "Remove a dataset",
		Long: `Delete the cache directory of a dataset and its registry record. With
--delete-data the data directory is deleted too. Removing an unregistered
dataset does nothing.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := exactArgs(args, 1, "<name>"); err != nil {
				return err
			}

			reg, err := a.registry()
			if err != nil {
				return err
			}

			name := args[0]
			if !reg.ExistsDataset(name) {
				o.Println("Not registered:", name)

				return nil
			}

			err = reg.Remove(name, *deleteData)
			if err != nil {
				return err
			}

			o.Println("Removed", name)

			return nil
		},
	}
}
