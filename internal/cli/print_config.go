package cli

import (
	"context"
	"strings"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and where it was loaded from.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := exactArgs(args, 0); err != nil {
				return err
			}

			return execPrintConfig(o, a)
		},
	}
}

func execPrintConfig(o *IO, a *app) error {
	cfg := a.cfg

	o.Println("registry=" + cfg.Registry)
	o.Println("default_cache_dir=" + cfg.DefaultCacheDir)
	o.Println("default_data_dir=" + cfg.DefaultDataDir)

	o.Println("")
	o.Println("# sources")

	src := cfg.Sources
	if src.Global == "" && src.Explicit == "" && len(src.Env) == 0 {
		o.Println("(defaults only)")

		return nil
	}

	if src.Global != "" {
		o.Println("global_config=" + src.Global)
	}

	if src.Explicit != "" {
		o.Println("explicit_config=" + src.Explicit)
	}

	if len(src.Env) > 0 {
		o.Println("env=" + strings.Join(src.Env, ","))
	}

	return nil
}
