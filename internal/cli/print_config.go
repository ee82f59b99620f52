package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/dictcache/internal/config"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg *config.Config) *Command {
	return &Command{
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Args:  ExactArgs(0),
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, cfg)
		},
	}
}

func execPrintConfig(io *IO, cfg *config.Config) error {
	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("storage_dir=" + cfg.StorageDirAbs)
	io.Println("locale=" + cfg.Locale)
	io.Println("log_level=" + cfg.LogLevel)
	io.Println("log_format=" + cfg.LogFormat)
	io.Printf("cross_process_lock=%t\n", cfg.CrossProcessLocking())
	io.Println("watch_debounce=" + cfg.WatchDebounceDur.String())

	for _, d := range cfg.Dictionaries {
		line := fmt.Sprintf("dictionary=%s type=%s updatable=%t", d.Name, d.Type, d.Updatable)
		if d.SourceAbs != "" {
			line += " source=" + d.SourceAbs
		}

		io.Println(line)
	}

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
