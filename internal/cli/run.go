// Package cli implements the dictctl command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/dictcache/internal/config"
	"github.com/calvinalkan/dictcache/internal/logging"
)

// Run is the main entry point. Returns exit code.
//
// The first signal on sigCh cancels the running command; long-running
// commands (watch, stress, repl) stop and return normally. sigCh may be nil.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := flag.NewFlagSet("dictctl", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	flagCwd := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globals.StringP("config", "c", "", "Use specified config `file`")
	flagStorageDir := globals.String("storage-dir", "", "Override storage `dir` for dictionary files")
	flagLocale := globals.String("locale", "", "Override dictionary `locale`")
	flagLogLevel := globals.String("log-level", "", "Log `level` (trace, debug, info, warn, error, none)")
	flagHelp := globals.BoolP("help", "h", false, "Show help")

	if len(args) > 0 {
		args = args[1:]
	}

	err := globals.Parse(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, globals, nil)

		return 1
	}

	var storageOverride *string
	if globals.Changed("storage-dir") {
		storageOverride = flagStorageDir
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride:    *flagCwd,
		ConfigPath:         *flagConfig,
		StorageDirOverride: storageOverride,
		LocaleOverride:     *flagLocale,
		LogLevelOverride:   *flagLogLevel,
		Env:                env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, globals, nil)

		return 1
	}

	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: errOut}).
		WithField("pid", os.Getpid())

	commands := allCommands(newApp(&cfg, log))

	rest := globals.Args()
	if *flagHelp || len(rest) == 0 {
		printUsage(out, globals, commands)

		return 0
	}

	var cmd *Command

	for _, c := range commands {
		if c.Name() == rest[0] {
			cmd = c

			break
		}
	}

	if cmd == nil {
		fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, rest[0]))
		printUsage(errOut, globals, commands)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	o := NewIO(in, out, errOut)

	code := cmd.Run(ctx, o, rest[1:])
	if code != 0 {
		return code
	}

	return o.Finish()
}

func allCommands(a *app) []*Command {
	return []*Command{
		BuildCmd(a),
		CheckCmd(a),
		InfoCmd(a),
		LookupCmd(a),
		SuggestCmd(a),
		AddCmd(a),
		RemoveBigramCmd(a),
		ExportCmd(a),
		WatchCmd(a),
		ReplCmd(a),
		StressCmd(a),
		PrintConfigCmd(a.cfg),
	}
}

func printUsage(w io.Writer, globals *flag.FlagSet, commands []*Command) {
	fprintln(w, "Usage: dictctl [global flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Maintains memory-mapped dictionary files shared by many instances.")

	if len(commands) > 0 {
		fprintln(w)
		fprintln(w, "Commands:")

		for _, c := range commands {
			fprintln(w, c.HelpLine())
		}
	}

	fprintln(w)
	fprintln(w, "Global flags:")
	fprintln(w, strings.TrimRight(globals.FlagUsages(), "\n"))
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

// isCanceled reports whether err only signals that ctx was canceled.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
