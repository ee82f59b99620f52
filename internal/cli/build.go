package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

// BuildCmd returns the build command.
func BuildCmd(a *app) *Command {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	force := fs.BoolP("force", "f", false, "Rewrite the dictionary file even if the source is unchanged")

	return &Command{
		Flags: fs,
		Usage: "build [dict...] [flags]",
		Short: "Build dictionary files from their sources",
		Long: "Bring dictionary files up to date. Without arguments every configured\n" +
			"dictionary is built. Missing, corrupt and outdated files are rewritten.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execBuild(a, o, args, *force)
		},
	}
}

func execBuild(a *app, o *IO, names []string, force bool) error {
	if len(names) == 0 {
		for _, d := range a.cfg.Dictionaries {
			names = append(names, d.Name)
		}
	}

	if len(names) == 0 {
		return ErrNoDictionaries
	}

	for _, name := range names {
		err := buildOne(a, o, name, force)
		if err != nil {
			return err
		}
	}

	return nil
}

func buildOne(a *app, o *IO, name string, force bool) error {
	conf, err := a.cfg.Dictionary(name)
	if err != nil {
		return err
	}

	// Updatable dictionaries have nothing to rebuild from except the file
	// itself, so force would only discard history.
	if force && !conf.Updatable {
		err = a.fs.Remove(a.dictPath(name))
		if err != nil && !dictfile.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", a.dictPath(name), err)
		}
	}

	h, err := a.open(name)
	if err != nil {
		return err
	}

	defer func() { _ = h.Close() }()

	h.MarkRequiresReload()
	h.SyncReloadIfRequired()

	err = h.Err()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDictionaryError, name, err)
	}

	info, ok := h.Info()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSnapshotMissing, name)
	}

	o.Printf("%s\t%s\tunigrams=%d bigrams=%d size=%d\n", name, info.Path, info.Unigrams, info.Bigrams, info.Size)

	return nil
}
