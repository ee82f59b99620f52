package cli

import (
	"context"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/dictcache/internal/expdict"
)

// AddCmd returns the add command.
func AddCmd(a *app) *Command {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	freq := fs.Int("freq", 1, "Word frequency")
	shortcut := fs.String("shortcut", "", "Shortcut target suggested with the word")
	notAWord := fs.Bool("not-a-word", false, "Store the entry only as a shortcut carrier")
	prev := fs.StringP("prev", "p", "", "Also add the bigram (prev, word)")

	return &Command{
		Flags: fs,
		Usage: "add <dict> <word> [flags]",
		Short: "Add a word to an updatable dictionary",
		Long: "Add a word (and optionally a bigram ending in it) to an updatable\n" +
			"dictionary, then rewrite its file.",
		Args: ExactArgs(2),
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execMutate(a, o, args[0], func(h *handle) bool {
				ok := h.AddWordBlocking(args[1], *shortcut, *freq, *notAWord)
				if ok && *prev != "" {
					ok = h.AddBigramBlocking(*prev, args[1], *freq, time.Now().Unix())
				}

				return ok
			})
		},
	}
}

// RemoveBigramCmd returns the remove-bigram command.
func RemoveBigramCmd(a *app) *Command {
	return &Command{
		Usage: "remove-bigram <dict> <prev> <word>",
		Short: "Remove a bigram from an updatable dictionary",
		Args:  ExactArgs(3),
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execMutate(a, o, args[0], func(h *handle) bool {
				return h.RemoveBigramBlocking(args[1], args[2])
			})
		},
	}
}

func execMutate(a *app, o *IO, name string, mutate func(h *handle) bool) error {
	conf, err := a.cfg.Dictionary(name)
	if err != nil {
		return err
	}

	if !conf.Updatable {
		return fmt.Errorf("%w: %s", expdict.ErrNotUpdatable, name)
	}

	h, err := a.openSynced(name)
	if err != nil {
		return err
	}

	defer func() { _ = h.Close() }()

	if !mutate(h) {
		return fmt.Errorf("%w: %s: mutation rejected", ErrDictionaryError, name)
	}

	err = h.persist()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDictionaryError, name, err)
	}

	info, _ := h.Info()
	o.Printf("%s: unigrams=%d bigrams=%d\n", name, info.Unigrams, info.Bigrams)

	return nil
}
