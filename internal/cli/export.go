package cli

import (
	"context"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/dictcache/internal/source"
	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

// ExportCmd returns the export command.
func ExportCmd(a *app) *Command {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	validOnly := fs.Bool("valid-only", false, "Skip bigrams marked invalid")

	return &Command{
		Flags: fs,
		Usage: "export <dict> [flags]",
		Short: "Print a dictionary in word list format",
		Long: "Bring the dictionary up to date and print its contents in the word list\n" +
			"format accepted as a dictionary source.",
		Args: ExactArgs(1),
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execExport(a, o, args[0], *validOnly)
		},
	}
}

func execExport(a *app, o *IO, name string, validOnly bool) error {
	h, err := a.openSynced(name)
	if err != nil {
		return err
	}

	path := h.Path()
	dictType := h.Type()

	_ = h.Close()

	snap, err := dictfile.Open(path, 0, 0, dictfile.Options{DictType: dictType, Locale: a.cfg.Locale})
	if err != nil {
		return err
	}

	defer func() { _ = snap.Close() }()

	unigrams := snap.Unigrams()
	words := make([]source.Word, 0, len(unigrams))

	for _, u := range unigrams {
		words = append(words, source.Word{
			Word:           u.Word,
			ShortcutTarget: u.ShortcutTarget,
			Frequency:      u.Frequency,
			NotAWord:       u.NotAWord,
		})
	}

	var pairs []source.Pair

	for _, b := range snap.Bigrams() {
		if validOnly && !b.Valid {
			continue
		}

		pairs = append(pairs, source.Pair{Prev: b.Prev, Word: b.Word, Frequency: b.Frequency})
	}

	var buf strings.Builder

	err = source.WriteWordList(&buf, words, pairs)
	if err != nil {
		return err
	}

	o.Printf("%s", buf.String())

	return nil
}
