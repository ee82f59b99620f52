package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

// SuggestCmd returns the suggest command.
func SuggestCmd(a *app) *Command {
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	prev := fs.StringP("prev", "p", "", "Previous word; its bigram successors rank first")
	blockOffensive := fs.Bool("block-offensive", false, "Skip zero-frequency words")
	limit := fs.IntP("limit", "n", dictfile.DefaultSuggestionLimit, "Maximum number of suggestions")

	return &Command{
		Flags: fs,
		Usage: "suggest <dict> [prefix] [flags]",
		Short: "List suggestions for a prefix",
		Long:  "Print suggestions as <word> TAB <frequency> TAB <kind>, best first.",
		Args:  RangeArgs(1, 2),
		Exec: func(_ context.Context, o *IO, args []string) error {
			q := dictfile.Query{PrevWord: *prev, BlockOffensive: *blockOffensive, Limit: *limit}
			if len(args) == 2 {
				q.Prefix = args[1]
			}

			return execSuggest(a, o, args[0], q)
		},
	}
}

func execSuggest(a *app, o *IO, name string, q dictfile.Query) error {
	h, err := a.openSynced(name)
	if err != nil {
		return err
	}

	defer func() { _ = h.Close() }()

	printSuggestions(o, h.Suggestions(q))

	return nil
}

// printSuggestions prints each word once. A freshly built instance still
// holds the source words in its writer, so snapshot and writer may both
// answer.
func printSuggestions(o *IO, suggestions []dictfile.Suggestion) {
	seen := make(map[string]bool, len(suggestions))

	for _, s := range suggestions {
		if seen[s.Word] {
			continue
		}

		seen[s.Word] = true

		o.Printf("%s\t%d\t%s\n", s.Word, s.Frequency, s.Kind)
	}
}
