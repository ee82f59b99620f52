package cli

import (
	"context"
)

// LookupCmd returns the lookup command.
func LookupCmd(a *app) *Command {
	return &Command{
		Usage: "lookup <dict> <word> [next]",
		Short: "Check whether a word or word pair is valid",
		Long: "Print \"valid\" or \"invalid\" for a word, or for the bigram (word, next)\n" +
			"when next is given. Invalid words exit non-zero.",
		Args: RangeArgs(2, 3),
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execLookup(a, o, args)
		},
	}
}

func execLookup(a *app, o *IO, args []string) error {
	h, err := a.openSynced(args[0])
	if err != nil {
		return err
	}

	defer func() { _ = h.Close() }()

	var valid bool

	if len(args) == 3 {
		valid = h.IsValidBigram(args[1], args[2])
	} else {
		valid = h.IsValidWord(args[1])
	}

	if !valid {
		o.Println("invalid")
		o.Warn("not found", "check spelling or build the dictionary again")

		return nil
	}

	o.Println("valid")

	return nil
}
