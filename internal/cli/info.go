package cli

import (
	"context"
	"fmt"
)

// InfoCmd returns the info command.
func InfoCmd(a *app) *Command {
	return &Command{
		Usage: "info <dict>",
		Short: "Show dictionary file details",
		Long:  "Bring the dictionary up to date and print details of its mapped file.",
		Args:  ExactArgs(1),
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execInfo(a, o, args[0])
		},
	}
}

func execInfo(a *app, o *IO, name string) error {
	h, err := a.openSynced(name)
	if err != nil {
		return err
	}

	defer func() { _ = h.Close() }()

	info, ok := h.Info()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSnapshotMissing, name)
	}

	o.Println("name=" + name)
	o.Println("path=" + info.Path)
	o.Println("type=" + info.DictType)
	o.Println("locale=" + info.Locale)
	o.Printf("version=%d\n", info.Version)
	o.Printf("unigrams=%d\n", info.Unigrams)
	o.Printf("bigrams=%d\n", info.Bigrams)
	o.Printf("size=%d\n", info.Size)
	o.Printf("updatable=%t\n", h.IsUpdatable())

	if h.words != nil {
		o.Println("source=" + h.words.Path())
	}

	return nil
}
