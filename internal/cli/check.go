package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

// CheckCmd returns the check command.
func CheckCmd(a *app) *Command {
	return &Command{
		Usage: "check <dict>",
		Short: "Verify a dictionary file without rebuilding it",
		Long: "Map the dictionary file and verify its header, checksum and index.\n" +
			"Exits non-zero if the file is missing or damaged; run build to repair it.",
		Args: ExactArgs(1),
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execCheck(a, o, args[0])
		},
	}
}

func execCheck(a *app, o *IO, name string) error {
	conf, err := a.cfg.Dictionary(name)
	if err != nil {
		return err
	}

	path := a.dictPath(name)

	snap, err := dictfile.Open(path, 0, 0, dictfile.Options{DictType: conf.Type, Locale: a.cfg.Locale})
	if err != nil {
		if dictfile.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSnapshotMissing, path)
		}

		return err
	}

	defer func() { _ = snap.Close() }()

	err = snap.Validate()
	if err != nil {
		return err
	}

	info := snap.Info()
	o.Printf("%s: ok (version %d, %d unigrams, %d bigrams)\n", name, info.Version, info.Unigrams, info.Bigrams)

	return nil
}
