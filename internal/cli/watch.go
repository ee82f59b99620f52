package cli

import (
	"context"
	"sync"

	"github.com/calvinalkan/dictcache/internal/watch"
)

// WatchCmd returns the watch command.
func WatchCmd(a *app) *Command {
	return &Command{
		Usage: "watch [dict...]",
		Short: "Rebuild dictionaries when their word lists change",
		Long: "Watch the word list of each dictionary (all word list dictionaries by\n" +
			"default) and rebuild the dictionary file after every change, until\n" +
			"interrupted.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execWatch(ctx, a, o, args)
		},
	}
}

func execWatch(ctx context.Context, a *app, o *IO, names []string) error {
	if len(names) == 0 {
		for _, d := range a.cfg.Dictionaries {
			if d.SourceAbs != "" {
				names = append(names, d.Name)
			}
		}
	}

	// Several dictionaries may be built from the same word list.
	bySource := make(map[string][]*handle, len(names))
	watched := 0

	defer func() {
		for _, hs := range bySource {
			for _, h := range hs {
				_ = h.Close()
			}
		}
	}()

	for _, name := range names {
		h, err := a.openSynced(name)
		if err != nil {
			return err
		}

		if h.words == nil {
			_ = h.Close()

			o.Warn(name+" has no word list", "only word list dictionaries can be watched")

			continue
		}

		bySource[h.words.Path()] = append(bySource[h.words.Path()], h)
		watched++
	}

	if len(bySource) == 0 {
		return ErrNoWordLists
	}

	paths := make([]string, 0, len(bySource))
	for p := range bySource {
		paths = append(paths, p)
	}

	// mu serializes rebuilds and lets shutdown wait for a running one.
	var (
		mu      sync.Mutex
		stopped bool
	)

	w, err := watch.New(paths,
		watch.WithDebounce(a.cfg.WatchDebounceDur),
		watch.WithLogger(a.log),
		watch.WithOnError(func(err error) {
			o.ErrPrintln("watch error:", err)
		}),
		watch.WithOnChange(func(path string) {
			mu.Lock()
			defer mu.Unlock()

			if stopped {
				return
			}

			for _, h := range bySource[path] {
				rebuildWatched(o, h)
			}
		}),
	)
	if err != nil {
		return err
	}

	err = w.Start()
	if err != nil {
		return err
	}

	o.Printf("watching %d dictionaries\n", watched)

	<-ctx.Done()

	w.Stop()

	mu.Lock()
	stopped = true
	mu.Unlock()

	return nil
}

func rebuildWatched(o *IO, h *handle) {
	h.MarkRequiresReload()
	h.SyncReloadIfRequired()

	if err := h.Err(); err != nil {
		o.ErrPrintln("error:", h.conf.Name+":", err)

		return
	}

	info, _ := h.Info()
	o.Printf("rebuilt %s unigrams=%d bigrams=%d\n", h.conf.Name, info.Unigrams, info.Bigrams)
}
