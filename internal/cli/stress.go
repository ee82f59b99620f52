package cli

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/common/expfmt"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

// stressCounts are totals across all workers.
type stressCounts struct {
	lookups     atomic.Int64
	hits        atomic.Int64
	suggestions atomic.Int64
	accepted    atomic.Int64
	dropped     atomic.Int64
	marks       atomic.Int64
}

type stressOptions struct {
	instances int
	readers   int
	writers   int
	duration  time.Duration
	markEvery int
	metrics   bool
}

// StressCmd returns the stress command.
func StressCmd(a *app) *Command {
	fs := flag.NewFlagSet("stress", flag.ContinueOnError)

	var opts stressOptions

	fs.IntVar(&opts.instances, "instances", 4, "Dictionary instances sharing the file")
	fs.IntVar(&opts.readers, "readers", 4, "Concurrent lookup workers")
	fs.IntVar(&opts.writers, "writers", 2, "Concurrent mutation workers")
	fs.DurationVarP(&opts.duration, "duration", "d", time.Second, "How long to run")
	fs.IntVar(&opts.markEvery, "mark-every", 50, "Writer operations between reload requests")
	fs.BoolVar(&opts.metrics, "metrics", false, "Print controller metrics afterwards")

	return &Command{
		Flags: fs,
		Usage: "stress <dict> [flags]",
		Short: "Exercise one dictionary from many goroutines",
		Long: "Open several instances of one dictionary and run lookups, mutations and\n" +
			"reload requests against them concurrently, then print totals. Mutations\n" +
			"dropped under contention are expected and counted.",
		Args: ExactArgs(1),
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execStress(ctx, a, o, args[0], opts)
		},
	}
}

func execStress(ctx context.Context, a *app, o *IO, name string, opts stressOptions) error {
	if opts.instances < 1 || opts.readers < 0 || opts.writers < 0 || opts.markEvery < 1 {
		return fmt.Errorf("%w: instances must be >= 1, workers >= 0, mark-every >= 1", ErrInvalidOption)
	}

	handles := make([]*handle, 0, opts.instances)

	defer func() {
		for _, h := range handles {
			_ = h.Close()
		}
	}()

	for range opts.instances {
		h, err := a.openSynced(name)
		if err != nil {
			return err
		}

		handles = append(handles, h)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	var counts stressCounts

	g, ctx := errgroup.WithContext(ctx)

	for i := range opts.readers {
		h := handles[i%len(handles)]

		g.Go(func() error {
			return stressReader(ctx, h, &counts)
		})
	}

	for i := range opts.writers {
		h := handles[i%len(handles)]

		g.Go(func() error {
			return stressWriter(ctx, h, i, opts.markEvery, &counts)
		})
	}

	err := g.Wait()
	if err != nil && !isCanceled(err) {
		return err
	}

	for _, h := range handles {
		h.SyncReloadIfRequired()

		if err := h.Err(); err != nil {
			o.Warn(fmt.Sprintf("instance of %s failed: %v", name, err), "run check and build")
		}
	}

	o.Printf("lookups=%d hits=%d suggestions=%d\n", counts.lookups.Load(), counts.hits.Load(), counts.suggestions.Load())
	o.Printf("mutations accepted=%d dropped=%d\n", counts.accepted.Load(), counts.dropped.Load())
	o.Printf("reload requests=%d\n", counts.marks.Load())

	if opts.metrics {
		return printMetrics(a, o)
	}

	return nil
}

var stressPrefixes = []string{"a", "b", "c", "de", "st", "th", "w"}

func stressReader(ctx context.Context, h *handle, counts *stressCounts) error {
	for ctx.Err() == nil {
		prefix := stressPrefixes[rand.IntN(len(stressPrefixes))]

		counts.lookups.Add(1)

		if h.IsValidWord(prefix) {
			counts.hits.Add(1)
		}

		if len(h.Suggestions(dictfile.Query{Prefix: prefix, Limit: 5})) > 0 {
			counts.suggestions.Add(1)
		}
	}

	return nil
}

func stressWriter(ctx context.Context, h *handle, id, markEvery int, counts *stressCounts) error {
	for n := 0; ctx.Err() == nil; n++ {
		if h.IsUpdatable() {
			word := fmt.Sprintf("%s%d%c", stressPrefixes[n%len(stressPrefixes)], id, 'a'+rune(n%26))

			if h.AddWordDynamically(word, "", 1+n%100, false) {
				counts.accepted.Add(1)
			} else {
				counts.dropped.Add(1)
			}
		}

		if n%markEvery == markEvery-1 {
			if h.history != nil {
				h.history.Touch()
			}

			h.MarkRequiresReload()
			counts.marks.Add(1)
		}
	}

	return nil
}

// printMetrics writes the app's metrics registry in the Prometheus text
// exposition format.
func printMetrics(a *app, o *IO) error {
	families, err := a.promReg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	var buf strings.Builder

	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))

	for _, mf := range families {
		err = enc.Encode(mf)
		if err != nil {
			return fmt.Errorf("encoding metrics: %w", err)
		}
	}

	o.Printf("%s", buf.String())

	return nil
}
