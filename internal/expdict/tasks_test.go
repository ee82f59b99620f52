package expdict_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dictcache/internal/expdict"
	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

func Test_AsyncWriteBinary_Runs_Only_Latest_When_Called_In_Burst(t *testing.T) {
	t.Parallel()

	w := newCountingWriter()
	metrics := expdict.NewMetrics(prometheus.NewRegistry())
	d := newTestDict(t, expdict.Options{Updatable: true, Writer: w, Metrics: metrics})

	release := d.HoldSharedLock()

	d.AsyncWriteBinary()
	d.AsyncWriteBinary()
	d.AsyncWriteBinary()

	release()
	d.WaitTasks()

	if got := w.writes.Load(); got != 1 {
		t.Fatalf("writes = %d, want 1", got)
	}

	if got := testutil.ToFloat64(metrics.WritesSuperseded.WithLabelValues("user")); got != 2 {
		t.Fatalf("superseded = %v, want 2", got)
	}

	if got := testutil.ToFloat64(metrics.Rebuilds.WithLabelValues("user", expdict.ReasonWriteTask)); got != 1 {
		t.Fatalf("write task rebuilds = %v, want 1", got)
	}
}

func Test_AsyncWriteBinary_Persists_Writer_Without_Remapping_When_Done(t *testing.T) {
	t.Parallel()

	d := newTestDict(t, expdict.Options{Updatable: true})

	d.SyncReloadIfRequired()
	d.AddWordBlocking("fresh", "", 9, false)

	d.AsyncWriteBinary()
	d.WaitTasks()

	require.NoError(t, d.Err())

	if d.IsValidWord("fresh") {
		t.Fatal("write task must not swap the snapshot")
	}

	snap, err := dictfile.Open(d.Path(), 0, 0, dictfile.Options{})
	require.NoError(t, err)

	defer func() { _ = snap.Close() }()

	if !snap.IsValidWord("fresh") {
		t.Fatal("written file should contain fresh")
	}
}
