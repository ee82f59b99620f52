package expdict_test

import (
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dictcache/internal/expdict"
	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

func Test_Open_Returns_ErrInvalidOptions_When_Required_Fields_Missing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts expdict.Options
	}{
		{name: "no dir", opts: expdict.Options{Filename: "x.dict"}},
		{name: "no filename", opts: expdict.Options{Dir: t.TempDir()}},
		{name: "filename with separator", opts: expdict.Options{Dir: t.TempDir(), Filename: "a/b.dict"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := expdict.Open(tt.opts)
			if !errors.Is(err, expdict.ErrInvalidOptions) {
				t.Fatalf("err = %v, want ErrInvalidOptions", err)
			}
		})
	}
}

func Test_AddWordDynamically_Drops_Word_When_Local_Lock_Held(t *testing.T) {
	t.Parallel()

	src := newStubSource(false)
	metrics := expdict.NewMetrics(prometheus.NewRegistry())
	d := newTestDict(t, expdict.Options{Updatable: true, Source: src, Metrics: metrics})

	d.SyncReloadIfRequired()

	release := d.HoldLocalLock()
	added := d.AddWordDynamically("lost", "", 10, false)
	release()

	if added {
		t.Fatal("AddWordDynamically should report the drop")
	}

	src.changed.Store(true)
	d.MarkRequiresReload()
	d.SyncReloadIfRequired()

	if d.IsValidWord("lost") {
		t.Fatal("dropped word must not appear")
	}

	if !d.AddWordDynamically("kept", "", 10, false) {
		t.Fatal("uncontended add should succeed")
	}

	d.MarkRequiresReload()
	d.SyncReloadIfRequired()

	if !d.IsValidWord("kept") {
		t.Fatal("kept should appear")
	}

	if got := testutil.ToFloat64(metrics.ContentionDrops.WithLabelValues("user", expdict.OpAddWord)); got != 1 {
		t.Fatalf("drops = %v, want 1", got)
	}
}

func Test_Bigram_Mutations_Are_Dropped_When_Local_Lock_Held(t *testing.T) {
	t.Parallel()

	d := newTestDict(t, expdict.Options{Updatable: true})

	release := d.HoldLocalLock()
	defer release()

	if d.AddBigramDynamically("a", "b", 1, 0) {
		t.Fatal("AddBigramDynamically should drop under contention")
	}

	if d.RemoveBigramDynamically("a", "b") {
		t.Fatal("RemoveBigramDynamically should drop under contention")
	}
}

func Test_Lookups_Return_Conservative_Answers_When_Local_Lock_Held(t *testing.T) {
	t.Parallel()

	src := newStubSource(true, "cat")
	d := newTestDict(t, expdict.Options{Source: src})

	d.SyncReloadIfRequired()

	release := d.HoldLocalLock()

	if d.IsValidWord("cat") {
		t.Fatal("IsValidWord should answer false under contention")
	}

	if got := d.Suggestions(dictfile.Query{Prefix: "c"}); got != nil {
		t.Fatalf("Suggestions = %v, want nil under contention", got)
	}

	release()

	if !d.IsValidWord("cat") {
		t.Fatal("cat should be valid once the lock is free")
	}
}

func Test_Mutations_Are_Ignored_When_Dictionary_Not_Updatable(t *testing.T) {
	t.Parallel()

	d := newTestDict(t, expdict.Options{Updatable: false})

	if d.AddWordDynamically("cat", "", 1, false) || d.AddWordBlocking("cat", "", 1, false) {
		t.Fatal("mutations on a non-updatable dictionary must be no-ops")
	}

	if d.AddBigramBlocking("a", "b", 1, 0) || d.RemoveBigramBlocking("a", "b") {
		t.Fatal("bigram mutations on a non-updatable dictionary must be no-ops")
	}

	require.NoError(t, d.Err(), "misuse is logged, not recorded")

	d.SyncReloadIfRequired()

	if d.IsValidWord("cat") {
		t.Fatal("cat should not have been added")
	}
}

func Test_Suggestions_Returns_Writer_Only_When_Updatable(t *testing.T) {
	t.Parallel()

	d := newTestDict(t, expdict.Options{Updatable: true})

	d.AddWordBlocking("cab", "", 30, false)
	d.SyncReloadIfRequired()
	d.AddWordBlocking("cat", "", 40, false)

	got := d.Suggestions(dictfile.Query{Prefix: "ca"})
	want := []dictfile.Suggestion{
		{Word: "cat", Frequency: 40, Kind: dictfile.KindUnigram},
		{Word: "cab", Frequency: 30, Kind: dictfile.KindUnigram},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("suggestions mismatch (-want +got):\n%s", diff)
	}
}

func Test_Suggestions_Returns_Snapshot_Then_Writer_When_Not_Updatable(t *testing.T) {
	t.Parallel()

	d := newTestDict(t, expdict.Options{Source: newStubSource(true, "cat", "car")})

	d.SyncReloadIfRequired()

	// The rebuild loaded cat and car into the writer as well; replace them
	// so both sides are distinguishable.
	d.Clear()
	d.AddWord("cab", "", 5, false)

	got := d.Suggestions(dictfile.Query{Prefix: "ca"})
	want := []dictfile.Suggestion{
		{Word: "car", Frequency: 100, Kind: dictfile.KindUnigram},
		{Word: "cat", Frequency: 100, Kind: dictfile.KindUnigram},
		{Word: "cab", Frequency: 5, Kind: dictfile.KindUnigram},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("suggestions mismatch (-want +got):\n%s", diff)
	}

	d.Clear()

	got = d.Suggestions(dictfile.Query{Prefix: "ca"})
	if len(got) != 2 {
		t.Fatalf("empty writer: got %v, want snapshot only", got)
	}

	got = d.Suggestions(dictfile.Query{Prefix: "zz"})
	if len(got) != 0 {
		t.Fatalf("no match: got %v", got)
	}
}

func Test_Dictionary_Is_Unusable_When_Closed(t *testing.T) {
	t.Parallel()

	d := newTestDict(t, expdict.Options{Updatable: true, Source: newStubSource(true, "cat")})

	d.SyncReloadIfRequired()

	if !d.IsValidWord("cat") {
		t.Fatal("cat should be valid before close")
	}

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	if d.IsValidWord("cat") || d.IsValidBigram("cat", "cat") {
		t.Fatal("lookups must fail after close")
	}

	if d.AddWordDynamically("dog", "", 1, false) || d.AddWordBlocking("dog", "", 1, false) {
		t.Fatal("mutations must fail after close")
	}

	if got := d.Suggestions(dictfile.Query{}); got != nil {
		t.Fatalf("Suggestions after close = %v", got)
	}

	d.MarkRequiresReload()
	d.SyncReloadIfRequired()
	d.AsyncWriteBinary()
	d.Load()

	if _, ok := d.Info(); ok {
		t.Fatal("closed dictionary must not reload")
	}

	require.ErrorIs(t, d.LoadToMemory(), expdict.ErrClosed)
}

func Test_Load_Maps_Snapshot_In_Background_When_Called(t *testing.T) {
	t.Parallel()

	d := newTestDict(t, expdict.Options{Source: newStubSource(true, "cat")})

	d.Load()
	d.WaitTasks()

	if _, err := os.Stat(d.Path()); err != nil {
		t.Fatalf("dictionary file missing after load: %v", err)
	}

	if !d.IsValidWord("cat") {
		t.Fatal("cat should be valid after Load")
	}
}

func Test_Close_Waits_For_Background_Reload_When_Called_Right_After_Load(t *testing.T) {
	t.Parallel()

	d := newTestDict(t, expdict.Options{Source: newStubSource(true, "cat")})

	d.Load()
	require.NoError(t, d.Close())

	if d.IsValidWord("cat") {
		t.Fatal("closed dictionary answered a lookup")
	}
}

func Test_LoadToMemory_Populates_Writer_When_Called(t *testing.T) {
	t.Parallel()

	src := newStubSource(false, "alpha", "beta")
	d := newTestDict(t, expdict.Options{Updatable: true, Source: src})

	d.SyncReloadIfRequired()
	require.NoError(t, d.LoadToMemory())

	got := d.Suggestions(dictfile.Query{Prefix: "al"})
	if len(got) != 1 || got[0].Word != "alpha" {
		t.Fatalf("Suggestions = %v, want alpha", got)
	}

	src.setWords("gamma")
	d.AsyncLoadToMemory()
	d.WaitTasks()

	if got := d.Suggestions(dictfile.Query{Prefix: "ga"}); len(got) != 1 {
		t.Fatalf("Suggestions = %v, want gamma", got)
	}
}
