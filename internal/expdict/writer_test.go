package expdict_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dictcache/internal/expdict"
	"github.com/calvinalkan/dictcache/internal/fs"
	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

func Test_MemoryWriter_Ignores_Invalid_Words_When_Adding(t *testing.T) {
	t.Parallel()

	w := expdict.NewMemoryWriter(fs.NewReal())
	w.AddUnigram("", "", 1, false)
	w.AddUnigram(strings.Repeat("x", dictfile.MaxWordLength+1), "", 1, false)
	w.AddUnigram("ok", "", -1, false)
	w.AddBigram("a", "", 1, true, 0)

	uni, bi := w.Len()
	if uni != 0 || bi != 0 {
		t.Fatalf("Len = %d, %d; want 0, 0", uni, bi)
	}
}

func Test_MemoryWriter_Suggestions_Ranks_Bigrams_First_When_PrevWord_Given(t *testing.T) {
	t.Parallel()

	w := expdict.NewMemoryWriter(fs.NewReal())
	w.AddUnigram("cat", "", 10, false)
	w.AddUnigram("car", "", 50, false)
	w.AddUnigram("omw", "on my way", 5, true)
	w.AddBigram("the", "cat", 7, true, 0)
	w.AddBigram("the", "car", 3, false, 0)

	got := w.Suggestions(dictfile.Query{Prefix: "ca", PrevWord: "the"})
	want := []dictfile.Suggestion{
		{Word: "cat", Frequency: 7, Kind: dictfile.KindBigram},
		{Word: "car", Frequency: 50, Kind: dictfile.KindUnigram},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("suggestions mismatch (-want +got):\n%s", diff)
	}

	got = w.Suggestions(dictfile.Query{Prefix: "om"})
	want = []dictfile.Suggestion{{Word: "on my way", Frequency: 5, Kind: dictfile.KindShortcut}}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("shortcut mismatch (-want +got):\n%s", diff)
	}

	if got := w.Suggestions(dictfile.Query{Prefix: "zz"}); got != nil {
		t.Fatalf("want nil for no match, got %v", got)
	}
}

func Test_MemoryWriter_SerializeTo_Produces_Readable_Snapshot_When_Written(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sub", "x.dict")

	w := expdict.NewMemoryWriter(fs.NewReal())
	w.AddUnigram("hello", "", 20, false)
	w.AddBigram("hello", "world", 4, true, 99)
	w.RemoveBigram("hello", "nobody")

	require.NoError(t, w.SerializeTo(path))

	snap, err := dictfile.Open(path, 0, 0, dictfile.Options{})
	require.NoError(t, err)

	defer func() { _ = snap.Close() }()

	if !snap.IsValid() || !snap.IsValidWord("hello") {
		t.Fatal("snapshot should contain hello")
	}

	if snap.IsValidWord("world") {
		t.Fatal("world is only referenced by a bigram")
	}

	if !snap.IsValidBigram("hello", "world") {
		t.Fatal("bigram missing")
	}
}

func Test_MemoryWriter_Rejects_Writes_When_Closed(t *testing.T) {
	t.Parallel()

	w := expdict.NewMemoryWriter(fs.NewReal())
	require.NoError(t, w.Close())

	w.AddUnigram("late", "", 1, false)

	err := w.SerializeTo(filepath.Join(t.TempDir(), "x.dict"))
	require.ErrorIs(t, err, expdict.ErrClosed)
}
