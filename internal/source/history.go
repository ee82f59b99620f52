package source

import (
	"fmt"
	"sync/atomic"

	"github.com/calvinalkan/dictcache/internal/expdict"
	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

// UserHistory is the source of an updatable dictionary whose only durable
// copy is its own dictionary file. Words arrive through the dynamic
// mutation methods; LoadInto replays the file after a restart.
//
// Rebuilds serialize the writer as-is, so NeedsReloadBeforeWriting is
// false. Call [UserHistory.Touch] after mutating so the next reload writes
// the file; a completed rebuild resets the flag.
type UserHistory struct {
	path    string
	changed atomic.Bool
}

// NewUserHistory returns a source replaying the dictionary file at path.
func NewUserHistory(path string) *UserHistory {
	return &UserHistory{path: path}
}

// LoadInto replays every unigram and bigram of the file into sink.
// A missing file is an empty history.
func (h *UserHistory) LoadInto(sink expdict.WordSink) error {
	snap, err := dictfile.Open(h.path, 0, 0, dictfile.Options{DictType: "user_history"})
	if err != nil {
		if dictfile.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("opening user history: %w", err)
	}

	defer func() { _ = snap.Close() }()

	err = snap.Validate()
	if err != nil {
		return fmt.Errorf("user history: %w", err)
	}

	for _, u := range snap.Unigrams() {
		sink.AddUnigram(u.Word, u.ShortcutTarget, u.Frequency, u.NotAWord)
	}

	for _, b := range snap.Bigrams() {
		sink.AddBigram(b.Prev, b.Word, b.Frequency, b.Valid, b.LastTouched)
	}

	return nil
}

// Touch records that the in-memory history differs from the file.
func (h *UserHistory) Touch() {
	h.changed.Store(true)
}

func (h *UserHistory) HasContentChanged() bool {
	return h.changed.Load()
}

func (h *UserHistory) NeedsReloadBeforeWriting() bool {
	return false
}

// Rebuilt clears the changed flag.
func (h *UserHistory) Rebuilt() {
	h.changed.Store(false)
}

var (
	_ expdict.Source          = (*UserHistory)(nil)
	_ expdict.RebuildNotifier = (*UserHistory)(nil)
)
