package expdict

import (
	"fmt"
	"strings"
	"sync"

	"github.com/calvinalkan/dictcache/internal/fs"
	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

// WordSink receives words from a [Source].
type WordSink interface {
	AddUnigram(word, shortcutTarget string, frequency int, isNotAWord bool)
	AddBigram(prev, word string, frequency int, isValid bool, lastTouched int64)
}

// SourceWriter is the mutable in-memory side of a [Dictionary].
//
// A Dictionary only calls its writer while holding the local lock, so
// implementations need not be safe for concurrent use on their own.
type SourceWriter interface {
	WordSink

	RemoveBigram(prev, word string)
	Clear()

	// SerializeTo encodes the current contents and atomically replaces the
	// file at path.
	SerializeTo(path string) error

	Suggestions(q dictfile.Query) []dictfile.Suggestion
	Close() error
}

type bigramKey struct {
	prev, word string
}

// MemoryWriter is a map-backed [SourceWriter].
//
// Empty words and words longer than [dictfile.MaxWordLength] are ignored.
// It carries its own mutex so tooling can use it outside a Dictionary.
type MemoryWriter struct {
	fs fs.FS

	mu       sync.Mutex
	unigrams map[string]dictfile.Unigram
	bigrams  map[bigramKey]dictfile.Bigram
	closed   bool
}

// NewMemoryWriter returns an empty writer persisting through fsys.
func NewMemoryWriter(fsys fs.FS) *MemoryWriter {
	w := &MemoryWriter{fs: fsys}
	w.reset()

	return w
}

func (w *MemoryWriter) reset() {
	w.unigrams = make(map[string]dictfile.Unigram)
	w.bigrams = make(map[bigramKey]dictfile.Bigram)
}

func acceptWord(word string) bool {
	return word != "" && len(word) <= dictfile.MaxWordLength
}

// AddUnigram adds or replaces word.
func (w *MemoryWriter) AddUnigram(word, shortcutTarget string, frequency int, isNotAWord bool) {
	if !acceptWord(word) || frequency < 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	w.unigrams[word] = dictfile.Unigram{
		Word:           word,
		ShortcutTarget: shortcutTarget,
		Frequency:      frequency,
		NotAWord:       isNotAWord,
	}
}

// AddBigram adds or replaces the pair (prev, word).
func (w *MemoryWriter) AddBigram(prev, word string, frequency int, isValid bool, lastTouched int64) {
	if !acceptWord(prev) || !acceptWord(word) || frequency < 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	w.bigrams[bigramKey{prev, word}] = dictfile.Bigram{
		Prev:        prev,
		Word:        word,
		Frequency:   frequency,
		Valid:       isValid,
		LastTouched: lastTouched,
	}
}

// RemoveBigram deletes the pair (prev, word) if present.
func (w *MemoryWriter) RemoveBigram(prev, word string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.bigrams, bigramKey{prev, word})
}

// Clear drops all words.
func (w *MemoryWriter) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	w.reset()
}

// Len returns the number of unigrams and bigrams held.
func (w *MemoryWriter) Len() (unigrams, bigrams int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.unigrams), len(w.bigrams)
}

// SerializeTo encodes the writer with [dictfile.Encode] and writes it
// atomically to path.
func (w *MemoryWriter) SerializeTo(path string) error {
	w.mu.Lock()

	if w.closed {
		w.mu.Unlock()

		return ErrClosed
	}

	unigrams := make([]dictfile.Unigram, 0, len(w.unigrams))
	for _, u := range w.unigrams {
		unigrams = append(unigrams, u)
	}

	bigrams := make([]dictfile.Bigram, 0, len(w.bigrams))
	for _, b := range w.bigrams {
		bigrams = append(bigrams, b)
	}

	w.mu.Unlock()

	data, err := dictfile.Encode(unigrams, bigrams)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	err = w.fs.WriteFileAtomic(path, data)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// Suggestions ranks matching words with [dictfile.RankSuggestions].
// Returns nil when nothing matches.
func (w *MemoryWriter) Suggestions(q dictfile.Query) []dictfile.Suggestion {
	w.mu.Lock()
	defer w.mu.Unlock()

	var bigrams, unigrams []dictfile.Suggestion

	if q.PrevWord != "" {
		for key, b := range w.bigrams {
			if key.prev != q.PrevWord || !b.Valid {
				continue
			}

			// Words only referenced by bigrams are not suggested, matching
			// the snapshot.
			u, ok := w.unigrams[key.word]
			if !ok || u.NotAWord || !q.Matches(key.word, u.Frequency) {
				continue
			}

			bigrams = append(bigrams, dictfile.Suggestion{Word: key.word, Frequency: b.Frequency, Kind: dictfile.KindBigram})
		}
	}

	for word, u := range w.unigrams {
		if !strings.HasPrefix(word, q.Prefix) || !q.Matches(word, u.Frequency) {
			continue
		}

		if !u.NotAWord {
			unigrams = append(unigrams, dictfile.Suggestion{Word: word, Frequency: u.Frequency, Kind: dictfile.KindUnigram})
		}

		if u.ShortcutTarget != "" {
			unigrams = append(unigrams, dictfile.Suggestion{Word: u.ShortcutTarget, Frequency: u.Frequency, Kind: dictfile.KindShortcut})
		}
	}

	if len(bigrams) == 0 && len(unigrams) == 0 {
		return nil
	}

	return dictfile.RankSuggestions(bigrams, unigrams, q.EffectiveLimit())
}

// Close releases the maps. Later calls are no-ops.
func (w *MemoryWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	w.unigrams = nil
	w.bigrams = nil

	return nil
}

var _ SourceWriter = (*MemoryWriter)(nil)
