package dictfile

import (
	"sort"
	"strings"
)

// MaxWordLength is the longest word (in bytes) accepted by [Encode].
const MaxWordLength = 48

// DefaultSuggestionLimit is used when [Query.Limit] is zero.
const DefaultSuggestionLimit = 18

// Unigram is a single dictionary word.
type Unigram struct {
	Word string

	// ShortcutTarget is suggested alongside Word when Word matches a query.
	// Empty means no shortcut.
	ShortcutTarget string

	// Frequency is the relative usage weight. Zero marks a possibly
	// offensive word (see [Query.BlockOffensive]).
	Frequency int

	// NotAWord entries exist only to carry a shortcut: they are never
	// valid words and never suggested themselves.
	NotAWord bool
}

// Bigram is an ordered word pair.
type Bigram struct {
	Prev      string
	Word      string
	Frequency int

	// Valid bigrams are suggested after Prev; invalid ones are kept so a
	// later update can revive them without losing LastTouched.
	Valid bool

	// LastTouched is a caller-defined timestamp (unix seconds in practice).
	LastTouched int64
}

// Query describes a suggestion request.
type Query struct {
	// Prefix restricts suggestions to words starting with it.
	Prefix string

	// PrevWord, when set, ranks bigram successors of PrevWord first.
	PrevWord string

	// BlockOffensive skips zero-frequency words.
	BlockOffensive bool

	// Limit caps the number of results; 0 means [DefaultSuggestionLimit].
	Limit int
}

// EffectiveLimit returns Limit, or [DefaultSuggestionLimit] when unset.
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultSuggestionLimit
	}

	return q.Limit
}

// Kind tells where a suggestion came from.
type Kind uint8

const (
	KindUnigram Kind = iota + 1
	KindBigram
	KindShortcut
)

func (k Kind) String() string {
	switch k {
	case KindUnigram:
		return "unigram"
	case KindBigram:
		return "bigram"
	case KindShortcut:
		return "shortcut"
	default:
		return "unknown"
	}
}

// Suggestion is one candidate word.
type Suggestion struct {
	Word      string
	Frequency int
	Kind      Kind
}

// RankSuggestions orders candidates the way both the snapshot and the
// in-memory writer present them: bigram successors first, then unigram and
// shortcut matches, each group by frequency descending and word ascending.
// Duplicate words keep their first (highest ranked) occurrence.
func RankSuggestions(bigrams, unigrams []Suggestion, limit int) []Suggestion {
	sortByFrequency(bigrams)
	sortByFrequency(unigrams)

	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	out := make([]Suggestion, 0, min(limit, len(bigrams)+len(unigrams)))
	seen := make(map[string]bool, cap(out))

	for _, group := range [][]Suggestion{bigrams, unigrams} {
		for _, s := range group {
			if len(out) >= limit {
				return out
			}

			if seen[s.Word] {
				continue
			}

			seen[s.Word] = true
			out = append(out, s)
		}
	}

	return out
}

func sortByFrequency(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Frequency != s[j].Frequency {
			return s[i].Frequency > s[j].Frequency
		}

		return s[i].Word < s[j].Word
	})
}

// Matches reports whether a word with the given frequency passes the prefix
// and offensive filters of q.
func (q Query) Matches(word string, frequency int) bool {
	if !strings.HasPrefix(word, q.Prefix) {
		return false
	}

	return !q.BlockOffensive || frequency > 0
}
