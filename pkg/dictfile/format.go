package dictfile

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Binary format constants.
const (
	fileMagic   = "DIC1"
	fileVersion = 1

	headerSize        = 32
	unigramRecordSize = 16
	bigramRecordSize  = 24

	// Header offsets.
	offMagic        = 0
	offVersion      = 4
	offFlags        = 6
	offUnigramCount = 8
	offBigramCount  = 12
	offChecksum     = 16
	offBodyLen      = 24

	// Unigram record offsets.
	uniOffString    = 0
	uniOffWordLen   = 4
	uniOffTargetLen = 6
	uniOffFrequency = 8
	uniOffFlags     = 12

	// Bigram record offsets.
	biOffPrev        = 0
	biOffWord        = 4
	biOffFrequency   = 8
	biOffFlags       = 12
	biOffLastTouched = 16
)

// Unigram flags.
const (
	unigramFlagNotAWord = 1 << 0
	// unigramFlagImplicit marks words that only exist because a bigram
	// referenced them.
	unigramFlagImplicit = 1 << 1
)

// Bigram flags.
const (
	bigramFlagValid = 1 << 0
)

const (
	uint16Max = math.MaxUint16
	uint32Max = math.MaxUint32
)

type encUnigram struct {
	Unigram

	flags uint8
}

// Encode serializes unigrams and bigrams into the snapshot format.
//
// Duplicate unigrams and bigrams are collapsed; the last occurrence wins.
// Words referenced only by bigrams are stored as implicit entries that are
// never reported as valid words. Empty input encodes a valid, empty
// dictionary.
func Encode(unigrams []Unigram, bigrams []Bigram) ([]byte, error) {
	words := make(map[string]encUnigram, len(unigrams))

	for _, u := range unigrams {
		err := validateWord(u.Word)
		if err != nil {
			return nil, err
		}

		if len(u.ShortcutTarget) > uint16Max {
			return nil, fmt.Errorf("%w: shortcut target for %q", ErrTooLarge, u.Word)
		}

		if u.Frequency < 0 || u.Frequency > uint32Max {
			return nil, fmt.Errorf("%w: frequency %d for %q", ErrInvalidInput, u.Frequency, u.Word)
		}

		var flags uint8
		if u.NotAWord {
			flags |= unigramFlagNotAWord
		}

		words[u.Word] = encUnigram{Unigram: u, flags: flags}
	}

	type pairKey struct{ prev, word string }

	pairs := make(map[pairKey]Bigram, len(bigrams))

	for _, b := range bigrams {
		for _, w := range []string{b.Prev, b.Word} {
			err := validateWord(w)
			if err != nil {
				return nil, err
			}

			if _, ok := words[w]; !ok {
				words[w] = encUnigram{Unigram: Unigram{Word: w}, flags: unigramFlagImplicit}
			}
		}

		if b.Frequency < 0 || b.Frequency > uint32Max {
			return nil, fmt.Errorf("%w: bigram frequency %d for %q %q", ErrInvalidInput, b.Frequency, b.Prev, b.Word)
		}

		pairs[pairKey{b.Prev, b.Word}] = b
	}

	sorted := make([]string, 0, len(words))
	for w := range words {
		sorted = append(sorted, w)
	}

	sort.Strings(sorted)

	index := make(map[string]uint32, len(sorted))
	for i, w := range sorted {
		index[w] = uint32(i)
	}

	pairList := make([]Bigram, 0, len(pairs))
	for _, b := range pairs {
		pairList = append(pairList, b)
	}

	sort.Slice(pairList, func(i, j int) bool {
		pi, pj := index[pairList[i].Prev], index[pairList[j].Prev]
		if pi != pj {
			return pi < pj
		}

		return index[pairList[i].Word] < index[pairList[j].Word]
	})

	if len(sorted) > uint32Max || len(pairList) > uint32Max {
		return nil, fmt.Errorf("%w: too many entries", ErrTooLarge)
	}

	stringsOffset := headerSize + len(sorted)*unigramRecordSize + len(pairList)*bigramRecordSize

	stringsLen := 0
	for _, w := range sorted {
		stringsLen += len(w) + len(words[w].ShortcutTarget)
	}

	total := stringsOffset + stringsLen
	if total > uint32Max {
		return nil, fmt.Errorf("%w: encoded size %d", ErrTooLarge, total)
	}

	buf := make([]byte, total)

	strPos := stringsOffset

	for i, w := range sorted {
		u := words[w]
		rec := buf[headerSize+i*unigramRecordSize:]

		binary.LittleEndian.PutUint32(rec[uniOffString:], uint32(strPos))
		binary.LittleEndian.PutUint16(rec[uniOffWordLen:], uint16(len(w)))
		binary.LittleEndian.PutUint16(rec[uniOffTargetLen:], uint16(len(u.ShortcutTarget)))
		binary.LittleEndian.PutUint32(rec[uniOffFrequency:], uint32(u.Frequency))
		rec[uniOffFlags] = u.flags

		strPos += copy(buf[strPos:], w)
		strPos += copy(buf[strPos:], u.ShortcutTarget)
	}

	bigramBase := headerSize + len(sorted)*unigramRecordSize

	for i, b := range pairList {
		rec := buf[bigramBase+i*bigramRecordSize:]

		binary.LittleEndian.PutUint32(rec[biOffPrev:], index[b.Prev])
		binary.LittleEndian.PutUint32(rec[biOffWord:], index[b.Word])
		binary.LittleEndian.PutUint32(rec[biOffFrequency:], uint32(b.Frequency))

		if b.Valid {
			rec[biOffFlags] = bigramFlagValid
		}

		binary.LittleEndian.PutUint64(rec[biOffLastTouched:], uint64(b.LastTouched))
	}

	copy(buf[offMagic:], fileMagic)
	binary.LittleEndian.PutUint16(buf[offVersion:], fileVersion)
	binary.LittleEndian.PutUint16(buf[offFlags:], 0)
	binary.LittleEndian.PutUint32(buf[offUnigramCount:], uint32(len(sorted)))
	binary.LittleEndian.PutUint32(buf[offBigramCount:], uint32(len(pairList)))
	binary.LittleEndian.PutUint64(buf[offChecksum:], xxhash.Sum64(buf[headerSize:]))
	binary.LittleEndian.PutUint32(buf[offBodyLen:], uint32(total-headerSize))

	return buf, nil
}

func validateWord(w string) error {
	if w == "" {
		return fmt.Errorf("%w: empty word", ErrInvalidInput)
	}

	if len(w) > MaxWordLength {
		return fmt.Errorf("%w: word %q longer than %d bytes", ErrTooLarge, w, MaxWordLength)
	}

	return nil
}
