package dictfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"
)

// Options carries caller metadata for an opened snapshot.
type Options struct {
	// DictType is a human-readable tag ("main", "user", "contacts" ...).
	DictType string

	// Locale is the locale tag the dictionary was built for.
	Locale string
}

// Dictionary is a read-only, memory-mapped snapshot.
// Must be closed after use to unmap memory.
type Dictionary struct {
	mapping []byte // full mmap region, nil after Close
	data    []byte // snapshot bytes inside mapping

	path     string
	opts     Options
	unigrams int
	bigrams  int
}

// Info describes an opened snapshot.
type Info struct {
	Path     string
	DictType string
	Locale   string
	Version  int
	Unigrams int
	Bigrams  int
	Size     int
}

var pageSize = int64(unix.Getpagesize())

// Open maps length bytes of the file at path starting at offset.
//
// A zero length maps everything from offset to the end of the file, which
// is the common case of one snapshot per file. Only the header is checked
// here; call [Dictionary.IsValid] to verify the body.
//
// Returns [ErrCorrupt] for truncated files or bad magic, [ErrIncompatible]
// for unknown versions, and wrapped I/O errors otherwise.
func Open(path string, offset, length int64, opts Options) (*Dictionary, error) {
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("%w: offset=%d length=%d", ErrInvalidInput, offset, length)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dictionary: %w", err)
	}

	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat dictionary: %w", err)
	}

	size := info.Size()
	if length == 0 {
		length = size - offset
	}

	if offset+length > size {
		return nil, fmt.Errorf("%w: region %d+%d exceeds file size %d", ErrCorrupt, offset, length, size)
	}

	if length < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is smaller than the header", ErrCorrupt, length)
	}

	aligned := offset - offset%pageSize
	skip := offset - aligned

	mapping, err := unix.Mmap(int(file.Fd()), aligned, int(length+skip), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap dictionary: %w", err)
	}

	d := &Dictionary{
		mapping: mapping,
		data:    mapping[skip : skip+length],
		path:    path,
		opts:    opts,
	}

	err = d.readHeader()
	if err != nil {
		_ = unix.Munmap(mapping)

		return nil, err
	}

	return d, nil
}

func (d *Dictionary) readHeader() error {
	data := d.data

	if string(data[offMagic:offMagic+len(fileMagic)]) != fileMagic {
		return fmt.Errorf("%w: bad magic", ErrCorrupt)
	}

	version := binary.LittleEndian.Uint16(data[offVersion:])
	if version != fileVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrIncompatible, version, fileVersion)
	}

	bodyLen := int(binary.LittleEndian.Uint32(data[offBodyLen:]))
	if headerSize+bodyLen != len(data) {
		return fmt.Errorf("%w: body length %d does not match region of %d bytes", ErrCorrupt, bodyLen, len(data))
	}

	unigrams := int(binary.LittleEndian.Uint32(data[offUnigramCount:]))
	bigrams := int(binary.LittleEndian.Uint32(data[offBigramCount:]))

	if unigrams*unigramRecordSize+bigrams*bigramRecordSize > bodyLen {
		return fmt.Errorf("%w: %d unigrams and %d bigrams do not fit %d bytes", ErrCorrupt, unigrams, bigrams, bodyLen)
	}

	d.unigrams = unigrams
	d.bigrams = bigrams

	return nil
}

// Close unmaps the snapshot. Safe to call multiple times.
// After Close, queries report nothing.
func (d *Dictionary) Close() error {
	if d.mapping == nil {
		return nil
	}

	err := unix.Munmap(d.mapping)
	d.mapping = nil
	d.data = nil
	d.unigrams = 0
	d.bigrams = 0

	if err != nil {
		return fmt.Errorf("munmap dictionary: %w", err)
	}

	return nil
}

// Closed reports whether Close has been called.
func (d *Dictionary) Closed() bool {
	return d.mapping == nil
}

// Info returns header-level metadata.
func (d *Dictionary) Info() Info {
	info := Info{
		Path:     d.path,
		DictType: d.opts.DictType,
		Locale:   d.opts.Locale,
		Unigrams: d.unigrams,
		Bigrams:  d.bigrams,
		Size:     len(d.data),
	}

	if d.data != nil {
		info.Version = int(binary.LittleEndian.Uint16(d.data[offVersion:]))
	}

	return info
}

// Validate verifies the checksum and every index record. It returns nil
// for a sound snapshot, [ErrClosed] after Close, and an error wrapping
// [ErrCorrupt] describing the first problem found.
func (d *Dictionary) Validate() error {
	if d.data == nil {
		return ErrClosed
	}

	want := binary.LittleEndian.Uint64(d.data[offChecksum:])
	if got := xxhash.Sum64(d.data[headerSize:]); got != want {
		return fmt.Errorf("%w: checksum %x, want %x", ErrCorrupt, got, want)
	}

	prev := ""

	for i := range d.unigrams {
		u, ok := d.unigramAt(i)
		if !ok {
			return fmt.Errorf("%w: unigram %d out of bounds", ErrCorrupt, i)
		}

		if i > 0 && u.Word <= prev {
			return fmt.Errorf("%w: unigram %d out of order", ErrCorrupt, i)
		}

		prev = u.Word
	}

	var lastPrev, lastWord uint32

	for i := range d.bigrams {
		rec := d.bigramRecord(i)
		p := binary.LittleEndian.Uint32(rec[biOffPrev:])
		w := binary.LittleEndian.Uint32(rec[biOffWord:])

		if int(p) >= d.unigrams || int(w) >= d.unigrams {
			return fmt.Errorf("%w: bigram %d references missing word", ErrCorrupt, i)
		}

		if i > 0 && (p < lastPrev || (p == lastPrev && w <= lastWord)) {
			return fmt.Errorf("%w: bigram %d out of order", ErrCorrupt, i)
		}

		lastPrev, lastWord = p, w
	}

	return nil
}

// IsValid reports whether [Dictionary.Validate] succeeds.
func (d *Dictionary) IsValid() bool {
	return d.Validate() == nil
}

// IsValidWord reports whether word is a real word in the snapshot.
// NotAWord and implicit entries are not valid words.
func (d *Dictionary) IsValidWord(word string) bool {
	idx := d.find(word)
	if idx < 0 {
		return false
	}

	return d.unigramFlags(idx)&(unigramFlagNotAWord|unigramFlagImplicit) == 0
}

// IsValidBigram reports whether (w1, w2) is stored as a valid bigram.
func (d *Dictionary) IsValidBigram(w1, w2 string) bool {
	p := d.find(w1)
	if p < 0 {
		return false
	}

	w := d.find(w2)
	if w < 0 {
		return false
	}

	lo, hi := d.bigramRange(uint32(p))
	for i := lo; i < hi; i++ {
		rec := d.bigramRecord(i)
		if binary.LittleEndian.Uint32(rec[biOffWord:]) == uint32(w) {
			return rec[biOffFlags]&bigramFlagValid != 0
		}
	}

	return false
}

// Suggestions returns words matching q, ranked by [RankSuggestions].
func (d *Dictionary) Suggestions(q Query) []Suggestion {
	if d.data == nil {
		return nil
	}

	var bigrams []Suggestion

	if q.PrevWord != "" {
		if p := d.find(q.PrevWord); p >= 0 {
			lo, hi := d.bigramRange(uint32(p))
			for i := lo; i < hi; i++ {
				rec := d.bigramRecord(i)
				if rec[biOffFlags]&bigramFlagValid == 0 {
					continue
				}

				w := int(binary.LittleEndian.Uint32(rec[biOffWord:]))

				u, ok := d.unigramAt(w)
				if !ok || u.NotAWord || d.unigramFlags(w)&unigramFlagImplicit != 0 {
					continue
				}

				freq := int(binary.LittleEndian.Uint32(rec[biOffFrequency:]))
				if !q.Matches(u.Word, u.Frequency) {
					continue
				}

				bigrams = append(bigrams, Suggestion{Word: u.Word, Frequency: freq, Kind: KindBigram})
			}
		}
	}

	var unigrams []Suggestion

	start := sort.Search(d.unigrams, func(i int) bool {
		return d.wordAt(i) >= q.Prefix
	})

	for i := start; i < d.unigrams; i++ {
		u, ok := d.unigramAt(i)
		if !ok || !strings.HasPrefix(u.Word, q.Prefix) {
			break
		}

		if d.unigramFlags(i)&unigramFlagImplicit != 0 || !q.Matches(u.Word, u.Frequency) {
			continue
		}

		if !u.NotAWord {
			unigrams = append(unigrams, Suggestion{Word: u.Word, Frequency: u.Frequency, Kind: KindUnigram})
		}

		if u.ShortcutTarget != "" {
			unigrams = append(unigrams, Suggestion{Word: u.ShortcutTarget, Frequency: u.Frequency, Kind: KindShortcut})
		}
	}

	return RankSuggestions(bigrams, unigrams, q.EffectiveLimit())
}

// Unigrams returns every explicit unigram in word order.
func (d *Dictionary) Unigrams() []Unigram {
	out := make([]Unigram, 0, d.unigrams)

	for i := range d.unigrams {
		if d.unigramFlags(i)&unigramFlagImplicit != 0 {
			continue
		}

		if u, ok := d.unigramAt(i); ok {
			out = append(out, u)
		}
	}

	return out
}

// Bigrams returns every bigram in (prev, word) order.
func (d *Dictionary) Bigrams() []Bigram {
	out := make([]Bigram, 0, d.bigrams)

	for i := range d.bigrams {
		rec := d.bigramRecord(i)

		out = append(out, Bigram{
			Prev:        d.wordAt(int(binary.LittleEndian.Uint32(rec[biOffPrev:]))),
			Word:        d.wordAt(int(binary.LittleEndian.Uint32(rec[biOffWord:]))),
			Frequency:   int(binary.LittleEndian.Uint32(rec[biOffFrequency:])),
			Valid:       rec[biOffFlags]&bigramFlagValid != 0,
			LastTouched: int64(binary.LittleEndian.Uint64(rec[biOffLastTouched:])),
		})
	}

	return out
}

// find returns the unigram index of word, or -1.
func (d *Dictionary) find(word string) int {
	if d.data == nil || word == "" {
		return -1
	}

	low, high := 0, d.unigrams-1

	for low <= high {
		mid := (low + high) / 2

		switch c := strings.Compare(word, d.wordAt(mid)); {
		case c == 0:
			return mid
		case c < 0:
			high = mid - 1
		default:
			low = mid + 1
		}
	}

	return -1
}

// bigramRange returns the [lo, hi) bigram indices whose prev is p.
func (d *Dictionary) bigramRange(p uint32) (int, int) {
	prevAt := func(i int) uint32 {
		return binary.LittleEndian.Uint32(d.bigramRecord(i)[biOffPrev:])
	}

	lo := sort.Search(d.bigrams, func(i int) bool { return prevAt(i) >= p })
	hi := sort.Search(d.bigrams, func(i int) bool { return prevAt(i) > p })

	return lo, hi
}

// unigramRecord returns record i, or nil when i is not a unigram index.
// Bigram records of a corrupt file may carry any index.
func (d *Dictionary) unigramRecord(i int) []byte {
	if i < 0 || i >= d.unigrams {
		return nil
	}

	off := headerSize + i*unigramRecordSize

	return d.data[off : off+unigramRecordSize]
}

func (d *Dictionary) bigramRecord(i int) []byte {
	off := headerSize + d.unigrams*unigramRecordSize + i*bigramRecordSize

	return d.data[off : off+bigramRecordSize]
}

func (d *Dictionary) unigramFlags(i int) uint8 {
	rec := d.unigramRecord(i)
	if rec == nil {
		return 0
	}

	return rec[uniOffFlags]
}

// unigramAt decodes record i. ok is false when i or the record points
// outside the snapshot, which only happens for corrupt files.
func (d *Dictionary) unigramAt(i int) (Unigram, bool) {
	rec := d.unigramRecord(i)
	if rec == nil {
		return Unigram{}, false
	}

	off := int(binary.LittleEndian.Uint32(rec[uniOffString:]))
	wordLen := int(binary.LittleEndian.Uint16(rec[uniOffWordLen:]))
	targetLen := int(binary.LittleEndian.Uint16(rec[uniOffTargetLen:]))

	end := off + wordLen + targetLen
	if off < headerSize || end > len(d.data) {
		return Unigram{}, false
	}

	return Unigram{
		Word:           string(d.data[off : off+wordLen]),
		ShortcutTarget: string(d.data[off+wordLen : end]),
		Frequency:      int(binary.LittleEndian.Uint32(rec[uniOffFrequency:])),
		NotAWord:       rec[uniOffFlags]&unigramFlagNotAWord != 0,
	}, true
}

// wordAt returns the word of record i, or "" when out of bounds.
func (d *Dictionary) wordAt(i int) string {
	rec := d.unigramRecord(i)
	if rec == nil {
		return ""
	}

	off := int(binary.LittleEndian.Uint32(rec[uniOffString:]))
	wordLen := int(binary.LittleEndian.Uint16(rec[uniOffWordLen:]))

	if off < headerSize || off+wordLen > len(d.data) {
		return ""
	}

	return string(d.data[off : off+wordLen])
}

// IsNotExist reports whether err means the snapshot file is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
