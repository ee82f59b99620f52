package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/calvinalkan/dictcache/internal/expdict"
	"github.com/calvinalkan/dictcache/internal/fs"
)

// ErrSyntax is returned for malformed word list lines.
var ErrSyntax = errors.New("word list syntax error")

// Line kinds of the word list format.
const (
	kindWord   = "w"
	kindBigram = "b"
)

// WordList is a [expdict.Source] backed by a tab-separated text file:
//
//	# comment
//	w	<word>	<frequency>[	<shortcut>[	notaword]]
//	b	<prev>	<word>	<frequency>
//
// The file is the authoritative copy, so every rebuild re-reads it.
// Content counts as changed when the file's size or modification time
// differs from the last successful load.
type WordList struct {
	fs   fs.FS
	path string

	mu     sync.Mutex
	loaded bool
	size   int64
	mtime  time.Time
}

// NewWordList returns a source reading path.
func NewWordList(fsys fs.FS, path string) *WordList {
	return &WordList{fs: fsys, path: path}
}

// Path returns the word list path.
func (l *WordList) Path() string {
	return l.path
}

// LoadInto parses the file into sink.
func (l *WordList) LoadInto(sink expdict.WordSink) error {
	info, err := l.fs.Stat(l.path)
	if err != nil {
		return fmt.Errorf("stat word list: %w", err)
	}

	data, err := l.fs.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("reading word list: %w", err)
	}

	err = ParseWordList(bytes.NewReader(data), sink)
	if err != nil {
		return fmt.Errorf("%s: %w", l.path, err)
	}

	l.mu.Lock()
	l.loaded = true
	l.size = info.Size()
	l.mtime = info.ModTime()
	l.mu.Unlock()

	return nil
}

// HasContentChanged compares the file's size and mtime with the last
// load. A file that cannot be stat'ed counts as changed, so the next
// rebuild surfaces the error.
func (l *WordList) HasContentChanged() bool {
	info, err := l.fs.Stat(l.path)
	if err != nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return !l.loaded || info.Size() != l.size || !info.ModTime().Equal(l.mtime)
}

// NeedsReloadBeforeWriting is always true: the writer is rebuilt from the
// file.
func (l *WordList) NeedsReloadBeforeWriting() bool {
	return true
}

// ParseWordList reads the word list format from r into sink.
// Blank lines and lines starting with '#' are skipped.
func ParseWordList(r io.Reader, sink expdict.WordSink) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		err := parseLine(line, sink)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}

	err := scanner.Err()
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	return nil
}

func parseLine(line string, sink expdict.WordSink) error {
	fields := strings.Split(line, "\t")

	switch fields[0] {
	case kindWord:
		if len(fields) < 3 || len(fields) > 5 {
			return fmt.Errorf("%w: word line needs 3 to 5 fields, got %d", ErrSyntax, len(fields))
		}

		freq, err := parseFrequency(fields[2])
		if err != nil {
			return err
		}

		var shortcut string
		if len(fields) >= 4 {
			shortcut = fields[3]
		}

		notAWord := false
		if len(fields) == 5 {
			if fields[4] != "notaword" {
				return fmt.Errorf("%w: unknown flag %q", ErrSyntax, fields[4])
			}

			notAWord = true
		}

		sink.AddUnigram(fields[1], shortcut, freq, notAWord)

	case kindBigram:
		if len(fields) != 4 {
			return fmt.Errorf("%w: bigram line needs 4 fields, got %d", ErrSyntax, len(fields))
		}

		freq, err := parseFrequency(fields[3])
		if err != nil {
			return err
		}

		sink.AddBigram(fields[1], fields[2], freq, true, 0)

	default:
		return fmt.Errorf("%w: unknown line kind %q", ErrSyntax, fields[0])
	}

	return nil
}

func parseFrequency(s string) (int, error) {
	freq, err := strconv.Atoi(s)
	if err != nil || freq < 0 {
		return 0, fmt.Errorf("%w: bad frequency %q", ErrSyntax, s)
	}

	return freq, nil
}

// WriteWordList writes unigrams and bigrams in the word list format.
func WriteWordList(w io.Writer, words []Word, pairs []Pair) error {
	bw := bufio.NewWriter(w)

	for _, word := range words {
		line := kindWord + "\t" + word.Word + "\t" + strconv.Itoa(word.Frequency)

		if word.ShortcutTarget != "" || word.NotAWord {
			line += "\t" + word.ShortcutTarget
		}

		if word.NotAWord {
			line += "\tnotaword"
		}

		_, err := bw.WriteString(line + "\n")
		if err != nil {
			return err
		}
	}

	for _, p := range pairs {
		_, err := fmt.Fprintf(bw, "%s\t%s\t%s\t%d\n", kindBigram, p.Prev, p.Word, p.Frequency)
		if err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Word is a unigram line of a word list.
type Word struct {
	Word           string
	ShortcutTarget string
	Frequency      int
	NotAWord       bool
}

// Pair is a bigram line of a word list.
type Pair struct {
	Prev      string
	Word      string
	Frequency int
}

var _ expdict.Source = (*WordList)(nil)
